package gphotos

import (
	"fmt"
	"sort"
	"strings"
)

// ProviderPrefix is the operation namespace of this provider.
const ProviderPrefix = "native-rpc."

// lockedFolderPath is the app shell page that hands out locked-folder
// capable session tokens.
const lockedFolderPath = "/u/0/photos/lockedfolder"

// Method describes one RPC operation: the rpcid it maps to, how to build its
// request frame from named params, and whether it mutates remote state.
type Method struct {
	Operation      string
	RPCID          string
	Description    string
	Params         map[string]string
	Destructive    bool
	SourcePathHint string
	Build          func(params map[string]any) (any, error)
}

// Resolve looks up a method by operation name, with or without the provider
// prefix. The error lists the supported operations so a typo in a job
// payload is diagnosable from the job error alone.
func Resolve(operation string) (*Method, error) {
	name := strings.TrimPrefix(operation, ProviderPrefix)
	if m, ok := methods[name]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("unsupported native-rpc operation: %s. Supported: %s",
		operation, strings.Join(Operations(), ", "))
}

// Operations returns the sorted short names of all registered methods.
func Operations() []string {
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Methods returns all registered methods keyed by short operation name.
func Methods() map[string]*Method {
	return methods
}

// -----------------------------------------------------------------------------
// Param coercion
// -----------------------------------------------------------------------------

func stringParam(p map[string]any, key string) string {
	s, _ := p[key].(string)
	return s
}

func stringsParam(p map[string]any, key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func intParam(p map[string]any, key string, def int) int {
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return def
}

func int64Param(p map[string]any, key string) (int64, bool) {
	switch v := p[key].(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

func boolParam(p map[string]any, key string) bool {
	b, _ := p[key].(bool)
	return b
}

func requireString(p map[string]any, key string) (string, error) {
	s := stringParam(p, key)
	if s == "" {
		return "", fmt.Errorf("missing required param %q", key)
	}
	return s, nil
}

func requireStrings(p map[string]any, key string) ([]string, error) {
	v := stringsParam(p, key)
	if len(v) == 0 {
		return nil, fmt.Errorf("missing required param %q", key)
	}
	return v, nil
}

// wrapEach turns ["a","b"] into [["a"],["b"]].
func wrapEach(keys []string) []any {
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, []any{k})
	}
	return out
}

// nullPrefixEach turns ["a","b"] into [[null,"a"],[null,"b"]].
func nullPrefixEach(keys []string) []any {
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, []any{nil, k})
	}
	return out
}

func nulls(n int) []any {
	return make([]any, n)
}

func toAnySlice(keys []string) []any {
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, k)
	}
	return out
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

var methods = map[string]*Method{}

func register(m *Method) {
	methods[m.Operation] = m
}

func init() {
	register(&Method{
		Operation:   "get_items_by_taken_date",
		RPCID:       "lcxiM",
		Description: "Page through library items ordered by taken date",
		Params: map[string]string{
			"pageId":   "opaque page cursor",
			"timestamp": "start timestamp in milliseconds",
			"pageSize": "items per page, default 500",
			"source":   "library, archive, or both",
		},
		Build: func(p map[string]any) (any, error) {
			sourceCode := 3
			switch stringParam(p, "source") {
			case "library":
				sourceCode = 1
			case "archive":
				sourceCode = 2
			}
			var pageID any
			if s := stringParam(p, "pageId"); s != "" {
				pageID = s
			}
			var timestamp any
			if ts, ok := int64Param(p, "timestamp"); ok {
				timestamp = ts
			}
			return []any{pageID, timestamp, intParam(p, "pageSize", 500), nil, 1, sourceCode}, nil
		},
	})

	register(&Method{
		Operation:   "get_items_by_uploaded_date",
		RPCID:       "EzkLib",
		Description: "Page through library items ordered by upload date",
		Params:      map[string]string{"pageId": "opaque page cursor"},
		Build: func(p map[string]any) (any, error) {
			return []any{"", []any{[]any{4, "ra", 0, 0}}, stringParam(p, "pageId")}, nil
		},
	})

	register(&Method{
		Operation:   "search",
		RPCID:       "EzkLib",
		Description: "Full-text search over the library",
		Params: map[string]string{
			"query":  "search query",
			"pageId": "opaque page cursor",
		},
		Build: func(p map[string]any) (any, error) {
			query, err := requireString(p, "query")
			if err != nil {
				return nil, err
			}
			return []any{query, nil, stringParam(p, "pageId")}, nil
		},
	})

	register(&Method{
		Operation:   "get_remote_matches_by_hash",
		RPCID:       "swbisb",
		Description: "Look up remote items by SHA-1 hash",
		Params:      map[string]string{"hashArray": "base64url SHA-1 hashes"},
		Build: func(p map[string]any) (any, error) {
			hashes, err := requireStrings(p, "hashArray")
			if err != nil {
				return nil, err
			}
			return []any{toAnySlice(hashes), nil, 3, 0}, nil
		},
	})

	register(&Method{
		Operation:   "get_favorite_items",
		RPCID:       "EzkLib",
		Description: "Page through favorited items",
		Params:      map[string]string{"pageId": "opaque page cursor"},
		Build: func(p map[string]any) (any, error) {
			return []any{"Favorites", []any{[]any{5, "8", 0, 9}}, stringParam(p, "pageId")}, nil
		},
	})

	register(&Method{
		Operation:   "get_trash_items",
		RPCID:       "zy0IHe",
		Description: "Page through trashed items",
		Params:      map[string]string{"pageId": "opaque page cursor"},
		Build: func(p map[string]any) (any, error) {
			var pageID any
			if s := stringParam(p, "pageId"); s != "" {
				pageID = s
			}
			return []any{pageID}, nil
		},
	})

	register(&Method{
		Operation:      "get_locked_folder_items",
		RPCID:          "nMFwOc",
		Description:    "Page through locked folder items",
		Params:         map[string]string{"pageId": "opaque page cursor"},
		SourcePathHint: lockedFolderPath,
		Build: func(p map[string]any) (any, error) {
			var pageID any
			if s := stringParam(p, "pageId"); s != "" {
				pageID = s
			}
			return []any{pageID}, nil
		},
	})

	register(&Method{
		Operation:   "move_items_to_trash",
		RPCID:       "XwAOJf",
		Description: "Move items to the trash",
		Params:      map[string]string{"dedupKeyArray": "dedup keys of the items"},
		Destructive: true,
		Build: func(p map[string]any) (any, error) {
			keys, err := requireStrings(p, "dedupKeyArray")
			if err != nil {
				return nil, err
			}
			return []any{nil, 1, toAnySlice(keys), 3}, nil
		},
	})

	register(&Method{
		Operation:   "restore_from_trash",
		RPCID:       "XwAOJf",
		Description: "Restore items from the trash",
		Params:      map[string]string{"dedupKeyArray": "dedup keys of the items"},
		Build: func(p map[string]any) (any, error) {
			keys, err := requireStrings(p, "dedupKeyArray")
			if err != nil {
				return nil, err
			}
			return []any{nil, 3, toAnySlice(keys), 2}, nil
		},
	})

	register(&Method{
		Operation:   "get_shared_links",
		RPCID:       "F2A0H",
		Description: "Page through shared links",
		Params:      map[string]string{"pageId": "opaque page cursor"},
		Build: func(p map[string]any) (any, error) {
			var pageID any
			if s := stringParam(p, "pageId"); s != "" {
				pageID = s
			}
			return []any{pageID, nil, 2, nil, 3}, nil
		},
	})

	register(&Method{
		Operation:   "get_albums",
		RPCID:       "Z5xsfc",
		Description: "Page through albums",
		Params: map[string]string{
			"pageId":   "opaque page cursor",
			"pageSize": "albums per page, default 100",
		},
		Build: func(p map[string]any) (any, error) {
			var pageID any
			if s := stringParam(p, "pageId"); s != "" {
				pageID = s
			}
			return []any{pageID, nil, nil, nil, 1, nil, nil, intParam(p, "pageSize", 100), []any{2}, 5}, nil
		},
	})

	register(&Method{
		Operation:   "get_album_page",
		RPCID:       "snAcKc",
		Description: "Page through the items of one album",
		Params: map[string]string{
			"albumMediaKey": "media key of the album",
			"pageId":        "opaque page cursor",
			"authKey":       "auth key for shared albums",
		},
		Build: func(p map[string]any) (any, error) {
			albumKey, err := requireString(p, "albumMediaKey")
			if err != nil {
				return nil, err
			}
			var pageID any
			if s := stringParam(p, "pageId"); s != "" {
				pageID = s
			}
			var authKey any
			if s := stringParam(p, "authKey"); s != "" {
				authKey = s
			}
			return []any{albumKey, pageID, nil, authKey}, nil
		},
	})

	register(&Method{
		Operation:   "remove_items_from_album",
		RPCID:       "ycV3Nd",
		Description: "Remove items from an album",
		Params:      map[string]string{"itemAlbumMediaKeyArray": "album-scoped media keys of the items"},
		Destructive: true,
		Build: func(p map[string]any) (any, error) {
			keys, err := requireStrings(p, "itemAlbumMediaKeyArray")
			if err != nil {
				return nil, err
			}
			return []any{toAnySlice(keys)}, nil
		},
	})

	register(&Method{
		Operation:   "create_album",
		RPCID:       "OXvT9d",
		Description: "Create an empty album",
		Params:      map[string]string{"albumName": "name of the new album"},
		Build: func(p map[string]any) (any, error) {
			name, err := requireString(p, "albumName")
			if err != nil {
				return nil, err
			}
			return []any{name, nil, 2}, nil
		},
	})

	register(&Method{
		Operation:   "add_items_to_album",
		RPCID:       "E1Cajb",
		Description: "Add items to an album, creating it when a name is given",
		Params: map[string]string{
			"mediaKeyArray": "media keys of the items",
			"albumMediaKey": "media key of an existing album",
			"albumName":     "name for a new album",
		},
		Build: func(p map[string]any) (any, error) {
			keys, err := requireStrings(p, "mediaKeyArray")
			if err != nil {
				return nil, err
			}
			if name := stringParam(p, "albumName"); name != "" {
				return []any{toAnySlice(keys), nil, name}, nil
			}
			albumKey, err := requireString(p, "albumMediaKey")
			if err != nil {
				return nil, fmt.Errorf("either albumMediaKey or albumName is required")
			}
			return []any{toAnySlice(keys), albumKey}, nil
		},
	})

	register(&Method{
		Operation:   "add_items_to_shared_album",
		RPCID:       "laUYf",
		Description: "Add items to a shared album, creating it when a name is given",
		Params: map[string]string{
			"mediaKeyArray": "media keys of the items",
			"albumMediaKey": "media key of an existing shared album",
			"albumName":     "name for a new shared album",
		},
		Build: func(p map[string]any) (any, error) {
			keys, err := requireStrings(p, "mediaKeyArray")
			if err != nil {
				return nil, err
			}
			if name := stringParam(p, "albumName"); name != "" {
				return []any{toAnySlice(keys), nil, name}, nil
			}
			albumKey, err := requireString(p, "albumMediaKey")
			if err != nil {
				return nil, fmt.Errorf("either albumMediaKey or albumName is required")
			}
			wrapped := make([]any, 0, len(keys))
			for _, k := range keys {
				wrapped = append(wrapped, []any{[]any{k}})
			}
			return []any{albumKey, []any{2, nil, wrapped, nil, nil, nil, []any{1}}}, nil
		},
	})

	register(&Method{
		Operation:   "set_album_item_order",
		RPCID:       "QD9nKf",
		Description: "Reorder items inside an album",
		Params: map[string]string{
			"albumMediaKey":       "media key of the album",
			"mediaKeyArray":       "items to move, in order",
			"insertAfterMediaKey": "item to insert after, or empty for the front",
		},
		Destructive: true,
		Build: func(p map[string]any) (any, error) {
			albumKey, err := requireString(p, "albumMediaKey")
			if err != nil {
				return nil, err
			}
			keys, err := requireStrings(p, "mediaKeyArray")
			if err != nil {
				return nil, err
			}
			items := make([]any, 0, len(keys))
			for _, k := range keys {
				items = append(items, []any{[]any{k}})
			}
			if after := stringParam(p, "insertAfterMediaKey"); after != "" {
				return []any{albumKey, nil, 3, nil, items, []any{[]any{after}}}, nil
			}
			return []any{albumKey, nil, 1, nil, items}, nil
		},
	})

	register(&Method{
		Operation:   "set_favorite",
		RPCID:       "Ftfh0",
		Description: "Favorite or unfavorite items",
		Params: map[string]string{
			"dedupKeyArray": "dedup keys of the items",
			"action":        "true to favorite, false to unfavorite",
		},
		Destructive: true,
		Build: func(p map[string]any) (any, error) {
			keys, err := requireStrings(p, "dedupKeyArray")
			if err != nil {
				return nil, err
			}
			state := 2
			if boolParam(p, "action") {
				state = 1
			}
			return []any{nullPrefixEach(keys), []any{state}}, nil
		},
	})

	register(&Method{
		Operation:   "set_archive",
		RPCID:       "w7TP3c",
		Description: "Archive or unarchive items",
		Params: map[string]string{
			"dedupKeyArray": "dedup keys of the items",
			"action":        "true to archive, false to unarchive",
		},
		Destructive: true,
		Build: func(p map[string]any) (any, error) {
			keys, err := requireStrings(p, "dedupKeyArray")
			if err != nil {
				return nil, err
			}
			state := 2
			if boolParam(p, "action") {
				state = 1
			}
			items := make([]any, 0, len(keys))
			for _, k := range keys {
				items = append(items, []any{nil, []any{state}, []any{nil, k}})
			}
			return []any{items, nil, 1}, nil
		},
	})

	register(&Method{
		Operation:      "move_to_locked_folder",
		RPCID:          "StLnCe",
		Description:    "Move items into the locked folder",
		Params:         map[string]string{"dedupKeyArray": "dedup keys of the items"},
		Destructive:    true,
		SourcePathHint: lockedFolderPath,
		Build: func(p map[string]any) (any, error) {
			keys, err := requireStrings(p, "dedupKeyArray")
			if err != nil {
				return nil, err
			}
			return []any{toAnySlice(keys), []any{}}, nil
		},
	})

	register(&Method{
		Operation:      "remove_from_locked_folder",
		RPCID:          "Pp2Xxe",
		Description:    "Move items out of the locked folder",
		Params:         map[string]string{"dedupKeyArray": "dedup keys of the items"},
		Destructive:    true,
		SourcePathHint: lockedFolderPath,
		Build: func(p map[string]any) (any, error) {
			keys, err := requireStrings(p, "dedupKeyArray")
			if err != nil {
				return nil, err
			}
			return []any{toAnySlice(keys)}, nil
		},
	})

	register(&Method{
		Operation:   "get_storage_quota",
		RPCID:       "EzwWhf",
		Description: "Fetch storage quota usage",
		Params:      map[string]string{},
		Build: func(p map[string]any) (any, error) {
			return []any{}, nil
		},
	})

	register(&Method{
		Operation:   "get_download_url",
		RPCID:       "pLFTfd",
		Description: "Fetch download URLs for items",
		Params: map[string]string{
			"mediaKeyArray": "media keys of the items",
			"authKey":       "auth key for shared albums",
		},
		Build: func(p map[string]any) (any, error) {
			keys, err := requireStrings(p, "mediaKeyArray")
			if err != nil {
				return nil, err
			}
			var authKey any
			if s := stringParam(p, "authKey"); s != "" {
				authKey = s
			}
			return []any{toAnySlice(keys), nil, authKey}, nil
		},
	})

	register(&Method{
		Operation:   "get_download_token",
		RPCID:       "yCLA7",
		Description: "Request a bulk download token",
		Params:      map[string]string{"mediaKeyArray": "media keys of the items"},
		Build: func(p map[string]any) (any, error) {
			keys, err := requireStrings(p, "mediaKeyArray")
			if err != nil {
				return nil, err
			}
			return []any{wrapEach(keys)}, nil
		},
	})

	register(&Method{
		Operation:   "check_download_token",
		RPCID:       "dnv2s",
		Description: "Poll a bulk download token until the archive is ready",
		Params:      map[string]string{"downloadToken": "token from get_download_token"},
		Build: func(p map[string]any) (any, error) {
			token, err := requireString(p, "downloadToken")
			if err != nil {
				return nil, err
			}
			return []any{[]any{token}}, nil
		},
	})

	register(&Method{
		Operation:   "remove_items_from_shared_album",
		RPCID:       "LjmOue",
		Description: "Remove items from a shared album",
		Params: map[string]string{
			"albumMediaKey": "media key of the shared album",
			"mediaKeyArray": "media keys of the items",
		},
		Destructive: true,
		Build: func(p map[string]any) (any, error) {
			albumKey, err := requireString(p, "albumMediaKey")
			if err != nil {
				return nil, err
			}
			keys, err := requireStrings(p, "mediaKeyArray")
			if err != nil {
				return nil, err
			}
			options := append([]any{nil, nil, nil, []any{nil, []any{}, []any{}}}, nulls(9)...)
			options = append(options, []any{})
			return []any{[]any{albumKey}, toAnySlice(keys), []any{options}}, nil
		},
	})

	register(&Method{
		Operation:   "save_shared_media_to_library",
		RPCID:       "V8RKJ",
		Description: "Save items from a shared album into the library",
		Params: map[string]string{
			"mediaKeyArray": "media keys of the items",
			"albumMediaKey": "media key of the shared album",
		},
		Build: func(p map[string]any) (any, error) {
			keys, err := requireStrings(p, "mediaKeyArray")
			if err != nil {
				return nil, err
			}
			var albumKey any
			if s := stringParam(p, "albumMediaKey"); s != "" {
				albumKey = s
			}
			return []any{toAnySlice(keys), nil, albumKey}, nil
		},
	})

	register(&Method{
		Operation:   "save_partner_shared_media_to_library",
		RPCID:       "Es7fke",
		Description: "Save partner-shared items into the library",
		Params:      map[string]string{"mediaKeyArray": "media keys of the items"},
		Build: func(p map[string]any) (any, error) {
			keys, err := requireStrings(p, "mediaKeyArray")
			if err != nil {
				return nil, err
			}
			return []any{wrapEach(keys)}, nil
		},
	})

	register(&Method{
		Operation:   "get_partner_shared_media",
		RPCID:       "e9T5je",
		Description: "Page through media shared by a partner account",
		Params: map[string]string{
			"pageId":         "opaque page cursor",
			"partnerActorId": "actor id of the partner",
			"gaiaId":         "gaia id of the partner",
		},
		Build: func(p map[string]any) (any, error) {
			var pageID any
			if s := stringParam(p, "pageId"); s != "" {
				pageID = s
			}
			partnerActorID := stringParam(p, "partnerActorId")
			var gaiaID any
			if s := stringParam(p, "gaiaId"); s != "" {
				gaiaID = s
			}
			return []any{pageID, nil, []any{
				nil,
				[]any{[]any{[]any{2, 1}}},
				[]any{partnerActorID},
				[]any{nil, gaiaID},
				1,
			}}, nil
		},
	})

	register(&Method{
		Operation:   "set_item_geo_data",
		RPCID:       "EtUHOe",
		Description: "Set the location of items",
		Params: map[string]string{
			"mediaKeyArray": "media keys of the items",
			"center":        "map center coordinates",
			"visibleRegion": "two corner coordinates of the visible region",
			"scale":         "map scale",
			"gMapsPlaceId":  "Google Maps place id",
		},
		Destructive: true,
		Build: func(p map[string]any) (any, error) {
			keys, err := requireStrings(p, "mediaKeyArray")
			if err != nil {
				return nil, err
			}
			region, _ := p["visibleRegion"].([]any)
			if len(region) != 2 {
				return nil, fmt.Errorf("param %q must hold two corner coordinates", "visibleRegion")
			}
			var scale any
			if v, ok := int64Param(p, "scale"); ok {
				scale = v
			}
			return []any{nullPrefixEach(keys), []any{
				2,
				p["center"],
				[]any{region[0], region[1]},
				[]any{nil, nil, scale},
				p["gMapsPlaceId"],
			}}, nil
		},
	})

	register(&Method{
		Operation:   "delete_item_geo_data",
		RPCID:       "EtUHOe",
		Description: "Remove the location of items",
		Params:      map[string]string{"mediaKeyArray": "media keys of the items"},
		Destructive: true,
		Build: func(p map[string]any) (any, error) {
			keys, err := requireStrings(p, "mediaKeyArray")
			if err != nil {
				return nil, err
			}
			return []any{nullPrefixEach(keys), []any{1}}, nil
		},
	})

	register(&Method{
		Operation:   "set_items_timestamp",
		RPCID:       "DaSgWe",
		Description: "Set the taken timestamp and timezone of items",
		Params: map[string]string{
			"items": "objects with dedupKey, timestampSec, and timezoneSec",
		},
		Destructive: true,
		Build: func(p map[string]any) (any, error) {
			items, _ := p["items"].([]any)
			if len(items) == 0 {
				return nil, fmt.Errorf("missing required param %q", "items")
			}
			rows := make([]any, 0, len(items))
			for _, raw := range items {
				item, ok := raw.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("param %q must hold objects", "items")
				}
				dedupKey, err := requireString(item, "dedupKey")
				if err != nil {
					return nil, err
				}
				timestampSec, ok := int64Param(item, "timestampSec")
				if !ok {
					return nil, fmt.Errorf("missing required param %q", "timestampSec")
				}
				timezoneSec, _ := int64Param(item, "timezoneSec")
				rows = append(rows, []any{dedupKey, timestampSec, timezoneSec})
			}
			return []any{rows}, nil
		},
	})

	register(&Method{
		Operation:   "set_item_description",
		RPCID:       "AQNOFd",
		Description: "Set the description of an item",
		Params: map[string]string{
			"dedupKey":    "dedup key of the item",
			"description": "new description text",
		},
		Destructive: true,
		Build: func(p map[string]any) (any, error) {
			dedupKey, err := requireString(p, "dedupKey")
			if err != nil {
				return nil, err
			}
			return []any{nil, stringParam(p, "description"), dedupKey}, nil
		},
	})

	register(&Method{
		Operation:   "get_item_info",
		RPCID:       "VrseUb",
		Description: "Fetch detail metadata and download URLs for one item",
		Params: map[string]string{
			"mediaKey":      "media key of the item",
			"authKey":       "auth key for shared albums",
			"albumMediaKey": "media key of the containing album",
		},
		Build: func(p map[string]any) (any, error) {
			mediaKey, err := requireString(p, "mediaKey")
			if err != nil {
				return nil, err
			}
			var authKey, albumKey any
			if s := stringParam(p, "authKey"); s != "" {
				authKey = s
			}
			if s := stringParam(p, "albumMediaKey"); s != "" {
				albumKey = s
			}
			return []any{mediaKey, nil, authKey, nil, albumKey}, nil
		},
	})

	register(&Method{
		Operation:   "get_item_info_ext",
		RPCID:       "fDcn4b",
		Description: "Fetch extended metadata (owner, albums, dedup key) for one item",
		Params: map[string]string{
			"mediaKey": "media key of the item",
			"authKey":  "auth key for shared albums",
		},
		Build: func(p map[string]any) (any, error) {
			mediaKey, err := requireString(p, "mediaKey")
			if err != nil {
				return nil, err
			}
			var authKey any
			if s := stringParam(p, "authKey"); s != "" {
				authKey = s
			}
			return []any{mediaKey, 1, authKey, nil, 1}, nil
		},
	})

	register(&Method{
		Operation:   "get_batch_media_info",
		RPCID:       "EWgK9e",
		Description: "Fetch file metadata for many items at once",
		Params:      map[string]string{"mediaKeyArray": "media keys of the items"},
		Build: func(p map[string]any) (any, error) {
			keys, err := requireStrings(p, "mediaKeyArray")
			if err != nil {
				return nil, err
			}
			options := append(nulls(24), []any{})
			options = append(options, nulls(10)...)
			options = append(options, []any{})
			return []any{[]any{
				[]any{wrapEach(keys)},
				[]any{options},
			}}, nil
		},
	})
}
