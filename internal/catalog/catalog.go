// Package catalog exposes the full operation surface of the server: every
// provider operation a job can run, with its parameters and destructiveness.
// The HTTP layer serves it for discovery and the job boundary consults it
// for the destructive-operation safety gate.
package catalog

import (
	"sort"
	"strings"

	"github.com/photark-io/photark/internal/gphotos"
)

// Entry describes one operation a job may execute.
type Entry struct {
	Provider    string            `json:"provider"`
	Operation   string            `json:"operation"`
	Description string            `json:"description"`
	Params      map[string]string `json:"params"`
	Destructive bool              `json:"destructive"`
	RPCID       string            `json:"rpcid,omitempty"`
}

// statics lists the operations of the non-RPC providers. The native-rpc
// entries are generated from the gphotos method registry.
var statics = []Entry{
	{
		Provider:    "bulk-upload",
		Operation:   "bulk-upload.upload",
		Description: "Upload local media files, optionally into an album",
		Params: map[string]string{
			"target":             "file or directory to upload",
			"recursive":          "descend into subdirectories",
			"threads":            "concurrent uploads",
			"album_name":         "album to add uploaded items to",
			"use_quota":          "upload at original quality",
			"saver":              "upload at storage-saver quality",
			"force_upload":       "skip the local hash cache",
			"delete_from_host":   "remove local files after upload",
			"filter_exp":         "filename filter expression",
			"filter_exclude":     "invert the filter",
			"filter_regex":       "treat the filter as a regular expression",
			"filter_ignore_case": "case-insensitive filter matching",
			"filter_path":        "match the filter against the full path",
		},
	},
	{
		Provider:    "bulk-upload",
		Operation:   "bulk-upload.move_to_trash",
		Description: "Move uploaded items to the remote trash by hash",
		Params:      map[string]string{"sha1_hashes": "SHA-1 hashes of the items"},
		Destructive: true,
	},
	{
		Provider:    "bulk-upload",
		Operation:   "bulk-upload.add_to_album",
		Description: "Add already uploaded items to an album",
		Params: map[string]string{
			"media_keys":    "media keys of the items",
			"album_name":    "album to add the items to",
			"show_progress": "emit per-item progress events",
		},
	},
	{
		Provider:    "bulk-upload",
		Operation:   "bulk-upload.get_media_key_by_hash",
		Description: "Look up the media key of an uploaded file by hash",
		Params:      map[string]string{"sha1_hash": "SHA-1 hash of the file"},
	},
	{
		Provider:    "bulk-upload",
		Operation:   "bulk-upload.update_cache",
		Description: "Rebuild the local upload hash cache",
		Params:      map[string]string{"show_progress": "emit per-item progress events"},
	},
	{
		Provider:    "file-disguise",
		Operation:   "file-disguise.hide",
		Description: "Embed arbitrary files inside valid media containers",
		Params: map[string]string{
			"files":     "files or glob patterns to disguise",
			"type":      "container type, image or video",
			"output":    "output directory",
			"separator": "marker between container and payload",
		},
	},
	{
		Provider:    "file-disguise",
		Operation:   "file-disguise.extract",
		Description: "Recover files embedded by the hide operation",
		Params: map[string]string{
			"files":     "disguised files or glob patterns",
			"output":    "output directory",
			"separator": "marker between container and payload",
			"suffix":    "suffix appended to recovered file names",
		},
	},
	{
		Provider:    "explorer",
		Operation:   "explorer.refresh_index",
		Description: "Rebuild the local media index from the remote library",
		Params: map[string]string{
			"force_full":       "drop the index before rebuilding",
			"sync_memberships": "walk every album to rebuild membership",
		},
	},
	{
		Provider:    "native-rpc",
		Operation:   "native-rpc.rpc_execute",
		Description: "Execute a raw RPC with a caller-built request frame",
		Params: map[string]string{
			"rpcid":          "rpcid to call",
			"requestData":    "request frame, positionally encoded",
			"sourcePath":     "bootstrap page override",
			"forceBootstrap": "bootstrap a fresh session first",
		},
	},
}

// destructiveHints matches operation short names that mutate remote state
// even when the operation is not in the catalog (raw rpc_execute wrappers,
// future methods). Substring match on the lowercased short name.
var destructiveHints = []string{
	"move_to_trash",
	"move_items_to_trash",
	"set_items_timestamp",
	"set_timestamp",
	"set_archive",
	"set_favorite",
	"remove_items",
	"delete_item_geo_data",
	"move_to_locked_folder",
	"remove_from_locked_folder",
}

var (
	entries          []Entry
	entriesByOp      map[string]Entry
	destructiveNames map[string]bool
)

func init() {
	entries = append(entries, statics...)
	for _, m := range gphotos.Methods() {
		entries = append(entries, Entry{
			Provider:    "native-rpc",
			Operation:   gphotos.ProviderPrefix + m.Operation,
			Description: m.Description,
			Params:      m.Params,
			Destructive: m.Destructive,
			RPCID:       m.RPCID,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Provider != entries[j].Provider {
			return entries[i].Provider < entries[j].Provider
		}
		return entries[i].Operation < entries[j].Operation
	})

	entriesByOp = make(map[string]Entry, len(entries))
	destructiveNames = make(map[string]bool)
	for _, e := range entries {
		entriesByOp[e.Operation] = e
		if e.Destructive {
			destructiveNames[e.Operation] = true
			destructiveNames[shortName(e.Operation)] = true
		}
	}
}

// Entries returns all operations sorted by provider and operation name.
func Entries() []Entry {
	return entries
}

// Lookup returns the catalog entry for an operation name.
func Lookup(operation string) (Entry, bool) {
	e, ok := entriesByOp[operation]
	return e, ok
}

// IsDestructive reports whether an operation mutates remote state. Known
// operations answer from the catalog; unknown ones fall back to name hints
// so a new mutating RPC is gated conservatively rather than waved through.
func IsDestructive(operation string) bool {
	if destructiveNames[operation] || destructiveNames[shortName(operation)] {
		return true
	}
	if _, known := entriesByOp[operation]; known {
		return false
	}
	name := strings.ToLower(shortName(operation))
	for _, hint := range destructiveHints {
		if strings.Contains(name, hint) {
			return true
		}
	}
	return false
}

// Provider returns the provider prefix of an operation name, defaulting to
// native-rpc for bare short names.
func Provider(operation string) string {
	if prefix, _, ok := strings.Cut(operation, "."); ok && prefix != "" {
		return prefix
	}
	return "native-rpc"
}

func shortName(operation string) string {
	if i := strings.LastIndex(operation, "."); i >= 0 {
		return operation[i+1:]
	}
	return operation
}
