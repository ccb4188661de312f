package gphotos

// Parsers decode the positional response arrays of known rpcids into named
// fields. Every decoded payload keeps the original value under "raw" intact
// on the job result, so a parser gap never loses data: unknown rpcids and
// payloads whose shape defeats the parser fall back to a raw passthrough.

// Parse decodes an RPC payload by rpcid. The returned map always carries a
// "type" field naming the decoded shape; "raw" means no structured decoding
// happened.
func Parse(rpcID string, data any) map[string]any {
	parser, ok := parsers[rpcID]
	if !ok {
		return rawResult(data)
	}
	return safeParse(parser, data)
}

// safeParse shields callers from shape drift in the wire format. Every known
// rpcid replies with a top-level positional array; anything else means the
// wire format moved and the payload passes through raw. The node accessors
// are total, so the recover only guards future parsers that index
// differently.
func safeParse(parser func(node) map[string]any, data any) (result map[string]any) {
	if _, ok := data.([]any); !ok {
		return rawResult(data)
	}
	defer func() {
		if r := recover(); r != nil {
			result = rawResult(data)
		}
	}()
	return parser(nodeOf(data))
}

func rawResult(data any) map[string]any {
	return map[string]any{"type": "raw", "data": data}
}

var parsers = map[string]func(node) map[string]any{
	"lcxiM":  parseTimelinePage,
	"EzkLib": parseLibraryPage,
	"nMFwOc": parseLockedFolderPage,
	"F2A0H":  parseSharedLinks,
	"Z5xsfc": parseAlbums,
	"snAcKc": parseAlbumItems,
	"e9T5je": parsePartnerMedia,
	"zy0IHe": parseTrashPage,
	"VrseUb": parseItemInfo,
	"fDcn4b": parseItemInfoExt,
	"EWgK9e": parseBatchMediaInfo,
	"dnv2s":  parseDownloadTokenCheck,
	"EzwWhf": parseStorageQuota,
	"swbisb": parseRemoteMatches,
}

// -----------------------------------------------------------------------------
// Item-level decoders
// -----------------------------------------------------------------------------

// Tail keys of the library item metadata object. The tail is a sparse array
// serialized as an object keyed by large protobuf field numbers.
const (
	tailKeyFavorite    = "163238866"
	tailKeyDuration    = "76647426"
	tailKeyDescription = "396644657"
	tailKeyLivePhoto   = "146008172"
	tailKeyGeo         = "129168200"
	tailKeyAlbumMeta   = "72930366"
)

func parseLibraryItem(item node) map[string]any {
	tail := item.last()

	out := map[string]any{
		"mediaKey":          item.at(0).str(),
		"thumb":             item.at(1).at(0).str(),
		"resWidth":          item.at(1).at(1).intp(),
		"resHeight":         item.at(1).at(2).intp(),
		"timestamp":         item.at(2).intp(),
		"dedupKey":          item.at(3).str(),
		"timezoneOffset":    item.at(4).intp(),
		"creationTimestamp": item.at(5).intp(),
		"isPartialUpload":   item.at(12).at(0).int64Or(0) == 20,
		"isArchived":        item.at(13).truthy(),
		"isFavorite":        tail.key(tailKeyFavorite).at(0).truthy(),
	}
	if d := tail.key(tailKeyDuration).at(0).intp(); d != nil {
		out["duration"] = *d
	}
	if desc := tail.key(tailKeyDescription).at(0).strp(); desc != nil {
		out["descriptionShort"] = *desc
	}
	if live := tail.key(tailKeyLivePhoto); live.exists() {
		out["isLivePhoto"] = true
		out["livePhotoDuration"] = live.at(1).intp()
	}
	if geo := tail.key(tailKeyGeo).at(1); geo.exists() {
		out["geoLocation"] = geo.at(0).raw()
		if name := geo.at(4).at(0).at(1).at(0).at(0).strp(); name != nil {
			out["locationName"] = *name
		}
	}
	return out
}

func parseItems(list node) []any {
	items := make([]any, 0, len(list.list()))
	for _, raw := range list.list() {
		items = append(items, parseLibraryItem(nodeOf(raw)))
	}
	return items
}

func parseAlbum(item node) map[string]any {
	meta := item.last().key(tailKeyAlbumMeta)
	return map[string]any{
		"mediaKey":          item.at(0).str(),
		"thumb":             item.at(1).at(0).str(),
		"title":             meta.at(1).str(),
		"itemCount":         meta.at(3).intp(),
		"creationTimestamp": meta.at(2).at(4).intp(),
		"modifiedTimestamp": meta.at(2).at(9).intp(),
		"timeRange":         []any{meta.at(2).at(5).raw(), meta.at(2).at(6).raw()},
		"isShared":          meta.at(4).truthy(),
		"ownerActorId":      item.at(6).at(0).str(),
	}
}

func parseActor(actor node) map[string]any {
	return map[string]any{
		"actorId":         actor.at(0).str(),
		"gaiaId":          actor.at(1).str(),
		"name":            actor.at(11).at(0).str(),
		"gender":          actor.at(11).at(2).str(),
		"profilePhotoUrl": actor.at(12).at(0).str(),
	}
}

// -----------------------------------------------------------------------------
// Page-level decoders
// -----------------------------------------------------------------------------

func parseTimelinePage(data node) map[string]any {
	return map[string]any{
		"type":              "library_timeline_page",
		"items":             parseItems(data.at(0)),
		"nextPageId":        data.at(1).str(),
		"lastItemTimestamp": data.at(2).intp(),
	}
}

func parseLibraryPage(data node) map[string]any {
	return map[string]any{
		"type":       "library_page",
		"items":      parseItems(data.at(0)),
		"nextPageId": data.at(1).str(),
	}
}

func parseTrashPage(data node) map[string]any {
	return map[string]any{
		"type":       "trash_page",
		"items":      parseItems(data.at(0)),
		"nextPageId": data.at(1).str(),
	}
}

func parseLockedFolderPage(data node) map[string]any {
	return map[string]any{
		"type":       "locked_folder_page",
		"nextPageId": data.at(0).str(),
		"items":      parseItems(data.at(1)),
	}
}

func parseSharedLinks(data node) map[string]any {
	links := make([]any, 0, len(data.at(0).list()))
	for _, raw := range data.at(0).list() {
		link := nodeOf(raw)
		links = append(links, map[string]any{
			"mediaKey":  link.at(6).str(),
			"linkId":    link.at(17).str(),
			"itemCount": link.at(3).intp(),
		})
	}
	return map[string]any{
		"type":       "shared_links",
		"links":      links,
		"nextPageId": data.at(1).str(),
	}
}

func parseAlbums(data node) map[string]any {
	albums := make([]any, 0, len(data.at(0).list()))
	for _, raw := range data.at(0).list() {
		albums = append(albums, parseAlbum(nodeOf(raw)))
	}
	return map[string]any{
		"type":       "albums",
		"items":      albums,
		"nextPageId": data.at(1).str(),
	}
}

func parseAlbumItems(data node) map[string]any {
	meta := data.at(3)
	members := make([]any, 0, len(meta.at(9).list()))
	for _, raw := range meta.at(9).list() {
		members = append(members, parseActor(nodeOf(raw)))
	}
	return map[string]any{
		"type":       "album_items",
		"items":      parseItems(data.at(1)),
		"nextPageId": data.at(2).str(),
		"meta": map[string]any{
			"mediaKey":  meta.at(0).str(),
			"title":     meta.at(1).str(),
			"owner":     parseActor(meta.at(5)),
			"itemCount": meta.at(21).intp(),
			"authKey":   meta.at(19).str(),
			"members":   members,
		},
	}
}

func parsePartnerMedia(data node) map[string]any {
	members := make([]any, 0, len(data.at(2).list()))
	for _, raw := range data.at(2).list() {
		members = append(members, parseActor(nodeOf(raw)))
	}
	return map[string]any{
		"type":           "partner_shared_media",
		"nextPageId":     data.at(0).str(),
		"items":          parseItems(data.at(1)),
		"members":        members,
		"partnerActorId": data.at(4).str(),
		"gaiaId":         data.at(5).str(),
	}
}

func parseItemInfo(data node) map[string]any {
	media := data.at(0)
	meta := media.at(15)

	out := map[string]any{
		"type":                "item_info",
		"mediaKey":            media.at(0).str(),
		"isFavorite":          meta.key(tailKeyFavorite).at(0).truthy(),
		"downloadUrl":         data.at(1).str(),
		"downloadOriginalUrl": data.at(7).str(),
		"thumb":               data.at(12).at(0).str(),
	}
	if d := meta.key(tailKeyDuration).at(0).intp(); d != nil {
		out["duration"] = *d
	}
	if desc := data.at(10).strp(); desc != nil {
		out["descriptionFull"] = *desc
	}
	return out
}

func parseItemInfoExt(data node) map[string]any {
	item := data.at(0)

	owner := item.at(27).at(4).at(0)
	if !owner.exists() {
		owner = item.at(28)
	}

	albums := make([]any, 0, len(item.at(19).list()))
	for _, raw := range item.at(19).list() {
		albums = append(albums, parseAlbum(nodeOf(raw)))
	}

	return map[string]any{
		"type":     "item_info_ext",
		"mediaKey": item.at(0).str(),
		"dedupKey": item.at(11).str(),
		"owner":    parseActor(owner),
		"albums":   albums,
	}
}

func parseBatchMediaInfo(data node) map[string]any {
	items := make([]any, 0, len(data.at(0).list()))
	for _, raw := range data.at(0).list() {
		row := nodeOf(raw)
		mediaKey := row.at(0).str()
		if mediaKey == "" {
			mediaKey = row.at(0).at(0).str()
		}
		info := row.at(1)
		tail := info.last()
		items = append(items, map[string]any{
			"mediaKey":          mediaKey,
			"fileName":          info.at(3).str(),
			"size":              info.at(9).intp(),
			"timestamp":         info.at(6).intp(),
			"timezoneOffset":    info.at(7).intp(),
			"creationTimestamp": info.at(8).intp(),
			"takesUpSpace":      tail.at(0).int64Or(0) == 1,
			"spaceTaken":        tail.at(1).intp(),
			"isOriginalQuality": tail.at(2).int64Or(0) == 2,
		})
	}
	return map[string]any{
		"type":  "batch_media_info",
		"items": items,
	}
}

func parseDownloadTokenCheck(data node) map[string]any {
	archive := data.at(0).at(0).at(0).at(2).at(0)
	out := map[string]any{
		"type":  "download_token_check",
		"ready": archive.exists(),
	}
	if archive.exists() {
		out["fileName"] = archive.at(0).str()
		out["downloadUrl"] = archive.at(1).str()
		out["downloadSize"] = archive.at(2).intp()
		out["unzippedSize"] = archive.at(3).intp()
	}
	return out
}

func parseStorageQuota(data node) map[string]any {
	quota := data.at(6)
	return map[string]any{
		"type":           "storage_quota",
		"totalUsed":      quota.at(0).intp(),
		"totalAvailable": quota.at(1).intp(),
		"usedByGPhotos":  quota.at(3).intp(),
	}
}

func parseRemoteMatches(data node) map[string]any {
	matches := make([]any, 0, len(data.at(0).list()))
	for _, raw := range data.at(0).list() {
		row := nodeOf(raw)
		matches = append(matches, map[string]any{
			"hash": row.at(0).str(),
			"item": parseLibraryItem(row.at(1)),
		})
	}
	return map[string]any{
		"type":    "remote_matches",
		"matches": matches,
	}
}
