package gphotos

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestParseUnknownRPCID(t *testing.T) {
	result := Parse("xxxxx", []any{"a", "b"})
	assert.Equal(t, "raw", result["type"])
	assert.Equal(t, []any{"a", "b"}, result["data"])
}

func TestParseShapeDriftFallsBackToRaw(t *testing.T) {
	// A scalar where the quota parser expects an array must not panic.
	result := Parse("EzwWhf", "unexpected")
	assert.Equal(t, "raw", result["type"])
	assert.Equal(t, "unexpected", result["data"])

	// Same for an object reply where an array is expected.
	result = Parse("lcxiM", map[string]any{"error": "moved"})
	assert.Equal(t, "raw", result["type"])
}

func TestParseStorageQuota(t *testing.T) {
	data := decode(t, `[null,null,null,null,null,null,[10737418240,16106127360,null,5368709120]]`)
	result := Parse("EzwWhf", data)

	assert.Equal(t, "storage_quota", result["type"])
	assert.Equal(t, int64(10737418240), *result["totalUsed"].(*int64))
	assert.Equal(t, int64(16106127360), *result["totalAvailable"].(*int64))
	assert.Equal(t, int64(5368709120), *result["usedByGPhotos"].(*int64))
}

const libraryItemJSON = `[
	"mk1",
	["https://lh3.example/thumb1", 4032, 3024],
	1700000000000,
	"dk1",
	3600000,
	1700000100000,
	null, null, null, null, null, null,
	[20],
	1,
	{"163238866":[1],"76647426":[2000],"396644657":["a short description"],"146008172":[null,1500]}
]`

func TestParseTimelinePage(t *testing.T) {
	data := decode(t, `[[`+libraryItemJSON+`],"next-cursor",1690000000000]`)
	result := Parse("lcxiM", data)

	require.Equal(t, "library_timeline_page", result["type"])
	assert.Equal(t, "next-cursor", result["nextPageId"])
	assert.Equal(t, int64(1690000000000), *result["lastItemTimestamp"].(*int64))

	items := result["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)

	assert.Equal(t, "mk1", item["mediaKey"])
	assert.Equal(t, "https://lh3.example/thumb1", item["thumb"])
	assert.Equal(t, int64(4032), *item["resWidth"].(*int64))
	assert.Equal(t, int64(3024), *item["resHeight"].(*int64))
	assert.Equal(t, int64(1700000000000), *item["timestamp"].(*int64))
	assert.Equal(t, "dk1", item["dedupKey"])
	assert.Equal(t, int64(3600000), *item["timezoneOffset"].(*int64))
	assert.Equal(t, int64(1700000100000), *item["creationTimestamp"].(*int64))
	assert.Equal(t, true, item["isPartialUpload"])
	assert.Equal(t, true, item["isArchived"])
	assert.Equal(t, true, item["isFavorite"])
	assert.Equal(t, int64(2000), item["duration"])
	assert.Equal(t, "a short description", item["descriptionShort"])
	assert.Equal(t, true, item["isLivePhoto"])
	assert.Equal(t, int64(1500), *item["livePhotoDuration"].(*int64))
}

func TestParseLibraryPage(t *testing.T) {
	data := decode(t, `[[],"cursor-2"]`)
	result := Parse("EzkLib", data)
	assert.Equal(t, "library_page", result["type"])
	assert.Equal(t, "cursor-2", result["nextPageId"])
	assert.Empty(t, result["items"])
}

func TestParseLockedFolderPage(t *testing.T) {
	data := decode(t, `["cursor-3",[`+libraryItemJSON+`]]`)
	result := Parse("nMFwOc", data)
	assert.Equal(t, "locked_folder_page", result["type"])
	assert.Equal(t, "cursor-3", result["nextPageId"])
	assert.Len(t, result["items"], 1)
}

func TestParseAlbums(t *testing.T) {
	album := `[
		"album-mk",
		["https://lh3.example/cover"],
		null, null, null, null,
		["owner-actor"],
		null,
		{"72930366":[null,"Summer",[null,null,null,null,1690000000000,1680000000000,1699000000000,null,null,1695000000000],42,1]}
	]`
	data := decode(t, `[[`+album+`],"albums-cursor"]`)
	result := Parse("Z5xsfc", data)

	require.Equal(t, "albums", result["type"])
	assert.Equal(t, "albums-cursor", result["nextPageId"])

	items := result["items"].([]any)
	require.Len(t, items, 1)
	got := items[0].(map[string]any)
	assert.Equal(t, "album-mk", got["mediaKey"])
	assert.Equal(t, "Summer", got["title"])
	assert.Equal(t, int64(42), *got["itemCount"].(*int64))
	assert.Equal(t, int64(1690000000000), *got["creationTimestamp"].(*int64))
	assert.Equal(t, int64(1695000000000), *got["modifiedTimestamp"].(*int64))
	assert.Equal(t, true, got["isShared"])
	assert.Equal(t, "owner-actor", got["ownerActorId"])
}

func TestParseAlbumItems(t *testing.T) {
	actor := `["actor-1","gaia-1",null,null,null,null,null,null,null,null,null,["Jane Doe",null,"FEMALE"],["https://lh3.example/avatar"]]`
	data := decode(t, `[null,[`+libraryItemJSON+`],"page-cursor",["album-mk","Trip",null,null,null,`+actor+`,null,null,null,[`+actor+`],null,null,null,null,null,null,null,null,null,"auth-key",null,17]]`)
	result := Parse("snAcKc", data)

	require.Equal(t, "album_items", result["type"])
	assert.Equal(t, "page-cursor", result["nextPageId"])
	assert.Len(t, result["items"], 1)

	meta := result["meta"].(map[string]any)
	assert.Equal(t, "album-mk", meta["mediaKey"])
	assert.Equal(t, "Trip", meta["title"])
	assert.Equal(t, "auth-key", meta["authKey"])
	assert.Equal(t, int64(17), *meta["itemCount"].(*int64))

	owner := meta["owner"].(map[string]any)
	assert.Equal(t, "actor-1", owner["actorId"])
	assert.Equal(t, "Jane Doe", owner["name"])
	assert.Equal(t, "https://lh3.example/avatar", owner["profilePhotoUrl"])

	members := meta["members"].([]any)
	require.Len(t, members, 1)
}

func TestParseDownloadTokenCheck(t *testing.T) {
	pending := decode(t, `[[[["x","y",null]]]]`)
	result := Parse("dnv2s", pending)
	assert.Equal(t, "download_token_check", result["type"])
	assert.Equal(t, false, result["ready"])

	ready := decode(t, `[[[["x","y",[["photos.zip","https://dl.example/archive",1048576,2097152]]]]]]`)
	result = Parse("dnv2s", ready)
	assert.Equal(t, true, result["ready"])
	assert.Equal(t, "photos.zip", result["fileName"])
	assert.Equal(t, "https://dl.example/archive", result["downloadUrl"])
	assert.Equal(t, int64(1048576), *result["downloadSize"].(*int64))
	assert.Equal(t, int64(2097152), *result["unzippedSize"].(*int64))
}

func TestParseBatchMediaInfo(t *testing.T) {
	row := `[["mk1"],[null,null,null,"IMG_0001.JPG",null,null,1700000000000,3600000,1700000100000,123456,[1,98765,2]]]`
	data := decode(t, `[[`+row+`]]`)
	result := Parse("EWgK9e", data)

	require.Equal(t, "batch_media_info", result["type"])
	items := result["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)

	assert.Equal(t, "mk1", item["mediaKey"])
	assert.Equal(t, "IMG_0001.JPG", item["fileName"])
	assert.Equal(t, int64(123456), *item["size"].(*int64))
	assert.Equal(t, int64(1700000000000), *item["timestamp"].(*int64))
	assert.Equal(t, true, item["takesUpSpace"])
	assert.Equal(t, int64(98765), *item["spaceTaken"].(*int64))
	assert.Equal(t, true, item["isOriginalQuality"])
}

func TestParseRemoteMatches(t *testing.T) {
	data := decode(t, `[[["aGFzaA",`+libraryItemJSON+`]]]`)
	result := Parse("swbisb", data)

	require.Equal(t, "remote_matches", result["type"])
	matches := result["matches"].([]any)
	require.Len(t, matches, 1)
	match := matches[0].(map[string]any)
	assert.Equal(t, "aGFzaA", match["hash"])
	assert.Equal(t, "mk1", match["item"].(map[string]any)["mediaKey"])
}

func TestNodeAccessors(t *testing.T) {
	n := nodeOf(decode(t, `["a",["b","c"],{"5":"sparse"},7]`))

	assert.Equal(t, "a", n.at(0).str())
	assert.Equal(t, "c", n.at(1).at(1).str())
	// Negative indices count from the end.
	assert.Equal(t, int64(7), n.at(-1).int64Or(0))
	// Sparse arrays arrive as objects keyed by index.
	assert.Equal(t, "sparse", n.at(2).at(5).str())
	// Out of range never panics.
	assert.False(t, n.at(9).exists())
	assert.False(t, n.at(9).at(3).key("x").exists())
	assert.Equal(t, "", n.at(9).str())
}
