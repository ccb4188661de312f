package gphotos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, operation string, params map[string]any) any {
	t.Helper()
	m, err := Resolve(operation)
	require.NoError(t, err)
	request, err := m.Build(params)
	require.NoError(t, err)
	return request
}

func TestResolve(t *testing.T) {
	m, err := Resolve("get_trash_items")
	require.NoError(t, err)
	assert.Equal(t, "zy0IHe", m.RPCID)

	// The provider prefix is accepted and stripped.
	prefixed, err := Resolve("native-rpc.get_trash_items")
	require.NoError(t, err)
	assert.Same(t, m, prefixed)
}

func TestResolveUnknown(t *testing.T) {
	_, err := Resolve("native-rpc.frobnicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported native-rpc operation: native-rpc.frobnicate")
	assert.Contains(t, err.Error(), "get_items_by_taken_date")
}

func TestBuildTakenDate(t *testing.T) {
	request := build(t, "get_items_by_taken_date", map[string]any{
		"pageId":   "cursor",
		"timestamp": float64(1700000000000),
		"source":   "archive",
	})
	assert.Equal(t, []any{"cursor", int64(1700000000000), 500, nil, 1, 2}, request)

	// Unknown source falls back to "both".
	request = build(t, "get_items_by_taken_date", map[string]any{})
	assert.Equal(t, []any{nil, nil, 500, nil, 1, 3}, request)
}

func TestBuildUploadedDate(t *testing.T) {
	request := build(t, "get_items_by_uploaded_date", map[string]any{"pageId": "p2"})
	assert.Equal(t, []any{"", []any{[]any{4, "ra", 0, 0}}, "p2"}, request)
}

func TestBuildSearch(t *testing.T) {
	request := build(t, "search", map[string]any{"query": "beach"})
	assert.Equal(t, []any{"beach", nil, ""}, request)

	m, err := Resolve("search")
	require.NoError(t, err)
	_, err = m.Build(map[string]any{})
	assert.ErrorContains(t, err, `missing required param "query"`)
}

func TestBuildTrashOps(t *testing.T) {
	keys := []any{"dk1", "dk2"}

	request := build(t, "move_items_to_trash", map[string]any{"dedupKeyArray": keys})
	assert.Equal(t, []any{nil, 1, []any{"dk1", "dk2"}, 3}, request)

	request = build(t, "restore_from_trash", map[string]any{"dedupKeyArray": keys})
	assert.Equal(t, []any{nil, 3, []any{"dk1", "dk2"}, 2}, request)
}

func TestBuildAlbumOps(t *testing.T) {
	request := build(t, "get_albums", map[string]any{})
	assert.Equal(t, []any{nil, nil, nil, nil, 1, nil, nil, 100, []any{2}, 5}, request)

	request = build(t, "create_album", map[string]any{"albumName": "Trip"})
	assert.Equal(t, []any{"Trip", nil, 2}, request)

	// Existing album by key.
	request = build(t, "add_items_to_album", map[string]any{
		"mediaKeyArray": []any{"mk1"},
		"albumMediaKey": "album1",
	})
	assert.Equal(t, []any{[]any{"mk1"}, "album1"}, request)

	// New album by name takes precedence.
	request = build(t, "add_items_to_album", map[string]any{
		"mediaKeyArray": []any{"mk1"},
		"albumName":     "New",
	})
	assert.Equal(t, []any{[]any{"mk1"}, nil, "New"}, request)

	m, err := Resolve("add_items_to_album")
	require.NoError(t, err)
	_, err = m.Build(map[string]any{"mediaKeyArray": []any{"mk1"}})
	assert.ErrorContains(t, err, "either albumMediaKey or albumName")
}

func TestBuildSharedAlbumAdd(t *testing.T) {
	request := build(t, "add_items_to_shared_album", map[string]any{
		"mediaKeyArray": []any{"mk1", "mk2"},
		"albumMediaKey": "shared1",
	})
	assert.Equal(t, []any{
		"shared1",
		[]any{2, nil, []any{[]any{[]any{"mk1"}}, []any{[]any{"mk2"}}}, nil, nil, nil, []any{1}},
	}, request)
}

func TestBuildAlbumItemOrder(t *testing.T) {
	request := build(t, "set_album_item_order", map[string]any{
		"albumMediaKey": "album1",
		"mediaKeyArray": []any{"mk1"},
	})
	assert.Equal(t, []any{"album1", nil, 1, nil, []any{[]any{[]any{"mk1"}}}}, request)

	request = build(t, "set_album_item_order", map[string]any{
		"albumMediaKey":       "album1",
		"mediaKeyArray":       []any{"mk1"},
		"insertAfterMediaKey": "mk0",
	})
	assert.Equal(t, []any{
		"album1", nil, 3, nil,
		[]any{[]any{[]any{"mk1"}}},
		[]any{[]any{"mk0"}},
	}, request)
}

func TestBuildFlagOps(t *testing.T) {
	request := build(t, "set_favorite", map[string]any{
		"dedupKeyArray": []any{"dk1"},
		"action":        true,
	})
	assert.Equal(t, []any{[]any{[]any{nil, "dk1"}}, []any{1}}, request)

	request = build(t, "set_favorite", map[string]any{
		"dedupKeyArray": []any{"dk1"},
		"action":        false,
	})
	assert.Equal(t, []any{[]any{[]any{nil, "dk1"}}, []any{2}}, request)

	request = build(t, "set_archive", map[string]any{
		"dedupKeyArray": []any{"dk1"},
		"action":        true,
	})
	assert.Equal(t, []any{
		[]any{[]any{nil, []any{1}, []any{nil, "dk1"}}},
		nil, 1,
	}, request)
}

func TestBuildTimestamps(t *testing.T) {
	request := build(t, "set_items_timestamp", map[string]any{
		"items": []any{
			map[string]any{"dedupKey": "dk1", "timestampSec": float64(1700000000), "timezoneSec": float64(3600)},
		},
	})
	assert.Equal(t, []any{[]any{[]any{"dk1", int64(1700000000), int64(3600)}}}, request)
}

func TestBuildDownloadOps(t *testing.T) {
	request := build(t, "get_download_token", map[string]any{"mediaKeyArray": []any{"mk1", "mk2"}})
	assert.Equal(t, []any{[]any{[]any{"mk1"}, []any{"mk2"}}}, request)

	request = build(t, "check_download_token", map[string]any{"downloadToken": "tok"})
	assert.Equal(t, []any{[]any{"tok"}}, request)
}

func TestBuildGeoOps(t *testing.T) {
	request := build(t, "delete_item_geo_data", map[string]any{"mediaKeyArray": []any{"mk1"}})
	assert.Equal(t, []any{[]any{[]any{nil, "mk1"}}, []any{1}}, request)

	m, err := Resolve("set_item_geo_data")
	require.NoError(t, err)
	_, err = m.Build(map[string]any{"mediaKeyArray": []any{"mk1"}})
	assert.ErrorContains(t, err, "visibleRegion")
}

func TestDestructiveFlags(t *testing.T) {
	destructive := []string{
		"move_items_to_trash", "remove_items_from_album", "set_album_item_order",
		"set_favorite", "set_archive", "move_to_locked_folder",
		"remove_from_locked_folder", "remove_items_from_shared_album",
		"set_item_geo_data", "delete_item_geo_data", "set_items_timestamp",
		"set_item_description",
	}
	for _, op := range destructive {
		m, err := Resolve(op)
		require.NoError(t, err, op)
		assert.True(t, m.Destructive, op)
	}

	safe := []string{"get_trash_items", "restore_from_trash", "get_albums", "create_album", "get_storage_quota"}
	for _, op := range safe {
		m, err := Resolve(op)
		require.NoError(t, err, op)
		assert.False(t, m.Destructive, op)
	}
}

func TestSourcePathHints(t *testing.T) {
	for _, op := range []string{"get_locked_folder_items", "move_to_locked_folder", "remove_from_locked_folder"} {
		m, err := Resolve(op)
		require.NoError(t, err)
		assert.Equal(t, "/u/0/photos/lockedfolder", m.SourcePathHint, op)
	}
}
