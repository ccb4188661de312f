package disguise

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHideExtractRoundTrip(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("secret archive contents\x00\x01\x02 with binary bytes")
	input := filepath.Join(dir, "backup.tar.gz")
	require.NoError(t, os.WriteFile(input, payload, 0o644))

	hidden, err := Hide(input, filepath.Join(dir, "out"), Config{})
	require.NoError(t, err)
	assert.Equal(t, "backup.tar.gz.png", filepath.Base(hidden))

	// The disguised file starts with a valid PNG signature.
	data, err := os.ReadFile(hidden)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}))

	restored, err := Extract(hidden, filepath.Join(dir, "restored"), Config{})
	require.NoError(t, err)
	assert.Equal(t, "backup.tar.gz.restored", filepath.Base(restored))

	got, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestHideVideoContainer(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(input, []byte("hello"), 0o644))

	hidden, err := Hide(input, dir, Config{Video: true})
	require.NoError(t, err)
	assert.Equal(t, "notes.txt.mp4", filepath.Base(hidden))

	data, err := os.ReadFile(hidden)
	require.NoError(t, err)
	assert.Equal(t, []byte("ftyp"), data[4:8])
}

func TestCustomSeparatorAndSuffix(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(input, []byte("pdf-bytes"), 0o644))

	cfg := Config{Separator: "--CUSTOM--", RestoredSuffix: ".orig"}
	hidden, err := Hide(input, dir, cfg)
	require.NoError(t, err)

	// The default separator must not find a payload framed by a custom one.
	_, err = Extract(hidden, dir, Config{})
	assert.ErrorContains(t, err, "no embedded payload")

	restored, err := Extract(hidden, dir, cfg)
	require.NoError(t, err)
	assert.Equal(t, "doc.pdf.orig", filepath.Base(restored))

	got, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf-bytes"), got)
}

func TestExtractPayloadContainingSeparatorPrefix(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("data FILE_DATA_ but not the full marker")
	input := filepath.Join(dir, "x.bin")
	require.NoError(t, os.WriteFile(input, payload, 0o644))

	hidden, err := Hide(input, dir, Config{})
	require.NoError(t, err)
	restored, err := Extract(hidden, dir, Config{})
	require.NoError(t, err)

	got, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}
