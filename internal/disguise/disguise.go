// Package disguise embeds arbitrary files inside minimal but valid media
// containers, so they survive upload to services that only accept photos
// and videos. A disguised file is container bytes, a separator marker, then
// the original payload; extraction finds the marker and recovers the tail.
package disguise

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSeparator marks the boundary between the container and the payload.
const DefaultSeparator = "FILE_DATA_BEGIN"

// DefaultRestoredSuffix is appended to recovered file names so an extract
// into the source directory never overwrites the disguised original.
const DefaultRestoredSuffix = ".restored"

// Config controls the container type and framing of disguised files.
// The zero value produces image containers with the default separator.
type Config struct {
	Video          bool
	Separator      string
	RestoredSuffix string
}

func (c Config) separator() []byte {
	if c.Separator == "" {
		return []byte(DefaultSeparator)
	}
	return []byte(c.Separator)
}

func (c Config) restoredSuffix() string {
	if c.RestoredSuffix == "" {
		return DefaultRestoredSuffix
	}
	return c.RestoredSuffix
}

// pngStub is a complete 1x1 transparent PNG. Any image decoder accepts it
// and ignores the trailing payload bytes.
var pngStub = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 'I', 'H', 'D', 'R',
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4, 0x89,
	0x00, 0x00, 0x00, 0x0A, 'I', 'D', 'A', 'T',
	0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00, 0x05, 0x00, 0x01,
	0x0D, 0x0A, 0x2D, 0xB4,
	0x00, 0x00, 0x00, 0x00, 'I', 'E', 'N', 'D',
	0xAE, 0x42, 0x60, 0x82,
}

// mp4Stub is an MP4 file type box followed by an empty media data box.
var mp4Stub = []byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p',
	'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00,
	'i', 's', 'o', 'm', 'i', 's', 'o', '2',
	0x00, 0x00, 0x00, 0x08, 'm', 'd', 'a', 't',
}

// Hide wraps the file at inputPath into a media container and writes the
// disguised file to outputDir. Returns the path of the created file.
func Hide(inputPath, outputDir string, cfg Config) (string, error) {
	payload, err := os.ReadFile(inputPath)
	if err != nil {
		return "", fmt.Errorf("disguise: read input: %w", err)
	}

	stub, ext := pngStub, ".png"
	if cfg.Video {
		stub, ext = mp4Stub, ".mp4"
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("disguise: create output dir: %w", err)
	}

	outputPath := filepath.Join(outputDir, filepath.Base(inputPath)+ext)
	out := make([]byte, 0, len(stub)+len(cfg.separator())+len(payload))
	out = append(out, stub...)
	out = append(out, cfg.separator()...)
	out = append(out, payload...)

	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		return "", fmt.Errorf("disguise: write output: %w", err)
	}
	return outputPath, nil
}

// Extract recovers the payload from a disguised file and writes it to
// outputDir under its original name plus the restored suffix. Returns the
// path of the recovered file.
func Extract(inputPath, outputDir string, cfg Config) (string, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return "", fmt.Errorf("disguise: read input: %w", err)
	}

	separator := cfg.separator()
	idx := bytes.Index(data, separator)
	if idx < 0 {
		return "", fmt.Errorf("disguise: no embedded payload in %s", filepath.Base(inputPath))
	}
	payload := data[idx+len(separator):]

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("disguise: create output dir: %w", err)
	}

	name := originalName(filepath.Base(inputPath)) + cfg.restoredSuffix()
	outputPath := filepath.Join(outputDir, name)
	if err := os.WriteFile(outputPath, payload, 0o644); err != nil {
		return "", fmt.Errorf("disguise: write output: %w", err)
	}
	return outputPath, nil
}

// originalName strips the container extension Hide appended, leaving the
// embedded file's own name intact.
func originalName(name string) string {
	for _, ext := range []string{".png", ".mp4"} {
		if strings.HasSuffix(name, ext) && len(name) > len(ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}
