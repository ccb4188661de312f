package upload

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Cache maps file SHA-1 hashes to the media keys of already uploaded items,
// so re-running a bulk upload skips files the account already holds. The
// cache is a JSON file next to the database; losing it only costs re-checks
// against the remote hash index.
type Cache struct {
	mu      sync.Mutex
	path    string
	entries map[string]string
}

// OpenCache loads the cache file at path, creating an empty cache when the
// file does not exist yet.
func OpenCache(path string) (*Cache, error) {
	c := &Cache{path: path, entries: make(map[string]string)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("upload: read cache: %w", err)
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, fmt.Errorf("upload: malformed cache file: %w", err)
	}
	return c, nil
}

// Get returns the cached media key for a hash.
func (c *Cache) Get(sha1 string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, ok := c.entries[sha1]
	return key, ok
}

// Put records a hash to media key mapping and persists the cache.
func (c *Cache) Put(sha1, mediaKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sha1] = mediaKey
	return c.flushLocked()
}

// Replace swaps the whole cache content and persists it. Used by the
// update_cache operation after a full remote rescan.
func (c *Cache) Replace(entries map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]string, len(entries))
	for hash, key := range entries {
		c.entries[hash] = key
	}
	return c.flushLocked()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) flushLocked() error {
	data, err := json.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("upload: marshal cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("upload: create cache dir: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("upload: write cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("upload: replace cache: %w", err)
	}
	return nil
}
