package image

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of decoded images kept around.
const DefaultCacheSize = 8

// Cache keeps recently decoded images keyed by path so stepping back and
// forth through a folder does not decode the same file twice. It is safe
// for concurrent use.
type Cache struct {
	entries *lru.Cache[string, *Source]
	load    func(string) (*Source, error)
}

// NewCache creates a cache holding up to size images.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, *Source](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create image cache: %w", err)
	}
	return &Cache{entries: entries, load: Load}, nil
}

// Load returns the cached image for path, decoding it on a miss. Failed
// loads are not cached.
func (c *Cache) Load(path string) (*Source, error) {
	if src, ok := c.entries.Get(path); ok {
		return src, nil
	}
	src, err := c.load(path)
	if err != nil {
		return nil, err
	}
	c.entries.Add(path, src)
	return src, nil
}

// Prefetch decodes path in the background if it is not cached yet.
func (c *Cache) Prefetch(path string) {
	if c.entries.Contains(path) {
		return
	}
	go func() {
		_, _ = c.Load(path)
	}()
}

// Forget drops path, e.g. after the file changed on disk.
func (c *Cache) Forget(path string) {
	c.entries.Remove(path)
}

// Purge empties the cache.
func (c *Cache) Purge() {
	c.entries.Purge()
}

// Len returns the number of cached images.
func (c *Cache) Len() int {
	return c.entries.Len()
}
