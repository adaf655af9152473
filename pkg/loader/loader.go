package loader

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/OFFIS-RIT/stencil/pkg/document"
)

// DocumentFile names a document to load. ID distinguishes uploads that
// share a path.
type DocumentFile struct {
	ID       string
	FilePath string
	Filter   document.Filter
}

// CacheKey identifies a file in loader caches.
func CacheKey(file DocumentFile) string {
	return file.ID + ":" + file.FilePath
}

// DocumentLoader loads and parses a document. Implementations may read from
// disk, object storage or the web.
type DocumentLoader interface {
	Load(ctx context.Context, file DocumentFile) (*document.Document, error)
}

// ByteCache memoizes raw file contents and collapses concurrent fetches of
// the same key into one.
type ByteCache struct {
	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

func NewByteCache() *ByteCache {
	return &ByteCache{cache: make(map[string][]byte)}
}

// Fetch returns the cached bytes for key or calls fetch once to obtain them.
func (c *ByteCache) Fetch(key string, fetch func() ([]byte, error)) ([]byte, error) {
	c.cacheMu.RLock()
	if cached, ok := c.cache[key]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	result, err, _ := c.group.Do(key, func() (any, error) {
		c.cacheMu.RLock()
		if cached, ok := c.cache[key]; ok {
			c.cacheMu.RUnlock()
			return cached, nil
		}
		c.cacheMu.RUnlock()

		data, err := fetch()
		if err != nil {
			return nil, err
		}

		c.cacheMu.Lock()
		c.cache[key] = data
		c.cacheMu.Unlock()

		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// ParseDocument parses raw HTML for file.
func ParseDocument(file DocumentFile, raw []byte) (*document.Document, error) {
	root, err := document.ParseBytes(raw, file.Filter)
	if err != nil {
		return nil, err
	}
	return &document.Document{Source: file.FilePath, Root: root}, nil
}
