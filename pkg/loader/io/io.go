package io

import (
	"context"
	"fmt"
	"os"

	"github.com/OFFIS-RIT/stencil/pkg/document"
	"github.com/OFFIS-RIT/stencil/pkg/loader"
)

// IODocumentLoader loads documents directly from the local filesystem with caching.
type IODocumentLoader struct {
	cache *loader.ByteCache
}

// NewIODocumentLoader creates a new filesystem-based document loader.
func NewIODocumentLoader() *IODocumentLoader {
	return &IODocumentLoader{
		cache: loader.NewByteCache(),
	}
}

// Load reads the file from the filesystem and parses it. Raw contents are cached.
func (l *IODocumentLoader) Load(ctx context.Context, file loader.DocumentFile) (*document.Document, error) {
	raw, err := l.cache.Fetch(loader.CacheKey(file), func() ([]byte, error) {
		return os.ReadFile(file.FilePath)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file.FilePath, err)
	}
	return loader.ParseDocument(file, raw)
}
