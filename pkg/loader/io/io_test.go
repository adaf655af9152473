package io

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/stencil/pkg/document"
	"github.com/OFFIS-RIT/stencil/pkg/loader"
)

func TestIODocumentLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(`<html><body><p>one</p></body></html>`), 0o644))

	l := NewIODocumentLoader()
	file := loader.DocumentFile{ID: "a", FilePath: path, Filter: document.DefaultFilter()}

	doc, err := l.Load(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, path, doc.Source)
	assert.Equal(t, "one", document.TextContent(doc.Root))

	// cached bytes survive removal of the file
	require.NoError(t, os.Remove(path))
	_, err = l.Load(context.Background(), file)
	assert.NoError(t, err)

	_, err = l.Load(context.Background(), loader.DocumentFile{ID: "b", FilePath: path})
	assert.Error(t, err)
}
