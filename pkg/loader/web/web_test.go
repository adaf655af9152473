package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/stencil/pkg/document"
	"github.com/OFFIS-RIT/stencil/pkg/loader"
)

const article = `<html><head><title>Release notes</title></head><body>
<article><h1>Release notes</h1><p class="byline">By Jane Roe</p>
<p>The new release adds structured harvesting for recurring page templates.
It learns one basis graph per source and reuses it for every later page.</p>
<p>Comment threads and nested lists are folded into recursive structures.</p>
</article></body></html>`

func TestWebDocumentLoader(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/article":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(article))
		case "/json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := NewWebDocumentLoaderWithClient(srv.Client())
	ctx := context.Background()

	file := loader.DocumentFile{ID: "1", FilePath: srv.URL + "/article", Filter: document.DefaultFilter()}
	doc, err := l.Load(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, "html", doc.Root.Tag)
	assert.Equal(t, "Release notes", doc.Title)

	_, err = l.Load(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	_, err = l.Load(ctx, loader.DocumentFile{ID: "2", FilePath: srv.URL + "/json"})
	assert.Error(t, err)

	_, err = l.Load(ctx, loader.DocumentFile{ID: "3", FilePath: srv.URL + "/missing"})
	assert.Error(t, err)
}
