package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"codeberg.org/readeck/go-readability/v2"

	"github.com/OFFIS-RIT/stencil/pkg/document"
	"github.com/OFFIS-RIT/stencil/pkg/loader"
	"github.com/OFFIS-RIT/stencil/pkg/logger"
)

// WebDocumentLoader fetches documents from web URLs. The full page is kept
// for structural learning; readability is only used to find the title and
// byline.
type WebDocumentLoader struct {
	client *http.Client
	cache  *loader.ByteCache
}

// NewWebDocumentLoader creates a web loader using http.DefaultClient.
func NewWebDocumentLoader() *WebDocumentLoader {
	return NewWebDocumentLoaderWithClient(http.DefaultClient)
}

// NewWebDocumentLoaderWithClient creates a web loader with a custom client.
func NewWebDocumentLoaderWithClient(client *http.Client) *WebDocumentLoader {
	return &WebDocumentLoader{
		client: client,
		cache:  loader.NewByteCache(),
	}
}

// Load fetches the URL and parses the response as HTML.
func (l *WebDocumentLoader) Load(ctx context.Context, file loader.DocumentFile) (*document.Document, error) {
	raw, err := l.cache.Fetch(loader.CacheKey(file), func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.FilePath, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := l.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch url: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("failed to fetch url: status %d", resp.StatusCode)
		}
		contentType := resp.Header.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "html") && !strings.Contains(contentType, "xml") {
			return nil, fmt.Errorf("unsupported content type %q", contentType)
		}

		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}

	doc, err := loader.ParseDocument(file, raw)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(file.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse url: %w", err)
	}
	article, err := readability.FromReader(bytes.NewReader(raw), u)
	if err != nil {
		logger.Debug("[Loader] readability failed", "url", file.FilePath, "err", err)
		return doc, nil
	}
	doc.Title = article.Title()
	doc.Byline = article.Byline()

	return doc, nil
}
