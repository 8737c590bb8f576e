package htmldoc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/go-scripts/wikicrawl/internal/dom"
)

// ErrNoPage is returned by Root before the first Navigate.
var ErrNoPage = errors.New("no page loaded")

// Loader fetches the HTML served at url.
type Loader func(ctx context.Context, url string) (io.ReadCloser, error)

// Browser implements dom.Page by loading and parsing static HTML.
type Browser struct {
	load Loader

	// OnClick, when set, makes loaded pages interactive.
	OnClick ClickFunc

	current *Document
}

// NewBrowser returns a Browser that loads pages through load.
func NewBrowser(load Loader) *Browser {
	return &Browser{load: load}
}

// Navigate loads and parses url.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	rc, err := b.load(ctx, url)
	if err != nil {
		return fmt.Errorf("loading %s: %w", url, err)
	}
	defer rc.Close()

	doc, err := Parse(url, rc)
	if err != nil {
		return fmt.Errorf("loading %s: %w", url, err)
	}
	doc.onClick = b.OnClick
	b.current = doc
	return nil
}

// Root returns the current document root.
func (b *Browser) Root(ctx context.Context) (dom.Node, error) {
	if b.current == nil {
		return nil, ErrNoPage
	}
	return b.current.Root(ctx)
}

// HTTPLoader fetches pages with client, or http.DefaultClient when nil.
func HTTPLoader(client *http.Client) Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, url string) (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return resp.Body, nil
	}
}

// MapLoader serves pages from memory, keyed by URL.
func MapLoader(pages map[string]string) Loader {
	return func(ctx context.Context, url string) (io.ReadCloser, error) {
		html, ok := pages[url]
		if !ok {
			return nil, fmt.Errorf("no page for %s", url)
		}
		return io.NopCloser(strings.NewReader(html)), nil
	}
}

// FileLoader serves the file at path for any URL.
func FileLoader(path string) Loader {
	return func(ctx context.Context, url string) (io.ReadCloser, error) {
		return os.Open(path)
	}
}
