// Package htmldoc implements dom.Page over static HTML parsed with goquery.
// It serves server-rendered wikis without a browser, offline extraction of
// saved pages, and tests that need a page whose handles can go stale.
package htmldoc

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/go-scripts/wikicrawl/internal/dom"
)

// ClickFunc mutates doc in response to a click on clicked. Returning nil
// re-renders the page: every handle taken before the click goes stale.
type ClickFunc func(doc *goquery.Document, clicked *goquery.Selection) error

// Document is one parsed page.
type Document struct {
	base    *url.URL
	doc     *goquery.Document
	gen     int
	onClick ClickFunc
}

// Parse reads an HTML page that was served from rawURL.
func Parse(rawURL string, r io.Reader) (*Document, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing page url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	return &Document{base: base, doc: doc}, nil
}

// Root returns a handle to the whole document.
func (d *Document) Root(ctx context.Context) (dom.Node, error) {
	return &node{d: d, gen: d.gen, sel: d.doc.Selection}, nil
}

func (d *Document) resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return d.base.ResolveReference(u).String()
}

type node struct {
	d   *Document
	gen int
	sel *goquery.Selection
}

func (n *node) check() error {
	if n.gen != n.d.gen {
		return fmt.Errorf("%s: %w", goquery.NodeName(n.sel), dom.ErrStale)
	}
	return nil
}

func (n *node) wrap(sel *goquery.Selection) []dom.Node {
	out := make([]dom.Node, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &node{d: n.d, gen: n.gen, sel: s})
	})
	return out
}

func (n *node) Tag(ctx context.Context) (string, error) {
	if err := n.check(); err != nil {
		return "", err
	}
	return strings.ToLower(goquery.NodeName(n.sel)), nil
}

func (n *node) Text(ctx context.Context) (string, error) {
	if err := n.check(); err != nil {
		return "", err
	}
	return normalizeText(n.sel.Text()), nil
}

func (n *node) Attr(ctx context.Context, name string) (string, error) {
	if err := n.check(); err != nil {
		return "", err
	}
	v, ok := n.sel.Attr(name)
	if !ok {
		return "", nil
	}
	switch name {
	case "href", "src":
		if strings.TrimSpace(v) == "" {
			return "", nil
		}
		return n.d.resolve(v), nil
	}
	return v, nil
}

func (n *node) QueryAll(ctx context.Context, selector string) ([]dom.Node, error) {
	if err := n.check(); err != nil {
		return nil, err
	}
	return n.wrap(n.sel.Find(selector)), nil
}

func (n *node) NextSiblings(ctx context.Context) ([]dom.Node, error) {
	if err := n.check(); err != nil {
		return nil, err
	}
	return n.wrap(n.sel.NextAll()), nil
}

func (n *node) Click(ctx context.Context) error {
	if err := n.check(); err != nil {
		return err
	}
	if n.d.onClick == nil {
		return dom.ErrNotInteractive
	}
	if err := n.d.onClick(n.d.doc, n.sel); err != nil {
		return err
	}
	n.d.gen++
	return nil
}

// normalizeText collapses runs of whitespace the way rendered text reads.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
