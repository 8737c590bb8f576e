package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/wikicrawl/internal/dom"
	"github.com/go-scripts/wikicrawl/internal/sidebar"
	"github.com/go-scripts/wikicrawl/internal/types"
)

const start = "https://wiki.example/home"

func link(name string) types.Link {
	return types.Link{Text: name, URL: "https://wiki.example/" + name}
}

func links(names ...string) []types.Link {
	out := make([]types.Link, 0, len(names))
	for _, n := range names {
		out = append(out, link(n))
	}
	return out
}

// fakePage records navigations and fails the URLs in broken.
type fakePage struct {
	current string
	history []string
	broken  map[string]bool
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.history = append(p.history, url)
	if p.broken[url] {
		return fmt.Errorf("navigating to %s: net::ERR_CONNECTION_RESET", url)
	}
	p.current = url
	return nil
}

func (p *fakePage) Root(context.Context) (dom.Node, error) {
	return nil, errors.New("not used")
}

// fakeSidebar serves a scripted link list per loaded page, falling back
// to the start page's list.
type fakeSidebar struct {
	page  *fakePage
	trees map[string][]types.Link
	// missing pages have no sidebar at all
	missing map[string]bool
}

func (s *fakeSidebar) Refresh(context.Context) ([]types.Link, error) {
	if s.missing[s.page.current] {
		return nil, sidebar.ErrSidebarNotFound
	}
	if l, ok := s.trees[s.page.current]; ok {
		return l, nil
	}
	return s.trees[start], nil
}

type fakeExtractor struct {
	failing map[string]bool
	calls   []string
}

func (e *fakeExtractor) Extract(_ context.Context, _ dom.Page, url string) (types.PageRecord, error) {
	e.calls = append(e.calls, url)
	if e.failing[url] {
		return types.PageRecord{}, errors.New("extraction failed")
	}
	return types.PageRecord{SourceURL: url, Title: "T " + url, Sections: []types.Section{}}, nil
}

type recorder struct {
	started  []string
	finished map[string]error
}

func (r *recorder) StartProcessingPage(l types.Link) { r.started = append(r.started, l.URL) }
func (r *recorder) FinishProcessingPage(l types.Link, err error) {
	if r.finished == nil {
		r.finished = map[string]error{}
	}
	r.finished[l.URL] = err
}

func pageURLs(pages []types.CollectedPage) []string {
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		out = append(out, p.URL)
	}
	return out
}

func newCrawler(trees map[string][]types.Link) (*Crawler, *fakePage, *fakeSidebar, *fakeExtractor) {
	page := &fakePage{broken: map[string]bool{}}
	sb := &fakeSidebar{page: page, trees: trees, missing: map[string]bool{}}
	ex := &fakeExtractor{failing: map[string]bool{}}
	return New(page, sb, ex, Options{}), page, sb, ex
}

func TestCrawlHonoursRangeAndExclusions(t *testing.T) {
	initial := links("l0", "l1", "l2", "l3", "l4")
	c, page, _, _ := newCrawler(map[string][]types.Link{
		start: initial,
		// visiting l1 reveals a child page, and re-offers excluded links
		link("l1").URL: links("l0", "l1", "l1a", "l2", "l3", "l4"),
	})

	result, err := c.Crawl(context.Background(), start, 1, 3)
	require.NoError(t, err)

	want := []string{link("l1").URL, link("l2").URL, link("l1a").URL}
	assert.Equal(t, want, result.Visited)
	assert.Equal(t, want, pageURLs(result.Pages))
	assert.Equal(t, append([]string{start}, want...), page.history)
	assert.Equal(t, "T "+link("l2").URL, result.Pages[1].Page.Title)
}

func TestCrawlNeverVisitsTwice(t *testing.T) {
	c, page, _, _ := newCrawler(map[string][]types.Link{
		start:         links("a", "b", "a", "c"),
		link("a").URL: links("a", "b", "c", "b", "d"),
		link("b").URL: links("d", "a"),
	})

	result, err := c.Crawl(context.Background(), start, 0, 100)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, u := range result.Visited {
		assert.False(t, seen[u], "visited %s twice", u)
		seen[u] = true
	}
	assert.Equal(t, []string{link("a").URL, link("b").URL, link("c").URL, link("d").URL}, result.Visited)
	assert.Len(t, page.history, 5)
}

func TestCrawlSkipsFailedPages(t *testing.T) {
	c, page, sb, ex := newCrawler(map[string][]types.Link{
		start: links("a", "b", "c"),
	})
	page.broken[link("a").URL] = true
	ex.failing[link("b").URL] = true
	sb.missing[link("c").URL] = true

	rec := &recorder{}
	c.progress = rec

	result, err := c.Crawl(context.Background(), start, 0, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{link("c").URL}, pageURLs(result.Pages))
	assert.Len(t, result.Visited, 3)
	assert.Equal(t, []string{link("b").URL, link("c").URL}, ex.calls)

	assert.Equal(t, result.Visited, rec.started)
	assert.Error(t, rec.finished[link("a").URL])
	assert.Error(t, rec.finished[link("b").URL])
	assert.NoError(t, rec.finished[link("c").URL])
}

func TestCrawlWithoutSidebar(t *testing.T) {
	c, page, sb, ex := newCrawler(nil)
	sb.missing[start] = true

	result, err := c.Crawl(context.Background(), start, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, result.Pages)
	assert.Empty(t, result.Visited)
	assert.Equal(t, []string{start}, page.history)
	assert.Empty(t, ex.calls)
}

func TestCrawlStartPageFailure(t *testing.T) {
	c, page, _, _ := newCrawler(nil)
	page.broken[start] = true

	_, err := c.Crawl(context.Background(), start, 0, 10)
	assert.Error(t, err)
}

func TestCrawlShortListFallsBack(t *testing.T) {
	c, _, _, _ := newCrawler(map[string][]types.Link{
		start: links("a", "b"),
	})

	result, err := c.Crawl(context.Background(), start, 5, 1)
	require.NoError(t, err)
	// nothing is excluded, so b still arrives through the sidebar
	assert.Equal(t, []string{link("a").URL, link("b").URL}, result.Visited)
}

// cancellingExtractor cancels the crawl after its first page.
type cancellingExtractor struct {
	fakeExtractor
	cancel context.CancelFunc
}

func (e *cancellingExtractor) Extract(ctx context.Context, page dom.Page, url string) (types.PageRecord, error) {
	defer e.cancel()
	return e.fakeExtractor.Extract(ctx, page, url)
}

func TestCrawlCancelledKeepsCollectedPages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	page := &fakePage{}
	sb := &fakeSidebar{page: page, trees: map[string][]types.Link{start: links("a", "b", "c")}}
	ex := &cancellingExtractor{cancel: cancel}
	c := New(page, sb, ex, Options{})

	result, err := c.Crawl(ctx, start, 0, 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{link("a").URL}, pageURLs(result.Pages))
	assert.Equal(t, []string{link("a").URL}, result.Visited)
}

func TestSelectRange(t *testing.T) {
	all := links("l0", "l1", "l2", "l3", "l4")

	tests := []struct {
		name         string
		start, end   int
		wantWork     []types.Link
		wantExcluded []types.Link
	}{
		{"middle", 1, 3, links("l1", "l2"), links("l0", "l3", "l4")},
		{"end clamped", 3, 99, links("l3", "l4"), links("l0", "l1", "l2")},
		{"whole list", 0, 5, all, nil},
		{"start past list", 5, 2, links("l0", "l1"), nil},
		{"start past list, end clamped", 9, 99, all, nil},
		{"end before start", 3, 1, nil, all},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			work, excluded := SelectRange(all, tt.start, tt.end)
			assert.Equal(t, urlsOf(tt.wantWork), urlsOf(work))
			assert.Equal(t, urlsOf(tt.wantExcluded), urlsOf(excluded))
		})
	}
}

func urlsOf(l []types.Link) []string {
	var out []string
	for _, x := range l {
		out = append(out, x.URL)
	}
	return out
}
