package crawler

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/wikicrawl/internal/dom"
	"github.com/go-scripts/wikicrawl/internal/queue"
	"github.com/go-scripts/wikicrawl/internal/types"
)

// Sidebar reports the links currently reachable from the loaded page's
// navigation tree.
type Sidebar interface {
	Refresh(ctx context.Context) ([]types.Link, error)
}

// Extractor turns the loaded page into a record.
type Extractor interface {
	Extract(ctx context.Context, page dom.Page, sourceURL string) (types.PageRecord, error)
}

// Reporter is told about each visit as it happens.
type Reporter interface {
	StartProcessingPage(link types.Link)
	FinishProcessingPage(link types.Link, err error)
}

type nopReporter struct{}

func (nopReporter) StartProcessingPage(types.Link)        {}
func (nopReporter) FinishProcessingPage(types.Link, error) {}

// Options holds the crawler's optional collaborators
type Options struct {
	Progress Reporter
	Logger   *log.Logger
}

// Result is everything a crawl produced.
type Result struct {
	Pages   []types.CollectedPage
	Visited []string
}

// Crawler walks a wiki through its sidebar, one page at a time, on a
// single shared page.
type Crawler struct {
	page      dom.Page
	sidebar   Sidebar
	extractor Extractor
	progress  Reporter
	log       *log.Logger
}

// New creates a new Crawler instance
func New(page dom.Page, sidebar Sidebar, extractor Extractor, opts Options) *Crawler {
	c := &Crawler{
		page:      page,
		sidebar:   sidebar,
		extractor: extractor,
		progress:  opts.Progress,
		log:       opts.Logger,
	}
	if c.progress == nil {
		c.progress = nopReporter{}
	}
	if c.log == nil {
		c.log = log.Default()
	}
	return c
}

// Crawl loads startURL, takes links[start:end] of its sidebar as the
// initial frontier and keeps visiting until the frontier is empty. Links
// outside that range are never visited. Pages that fail to load or
// extract are logged and skipped. On cancellation the pages collected so
// far are returned together with the context error.
func (c *Crawler) Crawl(ctx context.Context, startURL string, start, end int) (Result, error) {
	f := queue.New()

	if err := c.page.Navigate(ctx, startURL); err != nil {
		return Result{}, fmt.Errorf("loading start page: %w", err)
	}

	links, err := c.sidebar.Refresh(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		c.log.Error("Sidebar not found on start page", "url", startURL, "err", err)
		return Result{Pages: []types.CollectedPage{}}, nil
	}
	c.log.Info("Sidebar links found", "count", len(links))

	work, excluded := SelectRange(links, start, end)
	for _, l := range excluded {
		f.Exclude(l.URL)
	}
	for _, l := range work {
		f.Push(l)
	}
	c.log.Info("Initial queue", "queued", f.Len(), "excluded", len(excluded))

	pages, err := c.run(ctx, f)
	result := Result{Pages: pages, Visited: f.Visited()}

	c.log.Info("Crawl finished", "visited", len(result.Visited), "pages", len(result.Pages))
	c.log.Info("Visited URLs", "urls", result.Visited)
	return result, err
}

func (c *Crawler) run(ctx context.Context, f *queue.Frontier) ([]types.CollectedPage, error) {
	pages := []types.CollectedPage{}
	for {
		if err := ctx.Err(); err != nil {
			return pages, err
		}

		link, ok := f.Pop()
		if !ok {
			return pages, nil
		}
		if !f.MarkVisited(link.URL) {
			continue
		}

		c.log.Info("Visiting", "text", link.Text, "url", link.URL)
		c.progress.StartProcessingPage(link)

		record, err := c.visit(ctx, link)
		c.progress.FinishProcessingPage(link, err)
		if err != nil {
			if ctx.Err() != nil {
				return pages, ctx.Err()
			}
			c.log.Error("Failed to crawl page", "url", link.URL, "err", err)
		} else {
			pages = append(pages, types.CollectedPage{URL: link.URL, Page: record})
			c.log.Info("Saved page", "title", record.Title, "sections", len(record.Sections))
		}

		c.discover(ctx, f)
	}
}

func (c *Crawler) visit(ctx context.Context, link types.Link) (types.PageRecord, error) {
	if err := c.page.Navigate(ctx, link.URL); err != nil {
		return types.PageRecord{}, err
	}
	return c.extractor.Extract(ctx, c.page, link.URL)
}

// discover queues links the current page's sidebar reveals.
func (c *Crawler) discover(ctx context.Context, f *queue.Frontier) {
	links, err := c.sidebar.Refresh(ctx)
	if err != nil {
		c.log.Debug("Sidebar not refreshed", "err", err)
		return
	}

	added := 0
	for _, l := range links {
		if f.Push(l) {
			added++
		}
	}
	if added > 0 {
		c.log.Debug("Queued new links", "added", added, "queued", f.Len())
	}
}

// SelectRange splits links into links[start:end] and everything else,
// clamping end to the list length. When the list has no more than start
// links, it selects links[:end] and excludes nothing.
func SelectRange(links []types.Link, start, end int) (work, excluded []types.Link) {
	start = max(start, 0)
	end = min(max(end, 0), len(links))

	if len(links) <= start {
		return append([]types.Link(nil), links[:end]...), nil
	}
	end = max(end, start)

	work = append([]types.Link(nil), links[start:end]...)
	excluded = append(excluded, links[:start]...)
	excluded = append(excluded, links[end:]...)
	return work, excluded
}
