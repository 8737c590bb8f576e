package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-scripts/wikicrawl/internal/browser"
	"github.com/go-scripts/wikicrawl/internal/chunker"
	"github.com/go-scripts/wikicrawl/internal/config"
	"github.com/go-scripts/wikicrawl/internal/crawler"
	"github.com/go-scripts/wikicrawl/internal/document"
	"github.com/go-scripts/wikicrawl/internal/dom"
	"github.com/go-scripts/wikicrawl/internal/dom/htmldoc"
	"github.com/go-scripts/wikicrawl/internal/embed"
	"github.com/go-scripts/wikicrawl/internal/extract"
	"github.com/go-scripts/wikicrawl/internal/index"
	"github.com/go-scripts/wikicrawl/internal/indexer"
	"github.com/go-scripts/wikicrawl/internal/login"
	"github.com/go-scripts/wikicrawl/internal/progress"
	"github.com/go-scripts/wikicrawl/internal/sidebar"
	"github.com/go-scripts/wikicrawl/internal/writer"
	"github.com/go-scripts/wikicrawl/ui"
)

// CrawlCmd crawls the wiki starting from its sidebar
type CrawlCmd struct {
	StartURL  string `name:"start-url" short:"u" help:"Page whose sidebar seeds the crawl"`
	Start     int    `help:"First initial sidebar link to crawl (-1 keeps the configured value)" default:"-1"`
	End       int    `help:"Crawl initial sidebar links up to this index, exclusive (-1 keeps the configured value)" default:"-1"`
	OutputDir string `name:"output-dir" short:"o" help:"Directory for the collected pages" type:"path"`
	Headed    bool   `help:"Show the browser window"`
}

func (c *CrawlCmd) apply(cfg *config.Config) {
	if c.StartURL != "" {
		cfg.Crawl.StartURL = c.StartURL
	}
	if c.Start >= 0 {
		cfg.Crawl.StartIndex = c.Start
	}
	if c.End >= 0 {
		cfg.Crawl.EndIndex = c.End
	}
	if c.OutputDir != "" {
		cfg.Output.Dir = c.OutputDir
	}
	if c.Headed {
		cfg.Browser.Headless = false
	}
}

func (c *CrawlCmd) Run(app *App) error {
	cfg := app.cfg
	c.apply(cfg)
	if err := cfg.ValidateCrawl(); err != nil {
		return err
	}

	w, err := writer.New(cfg.Output.Dir)
	if err != nil {
		return err
	}

	session, err := openSession(app)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := signIn(app, session); err != nil {
		return err
	}

	spin := progress.NewCrawlSpinner(os.Stderr)
	cr := crawler.New(session, newNavigator(app, session), newExtractor(app), crawler.Options{
		Progress: spin,
		Logger:   app.log,
	})

	started := time.Now()
	result, crawlErr := cr.Crawl(app.ctx, cfg.Crawl.StartURL, cfg.Crawl.StartIndex, cfg.Crawl.EndIndex)
	if crawlErr != nil && len(result.Pages) == 0 {
		return crawlErr
	}

	path, err := w.WritePages(cfg.Output.PagesFile, result.Pages)
	if err != nil {
		return errors.Join(crawlErr, fmt.Errorf("saving collected pages: %w", err))
	}
	app.log.Info("Saved collected pages", "path", path, "pages", len(result.Pages))

	visited, failed := spin.Counts()
	fmt.Println(ui.RenderCrawlStats(ui.CrawlStats{
		Visited:    visited,
		Collected:  len(result.Pages),
		Failed:     failed,
		Elapsed:    time.Since(started),
		OutputPath: path,
	}))
	return crawlErr
}

// ExtractCmd extracts one page
type ExtractCmd struct {
	URL       string `arg:"" help:"Page to extract"`
	Static    bool   `help:"Fetch the page over plain HTTP instead of driving Chrome" xor:"source"`
	File      string `help:"Read the page from a saved HTML file; <url> resolves its links" type:"existingfile" xor:"source"`
	OutputDir string `name:"output-dir" short:"o" help:"Directory for the page record" type:"path"`
}

func (c *ExtractCmd) Run(app *App) error {
	cfg := app.cfg
	if c.OutputDir != "" {
		cfg.Output.Dir = c.OutputDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	w, err := writer.New(cfg.Output.Dir)
	if err != nil {
		return err
	}

	var page dom.Page
	switch {
	case c.File != "":
		page = htmldoc.NewBrowser(htmldoc.FileLoader(c.File))
	case c.Static:
		page = htmldoc.NewBrowser(htmldoc.HTTPLoader(&http.Client{Timeout: cfg.Browser.NavigateTimeout}))
	default:
		session, err := openSession(app)
		if err != nil {
			return err
		}
		defer session.Close()
		if err := signIn(app, session); err != nil {
			return err
		}
		page = session
	}

	if err := page.Navigate(app.ctx, c.URL); err != nil {
		return err
	}
	record, err := newExtractor(app).Extract(app.ctx, page, c.URL)
	if err != nil {
		return err
	}

	path, err := w.WriteRecord(record)
	if err != nil {
		return err
	}
	app.log.Info("Saved page record", "path", path, "title", record.Title, "sections", len(record.Sections))
	return nil
}

// IndexCmd embeds collected pages into the vector index
type IndexCmd struct {
	Pages string `help:"Collected pages file (defaults to the configured crawl output)" type:"path"`
	DB    string `help:"Index database path" type:"path"`
}

func (c *IndexCmd) Run(app *App) error {
	cfg := app.cfg
	if c.DB != "" {
		cfg.Index.DBPath = c.DB
	}
	if err := cfg.ValidateIndex(); err != nil {
		return err
	}

	path := c.Pages
	if path == "" {
		path = filepath.Join(cfg.Output.Dir, cfg.Output.PagesFile)
	}
	pages, err := writer.LoadPages(path)
	if err != nil {
		return err
	}
	app.log.Info("Loaded collected pages", "path", path, "pages", len(pages))

	ix, store, err := openIndexer(app, progress.New("Embedding", os.Stderr))
	if err != nil {
		return err
	}
	defer store.Close()

	started := time.Now()
	stats, err := ix.Run(app.ctx, pages)
	if err != nil {
		return err
	}
	fmt.Println(ui.RenderIndexStats(ui.IndexStats{
		Documents: stats.Documents,
		Indexed:   stats.Indexed,
		Unchanged: stats.Unchanged,
		Chunks:    stats.Chunks,
		Elapsed:   time.Since(started),
	}))
	return nil
}

// SearchCmd queries the vector index
type SearchCmd struct {
	Query []string `arg:"" help:"Search query"`
	K     int      `short:"k" help:"Number of results (0 keeps the configured value)"`
	DB    string   `help:"Index database path" type:"path"`
}

func (c *SearchCmd) Run(app *App) error {
	cfg := app.cfg
	if c.DB != "" {
		cfg.Index.DBPath = c.DB
	}
	if c.K > 0 {
		cfg.Index.TopK = c.K
	}
	if err := cfg.ValidateIndex(); err != nil {
		return err
	}

	ix, store, err := openIndexer(app, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	query := strings.Join(c.Query, " ")
	results, err := ix.Search(app.ctx, query, cfg.Index.TopK)
	if err != nil {
		return err
	}

	hits := make([]ui.SearchHit, len(results))
	for i, r := range results {
		hits[i] = ui.SearchHit{URL: r.URL, Title: r.Title, Content: r.Content, Distance: r.Distance}
	}
	fmt.Println(ui.RenderSearchResults(query, hits, 100))
	return nil
}

func openSession(app *App) (*browser.Session, error) {
	cfg := app.cfg.Browser
	return browser.NewSession(browser.Options{
		Headless:        cfg.Headless,
		UserAgent:       cfg.UserAgent,
		ExecPath:        cfg.ExecPath,
		NavigateTimeout: cfg.NavigateTimeout,
		Settle:          cfg.Settle,
	}, app.log)
}

func signIn(app *App, session *browser.Session) error {
	cfg := app.cfg.Login
	if !cfg.Enabled() {
		return nil
	}
	form := login.Form{
		URL:              cfg.URL,
		Username:         cfg.Username,
		Password:         cfg.Password,
		UsernameSelector: cfg.UsernameSelector,
		PasswordSelector: cfg.PasswordSelector,
		SubmitSelector:   cfg.SubmitSelector,
		OTPSelector:      cfg.OTPSelector,
		OTPMarker:        cfg.OTPMarker,
		Timeout:          cfg.Timeout,
	}
	if err := login.Login(app.ctx, session, form, login.LinePrompter(os.Stdin, os.Stderr), app.log); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

func newNavigator(app *App, page dom.Page) *sidebar.Navigator {
	cfg := app.cfg.Crawl
	return sidebar.New(page, sidebar.Options{
		Locators:       cfg.Locators,
		ExpandSelector: cfg.ExpandSelector,
		LinkSelector:   cfg.LinkSelector,
		LocateTimeout:  cfg.LocateTimeout,
		Settle:         cfg.Settle,
		MaxRestarts:    cfg.MaxRestarts,
		Logger:         app.log,
	})
}

func newExtractor(app *App) *extract.Extractor {
	cfg := app.cfg.Extract
	return extract.New(extract.Options{
		TitleTimeout: cfg.TitleTimeout,
		Images:       extract.ImagePolicy{Denylist: cfg.ImageDenylist},
		Retry:        dom.Retry{Attempts: cfg.StaleRetries + 1},
		Logger:       app.log,
	})
}

func openIndexer(app *App, prog indexer.Progress) (*indexer.Indexer, *index.Store, error) {
	cfg := app.cfg.Index

	provider, err := embed.NewProvider(app.cfg.Embedding)
	if err != nil {
		return nil, nil, err
	}
	retrying := embed.WithRetry(provider, embed.RetryOptions{
		Limiter: embed.NewRateLimiter(max(cfg.RequestRate, 1), time.Second/time.Duration(max(cfg.RequestRate, 1))),
		Logger:  app.log,
	})

	store, err := index.Open(cfg.DBPath, cfg.Dimension)
	if err != nil {
		return nil, nil, fmt.Errorf("opening index %s: %w", cfg.DBPath, err)
	}

	// The chunker reads a zero overlap as unset.
	overlap := cfg.ChunkOverlap
	if overlap == 0 {
		overlap = -1
	}

	ix := indexer.New(store, retrying, indexer.Options{
		Document: document.Options{
			AltFilters:    cfg.AltFilters,
			MinTextLength: cfg.MinTextLength,
		},
		Chunker: chunker.Config{
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: overlap,
		},
		BatchSize:   cfg.BatchSize,
		Concurrency: cfg.Concurrency,
		Progress:    prog,
		Logger:      app.log,
	})
	return ix, store, nil
}
