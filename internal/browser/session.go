// Package browser drives one Chrome tab through chromedp and exposes its
// live DOM as dom.Node handles.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"

	"github.com/go-scripts/wikicrawl/internal/dom"
)

// Options configures the browser session.
type Options struct {
	Headless        bool
	UserAgent       string
	ExecPath        string
	NavigateTimeout time.Duration // bound on a single navigation
	Settle          time.Duration // bound on waiting for document.readyState
	PollInterval    time.Duration
}

// Session owns a browser process and a single tab. It is not safe for
// concurrent use; the crawl drives it sequentially.
type Session struct {
	opts        Options
	logger      *log.Logger
	tab         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
}

// NewSession starts the browser. Callers must Close the session.
func NewSession(opts Options, logger *log.Logger) (*Session, error) {
	if logger == nil {
		logger = log.Default()
	}
	if opts.NavigateTimeout <= 0 {
		opts.NavigateTimeout = 60 * time.Second
	}
	if opts.Settle <= 0 {
		opts.Settle = 2 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
	)
	if !opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tab, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Debugf))

	// An empty Run launches the browser and attaches the tab.
	if err := chromedp.Run(tab); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	return &Session{
		opts:        opts,
		logger:      logger,
		tab:         tab,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
	}, nil
}

// Close shuts the tab and the browser down.
func (s *Session) Close() {
	s.tabCancel()
	s.allocCancel()
}

// Run executes chromedp actions against the tab.
func (s *Session) Run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.tab, s.opts.NavigateTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits until the document reports it is complete.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.Run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}

	ready, err := dom.Until(ctx, s.opts.Settle, s.opts.PollInterval, func(ctx context.Context) (bool, error) {
		var state string
		if err := chromedp.Evaluate(`document.readyState`, &state).Do(s.exec(ctx)); err != nil {
			return false, nil
		}
		return state == "complete", nil
	})
	if err != nil {
		return err
	}
	if !ready {
		s.logger.Debug("Page did not report complete before settle timeout", "url", url, "settle", s.opts.Settle)
	}
	return nil
}

// Root returns a handle to the current document. Every call re-binds the
// document, so handles from an earlier root go stale.
func (s *Session) Root(ctx context.Context) (dom.Node, error) {
	doc, err := cdpdom.GetDocument().WithDepth(0).Do(s.exec(ctx))
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", mapError(err))
	}
	return &node{s: s, id: doc.NodeID, tag: "#document"}, nil
}

// exec attaches the tab's executor to ctx so cdproto commands can run
// under the caller's deadline.
func (s *Session) exec(ctx context.Context) context.Context {
	return cdp.WithExecutor(ctx, chromedp.FromContext(s.tab).Target)
}

// Source returns the serialized HTML of the current document.
func (s *Session) Source(ctx context.Context) (string, error) {
	var html string
	if err := s.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading page source: %w", err)
	}
	return html, nil
}
