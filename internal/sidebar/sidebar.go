// Package sidebar finds, expands and reads the wiki's page tree.
package sidebar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/wikicrawl/internal/dom"
	"github.com/go-scripts/wikicrawl/internal/types"
)

// ErrSidebarNotFound is returned when no locator matched in time.
var ErrSidebarNotFound = errors.New("sidebar not found")

// DefaultLocators match the navigation panels of common Confluence themes.
var DefaultLocators = []string{
	`div[class*="panel"]`,
	`div[id*="main-navigation"]`,
	`nav[class*="aui-sidebar"]`,
	`div[class*="wiki-tree"]`,
}

const (
	DefaultExpandSelector = `span[class*="aui-iconfont-page-tree"]`
	DefaultLinkSelector   = "a"
)

// Options configures a Navigator. Zero values take the defaults.
type Options struct {
	Locators       []string
	ExpandSelector string
	LinkSelector   string
	LocateTimeout  time.Duration
	Settle         time.Duration
	PollInterval   time.Duration
	MaxRestarts    int
	Logger         *log.Logger
}

func (o Options) withDefaults() Options {
	if len(o.Locators) == 0 {
		o.Locators = DefaultLocators
	}
	if o.ExpandSelector == "" {
		o.ExpandSelector = DefaultExpandSelector
	}
	if o.LinkSelector == "" {
		o.LinkSelector = DefaultLinkSelector
	}
	if o.LocateTimeout <= 0 {
		o.LocateTimeout = 5 * time.Second
	}
	if o.Settle < 0 {
		o.Settle = 0
	}
	if o.MaxRestarts <= 0 {
		o.MaxRestarts = 5
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// Navigator works the sidebar of whatever page is loaded in its dom.Page.
type Navigator struct {
	page dom.Page
	opts Options
	log  *log.Logger
}

// New returns a Navigator over page.
func New(page dom.Page, opts Options) *Navigator {
	opts = opts.withDefaults()
	return &Navigator{page: page, opts: opts, log: opts.Logger}
}

// Locate tries each locator in order, each with its own timeout. A stale
// document restarts the search from a fresh root.
func (n *Navigator) Locate(ctx context.Context) (dom.Node, error) {
	var found dom.Node
	retry := dom.Retry{Attempts: n.opts.MaxRestarts + 1, Backoff: n.opts.PollInterval}
	err := retry.Do(ctx, func(ctx context.Context, _ int) error {
		root, err := n.page.Root(ctx)
		if err != nil {
			return err
		}
		for _, sel := range n.opts.Locators {
			node, err := dom.WaitFor(ctx, root, sel, n.opts.LocateTimeout, n.opts.PollInterval)
			if errors.Is(err, dom.ErrNotFound) {
				n.log.Debug("Sidebar locator timed out", "selector", sel)
				continue
			}
			if err != nil {
				return err
			}
			n.log.Debug("Sidebar located", "selector", sel)
			found = node
			return nil
		}
		return ErrSidebarNotFound
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// ExpandAll clicks every expand icon in the tree, including those revealed
// by earlier clicks. Each pass rescans the whole tree and clicks the first
// icon not tried yet, so trees that drop or replace an icon once it is
// clicked lose nothing. It only returns an error when ctx is done.
func (n *Navigator) ExpandAll(ctx context.Context, sidebar dom.Node) error {
	tried := make(map[string]bool)
	restarts, clicked := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		icons, err := sidebar.QueryAll(ctx, n.opts.ExpandSelector)
		if err != nil && !dom.IsStale(err) {
			n.log.Warn("Failed to scan sidebar for expand icons", "err", err)
			return ctx.Err()
		}
		var (
			icon dom.Node
			key  string
		)
		if err == nil {
			icon, key, err = n.nextIcon(ctx, icons, tried)
		}
		if err == nil {
			if icon == nil {
				n.log.Debug("Sidebar expanded", "clicks", clicked)
				return nil
			}

			before := n.linkCount(ctx, sidebar)
			err = icon.Click(ctx)
			switch {
			case err == nil:
				tried[key] = true
				clicked++
				restarts = 0
				n.settle(ctx, sidebar, before)
				continue
			case !dom.IsStale(err):
				if ctx.Err() != nil {
					return ctx.Err()
				}
				n.log.Debug("Skipping expand icon", "icon", key, "err", err)
				tried[key] = true
				continue
			}
		}

		restarts++
		if restarts > n.opts.MaxRestarts {
			n.log.Warn("Giving up sidebar expansion after repeated stale references", "restarts", restarts-1)
			return nil
		}
		sidebar, err = n.Locate(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			n.log.Debug("Sidebar lost during expansion", "err", err)
			return nil
		}
	}
}

// nextIcon returns the first icon whose key is not in tried, or nil when
// every icon has been tried.
func (n *Navigator) nextIcon(ctx context.Context, icons []dom.Node, tried map[string]bool) (dom.Node, string, error) {
	seen := make(map[string]int, len(icons))
	for _, icon := range icons {
		base, err := iconKey(ctx, icon)
		if err != nil {
			return nil, "", err
		}
		key := fmt.Sprintf("%s#%d", base, seen[base])
		seen[base]++
		if !tried[key] {
			return icon, key, nil
		}
	}
	return nil, "", nil
}

// iconKey names an icon by the href of the first link that follows it. The
// link stays put when the icon itself is removed or re-rendered. Icons
// without a following link share the empty key and are told apart by
// occurrence.
func iconKey(ctx context.Context, icon dom.Node) (string, error) {
	siblings, err := icon.NextSiblings(ctx)
	if err != nil {
		if dom.IsStale(err) {
			return "", err
		}
		return "", nil
	}
	for _, sib := range siblings {
		tag, err := sib.Tag(ctx)
		if err != nil {
			return "", err
		}
		if tag != "a" {
			continue
		}
		href, err := sib.Attr(ctx, "href")
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(href), nil
	}
	return "", nil
}

// settle waits for the tree to change after a click, bounded by Settle.
func (n *Navigator) settle(ctx context.Context, sidebar dom.Node, before int) {
	if n.opts.Settle == 0 {
		return
	}
	_, _ = dom.Until(ctx, n.opts.Settle, n.opts.PollInterval, func(ctx context.Context) (bool, error) {
		links, err := sidebar.QueryAll(ctx, n.opts.LinkSelector)
		if dom.IsStale(err) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		return len(links) != before, nil
	})
}

func (n *Navigator) linkCount(ctx context.Context, sidebar dom.Node) int {
	links, err := sidebar.QueryAll(ctx, n.opts.LinkSelector)
	if err != nil {
		return -1
	}
	return len(links)
}

// GatherLinks lists the tree's links in document order, skipping anchors
// without text or href. A stale reference restarts the enumeration from a
// re-located sidebar. When restarts run out, or the sidebar cannot be
// found again, it returns nil rather than links from an earlier call.
func (n *Navigator) GatherLinks(ctx context.Context, sidebar dom.Node) []types.Link {
	for restarts := 0; ; restarts++ {
		links, err := n.gather(ctx, sidebar)
		if err == nil {
			return links
		}
		if !dom.IsStale(err) {
			n.log.Warn("Failed to gather sidebar links", "err", err)
			return nil
		}
		if restarts >= n.opts.MaxRestarts {
			n.log.Warn("Giving up gathering sidebar links after repeated stale references", "restarts", restarts)
			return nil
		}

		sidebar, err = n.Locate(ctx)
		if err != nil {
			n.log.Debug("Sidebar lost while gathering links", "err", err)
			return nil
		}
	}
}

func (n *Navigator) gather(ctx context.Context, sidebar dom.Node) ([]types.Link, error) {
	anchors, err := sidebar.QueryAll(ctx, n.opts.LinkSelector)
	if err != nil {
		return nil, err
	}

	links := make([]types.Link, 0, len(anchors))
	for _, a := range anchors {
		text, err := a.Text(ctx)
		if err != nil {
			return nil, err
		}
		href, err := a.Attr(ctx, "href")
		if err != nil {
			return nil, err
		}
		text, href = strings.TrimSpace(text), strings.TrimSpace(href)
		if text == "" || href == "" {
			continue
		}
		links = append(links, types.Link{Text: text, URL: href})
	}
	return links, nil
}

// Refresh locates the sidebar, expands it fully, locates it again and
// returns its links.
func (n *Navigator) Refresh(ctx context.Context) ([]types.Link, error) {
	sidebar, err := n.Locate(ctx)
	if err != nil {
		return nil, err
	}
	if err := n.ExpandAll(ctx, sidebar); err != nil {
		return nil, err
	}
	sidebar, err = n.Locate(ctx)
	if err != nil {
		return nil, fmt.Errorf("relocating sidebar after expansion: %w", err)
	}
	return n.GatherLinks(ctx, sidebar), nil
}
