// Package dom defines the element handles the crawler drives. Handles are
// live: the page behind them may re-render at any time, after which every
// operation on an old handle fails with ErrStale.
package dom

import (
	"context"
	"errors"
)

var (
	// ErrStale is returned by any operation on a handle the page has invalidated.
	ErrStale = errors.New("stale element reference")

	// ErrNotFound is returned when a bounded wait gives up.
	ErrNotFound = errors.New("element not found")

	// ErrNotInteractive is returned by Click on pages that cannot be interacted with.
	ErrNotInteractive = errors.New("page is not interactive")

	// ErrRetriesExhausted is returned when a stale-retry bound is exceeded.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// Querier finds descendant elements by CSS selector in document order.
type Querier interface {
	QueryAll(ctx context.Context, selector string) ([]Node, error)
}

// Node is a handle to one element of a rendered page.
type Node interface {
	Querier

	// Tag returns the lower-case element name.
	Tag(ctx context.Context) (string, error)

	// Text returns the rendered text of the element.
	Text(ctx context.Context) (string, error)

	// Attr returns an attribute value, or "" when unset. href and src are
	// returned resolved against the page URL.
	Attr(ctx context.Context, name string) (string, error)

	// NextSiblings returns the following sibling elements in document order.
	NextSiblings(ctx context.Context) ([]Node, error)

	// Click activates the element.
	Click(ctx context.Context) error
}

// Page is the single navigation context shared by the crawl.
type Page interface {
	// Navigate loads url and waits for it to settle.
	Navigate(ctx context.Context, url string) error

	// Root returns a handle to the current document. Obtaining a new root
	// may invalidate handles taken from an earlier one.
	Root(ctx context.Context) (Node, error)
}

// IsStale reports whether err is or wraps ErrStale.
func IsStale(err error) bool {
	return errors.Is(err, ErrStale)
}
