package progress

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/briandowns/spinner"

	"github.com/go-scripts/wikicrawl/internal/types"
)

// CrawlSpinner shows the page currently being visited
type CrawlSpinner struct {
	s       *spinner.Spinner
	out     io.Writer
	visited int
	failed  int
	mu      sync.Mutex
}

// NewCrawlSpinner creates a spinner writing to out, or stderr when nil
func NewCrawlSpinner(out io.Writer) *CrawlSpinner {
	if out == nil {
		out = os.Stderr
	}
	return &CrawlSpinner{
		s:   spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(out)),
		out: out,
	}
}

// StartProcessingPage indicates that a page is being visited
func (c *CrawlSpinner) StartProcessingPage(link types.Link) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visited++
	c.s.Suffix = fmt.Sprintf(" [%d] %s", c.visited, formatSpinnerMessage(link.URL))
	c.s.Start()
}

// FinishProcessingPage indicates that a visit ended
func (c *CrawlSpinner) FinishProcessingPage(link types.Link, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Stop()
	if err != nil {
		c.failed++
	}
}

// Counts returns how many pages were visited and how many of them failed
func (c *CrawlSpinner) Counts() (visited, failed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visited, c.failed
}

// Helper method for formatting URLs in spinner messages
func formatSpinnerMessage(urlStr string) string {
	// Truncate URL if too long, counting runes
	maxLen := 40
	if utf8.RuneCountInString(urlStr) <= maxLen {
		return urlStr
	}

	// Keep the domain, then truncate the path
	u, err := url.Parse(urlStr)
	if err == nil && u.Host != "" && utf8.RuneCountInString(u.Host)+3 < maxLen {
		keep := maxLen - utf8.RuneCountInString(u.Host) - 3
		path := u.Path
		if utf8.RuneCountInString(path) > keep {
			path = "..." + lastRunes(path, keep)
		}
		return u.Host + path
	}
	return "..." + lastRunes(urlStr, maxLen)
}

func lastRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
