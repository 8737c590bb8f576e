package queue

import (
	"sync"

	"github.com/go-scripts/wikicrawl/internal/types"
)

// Frontier is the crawl's work queue: a FIFO of discovered links plus the
// visited and excluded URL sets that decide what may still enter it.
type Frontier struct {
	links    []types.Link
	queued   map[string]bool
	visited  map[string]bool
	excluded map[string]bool
	order    []string
	mu       sync.Mutex
}

// New creates an empty Frontier
func New() *Frontier {
	return &Frontier{
		links:    make([]types.Link, 0),
		queued:   make(map[string]bool),
		visited:  make(map[string]bool),
		excluded: make(map[string]bool),
	}
}

// Exclude permanently bars url from the queue
func (f *Frontier) Exclude(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.excluded[url] = true
}

// Push appends link unless its URL is visited, excluded or already queued
func (f *Frontier) Push(link types.Link) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.visited[link.URL] || f.excluded[link.URL] || f.queued[link.URL] {
		return false
	}

	f.links = append(f.links, link)
	f.queued[link.URL] = true
	return true
}

// Pop removes and returns the head of the queue
func (f *Frontier) Pop() (types.Link, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.links) == 0 {
		return types.Link{}, false
	}

	link := f.links[0]
	f.links = f.links[1:]
	delete(f.queued, link.URL)
	return link, true
}

// MarkVisited records url as visited. It reports false if url was already
// visited or is excluded.
func (f *Frontier) MarkVisited(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.visited[url] || f.excluded[url] {
		return false
	}
	f.visited[url] = true
	f.order = append(f.order, url)
	return true
}

// Len returns the number of queued links
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.links)
}

// Visited returns the visited URLs in visit order
func (f *Frontier) Visited() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}
