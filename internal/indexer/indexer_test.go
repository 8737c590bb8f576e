//go:build cgo

package indexer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/wikicrawl/internal/chunker"
	"github.com/go-scripts/wikicrawl/internal/index"
	"github.com/go-scripts/wikicrawl/internal/types"
)

// fakeProvider maps each text to a 4-dim vector keyed on the topic it
// mentions. A non-zero dim cuts the vectors short.
type fakeProvider struct {
	mu    sync.Mutex
	calls int
	texts []string
	err   error
	dim   int
}

func (f *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.texts = append(f.texts, texts...)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vectorFor(t)
		if f.dim > 0 {
			out[i] = out[i][:f.dim]
		}
	}
	return out, nil
}

func vectorFor(text string) []float32 {
	v := []float32{0.01, 0.01, 0.01, 0.01}
	switch {
	case strings.Contains(text, "kubernetes"):
		v[0] = 1
	case strings.Contains(text, "printer"):
		v[1] = 1
	default:
		v[3] = 1
	}
	return v
}

type countingProgress struct {
	mu    sync.Mutex
	total int
	added int
	done  bool
}

func (c *countingProgress) SetTotal(n int) { c.mu.Lock(); c.total = n; c.mu.Unlock() }
func (c *countingProgress) Add(n int)      { c.mu.Lock(); c.added += n; c.mu.Unlock() }
func (c *countingProgress) Done()          { c.mu.Lock(); c.done = true; c.mu.Unlock() }

func page(url, title, body string) types.CollectedPage {
	sec := types.NewSection("Intro")
	sec.Body = body
	return types.CollectedPage{
		URL:  url,
		Page: types.PageRecord{SourceURL: url, Title: title, Sections: []types.Section{sec}},
	}
}

func newTestIndexer(t *testing.T, p *fakeProvider, opts Options) (*Indexer, *index.Store) {
	t.Helper()
	store, err := index.Open(filepath.Join(t.TempDir(), "index.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, p, opts), store
}

func TestRunIndexesAndSearches(t *testing.T) {
	provider := &fakeProvider{}
	prog := &countingProgress{}
	ix, store := newTestIndexer(t, provider, Options{BatchSize: 1, Concurrency: 2, Progress: prog})
	ctx := context.Background()

	stats, err := ix.Run(ctx, []types.CollectedPage{
		page("https://wiki/k8s", "Cluster", "How to deploy to kubernetes."),
		page("https://wiki/print", "Printing", "Add the office printer."),
	})
	require.NoError(t, err)
	assert.Equal(t, Stats{Documents: 2, Indexed: 2, Chunks: 2}, stats)
	assert.Equal(t, 2, provider.calls)
	assert.Equal(t, 2, prog.total)
	assert.Equal(t, 2, prog.added)
	assert.True(t, prog.done)

	pages, chunks, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	assert.Equal(t, 2, chunks)

	results, err := ix.Search(ctx, "printer settings", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://wiki/print", results[0].URL)
	assert.Equal(t, "Printing", results[0].Title)
	assert.Contains(t, results[0].Content, "Add the office printer.")
}

func TestRunSkipsUnchangedPages(t *testing.T) {
	provider := &fakeProvider{}
	ix, _ := newTestIndexer(t, provider, Options{})
	ctx := context.Background()

	pages := []types.CollectedPage{page("https://wiki/a", "A", "Some body text here.")}
	_, err := ix.Run(ctx, pages)
	require.NoError(t, err)
	require.Equal(t, 1, provider.calls)

	stats, err := ix.Run(ctx, pages)
	require.NoError(t, err)
	assert.Equal(t, Stats{Documents: 1, Unchanged: 1}, stats)
	assert.Equal(t, 1, provider.calls)

	pages[0] = page("https://wiki/a", "A", "Rewritten body text.")
	stats, err = ix.Run(ctx, pages)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 2, provider.calls)
}

func TestRunKeepsFirstDuplicate(t *testing.T) {
	provider := &fakeProvider{}
	ix, store := newTestIndexer(t, provider, Options{})

	stats, err := ix.Run(context.Background(), []types.CollectedPage{
		page("https://wiki/a", "A", "first version of the page"),
		page("https://wiki/a", "A", "second version of the page"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)
	require.Len(t, provider.texts, 1)
	assert.Contains(t, provider.texts[0], "first version")

	pages, _, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
}

func TestRunSplitsLongPages(t *testing.T) {
	provider := &fakeProvider{}
	ix, store := newTestIndexer(t, provider, Options{
		Chunker:   chunker.Config{ChunkSize: 40, ChunkOverlap: 5},
		BatchSize: 2,
	})

	body := strings.Repeat("kubernetes cluster notes. ", 10)
	stats, err := ix.Run(context.Background(), []types.CollectedPage{page("https://wiki/long", "Long", body)})
	require.NoError(t, err)
	assert.Greater(t, stats.Chunks, 1)
	assert.Equal(t, (stats.Chunks+1)/2, provider.calls)

	_, chunks, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stats.Chunks, chunks)
}

func TestRunWritesNothingWhenEmbeddingFails(t *testing.T) {
	provider := &fakeProvider{err: errors.New("boom")}
	ix, store := newTestIndexer(t, provider, Options{})
	ctx := context.Background()

	_, err := ix.Run(ctx, []types.CollectedPage{page("https://wiki/a", "A", "Some body text here.")})
	assert.ErrorContains(t, err, "boom")

	pages, chunks, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, pages)
	assert.Zero(t, chunks)
}

func TestRunRetriesPageAfterStoreFailure(t *testing.T) {
	provider := &fakeProvider{dim: 2}
	ix, store := newTestIndexer(t, provider, Options{})
	ctx := context.Background()
	pages := []types.CollectedPage{page("https://wiki/print", "Printing", "Add the office printer.")}

	_, err := ix.Run(ctx, pages)
	assert.ErrorIs(t, err, index.ErrDimensionMismatch)

	_, found, err := store.PageHash(ctx, "https://wiki/print")
	require.NoError(t, err)
	assert.False(t, found)

	provider.dim = 0
	stats, err := ix.Run(ctx, pages)
	require.NoError(t, err)
	assert.Equal(t, Stats{Documents: 1, Indexed: 1, Chunks: 1}, stats)

	results, err := ix.Search(ctx, "printer", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://wiki/print", results[0].URL)
}

func TestRunWithoutDocuments(t *testing.T) {
	ix, _ := newTestIndexer(t, &fakeProvider{}, Options{})

	_, err := ix.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoDocuments)
}
