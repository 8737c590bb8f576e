// Package indexer turns crawled pages into searchable chunk embeddings.
package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-scripts/wikicrawl/internal/chunker"
	"github.com/go-scripts/wikicrawl/internal/document"
	"github.com/go-scripts/wikicrawl/internal/embed"
	"github.com/go-scripts/wikicrawl/internal/index"
	"github.com/go-scripts/wikicrawl/internal/types"
)

var (
	ErrNoDocuments = errors.New("no documents to index")
	ErrNoChunks    = errors.New("documents produced no chunks")
)

// Progress receives the number of embedded chunks.
type Progress interface {
	SetTotal(total int)
	Add(n int)
	Done()
}

type nopProgress struct{}

func (nopProgress) SetTotal(int) {}
func (nopProgress) Add(int)      {}
func (nopProgress) Done()        {}

// Options controls the pipeline.
type Options struct {
	Document    document.Options
	Chunker     chunker.Config
	BatchSize   int // Texts per embedding request.
	Concurrency int // Embedding requests in flight.
	Progress    Progress
	Logger      *log.Logger
}

// Stats summarises one Run.
type Stats struct {
	Documents int
	Indexed   int
	Unchanged int
	Chunks    int
}

// Indexer flattens, chunks, embeds and stores pages.
type Indexer struct {
	store    *index.Store
	provider embed.Provider
	chunker  *chunker.Chunker
	opts     Options
	log      *log.Logger
}

// New creates an Indexer writing to store.
func New(store *index.Store, provider embed.Provider, opts Options) *Indexer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Progress == nil {
		opts.Progress = nopProgress{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Indexer{
		store:    store,
		provider: provider,
		chunker:  chunker.New(opts.Chunker),
		opts:     opts,
		log:      logger,
	}
}

type pendingPage struct {
	doc    document.Document
	chunks []chunker.Chunk
	first  int // offset of the page's chunks in the embedding batch
}

// Run indexes pages. Pages whose content hash is already stored are skipped.
// Nothing is written until every embedding has succeeded, and each page is
// stored in one transaction together with its chunks and vectors.
func (ix *Indexer) Run(ctx context.Context, pages []types.CollectedPage) (Stats, error) {
	var stats Stats

	docs := ix.uniqueDocuments(pages)
	if len(docs) == 0 {
		return stats, ErrNoDocuments
	}
	stats.Documents = len(docs)

	chunks := ix.chunker.Chunk(docs)
	if len(chunks) == 0 {
		return stats, ErrNoChunks
	}
	byURL := make(map[string][]chunker.Chunk)
	for _, c := range chunks {
		byURL[c.URL] = append(byURL[c.URL], c)
	}

	var pending []*pendingPage
	var texts []string
	for _, doc := range docs {
		hash, found, err := ix.store.PageHash(ctx, doc.URL)
		if err != nil {
			return stats, fmt.Errorf("reading page %s: %w", doc.URL, err)
		}
		if found && hash == doc.Hash() {
			ix.log.Debug("Page unchanged", "url", doc.URL)
			stats.Unchanged++
			continue
		}

		p := &pendingPage{doc: doc, chunks: byURL[doc.URL], first: len(texts)}
		for _, c := range p.chunks {
			texts = append(texts, c.Text)
		}
		pending = append(pending, p)
	}

	if len(pending) == 0 {
		ix.log.Info("Index is up to date", "documents", stats.Documents)
		return stats, nil
	}

	vectors, err := ix.embedAll(ctx, texts)
	if err != nil {
		return stats, err
	}

	for _, p := range pending {
		if err := ix.storePage(ctx, p, vectors[p.first:p.first+len(p.chunks)]); err != nil {
			return stats, fmt.Errorf("storing page %s: %w", p.doc.URL, err)
		}
		stats.Indexed++
		stats.Chunks += len(p.chunks)
	}

	ix.log.Info("Indexing finished", "indexed", stats.Indexed, "unchanged", stats.Unchanged, "chunks", stats.Chunks)
	return stats, nil
}

func (ix *Indexer) uniqueDocuments(pages []types.CollectedPage) []document.Document {
	var docs []document.Document
	seen := make(map[string]bool)
	for _, doc := range document.FlattenAll(pages, ix.opts.Document) {
		if seen[doc.URL] {
			ix.log.Warn("Duplicate page, keeping the first", "url", doc.URL)
			continue
		}
		seen[doc.URL] = true
		docs = append(docs, doc)
	}
	return docs
}

// embedAll embeds texts in batches, up to Concurrency requests at a time.
func (ix *Indexer) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	ix.opts.Progress.SetTotal(len(texts))
	defer ix.opts.Progress.Done()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.Concurrency)
	for start := 0; start < len(texts); start += ix.opts.BatchSize {
		end := min(start+ix.opts.BatchSize, len(texts))
		g.Go(func() error {
			batch, err := ix.provider.Embed(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding chunks %d-%d: %w", start, end-1, err)
			}
			copy(vectors[start:end], batch)
			ix.opts.Progress.Add(end - start)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (ix *Indexer) storePage(ctx context.Context, p *pendingPage, vectors [][]float32) error {
	rows := make([]index.Chunk, len(p.chunks))
	for i, c := range p.chunks {
		rows[i] = index.Chunk{Position: c.Position, Content: c.Text}
	}
	_, err := ix.store.ReplacePage(ctx, index.Page{
		URL:         p.doc.URL,
		Title:       p.doc.Title,
		ContentHash: p.doc.Hash(),
	}, rows, vectors)
	return err
}

// Search embeds query and returns the k closest chunks.
func (ix *Indexer) Search(ctx context.Context, query string, k int) ([]index.Result, error) {
	vecs, err := ix.provider.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, errors.New("embedding query: no vector returned")
	}
	return ix.store.Search(ctx, vecs[0], k)
}
