//go:build cgo

package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), 4) // dim=4 for test vectors
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func addPage(t *testing.T, s *Store, url, hash string, contents []string, vecs [][]float32) int64 {
	t.Helper()
	chunks := make([]Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = Chunk{Position: i, Content: c}
	}
	id, err := s.ReplacePage(context.Background(), Page{URL: url, Title: "T " + url, ContentHash: hash}, chunks, vecs)
	require.NoError(t, err)
	return id
}

func TestOpenCreatesParentDir(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "sub", "dir", "test.db"), 4)
	require.NoError(t, err)
	assert.Equal(t, 4, s.EmbeddingDim())
	s.Close()
}

func TestOpenRejectsOtherDimension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, 4)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path, 8)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	s, err = Open(path, 4)
	require.NoError(t, err)
	s.Close()

	_, err = Open(path, 0)
	assert.Error(t, err)
}

func TestReplacePageSwapsChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, found, err := s.PageHash(ctx, "https://wiki/a")
	require.NoError(t, err)
	assert.False(t, found)

	id := addPage(t, s, "https://wiki/a", "h1", []string{"one", "two"}, [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}})

	hash, found, err := s.PageHash(ctx, "https://wiki/a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "h1", hash)

	again := addPage(t, s, "https://wiki/a", "h2", []string{"three"}, [][]float32{{0, 0, 1, 0}})
	assert.Equal(t, id, again)

	hash, _, err = s.PageHash(ctx, "https://wiki/a")
	require.NoError(t, err)
	assert.Equal(t, "h2", hash)

	pages, chunks, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
	assert.Equal(t, 1, chunks)

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "three", results[0].Content)
}

func TestReplacePageWritesNothingOnBadVectors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addPage(t, s, "https://wiki/a", "h1", []string{"one"}, [][]float32{{1, 0, 0, 0}})

	_, err := s.ReplacePage(ctx, Page{URL: "https://wiki/a", ContentHash: "h2"},
		[]Chunk{{Content: "two"}}, [][]float32{{1, 2}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = s.ReplacePage(ctx, Page{URL: "https://wiki/b", ContentHash: "hb"},
		[]Chunk{{Content: "b"}}, nil)
	assert.Error(t, err)

	hash, _, err := s.PageHash(ctx, "https://wiki/a")
	require.NoError(t, err)
	assert.Equal(t, "h1", hash)
	_, found, err := s.PageHash(ctx, "https://wiki/b")
	require.NoError(t, err)
	assert.False(t, found)

	pages, chunks, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
	assert.Equal(t, 1, chunks)
}

func TestSearchOrdersByDistance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addPage(t, s, "https://wiki/a", "ha", []string{"alpha", "beta"}, [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}})
	addPage(t, s, "https://wiki/b", "hb", []string{"gamma"}, [][]float32{{0.9, 0.1, 0, 0}})

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "alpha", results[0].Content)
	assert.Equal(t, "https://wiki/a", results[0].URL)
	assert.Equal(t, "T https://wiki/a", results[0].Title)
	assert.Equal(t, "gamma", results[1].Content)
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
}

func TestDimensionChecks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Search(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSerializeFloat32(t *testing.T) {
	b := serializeFloat32([]float32{1, -2})
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f, 0x00, 0x00, 0x00, 0xc0}, b)
}
