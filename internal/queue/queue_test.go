package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/wikicrawl/internal/types"
)

func link(url string) types.Link {
	return types.Link{Text: url, URL: url}
}

func TestFrontierFIFO(t *testing.T) {
	f := New()
	for _, u := range []string{"a", "b", "c"} {
		assert.True(t, f.Push(link(u)))
	}
	assert.Equal(t, 3, f.Len())

	var got []string
	for {
		l, ok := f.Pop()
		if !ok {
			break
		}
		got = append(got, l.URL)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Zero(t, f.Len())
}

func TestFrontierRejects(t *testing.T) {
	f := New()
	f.Exclude("x")

	assert.False(t, f.Push(link("x")), "excluded")
	assert.True(t, f.Push(link("a")))
	assert.False(t, f.Push(link("a")), "already queued")

	l, ok := f.Pop()
	require.True(t, ok)
	assert.True(t, f.MarkVisited(l.URL))
	assert.False(t, f.Push(link("a")), "visited")
	assert.False(t, f.MarkVisited("a"), "visited twice")
	assert.False(t, f.MarkVisited("x"), "excluded")
}

func TestFrontierRequeueAfterPop(t *testing.T) {
	f := New()
	require.True(t, f.Push(link("a")))
	_, ok := f.Pop()
	require.True(t, ok)

	// popped but not yet marked visited
	assert.True(t, f.Push(link("a")))
}

func TestFrontierVisitedOrder(t *testing.T) {
	f := New()
	f.MarkVisited("b")
	f.MarkVisited("a")
	f.MarkVisited("b")

	assert.Equal(t, []string{"b", "a"}, f.Visited())
	assert.False(t, f.MarkVisited("a"))
}
