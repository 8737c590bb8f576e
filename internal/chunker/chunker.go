package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/go-scripts/wikicrawl/internal/document"
)

// DefaultSeparators are tried in order, from paragraph breaks down to
// single characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Config controls the chunking behaviour.
type Config struct {
	ChunkSize    int // Maximum characters per chunk.
	ChunkOverlap int // Characters carried over between consecutive chunks.
	Separators   []string
}

// Chunk is one piece of a flattened document.
type Chunk struct {
	URL      string
	Position int
	Text     string
}

// Chunker splits text recursively on a list of separators.
type Chunker struct {
	cfg Config
}

// New returns a Chunker with the given configuration.
// Zero-value fields are replaced with defaults; a negative overlap
// disables overlap.
func New(cfg Config) *Chunker {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 500
	}
	switch {
	case cfg.ChunkOverlap == 0:
		cfg.ChunkOverlap = 50
	case cfg.ChunkOverlap < 0:
		cfg.ChunkOverlap = 0
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 10
	}
	if len(cfg.Separators) == 0 {
		cfg.Separators = DefaultSeparators
	}
	return &Chunker{cfg: cfg}
}

// Chunk splits each document and numbers the pieces per document.
func (c *Chunker) Chunk(docs []document.Document) []Chunk {
	var chunks []Chunk
	for _, d := range docs {
		for i, text := range c.Split(d.Text) {
			chunks = append(chunks, Chunk{URL: d.URL, Position: i, Text: text})
		}
	}
	return chunks
}

// Split breaks text into pieces of at most ChunkSize characters where the
// separators allow it. The first separator present in the text is used;
// pieces that are still too long are split again with the remaining
// separators. Separators stay at the start of the piece that follows them.
func (c *Chunker) Split(text string) []string {
	return c.split(text, c.cfg.Separators)
}

func (c *Chunker) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			rest = separators[i+1:]
			break
		}
	}

	var chunks, good []string
	for _, s := range splitKeep(text, separator) {
		if length(s) < c.cfg.ChunkSize {
			good = append(good, s)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, c.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, s)
		} else {
			chunks = append(chunks, c.split(s, rest)...)
		}
	}
	if len(good) > 0 {
		chunks = append(chunks, c.merge(good)...)
	}
	return chunks
}

// merge packs consecutive splits into chunks, starting each new chunk with
// as much of the previous one's tail as the overlap allows.
func (c *Chunker) merge(splits []string) []string {
	var (
		docs    []string
		current []string
		total   int
	)
	for _, s := range splits {
		n := length(s)
		if total+n > c.cfg.ChunkSize && len(current) > 0 {
			if doc := join(current); doc != "" {
				docs = append(docs, doc)
			}
			for total > c.cfg.ChunkOverlap || (total+n > c.cfg.ChunkSize && total > 0) {
				total -= length(current[0])
				current = current[1:]
			}
		}
		current = append(current, s)
		total += n
	}
	if doc := join(current); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// splitKeep splits on sep and glues each separator to the following piece.
// An empty separator splits into characters.
func splitKeep(text, sep string) []string {
	var out []string
	if sep == "" {
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, sep)
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, p := range parts[1:] {
		out = append(out, sep+p)
	}
	return out
}

func join(parts []string) string {
	return strings.TrimSpace(strings.Join(parts, ""))
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}
