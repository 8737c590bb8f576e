// Package document flattens crawled pages into plain text for indexing.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/go-scripts/wikicrawl/internal/types"
)

// DefaultMinTextLength drops pages that flatten to almost nothing.
const DefaultMinTextLength = 10

const tableRule = "--------------------------------------------------"

// Document is the flattened text of one page.
type Document struct {
	URL   string
	Title string
	Text  string
}

// Hash identifies the document's content for change detection.
func (d Document) Hash() string {
	h := sha256.Sum256([]byte(d.Text))
	return hex.EncodeToString(h[:])
}

// Options controls flattening.
type Options struct {
	// AltFilters drop images whose alt text contains any entry, ignoring case.
	AltFilters    []string
	MinTextLength int
}

// Flatten renders page as text: the source link, the title, then each
// section's header, body, lists, tables and images. It reports false when
// the trimmed text is shorter than MinTextLength.
func Flatten(page types.CollectedPage, opts Options) (Document, bool) {
	if opts.MinTextLength <= 0 {
		opts.MinTextLength = DefaultMinTextLength
	}

	var b strings.Builder
	b.WriteString("Source link: " + page.URL + "\n\n")

	record := page.Page
	if strings.TrimSpace(record.Title) != "" {
		b.WriteString(record.Title + "\n\n")
	}

	for _, sec := range record.Sections {
		if strings.TrimSpace(sec.Header) != "" {
			b.WriteString(sec.Header + "\n")
		}
		if strings.TrimSpace(sec.Body) != "" {
			b.WriteString(sec.Body + "\n")
		}

		for _, l := range sec.Lists {
			items := make([]string, 0, len(l.Items))
			for _, item := range l.Items {
				items = append(items, "- "+item)
			}
			b.WriteString("\n" + strings.Join(items, "\n") + "\n")
		}

		for _, t := range sec.Tables {
			if len(t.Rows) == 0 {
				continue
			}
			b.WriteString("\n" + flattenTable(t) + "\n")
		}

		var images []string
		for _, img := range sec.Images {
			if filtered(img.Alt, opts.AltFilters) {
				continue
			}
			images = append(images, "[Image: "+img.Alt+"]("+img.Src+")")
		}
		if len(images) > 0 {
			b.WriteString("\nRelated Images:\n" + strings.Join(images, "\n") + "\n")
		}
	}

	text := norm.NFC.String(strings.TrimSpace(b.String()))
	if len([]rune(text)) < opts.MinTextLength {
		return Document{}, false
	}
	return Document{URL: page.URL, Title: record.Title, Text: text}, true
}

// FlattenAll flattens every page, skipping the ones that are too short.
func FlattenAll(pages []types.CollectedPage, opts Options) []Document {
	var docs []Document
	for _, p := range pages {
		if doc, ok := Flatten(p, opts); ok {
			docs = append(docs, doc)
		}
	}
	return docs
}

func flattenTable(t types.Table) string {
	var b strings.Builder
	if len(t.Headers) > 0 {
		b.WriteString(strings.Join(t.Headers, " | ") + "\n" + tableRule + "\n")
	}
	for _, row := range t.Rows {
		b.WriteString(strings.Join(row.Cells(), " | ") + "\n")
	}
	return b.String()
}

func filtered(alt string, filters []string) bool {
	alt = strings.ToLower(alt)
	for _, f := range filters {
		if f != "" && strings.Contains(alt, strings.ToLower(f)) {
			return true
		}
	}
	return false
}
