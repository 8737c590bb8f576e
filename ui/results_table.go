package ui

import (
	"fmt"
	"strings"
)

// SearchHit is one search result to display.
type SearchHit struct {
	URL      string
	Title    string
	Content  string
	Distance float64
}

// RenderSearchResults draws the hits for query, closest first. Snippets are
// cut to width characters.
func RenderSearchResults(query string, hits []SearchHit, width int) string {
	if len(hits) == 0 {
		return errorStyle.Render(fmt.Sprintf("No results for %q", query))
	}
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Results for %q", query)))
	for i, h := range hits {
		b.WriteString("\n\n")
		b.WriteString(labelStyle.Render(fmt.Sprintf("%d. %s", i+1, h.Title)))
		b.WriteString(" " + infoStyle.Render(fmt.Sprintf("(distance %.4f)", h.Distance)))
		b.WriteString("\n" + valueStyle.Render(h.URL))
		b.WriteString("\n" + truncate(snippet(h.Content), width))
	}
	return borderStyle.Render(b.String())
}

// snippet puts the chunk on one line.
func snippet(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
