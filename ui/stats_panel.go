package ui

import (
	"fmt"
	"strings"
	"time"
)

// CrawlStats summarises a finished crawl.
type CrawlStats struct {
	Visited    int
	Collected  int
	Failed     int
	Elapsed    time.Duration
	OutputPath string
}

// IndexStats summarises an indexing run.
type IndexStats struct {
	Documents int
	Indexed   int
	Unchanged int
	Chunks    int
	Elapsed   time.Duration
}

type stat struct {
	label string
	value string
}

// RenderCrawlStats draws the crawl summary panel.
func RenderCrawlStats(s CrawlStats) string {
	successRate := 0.0
	if s.Visited > 0 {
		successRate = float64(s.Collected) / float64(s.Visited) * 100
	}
	pagesPerSecond := 0.0
	if secs := s.Elapsed.Seconds(); secs > 0 {
		pagesPerSecond = float64(s.Visited) / secs
	}

	stats := []stat{
		{"Visited", fmt.Sprintf("%d pages", s.Visited)},
		{"Collected", fmt.Sprintf("%.1f%% (%d/%d)", successRate, s.Collected, s.Visited)},
		{"Failed", fmt.Sprintf("%d", s.Failed)},
		{"Pages/Second", fmt.Sprintf("%.2f", pagesPerSecond)},
		{"Elapsed Time", formatElapsed(s.Elapsed)},
	}
	if s.OutputPath != "" {
		stats = append(stats, stat{"Saved To", s.OutputPath})
	}
	return panel("Crawl Statistics", stats)
}

// RenderIndexStats draws the indexing summary panel.
func RenderIndexStats(s IndexStats) string {
	return panel("Index Statistics", []stat{
		{"Documents", fmt.Sprintf("%d", s.Documents)},
		{"Indexed", fmt.Sprintf("%d", s.Indexed)},
		{"Unchanged", fmt.Sprintf("%d", s.Unchanged)},
		{"Chunks", fmt.Sprintf("%d", s.Chunks)},
		{"Elapsed Time", formatElapsed(s.Elapsed)},
	})
}

func panel(title string, stats []stat) string {
	width := 0
	for _, st := range stats {
		width = max(width, len(st.label)+1)
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render(title) + "\n\n")
	for i, st := range stats {
		content.WriteString(labelStyle.Render(fmt.Sprintf("%-*s", width, st.label+":")))
		content.WriteString(" " + valueStyle.Render(st.value))
		if i < len(stats)-1 {
			content.WriteString("\n")
		}
	}
	return borderStyle.Render(content.String())
}

func formatElapsed(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d:%02d",
		int(d.Hours()),
		int(d.Minutes())%60,
		int(d.Seconds())%60,
	)
}
