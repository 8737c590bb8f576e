package writer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-scripts/wikicrawl/internal/types"
)

// DefaultPagesFile is the crawl output file name used when none is given.
const DefaultPagesFile = "collected_pages.json"

// FileWriter handles writing crawled data to files
type FileWriter struct {
	outputDir string
}

// New creates a new FileWriter instance
func New(outputDir string) (*FileWriter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FileWriter{outputDir: outputDir}, nil
}

// WritePages writes the whole crawl as [[url, record], ...] in one go and
// returns the file path.
func (w *FileWriter) WritePages(name string, pages []types.CollectedPage) (string, error) {
	if name == "" {
		name = DefaultPagesFile
	}
	if pages == nil {
		pages = []types.CollectedPage{}
	}

	path := filepath.Join(w.outputDir, name)
	if err := writeJSON(path, pages); err != nil {
		return "", fmt.Errorf("failed to write pages: %w", err)
	}
	return path, nil
}

// WriteRecord writes a single page record to a file named after its URL
func (w *FileWriter) WriteRecord(record types.PageRecord) (string, error) {
	path := filepath.Join(w.outputDir, w.sanitizeFilename(record.SourceURL)+".json")
	if err := writeJSON(path, record); err != nil {
		return "", fmt.Errorf("failed to write record: %w", err)
	}
	return path, nil
}

// LoadPages reads a file written by WritePages
func LoadPages(path string) ([]types.CollectedPage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pages: %w", err)
	}

	var pages []types.CollectedPage
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return pages, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// sanitizeFilename creates a safe filename from a URL
func (w *FileWriter) sanitizeFilename(url string) string {
	// Remove scheme and common prefixes
	url = strings.TrimPrefix(url, "http://")
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "www.")
	url = strings.TrimSuffix(url, "/")

	// Replace unsafe characters
	unsafe := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", " ", "&", "="}
	for _, char := range unsafe {
		url = strings.ReplaceAll(url, char, "_")
	}

	if url == "" {
		return "index"
	}
	return url
}
