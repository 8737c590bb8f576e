package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
)

// ProgressTracker renders a single overall progress bar
type ProgressTracker struct {
	bar       progress.Model
	out       io.Writer
	label     string
	total     int
	processed int
	mu        sync.Mutex
}

// New creates a new ProgressTracker writing to out, or stderr when nil
func New(label string, out io.Writer) *ProgressTracker {
	if out == nil {
		out = os.Stderr
	}
	return &ProgressTracker{
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		out:   out,
		label: label,
	}
}

// SetTotal sets the number of units to process
func (p *ProgressTracker) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.render()
}

// Add marks n more units as processed
func (p *ProgressTracker) Add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed += n
	if p.processed > p.total {
		p.processed = p.total
	}
	p.render()
}

// Percent returns the current progress as a fraction
func (p *ProgressTracker) Percent() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.percent()
}

// Done ends the progress line
func (p *ProgressTracker) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out)
}

func (p *ProgressTracker) percent() float64 {
	if p.total == 0 {
		return 0
	}
	return float64(p.processed) / float64(p.total)
}

func (p *ProgressTracker) render() {
	if p.total == 0 {
		return
	}
	fmt.Fprintf(p.out, "\r%s: %s %d/%d", p.label, p.bar.ViewAs(p.percent()), p.processed, p.total)
}
