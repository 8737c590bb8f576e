// Package extract turns a rendered wiki page into a types.PageRecord.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/wikicrawl/internal/dom"
	"github.com/go-scripts/wikicrawl/internal/types"
)

const headingSelector = "h1, h2, h3, h4"

var headingTags = map[string]bool{"h1": true, "h2": true, "h3": true, "h4": true}

// Options configures an Extractor.
type Options struct {
	TitleTimeout time.Duration
	PollInterval time.Duration
	Images       ImagePolicy
	Retry        dom.Retry
	Logger       *log.Logger
}

// Extractor builds page records from the current document of a dom.Page.
type Extractor struct {
	opts Options
	log  *log.Logger
}

// New returns an Extractor. A zero TitleTimeout defaults to five seconds.
func New(opts Options) *Extractor {
	if opts.TitleTimeout <= 0 {
		opts.TitleTimeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Extractor{opts: opts, log: logger}
}

// Extract reads the page currently loaded in page. A stale reference
// anywhere restarts the whole extraction against a fresh root, up to the
// retry bound.
func (e *Extractor) Extract(ctx context.Context, page dom.Page, sourceURL string) (types.PageRecord, error) {
	var record types.PageRecord
	err := e.opts.Retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			e.log.Warn("Stale element encountered during extraction, retrying", "url", sourceURL, "attempt", attempt)
		}
		root, err := page.Root(ctx)
		if err != nil {
			return err
		}
		record, err = e.extract(ctx, root, sourceURL)
		return err
	})
	if err != nil {
		return types.PageRecord{}, fmt.Errorf("extracting %s: %w", sourceURL, err)
	}
	return record, nil
}

func (e *Extractor) extract(ctx context.Context, root dom.Node, sourceURL string) (types.PageRecord, error) {
	record := types.PageRecord{SourceURL: sourceURL, Sections: []types.Section{}}

	title, err := e.title(ctx, root)
	if err != nil {
		return record, err
	}
	record.Title = title

	headings, err := root.QueryAll(ctx, headingSelector)
	if err != nil {
		return record, err
	}
	for _, h := range headings {
		sec, err := e.section(ctx, h)
		if err != nil {
			return record, err
		}
		if !sec.IsEmpty() {
			record.Sections = append(record.Sections, sec)
		}
	}

	if len(record.Sections) == 0 {
		general, err := e.generalContent(ctx, root)
		if err != nil {
			return record, err
		}
		if !general.IsEmpty() {
			record.Sections = append(record.Sections, general)
		}
	}
	return record, nil
}

// title waits for the page heading, falling back to types.DefaultTitle.
func (e *Extractor) title(ctx context.Context, root dom.Node) (string, error) {
	present, err := root.QueryAll(ctx, "h1")
	if err != nil {
		return "", err
	}
	if len(present) == 0 {
		return types.DefaultTitle, nil
	}

	h1, err := dom.WaitFor(ctx, root, "h1", e.opts.TitleTimeout, e.opts.PollInterval)
	if errors.Is(err, dom.ErrNotFound) {
		return types.DefaultTitle, nil
	}
	if err != nil {
		return "", err
	}

	text, err := h1.Text(ctx)
	if err != nil {
		return "", err
	}
	if text = strings.TrimSpace(text); text == "" {
		return types.DefaultTitle, nil
	}
	return text, nil
}

// section collects the siblings that follow heading up to the next heading.
func (e *Extractor) section(ctx context.Context, heading dom.Node) (types.Section, error) {
	header, err := heading.Text(ctx)
	if err != nil {
		return types.Section{}, err
	}
	sec := types.NewSection(strings.TrimSpace(header))

	siblings, err := heading.NextSiblings(ctx)
	if err != nil {
		return sec, err
	}

	var body []string
	for _, el := range siblings {
		tag, err := el.Tag(ctx)
		if err != nil {
			return sec, err
		}
		if headingTags[tag] {
			break
		}

		switch tag {
		case "p":
			text, err := el.Text(ctx)
			if err != nil {
				return sec, err
			}
			if text = strings.TrimSpace(text); text != "" {
				body = append(body, text)
			}
		case "ul", "ol":
			items, err := listItems(ctx, el)
			if err != nil {
				return sec, err
			}
			if len(items) > 0 {
				sec.Lists = append(sec.Lists, types.List{Type: tag, Items: items})
			}
		case "table":
			table, err := ExtractTable(ctx, el)
			if err != nil {
				return sec, err
			}
			if table != nil {
				sec.Tables = append(sec.Tables, *table)
			}
		case "img":
			img, ok, err := e.image(ctx, el)
			if err != nil {
				return sec, err
			}
			if ok {
				sec.Images = append(sec.Images, img)
			}
		}
	}
	sec.Body = strings.Join(body, "\n")
	return sec, nil
}

// generalContent aggregates every paragraph, table and image on the page.
func (e *Extractor) generalContent(ctx context.Context, root dom.Node) (types.Section, error) {
	sec := types.NewSection(types.GeneralContentHeader)

	paragraphs, err := root.QueryAll(ctx, "p")
	if err != nil {
		return sec, err
	}
	var body []string
	for _, p := range paragraphs {
		text, err := p.Text(ctx)
		if err != nil {
			return sec, err
		}
		if text = strings.TrimSpace(text); text != "" {
			body = append(body, text)
		}
	}
	sec.Body = strings.Join(body, "\n")

	tables, err := root.QueryAll(ctx, "table")
	if err != nil {
		return sec, err
	}
	for _, el := range tables {
		table, err := ExtractTable(ctx, el)
		if err != nil {
			return sec, err
		}
		if table != nil {
			sec.Tables = append(sec.Tables, *table)
		}
	}

	images, err := root.QueryAll(ctx, "img")
	if err != nil {
		return sec, err
	}
	for _, el := range images {
		img, ok, err := e.image(ctx, el)
		if err != nil {
			return sec, err
		}
		if ok {
			sec.Images = append(sec.Images, img)
		}
	}
	return sec, nil
}

func (e *Extractor) image(ctx context.Context, el dom.Node) (types.Image, bool, error) {
	src, err := el.Attr(ctx, "src")
	if err != nil {
		return types.Image{}, false, err
	}
	alt, err := el.Attr(ctx, "alt")
	if err != nil {
		return types.Image{}, false, err
	}
	img := types.Image{Alt: alt, Src: src}
	return img, e.opts.Images.Allows(img), nil
}

func listItems(ctx context.Context, list dom.Node) ([]string, error) {
	lis, err := list.QueryAll(ctx, "li")
	if err != nil {
		return nil, err
	}
	return nonEmptyTexts(ctx, lis)
}

func nonEmptyTexts(ctx context.Context, nodes []dom.Node) ([]string, error) {
	var out []string
	for _, n := range nodes {
		text, err := n.Text(ctx)
		if err != nil {
			return nil, err
		}
		if text = strings.TrimSpace(text); text != "" {
			out = append(out, text)
		}
	}
	return out, nil
}
