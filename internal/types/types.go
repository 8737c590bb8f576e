package types

import "strings"

// DefaultTitle is used when a page has no usable h1.
const DefaultTitle = "Untitled"

// GeneralContentHeader names the section synthesized for pages without
// usable headings.
const GeneralContentHeader = "General Content"

// Link is one anchor discovered in the sidebar. URL is the identity.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// List holds the non-empty item texts of a ul or ol element.
type List struct {
	Type  string   `json:"type"`
	Items []string `json:"items"`
}

// Image is a kept img element.
type Image struct {
	Alt string `json:"alt"`
	Src string `json:"src"`
}

// Table is an extracted table. Rows is never empty for a represented table.
type Table struct {
	Headers []string `json:"headers,omitempty"`
	Rows    []Row    `json:"rows"`
}

// Section is the content between one heading and the next.
type Section struct {
	Header string  `json:"header"`
	Body   string  `json:"body"`
	Lists  []List  `json:"lists"`
	Tables []Table `json:"tables"`
	Images []Image `json:"images"`
}

// NewSection returns a section with non-nil collections so it encodes
// as empty arrays rather than null.
func NewSection(header string) Section {
	return Section{
		Header: header,
		Lists:  []List{},
		Tables: []Table{},
		Images: []Image{},
	}
}

// IsEmpty reports whether the section carries no content besides its header.
func (s Section) IsEmpty() bool {
	return strings.TrimSpace(s.Body) == "" && len(s.Lists) == 0 && len(s.Tables) == 0 && len(s.Images) == 0
}

// PageRecord is the structured extraction result for one visited page.
type PageRecord struct {
	SourceURL string    `json:"source_url"`
	Title     string    `json:"title"`
	Sections  []Section `json:"sections"`
}
