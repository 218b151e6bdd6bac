// Package book holds the domain records that flow through the summarization
// pipeline: chapters, book metadata, per-chapter extractions, and the rolling
// context carried from one chapter to the next.
//
// Category-dependent records (Extraction, RollingContext) are tagged variants:
// exactly one of the Fiction/Nonfiction payloads is set, selected by Category.
package book

import (
	"fmt"
	"strings"
)

// Unknown is substituted for missing metadata fields.
const Unknown = "Unknown"

// Category selects the extraction, summary, analysis, and context shapes.
type Category string

const (
	Fiction    Category = "fiction"
	Nonfiction Category = "nonfiction"
)

// ParseCategory parses a category name, case-insensitively.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fiction":
		return Fiction, nil
	case "nonfiction", "non-fiction":
		return Nonfiction, nil
	default:
		return "", fmt.Errorf("unknown category: %q", s)
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c == Fiction || c == Nonfiction
}

// Metadata is bibliographic information for a book.
type Metadata struct {
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
}

// Normalized returns a copy with "Unknown" in place of missing fields.
func (m Metadata) Normalized() Metadata {
	out := Metadata{Title: strings.TrimSpace(m.Title)}
	if out.Title == "" {
		out.Title = Unknown
	}
	for _, a := range m.Authors {
		if a = strings.TrimSpace(a); a != "" {
			out.Authors = append(out.Authors, a)
		}
	}
	if len(out.Authors) == 0 {
		out.Authors = []string{Unknown}
	}
	return out
}

// Author returns the comma-joined author list.
func (m Metadata) Author() string {
	return strings.Join(m.Normalized().Authors, ", ")
}

// Chapter is one unit of book text, summarized in reading order.
type Chapter struct {
	// ID identifies the chapter within its book (the source file stem).
	ID      string `json:"id"`
	Ordinal int    `json:"ordinal"`
	Title   string `json:"title"`
	Body    string `json:"-"`
}

// Label returns the title, or a positional label when the title is blank.
func (c Chapter) Label() string {
	if t := strings.TrimSpace(c.Title); t != "" {
		return t
	}
	return fmt.Sprintf("Chapter %d", c.Ordinal)
}

// Book is a loaded book: where it lives, what it is, and its chapters in
// reading order.
type Book struct {
	// ID is a stable identifier (the book directory name).
	ID       string
	Dir      string
	Metadata Metadata
	Category Category
	Chapters []Chapter
}
