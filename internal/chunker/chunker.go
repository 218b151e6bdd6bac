// Package chunker splits chapter text into token-bounded segments aligned to
// paragraph boundaries.
package chunker

import (
	"strings"

	"github.com/jackzampolin/synopsis/internal/tokens"
)

const (
	// ParagraphSeparator delimits paragraphs in chapter bodies.
	ParagraphSeparator = "\n\n"

	// DefaultMaxTokens bounds a segment when no limit is configured.
	DefaultMaxTokens = 6000
)

// Segment is a contiguous run of paragraphs from a chapter body.
type Segment struct {
	Index      int
	Text       string
	Tokens     int
	Paragraphs int
}

// Chunk splits text into ordered segments of at most maxTokens tokens.
//
// Text that fits is returned whole as a single segment. Otherwise paragraphs
// are accumulated until the next one would overflow the running segment. A
// paragraph that alone exceeds maxTokens becomes its own oversized segment.
// Joining the segment texts with ParagraphSeparator reproduces text exactly.
func Chunk(text string, maxTokens int, counter tokens.Counter) []Segment {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	total := counter.Count(text)
	if total <= maxTokens {
		return []Segment{{
			Index:      0,
			Text:       text,
			Tokens:     total,
			Paragraphs: strings.Count(text, ParagraphSeparator) + 1,
		}}
	}

	var (
		segments []Segment
		current  []string
		running  int
	)
	flush := func() {
		joined := strings.Join(current, ParagraphSeparator)
		segments = append(segments, Segment{
			Index:      len(segments),
			Text:       joined,
			Tokens:     running,
			Paragraphs: len(current),
		})
		current = nil
		running = 0
	}

	for _, para := range strings.Split(text, ParagraphSeparator) {
		n := counter.Count(para)
		if running+n > maxTokens && len(current) > 0 {
			flush()
		}
		current = append(current, para)
		running += n
	}
	if len(current) > 0 {
		flush()
	}
	return segments
}

// Join reconstructs the original text from its segments.
func Join(segments []Segment) string {
	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[i] = s.Text
	}
	return strings.Join(parts, ParagraphSeparator)
}
