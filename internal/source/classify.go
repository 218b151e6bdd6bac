package source

import (
	"strings"

	"github.com/jackzampolin/synopsis/internal/book"
)

// Classifier guesses a book's category from keywords in its author and
// title. Fiction indicators are checked first.
type Classifier struct {
	FictionIndicators    []string
	NonfictionIndicators []string
	Default              book.Category
}

// DefaultClassifier returns the stock keyword lists.
func DefaultClassifier() Classifier {
	return Classifier{
		FictionIndicators:    []string{"christie", "agatha", "novel", "mystery", "murder"},
		NonfictionIndicators: []string{"freud", "interpretation", "psychology", "theory", "analysis"},
		Default:              book.Fiction,
	}
}

// Classify returns the category for m.
func (c Classifier) Classify(m book.Metadata) book.Category {
	haystack := strings.ToLower(strings.Join(m.Authors, " ") + " " + m.Title)
	if containsAny(haystack, c.FictionIndicators) {
		return book.Fiction
	}
	if containsAny(haystack, c.NonfictionIndicators) {
		return book.Nonfiction
	}
	if c.Default.Valid() {
		return c.Default
	}
	return book.Fiction
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}
