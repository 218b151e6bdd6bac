package pipeline

import (
	"errors"
	"fmt"

	"github.com/jackzampolin/synopsis/internal/chunker"
	"github.com/jackzampolin/synopsis/internal/summarizer"
)

// FailurePolicy decides what a failed chapter does to the rest of its book.
type FailurePolicy string

const (
	// PolicyHalt stops the book at the first failed chapter. Chapters already
	// persisted stay on disk; the final context is not written.
	PolicyHalt FailurePolicy = "halt"

	// PolicySkip marks the chapter failed and continues with the
	// last-known-good context.
	PolicySkip FailurePolicy = "skip"
)

// ParseFailurePolicy parses a policy name. Empty means PolicyHalt.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", PolicyHalt:
		return PolicyHalt, nil
	case PolicySkip:
		return PolicySkip, nil
	default:
		return "", fmt.Errorf("unknown failure policy: %q (want %q or %q)", s, PolicyHalt, PolicySkip)
	}
}

// Settings is the full tuning of one pipeline. Each pipeline owns its copy,
// so books with different settings can run side by side.
type Settings struct {
	TargetRatio     float64
	MinRatio        float64
	MaxRatio        float64
	MinSummaryWords int
	MaxChunkTokens  int
	SkipBelowWords  int
	ContinuityChars int
	Temperature     float64
	FailurePolicy   FailurePolicy
	PlainText       bool
}

// DefaultSettings returns the stock tuning: 13% summaries within a 10-15%
// band, 6000-token segments, and chapters under 100 words skipped.
func DefaultSettings() Settings {
	return Settings{
		TargetRatio:     0.13,
		MinRatio:        0.10,
		MaxRatio:        0.15,
		MinSummaryWords: 200,
		MaxChunkTokens:  chunker.DefaultMaxTokens,
		SkipBelowWords:  100,
		ContinuityChars: 500,
		Temperature:     0.3,
		FailurePolicy:   PolicyHalt,
	}
}

// Validate rejects settings the pipeline cannot run with.
func (s Settings) Validate() error {
	var errs []error
	if s.MinRatio <= 0 || s.MaxRatio > 1 || s.MinRatio > s.MaxRatio {
		errs = append(errs, fmt.Errorf("ratio band [%.2f, %.2f] must satisfy 0 < min <= max <= 1", s.MinRatio, s.MaxRatio))
	}
	if s.TargetRatio < s.MinRatio || s.TargetRatio > s.MaxRatio {
		errs = append(errs, fmt.Errorf("target_ratio %.2f outside band [%.2f, %.2f]", s.TargetRatio, s.MinRatio, s.MaxRatio))
	}
	if s.MinSummaryWords < 0 {
		errs = append(errs, fmt.Errorf("min_summary_words must not be negative"))
	}
	if s.MaxChunkTokens <= 0 {
		errs = append(errs, fmt.Errorf("max_chunk_tokens must be positive"))
	}
	if s.SkipBelowWords < 0 {
		errs = append(errs, fmt.Errorf("skip_below_words must not be negative"))
	}
	if s.ContinuityChars < 0 {
		errs = append(errs, fmt.Errorf("continuity_chars must not be negative"))
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature %.2f outside [0, 2]", s.Temperature))
	}
	if _, err := ParseFailurePolicy(string(s.FailurePolicy)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s Settings) summarizer() summarizer.Settings {
	return summarizer.Settings{
		TargetRatio:     s.TargetRatio,
		MinRatio:        s.MinRatio,
		MaxRatio:        s.MaxRatio,
		MinWords:        s.MinSummaryWords,
		ContinuityChars: s.ContinuityChars,
		Temperature:     s.Temperature,
		PlainText:       s.PlainText,
	}
}
