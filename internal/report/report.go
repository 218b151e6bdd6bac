package report

import (
	"time"
)

// ChapterState is a chapter's position in the processing lifecycle.
type ChapterState string

const (
	StatePending       ChapterState = "pending"
	StateSkipped       ChapterState = "skipped"
	StateExtracting    ChapterState = "extracting"
	StateSummarizing   ChapterState = "summarizing"
	StateAnalyzing     ChapterState = "analyzing"
	StateContextUpdate ChapterState = "context_update"
	StatePersisted     ChapterState = "persisted"
	StateFailed        ChapterState = "failed"
)

// Terminal reports whether no further transition is possible.
func (s ChapterState) Terminal() bool {
	return s == StateSkipped || s == StatePersisted || s == StateFailed
}

// Chapter is the outcome of one chapter.
type Chapter struct {
	ID       string       `json:"id" yaml:"id"`
	Ordinal  int          `json:"ordinal" yaml:"ordinal"`
	Title    string       `json:"title" yaml:"title"`
	State    ChapterState `json:"state" yaml:"state"`
	Resumed  bool         `json:"resumed,omitempty" yaml:"resumed,omitempty"`
	Segments int          `json:"segments,omitempty" yaml:"segments,omitempty"`

	OriginalWords int     `json:"original_words" yaml:"original_words"`
	TargetWords   int     `json:"target_words,omitempty" yaml:"target_words,omitempty"`
	SummaryWords  int     `json:"summary_words,omitempty" yaml:"summary_words,omitempty"`
	RatioPercent  float64 `json:"ratio_percent,omitempty" yaml:"ratio_percent,omitempty"`

	// DegradedSegments lists segments whose extraction fell back to empty.
	DegradedSegments []int `json:"degraded_segments,omitempty" yaml:"degraded_segments,omitempty"`

	FailedStage ChapterState `json:"failed_stage,omitempty" yaml:"failed_stage,omitempty"`
	Error       string       `json:"error,omitempty" yaml:"error,omitempty"`
	SkipReason  string       `json:"skip_reason,omitempty" yaml:"skip_reason,omitempty"`

	Duration time.Duration `json:"duration_ns,omitempty" yaml:"duration,omitempty"`
}

// Book is the outcome of one book run.
type Book struct {
	RunID    string `json:"run_id" yaml:"run_id"`
	BookID   string `json:"book_id" yaml:"book_id"`
	Dir      string `json:"dir" yaml:"dir"`
	Title    string `json:"title" yaml:"title"`
	Author   string `json:"author" yaml:"author"`
	Category string `json:"category" yaml:"category"`

	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`

	Chapters []Chapter `json:"chapters" yaml:"chapters"`

	Persisted int `json:"persisted" yaml:"persisted"`
	Skipped   int `json:"skipped" yaml:"skipped"`
	Failed    int `json:"failed" yaml:"failed"`

	// Halted is set when a failure stopped the book early.
	Halted bool   `json:"halted,omitempty" yaml:"halted,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Tally recounts the per-state totals from Chapters.
func (b *Book) Tally() {
	b.Persisted, b.Skipped, b.Failed = 0, 0, 0
	for _, c := range b.Chapters {
		switch c.State {
		case StatePersisted:
			b.Persisted++
		case StateSkipped:
			b.Skipped++
		case StateFailed:
			b.Failed++
		}
	}
}

// Library is the outcome of a multi-book run.
type Library struct {
	Dir    string `json:"dir" yaml:"dir"`
	Books  []Book `json:"books" yaml:"books"`
	Failed int    `json:"failed_books" yaml:"failed_books"`
}
