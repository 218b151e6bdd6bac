package pipeline

import (
	"errors"
	"fmt"

	"github.com/jackzampolin/synopsis/internal/report"
)

// ErrChapterTooShort marks a chapter below the skip threshold. It is
// reported as a skip reason, never returned from Run.
var ErrChapterTooShort = errors.New("chapter too short to summarize")

// StageError names the chapter and stage a failure happened in.
type StageError struct {
	Chapter string
	Ordinal int
	Stage   report.ChapterState
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("chapter %d (%s) failed during %s: %v", e.Ordinal, e.Chapter, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
