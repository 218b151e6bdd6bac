package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/synopsis/internal/report"
)

// next is the only forward move from each working state.
var next = map[report.ChapterState]report.ChapterState{
	report.StatePending:       report.StateExtracting,
	report.StateExtracting:    report.StateSummarizing,
	report.StateSummarizing:   report.StateAnalyzing,
	report.StateAnalyzing:     report.StateContextUpdate,
	report.StateContextUpdate: report.StatePersisted,
}

// Transition reports whether a chapter may move from one state to another.
// Chapters advance strictly in order; a pending chapter may instead be
// skipped, and any working state may fail.
func Transition(from, to report.ChapterState) error {
	if from.Terminal() {
		return fmt.Errorf("chapter already %s, cannot move to %s", from, to)
	}
	switch {
	case next[from] == to:
		return nil
	case from == report.StatePending && to == report.StateSkipped:
		return nil
	case from != report.StatePending && to == report.StateFailed:
		return nil
	}
	return fmt.Errorf("invalid chapter transition %s -> %s", from, to)
}

// Event is one chapter state change.
type Event struct {
	RunID   string
	BookID  string
	Chapter string
	Ordinal int
	From    report.ChapterState
	To      report.ChapterState
	// Resumed is set when a chapter is restored from a checkpoint instead
	// of being processed.
	Resumed bool
	Err     error
	Detail  string
	Elapsed time.Duration
}

// Observer receives every chapter transition, in order.
type Observer interface {
	ChapterTransition(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event)

func (f ObserverFunc) ChapterTransition(ev Event) { f(ev) }

// LogObserver logs transitions: terminal states at info (failures at
// error), working states at debug.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) ChapterTransition(ev Event) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"book", ev.BookID,
		"chapter", ev.Chapter,
		"ordinal", ev.Ordinal,
		"from", ev.From,
		"to", ev.To,
	}
	if ev.Detail != "" {
		attrs = append(attrs, "detail", ev.Detail)
	}
	if ev.Elapsed > 0 {
		attrs = append(attrs, "elapsed", ev.Elapsed.Round(time.Millisecond))
	}

	switch ev.To {
	case report.StateFailed:
		logger.Error("chapter failed", append(attrs, "stage", ev.From, "error", ev.Err)...)
	case report.StatePersisted:
		if ev.Resumed {
			logger.Info("chapter restored from checkpoint", attrs...)
			return
		}
		logger.Info("chapter persisted", attrs...)
	case report.StateSkipped:
		logger.Info("chapter skipped", attrs...)
	default:
		logger.Debug("chapter state", attrs...)
	}
}

type multiObserver []Observer

func (m multiObserver) ChapterTransition(ev Event) {
	for _, o := range m {
		o.ChapterTransition(ev)
	}
}
