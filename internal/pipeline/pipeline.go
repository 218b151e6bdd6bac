// Package pipeline drives a book through extraction, summary, analysis, and
// context update, one chapter at a time in reading order.
//
// Each chapter moves Pending -> Extracting -> Summarizing -> Analyzing ->
// ContextUpdate -> Persisted, or is Skipped before extraction when it is too
// short. Output becomes visible only at Persisted. The rolling context has a
// single writer, the context update of the chapter before.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/synopsis/internal/analyzer"
	"github.com/jackzampolin/synopsis/internal/book"
	"github.com/jackzampolin/synopsis/internal/chunker"
	"github.com/jackzampolin/synopsis/internal/completion"
	"github.com/jackzampolin/synopsis/internal/contextupdate"
	"github.com/jackzampolin/synopsis/internal/extractor"
	"github.com/jackzampolin/synopsis/internal/prompts"
	"github.com/jackzampolin/synopsis/internal/prompts/analysis"
	"github.com/jackzampolin/synopsis/internal/prompts/extraction"
	"github.com/jackzampolin/synopsis/internal/prompts/rolling"
	"github.com/jackzampolin/synopsis/internal/prompts/summary"
	"github.com/jackzampolin/synopsis/internal/report"
	"github.com/jackzampolin/synopsis/internal/sink"
	"github.com/jackzampolin/synopsis/internal/summarizer"
	"github.com/jackzampolin/synopsis/internal/tokens"
)

// RegisterPrompts registers every stage prompt with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	extraction.RegisterPrompts(r)
	summary.RegisterPrompts(r)
	analysis.RegisterPrompts(r)
	rolling.RegisterPrompts(r)
}

// Deps are the collaborators a pipeline runs against.
type Deps struct {
	Service  completion.Service
	Resolver *prompts.Resolver
	Counter  tokens.Counter
	Logger   *slog.Logger
	Observer Observer
}

// Pipeline processes books. It holds no per-book state, so one Pipeline
// may run several books concurrently.
type Pipeline struct {
	settings   Settings
	counter    tokens.Counter
	extractor  *extractor.Extractor
	summarizer *summarizer.Summarizer
	analyzer   *analyzer.Analyzer
	updater    *contextupdate.Updater
	observer   Observer
	logger     *slog.Logger
}

// New validates settings and wires the stage components.
func New(s Settings, d Deps) (*Pipeline, error) {
	if s.FailurePolicy == "" {
		s.FailurePolicy = PolicyHalt
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline settings: %w", err)
	}
	if d.Service == nil {
		return nil, fmt.Errorf("pipeline requires a completion service")
	}
	if d.Resolver == nil {
		d.Resolver = prompts.NewResolver(nil, d.Logger)
		RegisterPrompts(d.Resolver)
	}
	if d.Counter == nil {
		d.Counter = tokens.EstimateCounter{}
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := Observer(LogObserver{Logger: logger})
	if d.Observer != nil {
		observer = multiObserver{observer, d.Observer}
	}

	return &Pipeline{
		settings:   s,
		counter:    d.Counter,
		extractor:  extractor.New(d.Service, d.Resolver, s.Temperature, logger),
		summarizer: summarizer.New(d.Service, d.Resolver, s.summarizer(), logger),
		analyzer:   analyzer.New(d.Service, d.Resolver, s.Temperature, logger),
		updater:    contextupdate.New(d.Service, d.Resolver, s.Temperature, logger),
		observer:   observer,
		logger:     logger,
	}, nil
}

// Settings returns the pipeline's settings.
func (p *Pipeline) Settings() Settings { return p.settings }

type runOptions struct {
	runID       string
	checkpoints map[string]book.RollingContext
}

// RunOption customizes a single Run.
type RunOption func(*runOptions)

// WithRunID sets the run identifier instead of generating one.
func WithRunID(id string) RunOption {
	return func(o *runOptions) { o.runID = id }
}

// WithResume restores progress from checkpoints: chapter ID to the context
// produced after that chapter. The leading run of chapters that are
// checkpointed (or would be skipped anyway) is not reprocessed.
func WithResume(checkpoints map[string]book.RollingContext) RunOption {
	return func(o *runOptions) { o.checkpoints = checkpoints }
}

// bookRun is the state of one Run call.
type bookRun struct {
	b       *book.Book
	out     sink.Sink
	rep     *report.Book
	rolling book.RollingContext
}

// Run processes b's chapters in order and writes results to out.
//
// The report is returned even on error. A halted run returns the
// *StageError of the failed chapter; a cancelled run returns ctx.Err().
// In both cases the final context is not persisted.
func (p *Pipeline) Run(ctx context.Context, b *book.Book, out sink.Sink, opts ...RunOption) (*report.Book, error) {
	if b == nil {
		return nil, fmt.Errorf("nil book")
	}
	if !b.Category.Valid() {
		return nil, fmt.Errorf("book %s: invalid category %q", b.ID, b.Category)
	}
	if out == nil {
		out = sink.Discard{}
	}
	o := runOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.runID == "" {
		o.runID = uuid.New().String()
	}

	meta := b.Metadata.Normalized()
	run := &bookRun{
		b:   b,
		out: out,
		rep: &report.Book{
			RunID:     o.runID,
			BookID:    b.ID,
			Dir:       b.Dir,
			Title:     meta.Title,
			Author:    meta.Author(),
			Category:  string(b.Category),
			StartedAt: time.Now(),
			Chapters:  make([]report.Chapter, len(b.Chapters)),
		},
		rolling: book.EmptyContext(b.Category),
	}
	for i, ch := range b.Chapters {
		run.rep.Chapters[i] = report.Chapter{
			ID:            ch.ID,
			Ordinal:       ch.Ordinal,
			Title:         ch.Label(),
			State:         report.StatePending,
			OriginalWords: tokens.Words(ch.Body),
		}
	}

	tracker, _ := out.(sink.RunTracker)
	if tracker != nil {
		if err := tracker.StartRun(ctx, run.rep); err != nil {
			p.logger.Warn("failed to record run start", "book", b.ID, "run_id", o.runID, "error", err)
		}
	}
	p.logger.Info("starting book",
		"book", b.ID,
		"title", meta.Title,
		"category", b.Category,
		"chapters", len(b.Chapters),
		"run_id", o.runID)

	err := p.run(ctx, run, o.checkpoints)

	run.rep.FinishedAt = time.Now()
	run.rep.Tally()
	if err != nil {
		run.rep.Halted = true
		run.rep.Error = err.Error()
	}
	if tracker != nil {
		if ferr := tracker.FinishRun(context.WithoutCancel(ctx), run.rep); ferr != nil {
			p.logger.Warn("failed to record run finish", "book", b.ID, "run_id", o.runID, "error", ferr)
		}
	}

	logArgs := []any{
		"book", b.ID,
		"persisted", run.rep.Persisted,
		"skipped", run.rep.Skipped,
		"failed", run.rep.Failed,
		"elapsed", run.rep.FinishedAt.Sub(run.rep.StartedAt).Round(time.Millisecond),
	}
	if err != nil {
		p.logger.Error("book stopped", append(logArgs, "error", err)...)
	} else {
		p.logger.Info("book complete", logArgs...)
	}
	return run.rep, err
}

func (p *Pipeline) run(ctx context.Context, run *bookRun, checkpoints map[string]book.RollingContext) error {
	start := p.restore(run, checkpoints)

	for i := start; i < len(run.b.Chapters); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.processChapter(ctx, run, i); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if p.settings.FailurePolicy == PolicyHalt {
				return err
			}
		}
	}

	if err := run.out.PersistContext(ctx, run.b, run.rolling); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("persist final context: %w", err)
	}
	return nil
}

// restore marks the checkpointed prefix of the book as done and returns
// the index of the first chapter that still needs processing.
func (p *Pipeline) restore(run *bookRun, checkpoints map[string]book.RollingContext) int {
	if len(checkpoints) == 0 {
		return 0
	}
	for i, ch := range run.b.Chapters {
		rc := &run.rep.Chapters[i]
		if rc.OriginalWords < p.settings.SkipBelowWords {
			p.skip(run, i)
			continue
		}
		cp, ok := checkpoints[ch.ID]
		if !ok || cp.Category != run.b.Category || cp.IsEmpty() {
			return i
		}
		run.rolling = cp
		rc.State = report.StatePersisted
		rc.Resumed = true
		p.observer.ChapterTransition(Event{
			RunID:   run.rep.RunID,
			BookID:  run.b.ID,
			Chapter: rc.Title,
			Ordinal: rc.Ordinal,
			From:    report.StatePending,
			To:      report.StatePersisted,
			Resumed: true,
		})
	}
	return len(run.b.Chapters)
}

func (p *Pipeline) skip(run *bookRun, i int) {
	rc := &run.rep.Chapters[i]
	rc.SkipReason = fmt.Sprintf("%v: %d words, threshold %d", ErrChapterTooShort, rc.OriginalWords, p.settings.SkipBelowWords)
	p.advance(run, i, report.StateSkipped, nil, rc.SkipReason, 0)
}

// advance moves chapter i to state `to`, validating the transition.
func (p *Pipeline) advance(run *bookRun, i int, to report.ChapterState, err error, detail string, elapsed time.Duration) {
	rc := &run.rep.Chapters[i]
	from := rc.State
	if terr := Transition(from, to); terr != nil {
		// A bug in the state machine, not a chapter failure.
		panic(terr)
	}
	rc.State = to
	p.observer.ChapterTransition(Event{
		RunID:   run.rep.RunID,
		BookID:  run.b.ID,
		Chapter: rc.Title,
		Ordinal: rc.Ordinal,
		From:    from,
		To:      to,
		Err:     err,
		Detail:  detail,
		Elapsed: elapsed,
	})
}

// fail records a stage failure on chapter i and returns it as a StageError.
func (p *Pipeline) fail(run *bookRun, i int, err error, started time.Time) error {
	rc := &run.rep.Chapters[i]
	serr := &StageError{Chapter: rc.Title, Ordinal: rc.Ordinal, Stage: rc.State, Err: err}
	rc.FailedStage = rc.State
	rc.Error = err.Error()
	rc.Duration = time.Since(started)
	p.advance(run, i, report.StateFailed, err, "", rc.Duration)
	return serr
}

// processChapter runs chapter i through every stage. The rolling context
// advances only once the chapter is persisted.
func (p *Pipeline) processChapter(ctx context.Context, run *bookRun, i int) error {
	ch := run.b.Chapters[i]
	rc := &run.rep.Chapters[i]
	started := time.Now()

	if rc.OriginalWords < p.settings.SkipBelowWords {
		p.skip(run, i)
		return nil
	}

	segments := chunker.Chunk(ch.Body, p.settings.MaxChunkTokens, p.counter)
	rc.Segments = len(segments)
	prior := run.rolling.PriorContext()

	p.advance(run, i, report.StateExtracting, nil, fmt.Sprintf("%d segment(s)", len(segments)), 0)
	extracted, err := p.extractor.Extract(ctx, extractor.Input{
		RunID:    run.rep.RunID,
		Book:     run.b,
		Chapter:  ch,
		Segments: segments,
		Prior:    prior,
	})
	if err != nil {
		return p.fail(run, i, err, started)
	}
	rc.DegradedSegments = extracted.Degraded

	p.advance(run, i, report.StateSummarizing, nil, "", time.Since(started))
	summarized, err := p.summarizer.Summarize(ctx, summarizer.Input{
		RunID:      run.rep.RunID,
		Book:       run.b,
		Chapter:    ch,
		Segments:   segments,
		Extraction: extracted.Extraction,
		Prior:      prior,
	})
	if err != nil {
		return p.fail(run, i, err, started)
	}
	rc.TargetWords = summarized.TargetWords

	p.advance(run, i, report.StateAnalyzing, nil, "", time.Since(started))
	analysisText, err := p.analyzer.Analyze(ctx, analyzer.Input{
		RunID:       run.rep.RunID,
		Book:        run.b,
		Chapter:     ch,
		Summary:     summarized.Summary,
		Extraction:  extracted.Extraction,
		ThemesSoFar: run.rolling.ThemesSoFar(),
		PlainText:   p.settings.PlainText,
	})
	if err != nil {
		return p.fail(run, i, err, started)
	}

	p.advance(run, i, report.StateContextUpdate, nil, "", time.Since(started))
	updated, err := p.updater.Update(ctx, contextupdate.Input{
		RunID:      run.rep.RunID,
		Book:       run.b,
		Chapter:    ch,
		Prior:      run.rolling,
		Summary:    summarized.Summary,
		Extraction: extracted.Extraction,
	})
	if err != nil {
		return p.fail(run, i, err, started)
	}

	// Nothing is visible before this point; a cancellation that arrived
	// during the last request must not produce output.
	if err := ctx.Err(); err != nil {
		return p.fail(run, i, err, started)
	}

	result := book.ChapterResult{
		RunID:         run.rep.RunID,
		Chapter:       ch,
		Category:      run.b.Category,
		Summary:       summarized.Summary,
		Analysis:      analysisText,
		Extraction:    extracted.Extraction,
		Context:       updated,
		OriginalWords: summarized.OriginalWords,
		SummaryWords:  tokens.Words(summarized.Summary),
		TargetWords:   summarized.TargetWords,
		Segments:      len(segments),
	}
	if err := run.out.PersistChapter(ctx, run.b, result); err != nil {
		return p.fail(run, i, fmt.Errorf("persist: %w", err), started)
	}

	run.rolling = updated
	rc.SummaryWords = result.SummaryWords
	rc.RatioPercent = result.Ratio() * 100
	rc.Duration = time.Since(started)
	p.advance(run, i, report.StatePersisted, nil,
		fmt.Sprintf("%d -> %d words (%.1f%%)", result.OriginalWords, result.SummaryWords, rc.RatioPercent),
		rc.Duration)
	return nil
}

// IsStageFailure reports whether err came from a chapter stage rather than
// cancellation or the final context write.
func IsStageFailure(err error) bool {
	var serr *StageError
	return errors.As(err, &serr)
}
