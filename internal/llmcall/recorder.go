package llmcall

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/synopsis/internal/providers"
)

// Sink persists recorded calls.
type Sink interface {
	RecordCall(ctx context.Context, call *Call) error
}

// Recorder handles best-effort LLM call recording via a Sink.
// Recording failures are logged, never returned.
type Recorder struct {
	sink   Sink
	logger *slog.Logger
}

// NewRecorder creates a new LLM call recorder. A nil sink disables recording.
func NewRecorder(sink Sink, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{sink: sink, logger: logger}
}

// Record captures an LLM call.
func (r *Recorder) Record(ctx context.Context, result *providers.ChatResult, opts RecordOptions) {
	r.RecordCall(ctx, FromChatResult(result, opts))
}

// RecordCall captures an already-constructed Call.
func (r *Recorder) RecordCall(ctx context.Context, call *Call) {
	if r == nil || r.sink == nil || call == nil {
		return
	}
	// Recording outlives a cancelled request so failed calls are still traced.
	if err := r.sink.RecordCall(context.WithoutCancel(ctx), call); err != nil {
		r.logger.Warn("failed to record LLM call",
			"error", err,
			"stage", call.Stage,
			"prompt_key", call.PromptKey)
	}
}
