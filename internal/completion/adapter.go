package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/synopsis/internal/llmcall"
	"github.com/jackzampolin/synopsis/internal/providers"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = time.Second
)

// Config tunes the adapter.
type Config struct {
	Model          string        // Overrides the client default when set
	MaxAttempts    int           // Attempts per request for transient failures
	RetryDelay     time.Duration // Base delay for exponential backoff
	RepairAttempts int           // Re-asks for malformed structured output
	Timeout        time.Duration // Per-attempt timeout; 0 uses the client's
	MaxTokens      int
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.RepairAttempts < 0 {
		c.RepairAttempts = 0
	}
	return c
}

// Adapter implements Service over an LLMClient.
type Adapter struct {
	client   providers.LLMClient
	limiter  *providers.RateLimiter
	cache    Cache
	recorder *llmcall.Recorder
	cfg      Config
	logger   *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithRateLimiter makes every attempt wait on the limiter.
func WithRateLimiter(l *providers.RateLimiter) Option {
	return func(a *Adapter) { a.limiter = l }
}

// WithCache serves repeated identical requests from c.
func WithCache(c Cache) Option {
	return func(a *Adapter) { a.cache = c }
}

// WithRecorder records every provider call.
func WithRecorder(r *llmcall.Recorder) Option {
	return func(a *Adapter) { a.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// NewAdapter creates an adapter for client.
func NewAdapter(client providers.LLMClient, cfg Config, opts ...Option) *Adapter {
	a := &Adapter{
		client: client,
		cfg:    cfg.withDefaults(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Complete sends req, retrying transient failures and repairing malformed
// structured output.
func (a *Adapter) Complete(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || req.Prompt == "" {
		return nil, fmt.Errorf("completion request has no prompt")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := CacheKey(a.client.Name(), a.cfg.Model, req)
	if resp, ok := a.fromCache(ctx, key, req); ok {
		return resp, nil
	}

	messages := providers.SystemAndUser(req.System, req.Prompt)
	result, attempts, err := a.chat(ctx, req, messages)
	if err != nil {
		return nil, err
	}

	resp := &Response{Text: result.Content, Attempts: attempts}
	if req.Structured {
		raw, n, err := a.structured(ctx, req, messages, result)
		resp.Attempts += n
		if err != nil {
			return nil, err
		}
		resp.JSON = raw
		resp.Text = string(raw)
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, key, resp.Text); err != nil {
			a.logger.Warn("completion cache write failed", "error", err, "stage", req.Stage)
		}
	}
	return resp, nil
}

func (a *Adapter) fromCache(ctx context.Context, key string, req *Request) (*Response, bool) {
	if a.cache == nil {
		return nil, false
	}
	text, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		a.logger.Warn("completion cache read failed", "error", err, "stage", req.Stage)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	resp := &Response{Text: text, Cached: true}
	if req.Structured {
		raw, err := a.validate(req, nil, text)
		if err != nil {
			a.logger.Warn("discarding invalid cached completion", "error", err, "stage", req.Stage)
			return nil, false
		}
		resp.JSON = raw
	}
	a.logger.Debug("completion served from cache", "stage", req.Stage, "chapter", req.ChapterID)
	return resp, true
}

// chat performs one logical request with retries. It returns the number of
// provider attempts made.
func (a *Adapter) chat(ctx context.Context, req *Request, messages []providers.Message) (*providers.ChatResult, int, error) {
	chatReq := &providers.ChatRequest{
		Messages:    messages,
		Model:       a.cfg.Model,
		Temperature: req.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
		Timeout:     a.cfg.Timeout,
	}
	if req.Structured {
		chatReq.ResponseFormat = &providers.ResponseFormat{Type: "json_object"}
		if len(req.Schema) > 0 {
			chatReq.ResponseFormat = &providers.ResponseFormat{Type: "json_schema", JSONSchema: req.Schema}
		}
	}

	attempts := 0
	result, err := retry.DoWithData(
		func() (*providers.ChatResult, error) {
			attempts++
			if a.limiter != nil {
				if err := a.limiter.Wait(ctx); err != nil {
					return nil, retry.Unrecoverable(err)
				}
			}
			res, err := a.client.Chat(ctx, chatReq)
			a.record(ctx, req, res)
			if err != nil {
				var rl *providers.RateLimitError
				if errors.As(err, &rl) && a.limiter != nil {
					a.limiter.Record429(rl.RetryAfter)
				}
				return nil, err
			}
			return res, nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(a.cfg.MaxAttempts)),
		retry.Delay(a.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(providers.IsTransient),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			a.logger.Warn("completion attempt failed, retrying",
				"stage", req.Stage,
				"chapter", req.ChapterID,
				"attempt", n+1,
				"error", err)
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, attempts, ctxErr
		}
		if providers.IsTransient(err) {
			return nil, attempts, fmt.Errorf("%w: %s failed after %d attempts: %w", ErrServiceUnavailable, a.client.Name(), attempts, err)
		}
		return nil, attempts, fmt.Errorf("%s request to %s: %w", req.Stage, a.client.Name(), err)
	}
	return result, attempts, nil
}

// structured validates the first result, re-asking with a repair prompt
// until the output conforms or the repair budget runs out.
func (a *Adapter) structured(ctx context.Context, req *Request, messages []providers.Message, result *providers.ChatResult) (json.RawMessage, int, error) {
	content := result.Content
	raw, issue := a.validate(req, result.ParsedJSON, content)

	attempts := 0
	for repair := 0; issue != nil && repair < a.cfg.RepairAttempts; repair++ {
		a.logger.Warn("structured output invalid, requesting repair",
			"stage", req.Stage,
			"chapter", req.ChapterID,
			"repair", repair+1,
			"error", issue)

		repairMsgs := append(append([]providers.Message{}, messages...),
			providers.Message{Role: "assistant", Content: content},
			providers.Message{Role: "user", Content: providers.RepairPrompt(req.Schema, content, issue)},
		)
		res, n, err := a.chat(ctx, req, repairMsgs)
		attempts += n
		if err != nil {
			return nil, attempts, err
		}
		content = res.Content
		raw, issue = a.validate(req, res.ParsedJSON, content)
	}
	if issue != nil {
		return nil, attempts, fmt.Errorf("%w: %s: %v", ErrMalformedOutput, req.PromptKey, issue)
	}
	return raw, attempts, nil
}

func (a *Adapter) validate(req *Request, parsed json.RawMessage, content string) (json.RawMessage, error) {
	raw := parsed
	if len(raw) == 0 {
		var err error
		if raw, err = providers.ParseStructuredJSON(content); err != nil {
			return nil, err
		}
	}
	if len(req.Schema) > 0 && !req.Lenient {
		if err := providers.ValidateStructuredJSON(req.Schema, raw); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

func (a *Adapter) record(ctx context.Context, req *Request, result *providers.ChatResult) {
	if a.recorder == nil || result == nil {
		return
	}
	temp := req.Temperature
	a.recorder.Record(ctx, result, llmcall.RecordOptions{
		RunID:       req.RunID,
		BookID:      req.BookID,
		ChapterID:   req.ChapterID,
		Stage:       req.Stage,
		PromptKey:   req.PromptKey,
		Prompt:      req.Prompt,
		Temperature: &temp,
	})
}

var _ Service = (*Adapter)(nil)
