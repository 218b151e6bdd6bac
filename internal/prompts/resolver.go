package prompts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Resolver resolves prompts with file overrides.
type Resolver struct {
	store    *FileStore
	embedded map[string]EmbeddedPrompt
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewResolver creates a new prompt resolver. A nil store serves embedded
// defaults only.
func NewResolver(store *FileStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:    store,
		embedded: make(map[string]EmbeddedPrompt),
		logger:   logger,
	}
}

// Register registers an embedded prompt.
// This should be called during initialization by each stage.
func (r *Resolver) Register(prompt EmbeddedPrompt) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prompt.Hash == "" {
		prompt.Hash = HashText(prompt.Text)
	}
	if prompt.Variables == nil {
		prompt.Variables = ExtractVariables(prompt.Text)
	}

	r.embedded[prompt.Key] = prompt
	r.logger.Debug("registered embedded prompt", "key", prompt.Key, "vars", prompt.Variables)
}

// Resolve resolves a prompt for the book stored at bookDir.
// Returns the override if one exists, otherwise the embedded default.
func (r *Resolver) Resolve(_ context.Context, key string, bookDir string) (*ResolvedPrompt, error) {
	if r.store != nil || bookDir != "" {
		override, err := r.store.Override(bookDir, key)
		if err != nil {
			r.logger.Warn("failed to check prompt override", "key", key, "book_dir", bookDir, "error", err)
			// Fall through to embedded default
		} else if override != nil {
			return &ResolvedPrompt{
				Key:        key,
				Text:       override.Text,
				Variables:  ExtractVariables(override.Text),
				IsOverride: true,
				Source:     override.Path,
				Hash:       HashText(override.Text),
			}, nil
		}
	}

	r.mu.RLock()
	embedded, ok := r.embedded[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("prompt not found: %s", key)
	}

	return &ResolvedPrompt{
		Key:       key,
		Text:      embedded.Text,
		Variables: embedded.Variables,
		Source:    "embedded",
		Hash:      embedded.Hash,
	}, nil
}

// Render resolves key for bookDir and executes it with data.
func (r *Resolver) Render(ctx context.Context, key, bookDir string, data any) (string, error) {
	p, err := r.Resolve(ctx, key, bookDir)
	if err != nil {
		return "", err
	}
	return Execute(key, p.Text, data)
}

// Build renders a system/user pair. schema, when non-nil, is a
// response_format envelope ({"type":"json_schema","json_schema":{...}});
// its json_schema member is attached to the result.
func (r *Resolver) Build(ctx context.Context, bookDir, systemKey, userKey string, data any, schema map[string]any) (*Built, error) {
	system, err := r.Render(ctx, systemKey, bookDir, data)
	if err != nil {
		return nil, err
	}
	user, err := r.Render(ctx, userKey, bookDir, data)
	if err != nil {
		return nil, err
	}

	built := &Built{Key: userKey, System: system, User: user}
	if schema != nil {
		inner, ok := schema["json_schema"]
		if !ok {
			inner = schema
		}
		raw, err := json.Marshal(inner)
		if err != nil {
			return nil, fmt.Errorf("marshal schema for %s: %w", userKey, err)
		}
		built.Schema = raw
	}
	return built, nil
}

// GetEmbedded returns the embedded default for a key (no book resolution).
func (r *Resolver) GetEmbedded(key string) (*EmbeddedPrompt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.embedded[key]
	return &p, ok
}

// AllEmbedded returns all registered embedded prompts, sorted by key.
func (r *Resolver) AllEmbedded() []EmbeddedPrompt {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]EmbeddedPrompt, 0, len(r.embedded))
	for _, p := range r.embedded {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}
