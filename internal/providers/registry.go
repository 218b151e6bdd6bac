package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Registry holds the configured LLM clients and one rate limiter per client.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]LLMClient
	limiters map[string]*RateLimiter
	logger   *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		clients:  make(map[string]LLMClient),
		limiters: make(map[string]*RateLimiter),
		logger:   slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register adds an LLM client with its requests-per-minute budget.
func (r *Registry) Register(name string, client LLMClient, requestsPerMinute int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.limiters[name] = NewRateLimiter(requestsPerMinute)
	if r.logger != nil {
		r.logger.Info("registered LLM client", "name", name, "rpm", requestsPerMinute)
	}
}

// Get returns an LLM client and its rate limiter by name.
func (r *Registry) Get(name string) (LLMClient, *RateLimiter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[name]
	if !ok {
		return nil, nil, fmt.Errorf("LLM client not found: %s", name)
	}
	return client, r.limiters[name], nil
}

// Has checks if an LLM client is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[name]
	return ok
}

// List returns registered client names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegistryConfig defines the providers to instantiate from config.
type RegistryConfig struct {
	LLMProviders map[string]LLMProviderConfig
}

// LLMProviderConfig matches config.LLMProviderCfg with a resolved API key.
type LLMProviderConfig struct {
	Type           string // "openrouter", "openai", "anthropic"
	Model          string
	APIKey         string
	BaseURL        string
	RateLimit      int // Requests per minute
	TimeoutSeconds int
	MaxRetries     int
	Enabled        bool
}

// NewRegistryFromConfig creates a registry with every enabled provider that
// has an API key. Providers of unknown type are logged and skipped.
func NewRegistryFromConfig(cfg RegistryConfig, logger *slog.Logger) *Registry {
	r := NewRegistry()
	if logger != nil {
		r.logger = logger
	}
	for name, provCfg := range cfg.LLMProviders {
		if !provCfg.Enabled || provCfg.APIKey == "" {
			continue
		}
		client := createLLMClient(provCfg)
		if client == nil {
			r.logger.Warn("skipping provider of unknown type", "name", name, "type", provCfg.Type)
			continue
		}
		r.Register(name, client, provCfg.RateLimit)
	}
	return r
}

// createLLMClient creates an LLM client based on provider type.
func createLLMClient(cfg LLMProviderConfig) LLMClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch cfg.Type {
	case OpenRouterName:
		return NewOpenRouterClient(OpenRouterConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      timeout,
			MaxRetries:   cfg.MaxRetries,
		})
	case OpenAIName:
		return NewOpenAIClient(OpenAIConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      timeout,
			MaxRetries:   cfg.MaxRetries,
		})
	case AnthropicName:
		return NewAnthropicClient(AnthropicConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      timeout,
			MaxRetries:   cfg.MaxRetries,
		})
	default:
		return nil
	}
}
