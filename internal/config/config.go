package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/synopsis/internal/book"
	"github.com/jackzampolin/synopsis/internal/completion"
	"github.com/jackzampolin/synopsis/internal/pipeline"
	"github.com/jackzampolin/synopsis/internal/providers"
	"github.com/jackzampolin/synopsis/internal/sink"
	"github.com/jackzampolin/synopsis/internal/source"
	"github.com/jackzampolin/synopsis/internal/tokens"
)

// EnvPrefix prefixes environment overrides: SYNOPSIS_PIPELINE_TARGET_RATIO
// sets pipeline.target_ratio.
const EnvPrefix = "SYNOPSIS"

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
// With an empty cfgFile, config.yaml is looked up in the working
// directory and then in homeDir.
func NewManager(cfgFile, homeDir string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile, homeDir); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile, homeDir string) error {
	v := cm.v
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if homeDir != "" {
			v.AddConfigPath(homeDir)
		}
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the file the configuration was read from, if any.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// ToProviderRegistryConfig converts the config to a format suitable for providers.Registry.
// It resolves all ${ENV_VAR} references in API keys.
func (c *Config) ToProviderRegistryConfig() providers.RegistryConfig {
	cfg := providers.RegistryConfig{
		LLMProviders: make(map[string]providers.LLMProviderConfig),
	}
	for name, llm := range c.LLMProviders {
		cfg.LLMProviders[name] = providers.LLMProviderConfig{
			Type:           llm.Type,
			Model:          llm.Model,
			APIKey:         ResolveEnvVars(llm.APIKey),
			BaseURL:        llm.BaseURL,
			RateLimit:      llm.RateLimit,
			TimeoutSeconds: llm.TimeoutSeconds,
			MaxRetries:     llm.MaxRetries,
			Enabled:        llm.Enabled,
		}
	}
	return cfg
}

// PipelineSettings converts and validates the pipeline section.
func (c *Config) PipelineSettings() (pipeline.Settings, error) {
	p := c.Pipeline
	policy, err := pipeline.ParseFailurePolicy(p.FailurePolicy)
	if err != nil {
		return pipeline.Settings{}, err
	}
	s := pipeline.Settings{
		TargetRatio:     p.TargetRatio,
		MinRatio:        p.MinRatio,
		MaxRatio:        p.MaxRatio,
		MinSummaryWords: p.MinSummaryWords,
		MaxChunkTokens:  p.MaxChunkTokens,
		SkipBelowWords:  p.SkipBelowWords,
		ContinuityChars: p.ContinuityChars,
		Temperature:     p.Temperature,
		FailurePolicy:   policy,
		PlainText:       p.PlainText,
	}
	if err := s.Validate(); err != nil {
		return pipeline.Settings{}, fmt.Errorf("pipeline config: %w", err)
	}
	return s, nil
}

// Tokenizer builds the configured token counter.
func (c *Config) Tokenizer() (tokens.Counter, error) {
	return tokens.New(c.Pipeline.Tokenizer, c.Pipeline.TokenizerModel)
}

// CompletionConfig converts the completion section. model, when set,
// overrides the provider's configured model.
func (c *Config) CompletionConfig(model string) (completion.Config, error) {
	delay, err := parseDuration("completion.retry_delay", c.Completion.RetryDelay)
	if err != nil {
		return completion.Config{}, err
	}
	return completion.Config{
		Model:          model,
		MaxAttempts:    c.Completion.MaxAttempts,
		RetryDelay:     delay,
		RepairAttempts: c.Completion.RepairAttempts,
		MaxTokens:      c.Completion.MaxTokens,
	}, nil
}

// CacheTTL parses cache.ttl.
func (c *Config) CacheTTL() (time.Duration, error) {
	return parseDuration("cache.ttl", c.Cache.TTL)
}

// BookClassifier converts the classifier section.
func (c *Config) BookClassifier() (source.Classifier, error) {
	cl := source.Classifier{
		FictionIndicators:    c.Classifier.FictionIndicators,
		NonfictionIndicators: c.Classifier.NonfictionIndicators,
		Default:              book.Fiction,
	}
	if c.Classifier.DefaultCategory != "" {
		cat, err := book.ParseCategory(c.Classifier.DefaultCategory)
		if err != nil {
			return source.Classifier{}, fmt.Errorf("classifier.default_category: %w", err)
		}
		cl.Default = cat
	}
	return cl, nil
}

// S3Config returns the S3 sink configuration with credentials resolved.
func (c *Config) S3Config() sink.S3Config {
	s := c.Output.S3
	return sink.S3Config{
		Bucket:          s.Bucket,
		Region:          s.Region,
		Endpoint:        s.Endpoint,
		Prefix:          s.Prefix,
		AccessKeyID:     ResolveEnvVars(s.AccessKeyID),
		SecretAccessKey: ResolveEnvVars(s.SecretAccessKey),
	}
}

// LedgerPath returns the ledger database path, defaulting into homeDir.
func (c *Config) LedgerPath(homeDir string) string {
	if c.Ledger.Path != "" {
		return c.Ledger.Path
	}
	return filepath.Join(homeDir, "ledger.db")
}

func parseDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Synopsis configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENROUTER_API_KEY=xxx OPENAI_API_KEY=xxx ANTHROPIC_API_KEY=xxx
# Any key can also be overridden from the environment, e.g. SYNOPSIS_PIPELINE_TARGET_RATIO=0.12

`)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, append(header, data...), 0o644)
}
