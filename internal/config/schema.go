package config

// Config holds synopsis configuration.
// Stored at: {home}/config.yaml
type Config struct {
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`
	Pipeline     PipelineCfg               `mapstructure:"pipeline" yaml:"pipeline"`
	Completion   CompletionCfg             `mapstructure:"completion" yaml:"completion"`
	Cache        CacheCfg                  `mapstructure:"cache" yaml:"cache"`
	Output       OutputCfg                 `mapstructure:"output" yaml:"output"`
	Ledger       LedgerCfg                 `mapstructure:"ledger" yaml:"ledger"`
	Classifier   ClassifierCfg             `mapstructure:"classifier" yaml:"classifier"`
}

// LLMProviderCfg configures an LLM provider. Type is "openrouter", "openai",
// or "anthropic"; RateLimit is requests per minute; APIKey supports
// ${ENV_VAR} syntax.
type LLMProviderCfg struct {
	Type           string `mapstructure:"type" yaml:"type"`
	Model          string `mapstructure:"model" yaml:"model"`
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL        string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	RateLimit      int    `mapstructure:"rate_limit" yaml:"rate_limit"`
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries" yaml:"max_retries"`
}

// DefaultsCfg specifies default selections.
type DefaultsCfg struct {
	LLMProvider string `mapstructure:"llm_provider" yaml:"llm_provider"` // Default LLM provider
	MaxBooks    int    `mapstructure:"max_books" yaml:"max_books"`       // Books processed concurrently by run-all
}

// PipelineCfg mirrors pipeline.Settings plus tokenizer selection.
type PipelineCfg struct {
	TargetRatio     float64 `mapstructure:"target_ratio" yaml:"target_ratio"`
	MinRatio        float64 `mapstructure:"min_ratio" yaml:"min_ratio"`
	MaxRatio        float64 `mapstructure:"max_ratio" yaml:"max_ratio"`
	MinSummaryWords int     `mapstructure:"min_summary_words" yaml:"min_summary_words"`
	MaxChunkTokens  int     `mapstructure:"max_chunk_tokens" yaml:"max_chunk_tokens"`
	SkipBelowWords  int     `mapstructure:"skip_below_words" yaml:"skip_below_words"`
	ContinuityChars int     `mapstructure:"continuity_chars" yaml:"continuity_chars"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`
	Tokenizer       string  `mapstructure:"tokenizer" yaml:"tokenizer"`             // "tiktoken", "estimate", "words"
	TokenizerModel  string  `mapstructure:"tokenizer_model" yaml:"tokenizer_model"` // Model whose encoding tiktoken uses
	FailurePolicy   string  `mapstructure:"failure_policy" yaml:"failure_policy"`   // "halt" or "skip"
	PlainText       bool    `mapstructure:"plain_text" yaml:"plain_text"`
}

// CompletionCfg tunes the completion adapter.
type CompletionCfg struct {
	MaxAttempts    int    `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryDelay     string `mapstructure:"retry_delay" yaml:"retry_delay"` // Go duration, e.g. "1s"
	RepairAttempts int    `mapstructure:"repair_attempts" yaml:"repair_attempts"`
	MaxTokens      int    `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// CacheCfg selects the completion cache.
type CacheCfg struct {
	Backend  string `mapstructure:"backend" yaml:"backend"`     // "none", "memory", "redis"
	RedisURL string `mapstructure:"redis_url" yaml:"redis_url"` // Supports ${ENV_VAR} syntax
	TTL      string `mapstructure:"ttl" yaml:"ttl"`             // Go duration; "0" keeps entries forever
}

// OutputCfg configures where results are written.
type OutputCfg struct {
	DirName string `mapstructure:"dir_name" yaml:"dir_name"`
	S3      S3Cfg  `mapstructure:"s3" yaml:"s3"`
}

// S3Cfg mirrors results to an S3-compatible bucket.
type S3Cfg struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
}

// LedgerCfg configures the SQLite run ledger.
type LedgerCfg struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"` // Empty means {home}/ledger.db
}

// ClassifierCfg configures keyword category classification.
type ClassifierCfg struct {
	FictionIndicators    []string `mapstructure:"fiction_indicators" yaml:"fiction_indicators"`
	NonfictionIndicators []string `mapstructure:"nonfiction_indicators" yaml:"nonfiction_indicators"`
	DefaultCategory      string   `mapstructure:"default_category" yaml:"default_category"`
}
