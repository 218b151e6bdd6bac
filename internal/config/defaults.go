package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// Entry is one documented configuration default.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// DefaultEntries returns every default, keyed by its dotted config path.
func DefaultEntries() []Entry {
	return []Entry{
		// ===================
		// LLM Providers
		// ===================

		// OpenRouter
		{Key: "llm_providers.openrouter.type", Value: "openrouter", Description: "Provider type for OpenRouter"},
		{Key: "llm_providers.openrouter.model", Value: "anthropic/claude-sonnet-4", Description: "Default model for OpenRouter"},
		{Key: "llm_providers.openrouter.api_key", Value: "${OPENROUTER_API_KEY}", Description: "OpenRouter API key (uses environment variable)"},
		{Key: "llm_providers.openrouter.rate_limit", Value: 150, Description: "Requests per minute for OpenRouter"},
		{Key: "llm_providers.openrouter.enabled", Value: true, Description: "Whether OpenRouter is enabled"},
		{Key: "llm_providers.openrouter.timeout_seconds", Value: 300, Description: "HTTP timeout in seconds for OpenRouter requests"},
		{Key: "llm_providers.openrouter.max_retries", Value: 2, Description: "Client-level retries for OpenRouter requests"},

		// OpenAI
		{Key: "llm_providers.openai.type", Value: "openai", Description: "Provider type for OpenAI"},
		{Key: "llm_providers.openai.model", Value: "gpt-4o", Description: "Default model for OpenAI"},
		{Key: "llm_providers.openai.api_key", Value: "${OPENAI_API_KEY}", Description: "OpenAI API key (uses environment variable)"},
		{Key: "llm_providers.openai.rate_limit", Value: 60, Description: "Requests per minute for OpenAI"},
		{Key: "llm_providers.openai.enabled", Value: true, Description: "Whether OpenAI is enabled"},
		{Key: "llm_providers.openai.timeout_seconds", Value: 300, Description: "HTTP timeout in seconds for OpenAI requests"},
		{Key: "llm_providers.openai.max_retries", Value: 2, Description: "SDK-level retries for OpenAI requests"},

		// Anthropic
		{Key: "llm_providers.anthropic.type", Value: "anthropic", Description: "Provider type for Anthropic"},
		{Key: "llm_providers.anthropic.model", Value: "claude-sonnet-4-5", Description: "Default model for Anthropic"},
		{Key: "llm_providers.anthropic.api_key", Value: "${ANTHROPIC_API_KEY}", Description: "Anthropic API key (uses environment variable)"},
		{Key: "llm_providers.anthropic.rate_limit", Value: 50, Description: "Requests per minute for Anthropic"},
		{Key: "llm_providers.anthropic.enabled", Value: true, Description: "Whether Anthropic is enabled"},
		{Key: "llm_providers.anthropic.timeout_seconds", Value: 300, Description: "HTTP timeout in seconds for Anthropic requests"},
		{Key: "llm_providers.anthropic.max_retries", Value: 2, Description: "SDK-level retries for Anthropic requests"},

		// ===================
		// Defaults
		// ===================
		{Key: "defaults.llm_provider", Value: "openrouter", Description: "LLM provider used for every pipeline stage"},
		{Key: "defaults.max_books", Value: 2, Description: "Books processed concurrently by run-all"},

		// ===================
		// Pipeline
		// ===================
		{Key: "pipeline.target_ratio", Value: 0.13, Description: "Summary length as a fraction of the chapter"},
		{Key: "pipeline.min_ratio", Value: 0.10, Description: "Lower bound of the requested length band"},
		{Key: "pipeline.max_ratio", Value: 0.15, Description: "Upper bound of the requested length band"},
		{Key: "pipeline.min_summary_words", Value: 200, Description: "Floor for the target word count"},
		{Key: "pipeline.max_chunk_tokens", Value: 6000, Description: "Largest segment sent to the model in one request"},
		{Key: "pipeline.skip_below_words", Value: 100, Description: "Chapters shorter than this are skipped"},
		{Key: "pipeline.continuity_chars", Value: 500, Description: "Trailing characters of the previous part summary shown to the next part"},
		{Key: "pipeline.temperature", Value: 0.3, Description: "Sampling temperature for every stage"},
		{Key: "pipeline.tokenizer", Value: "tiktoken", Description: "Token counter: tiktoken, estimate, or words"},
		{Key: "pipeline.tokenizer_model", Value: "gpt-4o", Description: "Model whose encoding the tiktoken counter uses"},
		{Key: "pipeline.failure_policy", Value: "halt", Description: "On chapter failure: halt the book, or skip the chapter"},
		{Key: "pipeline.plain_text", Value: false, Description: "Strip markdown from summaries and analyses"},

		// ===================
		// Completion
		// ===================
		{Key: "completion.max_attempts", Value: 3, Description: "Attempts per request for transient failures"},
		{Key: "completion.retry_delay", Value: "1s", Description: "Base delay for exponential backoff"},
		{Key: "completion.repair_attempts", Value: 2, Description: "Re-asks for malformed structured output"},
		{Key: "completion.max_tokens", Value: 4096, Description: "Maximum tokens per response"},

		// ===================
		// Cache
		// ===================
		{Key: "cache.backend", Value: "memory", Description: "Completion cache: none, memory, or redis"},
		{Key: "cache.redis_url", Value: "${SYNOPSIS_REDIS_URL}", Description: "Redis URL for the redis backend"},
		{Key: "cache.ttl", Value: "168h", Description: "How long redis keeps cached completions"},

		// ===================
		// Output
		// ===================
		{Key: "output.dir_name", Value: "summaries", Description: "Output directory inside each book folder"},
		{Key: "output.s3.enabled", Value: false, Description: "Mirror results to S3"},
		{Key: "output.s3.bucket", Value: "", Description: "S3 bucket"},
		{Key: "output.s3.region", Value: "us-east-1", Description: "S3 region"},
		{Key: "output.s3.endpoint", Value: "", Description: "Custom endpoint for S3-compatible stores"},
		{Key: "output.s3.prefix", Value: "synopsis", Description: "Key prefix; objects land at <prefix>/<book>/<file>"},
		{Key: "output.s3.access_key_id", Value: "${AWS_ACCESS_KEY_ID}", Description: "S3 access key (uses environment variable)"},
		{Key: "output.s3.secret_access_key", Value: "${AWS_SECRET_ACCESS_KEY}", Description: "S3 secret key (uses environment variable)"},

		// ===================
		// Ledger
		// ===================
		{Key: "ledger.enabled", Value: true, Description: "Record runs, chapters, and LLM calls in SQLite"},
		{Key: "ledger.path", Value: "", Description: "Ledger database; empty uses the home directory"},

		// ===================
		// Classifier
		// ===================
		{Key: "classifier.fiction_indicators", Value: []string{"christie", "agatha", "novel", "mystery", "murder"}, Description: "Author/title keywords that mark fiction"},
		{Key: "classifier.nonfiction_indicators", Value: []string{"freud", "interpretation", "psychology", "theory", "analysis"}, Description: "Author/title keywords that mark nonfiction"},
		{Key: "classifier.default_category", Value: "fiction", Description: "Category when no keyword matches"},
	}
}

// setDefaults registers every default as a leaf key, so environment
// variables can override any of them individually.
func setDefaults(v *viper.Viper) {
	for _, e := range DefaultEntries() {
		v.SetDefault(e.Key, e.Value)
	}
}

// DefaultConfig returns configuration built from defaults alone.
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; failing to decode them is a programming error.
		panic(fmt.Sprintf("decode default config: %v", err))
	}
	return &cfg
}

// GetDefault returns the default entry for a config key.
func GetDefault(key string) (*Entry, error) {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry, nil
		}
	}
	return nil, fmt.Errorf("%w for key %q", ErrNoDefault, key)
}
