package providers

import (
	"os"
)

// TestConfig holds provider API keys loaded from the environment, so
// integration tests run only where credentials exist.
type TestConfig struct {
	OpenRouterAPIKey string
	OpenAIAPIKey     string
	AnthropicAPIKey  string
}

// LoadTestConfig loads provider API keys from environment variables.
func LoadTestConfig() TestConfig {
	return TestConfig{
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
	}
}

// HasOpenRouter returns true if an OpenRouter API key is configured.
func (c TestConfig) HasOpenRouter() bool {
	return c.OpenRouterAPIKey != ""
}

// HasOpenAI returns true if an OpenAI API key is configured.
func (c TestConfig) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// HasAnthropic returns true if an Anthropic API key is configured.
func (c TestConfig) HasAnthropic() bool {
	return c.AnthropicAPIKey != ""
}

// NewOpenRouterClient creates an OpenRouter client from test config.
// Returns nil if not configured.
func (c TestConfig) NewOpenRouterClient() *OpenRouterClient {
	if !c.HasOpenRouter() {
		return nil
	}
	return NewOpenRouterClient(OpenRouterConfig{APIKey: c.OpenRouterAPIKey})
}

// ToRegistryConfig builds a registry config with every available provider.
func (c TestConfig) ToRegistryConfig() RegistryConfig {
	cfg := RegistryConfig{LLMProviders: map[string]LLMProviderConfig{}}
	if c.HasOpenRouter() {
		cfg.LLMProviders[OpenRouterName] = LLMProviderConfig{Type: OpenRouterName, APIKey: c.OpenRouterAPIKey, Enabled: true}
	}
	if c.HasOpenAI() {
		cfg.LLMProviders[OpenAIName] = LLMProviderConfig{Type: OpenAIName, APIKey: c.OpenAIAPIKey, Enabled: true}
	}
	if c.HasAnthropic() {
		cfg.LLMProviders[AnthropicName] = LLMProviderConfig{Type: AnthropicName, APIKey: c.AnthropicAPIKey, Enabled: true}
	}
	return cfg
}
