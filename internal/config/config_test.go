package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/synopsis/internal/book"
	"github.com/jackzampolin/synopsis/internal/pipeline"
	"github.com/jackzampolin/synopsis/internal/tokens"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configFile
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if len(cfg.LLMProviders) != 3 {
		t.Errorf("expected 3 default providers, got %d", len(cfg.LLMProviders))
	}
	if cfg.LLMProviders["openrouter"].APIKey != "${OPENROUTER_API_KEY}" {
		t.Error("expected openrouter API key placeholder")
	}
	if cfg.Defaults.LLMProvider != "openrouter" {
		t.Errorf("default provider = %q", cfg.Defaults.LLMProvider)
	}
	if cfg.Pipeline.TargetRatio != 0.13 || cfg.Pipeline.MaxChunkTokens != 6000 || cfg.Pipeline.SkipBelowWords != 100 {
		t.Errorf("pipeline defaults = %+v", cfg.Pipeline)
	}
	if len(cfg.Classifier.FictionIndicators) != 5 {
		t.Errorf("classifier defaults = %+v", cfg.Classifier)
	}
}

func TestDefaultConfigMatchesPipelineDefaults(t *testing.T) {
	got, err := DefaultConfig().PipelineSettings()
	if err != nil {
		t.Fatalf("PipelineSettings() error = %v", err)
	}
	if want := pipeline.DefaultSettings(); got != want {
		t.Errorf("config defaults %+v differ from pipeline defaults %+v", got, want)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})

	t.Run("expands inside a larger string", func(t *testing.T) {
		t.Setenv("TEST_REDIS_HOST", "cache.local")
		if got := ResolveEnvVars("redis://${TEST_REDIS_HOST}:6379/0"); got != "redis://cache.local:6379/0" {
			t.Errorf("got %s", got)
		}
	})
}

func TestToProviderRegistryConfig(t *testing.T) {
	t.Setenv("TEST_OPENROUTER_KEY", "or-key-123")

	cfg := &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"openrouter": {Type: "openrouter", Model: "m", APIKey: "${TEST_OPENROUTER_KEY}", RateLimit: 60, Enabled: true, TimeoutSeconds: 30},
			"literal":    {Type: "openai", APIKey: "direct-key"},
		},
	}
	reg := cfg.ToProviderRegistryConfig()

	if got := reg.LLMProviders["openrouter"]; got.APIKey != "or-key-123" || got.RateLimit != 60 || got.TimeoutSeconds != 30 || !got.Enabled {
		t.Errorf("openrouter = %+v", got)
	}
	if got := reg.LLMProviders["literal"]; got.APIKey != "direct-key" || got.Enabled {
		t.Errorf("literal = %+v", got)
	}
	if n := len(cfg.EnabledLLMProviders()); n != 1 {
		t.Errorf("EnabledLLMProviders() = %d, want 1", n)
	}
}

func TestConversions(t *testing.T) {
	cfg := DefaultConfig()

	cc, err := cfg.CompletionConfig("override-model")
	if err != nil {
		t.Fatal(err)
	}
	if cc.Model != "override-model" || cc.MaxAttempts != 3 || cc.RetryDelay != time.Second || cc.RepairAttempts != 2 {
		t.Errorf("CompletionConfig() = %+v", cc)
	}

	ttl, err := cfg.CacheTTL()
	if err != nil || ttl != 168*time.Hour {
		t.Errorf("CacheTTL() = %v, %v", ttl, err)
	}

	cl, err := cfg.BookClassifier()
	if err != nil {
		t.Fatal(err)
	}
	if got := cl.Classify(book.Metadata{Title: "The Interpretation of Dreams", Authors: []string{"Sigmund Freud"}}); got != book.Nonfiction {
		t.Errorf("Classify() = %s", got)
	}

	cfg.Pipeline.Tokenizer = tokens.KindWords
	counter, err := cfg.Tokenizer()
	if err != nil || counter.Name() != tokens.KindWords {
		t.Errorf("Tokenizer() = %v, %v", counter, err)
	}

	if got := cfg.LedgerPath("/home/me/.synopsis"); got != filepath.Join("/home/me/.synopsis", "ledger.db") {
		t.Errorf("LedgerPath() = %s", got)
	}

	t.Run("invalid values", func(t *testing.T) {
		bad := DefaultConfig()
		bad.Completion.RetryDelay = "soon"
		if _, err := bad.CompletionConfig(""); err == nil {
			t.Error("expected error for bad retry_delay")
		}
		bad.Pipeline.FailurePolicy = "ignore"
		if _, err := bad.PipelineSettings(); err == nil {
			t.Error("expected error for bad failure_policy")
		}
		bad.Pipeline.FailurePolicy = "skip"
		bad.Pipeline.TargetRatio = 0.5
		if _, err := bad.PipelineSettings(); err == nil {
			t.Error("expected error for target ratio outside the band")
		}
		bad.Classifier.DefaultCategory = "poetry"
		if _, err := bad.BookClassifier(); err == nil {
			t.Error("expected error for unknown default category")
		}
	})

	t.Run("s3 credentials resolved", func(t *testing.T) {
		t.Setenv("TEST_S3_KEY", "AKIA")
		c := DefaultConfig()
		c.Output.S3.Bucket = "books"
		c.Output.S3.AccessKeyID = "${TEST_S3_KEY}"
		s3 := c.S3Config()
		if s3.AccessKeyID != "AKIA" || s3.Bucket != "books" || s3.Region != "us-east-1" {
			t.Errorf("S3Config() = %+v", s3)
		}
	})
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		configFile := writeConfig(t, `
defaults:
  llm_provider: anthropic
pipeline:
  target_ratio: 0.12
llm_providers:
  anthropic:
    model: claude-custom
`)
		mgr, err := NewManager(configFile, "")
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		cfg := mgr.Get()
		if cfg.Defaults.LLMProvider != "anthropic" {
			t.Errorf("llm_provider = %q", cfg.Defaults.LLMProvider)
		}
		if cfg.Pipeline.TargetRatio != 0.12 {
			t.Errorf("target_ratio = %v", cfg.Pipeline.TargetRatio)
		}
		if cfg.Pipeline.MaxChunkTokens != 6000 {
			t.Errorf("unset keys should keep defaults, max_chunk_tokens = %d", cfg.Pipeline.MaxChunkTokens)
		}
		anth := cfg.LLMProviders["anthropic"]
		if anth.Model != "claude-custom" || anth.Type != "anthropic" {
			t.Errorf("anthropic provider should merge file and defaults: %+v", anth)
		}
		if mgr.ConfigFile() != configFile {
			t.Errorf("ConfigFile() = %q", mgr.ConfigFile())
		}
	})

	t.Run("missing config file in search path is fine", func(t *testing.T) {
		t.Chdir(t.TempDir())
		mgr, err := NewManager("", t.TempDir())
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		if mgr.Get().Pipeline.TargetRatio != 0.13 {
			t.Error("expected defaults without a config file")
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("SYNOPSIS_PIPELINE_FAILURE_POLICY", "skip")
		mgr, err := NewManager(writeConfig(t, "pipeline:\n  failure_policy: halt\n"), "")
		if err != nil {
			t.Fatal(err)
		}
		if got := mgr.Get().Pipeline.FailurePolicy; got != "skip" {
			t.Errorf("failure_policy = %q, want skip from env", got)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		if _, err := NewManager(writeConfig(t, "pipeline: [unclosed"), ""); err == nil {
			t.Error("expected error for malformed yaml")
		}
	})
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# Synopsis configuration") {
		t.Error("missing header")
	}

	mgr, err := NewManager(path, "")
	if err != nil {
		t.Fatalf("written config should load: %v", err)
	}
	if _, err := mgr.Get().PipelineSettings(); err != nil {
		t.Errorf("written config should validate: %v", err)
	}
}

func TestManager_OnChange_Multiple(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "defaults:\n  max_books: 1\n"), "")
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "defaults:\n  max_books: 4\n"), "")
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				_ = mgr.Get().Defaults.MaxBooks
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	configFile := writeConfig(t, "defaults:\n  max_books: 1\n")

	mgr, err := NewManager(configFile, "")
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	if got := mgr.Get().Defaults.MaxBooks; got != 1 {
		t.Errorf("initial max_books = %d", got)
	}

	var callbackCount atomic.Int32
	var lastValue atomic.Int64
	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(int64(cfg.Defaults.MaxBooks))
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("defaults:\n  max_books: 6\n"), 0o644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if lastValue.Load() == 6 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Error("callback was not invoked after config file change")
	}
	if got := mgr.Get().Defaults.MaxBooks; got != 6 {
		t.Errorf("config not updated: expected 6, got %d", got)
	}
	if v := lastValue.Load(); v != 6 {
		t.Errorf("callback received wrong value: expected 6, got %d", v)
	}
}
