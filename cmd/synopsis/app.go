package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/synopsis/internal/book"
	"github.com/jackzampolin/synopsis/internal/completion"
	"github.com/jackzampolin/synopsis/internal/config"
	"github.com/jackzampolin/synopsis/internal/home"
	"github.com/jackzampolin/synopsis/internal/ledger"
	"github.com/jackzampolin/synopsis/internal/library"
	"github.com/jackzampolin/synopsis/internal/llmcall"
	"github.com/jackzampolin/synopsis/internal/pipeline"
	"github.com/jackzampolin/synopsis/internal/prompts"
	"github.com/jackzampolin/synopsis/internal/providers"
	"github.com/jackzampolin/synopsis/internal/sink"
	"github.com/jackzampolin/synopsis/internal/source"
)

// app holds the resources shared by the commands that run books.
type app struct {
	home    *home.Dir
	manager *config.Manager
	cfg     *config.Config
	logger  *slog.Logger
	ledger  *ledger.Ledger
	s3      *sink.S3Sink
	closers []func() error
}

// newApp loads configuration and opens the ledger if it is enabled.
func newApp(ctx context.Context) (*app, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}

	mgr, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return nil, err
	}
	a := &app{
		home:    h,
		manager: mgr,
		cfg:     mgr.Get(),
		logger:  logger,
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if f := mgr.ConfigFile(); f != "" {
		a.logger.Debug("loaded config", "file", f)
	}

	if a.cfg.Ledger.Enabled {
		l, err := ledger.Open(ctx, a.cfg.LedgerPath(h.Path()))
		if err != nil {
			return nil, err
		}
		a.ledger = l
		a.closers = append(a.closers, l.Close)
	}

	if a.cfg.Output.S3.Enabled {
		s3, err := sink.NewS3Sink(a.cfg.S3Config())
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("output.s3: %w", err)
		}
		a.s3 = s3
	}
	return a, nil
}

// Close releases the ledger and cache connections.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// newResolver returns a prompt resolver with home-level overrides enabled.
func newResolver(h *home.Dir, logger *slog.Logger) *prompts.Resolver {
	r := prompts.NewResolver(prompts.NewFileStore(h.PromptsDir()), logger)
	pipeline.RegisterPrompts(r)
	return r
}

// service builds the completion adapter for the chosen provider.
func (a *app) service(ctx context.Context, providerName, model string) (completion.Service, error) {
	registry := providers.NewRegistryFromConfig(a.cfg.ToProviderRegistryConfig(), a.logger)
	if providerName == "" {
		providerName = a.cfg.Defaults.LLMProvider
	}
	client, limiter, err := registry.Get(providerName)
	if err != nil {
		return nil, fmt.Errorf("%w (enabled with an API key: %v)", err, registry.List())
	}

	compCfg, err := a.cfg.CompletionConfig(model)
	if err != nil {
		return nil, err
	}
	opts := []completion.Option{
		completion.WithRateLimiter(limiter),
		completion.WithLogger(a.logger),
	}

	cache, err := a.cache(ctx)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		opts = append(opts, completion.WithCache(cache))
	}

	var calls llmcall.Sink
	if a.ledger != nil {
		calls = a.ledger
	}
	opts = append(opts, completion.WithRecorder(llmcall.NewRecorder(calls, a.logger)))

	return completion.NewAdapter(client, compCfg, opts...), nil
}

func (a *app) cache(ctx context.Context) (completion.Cache, error) {
	switch a.cfg.Cache.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return completion.NewMemoryCache(), nil
	case "redis":
		ttl, err := a.cfg.CacheTTL()
		if err != nil {
			return nil, err
		}
		rc, err := completion.NewRedisCache(config.ResolveEnvVars(a.cfg.Cache.RedisURL), ttl)
		if err != nil {
			return nil, err
		}
		if err := rc.Ping(ctx); err != nil {
			rc.Close()
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		a.closers = append(a.closers, rc.Close)
		return rc, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q (want memory, redis or none)", a.cfg.Cache.Backend)
	}
}

// runOptions are the flags shared by the commands that run books.
type runOptions struct {
	provider string
	model    string
	category string
	resume   bool
}

// runner wires the pipeline, book loader and sinks.
func (a *app) runner(ctx context.Context, opts runOptions) (*library.Runner, error) {
	settings, err := a.cfg.PipelineSettings()
	if err != nil {
		return nil, err
	}
	counter, err := a.cfg.Tokenizer()
	if err != nil {
		return nil, err
	}
	svc, err := a.service(ctx, opts.provider, opts.model)
	if err != nil {
		return nil, err
	}
	p, err := pipeline.New(settings, pipeline.Deps{
		Service:  svc,
		Resolver: newResolver(a.home, a.logger),
		Counter:  counter,
		Logger:   a.logger,
	})
	if err != nil {
		return nil, err
	}

	classifier, err := a.cfg.BookClassifier()
	if err != nil {
		return nil, err
	}
	loader := &source.Loader{Classifier: classifier, Logger: a.logger}
	if opts.category != "" {
		cat, err := book.ParseCategory(opts.category)
		if err != nil {
			return nil, err
		}
		loader.Category = cat
	}

	r := &library.Runner{
		Pipeline: p,
		Loader:   loader,
		Sink:     a.sinkFor,
		Logger:   a.logger,
	}
	if opts.resume {
		if a.ledger == nil {
			return nil, fmt.Errorf("--resume requires ledger.enabled")
		}
		r.Checkpoints = a.ledger
	}
	return r, nil
}

// sinkFor fans a book's output out to S3 and the ledger when configured,
// writing the summary files last.
func (a *app) sinkFor(*book.Book) sink.Sink {
	var backing []sink.Sink
	if a.s3 != nil {
		backing = append(backing, a.s3)
	}
	if a.ledger != nil {
		backing = append(backing, a.ledger)
	}
	return sink.Chain(sink.NewFileSink(a.cfg.Output.DirName), backing...)
}

// requireLedger opens the app and fails if the ledger is disabled.
func requireLedger(ctx context.Context) (*app, error) {
	a, err := newApp(ctx)
	if err != nil {
		return nil, err
	}
	if a.ledger == nil {
		a.Close()
		return nil, fmt.Errorf("ledger is disabled (set ledger.enabled: true)")
	}
	return a, nil
}
