package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ZaguanLabs/potlai"
	"github.com/ZaguanLabs/potlai/cache"
	"github.com/ZaguanLabs/potlai/catalog"
	"github.com/ZaguanLabs/potlai/internal/config"
	"github.com/ZaguanLabs/potlai/internal/logging"
	"github.com/ZaguanLabs/potlai/ledger"
	"github.com/ZaguanLabs/potlai/provider"
)

// app holds the flag values shared by every command.
type app struct {
	stdout io.Writer
	stderr io.Writer

	envFile    string
	logLevel   string
	lang       string
	model      string
	glossary   string
	promptFile string
	mode       string
	quiet      bool

	// client replaces the OpenAI backend when set.
	client potlai.CompletionClient
	// options are appended after the configured ones.
	options []potlai.Option
}

// runtime is everything a command needs once configuration is loaded.
type runtime struct {
	cfg    *config.Config
	logger zerolog.Logger
	orch   *potlai.Orchestrator
	store  catalog.Store
	cache  cache.Lister

	closers []func() error
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn().Err(err).Msg("shutdown")
		}
	}
}

func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadEnvFile(a.envFile, cmd.Flags().Changed("env")); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.lang != "" {
		cfg.TargetLang = a.lang
	}
	if a.model != "" {
		cfg.Model = a.model
	}
	if a.glossary != "" {
		cfg.GlossaryLocation = a.glossary
	}
	if a.promptFile != "" {
		cfg.PromptFile = a.promptFile
	}
	if a.mode != "" {
		cfg.ResponseMode = a.mode
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup wires the backend, cache, ledger and catalog store. Commands that
// never call the backend pass needClient=false and run without an API key.
func (a *app) setup(ctx context.Context, cmd *cobra.Command, needClient bool, extra ...potlai.Option) (*runtime, error) {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewWithWriter(a.stderr, cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: logger}

	client := a.client
	if client == nil {
		if needClient && cfg.APIKey == "" {
			return nil, errors.New("API key required (POTLAI_API_KEY or OPENAI_API_KEY)")
		}
		client = provider.NewOpenAIClient(provider.OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	}
	if cfg.RequestsPerMinute > 0 {
		client = potlai.NewRateLimitedClient(client, potlai.RateLimitConfig{RequestsPerMinute: cfg.RequestsPerMinute})
	}

	opts, err := cfg.Options(ctx)
	if err != nil {
		return nil, err
	}
	opts = append(opts, potlai.WithLogger(logger))

	switch cfg.Cache {
	case config.CacheMemory:
		mc := cache.NewInMemoryCache(cfg.CacheTTL)
		rt.cache = mc
		rt.closers = append(rt.closers, func() error {
			st := mc.Stats()
			logger.Debug().Int64("hits", st.Hits).Int64("misses", st.Misses).Int("entries", st.Entries).Msg("memory cache")
			return nil
		})
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{URL: cfg.RedisURL, TTL: cfg.CacheTTL, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		rt.cache = rc
		rt.closers = append(rt.closers, rc.Close)
	}
	if rt.cache != nil {
		opts = append(opts, potlai.WithCache(rt.cache))
	}

	if cfg.LedgerDSN != "" {
		store, err := ledger.Open(ctx, cfg.LedgerDSN)
		if err != nil {
			rt.close()
			return nil, err
		}
		opts = append(opts, potlai.WithUsageRecorder(store))
		rt.closers = append(rt.closers, store.Close)
	}

	opts = append(opts, a.options...)
	opts = append(opts, extra...)
	orch, err := potlai.NewOrchestrator(client, opts...)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.orch = orch

	var s3Store catalog.Store
	if cfg.S3Enabled() {
		s3Store = catalog.NewS3Store(catalog.S3Config{
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
		})
	}
	rt.store = catalog.NewRouter(s3Store)

	return rt, nil
}
