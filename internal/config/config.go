// Package config reads process settings from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ZaguanLabs/potlai"
	"github.com/ZaguanLabs/potlai/glossary"
)

// Prefix of every variable, e.g. POTLAI_MODEL.
const Prefix = "POTLAI"

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	APIKey  string `envconfig:"API_KEY"`
	BaseURL string `envconfig:"BASE_URL"`
	Model   string `envconfig:"MODEL" default:"gpt-4o-mini"`

	TargetLang       string `envconfig:"TARGET_LANG" default:"uk"`
	GlossaryLocation string `envconfig:"GLOSSARY"`
	PromptFile       string `envconfig:"PROMPT_FILE"`
	ResponseMode     string `envconfig:"RESPONSE_MODE" default:"raw"`
	Dispatch         string `envconfig:"DISPATCH" default:"concurrent"`

	MaxRetry          int           `envconfig:"MAX_RETRY" default:"3"`
	BatchSize         int           `envconfig:"BATCH_SIZE" default:"5"`
	MaxConcurrent     int           `envconfig:"MAX_CONCURRENT" default:"0"`
	Temperature       float32       `envconfig:"TEMPERATURE" default:"0.3"`
	MaxOutputTokens   int           `envconfig:"MAX_OUTPUT_TOKENS" default:"1024"`
	Cooldown          time.Duration `envconfig:"COOLDOWN" default:"30s"`
	RequestTimeout    time.Duration `envconfig:"REQUEST_TIMEOUT" default:"120s"`
	RequestsPerMinute int           `envconfig:"REQUESTS_PER_MINUTE" default:"0"`
	Validation        bool          `envconfig:"VALIDATE" default:"true"`
	OnlyUntranslated  bool          `envconfig:"ONLY_UNTRANSLATED" default:"false"`
	Sentinel          string        `envconfig:"SENTINEL" default:"ERROR"`

	Cache    string `envconfig:"CACHE" default:"memory"`
	CacheTTL int    `envconfig:"CACHE_TTL" default:"0"`
	RedisURL string `envconfig:"REDIS_URL" default:"redis://localhost:6379"`

	LedgerDSN string `envconfig:"LEDGER_DSN"`

	S3Region    string `envconfig:"S3_REGION" default:"auto"`
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`

	HTTPHost string `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	HTTPPort int    `envconfig:"HTTP_PORT" default:"8080"`
}

// LoadEnvFile loads a .env file without overriding variables already set.
// A missing default file is not an error.
func LoadEnvFile(path string, explicit bool) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load reads and validates the configuration. OPENAI_API_KEY is used when
// POTLAI_API_KEY is unset.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("POTLAI_MODEL is required")
	}
	if !potlai.ValidLanguage(c.TargetLang) {
		return fmt.Errorf("POTLAI_TARGET_LANG %q is not a language tag", c.TargetLang)
	}
	switch potlai.ResponseMode(c.ResponseMode) {
	case potlai.ModeRaw, potlai.ModeJSON:
	default:
		return fmt.Errorf("POTLAI_RESPONSE_MODE must be raw or json, got %q", c.ResponseMode)
	}
	switch potlai.DispatchMode(c.Dispatch) {
	case potlai.DispatchConcurrent, potlai.DispatchChunked:
	default:
		return fmt.Errorf("POTLAI_DISPATCH must be concurrent or chunked, got %q", c.Dispatch)
	}
	if c.MaxRetry < 1 {
		return fmt.Errorf("POTLAI_MAX_RETRY must be >= 1")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("POTLAI_BATCH_SIZE must be >= 1")
	}
	if c.MaxConcurrent < 0 {
		return fmt.Errorf("POTLAI_MAX_CONCURRENT must be >= 0")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("POTLAI_TEMPERATURE must be between 0 and 2")
	}
	if c.MaxOutputTokens < 1 {
		return fmt.Errorf("POTLAI_MAX_OUTPUT_TOKENS must be >= 1")
	}
	if c.Cooldown < 0 || c.RequestTimeout < 0 {
		return fmt.Errorf("POTLAI_COOLDOWN and POTLAI_REQUEST_TIMEOUT must not be negative")
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("POTLAI_REQUESTS_PER_MINUTE must be >= 0")
	}
	switch c.Cache {
	case CacheNone, CacheMemory, CacheRedis:
	default:
		return fmt.Errorf("POTLAI_CACHE must be none, memory or redis, got %q", c.Cache)
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("POTLAI_HTTP_PORT must be a valid port")
	}
	return nil
}

// S3Enabled reports whether object storage credentials are configured.
func (c *Config) S3Enabled() bool {
	return c.S3AccessKey != "" && c.S3SecretKey != ""
}

// Options turns the settings into orchestrator options. It loads the
// glossary and the prompt file, so it fails before any request is made.
func (c *Config) Options(ctx context.Context) ([]potlai.Option, error) {
	terms, err := glossary.Load(ctx, c.GlossaryLocation)
	if err != nil {
		return nil, err
	}

	opts := []potlai.Option{
		potlai.WithModel(c.Model),
		potlai.WithTargetLang(c.TargetLang),
		potlai.WithGlossary(terms),
		potlai.WithResponseMode(potlai.ResponseMode(c.ResponseMode)),
		potlai.WithDispatch(potlai.DispatchMode(c.Dispatch)),
		potlai.WithMaxRetry(c.MaxRetry),
		potlai.WithBatchSize(c.BatchSize),
		potlai.WithMaxConcurrent(c.MaxConcurrent),
		potlai.WithTemperature(c.Temperature),
		potlai.WithMaxOutputTokens(c.MaxOutputTokens),
		potlai.WithCooldown(c.Cooldown),
		potlai.WithRequestTimeout(c.RequestTimeout),
		potlai.WithValidation(c.Validation),
		potlai.WithOnlyUntranslated(c.OnlyUntranslated),
		potlai.WithSentinel(c.Sentinel),
	}

	if c.PromptFile != "" {
		tmpl, err := LoadPrompt(c.PromptFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, potlai.WithPromptTemplate(tmpl))
	}
	return opts, nil
}

// LoadPrompt reads a YAML prompt file with a "system" key.
func LoadPrompt(path string) (potlai.PromptTemplate, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is intentionally user-provided
	if err != nil {
		return potlai.PromptTemplate{}, fmt.Errorf("read prompt file: %w", err)
	}
	var tmpl potlai.PromptTemplate
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return potlai.PromptTemplate{}, fmt.Errorf("parse prompt file %s: %w", path, err)
	}
	if err := tmpl.Validate(); err != nil {
		return potlai.PromptTemplate{}, fmt.Errorf("prompt file %s: %w", path, err)
	}
	return tmpl, nil
}
