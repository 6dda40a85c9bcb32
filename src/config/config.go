package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/khabaroff/meeting-minutes-webhooks/src/models"
)

// Config holds application configuration
type Config struct {
	Port           int
	Env            string
	LogLevel       string
	LogFormat      string
	AllowedOrigins string

	// Storage
	DatabaseURL       string // empty = in-memory minutes store
	RedisURL          string
	EventCacheBackend models.EventCacheBackend
	EventCacheTTL     time.Duration

	// Lark platform
	LarkBaseURL            string
	LarkVerificationToken  string
	LarkEncryptKey         string
	LarkDefaultAccessToken string
	LarkHTTPTimeout        time.Duration

	// Transcript waiting
	TranscriptReadyDelay        time.Duration
	TranscriptMaxRetries        int
	TranscriptRetryInitialDelay time.Duration
	TranscriptRetryJitter       bool

	// Minutes generation
	AnthropicAPIKey             string
	AnthropicModel              string
	AnthropicMaxTokens          int64
	GenerationRequestsPerMinute int
	PromptConfigPath            string

	// Inbound protection
	WebhookRequestsPerMinute int

	// Retention
	MinutesRetention  time.Duration
	EnableAutoCleanup bool

	// PostHog Analytics settings
	PostHogAPIKey  string
	PostHogHost    string
	PostHogEnabled bool
}

type envConfig struct {
	Port           int    `env:"PORT" envDefault:"8080"`
	Env            string `env:"ENV" envDefault:"production"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string `env:"LOG_FORMAT" envDefault:"json"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`

	DatabaseURL       string        `env:"DATABASE_URL"`
	RedisURL          string        `env:"REDIS_URL"`
	EventCacheBackend string        `env:"EVENT_CACHE_BACKEND" envDefault:"memory"`
	EventCacheTTL     time.Duration `env:"EVENT_CACHE_TTL" envDefault:"24h"`

	LarkBaseURL            string        `env:"LARK_BASE_URL" envDefault:"https://open.larksuite.com"`
	LarkVerificationToken  string        `env:"LARK_VERIFICATION_TOKEN"`
	LarkEncryptKey         string        `env:"LARK_ENCRYPT_KEY"`
	LarkDefaultAccessToken string        `env:"LARK_DEFAULT_ACCESS_TOKEN"`
	LarkHTTPTimeout        time.Duration `env:"LARK_HTTP_TIMEOUT" envDefault:"15s"`

	TranscriptReadyDelay        time.Duration `env:"TRANSCRIPT_READY_DELAY" envDefault:"30s"`
	TranscriptMaxRetries        int           `env:"TRANSCRIPT_MAX_RETRIES" envDefault:"5"`
	TranscriptRetryInitialDelay time.Duration `env:"TRANSCRIPT_RETRY_INITIAL_DELAY" envDefault:"10s"`
	TranscriptRetryJitter       bool          `env:"TRANSCRIPT_RETRY_JITTER" envDefault:"true"`

	AnthropicAPIKey             string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel              string `env:"ANTHROPIC_MODEL" envDefault:"claude-sonnet-4-5"`
	AnthropicMaxTokens          int64  `env:"ANTHROPIC_MAX_TOKENS" envDefault:"4096"`
	GenerationRequestsPerMinute int    `env:"GENERATION_REQUESTS_PER_MINUTE" envDefault:"30"`
	PromptConfigPath            string `env:"PROMPT_CONFIG_PATH"`

	WebhookRequestsPerMinute int `env:"WEBHOOK_REQUESTS_PER_MINUTE" envDefault:"120"`

	MinutesRetention  time.Duration `env:"MINUTES_RETENTION" envDefault:"2160h"`
	EnableAutoCleanup bool          `env:"ENABLE_AUTO_CLEANUP" envDefault:"true"`

	PostHogAPIKey  string `env:"POSTHOG_API_KEY"`
	PostHogHost    string `env:"POSTHOG_HOST" envDefault:"https://eu.i.posthog.com"`
	PostHogEnabled bool   `env:"POSTHOG_ENABLED" envDefault:"false"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &Config{
		Port:           raw.Port,
		Env:            raw.Env,
		LogLevel:       raw.LogLevel,
		LogFormat:      raw.LogFormat,
		AllowedOrigins: raw.AllowedOrigins,

		DatabaseURL:       raw.DatabaseURL,
		RedisURL:          raw.RedisURL,
		EventCacheBackend: models.EventCacheBackend(strings.ToLower(raw.EventCacheBackend)),
		EventCacheTTL:     raw.EventCacheTTL,

		LarkBaseURL:            strings.TrimRight(raw.LarkBaseURL, "/"),
		LarkVerificationToken:  raw.LarkVerificationToken,
		LarkEncryptKey:         raw.LarkEncryptKey,
		LarkDefaultAccessToken: raw.LarkDefaultAccessToken,
		LarkHTTPTimeout:        raw.LarkHTTPTimeout,

		TranscriptReadyDelay:        raw.TranscriptReadyDelay,
		TranscriptMaxRetries:        raw.TranscriptMaxRetries,
		TranscriptRetryInitialDelay: raw.TranscriptRetryInitialDelay,
		TranscriptRetryJitter:       raw.TranscriptRetryJitter,

		AnthropicAPIKey:             raw.AnthropicAPIKey,
		AnthropicModel:              raw.AnthropicModel,
		AnthropicMaxTokens:          raw.AnthropicMaxTokens,
		GenerationRequestsPerMinute: raw.GenerationRequestsPerMinute,
		PromptConfigPath:            raw.PromptConfigPath,

		WebhookRequestsPerMinute: raw.WebhookRequestsPerMinute,

		MinutesRetention:  raw.MinutesRetention,
		EnableAutoCleanup: raw.EnableAutoCleanup,

		PostHogAPIKey:  raw.PostHogAPIKey,
		PostHogHost:    raw.PostHogHost,
		PostHogEnabled: raw.PostHogEnabled,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.AnthropicAPIKey == "" {
		errs = append(errs, errors.New("ANTHROPIC_API_KEY is required"))
	}
	switch c.EventCacheBackend {
	case models.EventCacheMemory:
	case models.EventCacheRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when EVENT_CACHE_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("EVENT_CACHE_BACKEND must be %q or %q, got %q",
			models.EventCacheMemory, models.EventCacheRedis, c.EventCacheBackend))
	}
	if c.TranscriptMaxRetries < 0 {
		errs = append(errs, errors.New("TRANSCRIPT_MAX_RETRIES must not be negative"))
	}
	if c.TranscriptRetryInitialDelay < 0 {
		errs = append(errs, errors.New("TRANSCRIPT_RETRY_INITIAL_DELAY must not be negative"))
	}
	if c.LarkHTTPTimeout <= 0 {
		errs = append(errs, errors.New("LARK_HTTP_TIMEOUT must be positive"))
	}
	if c.EnableAutoCleanup && c.MinutesRetention <= 0 {
		errs = append(errs, errors.New("MINUTES_RETENTION must be positive when ENABLE_AUTO_CLEANUP=true"))
	}

	return errors.Join(errs...)
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Origins splits ALLOWED_ORIGINS into a list
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
