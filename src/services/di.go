package services

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/khabaroff/meeting-minutes-webhooks/src/config"
	"github.com/khabaroff/meeting-minutes-webhooks/src/models"
	"github.com/khabaroff/meeting-minutes-webhooks/src/repositories"
	"github.com/khabaroff/meeting-minutes-webhooks/src/templates"
)

const redisInitTimeout = 10 * time.Second

// RegisterDI provides the minutes pipeline and its collaborators
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (EventCache, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.EventCacheBackend == models.EventCacheRedis {
			ctx, cancel := context.WithTimeout(context.Background(), redisInitTimeout)
			defer cancel()
			return NewRedisEventCache(ctx, cfg.RedisURL, cfg.EventCacheTTL)
		}
		return NewMemoryEventCache(DefaultEventCacheSize)
	})

	do.Provide(injector, func(i do.Injector) (*EventCrypto, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewEventCrypto(cfg.LarkEncryptKey)
	})

	do.Provide(injector, func(i do.Injector) (*LarkService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewLarkService(cfg.LarkBaseURL, cfg.LarkHTTPTimeout), nil
	})

	do.Provide(injector, func(i do.Injector) (*templates.PromptConfig, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return templates.LoadPromptConfig(cfg.PromptConfigPath)
	})

	do.Provide(injector, func(i do.Injector) (*ClaudeMinutesGenerator, error) {
		cfg := do.MustInvoke[*config.Config](i)
		prompt := do.MustInvoke[*templates.PromptConfig](i)
		return NewClaudeMinutesGenerator(ClaudeConfig{
			APIKey:            cfg.AnthropicAPIKey,
			Model:             cfg.AnthropicModel,
			MaxTokens:         cfg.AnthropicMaxTokens,
			MaxRetries:        2,
			RequestsPerMinute: cfg.GenerationRequestsPerMinute,
		}, prompt)
	})

	do.Provide(injector, func(i do.Injector) (*AnalyticsService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewAnalyticsService(AnalyticsConfig{
			PostHogAPIKey: cfg.PostHogAPIKey,
			PostHogHost:   cfg.PostHogHost,
			Enabled:       cfg.PostHogEnabled,
			Environment:   cfg.Env,
		})
	})

	do.Provide(injector, func(i do.Injector) (*MinutesService, error) {
		return NewMinutesService(do.MustInvoke[repositories.MinutesRepository](i)), nil
	})

	do.Provide(injector, func(i do.Injector) (*CleanupService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repositories.MinutesRepository](i)
		return NewCleanupService(repo, cfg.MinutesRetention, cfg.EnableAutoCleanup), nil
	})

	do.Provide(injector, func(i do.Injector) (*Processor, error) {
		cfg := do.MustInvoke[*config.Config](i)

		maxRetries := cfg.TranscriptMaxRetries
		initialDelay := cfg.TranscriptRetryInitialDelay
		jitter := cfg.TranscriptRetryJitter

		p, err := NewProcessor(
			do.MustInvoke[*LarkService](i),
			do.MustInvoke[*ClaudeMinutesGenerator](i),
			ProcessorConfig{
				TranscriptReadyDelay: cfg.TranscriptReadyDelay,
				TranscriptRetry: RetryOverrides{
					MaxRetries:   &maxRetries,
					InitialDelay: &initialDelay,
					Jitter:       &jitter,
				},
				DefaultAccessToken: cfg.LarkDefaultAccessToken,
			},
			WithEventCache(do.MustInvoke[EventCache](i)),
			WithPipelineMetrics(do.MustInvoke[PipelineMetrics](i)),
		)
		if err != nil {
			return nil, err
		}

		minutes := do.MustInvoke[*MinutesService](i)
		analytics := do.MustInvoke[*AnalyticsService](i)
		p.OnMinutesGenerated(minutes.Persist)
		p.OnMinutesGenerated(analytics.TrackMinutesGenerated)
		p.OnProcessingFailed(analytics.TrackMinutesFailed)

		return p, nil
	})
}
