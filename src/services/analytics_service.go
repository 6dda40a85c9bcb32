package services

import (
	"context"
	"fmt"
	"time"

	"github.com/posthog/posthog-go"
	"github.com/rs/zerolog/log"
)

// analyticsClient is the subset of posthog.Client the service uses
type analyticsClient interface {
	Enqueue(posthog.Message) error
	Close() error
}

// AnalyticsService handles product analytics tracking for the pipeline
type AnalyticsService struct {
	client      analyticsClient
	enabled     bool
	environment string
}

type posthogLogger struct{}

func (l posthogLogger) Success(m posthog.APIMessage) {
	log.Debug().Str("type", fmt.Sprintf("%T", m)).Msg("PostHog event delivered")
}

func (l posthogLogger) Failure(m posthog.APIMessage, err error) {
	log.Error().Err(err).Str("type", fmt.Sprintf("%T", m)).Msg("PostHog delivery failed")
}

// AnalyticsConfig holds analytics configuration
type AnalyticsConfig struct {
	PostHogAPIKey string
	PostHogHost   string
	Enabled       bool
	Environment   string
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(cfg AnalyticsConfig) (*AnalyticsService, error) {
	if !cfg.Enabled || cfg.PostHogAPIKey == "" {
		return &AnalyticsService{enabled: false}, nil
	}

	client, err := posthog.NewWithConfig(
		cfg.PostHogAPIKey,
		posthog.Config{
			Endpoint:  cfg.PostHogHost,
			Interval:  30 * time.Second,
			BatchSize: 100,
			Callback:  posthogLogger{},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostHog client: %w", err)
	}

	return newAnalyticsServiceWithClient(client, cfg.Environment), nil
}

func newAnalyticsServiceWithClient(client analyticsClient, environment string) *AnalyticsService {
	if environment == "" {
		environment = "production"
	}
	return &AnalyticsService{client: client, enabled: true, environment: environment}
}

// Enabled reports whether events are sent
func (s *AnalyticsService) Enabled() bool {
	return s.enabled
}

// Close flushes pending events and closes client
func (s *AnalyticsService) Close() error {
	if !s.enabled {
		return nil
	}
	return s.client.Close()
}

// TrackEvent captures a generic event
func (s *AnalyticsService) TrackEvent(ctx context.Context, distinctID, event string, properties map[string]interface{}) {
	if !s.enabled {
		return
	}

	if properties == nil {
		properties = make(map[string]interface{})
	}
	properties["timestamp"] = time.Now().Unix()
	properties["environment"] = s.environment

	if err := s.client.Enqueue(posthog.Capture{
		DistinctId: distinctID,
		Event:      event,
		Properties: properties,
	}); err != nil {
		log.Error().Err(err).Str("event", event).Msg("PostHog enqueue failed")
	} else {
		log.Debug().Str("event", event).Str("distinct_id", distinctID).Msg("PostHog event enqueued")
	}
}

// TrackMinutesGenerated is a success subscriber for the processor
func (s *AnalyticsService) TrackMinutesGenerated(ctx context.Context, ev MinutesGeneratedEvent) {
	props := map[string]interface{}{
		"meeting_id": ev.MeetingID,
		"source":     ev.Source,
	}
	if ev.EventID != "" {
		props["event_id"] = ev.EventID
	}
	if ev.Result != nil {
		props["processing_time_ms"] = ev.Result.ProcessingTimeMs
		props["input_tokens"] = ev.Result.Usage.InputTokens
		props["output_tokens"] = ev.Result.Usage.OutputTokens
		if ev.Result.Minutes != nil {
			props["action_items"] = len(ev.Result.Minutes.ActionItems)
			props["decisions"] = len(ev.Result.Minutes.Decisions)
		}
	}
	s.TrackEvent(ctx, "meeting_"+ev.MeetingID, "minutes_generated", props)
}

// TrackMinutesFailed is a failure subscriber for the processor
func (s *AnalyticsService) TrackMinutesFailed(ctx context.Context, ev ProcessingFailedEvent) {
	props := map[string]interface{}{
		"meeting_id": ev.MeetingID,
		"source":     ev.Source,
		"error_code": string(ev.Code),
	}
	if ev.EventID != "" {
		props["event_id"] = ev.EventID
	}
	distinctID := "meeting_" + ev.MeetingID
	if ev.MeetingID == "" {
		distinctID = "event_" + ev.EventID
	}
	s.TrackEvent(ctx, distinctID, "minutes_generation_failed", props)
}
