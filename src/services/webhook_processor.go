package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/khabaroff/meeting-minutes-webhooks/src/logging"
	"github.com/khabaroff/meeting-minutes-webhooks/src/models"
	"github.com/rs/zerolog"
)

// DefaultTranscriptReadyDelay is how long the platform usually needs to finalize a transcript
const DefaultTranscriptReadyDelay = 30 * time.Second

// TranscriptSource fetches meeting transcripts from the conferencing platform
type TranscriptSource interface {
	GetTranscript(ctx context.Context, accessToken, meetingID string) (*models.Transcript, error)
	HasTranscript(ctx context.Context, accessToken, meetingID string) (bool, error)
}

// MinutesGenerator turns a transcript into structured minutes
type MinutesGenerator interface {
	GenerateMinutes(ctx context.Context, input models.MinutesGenerationInput) (*models.MinutesGenerationResult, error)
}

// ProcessorConfig is the construction-time configuration of a Processor
type ProcessorConfig struct {
	// TranscriptReadyDelay is waited once before the first transcript fetch.
	// Zero selects DefaultTranscriptReadyDelay, a negative value disables the wait.
	TranscriptReadyDelay time.Duration
	TranscriptRetry      RetryOverrides
	DefaultAccessToken   string
}

// Trigger sources reported to subscribers
const (
	SourceWebhook = "webhook"
	SourceTrigger = "trigger"
)

// MinutesGeneratedEvent is delivered to success subscribers
type MinutesGeneratedEvent struct {
	EventID   string
	MeetingID string
	Source    string
	Result    *models.MinutesGenerationResult
}

// ProcessingFailedEvent is delivered to failure subscribers
type ProcessingFailedEvent struct {
	EventID   string
	MeetingID string
	Source    string
	Code      ErrorCode
	Err       error
}

// MinutesGeneratedFunc handles a successful generation
type MinutesGeneratedFunc func(ctx context.Context, ev MinutesGeneratedEvent)

// ProcessingFailedFunc handles a failed generation
type ProcessingFailedFunc func(ctx context.Context, ev ProcessingFailedEvent)

// TriggerRequest starts minutes generation directly, bypassing the webhook envelope
type TriggerRequest struct {
	MeetingID         string
	AccessToken       string
	WaitForTranscript bool
	Topic             string
	EndTime           time.Time
}

// Processor turns Lark meeting webhooks into generated minutes
type Processor struct {
	source    TranscriptSource
	generator MinutesGenerator
	cache     EventCache
	metrics   PipelineMetrics
	logger    zerolog.Logger

	readyDelay   time.Duration
	retry        RetryConfig
	defaultToken string

	sleep SleepFunc
	rnd   func() float64
	now   func() time.Time

	mu        sync.RWMutex
	onSuccess []MinutesGeneratedFunc
	onFailure []ProcessingFailedFunc
}

// ProcessorOption customizes a Processor
type ProcessorOption func(*Processor)

// WithEventCache replaces the default in-process dedup cache
func WithEventCache(cache EventCache) ProcessorOption {
	return func(p *Processor) {
		p.cache = cache
	}
}

// WithPipelineMetrics records processing metrics
func WithPipelineMetrics(m PipelineMetrics) ProcessorOption {
	return func(p *Processor) {
		p.metrics = m
	}
}

// WithProcessorSleeper replaces the wait implementation used for the ready delay and backoff
func WithProcessorSleeper(fn SleepFunc) ProcessorOption {
	return func(p *Processor) {
		p.sleep = fn
	}
}

// WithProcessorRandom replaces the jitter source
func WithProcessorRandom(fn func() float64) ProcessorOption {
	return func(p *Processor) {
		p.rnd = fn
	}
}

// NewProcessor creates a new webhook processor
func NewProcessor(source TranscriptSource, generator MinutesGenerator, cfg ProcessorConfig, opts ...ProcessorOption) (*Processor, error) {
	if source == nil {
		return nil, errors.New("transcript source is required")
	}
	if generator == nil {
		return nil, errors.New("minutes generator is required")
	}

	readyDelay := cfg.TranscriptReadyDelay
	switch {
	case readyDelay == 0:
		readyDelay = DefaultTranscriptReadyDelay
	case readyDelay < 0:
		readyDelay = 0
	}

	p := &Processor{
		source:       source,
		generator:    generator,
		metrics:      noopMetrics{},
		logger:       logging.NewLogger("webhook_processor"),
		readyDelay:   readyDelay,
		retry:        cfg.TranscriptRetry.Merge(DefaultRetryConfig()),
		defaultToken: cfg.DefaultAccessToken,
		sleep:        sleepContext,
		rnd:          rand.Float64,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.cache == nil {
		cache, err := NewMemoryEventCache(DefaultEventCacheSize)
		if err != nil {
			return nil, err
		}
		p.cache = cache
	}

	return p, nil
}

// RetryConfig returns the effective transcript polling configuration
func (p *Processor) RetryConfig() RetryConfig {
	return p.retry
}

// OnMinutesGenerated subscribes fn to successful generations
func (p *Processor) OnMinutesGenerated(fn MinutesGeneratedFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onSuccess = append(p.onSuccess, fn)
}

// OnProcessingFailed subscribes fn to failed generations
func (p *Processor) OnProcessingFailed(fn ProcessingFailedFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFailure = append(p.onFailure, fn)
}

// ClearProcessedEventsCache forgets every admitted event id
func (p *Processor) ClearProcessedEventsCache(ctx context.Context) error {
	if err := p.cache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear processed events: %w", err)
	}
	p.logger.Info().Msg("processed events cache cleared")
	return nil
}

// HasProcessedEvent reports whether eventID was already admitted
func (p *Processor) HasProcessedEvent(ctx context.Context, eventID string) bool {
	has, err := p.cache.Has(ctx, eventID)
	if err != nil {
		p.logger.Warn().Err(err).Str("event_id", eventID).Msg("event cache lookup failed")
		return false
	}
	return has
}

// ProcessEvent handles one webhook delivery. It never returns an error: every
// failure is reported through the result and the failure subscribers.
func (p *Processor) ProcessEvent(ctx context.Context, payload *models.WebhookPayload, accessToken string) models.WebhookProcessingResult {
	start := time.Now()

	var (
		eventID   string
		eventType string
	)
	if payload != nil {
		eventID = payload.Header.EventID
		eventType = payload.EventType()
	}

	state, meetingID, err := p.process(ctx, payload, eventType, accessToken)

	result := models.WebhookProcessingResult{
		State:      state,
		EventID:    eventID,
		MeetingID:  meetingID,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Error = err.Error()
	}

	p.metrics.RecordEvent(ctx, state, eventType, time.Since(start))

	logEvent := p.logger.Info()
	if state == models.StateFailed {
		logEvent = p.logger.Error().Err(err).Str("code", string(ErrorCodeOf(err)))
	}
	if requestID := logging.RequestIDFromContext(ctx); requestID != "" {
		logEvent = logEvent.Str("request_id", requestID)
	}
	logEvent.
		Str("event_id", eventID).
		Str("event_type", eventType).
		Str("meeting_id", meetingID).
		Str("state", string(state)).
		Int64("duration_ms", result.DurationMs).
		Msg("webhook event processed")

	return result
}

func (p *Processor) process(ctx context.Context, payload *models.WebhookPayload, eventType, accessToken string) (models.ProcessingState, string, error) {
	if payload == nil {
		return models.StateFailed, "", ErrInvalidPayload
	}
	eventID := payload.Header.EventID

	if eventID != "" {
		admitted, err := p.cache.Admit(ctx, eventID)
		if err != nil {
			// Redelivery is rarer than a flaky cache; process rather than drop
			p.logger.Warn().Err(err).Str("event_id", eventID).Msg("event cache admission failed")
		} else if !admitted {
			p.logger.Debug().Str("event_id", eventID).Msg("duplicate event skipped")
			return models.StateSkipped, "", nil
		}
	}

	switch eventType {
	case models.EventTypeMeetingEnded:
		return p.handleMeetingEnded(ctx, payload, accessToken)
	case models.EventTypeTranscriptReady:
		ev, err := payload.TranscriptReady()
		if err != nil {
			return models.StateCompleted, "", nil
		}
		p.logger.Debug().Str("meeting_id", ev.MeetingID).Msg("transcript ready event acknowledged")
		return models.StateCompleted, ev.MeetingID, nil
	default:
		p.logger.Debug().Str("event_type", eventType).Msg("unhandled event type acknowledged")
		return models.StateCompleted, "", nil
	}
}

func (p *Processor) handleMeetingEnded(ctx context.Context, payload *models.WebhookPayload, accessToken string) (models.ProcessingState, string, error) {
	eventID := payload.Header.EventID

	ev, err := payload.MeetingEnded()
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		p.notifyFailure(ctx, ProcessingFailedEvent{EventID: eventID, Source: SourceWebhook, Err: err})
		return models.StateFailed, "", err
	}

	result, err := p.run(ctx, eventID, ev.MeetingID, accessToken, true, p.meetingInfo(ev.MeetingID, ev.Topic, ev.EndTime.Time()))
	if err != nil {
		p.notifyFailure(ctx, ProcessingFailedEvent{
			EventID:   eventID,
			MeetingID: ev.MeetingID,
			Source:    SourceWebhook,
			Code:      ErrorCodeOf(err),
			Err:       err,
		})
		return models.StateFailed, ev.MeetingID, err
	}

	p.notifySuccess(ctx, MinutesGeneratedEvent{
		EventID:   eventID,
		MeetingID: ev.MeetingID,
		Source:    SourceWebhook,
		Result:    result,
	})
	return models.StateCompleted, ev.MeetingID, nil
}

// TriggerMinutesGeneration generates minutes for a meeting on demand. Unlike
// ProcessEvent it skips deduplication and returns failures as errors.
func (p *Processor) TriggerMinutesGeneration(ctx context.Context, req TriggerRequest) (*models.MinutesGenerationResult, error) {
	if req.MeetingID == "" {
		return nil, errors.New("meeting id is required")
	}

	var topic *string
	if req.Topic != "" {
		topic = &req.Topic
	}
	info := p.meetingInfo(req.MeetingID, topic, req.EndTime)

	result, err := p.run(ctx, "", req.MeetingID, req.AccessToken, req.WaitForTranscript, info)
	if err != nil {
		p.notifyFailure(ctx, ProcessingFailedEvent{
			MeetingID: req.MeetingID,
			Source:    SourceTrigger,
			Code:      ErrorCodeOf(err),
			Err:       err,
		})
		return nil, err
	}

	p.notifySuccess(ctx, MinutesGeneratedEvent{
		MeetingID: req.MeetingID,
		Source:    SourceTrigger,
		Result:    result,
	})
	return result, nil
}

// run resolves the token, obtains the transcript and generates minutes
func (p *Processor) run(ctx context.Context, eventID, meetingID, accessToken string, wait bool, info models.MeetingInfo) (*models.MinutesGenerationResult, error) {
	token := accessToken
	if token == "" {
		token = p.defaultToken
	}
	if token == "" {
		return nil, newProcessingError(CodeMissingAccessToken, eventID, meetingID, nil)
	}

	var (
		transcript *models.Transcript
		err        error
	)
	if wait {
		transcript, err = p.WaitForTranscript(ctx, meetingID, token, eventID)
	} else {
		transcript, err = p.fetchOnce(ctx, meetingID, token, eventID)
	}
	if err != nil {
		return nil, err
	}

	return p.generate(ctx, eventID, transcript, info)
}

// WaitForTranscript waits the configured ready delay, then polls the transcript
// source with exponential backoff until it returns at least one segment.
func (p *Processor) WaitForTranscript(ctx context.Context, meetingID, accessToken, eventID string) (*models.Transcript, error) {
	logger := p.logger.With().Str("event_id", eventID).Str("meeting_id", meetingID).Logger()

	if p.readyDelay > 0 {
		logger.Debug().Dur("delay", p.readyDelay).Msg("waiting for transcript to be finalized")
		if err := p.sleep(ctx, p.readyDelay); err != nil {
			return nil, newProcessingError(CodeTranscriptNotReady, eventID, meetingID, err)
		}
	}

	result := Retry(ctx, p.retry,
		func(ctx context.Context) (*models.Transcript, error) {
			transcript, err := p.source.GetTranscript(ctx, accessToken, meetingID)
			if err != nil {
				return nil, err
			}
			if transcript.IsEmpty() {
				return nil, ErrEmptyTranscript
			}
			return transcript, nil
		},
		WithSleeper(p.sleep),
		WithRandom(p.rnd),
		WithOnRetry(func(attempt int, lastErr error, delay time.Duration) {
			p.metrics.RecordTranscriptRetry(ctx)
			logger.Info().
				Err(lastErr).
				Int("attempt", attempt).
				Int("max_attempts", p.retry.MaxRetries+1).
				Dur("delay", delay).
				Msg("transcript not available, retrying")
		}),
	)
	if !result.Success {
		logger.Warn().Err(result.LastErr).Int("attempts", result.Attempts).Msg("transcript polling exhausted")
		return nil, newProcessingError(CodeTranscriptNotReady, eventID, meetingID, result.LastErr)
	}

	logger.Debug().
		Int("attempts", result.Attempts).
		Int("segments", len(result.Value.Segments)).
		Msg("transcript available")
	return result.Value, nil
}

// fetchOnce reads the transcript a single time without waiting or retrying
func (p *Processor) fetchOnce(ctx context.Context, meetingID, accessToken, eventID string) (*models.Transcript, error) {
	transcript, err := p.source.GetTranscript(ctx, accessToken, meetingID)
	if err != nil {
		return nil, newProcessingError(CodeTranscriptNotReady, eventID, meetingID, err)
	}
	if transcript.IsEmpty() {
		return nil, newProcessingError(CodeTranscriptNotReady, eventID, meetingID, ErrEmptyTranscript)
	}
	return transcript, nil
}

func (p *Processor) generate(ctx context.Context, eventID string, transcript *models.Transcript, info models.MeetingInfo) (*models.MinutesGenerationResult, error) {
	result, err := p.generator.GenerateMinutes(ctx, models.MinutesGenerationInput{
		Transcript: transcript,
		Meeting:    info,
	})
	if err != nil {
		p.metrics.RecordGeneration(ctx, false, models.TokenUsage{})
		return nil, newProcessingError(CodeGenerationFailed, eventID, info.ID, err)
	}
	if result == nil || result.Minutes == nil {
		p.metrics.RecordGeneration(ctx, false, models.TokenUsage{})
		return nil, newProcessingError(CodeGenerationFailed, eventID, info.ID, errors.New("generator returned no minutes"))
	}

	p.metrics.RecordGeneration(ctx, true, result.Usage)
	return result, nil
}

// meetingInfo assembles the generator's meeting context
func (p *Processor) meetingInfo(meetingID string, topic *string, endTime time.Time) models.MeetingInfo {
	title := "Meeting " + meetingID
	if topic != nil && *topic != "" {
		title = *topic
	}
	if endTime.IsZero() || endTime.Unix() == 0 {
		endTime = p.now()
	}
	return models.MeetingInfo{
		ID:        meetingID,
		Title:     title,
		Date:      endTime.UTC().Format(time.RFC3339),
		Attendees: []string{},
	}
}

func (p *Processor) notifySuccess(ctx context.Context, ev MinutesGeneratedEvent) {
	p.mu.RLock()
	subscribers := append([]MinutesGeneratedFunc(nil), p.onSuccess...)
	p.mu.RUnlock()

	for _, fn := range subscribers {
		p.safeCall("minutes_generated", func() { fn(ctx, ev) })
	}
}

func (p *Processor) notifyFailure(ctx context.Context, ev ProcessingFailedEvent) {
	p.mu.RLock()
	subscribers := append([]ProcessingFailedFunc(nil), p.onFailure...)
	p.mu.RUnlock()

	for _, fn := range subscribers {
		p.safeCall("processing_failed", func() { fn(ctx, ev) })
	}
}

// safeCall isolates a subscriber panic from the pipeline
func (p *Processor) safeCall(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Str("subscriber", kind).Msg("subscriber panicked")
		}
	}()
	fn()
}
