package services

import (
	"context"
	"time"

	"github.com/khabaroff/meeting-minutes-webhooks/src/models"
)

// PipelineMetrics records minutes pipeline activity
type PipelineMetrics interface {
	RecordEvent(ctx context.Context, state models.ProcessingState, eventType string, duration time.Duration)
	RecordTranscriptRetry(ctx context.Context)
	RecordGeneration(ctx context.Context, success bool, usage models.TokenUsage)
}

type noopMetrics struct{}

func (noopMetrics) RecordEvent(context.Context, models.ProcessingState, string, time.Duration) {}
func (noopMetrics) RecordTranscriptRetry(context.Context)                                      {}
func (noopMetrics) RecordGeneration(context.Context, bool, models.TokenUsage)                  {}
