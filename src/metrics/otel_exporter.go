package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/khabaroff/meeting-minutes-webhooks/src/models"
)

// SizeFunc reports the current number of remembered event ids
type SizeFunc func() int64

// OTelExporter records pipeline metrics with OpenTelemetry and serves them in Prometheus format
type OTelExporter struct {
	registry      *promclient.Registry
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter

	eventCounter      metric.Int64Counter
	eventDuration     metric.Float64Histogram
	retryCounter      metric.Int64Counter
	generationCounter metric.Int64Counter
	tokenCounter      metric.Int64Counter
	cacheSizeGauge    metric.Int64ObservableGauge
}

// NewOTelExporter creates a new exporter backed by its own Prometheus registry.
// cacheSize may be nil when the dedup cache size is not observable.
func NewOTelExporter(cacheSize SizeFunc) (*OTelExporter, error) {
	registry := promclient.NewRegistry()

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	oe := &OTelExporter{
		registry:      registry,
		meterProvider: meterProvider,
		meter: meterProvider.Meter(
			"meeting-minutes-webhooks",
			metric.WithInstrumentationVersion("1.0.0"),
		),
	}

	if err := oe.registerInstruments(cacheSize); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

func (oe *OTelExporter) registerInstruments(cacheSize SizeFunc) error {
	var err error

	oe.eventCounter, err = oe.meter.Int64Counter(
		"minutes.webhook.events",
		metric.WithDescription("Webhook events processed, by terminal state"),
	)
	if err != nil {
		return fmt.Errorf("creating event counter: %w", err)
	}

	oe.eventDuration, err = oe.meter.Float64Histogram(
		"minutes.webhook.duration",
		metric.WithDescription("Wall-clock time spent processing a webhook event"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("creating duration histogram: %w", err)
	}

	oe.retryCounter, err = oe.meter.Int64Counter(
		"minutes.transcript.retries",
		metric.WithDescription("Transcript fetch retries caused by missing or empty transcripts"),
	)
	if err != nil {
		return fmt.Errorf("creating retry counter: %w", err)
	}

	oe.generationCounter, err = oe.meter.Int64Counter(
		"minutes.generation.requests",
		metric.WithDescription("Minutes generation requests, by outcome"),
	)
	if err != nil {
		return fmt.Errorf("creating generation counter: %w", err)
	}

	oe.tokenCounter, err = oe.meter.Int64Counter(
		"minutes.generation.tokens",
		metric.WithDescription("LLM tokens consumed by minutes generation"),
	)
	if err != nil {
		return fmt.Errorf("creating token counter: %w", err)
	}

	if cacheSize != nil {
		oe.cacheSizeGauge, err = oe.meter.Int64ObservableGauge(
			"minutes.event_cache.size",
			metric.WithDescription("Number of webhook event ids remembered for deduplication"),
			metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
				observer.Observe(cacheSize())
				return nil
			}),
		)
		if err != nil {
			return fmt.Errorf("creating cache size gauge: %w", err)
		}
	}

	return nil
}

// RecordEvent counts a processed webhook event and its duration
func (oe *OTelExporter) RecordEvent(ctx context.Context, state models.ProcessingState, eventType string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("state", string(state)),
		attribute.String("event.type", eventType),
	)
	oe.eventCounter.Add(ctx, 1, attrs)
	oe.eventDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordTranscriptRetry counts one transcript polling retry
func (oe *OTelExporter) RecordTranscriptRetry(ctx context.Context) {
	oe.retryCounter.Add(ctx, 1)
}

// RecordGeneration counts a generation request and its token usage
func (oe *OTelExporter) RecordGeneration(ctx context.Context, success bool, usage models.TokenUsage) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	oe.generationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))

	if usage.InputTokens > 0 {
		oe.tokenCounter.Add(ctx, usage.InputTokens, metric.WithAttributes(attribute.String("direction", "input")))
	}
	if usage.OutputTokens > 0 {
		oe.tokenCounter.Add(ctx, usage.OutputTokens, metric.WithAttributes(attribute.String("direction", "output")))
	}
}

// Handler serves Prometheus-formatted metrics
func (oe *OTelExporter) Handler() http.Handler {
	return promhttp.HandlerFor(oe.registry, promhttp.HandlerOpts{})
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
