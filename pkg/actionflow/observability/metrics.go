package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records pipeline metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordAdmission records an event admitted into a logic.
	RecordAdmission(ctx context.Context, logic string)

	// RecordOccurrence records an occurrence reaching a terminal state.
	// Outcome is one of completed, rejected, cancelled or failed.
	RecordOccurrence(ctx context.Context, logic, outcome string, duration time.Duration)

	// RecordEmission records an event handed to the host.
	// Kind is forward or emit.
	RecordEmission(ctx context.Context, logic, kind string)

	// RecordDiscard records a late notification that was dropped.
	RecordDiscard(ctx context.Context, logic string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	admissions        metric.Int64Counter
	occurrences       metric.Int64Counter
	occurrenceLatency metric.Float64Histogram
	emissions         metric.Int64Counter
	discards          metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("actionflow")

	admissions, err := meter.Int64Counter("actionflow.occurrence.admissions",
		metric.WithDescription("Number of events admitted into a logic"),
	)
	if err != nil {
		return nil, err
	}

	occurrences, err := meter.Int64Counter("actionflow.occurrence.terminations",
		metric.WithDescription("Number of occurrences reaching a terminal state"),
	)
	if err != nil {
		return nil, err
	}

	occurrenceLatency, err := meter.Float64Histogram("actionflow.occurrence.latency_ms",
		metric.WithDescription("Time from admission to terminal state in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	emissions, err := meter.Int64Counter("actionflow.emissions",
		metric.WithDescription("Number of events handed to the host"),
	)
	if err != nil {
		return nil, err
	}

	discards, err := meter.Int64Counter("actionflow.discards",
		metric.WithDescription("Number of late notifications dropped"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		admissions:        admissions,
		occurrences:       occurrences,
		occurrenceLatency: occurrenceLatency,
		emissions:         emissions,
		discards:          discards,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordAdmission records an admission.
func (m *otelMetrics) RecordAdmission(ctx context.Context, logic string) {
	m.admissions.Add(ctx, 1, metric.WithAttributes(attribute.String("logic", logic)))
}

// RecordOccurrence records a terminal occurrence.
func (m *otelMetrics) RecordOccurrence(ctx context.Context, logic, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("logic", logic),
		attribute.String("outcome", outcome),
	)
	m.occurrences.Add(ctx, 1, attrs)
	m.occurrenceLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

// RecordEmission records an event handed to the host.
func (m *otelMetrics) RecordEmission(ctx context.Context, logic, kind string) {
	m.emissions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("logic", logic),
		attribute.String("kind", kind),
	))
}

// RecordDiscard records a dropped notification.
func (m *otelMetrics) RecordDiscard(ctx context.Context, logic string) {
	m.discards.Add(ctx, 1, metric.WithAttributes(attribute.String("logic", logic)))
}
