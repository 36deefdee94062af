package actionflow

import (
	"log/slog"

	"github.com/randalmurphal/actionflow/pkg/actionflow/config"
	"github.com/randalmurphal/actionflow/pkg/actionflow/deadletter"
	"github.com/randalmurphal/actionflow/pkg/actionflow/event"
	"github.com/randalmurphal/actionflow/pkg/actionflow/observability"
)

// pipelineConfig holds configuration for a pipeline.
type pipelineConfig struct {
	logger      *slog.Logger
	onError     func(error)
	deadLetter  deadletter.Queue
	registry    *event.Registry
	metrics     observability.MetricsRecorder
	spans       observability.SpanManager
	settings    config.Settings
	hasSettings bool
}

// defaultPipelineConfig returns the default pipeline configuration.
func defaultPipelineConfig() pipelineConfig {
	return pipelineConfig{
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
		settings: config.Defaults(),
	}
}

// Option configures a pipeline.
type Option func(*pipelineConfig)

// WithLogger sets the logger. Occurrence loggers handed to stage code are
// enriched with logic, occurrence_id, and seq.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(c *pipelineConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithOnError registers a callback for out-of-band failures. It receives a
// *StageError for failed stages and a *HostError for host panics. The
// callback runs on the goroutine that observed the failure and must not block.
func WithOnError(fn func(error)) Option {
	return func(c *pipelineConfig) {
		c.onError = fn
	}
}

// WithDeadLetter records every stage failure in q.
//
// Example:
//
//	q, _ := deadletter.NewSQLiteQueue("./deadletter.db")
//	p, err := actionflow.New(logics, host, actionflow.WithDeadLetter(q))
func WithDeadLetter(q deadletter.Queue) Option {
	return func(c *pipelineConfig) {
		c.deadLetter = q
	}
}

// WithRegistry validates every submitted event against r.
// Submit returns the validation error instead of admitting the event.
func WithRegistry(r *event.Registry) Option {
	return func(c *pipelineConfig) {
		c.registry = r
	}
}

// WithMetrics enables metrics collection.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *pipelineConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables a span per occurrence.
func WithTracing(sm observability.SpanManager) Option {
	return func(c *pipelineConfig) {
		if sm != nil {
			c.spans = sm
		}
	}
}

// WithSettings applies file-based settings: the default warn timeout,
// per-logic overrides, strict type checking, and the dead-letter queue
// (opened by New unless WithDeadLetter is also given).
func WithSettings(s config.Settings) Option {
	return func(c *pipelineConfig) {
		c.settings = s
		c.hasSettings = true
	}
}
