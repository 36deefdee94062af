// Package observability provides logging, metrics and tracing hooks for
// actionflow pipelines.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds occurrence context to a logger.
// Returns a new logger with logic, occurrence_id, and seq fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "fetch-user", "occ-123", 4)
//	enriched.Info("calling api") // includes logic, occurrence_id, seq
func EnrichLogger(logger *slog.Logger, logic, occurrenceID string, seq uint64) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("logic", logic),
		slog.String("occurrence_id", occurrenceID),
		slog.Uint64("seq", seq),
	)
}

// LogOccurrenceStart logs admission of an event into a logic.
func LogOccurrenceStart(logger *slog.Logger, logic, occurrenceID, eventType string) {
	if logger == nil {
		return
	}
	logger.Debug("occurrence admitted",
		slog.String("logic", logic),
		slog.String("occurrence_id", occurrenceID),
		slog.String("event_type", eventType),
	)
}

// LogOccurrenceEnd logs an occurrence reaching a terminal state.
func LogOccurrenceEnd(logger *slog.Logger, logic, occurrenceID, outcome string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("occurrence finished",
		slog.String("logic", logic),
		slog.String("occurrence_id", occurrenceID),
		slog.String("outcome", outcome),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogSuperseded logs cancellation of an occurrence by a newer one.
func LogSuperseded(logger *slog.Logger, logic, occurrenceID, supersededBy string) {
	if logger == nil {
		return
	}
	logger.Debug("occurrence superseded",
		slog.String("logic", logic),
		slog.String("occurrence_id", occurrenceID),
		slog.String("superseded_by", supersededBy),
	)
}

// LogStageError logs a failed stage.
func LogStageError(logger *slog.Logger, logic, occurrenceID, stage string, err error) {
	if logger == nil {
		return
	}
	logger.Error("stage failed",
		slog.String("logic", logic),
		slog.String("occurrence_id", occurrenceID),
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
}

// LogDiscarded logs a notification that arrived after its occurrence left
// the stage it was addressed to.
func LogDiscarded(logger *slog.Logger, logic, occurrenceID, notification string) {
	if logger == nil {
		return
	}
	logger.Debug("notification discarded",
		slog.String("logic", logic),
		slog.String("occurrence_id", occurrenceID),
		slog.String("notification", notification),
	)
}

// LogWarnTimeout logs an occurrence still running past its warn timeout.
func LogWarnTimeout(logger *slog.Logger, logic, occurrenceID string, timeout time.Duration) {
	if logger == nil {
		return
	}
	logger.Warn("occurrence still running after warn timeout",
		slog.String("logic", logic),
		slog.String("occurrence_id", occurrenceID),
		slog.Duration("timeout", timeout),
	)
}

// LogHostError logs a panic raised by the host while receiving an event.
func LogHostError(logger *slog.Logger, op, eventType string, err error) {
	if logger == nil {
		return
	}
	logger.Error("host callback failed",
		slog.String("operation", op),
		slog.String("event_type", eventType),
		slog.String("error", err.Error()),
	)
}

// LogDeadLetterError logs a failure to record a dead letter (non-fatal).
func LogDeadLetterError(logger *slog.Logger, occurrenceID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("dead letter not recorded",
		slog.String("occurrence_id", occurrenceID),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
