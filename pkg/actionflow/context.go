package actionflow

import (
	"context"
	"log/slog"
)

// Context is handed to every stage function.
// It extends context.Context with the identity of the running occurrence.
//
// The context is cancelled when the occurrence reaches a terminal state.
// context.Cause reports ErrSuperseded when a newer occurrence replaced this
// one and ErrPipelineClosed when Close aborted it.
type Context interface {
	context.Context

	// Logger returns the pipeline logger enriched with logic, occurrence_id,
	// and seq. Never nil.
	Logger() *slog.Logger

	// Logic returns the name of the running logic.
	Logic() string

	// OccurrenceID returns the unique identifier of this occurrence.
	OccurrenceID() string

	// Seq returns the pipeline-wide admission sequence number.
	Seq() uint64
}

type occurrenceContext struct {
	context.Context

	logger *slog.Logger
	logic  string
	id     string
	seq    uint64
}

func (c *occurrenceContext) Logger() *slog.Logger { return c.logger }
func (c *occurrenceContext) Logic() string        { return c.logic }
func (c *occurrenceContext) OccurrenceID() string { return c.id }
func (c *occurrenceContext) Seq() uint64          { return c.seq }
