/*
Package actionflow runs a stream of events through registered logics, each a
three-stage pipeline of validate, transform and process, and funnels what
they produce back to a host through one ordered channel.

# Overview

The host submits events. Every logic whose pattern matches an event runs an
occurrence against it:

  - validate screens the event, accepting (optionally substituting it),
    rejecting it, or rejecting while still passing it on;
  - transform substitutes the event handed onward;
  - the (possibly transformed) event is forwarded, to the next matching
    logic or, after the last one, to Host.Forward;
  - process runs last and emits zero or more derived events to Host.Emit.

Each stage may finish before returning or resolve later from any goroutine.
Stage functions run on the goroutine that triggered them and must not block;
long-running work belongs on a goroutine that resolves when done.

# Basic Usage

	logic := actionflow.Logic{
	    Name: "fetch-user",
	    Type: actionflow.Type("USER_FETCH"),
	    Latest: true,
	    Process: func(ctx actionflow.Context, evt event.Event, d actionflow.Dispatch) error {
	        go func() {
	            user, err := api.User(ctx, evt.Data().(string))
	            if err != nil {
	                d.Fail(err)
	                return
	            }
	            d.Result(event.NewAnyFromParent(evt, "USER_FETCHED", user))
	        }()
	        return nil
	    },
	}

	p, err := actionflow.New([]actionflow.Logic{logic}, host)
	if err != nil {
	    log.Fatal(err)
	}
	defer p.Close(context.Background())

	_ = p.Submit(event.NewAny("USER_FETCH", "42"))

# Latest-Only

A logic with Latest set keeps at most one live occurrence per cancellation
key (the logic name, narrowed by Key when set). Admitting a new occurrence
cancels the live one first. Anything the cancelled occurrence made ready
before that point still reaches the host; anything after is discarded. Stage
code can observe the cancellation through ctx.Done() and
context.Cause(ctx) == ErrSuperseded.

# Errors

A stage that returns an error, calls Fail, or panics fails its occurrence
only. The failure is logged, passed to the WithOnError callback as a
*StageError and, when configured, recorded in a dead-letter queue. Calling a
resolver twice is harmless; the second call is ignored.

# Observability

Logging uses log/slog. Metrics and tracing are opt-in through WithMetrics
and WithTracing, backed by OpenTelemetry in package observability.
*/
package actionflow
