package config

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// schemaSource constrains the shape of a settings document. Definitions are
// closed, so misspelled keys are reported instead of silently ignored.
const schemaSource = `
// A string duration must parse with time.ParseDuration; a number is seconds.
#Duration: (string & =~#"^[-+]?(0|(([0-9]+(\.[0-9]*)?|\.[0-9]+)(ns|us|µs|μs|ms|s|m|h))+)$"#) | number

#Logic: {
	latest?:       bool
	disabled?:     bool
	warn_timeout?: #Duration
	when?:         string
}

#Settings: {
	warn_timeout?: #Duration
	strict_types?: bool
	dead_letter?: {
		driver?:   "" | "memory" | "sqlite"
		path?:     string
		max_size?: number & >=0
	}
	logics?: [string]: #Logic
}
`

// A cue.Context is not safe for concurrent use; schemaMu guards both.
var (
	schemaMu  sync.Mutex
	schemaCtx *cue.Context
	schema    cue.Value
)

// Validate checks a decoded settings document against the settings schema.
func Validate(cfg Config) error {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	if schemaCtx == nil {
		schemaCtx = cuecontext.New()
		schema = schemaCtx.CompileString(schemaSource).LookupPath(cue.ParsePath("#Settings"))
	}
	ctx, def := schemaCtx, schema
	if err := def.Err(); err != nil {
		return fmt.Errorf("settings schema: %w", err)
	}

	doc := ctx.Encode(cfg.Raw())
	if err := doc.Err(); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	return nil
}
