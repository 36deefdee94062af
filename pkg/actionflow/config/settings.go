package config

import (
	"fmt"
	"time"

	"github.com/randalmurphal/actionflow/pkg/actionflow/deadletter"
	"github.com/randalmurphal/actionflow/pkg/actionflow/expr"
)

// DefaultWarnTimeout applies to logics that set no warn timeout of their own.
const DefaultWarnTimeout = 60 * time.Second

// Dead-letter drivers.
const (
	DriverNone   = ""
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Settings are the operator-tunable parts of a pipeline.
type Settings struct {
	// WarnTimeout is the default warn timeout. Negative disables it.
	WarnTimeout time.Duration

	// StrictTypes rejects submitted events whose type has no registered schema.
	StrictTypes bool

	DeadLetter DeadLetterSettings

	// Logics holds overrides keyed by logic name.
	Logics map[string]LogicSettings
}

// DeadLetterSettings selects where failure records are written.
type DeadLetterSettings struct {
	Driver  string // "", "memory" or "sqlite"
	Path    string // sqlite database path
	MaxSize int    // memory queue capacity
}

// LogicSettings override fields of one logic.
type LogicSettings struct {
	// Latest, when set, replaces the logic's own latest flag.
	Latest *bool

	// Disabled logics are left out of the pipeline.
	Disabled bool

	// WarnTimeout, when non-zero, replaces the logic's warn timeout.
	WarnTimeout time.Duration

	// When narrows the logic's type pattern with a filter expression.
	When *expr.Filter
}

// Defaults returns the settings used when no configuration is supplied.
func Defaults() Settings {
	return Settings{
		WarnTimeout: DefaultWarnTimeout,
		Logics:      map[string]LogicSettings{},
	}
}

// Load builds Settings from a decoded document.
func Load(cfg Config) (Settings, error) {
	s := Defaults()
	s.WarnTimeout = cfg.Duration("warn_timeout", DefaultWarnTimeout)
	s.StrictTypes = cfg.Bool("strict_types", false)

	dl := cfg.Sub("dead_letter")
	s.DeadLetter = DeadLetterSettings{
		Driver:  dl.String("driver", DriverNone),
		Path:    dl.String("path", ""),
		MaxSize: dl.Int("max_size", 0),
	}
	switch s.DeadLetter.Driver {
	case DriverNone, DriverMemory:
	case DriverSQLite:
		if s.DeadLetter.Path == "" {
			return Settings{}, fmt.Errorf("dead_letter: sqlite driver requires a path")
		}
	default:
		return Settings{}, fmt.Errorf("dead_letter: unknown driver %q", s.DeadLetter.Driver)
	}
	if err := Validate(cfg); err != nil {
		return Settings{}, err
	}

	logics := cfg.Sub("logics")
	for _, name := range logics.Keys() {
		lc := logics.Sub(name)
		ls := LogicSettings{
			Disabled:    lc.Bool("disabled", false),
			WarnTimeout: lc.Duration("warn_timeout", 0),
		}
		if src := lc.String("when", ""); src != "" {
			f, err := expr.Compile(src)
			if err != nil {
				return Settings{}, fmt.Errorf("logics.%s.when: %w", name, err)
			}
			ls.When = f
		}
		if lc.Has("latest") {
			latest := lc.Bool("latest", false)
			ls.Latest = &latest
		}
		s.Logics[name] = ls
	}

	return s, nil
}

// LoadFile reads and parses a settings file (.yaml, .yml or .json).
func LoadFile(path string) (Settings, error) {
	cfg, err := FromFile(path)
	if err != nil {
		return Settings{}, err
	}
	return Load(cfg)
}

// OpenDeadLetter opens the configured dead-letter queue.
// It returns nil when no driver is configured.
func (s Settings) OpenDeadLetter() (deadletter.Queue, error) {
	switch s.DeadLetter.Driver {
	case DriverMemory:
		return deadletter.NewMemoryQueue(s.DeadLetter.MaxSize), nil
	case DriverSQLite:
		q, err := deadletter.NewSQLiteQueue(s.DeadLetter.Path)
		if err != nil {
			return nil, fmt.Errorf("open dead-letter queue: %w", err)
		}
		return q, nil
	default:
		return nil, nil
	}
}
