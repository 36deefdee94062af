/*
Package config loads pipeline settings from YAML, JSON or CUE.

# Overview

Settings carry the knobs an operator may want to change without a rebuild:
the default warn timeout, whether unknown event types are rejected, where
dead letters go, and per-logic overrides keyed by logic name. A logic's
"when" filter narrows the events it handles (see package expr).

	warn_timeout: 30s
	strict_types: true
	dead_letter:
	  driver: sqlite
	  path: ./deadletter.db
	logics:
	  fetch-user:
	    latest: true
	    warn_timeout: 5s
	    when: user.id > 0
	  audit:
	    disabled: true

Load a file and hand the result to the pipeline:

	settings, err := config.LoadFile("actionflow.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	p, err := actionflow.New(logics, host, actionflow.WithSettings(settings))

# Raw Access

Config wraps the decoded map and offers typed accessors that fall back to a
default when a key is missing or has the wrong type. Duration accepts a
string ("30s"), a number of seconds, or a time.Duration.
*/
package config
