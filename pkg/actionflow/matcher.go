package actionflow

import (
	"regexp"
	"slices"
	"strings"

	"github.com/randalmurphal/actionflow/pkg/actionflow/event"
	"github.com/randalmurphal/actionflow/pkg/actionflow/expr"
)

// Pattern selects the events a logic handles.
type Pattern interface {
	// Match reports whether the pattern selects evt.
	Match(evt event.Event) bool

	// String describes the pattern for logs.
	String() string
}

// Type matches events whose type equals one of the given types.
//
//	actionflow.Type("USER_FETCH")
//	actionflow.Type("USER_FETCH", "USER_REFRESH")
func Type(types ...string) Pattern {
	return typePattern(slices.Clone(types))
}

type typePattern []string

func (p typePattern) Match(evt event.Event) bool {
	return slices.Contains(p, evt.Type())
}

func (p typePattern) String() string {
	return strings.Join(p, "|")
}

// Any matches every event.
func Any() Pattern {
	return anyPattern{}
}

type anyPattern struct{}

func (anyPattern) Match(event.Event) bool { return true }
func (anyPattern) String() string         { return "*" }

// Topic matches dot-separated event types against a glob.
// "*" matches exactly one segment and "**" matches zero or more.
//
//	Topic("order.*")   matches order.created, not order.item.added
//	Topic("order.**")  matches order, order.created, order.item.added
//	Topic("*.failed")  matches payment.failed
func Topic(glob string) Pattern {
	return topicPattern{glob: glob, segments: strings.Split(glob, ".")}
}

type topicPattern struct {
	glob     string
	segments []string
}

func (p topicPattern) Match(evt event.Event) bool {
	return matchSegments(p.segments, strings.Split(evt.Type(), "."))
}

func (p topicPattern) String() string {
	return p.glob
}

func matchSegments(pattern, topic []string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case "**":
			rest := pattern[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(topic); i++ {
				if matchSegments(rest, topic[i:]) {
					return true
				}
			}
			return false
		case "*":
			if len(topic) == 0 {
				return false
			}
		default:
			if len(topic) == 0 || topic[0] != pattern[0] {
				return false
			}
		}
		pattern, topic = pattern[1:], topic[1:]
	}
	return len(topic) == 0
}

// Regexp matches event types against re.
func Regexp(re *regexp.Regexp) Pattern {
	return regexpPattern{re: re}
}

// MustRegexp compiles expr and matches event types against it.
// It panics if the expression does not compile.
func MustRegexp(expr string) Pattern {
	return Regexp(regexp.MustCompile(expr))
}

type regexpPattern struct {
	re *regexp.Regexp
}

func (p regexpPattern) Match(evt event.Event) bool {
	return p.re.MatchString(evt.Type())
}

func (p regexpPattern) String() string {
	return "/" + p.re.String() + "/"
}

// Func matches events for which fn returns true.
func Func(name string, fn func(event.Event) bool) Pattern {
	return funcPattern{name: name, fn: fn}
}

type funcPattern struct {
	name string
	fn   func(event.Event) bool
}

func (p funcPattern) Match(evt event.Event) bool {
	return p.fn(evt)
}

func (p funcPattern) String() string {
	return p.name
}

// When matches events satisfying a filter expression over the event's
// metadata and payload. See package expr for the syntax.
//
//	actionflow.When("type == USER_FETCH and user.id > 0")
func When(src string, opts ...expr.Option) (Pattern, error) {
	f, err := expr.Compile(src, opts...)
	if err != nil {
		return nil, err
	}
	return filterPattern{f: f}, nil
}

// MustWhen is like When but panics if the expression does not compile.
func MustWhen(src string, opts ...expr.Option) Pattern {
	p, err := When(src, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

type filterPattern struct {
	f *expr.Filter
}

func (p filterPattern) Match(evt event.Event) bool {
	return p.f.Match(expr.Vars(evt))
}

func (p filterPattern) String() string {
	return "when(" + p.f.String() + ")"
}

// All matches events selected by every pattern.
func All(patterns ...Pattern) Pattern {
	return allPattern(slices.Clone(patterns))
}

type allPattern []Pattern

func (p allPattern) Match(evt event.Event) bool {
	for _, q := range p {
		if !q.Match(evt) {
			return false
		}
	}
	return true
}

func (p allPattern) String() string {
	parts := make([]string, len(p))
	for i, q := range p {
		parts[i] = q.String()
	}
	return strings.Join(parts, " & ")
}

// Match returns the indexes of the logics whose pattern selects evt,
// in registration order.
func Match(evt event.Event, logics []Logic) []int {
	var matched []int
	for i := nextMatch(evt, logics, 0); i >= 0; i = nextMatch(evt, logics, i+1) {
		matched = append(matched, i)
	}
	return matched
}

// nextMatch returns the first logic at or after from that selects evt, or -1.
func nextMatch(evt event.Event, logics []Logic, from int) int {
	for i := from; i < len(logics); i++ {
		if logics[i].Type != nil && logics[i].Type.Match(evt) {
			return i
		}
	}
	return -1
}

// safeNextMatch is nextMatch with pattern panics reported as a PanicError
// naming the logic whose pattern failed.
func safeNextMatch(evt event.Event, logics []Logic, from int) (i int, err error) {
	i = from
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Logic: logics[i].Name, Stage: StageMatch, Value: r, Stack: stack()}
			i = -1
		}
	}()
	for ; i < len(logics); i++ {
		if logics[i].Type != nil && logics[i].Type.Match(evt) {
			return i, nil
		}
	}
	return -1, nil
}
