package expr

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/randalmurphal/actionflow/pkg/actionflow/event"
)

// Vars exposes an event's metadata and payload to a filter.
func Vars(evt event.Event) map[string]any {
	vars := map[string]any{}
	switch d := evt.Data().(type) {
	case event.Fields:
		for k, v := range d {
			vars[k] = v
		}
	case map[string]any:
		for k, v := range d {
			vars[k] = v
		}
	}
	vars["type"] = evt.Type()
	vars["id"] = evt.ID()
	vars["correlation_id"] = evt.CorrelationID()
	vars["causation_id"] = evt.CausationID()
	vars["version"] = evt.Version()
	vars["data"] = evt.Data()
	return vars
}

// Lookup resolves a dotted path through nested maps.
func Lookup(vars map[string]any, path string) (any, bool) {
	if v, ok := vars[path]; ok {
		return v, true
	}

	var cur any = vars
	for _, seg := range strings.Split(path, ".") {
		switch m := cur.(type) {
		case map[string]any:
			v, ok := m[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case event.Fields:
			v, ok := m[seg]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

// literal parses a quoted string, boolean, null or number.
func literal(s string) (any, bool) {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}

	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	case "null", "nil":
		return nil, true
	}

	var num json.Number
	if err := json.Unmarshal([]byte(s), &num); err == nil {
		if i, err := num.Int64(); err == nil {
			return i, true
		}
		if f, err := num.Float64(); err == nil {
			return f, true
		}
	}
	return nil, false
}

// IsTruthy reports whether a value counts as true on its own.
func IsTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case int32:
		return val != 0
	case uint64:
		return val != 0
	case float64:
		return val != 0
	case float32:
		return val != 0
	default:
		return true
	}
}

// ToFloat64 converts a value for numeric comparison. Values that are not
// numbers convert to 0.
func ToFloat64(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case int32:
		return float64(val)
	case uint64:
		return float64(val)
	case json.Number:
		f, _ := val.Float64()
		return f
	case string:
		var f float64
		_, _ = fmt.Sscanf(val, "%f", &f)
		return f
	default:
		return 0
	}
}
