package expr

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// BinaryOp compares two operand values.
type BinaryOp func(left, right any) bool

// builtinOps are matched before custom operators.
var builtinOps = map[string]BinaryOp{
	"==":       equals,
	"!=":       func(l, r any) bool { return !equals(l, r) },
	"<":        func(l, r any) bool { return ToFloat64(l) < ToFloat64(r) },
	">":        func(l, r any) bool { return ToFloat64(l) > ToFloat64(r) },
	"<=":       func(l, r any) bool { return ToFloat64(l) <= ToFloat64(r) },
	">=":       func(l, r any) bool { return ToFloat64(l) >= ToFloat64(r) },
	"contains": contains,
}

// text is the NFC-normalized textual form of v.
func text(v any) string {
	return norm.NFC.String(fmt.Sprintf("%v", v))
}

// equals compares textual forms, so 5 == "5" and an int64 literal equals an
// int payload field.
func equals(left, right any) bool {
	return text(left) == text(right)
}

func contains(left, right any) bool {
	if list, ok := left.([]any); ok {
		for _, item := range list {
			if equals(item, right) {
				return true
			}
		}
		return false
	}
	if list, ok := left.([]string); ok {
		for _, item := range list {
			if equals(item, right) {
				return true
			}
		}
		return false
	}
	return strings.Contains(text(left), text(right))
}
