/*
Package expr compiles filter conditions evaluated against events.

# Overview

A filter is a small boolean expression over an event's metadata and payload.
Filters are compiled once, when a pipeline is built or a settings file is
loaded, and evaluated for every candidate event.

# Syntax

	<filter>     := <and> ('or' <and>)*
	<and>        := <unary> ('and' <unary>)*
	<unary>      := ('not' | '!') <unary> | '(' <filter> ')' | <comparison>
	<comparison> := <operand> [<op> <operand>]
	<op>         := '==' | '!=' | '<' | '>' | '<=' | '>=' | 'contains' | custom
	<operand>    := 'string' | "string" | number | true | false | null | path

'and' binds tighter than 'or'. A lone operand is tested for truthiness.

# Variables

Vars exposes an event as:

	type            event type
	id              event ID
	correlation_id  correlation ID
	causation_id    causation ID
	version         schema version
	data            payload (maps are traversed with dotted paths)

Top-level payload fields are also available by name unless they collide
with one of the names above, so for a payload of
event.Fields{"user": map[string]any{"id": 7}} both data.user.id and user.id
resolve to 7. A path that resolves to nothing is compared as its own text,
which lets bare words act as string literals:

	type == USER_FETCH and user.id > 3
	not (status == 'archived' or deleted)
	message contains 'timeout'

# Custom Operators

	f, err := expr.Compile("name matches '^test'", expr.WithOperator("matches",
	    func(left, right any) bool {
	        ok, _ := regexp.MatchString(fmt.Sprint(right), fmt.Sprint(left))
	        return ok
	    }))

# Truthiness

nil is false, bools are themselves, empty strings and zero numbers are false,
everything else is true.
*/
package expr
