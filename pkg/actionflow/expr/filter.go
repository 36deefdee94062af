package expr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmpty is returned when compiling a blank expression.
var ErrEmpty = errors.New("empty expression")

// SyntaxError reports where an expression failed to parse.
type SyntaxError struct {
	Expr string
	Pos  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("expr %q: position %d: %s", e.Expr, e.Pos, e.Msg)
}

// Option configures compilation.
type Option func(*compiler)

// WithOperator registers a binary operator used as a bare word,
// e.g. "name matches '^a'". Built-in operators cannot be replaced.
func WithOperator(name string, fn BinaryOp) Option {
	return func(c *compiler) {
		if _, builtin := builtinOps[name]; builtin {
			return
		}
		c.ops[name] = fn
	}
}

// Filter is a compiled expression. It is immutable and safe for concurrent use.
type Filter struct {
	src  string
	root node
}

// Compile parses src into a Filter.
func Compile(src string, opts ...Option) (*Filter, error) {
	if strings.TrimSpace(src) == "" {
		return nil, ErrEmpty
	}

	c := &compiler{src: src, ops: map[string]BinaryOp{}}
	for _, opt := range opts {
		opt(c)
	}

	toks, err := c.tokenize()
	if err != nil {
		return nil, err
	}
	c.toks = toks

	root, err := c.parseOr()
	if err != nil {
		return nil, err
	}
	if c.pos < len(c.toks) {
		return nil, c.errorf("unexpected %q", c.toks[c.pos].text)
	}
	return &Filter{src: src, root: root}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(src string, opts ...Option) *Filter {
	f, err := Compile(src, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

// Match evaluates the filter against vars.
func (f *Filter) Match(vars map[string]any) bool {
	return IsTruthy(f.root.eval(vars))
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.src
}

// Eval compiles and evaluates src in one step.
func Eval(src string, vars map[string]any) (bool, error) {
	f, err := Compile(src)
	if err != nil {
		return false, err
	}
	return f.Match(vars), nil
}

type node interface {
	eval(vars map[string]any) any
}

type orNode struct{ left, right node }

func (n orNode) eval(vars map[string]any) any {
	return IsTruthy(n.left.eval(vars)) || IsTruthy(n.right.eval(vars))
}

type andNode struct{ left, right node }

func (n andNode) eval(vars map[string]any) any {
	return IsTruthy(n.left.eval(vars)) && IsTruthy(n.right.eval(vars))
}

type notNode struct{ inner node }

func (n notNode) eval(vars map[string]any) any {
	return !IsTruthy(n.inner.eval(vars))
}

type compareNode struct {
	op          BinaryOp
	left, right node
}

func (n compareNode) eval(vars map[string]any) any {
	return n.op(n.left.eval(vars), n.right.eval(vars))
}

type literalNode struct{ value any }

func (n literalNode) eval(map[string]any) any { return n.value }

// pathNode resolves against vars and falls back to its own text.
type pathNode struct{ path string }

func (n pathNode) eval(vars map[string]any) any {
	if v, ok := Lookup(vars, n.path); ok {
		return v
	}
	return n.path
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokString
	tokOp
	tokLParen
	tokRParen
	tokBang
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type compiler struct {
	src  string
	ops  map[string]BinaryOp
	toks []token
	pos  int
}

func (c *compiler) errorf(format string, args ...any) error {
	at := len(c.src)
	if c.pos < len(c.toks) {
		at = c.toks[c.pos].pos
	}
	return &SyntaxError{Expr: c.src, Pos: at, Msg: fmt.Sprintf(format, args...)}
}

func (c *compiler) tokenize() ([]token, error) {
	var toks []token
	s := c.src
	for i := 0; i < len(s); {
		ch := s[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case ch == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case ch == '\'' || ch == '"':
			end := strings.IndexByte(s[i+1:], ch)
			if end < 0 {
				return nil, &SyntaxError{Expr: s, Pos: i, Msg: "unterminated string"}
			}
			toks = append(toks, token{tokString, s[i : i+end+2], i})
			i += end + 2
		case strings.HasPrefix(s[i:], "=="), strings.HasPrefix(s[i:], "!="),
			strings.HasPrefix(s[i:], "<="), strings.HasPrefix(s[i:], ">="):
			toks = append(toks, token{tokOp, s[i : i+2], i})
			i += 2
		case ch == '<' || ch == '>':
			toks = append(toks, token{tokOp, s[i : i+1], i})
			i++
		case ch == '!':
			toks = append(toks, token{tokBang, "!", i})
			i++
		case ch == '=':
			return nil, &SyntaxError{Expr: s, Pos: i, Msg: "unexpected '=' (use ==)"}
		default:
			start := i
			for i < len(s) && !isDelimiter(s[i]) {
				i++
			}
			toks = append(toks, token{tokWord, s[start:i], start})
		}
	}
	return toks, nil
}

func isDelimiter(b byte) bool {
	return strings.IndexByte(" \t\n\r()'\"=!<>", b) >= 0
}

func (c *compiler) peek() (token, bool) {
	if c.pos >= len(c.toks) {
		return token{}, false
	}
	return c.toks[c.pos], true
}

func (c *compiler) keyword(word string) bool {
	t, ok := c.peek()
	return ok && t.kind == tokWord && strings.EqualFold(t.text, word)
}

func (c *compiler) parseOr() (node, error) {
	left, err := c.parseAnd()
	if err != nil {
		return nil, err
	}
	for c.keyword("or") {
		c.pos++
		right, err := c.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left, right}
	}
	return left, nil
}

func (c *compiler) parseAnd() (node, error) {
	left, err := c.parseUnary()
	if err != nil {
		return nil, err
	}
	for c.keyword("and") {
		c.pos++
		right, err := c.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andNode{left, right}
	}
	return left, nil
}

func (c *compiler) parseUnary() (node, error) {
	t, ok := c.peek()
	if !ok {
		return nil, c.errorf("unexpected end of expression")
	}

	switch {
	case t.kind == tokBang || c.keyword("not"):
		c.pos++
		inner, err := c.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{inner}, nil

	case t.kind == tokLParen:
		c.pos++
		inner, err := c.parseOr()
		if err != nil {
			return nil, err
		}
		if t, ok := c.peek(); !ok || t.kind != tokRParen {
			return nil, c.errorf("missing )")
		}
		c.pos++
		return inner, nil
	}

	return c.parseComparison()
}

func (c *compiler) parseComparison() (node, error) {
	left, err := c.parseOperand()
	if err != nil {
		return nil, err
	}

	t, ok := c.peek()
	if !ok {
		return left, nil
	}
	op, isOp := c.operator(t)
	if !isOp {
		return left, nil
	}
	c.pos++

	right, err := c.parseOperand()
	if err != nil {
		return nil, err
	}
	return compareNode{op: op, left: left, right: right}, nil
}

func (c *compiler) operator(t token) (BinaryOp, bool) {
	switch t.kind {
	case tokOp:
		return builtinOps[t.text], true
	case tokWord:
		if strings.EqualFold(t.text, "contains") {
			return builtinOps["contains"], true
		}
		op, ok := c.ops[t.text]
		return op, ok
	default:
		return nil, false
	}
}

func (c *compiler) parseOperand() (node, error) {
	t, ok := c.peek()
	if !ok {
		return nil, c.errorf("expected operand")
	}

	switch t.kind {
	case tokString:
		c.pos++
		v, _ := literal(t.text)
		return literalNode{v}, nil
	case tokWord:
		if c.reserved(t.text) {
			return nil, c.errorf("expected operand, got %q", t.text)
		}
		c.pos++
		if v, ok := literal(t.text); ok {
			return literalNode{v}, nil
		}
		return pathNode{t.text}, nil
	default:
		return nil, c.errorf("expected operand, got %q", t.text)
	}
}

func (c *compiler) reserved(word string) bool {
	switch strings.ToLower(word) {
	case "and", "or", "not", "contains":
		return true
	}
	_, custom := c.ops[word]
	return custom
}
