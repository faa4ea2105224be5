// Package expr compiles small boolean expressions over named byte operands.
//
// An identifier ending in a digit selects one bit of a byte: "ra3" is bit 3
// of the operand bound to "ra". An identifier without a digit is the whole
// operand taken as a boolean, true when non-zero. The operators are, from
// tightest to loosest binding: "!", "&", "^", "|", then "==" and "!=".
// Parentheses group, and the literals 0 and 1 are false and true.
//
// Expressions are checked when compiled and are safe for concurrent use.
//
//	h := expr.MustCompile("ra3&rb3 | rb3&!res3 | !res3&ra3")
//	half, err := h.Eval(expr.Env{"ra": a, "rb": b, "res": r})
package expr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrSyntax is returned for malformed expression text.
	ErrSyntax = errors.New("expression syntax error")

	// ErrUnbound is returned when an operand is missing from the environment.
	ErrUnbound = errors.New("unbound operand")

	// ErrWidth is returned when an operand is bound to something other than
	// a byte, or a bit is selected from a boolean.
	ErrWidth = errors.New("operand has the wrong width")
)

// Env binds operand names to uint8 or bool values.
type Env map[string]any

// Expr is a compiled expression.
type Expr struct {
	src  string
	root node
	refs []string
}

// Compile parses an expression.
func Compile(src string) (*Expr, error) {
	p := &parser{src: src}
	if err := p.lex(); err != nil {
		return nil, err
	}
	root, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, p.errorf("unexpected %q", p.toks[p.pos].text)
	}

	seen := map[string]bool{}
	collect(root, seen)
	refs := make([]string, 0, len(seen))
	for name := range seen {
		refs = append(refs, name)
	}
	sort.Strings(refs)

	return &Expr{src: src, root: root, refs: refs}, nil
}

// MustCompile is like Compile but panics on error. It is meant for
// expressions fixed at package initialisation.
func MustCompile(src string) *Expr {
	e, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return e
}

// Eval evaluates the expression against env.
func (e *Expr) Eval(env Env) (bool, error) {
	return e.root.eval(env)
}

// Operands returns the operand names the expression reads, sorted.
func (e *Expr) Operands() []string {
	return append([]string(nil), e.refs...)
}

func (e *Expr) String() string {
	return e.src
}

type node interface {
	eval(env Env) (bool, error)
}

type literal bool

func (l literal) eval(Env) (bool, error) { return bool(l), nil }

// operandRef reads a whole operand, or one bit of it when bit >= 0.
type operandRef struct {
	name string
	bit  int
}

func (r operandRef) eval(env Env) (bool, error) {
	v, ok := env[r.name]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnbound, r.name)
	}

	switch x := v.(type) {
	case uint8:
		if r.bit < 0 {
			return x != 0, nil
		}
		return x&(1<<r.bit) != 0, nil
	case bool:
		if r.bit >= 0 {
			return false, fmt.Errorf("%w: bit %d of boolean %s", ErrWidth, r.bit, r.name)
		}
		return x, nil
	}
	return false, fmt.Errorf("%w: %s is %T", ErrWidth, r.name, v)
}

type not struct{ x node }

func (n not) eval(env Env) (bool, error) {
	v, err := n.x.eval(env)
	return !v, err
}

type binary struct {
	op   string
	l, r node
}

func (b binary) eval(env Env) (bool, error) {
	l, err := b.l.eval(env)
	if err != nil {
		return false, err
	}
	r, err := b.r.eval(env)
	if err != nil {
		return false, err
	}

	switch b.op {
	case "&":
		return l && r, nil
	case "|":
		return l || r, nil
	case "^", "!=":
		return l != r, nil
	case "==":
		return l == r, nil
	}
	return false, fmt.Errorf("%w: operator %q", ErrSyntax, b.op)
}

func collect(n node, seen map[string]bool) {
	switch x := n.(type) {
	case operandRef:
		seen[x.name] = true
	case not:
		collect(x.x, seen)
	case binary:
		collect(x.l, seen)
		collect(x.r, seen)
	}
}

type token struct {
	text string
	pos  int
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %q: %s", ErrSyntax, p.src, fmt.Sprintf(format, args...))
}

func isLetter(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func (p *parser) lex() error {
	s := p.src
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '=' || (c == '!' && i+1 < len(s) && s[i+1] == '='):
			if i+1 >= len(s) || s[i+1] != '=' {
				return p.errorf("stray '=' at %d", i)
			}
			p.toks = append(p.toks, token{s[i : i+2], i})
			i += 2
		case strings.IndexByte("!&|^()", c) >= 0:
			p.toks = append(p.toks, token{s[i : i+1], i})
			i++
		case isLetter(c) || isDigit(c):
			j := i
			for j < len(s) && (isLetter(s[j]) || isDigit(s[j])) {
				j++
			}
			p.toks = append(p.toks, token{s[i:j], i})
			i = j
		default:
			return p.errorf("unexpected %q at %d", c, i)
		}
	}
	if len(p.toks) == 0 {
		return p.errorf("empty expression")
	}
	return nil
}

func (p *parser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos].text
	}
	return ""
}

func (p *parser) parseEquality() (node, error) {
	l, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	for op := p.peek(); op == "==" || op == "!="; op = p.peek() {
		p.pos++
		r, err := p.parseBinary(0)
		if err != nil {
			return nil, err
		}
		l = binary{op: op, l: l, r: r}
	}
	return l, nil
}

// levels lists the binary operators from loosest to tightest.
var levels = []string{"|", "^", "&"}

func (p *parser) parseBinary(level int) (node, error) {
	if level == len(levels) {
		return p.parseUnary()
	}
	l, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}
	for p.peek() == levels[level] {
		p.pos++
		r, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		l = binary{op: levels[level], l: l, r: r}
	}
	return l, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.peek() == "!" {
		p.pos++
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return not{x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	if p.pos >= len(p.toks) {
		return nil, p.errorf("unexpected end")
	}
	tok := p.toks[p.pos]
	p.pos++

	switch {
	case tok.text == "(":
		x, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		if p.peek() != ")" {
			return nil, p.errorf("missing ')' for '(' at %d", tok.pos)
		}
		p.pos++
		return x, nil
	case tok.text == "0":
		return literal(false), nil
	case tok.text == "1":
		return literal(true), nil
	case isLetter(tok.text[0]):
		return p.operand(tok)
	}
	return nil, p.errorf("unexpected %q at %d", tok.text, tok.pos)
}

func (p *parser) operand(tok token) (node, error) {
	name := strings.TrimRight(tok.text, "0123456789")
	digits := tok.text[len(name):]
	if digits == "" {
		return operandRef{name: name, bit: -1}, nil
	}
	if len(digits) > 1 || digits[0] > '7' {
		return nil, p.errorf("bit index %s of %s is not 0-7", digits, name)
	}
	return operandRef{name: name, bit: int(digits[0] - '0')}, nil
}
