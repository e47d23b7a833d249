// Package filter compiles restricted boolean row expressions.
//
// An expression is built only from column references, string and number
// literals, the comparison operators and the connectives and/or/not. There
// are no function calls, attribute access or arithmetic, so evaluating an
// expression can never reach anything outside the row it is given.
package filter

import (
	"strconv"
	"strings"
)

// Option customizes how cell values are interpreted.
type Option func(*Predicate)

// WithNumberParser replaces the default strconv-based number parser.
func WithNumberParser(parse func(string) (float64, bool)) Option {
	return func(p *Predicate) { p.parseNumber = parse }
}

// WithMissing replaces the default blank-cell test for missing values.
func WithMissing(missing func(string) bool) Option {
	return func(p *Predicate) { p.isMissing = missing }
}

// Predicate is a compiled expression bound to a column layout.
type Predicate struct {
	expr        string
	root        node
	parseNumber func(string) (float64, bool)
	isMissing   func(string) bool
}

// Compile parses expr against the given column names. Every identifier must
// name one of the columns.
func Compile(expr string, columns []string, opts ...Option) (*Predicate, error) {
	tokens, err := Tokenize(expr)
	if err != nil {
		return nil, err
	}
	root, err := NewParser(tokens, columns).Parse()
	if err != nil {
		return nil, err
	}

	p := &Predicate{
		expr:        expr,
		root:        root,
		parseNumber: parseFloat,
		isMissing:   isBlank,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Match reports whether row satisfies the expression. Cells beyond the end
// of row read as empty.
func (p *Predicate) Match(row []string) bool {
	return p.root.eval(p, row)
}

func (p *Predicate) String() string {
	return p.expr
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

type node interface {
	eval(p *Predicate, row []string) bool
}

type constNode bool

func (n constNode) eval(*Predicate, []string) bool { return bool(n) }

type notNode struct{ operand node }

func (n *notNode) eval(p *Predicate, row []string) bool { return !n.operand.eval(p, row) }

type andNode struct{ left, right node }

func (n *andNode) eval(p *Predicate, row []string) bool {
	return n.left.eval(p, row) && n.right.eval(p, row)
}

type orNode struct{ left, right node }

func (n *orNode) eval(p *Predicate, row []string) bool {
	return n.left.eval(p, row) || n.right.eval(p, row)
}

// operand is either a column reference (column >= 0) or a literal.
type operand struct {
	column int
	text   string
	num    float64
	isNum  bool
	fold   bool // boolean literals compare case-insensitively
}

type value struct {
	text    string
	num     float64
	numeric bool
	missing bool
}

func (o operand) resolve(p *Predicate, row []string) value {
	if o.column < 0 {
		if o.isNum {
			return value{text: o.text, num: o.num, numeric: true}
		}
		f, ok := p.parseNumber(o.text)
		return value{text: o.text, num: f, numeric: ok}
	}

	var cell string
	if o.column < len(row) {
		cell = row[o.column]
	}
	if p.isMissing(cell) {
		return value{text: cell, missing: true}
	}
	f, ok := p.parseNumber(cell)
	return value{text: cell, num: f, numeric: ok}
}

type compareNode struct {
	op          TokenType
	left, right operand
}

// eval compares numerically when both sides are numbers. A number against
// a missing cell, or a number literal against text, matches only !=.
// Everything else compares as text.
func (n *compareNode) eval(p *Predicate, row []string) bool {
	l := n.left.resolve(p, row)
	r := n.right.resolve(p, row)

	switch {
	case l.numeric && r.numeric:
		return compareOrdered(n.op, cmpFloat(l.num, r.num))
	case l.numeric != r.numeric && (n.left.isNum || n.right.isNum || l.missing || r.missing):
		return n.op == NEQ
	}

	if n.left.fold || n.right.fold {
		if n.op == EQ || n.op == NEQ {
			return strings.EqualFold(l.text, r.text) == (n.op == EQ)
		}
	}
	return compareOrdered(n.op, strings.Compare(l.text, r.text))
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareOrdered(op TokenType, c int) bool {
	switch op {
	case EQ:
		return c == 0
	case NEQ:
		return c != 0
	case LT:
		return c < 0
	case LTE:
		return c <= 0
	case GT:
		return c > 0
	case GTE:
		return c >= 0
	}
	return false
}
