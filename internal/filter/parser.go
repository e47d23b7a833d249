package filter

import (
	"fmt"
	"strconv"
)

// SyntaxError reports an expression that is malformed, uses a construct
// outside the grammar, or names an unknown column.
type SyntaxError struct {
	Pos int // rune offset into the expression
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("at offset %d: %s", e.Pos, e.Msg)
}

type Parser struct {
	tokens  []Token
	curPos  int
	curTok  Token
	peekTok Token
	columns map[string]int
}

func NewParser(tokens []Token, columns []string) *Parser {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; !dup {
			index[c] = i
		}
	}
	p := &Parser{tokens: tokens, columns: index}
	// Read two tokens to set curTok and peekTok
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curTok = p.peekTok
	if p.curPos < len(p.tokens) {
		p.peekTok = p.tokens[p.curPos]
		p.curPos++
	} else {
		p.peekTok = Token{Type: EOF, Pos: p.curTok.Pos}
	}
}

func (p *Parser) errorf(tok Token, format string, args ...any) error {
	return &SyntaxError{Pos: tok.Pos, Msg: fmt.Sprintf(format, args...)}
}

// Parse consumes the whole token stream and returns the expression tree.
func (p *Parser) Parse() (node, error) {
	if p.curTok.Type == EOF {
		return nil, p.errorf(p.curTok, "empty expression")
	}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.curTok.Type != EOF {
		return nil, p.errorf(p.curTok, "unexpected %s %q", p.curTok.Type, p.curTok.Literal)
	}
	return n, nil
}

func (p *Parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.curTok.Type == OR {
		p.nextToken()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &orNode{left: left, right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.curTok.Type == AND {
		p.nextToken()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &andNode{left: left, right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (node, error) {
	if p.curTok.Type == NOT {
		p.nextToken()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notNode{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (node, error) {
	switch p.curTok.Type {
	case PAREN_OPEN:
		p.nextToken()
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.curTok.Type != PAREN_CLOSE {
			return nil, p.errorf(p.curTok, "expected ), got %s", p.curTok.Type)
		}
		p.nextToken()
		return n, nil
	case TRUE, FALSE:
		if !isComparison(p.peekTok.Type) {
			value := p.curTok.Type == TRUE
			p.nextToken()
			return constNode(value), nil
		}
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (node, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	opTok := p.curTok
	if !isComparison(opTok.Type) {
		if opTok.Type == PAREN_OPEN {
			return nil, p.errorf(opTok, "function calls are not allowed")
		}
		return nil, p.errorf(opTok, "expected comparison operator, got %s", opTok.Type)
	}
	p.nextToken()

	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if isComparison(p.curTok.Type) {
		return nil, p.errorf(p.curTok, "chained comparisons are not allowed")
	}
	return &compareNode{op: opTok.Type, left: left, right: right}, nil
}

func (p *Parser) parseOperand() (operand, error) {
	tok := p.curTok
	switch tok.Type {
	case IDENTIFIER:
		idx, ok := p.columns[tok.Literal]
		if !ok {
			return operand{}, p.errorf(tok, "unknown column %q", tok.Literal)
		}
		p.nextToken()
		return operand{column: idx}, nil
	case STRING:
		p.nextToken()
		return operand{column: -1, text: tok.Literal}, nil
	case NUMBER:
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return operand{}, p.errorf(tok, "malformed number %q", tok.Literal)
		}
		p.nextToken()
		return operand{column: -1, text: tok.Literal, num: f, isNum: true}, nil
	case TRUE, FALSE:
		p.nextToken()
		return operand{column: -1, text: tok.Literal, fold: true}, nil
	case EOF:
		return operand{}, p.errorf(tok, "unexpected end of expression")
	default:
		return operand{}, p.errorf(tok, "expected column or literal, got %s", tok.Type)
	}
}

func isComparison(tt TokenType) bool {
	switch tt {
	case EQ, NEQ, LT, LTE, GT, GTE:
		return true
	}
	return false
}
