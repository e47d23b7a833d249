package filter

import (
	"fmt"
	"strings"
	"unicode"
)

type TokenType int

const (
	// Special
	ILLEGAL TokenType = iota
	EOF

	// Literals
	IDENTIFIER // amount, `unit price`
	STRING     // 'value', "value"
	NUMBER     // 123, 1.5, -2e3

	// Keywords
	AND
	OR
	NOT
	TRUE
	FALSE

	// Operators & Punctuation
	EQ          // == =
	NEQ         // != <>
	LT          // <
	LTE         // <=
	GT          // >
	GTE         // >=
	PAREN_OPEN  // (
	PAREN_CLOSE // )
)

var tokenNames = map[TokenType]string{
	ILLEGAL:     "illegal",
	EOF:         "end of expression",
	IDENTIFIER:  "column",
	STRING:      "string",
	NUMBER:      "number",
	AND:         "and",
	OR:          "or",
	NOT:         "not",
	TRUE:        "true",
	FALSE:       "false",
	EQ:          "==",
	NEQ:         "!=",
	LT:          "<",
	LTE:         "<=",
	GT:          ">",
	GTE:         ">=",
	PAREN_OPEN:  "(",
	PAREN_CLOSE: ")",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// keywords are matched case-insensitively.
var keywords = map[string]TokenType{
	"and":   AND,
	"or":    OR,
	"not":   NOT,
	"true":  TRUE,
	"false": FALSE,
}

type Token struct {
	Type    TokenType
	Literal string
	Pos     int // rune offset of the first character
	Quoted  bool
}

func (t Token) String() string {
	return fmt.Sprintf("Token(%s, %q)", t.Type, t.Literal)
}

type Lexer struct {
	input        []rune
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           rune // current char under examination
}

func NewLexer(input string) *Lexer {
	l := &Lexer{input: []rune(input)}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) atEnd() bool {
	return l.position >= len(l.input)
}

// NextToken returns the next token. Malformed input yields an ILLEGAL token
// whose literal describes the problem.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	pos := l.position
	if l.atEnd() {
		return Token{Type: EOF, Pos: pos}
	}

	switch l.ch {
	case '(':
		l.readChar()
		return Token{Type: PAREN_OPEN, Literal: "(", Pos: pos}
	case ')':
		l.readChar()
		return Token{Type: PAREN_CLOSE, Literal: ")", Pos: pos}
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
		}
		l.readChar()
		return Token{Type: EQ, Literal: "==", Pos: pos}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Type: NEQ, Literal: "!=", Pos: pos}
		}
		l.readChar()
		return Token{Type: NOT, Literal: "!", Pos: pos}
	case '~':
		l.readChar()
		return Token{Type: NOT, Literal: "~", Pos: pos}
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			l.readChar()
			return Token{Type: LTE, Literal: "<=", Pos: pos}
		case '>':
			l.readChar()
			l.readChar()
			return Token{Type: NEQ, Literal: "<>", Pos: pos}
		}
		l.readChar()
		return Token{Type: LT, Literal: "<", Pos: pos}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Type: GTE, Literal: ">=", Pos: pos}
		}
		l.readChar()
		return Token{Type: GT, Literal: ">", Pos: pos}
	case '&':
		if l.peekChar() == '&' {
			l.readChar()
		}
		l.readChar()
		return Token{Type: AND, Literal: "and", Pos: pos}
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
		}
		l.readChar()
		return Token{Type: OR, Literal: "or", Pos: pos}
	case '\'', '"':
		return l.readQuoted(STRING, pos)
	case '`':
		return l.readQuoted(IDENTIFIER, pos)
	}

	if isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())) ||
		((l.ch == '-' || l.ch == '+') && (isDigit(l.peekChar()) || l.peekChar() == '.')) {
		return l.readNumber(pos)
	}
	if isIdentStart(l.ch) {
		word := l.readIdentifier()
		if tt, ok := keywords[strings.ToLower(word)]; ok {
			return Token{Type: tt, Literal: strings.ToLower(word), Pos: pos}
		}
		return Token{Type: IDENTIFIER, Literal: word, Pos: pos}
	}

	ch := l.ch
	l.readChar()
	return Token{Type: ILLEGAL, Literal: fmt.Sprintf("unexpected character %q", ch), Pos: pos}
}

func (l *Lexer) skipWhitespace() {
	for !l.atEnd() && unicode.IsSpace(l.ch) {
		l.readChar()
	}
}

// readQuoted reads a literal enclosed by the current character. A doubled
// quote or a backslash escapes the closing quote.
func (l *Lexer) readQuoted(tt TokenType, pos int) Token {
	quote := l.ch
	var b strings.Builder
	l.readChar()
	for {
		if l.atEnd() {
			return Token{Type: ILLEGAL, Literal: "unterminated quote", Pos: pos}
		}
		switch {
		case l.ch == '\\' && l.peekChar() == quote:
			l.readChar()
			b.WriteRune(quote)
		case l.ch == quote && l.peekChar() == quote:
			l.readChar()
			b.WriteRune(quote)
		case l.ch == quote:
			l.readChar()
			return Token{Type: tt, Literal: b.String(), Pos: pos, Quoted: true}
		default:
			b.WriteRune(l.ch)
		}
		l.readChar()
	}
}

func (l *Lexer) readNumber(pos int) Token {
	start := l.position
	if l.ch == '-' || l.ch == '+' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '-' || next == '+' {
			l.readChar()
			if l.ch == '-' || l.ch == '+' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	literal := string(l.input[start:l.position])
	if isIdentPart(l.ch) {
		for isIdentPart(l.ch) {
			l.readChar()
		}
		return Token{Type: ILLEGAL, Literal: fmt.Sprintf("malformed number %q", string(l.input[start:l.position])), Pos: pos}
	}
	return Token{Type: NUMBER, Literal: literal, Pos: pos}
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isIdentPart(l.ch) {
		l.readChar()
	}
	return string(l.input[start:l.position])
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isIdentPart(ch rune) bool {
	return isIdentStart(ch) || unicode.IsDigit(ch)
}

// Tokenize lexes the whole input, stopping at the first illegal token.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		if tok.Type == ILLEGAL {
			return nil, &SyntaxError{Pos: tok.Pos, Msg: tok.Literal}
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}
