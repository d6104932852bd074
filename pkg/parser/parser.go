// Package parser provides parsing of the table query language into an AST.
//
// # Usage
//
//	query, err := parser.ParseQuery("SELECT foo, COUNT(*) FROM syn123 GROUP BY foo")
//	if err != nil {
//	    // *parser.ParseError or *parser.LexError, with line and column
//	}
//
// # Grammar Overview
//
// The parser implements a recursive descent parser for a subset of SQL:
//
//	query        → SELECT [DISTINCT|ALL] select_list FROM table_ref {join}
//	               [WHERE search] [GROUP BY value_list] [HAVING search]
//	               [ORDER BY sort_list] [LIMIT n [OFFSET m] | LIMIT m, n] [;]
//	table_ref    → table_name [[AS] alias]      table_name → ident ["." number]
//	join         → [INNER | LEFT [OUTER] | RIGHT [OUTER] | FULL [OUTER] | CROSS] JOIN table_ref [ON search]
//	search       → bterm {OR bterm}
//	bterm        → bfactor {AND bfactor}
//	bfactor      → [NOT] bprimary
//	bprimary     → predicate | "(" search ")"
//	predicate    → value (comp value | [NOT] BETWEEN value AND value | [NOT] IN "(" values ")"
//	               | [NOT] LIKE value [ESCAPE value] | IS [NOT] (NULL|TRUE|FALSE))
//	value        → term {(+|-) term}
//	term         → factor {(*|/|%|DIV) factor}
//	factor       → [+|-] factor | primary
//	primary      → literal | column_ref | set_function | function_call | "(" value ")"
//
// Parsing either consumes the whole input or fails; there is no partial result.
package parser

import (
	"fmt"

	"github.com/leapstack-labs/leaptable/pkg/token"
)

// Parser parses query text into an AST.
type Parser struct {
	tokens []Token
	pos    int
	err    error
}

// NewParser tokenizes sql and returns a parser positioned at the first token.
func NewParser(sql string) (*Parser, error) {
	tokens, err := Tokenize(sql)
	if err != nil {
		return nil, err
	}
	return &Parser{tokens: tokens}, nil
}

// ParseQuery parses a complete query specification.
func ParseQuery(sql string) (*QuerySpecification, error) {
	p, err := NewParser(sql)
	if err != nil {
		return nil, err
	}
	if p.check(token.EOF) {
		return nil, &ParseError{Pos: p.cur().Pos, Message: ErrEmptyInput}
	}
	q := p.parseQuery()
	if err := p.finish(); err != nil {
		return nil, err
	}
	return q, nil
}

// ParseSearchCondition parses a standalone search condition, such as the body
// of a WHERE clause.
func ParseSearchCondition(sql string) (Condition, error) {
	p, err := NewParser(sql)
	if err != nil {
		return nil, err
	}
	if p.check(token.EOF) {
		return nil, &ParseError{Pos: p.cur().Pos, Message: ErrEmptyInput}
	}
	cond := p.parseSearchCondition()
	if err := p.finish(); err != nil {
		return nil, err
	}
	return cond, nil
}

// finish checks that all input was consumed and returns the first error.
func (p *Parser) finish() error {
	if p.err != nil {
		return p.err
	}
	p.match(token.SEMICOLON)
	if !p.check(token.EOF) {
		p.addError(fmt.Sprintf(ErrTrailingInput, describe(p.cur())))
	}
	return p.err
}

// ---------- Token Helpers ----------

func (p *Parser) cur() Token {
	return p.tokens[p.pos]
}

func (p *Parser) peek() Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

// next advances to the next token. EOF is sticky.
func (p *Parser) next() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t token.TokenType) bool {
	return p.cur().Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t token.TokenType) bool {
	if p.check(t) {
		p.next()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise records an error.
func (p *Parser) expect(t token.TokenType) bool {
	if p.check(t) {
		p.next()
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.cur()), t))
	return false
}

// expectIdent consumes an identifier token.
func (p *Parser) expectIdent() (Token, bool) {
	tok := p.cur()
	if tok.Type != token.IDENT {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(tok), token.IDENT))
		return tok, false
	}
	p.next()
	return tok, true
}

// addError records a parse error at the current token. Only the first error
// is kept; parse functions stop descending once one is recorded.
func (p *Parser) addError(msg string) {
	if p.err != nil {
		return
	}
	p.err = &ParseError{Pos: p.cur().Pos, Message: msg}
}

func (p *Parser) failed() bool {
	return p.err != nil
}

// mark and reset implement backtracking for ambiguous parentheses.
type mark struct {
	pos int
	err error
}

func (p *Parser) mark() mark {
	return mark{pos: p.pos, err: p.err}
}

func (p *Parser) reset(m mark) {
	p.pos = m.pos
	p.err = m.err
}

func describe(tok Token) string {
	switch tok.Type {
	case token.IDENT, token.NUMBER, token.STRING:
		return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	}
	return tok.Type.String()
}

// errorOffset returns the source offset of a parse error, for picking the
// most advanced of two failed alternatives.
func errorOffset(err error) int {
	if pe, ok := err.(*ParseError); ok {
		return pe.Pos.Offset
	}
	return -1
}
