package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leaptable/pkg/token"
)

// ---------- Conditions ----------

// search → bterm {OR bterm}
func (p *Parser) parseSearchCondition() Condition {
	left := p.parseBooleanTerm()
	for !p.failed() && p.match(token.OR) {
		right := p.parseBooleanTerm()
		left = &LogicalCondition{Op: token.OR, Left: left, Right: right}
	}
	if p.failed() {
		return nil
	}
	return left
}

// bterm → bfactor {AND bfactor}
func (p *Parser) parseBooleanTerm() Condition {
	left := p.parseBooleanFactor()
	for !p.failed() && p.match(token.AND) {
		right := p.parseBooleanFactor()
		left = &LogicalCondition{Op: token.AND, Left: left, Right: right}
	}
	return left
}

// bfactor → [NOT] bprimary
func (p *Parser) parseBooleanFactor() Condition {
	if p.match(token.NOT) {
		cond := p.parseBooleanFactor()
		if p.failed() {
			return nil
		}
		return &NotCondition{Cond: cond}
	}
	return p.parseBooleanPrimary()
}

// bprimary → "(" search ")" | predicate
//
// A leading parenthesis is ambiguous: "(a = 1)" is a condition while
// "(a + 1) = 2" starts a predicate. The condition reading is tried first and
// abandoned when it fails or when the closing parenthesis is followed by an
// operator that continues a value expression.
func (p *Parser) parseBooleanPrimary() Condition {
	if !p.check(token.LPAREN) {
		return p.parsePredicate()
	}

	start := p.mark()
	p.next()
	cond := p.parseSearchCondition()
	if !p.failed() && p.match(token.RPAREN) && !p.continuesValue() {
		return &ParenCondition{Cond: cond}
	}
	condErr := p.err
	p.reset(start)

	pred := p.parsePredicate()
	if p.failed() && condErr != nil && errorOffset(condErr) > errorOffset(p.err) {
		p.err = condErr
	}
	return pred
}

// continuesValue reports whether the current token extends a value
// expression into a predicate.
func (p *Parser) continuesValue() bool {
	switch t := p.cur().Type; {
	case token.IsComparison(t):
		return true
	case t == token.PLUS, t == token.MINUS, t == token.STAR, t == token.SLASH,
		t == token.PERCENT, t == token.DIV,
		t == token.BETWEEN, t == token.IN, t == token.LIKE, t == token.IS:
		return true
	case t == token.NOT:
		switch p.peek().Type {
		case token.BETWEEN, token.IN, token.LIKE:
			return true
		}
	}
	return false
}

// predicate → value (comp value | [NOT] BETWEEN | [NOT] IN | [NOT] LIKE | IS [NOT] ...)
func (p *Parser) parsePredicate() Condition {
	left := p.parseValue()
	if p.failed() {
		return nil
	}

	tok := p.cur()
	if token.IsComparison(tok.Type) {
		p.next()
		right := p.parseValue()
		if p.failed() {
			return nil
		}
		return &ComparisonPredicate{Left: left, Op: tok.Type, Right: right}
	}

	if tok.Type == token.IS {
		p.next()
		not := p.match(token.NOT)
		truth := p.cur().Type
		switch truth {
		case token.NULL, token.TRUE, token.FALSE:
			p.next()
			return &IsPredicate{Expr: left, Not: not, Truth: truth}
		}
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.cur()), "NULL, TRUE or FALSE"))
		return nil
	}

	not := false
	if tok.Type == token.NOT {
		switch p.peek().Type {
		case token.BETWEEN, token.IN, token.LIKE:
			not = true
			p.next()
		}
	}

	switch p.cur().Type {
	case token.BETWEEN:
		p.next()
		low := p.parseValue()
		if p.failed() || !p.expect(token.AND) {
			return nil
		}
		high := p.parseValue()
		if p.failed() {
			return nil
		}
		return &BetweenPredicate{Expr: left, Not: not, Low: low, High: high}

	case token.IN:
		p.next()
		if !p.expect(token.LPAREN) {
			return nil
		}
		values := p.parseValueList()
		if p.failed() || !p.expect(token.RPAREN) {
			return nil
		}
		return &InPredicate{Expr: left, Not: not, Values: values}

	case token.LIKE:
		p.next()
		pattern := p.parseValue()
		if p.failed() {
			return nil
		}
		like := &LikePredicate{Expr: left, Not: not, Pattern: pattern}
		if p.match(token.ESCAPE) {
			like.Escape = p.parsePrimary()
			if p.failed() {
				return nil
			}
		}
		return like
	}

	p.addError(fmt.Sprintf(ErrExpectedPredicate, exprSummary(left)))
	return nil
}

// ---------- Value expressions ----------

// value → term {(+|-) term}
func (p *Parser) parseValue() Expr {
	left := p.parseTerm()
	for !p.failed() && (p.check(token.PLUS) || p.check(token.MINUS)) {
		op := p.cur().Type
		p.next()
		right := p.parseTerm()
		left = &ArithmeticExpr{Op: op, Left: left, Right: right}
	}
	if p.failed() {
		return nil
	}
	return left
}

// term → factor {(*|/|%|DIV) factor}
func (p *Parser) parseTerm() Expr {
	left := p.parseFactor()
	for !p.failed() {
		op := p.cur().Type
		if op != token.STAR && op != token.SLASH && op != token.PERCENT && op != token.DIV {
			break
		}
		p.next()
		right := p.parseFactor()
		left = &ArithmeticExpr{Op: op, Left: left, Right: right}
	}
	return left
}

// factor → [+|-] factor | primary
func (p *Parser) parseFactor() Expr {
	if p.check(token.PLUS) || p.check(token.MINUS) {
		op := p.cur().Type
		p.next()
		inner := p.parseFactor()
		if p.failed() {
			return nil
		}
		return &UnaryExpr{Op: op, Expr: inner}
	}
	return p.parsePrimary()
}

// primary → literal | column_ref | set_function | function_call | "(" value ")"
func (p *Parser) parsePrimary() Expr {
	tok := p.cur()
	switch tok.Type {
	case token.NUMBER:
		p.next()
		return &Literal{Type: LiteralNumber, Value: tok.Literal}
	case token.STRING:
		p.next()
		return &Literal{Type: LiteralString, Value: tok.Literal}
	case token.TRUE, token.FALSE:
		p.next()
		return &Literal{Type: LiteralBoolean, Value: strings.ToLower(tok.Literal)}
	case token.NULL:
		p.next()
		return &Literal{Type: LiteralNull, Value: "NULL"}
	case token.LPAREN:
		p.next()
		inner := p.parseValue()
		if p.failed() || !p.expect(token.RPAREN) {
			return nil
		}
		return &ParenExpr{Expr: inner}
	case token.IDENT:
		if !tok.Quoted && p.peek().Type == token.LPAREN {
			return p.parseFunction()
		}
		p.next()
		ref := &ColumnReference{Name: tok.Literal, Quoted: tok.Quoted}
		if p.check(token.DOT) && p.peek().Type == token.IDENT {
			p.next()
			col := p.cur()
			p.next()
			ref.Qualifier = ref.Name
			ref.Name = col.Literal
			ref.Quoted = col.Quoted
		}
		return ref
	case token.STAR:
		p.addError(ErrStarNotAllowed)
		return nil
	}
	p.addError(fmt.Sprintf(ErrExpectedExpression, describe(tok)))
	return nil
}

// parseFunction parses name "(" ... ")" for set functions and general calls.
func (p *Parser) parseFunction() Expr {
	name := strings.ToUpper(p.cur().Literal)
	p.next() // name
	p.next() // (

	if setType, ok := setFunctions[name]; ok {
		fn := &SetFunction{Type: setType}
		if setType == SetCount && p.match(token.STAR) {
			fn.Star = true
		} else {
			if p.match(token.DISTINCT) {
				fn.Distinct = true
			} else {
				p.match(token.ALL)
			}
			fn.Arg = p.parseValue()
			if p.failed() {
				return nil
			}
			if p.check(token.COMMA) {
				p.addError(fmt.Sprintf(ErrSetFunctionArguments, name))
				return nil
			}
		}
		if !p.expect(token.RPAREN) {
			return nil
		}
		return fn
	}

	call := &FunctionCall{Name: name}
	if p.match(token.RPAREN) {
		return call
	}
	call.Args = p.parseValueList()
	if p.failed() || !p.expect(token.RPAREN) {
		return nil
	}
	return call
}

// exprSummary names an expression for error messages.
func exprSummary(e Expr) string {
	switch v := e.(type) {
	case *ColumnReference:
		return fmt.Sprintf("column %q", v.Name)
	case *Literal:
		return fmt.Sprintf("value %q", v.Value)
	case *FunctionCall:
		return v.Name
	case *SetFunction:
		return string(v.Type)
	}
	return "expression"
}
