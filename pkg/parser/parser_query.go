package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leaptable/pkg/token"
)

// parseQuery parses SELECT ... FROM ... and the optional trailing clauses.
func (p *Parser) parseQuery() *QuerySpecification {
	q := &QuerySpecification{}
	if !p.expect(token.SELECT) {
		return nil
	}
	if p.match(token.DISTINCT) {
		q.Distinct = true
	} else {
		p.match(token.ALL)
	}

	q.Select = p.parseSelectList()
	if p.failed() || !p.expect(token.FROM) {
		return nil
	}
	q.From = p.parseFromClause()
	if p.failed() {
		return nil
	}

	if p.match(token.WHERE) {
		q.Where = p.parseSearchCondition()
	}
	if !p.failed() && p.match(token.GROUP) {
		if p.expect(token.BY) {
			q.GroupBy = p.parseValueList()
		}
	}
	if !p.failed() && p.match(token.HAVING) {
		q.Having = p.parseSearchCondition()
	}
	if !p.failed() && p.match(token.ORDER) {
		if p.expect(token.BY) {
			q.OrderBy = p.parseSortList()
		}
	}
	if !p.failed() && p.match(token.LIMIT) {
		q.Pagination = p.parsePagination()
	}
	if p.failed() {
		return nil
	}
	return q
}

// select_list → "*" | derived {, derived}
func (p *Parser) parseSelectList() *SelectList {
	if p.match(token.STAR) {
		return &SelectList{Star: true}
	}
	list := &SelectList{}
	for {
		col := p.parseDerivedColumn()
		if p.failed() {
			return nil
		}
		list.Columns = append(list.Columns, col)
		if !p.match(token.COMMA) {
			break
		}
		if p.check(token.STAR) {
			p.addError(ErrStarNotAllowed)
			return nil
		}
	}
	return list
}

// derived → value [[AS] alias]
func (p *Parser) parseDerivedColumn() *DerivedColumn {
	expr := p.parseValue()
	if p.failed() {
		return nil
	}
	col := &DerivedColumn{Expr: expr}
	col.Alias = p.parseOptionalAlias()
	return col
}

// parseOptionalAlias parses "[AS] ident" and returns "" when absent.
func (p *Parser) parseOptionalAlias() string {
	if p.match(token.AS) {
		tok, ok := p.expectIdent()
		if !ok {
			return ""
		}
		return tok.Literal
	}
	if p.check(token.IDENT) {
		tok := p.cur()
		p.next()
		return tok.Literal
	}
	return ""
}

func (p *Parser) parseFromClause() *FromClause {
	from := &FromClause{Table: p.parseTableCorrelation()}
	for !p.failed() {
		joinType, ok := p.parseJoinType()
		if !ok {
			break
		}
		join := &QualifiedJoin{Type: joinType, Table: p.parseTableCorrelation()}
		if p.failed() {
			return nil
		}
		if p.match(token.ON) {
			join.On = p.parseSearchCondition()
		}
		from.Joins = append(from.Joins, join)
	}
	return from
}

// parseJoinType consumes the join keywords, ending with JOIN.
func (p *Parser) parseJoinType() (JoinType, bool) {
	var jt JoinType
	switch p.cur().Type {
	case token.JOIN:
		p.next()
		return JoinPlain, true
	case token.INNER:
		jt = JoinInner
	case token.CROSS:
		jt = JoinCross
	case token.LEFT:
		jt = JoinLeft
	case token.RIGHT:
		jt = JoinRight
	case token.FULL:
		jt = JoinFull
	default:
		return 0, false
	}
	p.next()
	if (jt == JoinLeft || jt == JoinRight || jt == JoinFull) && p.match(token.OUTER) {
		jt++
	}
	if !p.expect(token.JOIN) {
		return 0, false
	}
	return jt, true
}

// table_ref → ident ["." number] [[AS] alias]
func (p *Parser) parseTableCorrelation() *TableNameCorrelation {
	tok, ok := p.expectIdent()
	if !ok {
		return nil
	}
	name := tok.Literal
	if p.check(token.DOT) && p.peek().Type == token.NUMBER {
		p.next()
		version := p.cur()
		if !isUnsignedInteger(version.Literal) {
			p.addError(fmt.Sprintf(ErrInvalidTableName, name+"."+version.Literal))
			return nil
		}
		p.next()
		name += "." + version.Literal
	}
	return &TableNameCorrelation{Name: name, Alias: p.parseOptionalAlias()}
}

func (p *Parser) parseValueList() []Expr {
	var out []Expr
	for {
		e := p.parseValue()
		if p.failed() {
			return nil
		}
		out = append(out, e)
		if !p.match(token.COMMA) {
			return out
		}
	}
}

func (p *Parser) parseSortList() []*SortSpecification {
	var out []*SortSpecification
	for {
		e := p.parseValue()
		if p.failed() {
			return nil
		}
		spec := &SortSpecification{Expr: e}
		switch {
		case p.match(token.ASC):
			spec.Direction = "ASC"
		case p.match(token.DESC):
			spec.Direction = "DESC"
		}
		out = append(out, spec)
		if !p.match(token.COMMA) {
			return out
		}
	}
}

// LIMIT n [OFFSET m] | LIMIT m, n
func (p *Parser) parsePagination() *Pagination {
	first := p.parseUnsigned()
	if p.failed() {
		return nil
	}
	if p.match(token.COMMA) {
		count := p.parseUnsigned()
		return &Pagination{Limit: count, Offset: first}
	}
	page := &Pagination{Limit: first}
	if p.match(token.OFFSET) {
		page.Offset = p.parseUnsigned()
	}
	return page
}

func (p *Parser) parseUnsigned() Expr {
	tok := p.cur()
	if tok.Type != token.NUMBER || !isUnsignedInteger(tok.Literal) {
		p.addError(ErrInvalidPagination)
		return nil
	}
	p.next()
	return &Literal{Type: LiteralNumber, Value: tok.Literal}
}

func isUnsignedInteger(s string) bool {
	return s != "" && strings.Trim(s, "0123456789") == ""
}
