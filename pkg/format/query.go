package format

import (
	"github.com/leapstack-labs/leaptable/pkg/parser"
	"github.com/leapstack-labs/leaptable/pkg/token"
)

func (p *Printer) formatQuery(q *parser.QuerySpecification) {
	p.kw(token.SELECT)
	p.space()
	if q.Distinct {
		p.kw(token.DISTINCT)
		p.space()
	}
	p.formatSelectList(q.Select)

	p.space()
	p.kw(token.FROM)
	p.space()
	p.formatFrom(q.From)

	if q.Where != nil {
		p.space()
		p.kw(token.WHERE)
		p.space()
		p.formatCondition(q.Where)
	}
	if len(q.GroupBy) > 0 {
		p.space()
		p.kw(token.GROUP, token.BY)
		p.space()
		formatList(p, q.GroupBy, p.formatExpr)
	}
	if q.Having != nil {
		p.space()
		p.kw(token.HAVING)
		p.space()
		p.formatCondition(q.Having)
	}
	if len(q.OrderBy) > 0 {
		p.space()
		p.kw(token.ORDER, token.BY)
		p.space()
		formatList(p, q.OrderBy, func(s *parser.SortSpecification) {
			p.formatExpr(s.Expr)
			if s.Direction != "" {
				p.space()
				p.write(s.Direction)
			}
		})
	}
	if q.Pagination != nil {
		if q.Pagination.Limit != nil {
			p.space()
			p.kw(token.LIMIT)
			p.space()
			p.formatExpr(q.Pagination.Limit)
		}
		if q.Pagination.Offset != nil {
			p.space()
			p.kw(token.OFFSET)
			p.space()
			p.formatExpr(q.Pagination.Offset)
		}
	}
}

func (p *Printer) formatSelectList(list *parser.SelectList) {
	if list == nil || list.Star {
		p.write("*")
		return
	}
	formatList(p, list.Columns, func(c *parser.DerivedColumn) {
		p.formatExpr(c.Expr)
		if c.Alias != "" {
			p.space()
			p.kw(token.AS)
			p.space()
			p.alias(c.Alias)
		}
	})
}

func (p *Printer) formatFrom(from *parser.FromClause) {
	if from == nil {
		return
	}
	p.formatTable(from.Table)
	for _, j := range from.Joins {
		p.space()
		p.write(j.Type.String())
		p.space()
		p.formatTable(j.Table)
		if j.On != nil {
			p.space()
			p.kw(token.ON)
			p.space()
			p.formatCondition(j.On)
		}
	}
}

func (p *Printer) formatTable(t *parser.TableNameCorrelation) {
	p.write(t.Name)
	if t.Alias != "" {
		p.space()
		p.alias(t.Alias)
	}
}
