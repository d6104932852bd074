package format

import (
	"github.com/leapstack-labs/leaptable/pkg/parser"
	"github.com/leapstack-labs/leaptable/pkg/token"
)

func (p *Printer) formatExpr(e parser.Expr) {
	if e == nil {
		return
	}

	switch expr := e.(type) {
	case *parser.Literal:
		p.formatLiteral(expr)
	case *parser.BindVariable:
		p.write(":" + expr.Name)
	case *parser.ColumnReference:
		if expr.Qualifier != "" {
			p.identifier(expr.Qualifier, false)
			p.write(".")
		}
		p.identifier(expr.Name, expr.Quoted)
	case *parser.ArithmeticExpr:
		p.formatExpr(expr.Left)
		p.space()
		p.kw(expr.Op)
		p.space()
		p.formatExpr(expr.Right)
	case *parser.UnaryExpr:
		p.kw(expr.Op)
		p.formatExpr(expr.Expr)
	case *parser.SetFunction:
		p.write(string(expr.Type))
		p.write("(")
		switch {
		case expr.Star:
			p.write("*")
		case expr.Distinct:
			p.kw(token.DISTINCT)
			p.space()
			p.formatExpr(expr.Arg)
		default:
			p.formatExpr(expr.Arg)
		}
		p.write(")")
	case *parser.FunctionCall:
		p.write(expr.Name)
		p.write("(")
		formatList(p, expr.Args, p.formatExpr)
		p.write(")")
	case *parser.ParenExpr:
		p.write("( ")
		p.formatExpr(expr.Expr)
		p.write(" )")
	}
}

func (p *Printer) formatCondition(c parser.Condition) {
	if c == nil {
		return
	}

	switch cond := c.(type) {
	case *parser.LogicalCondition:
		p.formatCondition(cond.Left)
		p.space()
		p.kw(cond.Op)
		p.space()
		p.formatCondition(cond.Right)
	case *parser.NotCondition:
		p.kw(token.NOT)
		p.space()
		p.formatCondition(cond.Cond)
	case *parser.ParenCondition:
		p.write("( ")
		p.formatCondition(cond.Cond)
		p.write(" )")
	case *parser.ComparisonPredicate:
		p.formatExpr(cond.Left)
		p.space()
		p.kw(cond.Op)
		p.space()
		p.formatExpr(cond.Right)
	case *parser.BetweenPredicate:
		p.formatExpr(cond.Expr)
		p.space()
		p.not(cond.Not)
		p.kw(token.BETWEEN)
		p.space()
		p.formatExpr(cond.Low)
		p.space()
		p.kw(token.AND)
		p.space()
		p.formatExpr(cond.High)
	case *parser.InPredicate:
		p.formatExpr(cond.Expr)
		p.space()
		p.not(cond.Not)
		p.kw(token.IN)
		p.write(" ( ")
		formatList(p, cond.Values, p.formatExpr)
		p.write(" )")
	case *parser.LikePredicate:
		p.formatExpr(cond.Expr)
		p.space()
		p.not(cond.Not)
		p.kw(token.LIKE)
		p.space()
		p.formatExpr(cond.Pattern)
		if cond.Escape != nil {
			p.space()
			p.kw(token.ESCAPE)
			p.space()
			p.formatExpr(cond.Escape)
		}
	case *parser.IsPredicate:
		p.formatExpr(cond.Expr)
		p.space()
		p.kw(token.IS)
		p.space()
		p.not(cond.Not)
		p.kw(cond.Truth)
	}
}

func (p *Printer) not(negated bool) {
	if negated {
		p.kw(token.NOT)
		p.space()
	}
}
