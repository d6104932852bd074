// Package format prints query ASTs as single-line SQL.
//
// Two styles are supported. User style renders the query language as a
// user would write it; it is used to name derived columns and to show
// queries back to users. Physical style renders translated queries for the
// index database: identifiers are generated names and aliases use MySQL
// backtick quoting.
package format

import "github.com/leapstack-labs/leaptable/pkg/parser"

// Style selects identifier quoting rules.
type Style int

// Styles.
const (
	User Style = iota
	Physical
)

// SQL formats a complete query.
func SQL(q *parser.QuerySpecification, style Style) string {
	p := newPrinter(style)
	p.formatQuery(q)
	return p.String()
}

// Expr formats a value expression.
func Expr(e parser.Expr, style Style) string {
	p := newPrinter(style)
	p.formatExpr(e)
	return p.String()
}

// Condition formats a search condition.
func Condition(c parser.Condition, style Style) string {
	p := newPrinter(style)
	p.formatCondition(c)
	return p.String()
}

// PhysicalAlias returns alias as it must be written in physical SQL.
func PhysicalAlias(alias string) string {
	if isSimpleIdentifier(alias) {
		return alias
	}
	return quote(alias, '`')
}
