package facet

import (
	"context"

	"github.com/leapstack-labs/leaptable/pkg/core"
	"github.com/leapstack-labs/leaptable/pkg/parser"
	"github.com/leapstack-labs/leaptable/pkg/sqlquery"
	"github.com/leapstack-labs/leaptable/pkg/token"
)

// buildFilter renders an active request as a parenthesized condition.
func buildFilter(cm core.ColumnModel, req Request) parser.Condition {
	col := func() parser.Expr { return &parser.ColumnReference{Name: cm.Name, Quoted: true} }
	str := func(s string) parser.Expr { return &parser.Literal{Type: parser.LiteralString, Value: s} }
	isNull := func() parser.Condition { return &parser.IsPredicate{Expr: col(), Truth: token.NULL} }

	var cond parser.Condition
	switch r := req.(type) {
	case *RangeRequest:
		switch {
		case r.Min == NullValue || r.Max == NullValue:
			cond = isNull()
		case r.Min != "" && r.Max != "":
			cond = &parser.BetweenPredicate{Expr: col(), Low: str(r.Min), High: str(r.Max)}
		case r.Min != "":
			cond = &parser.ComparisonPredicate{Left: col(), Op: token.GE, Right: str(r.Min)}
		default:
			cond = &parser.ComparisonPredicate{Left: col(), Op: token.LE, Right: str(r.Max)}
		}

	case *ValuesRequest:
		var values []parser.Expr
		hasNull := false
		for _, v := range r.Values {
			if v == NullValue {
				hasNull = true
				continue
			}
			values = append(values, str(v))
		}
		switch {
		case len(values) == 0:
			cond = isNull()
		case hasNull:
			cond = &parser.LogicalCondition{
				Op:    token.OR,
				Left:  &parser.InPredicate{Expr: col(), Values: values},
				Right: isNull(),
			}
		default:
			cond = &parser.InPredicate{Expr: col(), Values: values}
		}
	}
	return &parser.ParenCondition{Cond: cond}
}

// combinedFilter ANDs the filters of every facet except skip. It returns nil
// when no facet filters.
func combinedFilter(facets []*ValidatedFacetColumn, skip *ValidatedFacetColumn) parser.Condition {
	var out parser.Condition
	for _, f := range facets {
		if f == skip || !f.HasFilter() {
			continue
		}
		item := &parser.ParenCondition{Cond: f.filter}
		if out == nil {
			out = item
			continue
		}
		out = &parser.LogicalCondition{Op: token.AND, Left: out, Right: item}
	}
	if out == nil {
		return nil
	}
	return &parser.ParenCondition{Cond: out}
}

// appendFilter returns where AND'ed with the facet filters.
func appendFilter(where parser.Condition, facets parser.Condition) parser.Condition {
	switch {
	case facets == nil:
		return where
	case where == nil:
		return facets
	}
	return &parser.LogicalCondition{
		Op:    token.AND,
		Left:  &parser.ParenCondition{Cond: where},
		Right: facets,
	}
}

// GenerateFacetFilteredQuery returns a new query: base narrowed by every
// active facet. base is not modified.
func GenerateFacetFilteredQuery(ctx context.Context, base *sqlquery.Query, facets []*ValidatedFacetColumn) (*sqlquery.Query, error) {
	if base == nil {
		return nil, core.NewValidationError("query is required")
	}
	model := *base.Model()
	model.Where = appendFilter(model.Where, combinedFilter(facets, nil))
	return base.WithModel(ctx, &model)
}
