package facet

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/leapstack-labs/leaptable/pkg/core"
	"github.com/leapstack-labs/leaptable/pkg/parser"
	"github.com/leapstack-labs/leaptable/pkg/sqlquery"
)

// Output column aliases of facet side queries.
const (
	ValueAlias     = "value"
	FrequencyAlias = "frequency"
	MinAlias       = "minimum"
	MaxAlias       = "maximum"
)

// Transformer is the side query of one facet and the reader of its rows.
type Transformer interface {
	// ColumnName is the facet column the transformer reports on.
	ColumnName() string

	// Query is the translated side query.
	Query() *sqlquery.Query

	// Transform reads the rows of Query into a facet result.
	Transform(rows *core.Rows) (*Result, error)
}

// Result is the rendered state of one facet.
type Result struct {
	ColumnName string         `json:"columnName"`
	FacetType  core.FacetType `json:"facetType"`

	// enumeration
	Values []ValueCount `json:"facetValues,omitempty"`

	// range
	ColumnMin   string `json:"columnMin,omitempty"`
	ColumnMax   string `json:"columnMax,omitempty"`
	SelectedMin string `json:"selectedMin,omitempty"`
	SelectedMax string `json:"selectedMax,omitempty"`
}

// ValueCount is one value of an enumeration facet.
type ValueCount struct {
	Value    string `json:"value"`
	Count    int64  `json:"count"`
	Selected bool   `json:"isSelected"`
}

// GenerateFacetQueryTransformers builds one side query per facet. Each side
// query applies the base query's WHERE and the filters of every other facet,
// never its own. maxValues bounds value counts; zero means DefaultMaxValues.
func GenerateFacetQueryTransformers(ctx context.Context, base *sqlquery.Query, facets []*ValidatedFacetColumn, maxValues int) ([]Transformer, error) {
	if _, err := base.SingleTableID(); err != nil {
		return nil, err
	}
	if maxValues <= 0 {
		maxValues = DefaultMaxValues
	}

	out := make([]Transformer, 0, len(facets))
	for _, f := range facets {
		where := appendFilter(base.Model().Where, combinedFilter(facets, f))

		var (
			t   Transformer
			err error
		)
		switch f.FacetType() {
		case core.FacetTypeRange:
			t, err = newRangeTransformer(ctx, base, f, where)
		case core.FacetTypeEnumeration:
			t, err = newValueCountsTransformer(ctx, base, f, where, maxValues)
		default:
			err = fmt.Errorf("column %q has no facet type", f.ColumnName())
		}
		if err != nil {
			return nil, fmt.Errorf("failed to build facet query for %s: %w", f.ColumnName(), err)
		}
		out = append(out, t)
	}
	return out, nil
}

func facetColumn(f *ValidatedFacetColumn) *parser.ColumnReference {
	return &parser.ColumnReference{Name: f.ColumnName(), Quoted: true}
}

// ---------- Value counts ----------

type valueCountsTransformer struct {
	facet *ValidatedFacetColumn
	query *sqlquery.Query
}

func newValueCountsTransformer(ctx context.Context, base *sqlquery.Query, f *ValidatedFacetColumn, where parser.Condition, maxValues int) (*valueCountsTransformer, error) {
	countStar := func() parser.Expr { return &parser.SetFunction{Type: parser.SetCount, Star: true} }
	model := &parser.QuerySpecification{
		Select: &parser.SelectList{Columns: []*parser.DerivedColumn{
			{Expr: facetColumn(f), Alias: ValueAlias},
			{Expr: countStar(), Alias: FrequencyAlias},
		}},
		From:    base.Model().From,
		Where:   where,
		GroupBy: []parser.Expr{facetColumn(f)},
		OrderBy: []*parser.SortSpecification{
			{Expr: countStar(), Direction: "DESC"},
			{Expr: facetColumn(f), Direction: "ASC"},
		},
		Pagination: &parser.Pagination{
			Limit: &parser.Literal{Type: parser.LiteralNumber, Value: strconv.Itoa(maxValues)},
		},
	}
	q, err := base.WithModel(ctx, model)
	if err != nil {
		return nil, err
	}
	return &valueCountsTransformer{facet: f, query: q}, nil
}

func (t *valueCountsTransformer) ColumnName() string     { return t.facet.ColumnName() }
func (t *valueCountsTransformer) Query() *sqlquery.Query { return t.query }

func (t *valueCountsTransformer) Transform(rows *core.Rows) (*Result, error) {
	var selected []string
	if req, ok := t.facet.Request.(*ValuesRequest); ok {
		selected = req.Values
	}

	res := &Result{ColumnName: t.facet.ColumnName(), FacetType: core.FacetTypeEnumeration}
	for rows.Next() {
		var (
			value *string
			count int64
		)
		if err := rows.Scan(&value, &count); err != nil {
			return nil, fmt.Errorf("failed to scan value count: %w", err)
		}
		v := NullValue
		if value != nil {
			v = *value
		}
		res.Values = append(res.Values, ValueCount{Value: v, Count: count, Selected: slices.Contains(selected, v)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read value counts: %w", err)
	}
	return res, nil
}

// ---------- Range ----------

type rangeTransformer struct {
	facet *ValidatedFacetColumn
	query *sqlquery.Query
}

func newRangeTransformer(ctx context.Context, base *sqlquery.Query, f *ValidatedFacetColumn, where parser.Condition) (*rangeTransformer, error) {
	model := &parser.QuerySpecification{
		Select: &parser.SelectList{Columns: []*parser.DerivedColumn{
			{Expr: &parser.SetFunction{Type: parser.SetMin, Arg: facetColumn(f)}, Alias: MinAlias},
			{Expr: &parser.SetFunction{Type: parser.SetMax, Arg: facetColumn(f)}, Alias: MaxAlias},
		}},
		From:  base.Model().From,
		Where: where,
	}
	q, err := base.WithModel(ctx, model)
	if err != nil {
		return nil, err
	}
	return &rangeTransformer{facet: f, query: q}, nil
}

func (t *rangeTransformer) ColumnName() string     { return t.facet.ColumnName() }
func (t *rangeTransformer) Query() *sqlquery.Query { return t.query }

func (t *rangeTransformer) Transform(rows *core.Rows) (*Result, error) {
	res := &Result{ColumnName: t.facet.ColumnName(), FacetType: core.FacetTypeRange}
	if req, ok := t.facet.Request.(*RangeRequest); ok {
		res.SelectedMin, res.SelectedMax = req.Min, req.Max
	}
	if rows.Next() {
		var lo, hi *string
		if err := rows.Scan(&lo, &hi); err != nil {
			return nil, fmt.Errorf("failed to scan range: %w", err)
		}
		if lo != nil {
			res.ColumnMin = *lo
		}
		if hi != nil {
			res.ColumnMax = *hi
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read range: %w", err)
	}
	return res, nil
}
