package sqlquery

import (
	"context"
	"fmt"
	"slices"

	"github.com/leapstack-labs/leaptable/pkg/core"
	"github.com/leapstack-labs/leaptable/pkg/format"
	"github.com/leapstack-labs/leaptable/pkg/parser"
	"github.com/leapstack-labs/leaptable/pkg/token"
)

// correlation is one resolved table reference.
type correlation struct {
	id        core.IDAndVersion
	name      string // as written by the user
	alias     string // user alias
	physAlias string // _A<i> when the query joins
	schema    []core.ColumnModel
}

// matches reports whether a column qualifier refers to this correlation.
func (c *correlation) matches(qualifier string) bool {
	if c.alias != "" {
		return qualifier == c.alias
	}
	if qualifier == c.name {
		return true
	}
	id, err := core.ParseIDAndVersion(qualifier)
	return err == nil && id == c.id
}

// translator rewrites one user-level model into its physical form. Values are
// bound in the order the rewrite visits them, which follows the source.
type translator struct {
	correlations []*correlation
	joined       bool
	params       map[string]any
	next         int
	rowIDs       bool

	allowAggregates bool
	selectAliases   []string
	// aliasesVisible lets bare references fall back to select aliases.
	aliasesVisible bool
}

func newTranslator() *translator {
	return &translator{params: map[string]any{}}
}

type schemaLookup func(ctx context.Context, id core.IDAndVersion) ([]core.ColumnModel, error)

func (t *translator) addCorrelations(ctx context.Context, from *parser.FromClause, lookup schemaLookup) error {
	refs := []*parser.TableNameCorrelation{from.Table}
	for _, j := range from.Joins {
		switch j.Type {
		case parser.JoinFull, parser.JoinFullOuter, parser.JoinCross:
			return core.NewValidationError("unsupported join type: %s", j.Type)
		}
		if j.On == nil {
			return core.NewValidationError("%s requires an ON condition", j.Type)
		}
		refs = append(refs, j.Table)
	}
	t.joined = len(refs) > 1

	seen := map[string]bool{}
	for i, ref := range refs {
		id, err := core.ParseIDAndVersion(ref.Name)
		if err != nil {
			return core.NewValidationError("invalid table name %q", ref.Name)
		}
		key := ref.Alias
		if key == "" {
			key = id.String()
		}
		if seen[key] {
			return core.NewValidationError("table reference %q is ambiguous; give each reference a distinct alias", key)
		}
		seen[key] = true

		schema, err := lookup(ctx, id)
		if err != nil {
			return err
		}
		c := &correlation{id: id, name: ref.Name, alias: ref.Alias, schema: schema}
		if t.joined {
			c.physAlias = fmt.Sprintf("_A%d", i)
		}
		t.correlations = append(t.correlations, c)
	}
	return nil
}

func (t *translator) tableIDs() []core.IDAndVersion {
	var out []core.IDAndVersion
	for _, c := range t.correlations {
		if !slices.Contains(out, c.id) {
			out = append(out, c.id)
		}
	}
	return out
}

func (t *translator) schemas() map[core.IDAndVersion][]core.ColumnModel {
	out := make(map[core.IDAndVersion][]core.ColumnModel, len(t.correlations))
	for _, c := range t.correlations {
		out[c.id] = c.schema
	}
	return out
}

// ---------- Query ----------

func (t *translator) translateQuery(q *parser.QuerySpecification, wantRowIDs bool) (*parser.QuerySpecification, error) {
	out := &parser.QuerySpecification{Distinct: q.Distinct}
	t.allowAggregates = true

	sel, err := t.translateSelectList(q.Select)
	if err != nil {
		return nil, err
	}
	if wantRowIDs && !t.joined && !q.IsAggregate() {
		sel.Columns = append(sel.Columns,
			&parser.DerivedColumn{Expr: &parser.ColumnReference{Name: core.RowIDColumn}},
			&parser.DerivedColumn{Expr: &parser.ColumnReference{Name: core.RowVersionColumn}},
		)
		t.rowIDs = true
	}
	out.Select = sel

	if out.From, err = t.translateFrom(q.From); err != nil {
		return nil, err
	}

	if q.Where != nil {
		t.allowAggregates = false
		if out.Where, err = t.translateCondition(q.Where); err != nil {
			return nil, err
		}
		t.allowAggregates = true
	}

	for _, g := range q.GroupBy {
		e, err := t.translateOrderingExpr(g)
		if err != nil {
			return nil, err
		}
		out.GroupBy = append(out.GroupBy, e)
	}

	if q.Having != nil {
		t.aliasesVisible = true
		if out.Having, err = t.translateCondition(q.Having); err != nil {
			return nil, err
		}
		t.aliasesVisible = false
	}

	for _, s := range q.OrderBy {
		e, err := t.translateOrderingExpr(s.Expr)
		if err != nil {
			return nil, err
		}
		out.OrderBy = append(out.OrderBy, &parser.SortSpecification{Expr: e, Direction: s.Direction})
	}

	if q.Pagination != nil {
		out.Pagination = &parser.Pagination{}
		if q.Pagination.Limit != nil {
			if out.Pagination.Limit, err = t.translateExpr(q.Pagination.Limit, nil); err != nil {
				return nil, err
			}
		}
		if q.Pagination.Offset != nil {
			if out.Pagination.Offset, err = t.translateExpr(q.Pagination.Offset, nil); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (t *translator) translateSelectList(list *parser.SelectList) (*parser.SelectList, error) {
	out := &parser.SelectList{}
	if list.Star {
		for _, c := range t.correlations {
			for _, col := range c.schema {
				out.Columns = append(out.Columns, &parser.DerivedColumn{Expr: t.columnRef(c, col)})
			}
		}
		return out, nil
	}
	for _, dc := range list.Columns {
		e, err := t.translateExpr(dc.Expr, nil)
		if err != nil {
			return nil, err
		}
		out.Columns = append(out.Columns, &parser.DerivedColumn{Expr: e, Alias: dc.Alias})
		if dc.Alias != "" {
			t.selectAliases = append(t.selectAliases, dc.Alias)
		}
	}
	return out, nil
}

func (t *translator) translateFrom(from *parser.FromClause) (*parser.FromClause, error) {
	out := &parser.FromClause{Table: t.physicalTable(t.correlations[0])}
	for i, j := range from.Joins {
		t.allowAggregates = false
		on, err := t.translateCondition(j.On)
		t.allowAggregates = true
		if err != nil {
			return nil, err
		}
		out.Joins = append(out.Joins, &parser.QualifiedJoin{
			Type:  j.Type,
			Table: t.physicalTable(t.correlations[i+1]),
			On:    on,
		})
	}
	return out, nil
}

func (t *translator) physicalTable(c *correlation) *parser.TableNameCorrelation {
	return &parser.TableNameCorrelation{Name: core.TableName(c.id), Alias: c.physAlias}
}

func (t *translator) columnRef(c *correlation, col core.ColumnModel) *parser.ColumnReference {
	return &parser.ColumnReference{Qualifier: c.physAlias, Name: core.ColumnName(col.ID)}
}

// ---------- Column resolution ----------

// resolve finds the column a reference names. found is false when no table
// has the column; an unknown qualifier or an ambiguous name is an error.
func (t *translator) resolve(ref *parser.ColumnReference) (c *correlation, col core.ColumnModel, found bool, err error) {
	candidates := t.correlations
	if ref.Qualifier != "" {
		candidates = nil
		for _, corr := range t.correlations {
			if corr.matches(ref.Qualifier) {
				candidates = append(candidates, corr)
			}
		}
		if len(candidates) == 0 {
			return nil, core.ColumnModel{}, false, core.NewValidationError("unknown table or alias %q", ref.Qualifier)
		}
	}

	for _, corr := range candidates {
		cm, ok := core.FindColumn(corr.schema, ref.Name)
		if !ok {
			continue
		}
		if found {
			return nil, core.ColumnModel{}, false, core.NewValidationError("column reference %q is ambiguous", ref.Name)
		}
		c, col, found = corr, cm, true
	}
	return c, col, found, nil
}

// columnHint returns the column an expression names, if it is a resolvable
// column reference.
func (t *translator) columnHint(e parser.Expr) *core.ColumnModel {
	if p, ok := e.(*parser.ParenExpr); ok {
		return t.columnHint(p.Expr)
	}
	ref, ok := e.(*parser.ColumnReference)
	if !ok {
		return nil
	}
	_, col, found, err := t.resolve(ref)
	if err != nil || !found {
		return nil
	}
	return &col
}

// ---------- Expressions ----------

// translateExpr rewrites a value expression in which every column reference
// must resolve. Literals are bound, coerced to hint when given.
func (t *translator) translateExpr(e parser.Expr, hint *core.ColumnModel) (parser.Expr, error) {
	switch v := e.(type) {
	case *parser.ColumnReference:
		c, col, found, err := t.resolve(v)
		if err != nil {
			return nil, err
		}
		if !found {
			if alias := t.aliasRef(v); alias != nil {
				return alias, nil
			}
			return nil, core.NewValidationError("column does not exist: %s", v.Name)
		}
		return t.columnRef(c, col), nil

	case *parser.Literal:
		return t.bindLiteral(v, hint), nil

	case *parser.BindVariable:
		return v, nil

	case *parser.UnaryExpr:
		if lit, ok := v.Expr.(*parser.Literal); ok && lit.Type == parser.LiteralNumber {
			value := lit.Value
			if v.Op == token.MINUS {
				value = "-" + value
			}
			return t.bind(coerce(value, parser.LiteralNumber, hint)), nil
		}
		inner, err := t.translateExpr(v.Expr, hint)
		if err != nil {
			return nil, err
		}
		return &parser.UnaryExpr{Op: v.Op, Expr: inner}, nil

	case *parser.ArithmeticExpr:
		left, err := t.translateExpr(v.Left, nil)
		if err != nil {
			return nil, err
		}
		right, err := t.translateExpr(v.Right, nil)
		if err != nil {
			return nil, err
		}
		return &parser.ArithmeticExpr{Op: v.Op, Left: left, Right: right}, nil

	case *parser.SetFunction:
		if !t.allowAggregates {
			return nil, core.NewValidationError("aggregate function %s is not allowed here", v.Type)
		}
		out := &parser.SetFunction{Type: v.Type, Distinct: v.Distinct, Star: v.Star}
		if v.Arg != nil {
			arg, err := t.translateExpr(v.Arg, nil)
			if err != nil {
				return nil, err
			}
			out.Arg = arg
		}
		return out, nil

	case *parser.FunctionCall:
		if _, ok := lookupFunction(v.Name); !ok {
			return nil, core.NewValidationError("unsupported function: %s", v.Name)
		}
		out := &parser.FunctionCall{Name: v.Name}
		for _, a := range v.Args {
			arg, err := t.translateExpr(a, nil)
			if err != nil {
				return nil, err
			}
			out.Args = append(out.Args, arg)
		}
		return out, nil

	case *parser.ParenExpr:
		inner, err := t.translateExpr(v.Expr, hint)
		if err != nil {
			return nil, err
		}
		return &parser.ParenExpr{Expr: inner}, nil
	}
	return nil, fmt.Errorf("unexpected expression node %T", e)
}

// translateValue rewrites the value side of a predicate. An unqualified
// identifier that names no column is a value, not an error.
func (t *translator) translateValue(e parser.Expr, hint *core.ColumnModel) (parser.Expr, error) {
	if ref, ok := e.(*parser.ColumnReference); ok && ref.Qualifier == "" {
		c, col, found, err := t.resolve(ref)
		if err != nil {
			return nil, err
		}
		if !found {
			if alias := t.aliasRef(ref); alias != nil {
				return alias, nil
			}
			return t.bind(coerce(ref.Name, parser.LiteralString, hint)), nil
		}
		return t.columnRef(c, col), nil
	}
	return t.translateExpr(e, hint)
}

// aliasRef returns the physical reference to a select alias, or nil when
// aliases are not visible or ref names none.
func (t *translator) aliasRef(ref *parser.ColumnReference) parser.Expr {
	if !t.aliasesVisible || ref.Qualifier != "" || !slices.Contains(t.selectAliases, ref.Name) {
		return nil
	}
	return &parser.ColumnReference{Name: format.PhysicalAlias(ref.Name)}
}

// translateOrderingExpr handles GROUP BY and ORDER BY items, which may also
// name a select alias.
func (t *translator) translateOrderingExpr(e parser.Expr) (parser.Expr, error) {
	if ref, ok := e.(*parser.ColumnReference); ok && ref.Qualifier == "" {
		_, _, found, err := t.resolve(ref)
		if err != nil {
			return nil, err
		}
		if !found && slices.Contains(t.selectAliases, ref.Name) {
			return &parser.ColumnReference{Name: format.PhysicalAlias(ref.Name)}, nil
		}
	}
	return t.translateExpr(e, nil)
}

func (t *translator) bindLiteral(lit *parser.Literal, hint *core.ColumnModel) parser.Expr {
	if lit.Type == parser.LiteralNull {
		return &parser.Literal{Type: parser.LiteralNull, Value: "NULL"}
	}
	return t.bind(coerce(lit.Value, lit.Type, hint))
}

func (t *translator) bind(value any) *parser.BindVariable {
	name := fmt.Sprintf("b%d", t.next)
	t.next++
	t.params[name] = value
	return &parser.BindVariable{Name: name}
}

// ---------- Conditions ----------

func (t *translator) translateCondition(c parser.Condition) (parser.Condition, error) {
	switch v := c.(type) {
	case *parser.LogicalCondition:
		left, err := t.translateCondition(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := t.translateCondition(v.Right)
		if err != nil {
			return nil, err
		}
		return &parser.LogicalCondition{Op: v.Op, Left: left, Right: right}, nil

	case *parser.NotCondition:
		inner, err := t.translateCondition(v.Cond)
		if err != nil {
			return nil, err
		}
		return &parser.NotCondition{Cond: inner}, nil

	case *parser.ParenCondition:
		inner, err := t.translateCondition(v.Cond)
		if err != nil {
			return nil, err
		}
		return &parser.ParenCondition{Cond: inner}, nil

	case *parser.ComparisonPredicate:
		hint := t.columnHint(v.Left)
		if hint == nil {
			hint = t.columnHint(v.Right)
		}
		left, err := t.translateExpr(v.Left, hint)
		if err != nil {
			return nil, err
		}
		right, err := t.translateValue(v.Right, hint)
		if err != nil {
			return nil, err
		}
		return &parser.ComparisonPredicate{Left: left, Op: v.Op, Right: right}, nil

	case *parser.BetweenPredicate:
		hint := t.columnHint(v.Expr)
		expr, err := t.translateExpr(v.Expr, hint)
		if err != nil {
			return nil, err
		}
		low, err := t.translateValue(v.Low, hint)
		if err != nil {
			return nil, err
		}
		high, err := t.translateValue(v.High, hint)
		if err != nil {
			return nil, err
		}
		return &parser.BetweenPredicate{Expr: expr, Not: v.Not, Low: low, High: high}, nil

	case *parser.InPredicate:
		hint := t.columnHint(v.Expr)
		expr, err := t.translateExpr(v.Expr, hint)
		if err != nil {
			return nil, err
		}
		out := &parser.InPredicate{Expr: expr, Not: v.Not}
		for _, val := range v.Values {
			tv, err := t.translateValue(val, hint)
			if err != nil {
				return nil, err
			}
			out.Values = append(out.Values, tv)
		}
		return out, nil

	case *parser.LikePredicate:
		hint := t.columnHint(v.Expr)
		expr, err := t.translateExpr(v.Expr, hint)
		if err != nil {
			return nil, err
		}
		pattern, err := t.translateValue(v.Pattern, hint)
		if err != nil {
			return nil, err
		}
		out := &parser.LikePredicate{Expr: expr, Not: v.Not, Pattern: pattern}
		if v.Escape != nil {
			if out.Escape, err = t.translateValue(v.Escape, nil); err != nil {
				return nil, err
			}
		}
		return out, nil

	case *parser.IsPredicate:
		expr, err := t.translateExpr(v.Expr, nil)
		if err != nil {
			return nil, err
		}
		return &parser.IsPredicate{Expr: expr, Not: v.Not, Truth: v.Truth}, nil
	}
	return nil, fmt.Errorf("unexpected condition node %T", c)
}
