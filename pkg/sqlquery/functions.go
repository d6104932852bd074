package sqlquery

import (
	"github.com/leapstack-labs/leaptable/pkg/core"
	"github.com/leapstack-labs/leaptable/pkg/format"
	"github.com/leapstack-labs/leaptable/pkg/parser"
	"github.com/leapstack-labs/leaptable/pkg/token"
)

// functionResult describes the result type of a scalar function. An empty
// type means the function returns the type of its first argument.
type functionResult struct {
	returns core.ColumnType
}

var functions = map[string]functionResult{
	"CONCAT":         {core.ColumnTypeString},
	"UPPER":          {core.ColumnTypeString},
	"LOWER":          {core.ColumnTypeString},
	"TRIM":           {core.ColumnTypeString},
	"LTRIM":          {core.ColumnTypeString},
	"RTRIM":          {core.ColumnTypeString},
	"SUBSTRING":      {core.ColumnTypeString},
	"REPLACE":        {core.ColumnTypeString},
	"LENGTH":         {core.ColumnTypeInteger},
	"CHAR_LENGTH":    {core.ColumnTypeInteger},
	"UNIX_TIMESTAMP": {core.ColumnTypeInteger},
	"ROUND":          {},
	"ABS":            {},
	"CEIL":           {},
	"FLOOR":          {},
	"COALESCE":       {},
	"IFNULL":         {},
}

func lookupFunction(name string) (functionResult, bool) {
	f, ok := functions[name]
	return f, ok
}

// schemaOfSelect derives the output columns of the user's select list.
// Column references keep their model; everything else gets a derived model
// named after its alias or its SQL text.
func (t *translator) schemaOfSelect(q *parser.QuerySpecification) ([]core.ColumnModel, error) {
	if q.Select.Star {
		var out []core.ColumnModel
		for _, c := range t.correlations {
			out = append(out, c.schema...)
		}
		return out, nil
	}

	out := make([]core.ColumnModel, 0, len(q.Select.Columns))
	for _, dc := range q.Select.Columns {
		if ref, ok := dc.Expr.(*parser.ColumnReference); ok {
			_, col, found, err := t.resolve(ref)
			if err != nil {
				return nil, err
			}
			if found {
				if dc.Alias != "" {
					col.Name = dc.Alias
					col.ID = ""
				}
				out = append(out, col)
				continue
			}
		}
		name := dc.Alias
		if name == "" {
			name = format.Expr(dc.Expr, format.User)
		}
		ct := t.typeOf(dc.Expr)
		col := core.ColumnModel{Name: name, ColumnType: ct}
		if ct == core.ColumnTypeString {
			col.MaximumSize = core.DefaultMaxStringSize
		}
		out = append(out, col)
	}
	return out, nil
}

// typeOf infers the logical type of a user-level expression.
func (t *translator) typeOf(e parser.Expr) core.ColumnType {
	switch v := e.(type) {
	case *parser.ColumnReference:
		if _, col, found, err := t.resolve(v); err == nil && found {
			return col.ColumnType
		}
		return core.ColumnTypeString
	case *parser.Literal:
		switch v.Type {
		case parser.LiteralNumber:
			if _, ok := literalValue(v.Value, v.Type).(int64); ok {
				return core.ColumnTypeInteger
			}
			return core.ColumnTypeDouble
		case parser.LiteralBoolean:
			return core.ColumnTypeBoolean
		}
		return core.ColumnTypeString
	case *parser.ParenExpr:
		return t.typeOf(v.Expr)
	case *parser.UnaryExpr:
		return t.typeOf(v.Expr)
	case *parser.ArithmeticExpr:
		if v.Op == token.SLASH {
			return core.ColumnTypeDouble
		}
		if t.typeOf(v.Left) == core.ColumnTypeDouble || t.typeOf(v.Right) == core.ColumnTypeDouble {
			return core.ColumnTypeDouble
		}
		return core.ColumnTypeInteger
	case *parser.SetFunction:
		switch v.Type {
		case parser.SetCount:
			return core.ColumnTypeInteger
		case parser.SetAvg:
			return core.ColumnTypeDouble
		case parser.SetSum:
			if t.typeOf(v.Arg).IsIntegral() {
				return core.ColumnTypeInteger
			}
			return core.ColumnTypeDouble
		}
		return t.typeOf(v.Arg)
	case *parser.FunctionCall:
		f, _ := lookupFunction(v.Name)
		if f.returns != "" {
			return f.returns
		}
		if len(v.Args) > 0 {
			return t.typeOf(v.Args[0])
		}
	}
	return core.ColumnTypeString
}
