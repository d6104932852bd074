package format

import (
	"testing"

	"github.com/leapstack-labs/leaptable/pkg/parser"
	"github.com/leapstack-labs/leaptable/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_UserStyle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "star",
			input:    "select * from syn123",
			expected: "SELECT * FROM syn123",
		},
		{
			name:     "quoted and aliased",
			input:    `select "has space", foo as "my foo", count(distinct bar) from syn123.4 t`,
			expected: `SELECT "has space", foo AS "my foo", COUNT(DISTINCT bar) FROM syn123.4 t`,
		},
		{
			name:     "predicates",
			input:    "select a from syn1 where a not between 1 and 2 or b in ('x','y') and c is not null",
			expected: "SELECT a FROM syn1 WHERE a NOT BETWEEN 1 AND 2 OR b IN ( 'x', 'y' ) AND c IS NOT NULL",
		},
		{
			name:     "groups and paging",
			input:    "select a, count(*) from syn1 where (a > 1) group by a having count(*) > 2 order by a desc limit 10 offset 5",
			expected: "SELECT a, COUNT(*) FROM syn1 WHERE ( a > 1 ) GROUP BY a HAVING COUNT(*) > 2 ORDER BY a DESC LIMIT 10 OFFSET 5",
		},
		{
			name:     "join",
			input:    "select x.a from syn1 x left outer join syn2 y on x.a = y.b",
			expected: "SELECT x.a FROM syn1 x LEFT OUTER JOIN syn2 y ON x.a = y.b",
		},
		{
			name:     "string escape and arithmetic",
			input:    "select (a + 1) * -2 from syn1 where b like 'it''s%' escape '!'",
			expected: "SELECT ( a + 1 ) * -2 FROM syn1 WHERE b LIKE 'it''s%' ESCAPE '!'",
		},
		{
			name:     "keyword-like column is quoted",
			input:    `select "select" from syn1`,
			expected: `SELECT "select" FROM syn1`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := parser.ParseQuery(tt.input)
			require.NoError(t, err)
			got := SQL(q, User)
			assert.Equal(t, tt.expected, got)

			// formatted output parses back to the same text
			again, err := parser.ParseQuery(got)
			require.NoError(t, err)
			assert.Equal(t, got, SQL(again, User))
		})
	}
}

func TestFormat_PhysicalStyle(t *testing.T) {
	q := &parser.QuerySpecification{
		Select: &parser.SelectList{Columns: []*parser.DerivedColumn{
			{Expr: &parser.ColumnReference{Name: "_C1_"}},
			{Expr: &parser.SetFunction{Type: parser.SetCount, Star: true}, Alias: "row count"},
		}},
		From: &parser.FromClause{Table: &parser.TableNameCorrelation{Name: "T123"}},
		Where: &parser.ComparisonPredicate{
			Left:  &parser.ColumnReference{Name: "_C1_"},
			Op:    token.NE,
			Right: &parser.BindVariable{Name: "b0"},
		},
		GroupBy: []parser.Expr{&parser.ColumnReference{Name: "_C1_"}},
	}
	assert.Equal(t, "SELECT _C1_, COUNT(*) AS `row count` FROM T123 WHERE _C1_ <> :b0 GROUP BY _C1_", SQL(q, Physical))
}

func TestExprAndCondition(t *testing.T) {
	assert.Equal(t, "COUNT(*)", Expr(&parser.SetFunction{Type: parser.SetCount, Star: true}, User))
	assert.Equal(t, `"a b"`, Expr(&parser.ColumnReference{Name: "a b"}, User))

	cond, err := parser.ParseSearchCondition("NOT (a = TRUE)")
	require.NoError(t, err)
	assert.Equal(t, "NOT ( a = TRUE )", Condition(cond, User))
}
