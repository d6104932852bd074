package facet

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaptable/internal/testutil"
	"github.com/leapstack-labs/leaptable/pkg/core"
	"github.com/leapstack-labs/leaptable/pkg/sqlquery"
)

var (
	facetColumnRange = core.ColumnModel{ID: "890", Name: "asdf", ColumnType: core.ColumnTypeInteger, FacetType: core.FacetTypeRange}
	facetColumnEnum  = core.ColumnModel{ID: "098", Name: "foo", ColumnType: core.ColumnTypeString, MaximumSize: 50, FacetType: core.FacetTypeEnumeration}
	plainColumn      = core.ColumnModel{ID: "1", Name: "plain", ColumnType: core.ColumnTypeString, MaximumSize: 50}
)

func testSchema() []core.ColumnModel {
	return []core.ColumnModel{facetColumnRange, facetColumnEnum, plainColumn}
}

func baseQuery(t *testing.T) *sqlquery.Query {
	t.Helper()
	provider := testutil.NewSchemaProvider().WithTable(core.NewID(123), facetColumnRange, facetColumnEnum)
	q, err := sqlquery.Translate(context.Background(),
		`select "asdf", foo from syn123 where "asdf" <> ayy and "asdf" < 'taco bell'`, provider, false)
	require.NoError(t, err)
	require.Equal(t, "SELECT _C890_, _C098_, ROW_ID, ROW_VERSION FROM T123 WHERE _C890_ <> :b0 AND _C890_ < :b1", q.OutputSQL())
	return q
}

func TestCreateValidatedFacetsList(t *testing.T) {
	t.Run("schema is required", func(t *testing.T) {
		_, err := CreateValidatedFacetsList(nil, nil, true)
		require.Error(t, err)
	})

	t.Run("duplicate column names", func(t *testing.T) {
		_, err := CreateValidatedFacetsList([]Request{
			&RangeRequest{ColumnName: "asdf", Min: "1"},
			&RangeRequest{ColumnName: "asdf", Max: "2"},
		}, testSchema(), false)
		require.Error(t, err)
		assert.True(t, core.IsValidation(err))
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("column not eligible", func(t *testing.T) {
		_, err := CreateValidatedFacetsList([]Request{
			&ValuesRequest{ColumnName: "plain", Values: []string{"x"}},
		}, testSchema(), false)
		require.Error(t, err)
		assert.True(t, core.IsValidation(err))
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := CreateValidatedFacetsList([]Request{
			&ValuesRequest{ColumnName: "nope", Values: []string{"x"}},
		}, testSchema(), false)
		assert.True(t, core.IsValidation(err))
	})

	t.Run("request type must match facet type", func(t *testing.T) {
		_, err := CreateValidatedFacetsList([]Request{
			&ValuesRequest{ColumnName: "asdf", Values: []string{"1"}},
		}, testSchema(), false)
		assert.True(t, core.IsValidation(err))
	})

	t.Run("return all facets", func(t *testing.T) {
		facets, err := CreateValidatedFacetsList([]Request{
			&ValuesRequest{ColumnName: "foo", Values: []string{"a"}},
		}, testSchema(), true)
		require.NoError(t, err)
		require.Len(t, facets, 2)
		assert.Equal(t, "asdf", facets[0].ColumnName())
		assert.False(t, facets[0].HasFilter())
		assert.Equal(t, "foo", facets[1].ColumnName())
		assert.True(t, facets[1].HasFilter())
	})

	t.Run("only active filters", func(t *testing.T) {
		facets, err := CreateValidatedFacetsList([]Request{
			&ValuesRequest{ColumnName: "foo"},
			&RangeRequest{ColumnName: "asdf", Max: "10"},
		}, testSchema(), false)
		require.NoError(t, err)
		require.Len(t, facets, 1)
		assert.Equal(t, "asdf", facets[0].ColumnName())
	})
}

func TestGenerateFacetFilteredQuery(t *testing.T) {
	ctx := context.Background()
	base := baseQuery(t)

	facets, err := CreateValidatedFacetsList([]Request{
		&RangeRequest{ColumnName: "asdf", Min: "23", Max: "56"},
	}, testSchema(), false)
	require.NoError(t, err)

	filtered, err := GenerateFacetFilteredQuery(ctx, base, facets)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT _C890_, _C098_, ROW_ID, ROW_VERSION FROM T123 WHERE ( _C890_ <> :b0 AND _C890_ < :b1 ) AND ( ( ( _C890_ BETWEEN :b2 AND :b3 ) ) )",
		filtered.OutputSQL())
	params := filtered.Parameters()
	assert.Equal(t, "ayy", params["b0"])
	assert.Equal(t, "taco bell", params["b1"])
	assert.Equal(t, int64(23), params["b2"])
	assert.Equal(t, int64(56), params["b3"])

	// base is untouched
	assert.Equal(t, "SELECT _C890_, _C098_, ROW_ID, ROW_VERSION FROM T123 WHERE _C890_ <> :b0 AND _C890_ < :b1", base.OutputSQL())
	assert.Len(t, base.Parameters(), 2)
}

func TestGenerateFacetFilteredQuery_Shapes(t *testing.T) {
	tests := []struct {
		name     string
		request  Request
		expected string
	}{
		{
			name:     "min only",
			request:  &RangeRequest{ColumnName: "asdf", Min: "5"},
			expected: "( ( ( _C890_ >= :b2 ) ) )",
		},
		{
			name:     "max only",
			request:  &RangeRequest{ColumnName: "asdf", Max: "5"},
			expected: "( ( ( _C890_ <= :b2 ) ) )",
		},
		{
			name:     "values",
			request:  &ValuesRequest{ColumnName: "foo", Values: []string{"a", "b"}},
			expected: "( ( ( _C098_ IN ( :b2, :b3 ) ) ) )",
		},
		{
			name:     "values with null",
			request:  &ValuesRequest{ColumnName: "foo", Values: []string{"a", NullValue}},
			expected: "( ( ( _C098_ IN ( :b2 ) OR _C098_ IS NULL ) ) )",
		},
		{
			name:     "null only",
			request:  &ValuesRequest{ColumnName: "foo", Values: []string{NullValue}},
			expected: "( ( ( _C098_ IS NULL ) ) )",
		},
	}

	prefix := "SELECT _C890_, _C098_, ROW_ID, ROW_VERSION FROM T123 WHERE ( _C890_ <> :b0 AND _C890_ < :b1 ) AND "
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facets, err := CreateValidatedFacetsList([]Request{tt.request}, testSchema(), false)
			require.NoError(t, err)
			filtered, err := GenerateFacetFilteredQuery(context.Background(), baseQuery(t), facets)
			require.NoError(t, err)
			assert.Equal(t, prefix+tt.expected, filtered.OutputSQL())
		})
	}
}

func TestGenerateFacetFilteredQuery_NoFilters(t *testing.T) {
	base := baseQuery(t)
	facets, err := CreateValidatedFacetsList(nil, testSchema(), true)
	require.NoError(t, err)

	filtered, err := GenerateFacetFilteredQuery(context.Background(), base, facets)
	require.NoError(t, err)
	assert.NotSame(t, base, filtered)
	assert.Equal(t, base.OutputSQL(), filtered.OutputSQL())
	assert.Equal(t, base.Parameters(), filtered.Parameters())

	_, err = GenerateFacetFilteredQuery(context.Background(), nil, facets)
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
}

func TestGenerateFacetQueryTransformers_CrossFilter(t *testing.T) {
	ctx := context.Background()
	base := baseQuery(t)

	facets, err := CreateValidatedFacetsList([]Request{
		&RangeRequest{ColumnName: "asdf", Min: "23", Max: "56"},
		&ValuesRequest{ColumnName: "foo", Values: []string{"a", NullValue}},
	}, testSchema(), false)
	require.NoError(t, err)

	transformers, err := GenerateFacetQueryTransformers(ctx, base, facets, 0)
	require.NoError(t, err)
	require.Len(t, transformers, 2)

	// the range facet sees the value filter but not its own
	assert.Equal(t, "asdf", transformers[0].ColumnName())
	assert.Equal(t,
		"SELECT MIN(_C890_) AS minimum, MAX(_C890_) AS maximum FROM T123 WHERE ( _C890_ <> :b0 AND _C890_ < :b1 ) AND ( ( ( _C098_ IN ( :b2 ) OR _C098_ IS NULL ) ) )",
		transformers[0].Query().OutputSQL())
	assert.Equal(t, "a", transformers[0].Query().Parameters()["b2"])

	// the value facet sees the range filter but not its own
	assert.Equal(t, "foo", transformers[1].ColumnName())
	assert.Equal(t,
		"SELECT _C098_ AS value, COUNT(*) AS frequency FROM T123 WHERE ( _C890_ <> :b0 AND _C890_ < :b1 ) AND ( ( ( _C890_ BETWEEN :b2 AND :b3 ) ) ) GROUP BY _C098_ ORDER BY COUNT(*) DESC, _C098_ ASC LIMIT :b4",
		transformers[1].Query().OutputSQL())
	assert.Equal(t, int64(DefaultMaxValues), transformers[1].Query().Parameters()["b4"])
}

func TestGenerateFacetQueryTransformers_SingleFacetHasNoFilter(t *testing.T) {
	base := baseQuery(t)
	facets, err := CreateValidatedFacetsList([]Request{
		&RangeRequest{ColumnName: "asdf", Min: "1"},
	}, testSchema(), false)
	require.NoError(t, err)

	transformers, err := GenerateFacetQueryTransformers(context.Background(), base, facets, 10)
	require.NoError(t, err)
	require.Len(t, transformers, 1)
	assert.Equal(t,
		"SELECT MIN(_C890_) AS minimum, MAX(_C890_) AS maximum FROM T123 WHERE _C890_ <> :b0 AND _C890_ < :b1",
		transformers[0].Query().OutputSQL())
}

func TestTransform(t *testing.T) {
	ctx := context.Background()
	base := baseQuery(t)
	facets, err := CreateValidatedFacetsList([]Request{
		&RangeRequest{ColumnName: "asdf", Min: "23"},
		&ValuesRequest{ColumnName: "foo", Values: []string{"a"}},
	}, testSchema(), false)
	require.NoError(t, err)
	transformers, err := GenerateFacetQueryTransformers(ctx, base, facets, 0)
	require.NoError(t, err)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("MIN").WillReturnRows(sqlmock.NewRows([]string{MinAlias, MaxAlias}).AddRow(int64(3), int64(99)))
	mock.ExpectQuery("COUNT").WillReturnRows(sqlmock.NewRows([]string{ValueAlias, FrequencyAlias}).
		AddRow("a", int64(5)).
		AddRow(nil, int64(2)))

	rows, err := db.QueryContext(ctx, "SELECT MIN(x)")
	require.NoError(t, err)
	rangeResult, err := transformers[0].Transform(&core.Rows{Rows: rows})
	require.NoError(t, err)
	require.NoError(t, rows.Close())
	assert.Equal(t, &Result{
		ColumnName:  "asdf",
		FacetType:   core.FacetTypeRange,
		ColumnMin:   "3",
		ColumnMax:   "99",
		SelectedMin: "23",
	}, rangeResult)

	rows, err = db.QueryContext(ctx, "SELECT COUNT(*)")
	require.NoError(t, err)
	counts, err := transformers[1].Transform(&core.Rows{Rows: rows})
	require.NoError(t, err)
	require.NoError(t, rows.Close())
	assert.Equal(t, []ValueCount{
		{Value: "a", Count: 5, Selected: true},
		{Value: NullValue, Count: 2},
	}, counts.Values)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPlan(t *testing.T) {
	ctx := context.Background()
	base := baseQuery(t)

	plan, err := NewPlan(ctx, base, []Request{
		&ValuesRequest{ColumnName: "foo", Values: []string{"a"}},
	}, true, 5)
	require.NoError(t, err)

	require.Len(t, plan.Facets, 2)
	assert.Equal(t,
		"SELECT _C890_, _C098_, ROW_ID, ROW_VERSION FROM T123 WHERE ( _C890_ <> :b0 AND _C890_ < :b1 ) AND ( ( ( _C098_ IN ( :b2 ) ) ) )",
		plan.Filtered.OutputSQL())
	require.Len(t, plan.Transformers, 2)
	assert.Equal(t, "asdf", plan.Transformers[0].ColumnName())
	assert.Equal(t, "foo", plan.Transformers[1].ColumnName())
	assert.Equal(t, int64(5), plan.Transformers[1].Query().Parameters()["b2"])

	_, err = NewPlan(ctx, base, []Request{&RangeRequest{ColumnName: "foo", Min: "1"}}, false, 0)
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
}
