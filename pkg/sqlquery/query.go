// Package sqlquery translates parsed queries over logical tables into
// physical SQL over generated table and column names.
//
// A Query is the immutable result of one translation: the physical SQL
// text, its named parameters, the output schema and the source tables.
package sqlquery

import (
	"context"
	"maps"
	"slices"

	"github.com/leapstack-labs/leaptable/pkg/core"
	"github.com/leapstack-labs/leaptable/pkg/parser"
)

// Query is a translated query. It is immutable once built; accessors return
// copies.
type Query struct {
	model        *parser.QuerySpecification
	translated   *parser.QuerySpecification
	outputSQL    string
	params       map[string]any
	schema       []core.ColumnModel
	tableIDs     []core.IDAndVersion
	correlations int
	schemas      map[core.IDAndVersion][]core.ColumnModel
	aggregate    bool
	rowIDs       bool

	allowJoins bool
	wantRowIDs bool
}

// Model returns the user-level AST the query was translated from.
func (q *Query) Model() *parser.QuerySpecification {
	return q.model
}

// OutputSQL returns the physical SQL text.
func (q *Query) OutputSQL() string {
	return q.outputSQL
}

// Parameters returns the bound values keyed by parameter name ("b0", ...).
func (q *Query) Parameters() map[string]any {
	return maps.Clone(q.params)
}

// SchemaOfSelect returns the output columns in projection order. ROW_ID and
// ROW_VERSION are not part of it.
func (q *Query) SchemaOfSelect() []core.ColumnModel {
	return slices.Clone(q.schema)
}

// TableIDs returns the distinct source tables in FROM order.
func (q *Query) TableIDs() []core.IDAndVersion {
	return slices.Clone(q.tableIDs)
}

// TableSchema returns the logical schema a source table was resolved with.
func (q *Query) TableSchema(id core.IDAndVersion) []core.ColumnModel {
	return slices.Clone(q.schemas[id])
}

// SingleTableID returns the only source table, or a validation error wrapping
// core.ErrJoinNotSupported when the query has more than one correlation.
func (q *Query) SingleTableID() (core.IDAndVersion, error) {
	if q.correlations != 1 {
		return core.IDAndVersion{}, &core.ValidationError{Err: core.ErrJoinNotSupported}
	}
	return q.tableIDs[0], nil
}

// IsAggregate reports whether the query returns aggregated rows.
func (q *Query) IsAggregate() bool {
	return q.aggregate
}

// IncludesRowIDAndVersion reports whether ROW_ID and ROW_VERSION were
// appended to the select list.
func (q *Query) IncludesRowIDAndVersion() bool {
	return q.rowIDs
}

// AllowsJoins reports whether the query was built with joins enabled.
func (q *Query) AllowsJoins() bool {
	return q.allowJoins
}

// WithModel translates a derived model against the schemas this query was
// resolved with. No schema provider is consulted.
func (q *Query) WithModel(ctx context.Context, model *parser.QuerySpecification) (*Query, error) {
	return NewBuilder(model).
		withSchemas(q.schemas).
		AllowJoins(q.allowJoins).
		IncludeRowIDAndVersion(q.wantRowIDs).
		Build(ctx)
}

// SourceTableIDs extracts the distinct table ids referenced by a model, in
// FROM order, without resolving any schema.
func SourceTableIDs(model *parser.QuerySpecification) ([]core.IDAndVersion, error) {
	var out []core.IDAndVersion
	for _, t := range model.Tables() {
		id, err := core.ParseIDAndVersion(t.Name)
		if err != nil {
			return nil, core.NewValidationError("invalid table name %q", t.Name)
		}
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out, nil
}

// SingleTableID returns the only table of a model, or a validation error
// wrapping core.ErrJoinNotSupported when it has more than one correlation.
func SingleTableID(model *parser.QuerySpecification) (core.IDAndVersion, error) {
	tables := model.Tables()
	if len(tables) != 1 {
		return core.IDAndVersion{}, &core.ValidationError{Err: core.ErrJoinNotSupported}
	}
	id, err := core.ParseIDAndVersion(tables[0].Name)
	if err != nil {
		return core.IDAndVersion{}, core.NewValidationError("invalid table name %q", tables[0].Name)
	}
	return id, nil
}
