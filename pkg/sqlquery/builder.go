package sqlquery

import (
	"context"
	"errors"
	"fmt"

	"github.com/leapstack-labs/leaptable/pkg/core"
	"github.com/leapstack-labs/leaptable/pkg/format"
	"github.com/leapstack-labs/leaptable/pkg/parser"
)

// Builder configures the translation of one model.
type Builder struct {
	model      *parser.QuerySpecification
	provider   core.SchemaProvider
	schemas    map[core.IDAndVersion][]core.ColumnModel
	allowJoins bool
	rowIDs     bool
}

// NewBuilder returns a builder for model. Joins are disabled and ROW_ID and
// ROW_VERSION are included by default.
func NewBuilder(model *parser.QuerySpecification) *Builder {
	return &Builder{model: model, rowIDs: true}
}

// SchemaProvider sets the provider used to resolve table schemas.
func (b *Builder) SchemaProvider(p core.SchemaProvider) *Builder {
	b.provider = p
	return b
}

// AllowJoins enables queries over more than one table.
func (b *Builder) AllowJoins(allow bool) *Builder {
	b.allowJoins = allow
	return b
}

// IncludeRowIDAndVersion controls whether row-level queries over a single
// table select ROW_ID and ROW_VERSION after the requested columns.
func (b *Builder) IncludeRowIDAndVersion(include bool) *Builder {
	b.rowIDs = include
	return b
}

func (b *Builder) withSchemas(schemas map[core.IDAndVersion][]core.ColumnModel) *Builder {
	b.schemas = schemas
	return b
}

// Build resolves schemas and translates the model.
func (b *Builder) Build(ctx context.Context) (*Query, error) {
	if b.model == nil {
		return nil, core.NewValidationError("query model is required")
	}
	if b.model.Select == nil || b.model.From == nil {
		return nil, core.NewValidationError("query must have a select list and a FROM clause")
	}

	tables := b.model.Tables()
	if len(tables) > 1 && !b.allowJoins {
		return nil, &core.ValidationError{Err: core.ErrJoinNotSupported}
	}

	t := newTranslator()
	if err := t.addCorrelations(ctx, b.model.From, b.lookupSchema); err != nil {
		return nil, err
	}

	translated, err := t.translateQuery(b.model, b.rowIDs)
	if err != nil {
		return nil, err
	}

	schema, err := t.schemaOfSelect(b.model)
	if err != nil {
		return nil, err
	}

	q := &Query{
		model:        b.model,
		translated:   translated,
		outputSQL:    format.SQL(translated, format.Physical),
		params:       t.params,
		schema:       schema,
		tableIDs:     t.tableIDs(),
		correlations: len(t.correlations),
		schemas:      t.schemas(),
		aggregate:    b.model.IsAggregate(),
		rowIDs:       t.rowIDs,
		allowJoins:   b.allowJoins,
		wantRowIDs:   b.rowIDs,
	}
	return q, nil
}

func (b *Builder) lookupSchema(ctx context.Context, id core.IDAndVersion) ([]core.ColumnModel, error) {
	if schema, ok := b.schemas[id]; ok {
		return schema, nil
	}
	if b.provider == nil {
		return nil, fmt.Errorf("no schema provider to resolve %s", id)
	}
	schema, err := b.provider.GetTableSchema(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, &core.ValidationError{Message: fmt.Sprintf("table %s does not exist", id), Err: err}
		}
		return nil, fmt.Errorf("failed to resolve schema of %s: %w", id, err)
	}
	return schema, nil
}

// Translate parses sql and builds it against provider.
func Translate(ctx context.Context, sql string, provider core.SchemaProvider, allowJoins bool) (*Query, error) {
	model, err := parser.ParseQuery(sql)
	if err != nil {
		return nil, err
	}
	return NewBuilder(model).SchemaProvider(provider).AllowJoins(allowJoins).Build(ctx)
}

// IsClientError reports whether err was caused by the query itself: a parse
// or lexical error, or a validation error.
func IsClientError(err error) bool {
	var pe *parser.ParseError
	var le *parser.LexError
	return errors.As(err, &pe) || errors.As(err, &le) || core.IsValidation(err)
}
