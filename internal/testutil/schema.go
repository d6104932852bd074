package testutil

import (
	"context"
	"strconv"
	"sync"

	"github.com/leapstack-labs/leaptable/pkg/core"
)

// SchemaProvider is an in-memory core.ColumnModelManager for tests.
type SchemaProvider struct {
	mu      sync.Mutex
	tables  map[core.IDAndVersion][]string
	columns map[string]core.ColumnModel
	nextID  int

	Bindings int // number of BindColumnsToVersionOfObject calls
}

// NewSchemaProvider returns an empty provider. Created column ids start at 1000.
func NewSchemaProvider() *SchemaProvider {
	return &SchemaProvider{
		tables:  map[core.IDAndVersion][]string{},
		columns: map[string]core.ColumnModel{},
		nextID:  1000,
	}
}

// WithTable registers a table schema. Columns keep their ids.
func (p *SchemaProvider) WithTable(id core.IDAndVersion, schema ...core.ColumnModel) *SchemaProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(schema))
	for _, cm := range schema {
		p.columns[cm.ID] = cm
		ids = append(ids, cm.ID)
	}
	p.tables[id] = ids
	return p
}

// GetTableSchema implements core.SchemaProvider.
func (p *SchemaProvider) GetTableSchema(_ context.Context, id core.IDAndVersion) ([]core.ColumnModel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids, ok := p.tables[id]
	if !ok {
		return nil, &core.NotFoundError{Kind: "table", Key: id.String()}
	}
	out := make([]core.ColumnModel, 0, len(ids))
	for _, cid := range ids {
		out = append(out, p.columns[cid])
	}
	return out, nil
}

// GetColumnModel implements core.SchemaProvider.
func (p *SchemaProvider) GetColumnModel(_ context.Context, columnID string) (*core.ColumnModel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cm, ok := p.columns[columnID]
	if !ok {
		return nil, &core.NotFoundError{Kind: "column", Key: columnID}
	}
	return &cm, nil
}

// CreateColumnModel implements core.ColumnModelManager.
func (p *SchemaProvider) CreateColumnModel(_ context.Context, cm core.ColumnModel) (core.ColumnModel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	hash := cm.Hash()
	for _, existing := range p.columns {
		if existing.Hash() == hash {
			return existing, nil
		}
	}
	p.nextID++
	cm.ID = strconv.Itoa(p.nextID)
	p.columns[cm.ID] = cm
	return cm, nil
}

// BindColumnsToVersionOfObject implements core.ColumnModelManager.
func (p *SchemaProvider) BindColumnsToVersionOfObject(_ context.Context, columnIDs []string, id core.IDAndVersion) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tables[id] = append([]string(nil), columnIDs...)
	p.Bindings++
	return nil
}

// GetColumnIDsForTable implements core.ColumnModelManager.
func (p *SchemaProvider) GetColumnIDsForTable(_ context.Context, id core.IDAndVersion) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.tables[id]...), nil
}
