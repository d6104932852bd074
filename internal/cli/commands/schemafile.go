package commands

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leaptable/pkg/core"
)

// SchemaFile is a YAML document mapping table ids to their columns:
//
//	syn123:
//	  - name: species
//	    type: STRING
//	    maximum_size: 100
//	    facet_type: enumeration
//	  - name: count
//	    type: INTEGER
type SchemaFile struct {
	tables  map[core.IDAndVersion][]core.ColumnModel
	order   []core.IDAndVersion
	columns map[string]core.ColumnModel
}

// LoadSchemaFile reads and validates a schema file. Columns without an id
// are numbered in file order, sharing ids between structurally identical
// columns.
func LoadSchemaFile(path string) (*SchemaFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return ParseSchemaFile(data)
}

// ParseSchemaFile parses the YAML content of a schema file.
func ParseSchemaFile(data []byte) (*SchemaFile, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid schema file: %w", err)
	}
	sf := &SchemaFile{
		tables:  map[core.IDAndVersion][]core.ColumnModel{},
		columns: map[string]core.ColumnModel{},
	}
	if len(doc.Content) == 0 {
		return sf, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("invalid schema file: expected a mapping of table ids to columns")
	}

	// Explicit ids are reserved before any column is numbered.
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		id, err := core.ParseIDAndVersion(key.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", key.Line, err)
		}
		if _, dup := sf.tables[id]; dup {
			return nil, fmt.Errorf("line %d: table %s is defined twice", key.Line, id)
		}
		var cols []core.ColumnModel
		if err := value.Decode(&cols); err != nil {
			return nil, fmt.Errorf("line %d: table %s: %w", value.Line, id, err)
		}
		for j := range cols {
			cm := &cols[j]
			if err := normalizeColumn(cm); err != nil {
				return nil, fmt.Errorf("table %s: column %d: %w", id, j+1, err)
			}
			if cm.ID == "" {
				continue
			}
			if prev, ok := sf.columns[cm.ID]; ok && prev.Hash() != cm.Hash() {
				return nil, fmt.Errorf("table %s: column id %s is already declared as %s", id, cm.ID, prev.Name)
			}
			sf.columns[cm.ID] = *cm
		}
		sf.tables[id] = cols
		sf.order = append(sf.order, id)
	}

	byHash := map[string]string{}
	nextID := 1
	for _, id := range sf.order {
		cols := sf.tables[id]
		for j := range cols {
			cm := &cols[j]
			if cm.ID != "" {
				continue
			}
			hash := cm.Hash()
			if existing, ok := byHash[hash]; ok {
				cm.ID = existing
				continue
			}
			for sf.hasColumn(strconv.Itoa(nextID)) {
				nextID++
			}
			cm.ID = strconv.Itoa(nextID)
			byHash[hash] = cm.ID
			sf.columns[cm.ID] = *cm
		}
	}
	return sf, nil
}

func normalizeColumn(cm *core.ColumnModel) error {
	if cm.Name == "" {
		return fmt.Errorf("column has no name")
	}
	ct, err := core.ParseColumnType(string(cm.ColumnType))
	if err != nil {
		return fmt.Errorf("%s: %w", cm.Name, err)
	}
	cm.ColumnType = ct
	switch cm.FacetType {
	case core.FacetTypeNone, core.FacetTypeRange, core.FacetTypeEnumeration:
	default:
		return fmt.Errorf("%s: unknown facet type %q", cm.Name, cm.FacetType)
	}
	return nil
}

func (sf *SchemaFile) hasColumn(id string) bool {
	_, ok := sf.columns[id]
	return ok
}

// TableIDs returns the tables in file order.
func (sf *SchemaFile) TableIDs() []core.IDAndVersion {
	return slices.Clone(sf.order)
}

// Columns returns the columns of a table.
func (sf *SchemaFile) Columns(id core.IDAndVersion) ([]core.ColumnModel, bool) {
	cols, ok := sf.tables[id]
	return slices.Clone(cols), ok
}

// GetTableSchema implements core.SchemaProvider.
func (sf *SchemaFile) GetTableSchema(_ context.Context, id core.IDAndVersion) ([]core.ColumnModel, error) {
	cols, ok := sf.tables[id]
	if !ok {
		return nil, &core.NotFoundError{Kind: "table", Key: id.String()}
	}
	return slices.Clone(cols), nil
}

// GetColumnModel implements core.SchemaProvider.
func (sf *SchemaFile) GetColumnModel(_ context.Context, columnID string) (*core.ColumnModel, error) {
	cm, ok := sf.columns[columnID]
	if !ok {
		return nil, &core.NotFoundError{Kind: "column", Key: columnID}
	}
	return &cm, nil
}

var _ core.SchemaProvider = (*SchemaFile)(nil)
