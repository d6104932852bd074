// Package tableindex reconciles physical index tables with logical schemas.
//
// Every logical table or view is stored in one index table named T<id>
// (T<id>_<version> for snapshots) whose columns are named _C<columnId>_,
// plus the system columns ROW_ID and ROW_VERSION. Callers must hold the
// table's exclusive lock while reconciling; concurrent DDL against one
// table is unsafe.
package tableindex

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leaptable/pkg/adapters/mysql"
	"github.com/leapstack-labs/leaptable/pkg/core"
)

// DatabaseColumn is one row of SHOW COLUMNS.
type DatabaseColumn struct {
	Field   string
	Type    string
	Null    string
	Key     string
	Default *string
	Extra   string
}

// Manager issues DDL against the index database.
type Manager struct {
	logger *slog.Logger
}

// New creates a Manager. If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{logger: logger}
}

// GetCurrentTableColumns returns the live columns of the table, or nil if
// the table does not exist.
func (m *Manager) GetCurrentTableColumns(ctx context.Context, gw core.Gateway, id core.IDAndVersion) ([]DatabaseColumn, error) {
	rows, err := gw.Query(ctx, "SHOW COLUMNS FROM "+core.TableName(id), nil)
	if err != nil {
		if mysql.IsTableNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read columns of %s: %w", core.TableName(id), err)
	}
	defer func() { _ = rows.Close() }()

	cols := []DatabaseColumn{}
	for rows.Next() {
		var c DatabaseColumn
		var null, key, extra *string
		if err := rows.Scan(&c.Field, &c.Type, &null, &key, &c.Default, &extra); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		c.Null, c.Key, c.Extra = deref(null), deref(key), deref(extra)
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}
	return cols, nil
}

// CreateOrUpdateTable makes the table's columns match schema. It creates
// the table when absent, otherwise issues a single ALTER TABLE. It returns
// false, without issuing any statement, when nothing differs.
func (m *Manager) CreateOrUpdateTable(ctx context.Context, gw core.Gateway, schema []core.ColumnModel, id core.IDAndVersion) (bool, error) {
	current, err := m.GetCurrentTableColumns(ctx, gw, id)
	if err != nil {
		return false, err
	}
	if current == nil {
		return true, m.createTable(ctx, gw, schema, id, false)
	}

	alter := alterTableSQL(id, current, schema)
	if alter == "" {
		return false, nil
	}
	m.logger.Debug("altering index table", slog.String("table", id.String()), slog.String("sql", alter))
	if err := gw.Exec(ctx, alter, nil); err != nil {
		return false, fmt.Errorf("failed to alter %s: %w", core.TableName(id), err)
	}
	return true, nil
}

// RecreateViewTable drops the table and creates it empty with schema. View
// tables generate their own ROW_ID.
func (m *Manager) RecreateViewTable(ctx context.Context, gw core.Gateway, schema []core.ColumnModel, id core.IDAndVersion) error {
	if _, err := m.DeleteTable(ctx, gw, id); err != nil {
		return err
	}
	return m.createTable(ctx, gw, schema, id, true)
}

func (m *Manager) createTable(ctx context.Context, gw core.Gateway, schema []core.ColumnModel, id core.IDAndVersion, view bool) error {
	stmt := createTableSQL(id, schema, view)
	m.logger.Debug("creating index table", slog.String("table", id.String()))
	if err := gw.Exec(ctx, stmt, nil); err != nil {
		return fmt.Errorf("failed to create %s: %w", core.TableName(id), err)
	}
	return nil
}

// DeleteTable drops the table. It returns false when the table did not
// exist.
func (m *Manager) DeleteTable(ctx context.Context, gw core.Gateway, id core.IDAndVersion) (bool, error) {
	if err := gw.Exec(ctx, "DROP TABLE "+core.TableName(id), nil); err != nil {
		if mysql.IsTableNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to drop %s: %w", core.TableName(id), err)
	}
	m.logger.Debug("dropped index table", slog.String("table", id.String()))
	return true, nil
}

func createTableSQL(id core.IDAndVersion, schema []core.ColumnModel, view bool) string {
	defs := []string{
		core.RowIDColumn + " BIGINT NOT NULL",
		core.RowVersionColumn + " BIGINT NOT NULL",
	}
	if view {
		defs[0] += " AUTO_INCREMENT"
		defs[1] += " DEFAULT 0"
	}
	for _, cm := range schema {
		defs = append(defs, columnDefinition(cm))
	}
	defs = append(defs, "PRIMARY KEY ("+core.RowIDColumn+")")
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s ( %s )", core.TableName(id), strings.Join(defs, ", "))
}

// alterTableSQL diffs live columns against the target schema. Columns
// whose names are not _C<id>_ are left alone.
func alterTableSQL(id core.IDAndVersion, current []DatabaseColumn, schema []core.ColumnModel) string {
	live := map[string]string{}
	var liveOrder []string
	for _, c := range current {
		colID, ok := core.ColumnIDFromName(c.Field)
		if !ok {
			continue
		}
		live[colID] = normalizeType(c.Type)
		liveOrder = append(liveOrder, colID)
	}

	wanted := map[string]bool{}
	var adds, drops, modifies []string
	for _, cm := range schema {
		wanted[cm.ID] = true
		liveType, exists := live[cm.ID]
		switch {
		case !exists:
			adds = append(adds, "ADD COLUMN "+columnDefinition(cm))
		case liveType != normalizeType(mysqlType(cm)):
			modifies = append(modifies, "MODIFY COLUMN "+columnDefinition(cm))
		}
	}
	for _, colID := range liveOrder {
		if !wanted[colID] {
			drops = append(drops, "DROP COLUMN "+core.ColumnName(colID))
		}
	}

	changes := append(append(adds, drops...), modifies...)
	if len(changes) == 0 {
		return ""
	}
	return fmt.Sprintf("ALTER TABLE %s %s", core.TableName(id), strings.Join(changes, ", "))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
