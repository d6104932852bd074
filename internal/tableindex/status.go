package tableindex

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leaptable/pkg/adapters/mysql"
	"github.com/leapstack-labs/leaptable/pkg/core"
	"github.com/leapstack-labs/leaptable/pkg/sqlquery"
)

// StatusTable records, per index table, what its content was built from.
const StatusTable = "TABLE_STATUS"

// unversioned is the VERSION stored for the current version of a table.
const unversioned int64 = -1

// IndexState is the bookkeeping of one index table.
type IndexState struct {
	CRC       int64
	SchemaMD5 string
}

// EnsureStatusTable creates the bookkeeping table if needed.
func (m *Manager) EnsureStatusTable(ctx context.Context, gw core.Gateway) error {
	stmt := "CREATE TABLE IF NOT EXISTS " + StatusTable + " ( " +
		"TABLE_ID BIGINT NOT NULL, VERSION BIGINT NOT NULL, SCHEMA_HASH CHAR(32) NOT NULL, " +
		"CRC BIGINT NOT NULL, PRIMARY KEY (TABLE_ID, VERSION) )"
	if err := gw.Exec(ctx, stmt, nil); err != nil {
		return fmt.Errorf("failed to create %s: %w", StatusTable, err)
	}
	return nil
}

func statusKey(id core.IDAndVersion) map[string]any {
	version := unversioned
	if id.Versioned {
		version = id.Version
	}
	return map[string]any{"id": id.ID, "version": version}
}

// GetIndexState returns the stored state of the table. ok is false when
// nothing was stored.
func (m *Manager) GetIndexState(ctx context.Context, gw core.Gateway, id core.IDAndVersion) (state IndexState, ok bool, err error) {
	rows, err := gw.Query(ctx,
		"SELECT CRC, SCHEMA_HASH FROM "+StatusTable+" WHERE TABLE_ID = :id AND VERSION = :version",
		statusKey(id))
	if err != nil {
		if mysql.IsTableNotFound(err) {
			return IndexState{}, false, nil
		}
		return IndexState{}, false, fmt.Errorf("failed to read index state of %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	if rows.Next() {
		if err := rows.Scan(&state.CRC, &state.SchemaMD5); err != nil {
			return IndexState{}, false, fmt.Errorf("failed to scan index state: %w", err)
		}
		ok = true
	}
	if err := rows.Err(); err != nil {
		return IndexState{}, false, fmt.Errorf("error reading index state: %w", err)
	}
	return state, ok, nil
}

// SetIndexVersionAndSchemaMD5Hex stores the state the table was built from.
func (m *Manager) SetIndexVersionAndSchemaMD5Hex(ctx context.Context, gw core.Gateway, id core.IDAndVersion, state IndexState) error {
	params := statusKey(id)
	params["crc"] = state.CRC
	params["hash"] = state.SchemaMD5
	stmt := "INSERT INTO " + StatusTable + " (TABLE_ID, VERSION, SCHEMA_HASH, CRC) VALUES (:id, :version, :hash, :crc) " +
		"ON DUPLICATE KEY UPDATE SCHEMA_HASH = :hash, CRC = :crc"
	if err := gw.Exec(ctx, stmt, params); err != nil {
		return fmt.Errorf("failed to store index state of %s: %w", id, err)
	}
	return nil
}

// DeleteIndexState forgets the stored state of the table.
func (m *Manager) DeleteIndexState(ctx context.Context, gw core.Gateway, id core.IDAndVersion) error {
	err := gw.Exec(ctx, "DELETE FROM "+StatusTable+" WHERE TABLE_ID = :id AND VERSION = :version", statusKey(id))
	if err != nil && !mysql.IsTableNotFound(err) {
		return fmt.Errorf("failed to delete index state of %s: %w", id, err)
	}
	return nil
}

// CalculateCRC returns a checksum of the table's row versions. A missing
// table has checksum 0.
func (m *Manager) CalculateCRC(ctx context.Context, gw core.Gateway, id core.IDAndVersion) (int64, error) {
	stmt := fmt.Sprintf("SELECT COALESCE(SUM(CRC32(CONCAT(%s, '-', %s))), 0) FROM %s",
		core.RowIDColumn, core.RowVersionColumn, core.TableName(id))
	rows, err := gw.Query(ctx, stmt, nil)
	if err != nil {
		if mysql.IsTableNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to calculate CRC of %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	var crc int64
	if rows.Next() {
		if err := rows.Scan(&crc); err != nil {
			return 0, fmt.Errorf("failed to scan CRC: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error reading CRC: %w", err)
	}
	return crc, nil
}

// PopulateFromQuery fills a view table from its translated defining query.
// schema is the view's bound schema; its columns line up with the query's
// select list. The query must not select ROW_ID and ROW_VERSION.
func (m *Manager) PopulateFromQuery(ctx context.Context, gw core.Gateway, viewID core.IDAndVersion, schema []core.ColumnModel, q *sqlquery.Query) error {
	if q.IncludesRowIDAndVersion() {
		return fmt.Errorf("query for %s selects row ids", viewID)
	}
	if len(schema) != len(q.SchemaOfSelect()) {
		return fmt.Errorf("view %s has %d columns but its query selects %d", viewID, len(schema), len(q.SchemaOfSelect()))
	}

	names := make([]string, len(schema))
	for i, cm := range schema {
		names[i] = core.ColumnName(cm.ID)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) %s", core.TableName(viewID), strings.Join(names, ", "), q.OutputSQL())
	m.logger.Debug("populating view", slog.String("view", viewID.String()))
	if err := gw.Exec(ctx, stmt, q.Parameters()); err != nil {
		return fmt.Errorf("failed to populate %s: %w", viewID, err)
	}
	return nil
}
