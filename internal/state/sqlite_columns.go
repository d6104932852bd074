package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/leapstack-labs/leaptable/pkg/core"
)

const columnFields = `id, name, column_type, maximum_size, maximum_list_length, facet_type, default_value`

func scanColumn(scan func(dest ...any) error) (core.ColumnModel, error) {
	var (
		cm  core.ColumnModel
		id  int64
		ct  string
		ft  string
		def sql.NullString
	)
	if err := scan(&id, &cm.Name, &ct, &cm.MaximumSize, &cm.MaximumListLength, &ft, &def); err != nil {
		return core.ColumnModel{}, err
	}
	cm.ID = strconv.FormatInt(id, 10)
	cm.ColumnType = core.ColumnType(ct)
	cm.FacetType = core.FacetType(ft)
	if def.Valid {
		cm.DefaultValue = &def.String
	}
	return cm, nil
}

// CreateColumnModel returns the stored model with the same structure, or
// stores a new one. The id of cm is ignored.
func (s *SQLiteStore) CreateColumnModel(ctx context.Context, cm core.ColumnModel) (core.ColumnModel, error) {
	q, err := s.conn(ctx)
	if err != nil {
		return core.ColumnModel{}, err
	}
	if _, err := core.ParseColumnType(string(cm.ColumnType)); err != nil {
		return core.ColumnModel{}, core.NewValidationError("invalid column %q: %v", cm.Name, err)
	}

	var def any
	if cm.DefaultValue != nil {
		def = *cm.DefaultValue
	}
	hash := cm.Hash()
	_, err = q.ExecContext(ctx,
		`INSERT INTO column_models (hash, name, column_type, maximum_size, maximum_list_length, facet_type, default_value)
		 VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (hash) DO NOTHING`,
		hash, cm.Name, string(cm.ColumnType), cm.MaximumSize, cm.MaximumListLength, string(cm.FacetType), def)
	if err != nil {
		return core.ColumnModel{}, fmt.Errorf("failed to create column model: %w", err)
	}

	row := q.QueryRowContext(ctx, `SELECT `+columnFields+` FROM column_models WHERE hash = ?`, hash)
	stored, err := scanColumn(row.Scan)
	if err != nil {
		return core.ColumnModel{}, fmt.Errorf("failed to read column model: %w", err)
	}
	return stored, nil
}

// GetColumnModel returns a column model by id.
func (s *SQLiteStore) GetColumnModel(ctx context.Context, columnID string) (*core.ColumnModel, error) {
	q, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(columnID, 10, 64)
	if err != nil {
		return nil, &core.NotFoundError{Kind: "column", Key: columnID}
	}

	cm, err := scanColumn(q.QueryRowContext(ctx, `SELECT `+columnFields+` FROM column_models WHERE id = ?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &core.NotFoundError{Kind: "column", Key: columnID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get column model: %w", err)
	}
	return &cm, nil
}

// BindColumnsToVersionOfObject replaces the ordered columns of a table.
func (s *SQLiteStore) BindColumnsToVersionOfObject(ctx context.Context, columnIDs []string, id core.IDAndVersion) error {
	return s.WriteTransaction(ctx, func(ctx context.Context) error {
		q, err := s.conn(ctx)
		if err != nil {
			return err
		}
		version := versionKey(id)

		if _, err := q.ExecContext(ctx,
			`INSERT INTO bound_tables (table_id, version, updated_on) VALUES (?, ?, ?)
			 ON CONFLICT (table_id, version) DO UPDATE SET updated_on = excluded.updated_on`,
			id.ID, version, time.Now().UTC().UnixMilli()); err != nil {
			return fmt.Errorf("failed to bind table: %w", err)
		}
		if _, err := q.ExecContext(ctx,
			`DELETE FROM bound_columns WHERE table_id = ? AND version = ?`, id.ID, version); err != nil {
			return fmt.Errorf("failed to clear bound columns: %w", err)
		}
		for pos, columnID := range columnIDs {
			cid, err := strconv.ParseInt(columnID, 10, 64)
			if err != nil {
				return core.NewValidationError("invalid column id %q", columnID)
			}
			if _, err := q.ExecContext(ctx,
				`INSERT INTO bound_columns (table_id, version, position, column_id) VALUES (?, ?, ?, ?)`,
				id.ID, version, pos, cid); err != nil {
				return fmt.Errorf("failed to bind column %s: %w", columnID, err)
			}
		}
		return nil
	})
}

// GetColumnIDsForTable returns the ordered column ids bound to a table.
func (s *SQLiteStore) GetColumnIDsForTable(ctx context.Context, id core.IDAndVersion) ([]string, error) {
	schema, err := s.GetTableSchema(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(schema))
	for i, cm := range schema {
		ids[i] = cm.ID
	}
	return ids, nil
}

// GetTableSchema returns the ordered columns bound to a table. A table that
// was never bound is not found.
func (s *SQLiteStore) GetTableSchema(ctx context.Context, id core.IDAndVersion) ([]core.ColumnModel, error) {
	q, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	version := versionKey(id)

	var exists int
	err = q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bound_tables WHERE table_id = ? AND version = ?`, id.ID, version).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to look up table: %w", err)
	}
	if exists == 0 {
		return nil, &core.NotFoundError{Kind: "table", Key: id.String()}
	}

	rows, err := q.QueryContext(ctx,
		`SELECT c.id, c.name, c.column_type, c.maximum_size, c.maximum_list_length, c.facet_type, c.default_value
		 FROM bound_columns b JOIN column_models c ON c.id = b.column_id
		 WHERE b.table_id = ? AND b.version = ?
		 ORDER BY b.position`, id.ID, version)
	if err != nil {
		return nil, fmt.Errorf("failed to get table schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	schema := []core.ColumnModel{}
	for rows.Next() {
		cm, err := scanColumn(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan column model: %w", err)
		}
		schema = append(schema, cm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table schema: %w", err)
	}
	return schema, nil
}

// DeleteTableBinding removes the column binding of a table.
func (s *SQLiteStore) DeleteTableBinding(ctx context.Context, id core.IDAndVersion) error {
	q, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx,
		`DELETE FROM bound_tables WHERE table_id = ? AND version = ?`, id.ID, versionKey(id)); err != nil {
		return fmt.Errorf("failed to delete table binding: %w", err)
	}
	return nil
}

// Ensure SQLiteStore implements core.ColumnModelManager.
var _ core.ColumnModelManager = (*SQLiteStore)(nil)
