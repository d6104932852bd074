package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/leapstack-labs/leaptable/pkg/core"
)

// SaveView stores or replaces the defining SQL of a materialized view.
func (s *SQLiteStore) SaveView(ctx context.Context, view core.MaterializedView) error {
	q, err := s.conn(ctx)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO materialized_views (view_id, version, defining_sql) VALUES (?, ?, ?)
		 ON CONFLICT (view_id, version) DO UPDATE SET defining_sql = excluded.defining_sql`,
		view.ID.ID, versionKey(view.ID), view.DefiningSQL)
	if err != nil {
		return fmt.Errorf("failed to save view: %w", err)
	}
	return nil
}

// GetView returns a materialized view definition.
func (s *SQLiteStore) GetView(ctx context.Context, id core.IDAndVersion) (*core.MaterializedView, error) {
	q, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	view := &core.MaterializedView{ID: id}
	err = q.QueryRowContext(ctx,
		`SELECT defining_sql FROM materialized_views WHERE view_id = ? AND version = ?`,
		id.ID, versionKey(id)).Scan(&view.DefiningSQL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &core.NotFoundError{Kind: "view", Key: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get view: %w", err)
	}
	return view, nil
}

// DeleteView removes a view definition together with its source tables.
func (s *SQLiteStore) DeleteView(ctx context.Context, id core.IDAndVersion) error {
	return s.WriteTransaction(ctx, func(ctx context.Context) error {
		q, err := s.conn(ctx)
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx,
			`DELETE FROM materialized_views WHERE view_id = ? AND version = ?`, id.ID, versionKey(id)); err != nil {
			return fmt.Errorf("failed to delete view: %w", err)
		}
		return s.DeleteSourceTablesIDs(ctx, id)
	})
}

// GetSourceTablesIDs returns the tables a view reads from.
func (s *SQLiteStore) GetSourceTablesIDs(ctx context.Context, viewID core.IDAndVersion) ([]core.IDAndVersion, error) {
	q, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx,
		`SELECT source_id, source_version FROM view_source_tables
		 WHERE view_id = ? AND view_version = ?
		 ORDER BY source_id, source_version`, viewID.ID, versionKey(viewID))
	if err != nil {
		return nil, fmt.Errorf("failed to get source tables: %w", err)
	}
	return scanIDs(rows)
}

// AddSourceTablesIDs records additional source tables of a view.
func (s *SQLiteStore) AddSourceTablesIDs(ctx context.Context, viewID core.IDAndVersion, sources []core.IDAndVersion) error {
	if len(sources) == 0 {
		return nil
	}
	return s.WriteTransaction(ctx, func(ctx context.Context) error {
		q, err := s.conn(ctx)
		if err != nil {
			return err
		}
		for _, src := range sources {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO view_source_tables (view_id, view_version, source_id, source_version)
				 VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`,
				viewID.ID, versionKey(viewID), src.ID, versionKey(src)); err != nil {
				return fmt.Errorf("failed to add source table %s: %w", src, err)
			}
		}
		return nil
	})
}

// DeleteSourceTablesIDs removes source tables of a view. With no sources
// given, all of them are removed.
func (s *SQLiteStore) DeleteSourceTablesIDs(ctx context.Context, viewID core.IDAndVersion, sources ...core.IDAndVersion) error {
	return s.WriteTransaction(ctx, func(ctx context.Context) error {
		q, err := s.conn(ctx)
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			if _, err := q.ExecContext(ctx,
				`DELETE FROM view_source_tables WHERE view_id = ? AND view_version = ?`,
				viewID.ID, versionKey(viewID)); err != nil {
				return fmt.Errorf("failed to delete source tables: %w", err)
			}
			return nil
		}
		for _, src := range sources {
			if _, err := q.ExecContext(ctx,
				`DELETE FROM view_source_tables
				 WHERE view_id = ? AND view_version = ? AND source_id = ? AND source_version = ?`,
				viewID.ID, versionKey(viewID), src.ID, versionKey(src)); err != nil {
				return fmt.Errorf("failed to delete source table %s: %w", src, err)
			}
		}
		return nil
	})
}

// GetViewIDsForSourceTable returns the views that read from a table.
func (s *SQLiteStore) GetViewIDsForSourceTable(ctx context.Context, source core.IDAndVersion) ([]core.IDAndVersion, error) {
	q, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx,
		`SELECT view_id, view_version FROM view_source_tables
		 WHERE source_id = ? AND source_version = ?
		 ORDER BY view_id, view_version`, source.ID, versionKey(source))
	if err != nil {
		return nil, fmt.Errorf("failed to get views for source table: %w", err)
	}
	return scanIDs(rows)
}

// ListViews returns every stored view definition ordered by id.
func (s *SQLiteStore) ListViews(ctx context.Context) ([]core.MaterializedView, error) {
	q, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx,
		`SELECT view_id, version, defining_sql FROM materialized_views ORDER BY view_id, version`)
	if err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var views []core.MaterializedView
	for rows.Next() {
		var id, version int64
		var view core.MaterializedView
		if err := rows.Scan(&id, &version, &view.DefiningSQL); err != nil {
			return nil, fmt.Errorf("failed to scan view: %w", err)
		}
		view.ID = fromKey(id, version)
		views = append(views, view)
	}
	return views, rows.Err()
}

// GetAllViewSources returns the source tables of every view, keyed by view.
func (s *SQLiteStore) GetAllViewSources(ctx context.Context) (map[core.IDAndVersion][]core.IDAndVersion, error) {
	q, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx,
		`SELECT view_id, view_version, source_id, source_version FROM view_source_tables
		 ORDER BY view_id, view_version, source_id, source_version`)
	if err != nil {
		return nil, fmt.Errorf("failed to get view sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[core.IDAndVersion][]core.IDAndVersion)
	for rows.Next() {
		var vid, vver, sid, sver int64
		if err := rows.Scan(&vid, &vver, &sid, &sver); err != nil {
			return nil, fmt.Errorf("failed to scan view source: %w", err)
		}
		view := fromKey(vid, vver)
		out[view] = append(out[view], fromKey(sid, sver))
	}
	return out, rows.Err()
}

func scanIDs(rows *sql.Rows) ([]core.IDAndVersion, error) {
	defer func() { _ = rows.Close() }()

	ids := []core.IDAndVersion{}
	for rows.Next() {
		var id, version int64
		if err := rows.Scan(&id, &version); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, fromKey(id, version))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ids: %w", err)
	}
	return ids, nil
}
