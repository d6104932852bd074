package engine

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/leaptable/pkg/core"
)

// SyncTableSchema stores the column models of a table, binds them in order
// and reconciles the physical table. It returns the bound schema and whether
// the physical table changed. Views reading the table are flagged for
// rebuilding.
func (e *Engine) SyncTableSchema(ctx context.Context, id core.IDAndVersion, columns []core.ColumnModel) ([]core.ColumnModel, bool, error) {
	gw, err := e.gateway(ctx)
	if err != nil {
		return nil, false, err
	}

	var (
		schema  []core.ColumnModel
		changed bool
	)
	err = e.support.TryRunWithTableExclusiveLock(ctx, id, func(ctx context.Context) error {
		err := e.store.WriteTransaction(ctx, func(ctx context.Context) error {
			ids := make([]string, 0, len(columns))
			seen := make(map[string]bool, len(columns))
			for _, cm := range columns {
				if seen[cm.Name] {
					return core.NewValidationError("duplicate column name %q", cm.Name)
				}
				seen[cm.Name] = true
				created, err := e.store.CreateColumnModel(ctx, cm)
				if err != nil {
					return err
				}
				ids = append(ids, created.ID)
			}
			if err := e.store.BindColumnsToVersionOfObject(ctx, ids, id); err != nil {
				return err
			}
			schema, err = e.store.GetTableSchema(ctx, id)
			return err
		})
		if err != nil {
			return err
		}

		changed, err = e.tables.CreateOrUpdateTable(ctx, gw, schema, id)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	e.logger.Info("synced table schema",
		slog.String("table", id.String()),
		slog.Int("columns", len(schema)),
		slog.Bool("changed", changed))

	if err := e.NotifyTableChanged(ctx, id); err != nil {
		return nil, false, err
	}
	return schema, changed, nil
}

// DropTable drops the physical table and forgets its schema and status.
func (e *Engine) DropTable(ctx context.Context, id core.IDAndVersion) (bool, error) {
	gw, err := e.gateway(ctx)
	if err != nil {
		return false, err
	}

	var dropped bool
	err = e.support.TryRunWithTableExclusiveLock(ctx, id, func(ctx context.Context) error {
		var err error
		if dropped, err = e.tables.DeleteTable(ctx, gw, id); err != nil {
			return err
		}
		if err := e.tables.DeleteIndexState(ctx, gw, id); err != nil {
			return err
		}
		if err := e.store.DeleteTableBinding(ctx, id); err != nil {
			return err
		}
		return e.support.DeleteTableStatus(ctx, id)
	})
	if err != nil {
		return false, err
	}
	return dropped, nil
}

// TableSchema returns the bound schema of a table.
func (e *Engine) TableSchema(ctx context.Context, id core.IDAndVersion) ([]core.ColumnModel, error) {
	return e.store.GetTableSchema(ctx, id)
}
