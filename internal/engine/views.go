package engine

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/leaptable/internal/dag"
	"github.com/leapstack-labs/leaptable/pkg/core"
)

// CreateView validates and stores a materialized view, records its source
// tables and queues it for building.
func (e *Engine) CreateView(ctx context.Context, view core.MaterializedView) error {
	if err := e.views.Validate(view); err != nil {
		return err
	}
	if err := e.store.SaveView(ctx, view); err != nil {
		return err
	}
	if err := e.views.RegisterSourceTables(ctx, view.ID, view.DefiningSQL); err != nil {
		return err
	}
	e.logger.Info("created view", slog.String("view", view.ID.String()))
	return nil
}

// RebuildView brings the physical table of a view up to date.
func (e *Engine) RebuildView(ctx context.Context, id core.IDAndVersion) error {
	return e.views.CreateOrUpdateViewIndex(ctx, id)
}

// DeleteView drops the view's physical table and forgets the view.
func (e *Engine) DeleteView(ctx context.Context, id core.IDAndVersion) error {
	return e.support.TryRunWithTableExclusiveLock(ctx, id, func(ctx context.Context) error {
		if err := e.views.DeleteViewIndex(ctx, id); err != nil {
			return err
		}
		return e.store.WriteTransaction(ctx, func(ctx context.Context) error {
			if err := e.store.DeleteView(ctx, id); err != nil {
				return err
			}
			if err := e.store.DeleteTableBinding(ctx, id); err != nil {
				return err
			}
			return e.support.DeleteTableStatus(ctx, id)
		})
	})
}

// ViewStatus returns the processing status of a view.
func (e *Engine) ViewStatus(ctx context.Context, id core.IDAndVersion) (*core.TableStatus, error) {
	return e.support.GetTableStatus(ctx, id)
}

// ListViews returns every stored view.
func (e *Engine) ListViews(ctx context.Context) ([]core.MaterializedView, error) {
	return e.store.ListViews(ctx)
}

// ViewsAffectedBy returns the views downstream of the changed tables in
// rebuild order.
func (e *Engine) ViewsAffectedBy(ctx context.Context, changed ...core.IDAndVersion) ([]core.IDAndVersion, error) {
	sources, err := e.store.GetAllViewSources(ctx)
	if err != nil {
		return nil, err
	}
	g, err := dag.FromViewSources(sources)
	if err != nil {
		return nil, err
	}
	return g.AffectedViews(changed...)
}

// NotifyTableChanged flags every view downstream of a table for rebuilding.
func (e *Engine) NotifyTableChanged(ctx context.Context, id core.IDAndVersion) error {
	affected, err := e.ViewsAffectedBy(ctx, id)
	if err != nil {
		return err
	}
	for _, view := range affected {
		if _, err := e.support.SetTableToProcessingAndTriggerUpdate(ctx, view); err != nil {
			return err
		}
	}
	if len(affected) > 0 {
		e.logger.Debug("flagged dependent views", slog.String("table", id.String()), slog.Int("views", len(affected)))
	}
	return nil
}
