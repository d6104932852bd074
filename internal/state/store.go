package state

import (
	"context"

	"github.com/leapstack-labs/leaptable/pkg/core"
)

// ViewStore persists materialized view definitions and their source tables.
type ViewStore interface {
	SaveView(ctx context.Context, view core.MaterializedView) error
	GetView(ctx context.Context, id core.IDAndVersion) (*core.MaterializedView, error)
	DeleteView(ctx context.Context, id core.IDAndVersion) error
	ListViews(ctx context.Context) ([]core.MaterializedView, error)

	GetSourceTablesIDs(ctx context.Context, viewID core.IDAndVersion) ([]core.IDAndVersion, error)
	AddSourceTablesIDs(ctx context.Context, viewID core.IDAndVersion, sources []core.IDAndVersion) error
	DeleteSourceTablesIDs(ctx context.Context, viewID core.IDAndVersion, sources ...core.IDAndVersion) error
	GetViewIDsForSourceTable(ctx context.Context, source core.IDAndVersion) ([]core.IDAndVersion, error)
	GetAllViewSources(ctx context.Context) (map[core.IDAndVersion][]core.IDAndVersion, error)
}

// StatusStore persists the processing status of index tables.
type StatusStore interface {
	ResetTableStatus(ctx context.Context, id core.IDAndVersion) (string, error)
	GetTableStatus(ctx context.Context, id core.IDAndVersion) (*core.TableStatus, error)
	AttemptToSetTableStatusToAvailable(ctx context.Context, id core.IDAndVersion, token, etag string) error
	AttemptToSetTableStatusToFailed(ctx context.Context, id core.IDAndVersion, token, message, details string) error
	AttemptToUpdateTableProgress(ctx context.Context, id core.IDAndVersion, token, message string, current, total int64) error
	DeleteTableStatus(ctx context.Context, id core.IDAndVersion) error
}

// Store is the full metadata store.
type Store interface {
	core.ColumnModelManager
	ViewStore
	StatusStore

	// WriteTransaction runs fn in a transaction carried by its context.
	WriteTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
