// Package tablesupport combines table locks with the table status store.
// Index builders use it to run work under a table's lock and to move the
// table through PROCESSING, AVAILABLE and PROCESSING_FAILED.
package tablesupport

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/leaptable/internal/lock"
	"github.com/leapstack-labs/leaptable/internal/state"
	"github.com/leapstack-labs/leaptable/pkg/core"
)

// Trigger is notified when a table needs to be rebuilt.
type Trigger func(ctx context.Context, id core.IDAndVersion)

// Support runs work under table locks and tracks table status.
type Support struct {
	locks   lock.Manager
	status  state.StatusStore
	trigger Trigger
	logger  *slog.Logger
}

// Config holds the collaborators of Support.
type Config struct {
	Locks  lock.Manager
	Status state.StatusStore
	// Trigger is optional.
	Trigger Trigger
	Logger  *slog.Logger
}

// New creates a Support.
func New(cfg Config) *Support {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Support{
		locks:   cfg.Locks,
		status:  cfg.Status,
		trigger: cfg.Trigger,
		logger:  logger,
	}
}

// LockKey is the lock name of a table.
func LockKey(id core.IDAndVersion) string {
	return core.TableName(id)
}

// TryRunWithTableExclusiveLock runs fn while holding the exclusive lock of
// id. It fails fast with *core.LockUnavailableError when the lock is held.
func (s *Support) TryRunWithTableExclusiveLock(ctx context.Context, id core.IDAndVersion, fn func(ctx context.Context) error) error {
	release, err := s.locks.TryExclusive(ctx, LockKey(id))
	if err != nil {
		return err
	}
	defer release()
	s.logger.Debug("acquired exclusive lock", slog.String("table", id.String()))
	return fn(ctx)
}

// TryRunWithTableNonexclusiveLock runs fn while holding shared locks on all
// ids, acquired in the given order.
func (s *Support) TryRunWithTableNonexclusiveLock(ctx context.Context, fn func(ctx context.Context) error, ids ...core.IDAndVersion) error {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = LockKey(id)
	}
	release, err := lock.TrySharedAll(ctx, s.locks, keys...)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// StartTableProcessing resets the status of id to PROCESSING and returns the
// new reset token.
func (s *Support) StartTableProcessing(ctx context.Context, id core.IDAndVersion) (string, error) {
	return s.status.ResetTableStatus(ctx, id)
}

// SetTableToProcessingAndTriggerUpdate resets the status of id and notifies
// the trigger so a worker rebuilds it.
func (s *Support) SetTableToProcessingAndTriggerUpdate(ctx context.Context, id core.IDAndVersion) (string, error) {
	token, err := s.status.ResetTableStatus(ctx, id)
	if err != nil {
		return "", err
	}
	if s.trigger != nil {
		s.trigger(ctx, id)
	}
	return token, nil
}

// AttemptToSetTableStatusToAvailable marks id AVAILABLE if token is current.
func (s *Support) AttemptToSetTableStatusToAvailable(ctx context.Context, id core.IDAndVersion, token, etag string) error {
	return s.status.AttemptToSetTableStatusToAvailable(ctx, id, token, etag)
}

// AttemptToSetTableStatusToFailed marks id PROCESSING_FAILED if token is current.
func (s *Support) AttemptToSetTableStatusToFailed(ctx context.Context, id core.IDAndVersion, token string, cause error) error {
	return s.status.AttemptToSetTableStatusToFailed(ctx, id, token, cause.Error(), "")
}

// AttemptToUpdateTableProgress records progress if token is current.
func (s *Support) AttemptToUpdateTableProgress(ctx context.Context, id core.IDAndVersion, token, message string, current, total int64) error {
	return s.status.AttemptToUpdateTableProgress(ctx, id, token, message, current, total)
}

// GetTableStatus returns the status of id.
func (s *Support) GetTableStatus(ctx context.Context, id core.IDAndVersion) (*core.TableStatus, error) {
	return s.status.GetTableStatus(ctx, id)
}

// DeleteTableStatus removes the status of id.
func (s *Support) DeleteTableStatus(ctx context.Context, id core.IDAndVersion) error {
	return s.status.DeleteTableStatus(ctx, id)
}
