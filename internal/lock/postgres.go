package lock

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/cespare/xxhash/v2"

	"github.com/leapstack-labs/leaptable/pkg/core"
)

// Postgres is a Manager backed by Postgres session advisory locks. Every held
// lock pins its own connection, so the pool must allow as many connections
// as locks held concurrently.
type Postgres struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgres creates an advisory lock manager on db.
func NewPostgres(db *sql.DB, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Postgres{db: db, logger: logger}
}

// Key maps a lock name onto the 64-bit advisory lock key space.
func Key(name string) int64 {
	return int64(xxhash.Sum64String(name)) //nolint:gosec // wrap-around is intended
}

// TryExclusive implements Manager.
func (p *Postgres) TryExclusive(ctx context.Context, key string) (Release, error) {
	return p.try(ctx, key, "pg_try_advisory_lock", "pg_advisory_unlock")
}

// TryShared implements Manager.
func (p *Postgres) TryShared(ctx context.Context, key string) (Release, error) {
	return p.try(ctx, key, "pg_try_advisory_lock_shared", "pg_advisory_unlock_shared")
}

func (p *Postgres) try(ctx context.Context, key, lockFn, unlockFn string) (Release, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get lock connection: %w", err)
	}

	k := Key(key)
	var ok bool
	if err := conn.QueryRowContext(ctx, "SELECT "+lockFn+"($1)", k).Scan(&ok); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		_ = conn.Close()
		return nil, &core.LockUnavailableError{Key: key}
	}

	return once(func() {
		// The caller's context may already be cancelled by now.
		if _, err := conn.ExecContext(context.Background(), "SELECT "+unlockFn+"($1)", k); err != nil {
			p.logger.Warn("failed to release advisory lock", slog.String("key", key), slog.String("error", err.Error()))
		}
		_ = conn.Close()
	}), nil
}

var _ Manager = (*Postgres)(nil)
