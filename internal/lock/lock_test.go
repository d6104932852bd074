package lock

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaptable/pkg/core"
)

func isUnavailable(err error) bool {
	var lu *core.LockUnavailableError
	return errors.As(err, &lu)
}

func TestMemory_Exclusive(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	release, err := m.TryExclusive(ctx, "a")
	require.NoError(t, err)

	_, err = m.TryExclusive(ctx, "a")
	assert.True(t, isUnavailable(err))
	_, err = m.TryShared(ctx, "a")
	assert.True(t, isUnavailable(err))

	other, err := m.TryExclusive(ctx, "b")
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := m.TryExclusive(ctx, "a")
	require.NoError(t, err)
	again()
}

func TestMemory_Shared(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	r1, err := m.TryShared(ctx, "a")
	require.NoError(t, err)
	r2, err := m.TryShared(ctx, "a")
	require.NoError(t, err)

	_, err = m.TryExclusive(ctx, "a")
	assert.True(t, isUnavailable(err))
	assert.True(t, core.IsRecoverable(err))

	r1()
	r2()

	ex, err := m.TryExclusive(ctx, "a")
	require.NoError(t, err)
	ex()
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemory().TryExclusive(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrySharedAll_ReleasesOnFailure(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	blocker, err := m.TryExclusive(ctx, "c")
	require.NoError(t, err)

	_, err = TrySharedAll(ctx, m, "a", "b", "c")
	require.True(t, isUnavailable(err))

	// a and b must have been released again.
	ra, err := TryExclusiveAll(ctx, m, "a", "b")
	require.NoError(t, err)
	ra()
	blocker()

	all, err := TrySharedAll(ctx, m, "a", "b", "c")
	require.NoError(t, err)
	all()
}

func TestKey_Stable(t *testing.T) {
	assert.Equal(t, Key("T123"), Key("T123"))
	assert.NotEqual(t, Key("T123"), Key("T124"))
}

func TestPostgres_TryExclusive(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	k := Key("T1")
	mock.ExpectQuery("SELECT pg_try_advisory_lock($1)").
		WithArgs(k).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec("SELECT pg_advisory_unlock($1)").
		WithArgs(k).
		WillReturnResult(sqlmock.NewResult(0, 1))

	p := NewPostgres(db, nil)
	release, err := p.TryExclusive(context.Background(), "T1")
	require.NoError(t, err)
	release()
	release()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_TrySharedUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT pg_try_advisory_lock_shared($1)").
		WithArgs(Key("T2")).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock_shared"}).AddRow(false))

	p := NewPostgres(db, nil)
	_, err = p.TryShared(context.Background(), "T2")
	require.True(t, isUnavailable(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT pg_try_advisory_lock($1)").
		WithArgs(Key("T3")).
		WillReturnError(errors.New("connection reset"))

	_, err = NewPostgres(db, nil).TryExclusive(context.Background(), "T3")
	require.Error(t, err)
	assert.False(t, isUnavailable(err))
	assert.Contains(t, err.Error(), "connection reset")
}
