package tablesupport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaptable/internal/lock"
	"github.com/leapstack-labs/leaptable/internal/state"
	"github.com/leapstack-labs/leaptable/pkg/core"
)

func newSupport(t *testing.T, trigger Trigger) (*Support, lock.Manager) {
	t.Helper()
	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	locks := lock.NewMemory()
	return New(Config{Locks: locks, Status: store, Trigger: trigger}), locks
}

func TestLockKey(t *testing.T) {
	assert.Equal(t, "T123", LockKey(core.NewID(123)))
	assert.Equal(t, "T123_4", LockKey(core.NewIDWithVersion(123, 4)))
}

func TestTryRunWithTableExclusiveLock(t *testing.T) {
	s, locks := newSupport(t, nil)
	ctx := context.Background()
	id := core.NewID(1)

	ran := false
	err := s.TryRunWithTableExclusiveLock(ctx, id, func(ctx context.Context) error {
		ran = true
		// The lock is held while fn runs.
		_, err := locks.TryShared(ctx, LockKey(id))
		assert.True(t, core.IsRecoverable(err))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	// Released afterwards.
	release, err := locks.TryExclusive(ctx, LockKey(id))
	require.NoError(t, err)
	release()
}

func TestTryRunWithTableExclusiveLock_Held(t *testing.T) {
	s, locks := newSupport(t, nil)
	ctx := context.Background()
	id := core.NewID(1)

	release, err := locks.TryShared(ctx, LockKey(id))
	require.NoError(t, err)
	defer release()

	err = s.TryRunWithTableExclusiveLock(ctx, id, func(context.Context) error {
		t.Fatal("must not run without the lock")
		return nil
	})
	var lu *core.LockUnavailableError
	require.True(t, errors.As(err, &lu))
	assert.Equal(t, "T1", lu.Key)
}

func TestTryRunWithTableNonexclusiveLock(t *testing.T) {
	s, locks := newSupport(t, nil)
	ctx := context.Background()
	a, b := core.NewID(1), core.NewID(2)

	boom := errors.New("boom")
	err := s.TryRunWithTableNonexclusiveLock(ctx, func(ctx context.Context) error {
		// Shared locks admit other readers.
		r, err := locks.TryShared(ctx, LockKey(b))
		require.NoError(t, err)
		r()
		return boom
	}, a, b)
	require.ErrorIs(t, err, boom)

	release, err := lock.TryExclusiveAll(ctx, locks, LockKey(a), LockKey(b))
	require.NoError(t, err)
	release()
}

func TestStatusLifecycle(t *testing.T) {
	var triggered []core.IDAndVersion
	s, _ := newSupport(t, func(_ context.Context, id core.IDAndVersion) {
		triggered = append(triggered, id)
	})
	ctx := context.Background()
	id := core.NewID(5)

	token, err := s.SetTableToProcessingAndTriggerUpdate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []core.IDAndVersion{id}, triggered)

	require.NoError(t, s.AttemptToUpdateTableProgress(ctx, id, token, "rebuilding", 1, 2))

	newer, err := s.StartTableProcessing(ctx, id)
	require.NoError(t, err)
	assert.Len(t, triggered, 1)

	err = s.AttemptToSetTableStatusToAvailable(ctx, id, token, "etag")
	assert.True(t, core.IsRecoverable(err), "stale token")

	require.NoError(t, s.AttemptToSetTableStatusToFailed(ctx, id, newer, errors.New("bad input")))
	st, err := s.GetTableStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.TableStateProcessingFailed, st.State)
	assert.Equal(t, "bad input", st.ErrorMessage)

	require.NoError(t, s.DeleteTableStatus(ctx, id))
	_, err = s.GetTableStatus(ctx, id)
	assert.True(t, core.IsNotFound(err))
}
