package periods

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

type memoryRepo struct {
	locks map[string]PeriodLock
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{locks: make(map[string]PeriodLock)}
}

func (r *memoryRepo) IsLocked(ctx context.Context, periodKey string) (bool, error) {
	_, ok := r.locks[periodKey]
	return ok, nil
}

func (r *memoryRepo) IsLockedTx(ctx context.Context, _ pgx.Tx, periodKey string) (bool, error) {
	return r.IsLocked(ctx, periodKey)
}

func (r *memoryRepo) Insert(ctx context.Context, lock PeriodLock) (bool, error) {
	if _, ok := r.locks[lock.PeriodKey]; ok {
		return false, nil
	}
	r.locks[lock.PeriodKey] = lock
	return true, nil
}

func (r *memoryRepo) Delete(ctx context.Context, periodKey string) (bool, error) {
	if _, ok := r.locks[periodKey]; !ok {
		return false, nil
	}
	delete(r.locks, periodKey)
	return true, nil
}

func (r *memoryRepo) List(ctx context.Context) ([]PeriodLock, error) {
	out := make([]PeriodLock, 0, len(r.locks))
	for _, l := range r.locks {
		out = append(out, l)
	}
	return out, nil
}

func TestLockRejectsPostingDate(t *testing.T) {
	repo := newMemoryRepo()
	guard := NewGuard(repo, nil)
	ctx := context.Background()

	january := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, guard.AssertOpen(ctx, january))

	require.NoError(t, guard.Lock(ctx, "2026-01", 7))
	require.ErrorIs(t, guard.AssertOpen(ctx, january), shared.ErrPeriodLocked)

	// Adjacent period stays open.
	require.NoError(t, guard.AssertOpen(ctx, january.AddDate(0, 1, 0)))
}

func TestLockUnlockIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	guard := NewGuard(repo, nil)
	ctx := context.Background()

	require.NoError(t, guard.Lock(ctx, "2026-03", 1))
	require.NoError(t, guard.Lock(ctx, "2026-03", 1))

	require.NoError(t, guard.Unlock(ctx, "2026-03", 1))
	require.NoError(t, guard.Unlock(ctx, "2026-03", 1))

	require.NoError(t, guard.AssertOpen(ctx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestLockValidatesKeyFormat(t *testing.T) {
	guard := NewGuard(newMemoryRepo(), nil)
	require.Error(t, guard.Lock(context.Background(), "202601", 1))
	require.Error(t, guard.Unlock(context.Background(), "2026-13", 1))
}
