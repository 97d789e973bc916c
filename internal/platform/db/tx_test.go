package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestRetryConflictStopsOnSuccess(t *testing.T) {
	calls := 0
	err := retryConflict(context.Background(), 3, func() error {
		calls++
		if calls < 2 {
			return fmt.Errorf("%w: 40001", ErrConcurrencyConflict)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestRetryConflictExhaustsAttempts(t *testing.T) {
	calls := 0
	err := retryConflict(context.Background(), 3, func() error {
		calls++
		return fmt.Errorf("%w: 40001", ErrConcurrencyConflict)
	})
	require.ErrorIs(t, err, ErrConcurrencyConflict)
	require.Equal(t, 3, calls)
}

func TestRetryConflictDoesNotRetryOtherErrors(t *testing.T) {
	sentinel := errors.New("constraint violated")
	calls := 0
	err := retryConflict(context.Background(), 3, func() error {
		calls++
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 1, calls)
}

func TestRetryConflictHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retryConflict(ctx, 3, func() error {
		calls++
		cancel()
		return fmt.Errorf("%w: 40P01", ErrConcurrencyConflict)
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestMapConflict(t *testing.T) {
	require.NoError(t, MapConflict(nil))

	serialization := &pgconn.PgError{Code: "40001"}
	require.ErrorIs(t, MapConflict(serialization), ErrConcurrencyConflict)

	lockTimeout := &pgconn.PgError{Code: "55P03"}
	require.ErrorIs(t, MapConflict(lockTimeout), ErrConcurrencyConflict)

	unique := &pgconn.PgError{Code: "23505"}
	require.NotErrorIs(t, MapConflict(unique), ErrConcurrencyConflict)
}
