package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrConcurrencyConflict indicates transient lock contention between two
// units of work. It is the only error kind callers may retry.
var ErrConcurrencyConflict = errors.New("platform/db: concurrency conflict")

// WithTx executes a function within a transaction using the RepeatableRead
// isolation level. The transaction rolls back on any error exit path.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(context.Context, pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, tx); err != nil {
		return MapConflict(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return MapConflict(fmt.Errorf("platform/db: commit tx: %w", err))
	}

	return nil
}

// WithTxRetry runs fn through WithTx, retrying only on ErrConcurrencyConflict.
// Attempts below 1 are treated as 1.
func WithTxRetry(ctx context.Context, pool *pgxpool.Pool, attempts int, fn func(context.Context, pgx.Tx) error) error {
	return retryConflict(ctx, attempts, func() error {
		return WithTx(ctx, pool, fn)
	})
}

// retryConflict retries run with linear backoff while it keeps returning
// ErrConcurrencyConflict. Any other outcome ends the loop immediately.
func retryConflict(ctx context.Context, attempts int, run func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i) * 50 * time.Millisecond):
			}
		}
		err = run()
		if err == nil || !errors.Is(err, ErrConcurrencyConflict) {
			return err
		}
	}
	return err
}

// MapConflict rewrites PostgreSQL serialization and lock-contention failures
// into ErrConcurrencyConflict so callers can distinguish transient contention
// from invariant violations.
func MapConflict(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %s", ErrConcurrencyConflict, pgErr.Code)
		}
	}
	return err
}
