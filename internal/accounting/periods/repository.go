package periods

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository encapsulates DB operations for period locks.
type Repository interface {
	IsLocked(ctx context.Context, periodKey string) (bool, error)
	IsLockedTx(ctx context.Context, tx pgx.Tx, periodKey string) (bool, error)
	Insert(ctx context.Context, lock PeriodLock) (bool, error)
	Delete(ctx context.Context, periodKey string) (bool, error)
	List(ctx context.Context) ([]PeriodLock, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) IsLocked(ctx context.Context, periodKey string) (bool, error) {
	var locked bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM period_locks WHERE period_key=$1)`, periodKey).Scan(&locked)
	return locked, err
}

func (r *repository) IsLockedTx(ctx context.Context, tx pgx.Tx, periodKey string) (bool, error) {
	var locked bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM period_locks WHERE period_key=$1)`, periodKey).Scan(&locked)
	return locked, err
}

// Insert adds the lock row, reporting false when the period was already locked.
func (r *repository) Insert(ctx context.Context, lock PeriodLock) (bool, error) {
	cmd, err := r.db.Exec(ctx, `INSERT INTO period_locks (period_key, locked_by, locked_at)
VALUES ($1,$2,$3) ON CONFLICT (period_key) DO NOTHING`, lock.PeriodKey, lock.LockedBy, lock.LockedAt)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// Delete removes the lock row, reporting false when the period was open.
func (r *repository) Delete(ctx context.Context, periodKey string) (bool, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM period_locks WHERE period_key=$1`, periodKey)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *repository) List(ctx context.Context) ([]PeriodLock, error) {
	rows, err := r.db.Query(ctx, `SELECT period_key, locked_by, locked_at FROM period_locks ORDER BY period_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var locks []PeriodLock
	for rows.Next() {
		var l PeriodLock
		if err := rows.Scan(&l.PeriodKey, &l.LockedBy, &l.LockedAt); err != nil {
			return nil, err
		}
		locks = append(locks, l)
	}
	return locks, rows.Err()
}
