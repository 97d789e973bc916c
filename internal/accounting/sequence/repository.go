package sequence

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository owns the sequence_counters rows. The increment is a single
// atomic upsert so no two callers ever observe the same value for a key.
type Repository interface {
	Increment(ctx context.Context, docType, periodKey string) (int64, error)
	IncrementTx(ctx context.Context, tx pgx.Tx, docType, periodKey string) (int64, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const incrementSQL = `INSERT INTO sequence_counters (doc_type, period_key, last_value)
VALUES ($1, $2, 1)
ON CONFLICT (doc_type, period_key)
DO UPDATE SET last_value = sequence_counters.last_value + 1
RETURNING last_value`

func (r *repository) Increment(ctx context.Context, docType, periodKey string) (int64, error) {
	var value int64
	err := r.db.QueryRow(ctx, incrementSQL, docType, periodKey).Scan(&value)
	return value, err
}

func (r *repository) IncrementTx(ctx context.Context, tx pgx.Tx, docType, periodKey string) (int64, error) {
	var value int64
	err := tx.QueryRow(ctx, incrementSQL, docType, periodKey).Scan(&value)
	return value, err
}
