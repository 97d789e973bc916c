package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

const postAttempts = 3

// Repository persists payments.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
	InsertTx(ctx context.Context, tx pgx.Tx, p Payment) (Payment, error)
	Get(ctx context.Context, id uuid.UUID) (Payment, error)
	ListForDocument(ctx context.Context, documentID uuid.UUID) ([]Payment, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return db.WithTxRetry(ctx, r.pool, postAttempts, fn)
}

func (r *repository) InsertTx(ctx context.Context, tx pgx.Tx, p Payment) (Payment, error) {
	err := tx.QueryRow(ctx, `INSERT INTO payments (id, payment_number, kind, document_id, amount, payment_date, memo, journal_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`,
		p.ID, p.PaymentNumber, p.Kind, p.DocumentID, p.Amount.StringFixed(2), p.PaymentDate, p.Memo, p.JournalID).
		Scan(&p.CreatedAt)
	if err != nil {
		return Payment{}, fmt.Errorf("payments: insert: %w", err)
	}
	return p, nil
}

const paymentColumns = `id, payment_number, kind, document_id, amount::text, payment_date, memo, journal_id, created_at`

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id))
}

func (r *repository) ListForDocument(ctx context.Context, documentID uuid.UUID) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE document_id=$1 ORDER BY created_at`, documentID)
	if err != nil {
		return nil, fmt.Errorf("payments: list: %w", err)
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	var amount string
	err := row.Scan(&p.ID, &p.PaymentNumber, &p.Kind, &p.DocumentID, &amount, &p.PaymentDate, &p.Memo, &p.JournalID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, shared.ErrNotFound
		}
		return Payment{}, fmt.Errorf("payments: scan: %w", err)
	}
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return Payment{}, err
	}
	return p, nil
}
