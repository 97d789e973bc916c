package opname

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

// Repository persists counting sessions and their items.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
	Insert(ctx context.Context, s Session) (Session, error)
	Get(ctx context.Context, id uuid.UUID) (Session, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Session, error)
	UpsertCountTx(ctx context.Context, tx pgx.Tx, item CountItem) error
	SetStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status Status) error
	MarkPostedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, number string, journalID *int64) error
	List(ctx context.Context, limit, offset int) ([]Session, error)
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

func (r *repository) Insert(ctx context.Context, s Session) (Session, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO opname_sessions (id, status, notes, created_by)
VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`,
		s.ID, s.Status, s.Notes, s.CreatedBy).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Session{}, fmt.Errorf("opname: insert session: %w", err)
	}
	return s, nil
}

const sessionColumns = `id, COALESCE(session_number, ''), status, notes, created_by, journal_id, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM opname_sessions WHERE id=$1`, id))
	if err != nil {
		return Session{}, err
	}
	s.Items, err = r.items(ctx, r.pool, id)
	return s, err
}

func (r *repository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Session, error) {
	s, err := scanSession(tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM opname_sessions WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Session{}, err
	}
	s.Items, err = r.items(ctx, tx, id)
	return s, err
}

func (r *repository) UpsertCountTx(ctx context.Context, tx pgx.Tx, item CountItem) error {
	_, err := tx.Exec(ctx, `INSERT INTO opname_items (session_id, item_id, snapshot_qty, counted_qty, recorded_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (session_id, item_id) DO UPDATE SET snapshot_qty = EXCLUDED.snapshot_qty,
counted_qty = EXCLUDED.counted_qty, recorded_at = EXCLUDED.recorded_at`,
		item.SessionID, item.ItemID, item.SnapshotQty.String(), item.CountedQty.String(), item.RecordedAt)
	if err != nil {
		return fmt.Errorf("opname: upsert count: %w", err)
	}
	return nil
}

func (r *repository) SetStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status Status) error {
	_, err := tx.Exec(ctx, `UPDATE opname_sessions SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	return err
}

func (r *repository) MarkPostedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, number string, journalID *int64) error {
	_, err := tx.Exec(ctx, `UPDATE opname_sessions SET status=$2, session_number=$3, journal_id=$4, updated_at=NOW() WHERE id=$1`,
		id, StatusPosted, number, journalID)
	return err
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]Session, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+` FROM opname_sessions ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("opname: list sessions: %w", err)
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *repository) items(ctx context.Context, q querier, id uuid.UUID) ([]CountItem, error) {
	rows, err := q.Query(ctx, `SELECT session_id, item_id, snapshot_qty::text, counted_qty::text, recorded_at
FROM opname_items WHERE session_id=$1 ORDER BY item_id`, id)
	if err != nil {
		return nil, fmt.Errorf("opname: query items: %w", err)
	}
	defer rows.Close()
	var out []CountItem
	for rows.Next() {
		var item CountItem
		var snapshot, counted string
		if err := rows.Scan(&item.SessionID, &item.ItemID, &snapshot, &counted, &item.RecordedAt); err != nil {
			return nil, fmt.Errorf("opname: scan item: %w", err)
		}
		if item.SnapshotQty, err = decimal.NewFromString(snapshot); err != nil {
			return nil, err
		}
		if item.CountedQty, err = decimal.NewFromString(counted); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.SessionNumber, &s.Status, &s.Notes, &s.CreatedBy, &s.JournalID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, shared.ErrNotFound
		}
		return Session{}, fmt.Errorf("opname: scan session: %w", err)
	}
	return s, nil
}
