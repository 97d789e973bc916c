package bills

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

// Repository persists bills and their lines.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
	Insert(ctx context.Context, bill Bill) (Bill, error)
	Get(ctx context.Context, id uuid.UUID) (Bill, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Bill, error)
	MarkPostedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, number string, journalID int64) error
	ApplyPaymentTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, paidTotal decimal.Decimal, status Status) error
	MarkVoidTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]Bill, error)
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

func (r *repository) Insert(ctx context.Context, bill Bill) (Bill, error) {
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `INSERT INTO purchase_bills (id, supplier_name, status, bill_date, memo, total, paid_total)
VALUES ($1, $2, $3, $4, $5, $6, 0) RETURNING created_at, updated_at`,
			bill.ID, bill.SupplierName, bill.Status, bill.BillDate, bill.Memo, bill.Total.StringFixed(2))
		if err := row.Scan(&bill.CreatedAt, &bill.UpdatedAt); err != nil {
			return fmt.Errorf("procurement: insert bill: %w", err)
		}
		for i := range bill.Lines {
			line := &bill.Lines[i]
			line.BillID = bill.ID
			err := tx.QueryRow(ctx, `INSERT INTO purchase_bill_lines (bill_id, item_id, description, qty, unit_cost, amount)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
				bill.ID, line.ItemID, line.Description, line.Qty.String(), line.UnitCost.String(), line.Amount.StringFixed(2)).
				Scan(&line.ID)
			if err != nil {
				return fmt.Errorf("procurement: insert bill line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Bill{}, err
	}
	return bill, nil
}

const billColumns = `id, COALESCE(bill_number, ''), supplier_name, status, bill_date, memo, total::text, paid_total::text, journal_id, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Bill, error) {
	bill, err := scanBill(r.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM purchase_bills WHERE id=$1`, id))
	if err != nil {
		return Bill{}, err
	}
	bill.Lines, err = r.lines(ctx, r.pool, id)
	return bill, err
}

func (r *repository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Bill, error) {
	bill, err := scanBill(tx.QueryRow(ctx, `SELECT `+billColumns+` FROM purchase_bills WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Bill{}, err
	}
	bill.Lines, err = r.lines(ctx, tx, id)
	return bill, err
}

func (r *repository) MarkPostedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, number string, journalID int64) error {
	_, err := tx.Exec(ctx, `UPDATE purchase_bills SET status=$2, bill_number=$3, journal_id=$4, updated_at=NOW() WHERE id=$1`,
		id, StatusPosted, number, journalID)
	return err
}

func (r *repository) ApplyPaymentTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, paidTotal decimal.Decimal, status Status) error {
	_, err := tx.Exec(ctx, `UPDATE purchase_bills SET paid_total=$2, status=$3, updated_at=NOW() WHERE id=$1`,
		id, paidTotal.StringFixed(2), status)
	return err
}

func (r *repository) MarkVoidTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE purchase_bills SET status=$2, updated_at=NOW() WHERE id=$1`, id, StatusVoid)
	return err
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]Bill, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+billColumns+` FROM purchase_bills ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("procurement: list bills: %w", err)
	}
	defer rows.Close()
	var out []Bill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, bill)
	}
	return out, rows.Err()
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *repository) lines(ctx context.Context, q querier, id uuid.UUID) ([]BillLine, error) {
	rows, err := q.Query(ctx, `SELECT id, bill_id, item_id, description, qty::text, unit_cost::text, amount::text
FROM purchase_bill_lines WHERE bill_id=$1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("procurement: query bill lines: %w", err)
	}
	defer rows.Close()
	var out []BillLine
	for rows.Next() {
		var line BillLine
		var qty, cost, amount string
		if err := rows.Scan(&line.ID, &line.BillID, &line.ItemID, &line.Description, &qty, &cost, &amount); err != nil {
			return nil, fmt.Errorf("procurement: scan bill line: %w", err)
		}
		if line.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if line.UnitCost, err = decimal.NewFromString(cost); err != nil {
			return nil, err
		}
		if line.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func scanBill(row pgx.Row) (Bill, error) {
	var bill Bill
	var total, paid string
	err := row.Scan(&bill.ID, &bill.BillNumber, &bill.SupplierName, &bill.Status, &bill.BillDate,
		&bill.Memo, &total, &paid, &bill.JournalID, &bill.CreatedAt, &bill.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, shared.ErrNotFound
		}
		return Bill{}, fmt.Errorf("procurement: scan bill: %w", err)
	}
	if bill.Total, err = decimal.NewFromString(total); err != nil {
		return Bill{}, err
	}
	if bill.PaidTotal, err = decimal.NewFromString(paid); err != nil {
		return Bill{}, err
	}
	return bill, nil
}
