package invoices

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

// postAttempts bounds transaction retries on lock contention.
const postAttempts = 3

// Repository persists invoices and their lines.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
	Insert(ctx context.Context, inv Invoice) (Invoice, error)
	Get(ctx context.Context, id uuid.UUID) (Invoice, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Invoice, error)
	MarkPostedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, number string, journalID int64) error
	SetLineCostTx(ctx context.Context, tx pgx.Tx, lineID int64, cost decimal.Decimal) error
	ApplyPaymentTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, paidTotal decimal.Decimal, status Status) error
	MarkVoidTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]Invoice, error)
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

func (r *repository) Insert(ctx context.Context, inv Invoice) (Invoice, error) {
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `INSERT INTO sales_invoices (id, customer_name, status, invoice_date, memo, total, paid_total)
VALUES ($1, $2, $3, $4, $5, $6, 0) RETURNING created_at, updated_at`,
			inv.ID, inv.CustomerName, inv.Status, inv.InvoiceDate, inv.Memo, inv.Total.StringFixed(2))
		if err := row.Scan(&inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return fmt.Errorf("sales: insert invoice: %w", err)
		}
		for i := range inv.Lines {
			line := &inv.Lines[i]
			line.InvoiceID = inv.ID
			err := tx.QueryRow(ctx, `INSERT INTO sales_invoice_lines (invoice_id, item_id, description, qty, unit_price, amount, cost_amount)
VALUES ($1, $2, $3, $4, $5, $6, 0) RETURNING id`,
				inv.ID, line.ItemID, line.Description, line.Qty.String(), line.UnitPrice.String(), line.Amount.StringFixed(2)).
				Scan(&line.ID)
			if err != nil {
				return fmt.Errorf("sales: insert invoice line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

const invoiceColumns = `id, COALESCE(invoice_number, ''), customer_name, status, invoice_date, memo, total::text, paid_total::text, journal_id, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM sales_invoices WHERE id=$1`, id))
	if err != nil {
		return Invoice{}, err
	}
	inv.Lines, err = r.lines(ctx, r.pool, id)
	return inv, err
}

func (r *repository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Invoice, error) {
	inv, err := scanInvoice(tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM sales_invoices WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Invoice{}, err
	}
	inv.Lines, err = r.lines(ctx, tx, id)
	return inv, err
}

func (r *repository) MarkPostedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, number string, journalID int64) error {
	_, err := tx.Exec(ctx, `UPDATE sales_invoices SET status=$2, invoice_number=$3, journal_id=$4, updated_at=NOW() WHERE id=$1`,
		id, StatusPosted, number, journalID)
	return err
}

func (r *repository) SetLineCostTx(ctx context.Context, tx pgx.Tx, lineID int64, cost decimal.Decimal) error {
	_, err := tx.Exec(ctx, `UPDATE sales_invoice_lines SET cost_amount=$2 WHERE id=$1`, lineID, cost.StringFixed(2))
	return err
}

func (r *repository) ApplyPaymentTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, paidTotal decimal.Decimal, status Status) error {
	_, err := tx.Exec(ctx, `UPDATE sales_invoices SET paid_total=$2, status=$3, updated_at=NOW() WHERE id=$1`,
		id, paidTotal.StringFixed(2), status)
	return err
}

func (r *repository) MarkVoidTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE sales_invoices SET status=$2, updated_at=NOW() WHERE id=$1`, id, StatusVoid)
	return err
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM sales_invoices ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sales: list invoices: %w", err)
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *repository) lines(ctx context.Context, q querier, id uuid.UUID) ([]InvoiceLine, error) {
	rows, err := q.Query(ctx, `SELECT id, invoice_id, item_id, description, qty::text, unit_price::text, amount::text, cost_amount::text
FROM sales_invoice_lines WHERE invoice_id=$1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("sales: query invoice lines: %w", err)
	}
	defer rows.Close()
	var out []InvoiceLine
	for rows.Next() {
		var line InvoiceLine
		var qty, price, amount, cost string
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.ItemID, &line.Description, &qty, &price, &amount, &cost); err != nil {
			return nil, fmt.Errorf("sales: scan invoice line: %w", err)
		}
		if line.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if line.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		if line.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		if line.CostAmount, err = decimal.NewFromString(cost); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var total, paid string
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.CustomerName, &inv.Status, &inv.InvoiceDate,
		&inv.Memo, &total, &paid, &inv.JournalID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, shared.ErrNotFound
		}
		return Invoice{}, fmt.Errorf("sales: scan invoice: %w", err)
	}
	if inv.Total, err = decimal.NewFromString(total); err != nil {
		return Invoice{}, err
	}
	if inv.PaidTotal, err = decimal.NewFromString(paid); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}
