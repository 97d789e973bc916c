package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository reads aggregated ledger and document data for reporting.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const balancesQuery = `
SELECT a.code, a.name, a.type,
       COALESCE(SUM(CASE WHEN je.occurred_at < $1 THEN jl.debit - jl.credit ELSE 0 END), 0)::text AS opening,
       COALESCE(SUM(CASE WHEN je.occurred_at >= $1 AND je.occurred_at < $2 THEN jl.debit ELSE 0 END), 0)::text AS debit,
       COALESCE(SUM(CASE WHEN je.occurred_at >= $1 AND je.occurred_at < $2 THEN jl.credit ELSE 0 END), 0)::text AS credit
FROM accounts a
LEFT JOIN journal_lines jl ON jl.account_id = a.id
LEFT JOIN journal_entries je ON je.id = jl.je_id
GROUP BY a.code, a.name, a.type
ORDER BY a.code`

// AccountBalances aggregates posted journal lines per account. Activity
// strictly before the window start accumulates into Opening; the window is
// half-open [from, to).
func (r *Repository) AccountBalances(ctx context.Context, from, to time.Time) ([]AccountBalance, error) {
	rows, err := r.pool.Query(ctx, balancesQuery, from, to)
	if err != nil {
		return nil, fmt.Errorf("reports: query balances: %w", err)
	}
	defer rows.Close()

	var out []AccountBalance
	for rows.Next() {
		var acc AccountBalance
		var opening, debit, credit string
		if err := rows.Scan(&acc.Code, &acc.Name, &acc.Type, &opening, &debit, &credit); err != nil {
			return nil, fmt.Errorf("reports: scan balance: %w", err)
		}
		if acc.Opening, err = decimal.NewFromString(opening); err != nil {
			return nil, fmt.Errorf("reports: parse opening: %w", err)
		}
		if acc.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, fmt.Errorf("reports: parse debit: %w", err)
		}
		if acc.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, fmt.Errorf("reports: parse credit: %w", err)
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

const openInvoicesQuery = `
SELECT id, invoice_number, customer_name, invoice_date, (total - paid_total)::text
FROM sales_invoices
WHERE status = 'POSTED' AND invoice_date <= $1
ORDER BY invoice_date`

// OpenInvoices lists posted, not fully paid sales invoices as of a date.
func (r *Repository) OpenInvoices(ctx context.Context, asOf time.Time) ([]OpenDocument, error) {
	return r.openDocuments(ctx, openInvoicesQuery, asOf)
}

const openBillsQuery = `
SELECT id, bill_number, supplier_name, bill_date, (total - paid_total)::text
FROM purchase_bills
WHERE status = 'POSTED' AND bill_date <= $1
ORDER BY bill_date`

// OpenBills lists posted, not fully paid purchase bills as of a date.
func (r *Repository) OpenBills(ctx context.Context, asOf time.Time) ([]OpenDocument, error) {
	return r.openDocuments(ctx, openBillsQuery, asOf)
}

func (r *Repository) openDocuments(ctx context.Context, query string, asOf time.Time) ([]OpenDocument, error) {
	rows, err := r.pool.Query(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("reports: query open documents: %w", err)
	}
	defer rows.Close()

	var out []OpenDocument
	for rows.Next() {
		var doc OpenDocument
		var outstanding string
		if err := rows.Scan(&doc.ID, &doc.Number, &doc.PartyName, &doc.DocDate, &outstanding); err != nil {
			return nil, fmt.Errorf("reports: scan open document: %w", err)
		}
		if doc.Outstanding, err = decimal.NewFromString(outstanding); err != nil {
			return nil, fmt.Errorf("reports: parse outstanding: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// InsertAgingSnapshot stores one rendered aging report's bucket totals.
func (r *Repository) InsertAgingSnapshot(ctx context.Context, kind string, report AgingReport) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO aging_snapshots (kind, as_of, bucket_current, bucket_1_30, bucket_31_60, bucket_61_90, bucket_over_90, total)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		kind, report.AsOf,
		report.Buckets[BucketCurrent].StringFixed(2),
		report.Buckets[Bucket1To30].StringFixed(2),
		report.Buckets[Bucket31To60].StringFixed(2),
		report.Buckets[Bucket61To90].StringFixed(2),
		report.Buckets[BucketOver90].StringFixed(2),
		report.Total.StringFixed(2))
	if err != nil {
		return fmt.Errorf("reports: insert aging snapshot: %w", err)
	}
	return nil
}

const valuationQuery = `
SELECT i.id, i.sku, i.name, s.on_hand_qty::text, s.avg_unit_cost::text
FROM item_cost_state s
JOIN items i ON i.id = s.item_id
ORDER BY i.sku`

// ValuationRows reads current stock levels joined with the item master.
func (r *Repository) ValuationRows(ctx context.Context) ([]ValuationRow, error) {
	rows, err := r.pool.Query(ctx, valuationQuery)
	if err != nil {
		return nil, fmt.Errorf("reports: query valuation: %w", err)
	}
	defer rows.Close()

	var out []ValuationRow
	for rows.Next() {
		var row ValuationRow
		var onHand, avgCost string
		if err := rows.Scan(&row.ItemID, &row.SKU, &row.Name, &onHand, &avgCost); err != nil {
			return nil, fmt.Errorf("reports: scan valuation: %w", err)
		}
		if row.OnHand, err = decimal.NewFromString(onHand); err != nil {
			return nil, fmt.Errorf("reports: parse on hand: %w", err)
		}
		if row.AvgUnitCost, err = decimal.NewFromString(avgCost); err != nil {
			return nil, fmt.Errorf("reports: parse unit cost: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
