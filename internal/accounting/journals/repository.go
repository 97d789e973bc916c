package journals

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

const postAttempts = 3

// Repository encapsulates DB operations for journal entries. The ledger is
// append-only: there are no update or delete statements here.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
	InsertEntry(ctx context.Context, tx pgx.Tx, entry JournalEntry) (JournalEntry, error)
	InsertLines(ctx context.Context, tx pgx.Tx, entryID int64, lines []JournalLine) ([]JournalLine, error)
	GetEntryTx(ctx context.Context, tx pgx.Tx, entryID int64) (JournalEntry, error)
	GetEntry(ctx context.Context, entryID int64) (JournalEntry, error)
	List(ctx context.Context, limit, offset int) ([]JournalEntry, error)
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

const entryColumns = `id, entry_number, document_type, document_id, occurred_at, memo, posted_by, reversal_of, created_at`

func (r *repository) InsertEntry(ctx context.Context, tx pgx.Tx, entry JournalEntry) (JournalEntry, error) {
	row := tx.QueryRow(ctx, `INSERT INTO journal_entries (entry_number, document_type, document_id, occurred_at, memo, posted_by, reversal_of)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at`,
		entry.EntryNumber, entry.DocumentType, entry.DocumentID, entry.OccurredAt, entry.Memo, entry.PostedBy, entry.ReversalOf)
	if err := row.Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *repository) InsertLines(ctx context.Context, tx pgx.Tx, entryID int64, lines []JournalLine) ([]JournalLine, error) {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		line.JournalID = entryID
		err := tx.QueryRow(ctx, `INSERT INTO journal_lines (je_id, account_id, debit, credit, description)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
			entryID, line.AccountID, line.Debit.StringFixed(2), line.Credit.StringFixed(2), line.Description).Scan(&line.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

const entryQuery = `SELECT ` + entryColumns + ` FROM journal_entries WHERE id=$1`

const linesQuery = `SELECT jl.id, jl.je_id, jl.account_id, a.code, jl.debit::text, jl.credit::text, jl.description
FROM journal_lines jl JOIN accounts a ON a.id = jl.account_id
WHERE jl.je_id=$1 ORDER BY jl.id ASC`

func (r *repository) GetEntryTx(ctx context.Context, tx pgx.Tx, entryID int64) (JournalEntry, error) {
	entry, err := scanEntry(tx.QueryRow(ctx, entryQuery, entryID))
	if err != nil {
		return JournalEntry{}, err
	}
	rows, err := tx.Query(ctx, linesQuery, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines, err = collectLines(rows)
	return entry, err
}

func (r *repository) GetEntry(ctx context.Context, entryID int64) (JournalEntry, error) {
	entry, err := scanEntry(r.pool.QueryRow(ctx, entryQuery, entryID))
	if err != nil {
		return JournalEntry{}, err
	}
	rows, err := r.pool.Query(ctx, linesQuery, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines, err = collectLines(rows)
	return entry, err
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]JournalEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries ORDER BY id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var entry JournalEntry
	err := row.Scan(&entry.ID, &entry.EntryNumber, &entry.DocumentType, &entry.DocumentID,
		&entry.OccurredAt, &entry.Memo, &entry.PostedBy, &entry.ReversalOf, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	return entry, nil
}

func collectLines(rows pgx.Rows) ([]JournalLine, error) {
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var line JournalLine
		var debit, credit string
		if err := rows.Scan(&line.ID, &line.JournalID, &line.AccountID, &line.AccountCode, &debit, &credit, &line.Description); err != nil {
			return nil, err
		}
		var err error
		if line.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if line.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
