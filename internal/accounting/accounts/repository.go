package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// Repository encapsulates DB operations for the chart of accounts.
type Repository interface {
	List(ctx context.Context) ([]Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	GetByCodeTx(ctx context.Context, tx pgx.Tx, code string) (Account, error)
	Insert(ctx context.Context, a Account) (Account, error)
	SetActive(ctx context.Context, code string, active bool) error
	HasPostedLines(ctx context.Context, code string) (bool, error)
	Delete(ctx context.Context, code string) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, code, name, type, parent_id, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrUnknownAccount
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) GetByCode(ctx context.Context, code string) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
}

func (r *repository) GetByCodeTx(ctx context.Context, tx pgx.Tx, code string) (Account, error) {
	return scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
}

func (r *repository) Insert(ctx context.Context, a Account) (Account, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO accounts (code, name, type, parent_id, is_active)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`, a.Code, a.Name, a.Type, a.ParentID, a.IsActive)
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Account{}, err
	}
	return a, nil
}

func (r *repository) SetActive(ctx context.Context, code string, active bool) error {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET is_active=$2, updated_at=NOW() WHERE code=$1`, code, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrUnknownAccount
	}
	return nil
}

func (r *repository) HasPostedLines(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM journal_lines jl JOIN accounts a ON a.id = jl.account_id WHERE a.code = $1)`, code).Scan(&exists)
	return exists, err
}

func (r *repository) Delete(ctx context.Context, code string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE code=$1`, code)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrUnknownAccount
	}
	return nil
}
