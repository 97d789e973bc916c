package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

// Line is the account-and-amount pair checked by ValidateLineSet. Exactly one
// of Debit or Credit must be positive.
type Line struct {
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// AuditPort abstracts the audit sink.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Registry validates account references and line sets for the posting engine.
type Registry struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewRegistry builds a Registry.
func NewRegistry(repo Repository, audit AuditPort) *Registry {
	return &Registry{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (r *Registry) WithNow(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// List returns every account ordered by code.
func (r *Registry) List(ctx context.Context) ([]Account, error) {
	return r.repo.List(ctx)
}

// CreateInput carries fields for a new account.
type CreateInput struct {
	Code     string
	Name     string
	Type     AccountType
	ParentID *int64
	ActorID  int64
}

// Create registers a new active account.
func (r *Registry) Create(ctx context.Context, in CreateInput) (Account, error) {
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return Account{}, errors.New("accounts: code required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return Account{}, errors.New("accounts: name required")
	}
	if !in.Type.Valid() {
		return Account{}, fmt.Errorf("accounts: invalid type %q", in.Type)
	}
	account, err := r.repo.Insert(ctx, Account{
		Code:     code,
		Name:     strings.TrimSpace(in.Name),
		Type:     in.Type,
		ParentID: in.ParentID,
		IsActive: true,
	})
	if err != nil {
		return Account{}, err
	}
	if r.audit != nil {
		_ = r.audit.Record(ctx, internalShared.AuditLog{
			ActorID:  in.ActorID,
			Action:   "account.create",
			Entity:   "account",
			EntityID: account.Code,
			After:    map[string]any{"name": account.Name, "type": string(account.Type), "is_active": true},
			At:       r.now(),
		})
	}
	return account, nil
}

// Resolve returns the account for code, failing when missing or inactive.
func (r *Registry) Resolve(ctx context.Context, code string) (Account, error) {
	account, err := r.repo.GetByCode(ctx, code)
	if err != nil {
		return Account{}, err
	}
	if !account.IsActive {
		return Account{}, shared.ErrUnknownAccount
	}
	return account, nil
}

// ResolveTx behaves like Resolve inside a caller-owned transaction so posting
// sees a consistent account snapshot.
func (r *Registry) ResolveTx(ctx context.Context, tx pgx.Tx, code string) (Account, error) {
	account, err := r.repo.GetByCodeTx(ctx, tx, code)
	if err != nil {
		return Account{}, err
	}
	if !account.IsActive {
		return Account{}, shared.ErrUnknownAccount
	}
	return account, nil
}

// Deactivate flips the account inactive. Deactivation is the only removal
// path once the account has posted lines.
func (r *Registry) Deactivate(ctx context.Context, code string, actorID int64) error {
	if err := r.repo.SetActive(ctx, code, false); err != nil {
		return err
	}
	if r.audit != nil {
		_ = r.audit.Record(ctx, internalShared.AuditLog{
			ActorID:  actorID,
			Action:   "account.deactivate",
			Entity:   "account",
			EntityID: code,
			Before:   map[string]any{"is_active": true},
			After:    map[string]any{"is_active": false},
			At:       r.now(),
		})
	}
	return nil
}

// Delete removes an account that has never been posted to.
func (r *Registry) Delete(ctx context.Context, code string, actorID int64) error {
	used, err := r.repo.HasPostedLines(ctx, code)
	if err != nil {
		return err
	}
	if used {
		return shared.ErrAccountInUse
	}
	if err := r.repo.Delete(ctx, code); err != nil {
		return err
	}
	if r.audit != nil {
		_ = r.audit.Record(ctx, internalShared.AuditLog{
			ActorID:  actorID,
			Action:   "account.delete",
			Entity:   "account",
			EntityID: code,
			Before:   map[string]any{"code": code},
			At:       r.now(),
		})
	}
	return nil
}

// ValidateLineSet checks the structural and balancing rules for a journal
// line set: at least two lines, exactly one positive side per line, amounts
// at currency precision, and debit total exactly equal to credit total.
func ValidateLineSet(lines []Line) error {
	if len(lines) < 2 {
		return shared.ErrTooFewLines
	}
	debit := decimal.Zero
	credit := decimal.Zero
	for idx, line := range lines {
		if strings.TrimSpace(line.AccountCode) == "" {
			return fmt.Errorf("accounts: line %d missing account code", idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("%w: line %d negative amount", shared.ErrInvalidAmount, idx)
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return fmt.Errorf("%w: line %d requires exactly one of debit or credit", shared.ErrInvalidAmount, idx)
		}
		if !internalShared.ValidMoney(line.Debit) || !internalShared.ValidMoney(line.Credit) {
			return fmt.Errorf("%w: line %d exceeds currency precision", shared.ErrInvalidAmount, idx)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return shared.ErrUnbalanced
	}
	return nil
}
