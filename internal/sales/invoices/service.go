package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	accshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

// PostingEngine is the journal engine surface the invoice lifecycle needs.
type PostingEngine interface {
	PostTx(ctx context.Context, tx pgx.Tx, in journals.PostingInput) (journals.JournalEntry, error)
	ReverseTx(ctx context.Context, tx pgx.Tx, in journals.ReverseInput) (journals.JournalEntry, error)
	AuditPosted(ctx context.Context, entry journals.JournalEntry, actorID int64)
	AuditReversed(ctx context.Context, reversal journals.JournalEntry, actorID int64)
}

// CostingLedger issues and restocks inventory inside the posting transaction.
type CostingLedger interface {
	IssueTx(ctx context.Context, tx pgx.Tx, in inventory.IssueInput) (inventory.Issue, error)
	ReceiveTx(ctx context.Context, tx pgx.Tx, in inventory.ReceiveInput) (inventory.StockMovement, error)
}

// SequencePort allocates invoice numbers.
type SequencePort interface {
	NextTx(ctx context.Context, tx pgx.Tx, docType string, occurredAt time.Time) (string, error)
}

// IdempotencyPort guards against double-posting the same document.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Accounts maps the lifecycle's postings onto the chart of accounts.
type Accounts struct {
	Receivable string
	Revenue    string
	Inventory  string
	COGS       string
}

// Service drives the invoice state machine. A POSTED transition runs number
// allocation, inventory issue, and the journal posting in one transaction.
type Service struct {
	repo        Repository
	engine      PostingEngine
	ledger      CostingLedger
	sequences   SequencePort
	idempotency IdempotencyPort
	accounts    Accounts
	now         func() time.Time
}

func NewService(repo Repository, engine PostingEngine, ledger CostingLedger, sequences SequencePort, idempotency IdempotencyPort, accounts Accounts) *Service {
	return &Service{
		repo:        repo,
		engine:      engine,
		ledger:      ledger,
		sequences:   sequences,
		idempotency: idempotency,
		accounts:    accounts,
		now:         time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// LineInput is one requested invoice row.
type LineInput struct {
	ItemID      *int64
	Description string
	Qty         decimal.Decimal
	UnitPrice   decimal.Decimal
}

// CreateInput describes a draft invoice.
type CreateInput struct {
	CustomerName string
	InvoiceDate  time.Time
	Memo         string
	Lines        []LineInput
}

// CreateDraft stores a new invoice in DRAFT without any ledger effect.
func (s *Service) CreateDraft(ctx context.Context, in CreateInput) (Invoice, error) {
	if in.CustomerName == "" {
		return Invoice{}, errors.New("sales: customer name required")
	}
	if in.InvoiceDate.IsZero() {
		return Invoice{}, errors.New("sales: invoice date required")
	}
	if len(in.Lines) == 0 {
		return Invoice{}, errors.New("sales: at least one line required")
	}
	inv := Invoice{
		ID:           uuid.New(),
		CustomerName: in.CustomerName,
		Status:       StatusDraft,
		InvoiceDate:  in.InvoiceDate,
		Memo:         in.Memo,
		Total:        decimal.Zero,
		PaidTotal:    decimal.Zero,
	}
	for _, line := range in.Lines {
		if !line.Qty.IsPositive() {
			return Invoice{}, inventory.ErrInvalidQuantity
		}
		if line.UnitPrice.IsNegative() {
			return Invoice{}, accshared.ErrInvalidAmount
		}
		amount := internalShared.RoundMoney(line.Qty.Mul(line.UnitPrice))
		inv.Lines = append(inv.Lines, InvoiceLine{
			ItemID:      line.ItemID,
			Description: line.Description,
			Qty:         line.Qty,
			UnitPrice:   line.UnitPrice,
			Amount:      amount,
		})
		inv.Total = inv.Total.Add(amount)
	}
	if !inv.Total.IsPositive() {
		return Invoice{}, accshared.ErrInvalidAmount
	}
	return s.repo.Insert(ctx, inv)
}

// Post moves a DRAFT invoice to POSTED: allocates the invoice number, issues
// stock for item lines, and posts receivable, revenue, and cost lines, all in
// one transaction.
func (s *Service) Post(ctx context.Context, id uuid.UUID, actorID int64) (Invoice, error) {
	key := fmt.Sprintf("invoice:post:%s", id)
	if err := s.idempotency.CheckAndInsert(ctx, key, "sales"); err != nil {
		return Invoice{}, err
	}
	var inv Invoice
	var entry journals.JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var txErr error
		inv, txErr = s.repo.GetForUpdateTx(ctx, tx, id)
		if txErr != nil {
			return txErr
		}
		if inv.Status != StatusDraft {
			return fmt.Errorf("%w: invoice %s is %s", accshared.ErrInvalidStatus, id, inv.Status)
		}
		number, txErr := s.sequences.NextTx(ctx, tx, DocType, inv.InvoiceDate)
		if txErr != nil {
			return txErr
		}

		doc := inventory.NewDocRef(DocType, inv.ID, inv.InvoiceDate)
		lines := []journals.PostingLineInput{
			{AccountCode: s.accounts.Receivable, Debit: inv.Total, Description: "Invoice " + number},
			{AccountCode: s.accounts.Revenue, Credit: inv.Total, Description: "Invoice " + number},
		}
		for i := range inv.Lines {
			line := &inv.Lines[i]
			if line.ItemID == nil {
				continue
			}
			issue, txErr := s.ledger.IssueTx(ctx, tx, inventory.IssueInput{ItemID: *line.ItemID, Qty: line.Qty, Doc: doc})
			if txErr != nil {
				return txErr
			}
			if txErr = s.repo.SetLineCostTx(ctx, tx, line.ID, issue.COGSAmount); txErr != nil {
				return txErr
			}
			line.CostAmount = issue.COGSAmount
			lines = append(lines, inventory.IssueLines(issue, line.Description, s.accounts.COGS, s.accounts.Inventory)...)
		}

		entry, txErr = s.engine.PostTx(ctx, tx, journals.PostingInput{
			DocumentType: DocType,
			DocumentID:   inv.ID,
			OccurredAt:   inv.InvoiceDate,
			Memo:         inv.Memo,
			PostedBy:     actorID,
			Lines:        lines,
		})
		if txErr != nil {
			return txErr
		}
		if txErr = s.repo.MarkPostedTx(ctx, tx, inv.ID, number, entry.ID); txErr != nil {
			return txErr
		}
		inv.Status = StatusPosted
		inv.InvoiceNumber = number
		inv.JournalID = &entry.ID
		return nil
	})
	if err != nil {
		_ = s.idempotency.Delete(ctx, key)
		return Invoice{}, err
	}
	s.engine.AuditPosted(ctx, entry, actorID)
	return inv, nil
}

// Void reverses a POSTED, unpaid invoice: the journal entry is compensated,
// issued stock is received back at its issue cost, and the invoice becomes
// VOID. Paid invoices cannot be voided.
func (s *Service) Void(ctx context.Context, id uuid.UUID, voidDate time.Time, actorID int64) (Invoice, error) {
	var inv Invoice
	var reversal journals.JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var txErr error
		inv, txErr = s.repo.GetForUpdateTx(ctx, tx, id)
		if txErr != nil {
			return txErr
		}
		if inv.Status != StatusPosted {
			return fmt.Errorf("%w: invoice %s is %s", accshared.ErrInvalidStatus, id, inv.Status)
		}
		if !inv.PaidTotal.IsZero() {
			return fmt.Errorf("%w: invoice %s has payments applied", accshared.ErrInvalidStatus, id)
		}
		if inv.JournalID == nil {
			return accshared.ErrJournalNotFound
		}
		reversal, txErr = s.engine.ReverseTx(ctx, tx, journals.ReverseInput{
			EntryID:      *inv.JournalID,
			ReversalDate: voidDate,
			ActorID:      actorID,
		})
		if txErr != nil {
			return txErr
		}
		doc := inventory.NewDocRef(DocType+":VOID", inv.ID, voidDate)
		for _, line := range inv.Lines {
			if line.ItemID == nil || !line.CostAmount.IsPositive() {
				continue
			}
			unitCost := line.CostAmount.DivRound(line.Qty, inventory.CostPrecision)
			if _, txErr = s.ledger.ReceiveTx(ctx, tx, inventory.ReceiveInput{
				ItemID:   *line.ItemID,
				Qty:      line.Qty,
				UnitCost: unitCost,
				Doc:      doc,
			}); txErr != nil {
				return txErr
			}
		}
		if txErr = s.repo.MarkVoidTx(ctx, tx, inv.ID); txErr != nil {
			return txErr
		}
		inv.Status = StatusVoid
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.engine.AuditReversed(ctx, reversal, actorID)
	return inv, nil
}

// ApplyPaymentTx settles part of a POSTED invoice inside the caller's
// transaction. Paying past the open balance is rejected; reaching zero flips
// the invoice to PAID.
func (s *Service) ApplyPaymentTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (Invoice, error) {
	if !amount.IsPositive() || !internalShared.ValidMoney(amount) {
		return Invoice{}, accshared.ErrInvalidAmount
	}
	inv, err := s.repo.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return Invoice{}, err
	}
	if inv.Status != StatusPosted {
		return Invoice{}, fmt.Errorf("%w: invoice %s is %s", accshared.ErrInvalidStatus, id, inv.Status)
	}
	if amount.GreaterThan(inv.Outstanding()) {
		return Invoice{}, fmt.Errorf("%w: open balance %s, payment %s", accshared.ErrOverpayment, inv.Outstanding(), amount)
	}
	inv.PaidTotal = inv.PaidTotal.Add(amount)
	if inv.PaidTotal.Equal(inv.Total) {
		inv.Status = StatusPaid
	}
	if err := s.repo.ApplyPaymentTx(ctx, tx, id, inv.PaidTotal, inv.Status); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// Get loads one invoice with its lines.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return s.repo.Get(ctx, id)
}

// List returns recent invoices without lines.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Invoice, error) {
	return s.repo.List(ctx, limit, offset)
}
