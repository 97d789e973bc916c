package bills

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

// PostingEngine is the journal engine surface the bill lifecycle needs.
type PostingEngine interface {
	PostTx(ctx context.Context, tx pgx.Tx, in journals.PostingInput) (journals.JournalEntry, error)
	ReverseTx(ctx context.Context, tx pgx.Tx, in journals.ReverseInput) (journals.JournalEntry, error)
	AuditPosted(ctx context.Context, entry journals.JournalEntry, actorID int64)
	AuditReversed(ctx context.Context, reversal journals.JournalEntry, actorID int64)
}

// CostingLedger receives purchased stock and issues it back on void.
type CostingLedger interface {
	ReceiveTx(ctx context.Context, tx pgx.Tx, in inventory.ReceiveInput) (inventory.StockMovement, error)
	IssueTx(ctx context.Context, tx pgx.Tx, in inventory.IssueInput) (inventory.Issue, error)
}

// SequencePort allocates bill numbers.
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
	Payable    string
	Inventory  string
	Expense    string
	Adjustment string
}

// Service drives the bill state machine.
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

// LineInput is one requested bill row.
type LineInput struct {
	ItemID      *int64
	Description string
	Qty         decimal.Decimal
	UnitCost    decimal.Decimal
}

// CreateInput describes a draft bill.
type CreateInput struct {
	SupplierName string
	BillDate     time.Time
	Memo         string
	Lines        []LineInput
}

// CreateDraft stores a new bill in DRAFT without any ledger effect.
func (s *Service) CreateDraft(ctx context.Context, in CreateInput) (Bill, error) {
	if in.SupplierName == "" {
		return Bill{}, errors.New("procurement: supplier name required")
	}
	if in.BillDate.IsZero() {
		return Bill{}, errors.New("procurement: bill date required")
	}
	if len(in.Lines) == 0 {
		return Bill{}, errors.New("procurement: at least one line required")
	}
	bill := Bill{
		ID:           uuid.New(),
		SupplierName: in.SupplierName,
		Status:       StatusDraft,
		BillDate:     in.BillDate,
		Memo:         in.Memo,
		Total:        decimal.Zero,
		PaidTotal:    decimal.Zero,
	}
	for _, line := range in.Lines {
		if !line.Qty.IsPositive() {
			return Bill{}, inventory.ErrInvalidQuantity
		}
		if line.UnitCost.IsNegative() {
			return Bill{}, inventory.ErrInvalidUnitCost
		}
		amount := internalShared.RoundMoney(line.Qty.Mul(line.UnitCost))
		bill.Lines = append(bill.Lines, BillLine{
			ItemID:      line.ItemID,
			Description: line.Description,
			Qty:         line.Qty,
			UnitCost:    line.UnitCost,
			Amount:      amount,
		})
		bill.Total = bill.Total.Add(amount)
	}
	if !bill.Total.IsPositive() {
		return Bill{}, accshared.ErrInvalidAmount
	}
	return s.repo.Insert(ctx, bill)
}

// Post moves a DRAFT bill to POSTED: allocates the bill number, receives
// stocked lines into inventory at their purchase cost, and books inventory
// or expense against the payable, all in one transaction.
func (s *Service) Post(ctx context.Context, id uuid.UUID, actorID int64) (Bill, error) {
	key := fmt.Sprintf("bill:post:%s", id)
	if err := s.idempotency.CheckAndInsert(ctx, key, "procurement"); err != nil {
		return Bill{}, err
	}
	var bill Bill
	var entry journals.JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var txErr error
		bill, txErr = s.repo.GetForUpdateTx(ctx, tx, id)
		if txErr != nil {
			return txErr
		}
		if bill.Status != StatusDraft {
			return fmt.Errorf("%w: bill %s is %s", accshared.ErrInvalidStatus, id, bill.Status)
		}
		number, txErr := s.sequences.NextTx(ctx, tx, DocType, bill.BillDate)
		if txErr != nil {
			return txErr
		}

		doc := inventory.NewDocRef(DocType, bill.ID, bill.BillDate)
		var lines []journals.PostingLineInput
		for _, line := range bill.Lines {
			if line.ItemID != nil {
				if _, txErr = s.ledger.ReceiveTx(ctx, tx, inventory.ReceiveInput{
					ItemID:   *line.ItemID,
					Qty:      line.Qty,
					UnitCost: line.UnitCost,
					Doc:      doc,
				}); txErr != nil {
					return txErr
				}
				lines = append(lines, journals.PostingLineInput{
					AccountCode: s.accounts.Inventory,
					Debit:       line.Amount,
					Description: line.Description,
				})
				continue
			}
			lines = append(lines, journals.PostingLineInput{
				AccountCode: s.accounts.Expense,
				Debit:       line.Amount,
				Description: line.Description,
			})
		}
		lines = append(lines, journals.PostingLineInput{
			AccountCode: s.accounts.Payable,
			Credit:      bill.Total,
			Description: "Bill " + number,
		})

		entry, txErr = s.engine.PostTx(ctx, tx, journals.PostingInput{
			DocumentType: DocType,
			DocumentID:   bill.ID,
			OccurredAt:   bill.BillDate,
			Memo:         bill.Memo,
			PostedBy:     actorID,
			Lines:        lines,
		})
		if txErr != nil {
			return txErr
		}
		if txErr = s.repo.MarkPostedTx(ctx, tx, bill.ID, number, entry.ID); txErr != nil {
			return txErr
		}
		bill.Status = StatusPosted
		bill.BillNumber = number
		bill.JournalID = &entry.ID
		return nil
	})
	if err != nil {
		_ = s.idempotency.Delete(ctx, key)
		return Bill{}, err
	}
	s.engine.AuditPosted(ctx, entry, actorID)
	return bill, nil
}

// Void reverses a POSTED, unpaid bill. Stock is issued back out at the
// current average cost; where that differs from the receipt value the
// reversal credited, the gap is booked to the adjustment account so the
// inventory account keeps matching the cost state.
func (s *Service) Void(ctx context.Context, id uuid.UUID, voidDate time.Time, actorID int64) (Bill, error) {
	var bill Bill
	var reversal journals.JournalEntry
	var variance journals.JournalEntry
	var variancePosted bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var txErr error
		bill, txErr = s.repo.GetForUpdateTx(ctx, tx, id)
		if txErr != nil {
			return txErr
		}
		if bill.Status != StatusPosted {
			return fmt.Errorf("%w: bill %s is %s", accshared.ErrInvalidStatus, id, bill.Status)
		}
		if !bill.PaidTotal.IsZero() {
			return fmt.Errorf("%w: bill %s has payments applied", accshared.ErrInvalidStatus, id)
		}
		if bill.JournalID == nil {
			return accshared.ErrJournalNotFound
		}
		reversal, txErr = s.engine.ReverseTx(ctx, tx, journals.ReverseInput{
			EntryID:      *bill.JournalID,
			ReversalDate: voidDate,
			ActorID:      actorID,
		})
		if txErr != nil {
			return txErr
		}
		doc := inventory.NewDocRef(DocType+":VOID", bill.ID, voidDate)
		var varianceLines []journals.PostingLineInput
		for _, line := range bill.Lines {
			if line.ItemID == nil {
				continue
			}
			issue, issueErr := s.ledger.IssueTx(ctx, tx, inventory.IssueInput{
				ItemID: *line.ItemID,
				Qty:    line.Qty,
				Doc:    doc,
			})
			if issueErr != nil {
				return issueErr
			}
			// The issue removes qty at today's average; the reversal
			// credited the original receipt value.
			diff := issue.COGSAmount.Sub(line.Amount)
			if diff.IsZero() {
				continue
			}
			desc := fmt.Sprintf("Void cost variance item %d", *line.ItemID)
			if diff.IsPositive() {
				varianceLines = append(varianceLines,
					journals.PostingLineInput{AccountCode: s.accounts.Adjustment, Debit: diff, Description: desc},
					journals.PostingLineInput{AccountCode: s.accounts.Inventory, Credit: diff, Description: desc},
				)
			} else {
				varianceLines = append(varianceLines,
					journals.PostingLineInput{AccountCode: s.accounts.Inventory, Debit: diff.Neg(), Description: desc},
					journals.PostingLineInput{AccountCode: s.accounts.Adjustment, Credit: diff.Neg(), Description: desc},
				)
			}
		}
		if len(varianceLines) > 0 {
			variance, txErr = s.engine.PostTx(ctx, tx, journals.PostingInput{
				DocumentType: DocType + ":VOID",
				DocumentID:   bill.ID,
				OccurredAt:   voidDate,
				Memo:         "Void cost variance " + bill.BillNumber,
				PostedBy:     actorID,
				Lines:        varianceLines,
			})
			if txErr != nil {
				return txErr
			}
			variancePosted = true
		}
		if txErr = s.repo.MarkVoidTx(ctx, tx, bill.ID); txErr != nil {
			return txErr
		}
		bill.Status = StatusVoid
		return nil
	})
	if err != nil {
		return Bill{}, err
	}
	s.engine.AuditReversed(ctx, reversal, actorID)
	if variancePosted {
		s.engine.AuditPosted(ctx, variance, actorID)
	}
	return bill, nil
}

// ApplyPaymentTx settles part of a POSTED bill inside the caller's
// transaction; reaching zero flips the bill to PAID.
func (s *Service) ApplyPaymentTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (Bill, error) {
	if !amount.IsPositive() || !internalShared.ValidMoney(amount) {
		return Bill{}, accshared.ErrInvalidAmount
	}
	bill, err := s.repo.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return Bill{}, err
	}
	if bill.Status != StatusPosted {
		return Bill{}, fmt.Errorf("%w: bill %s is %s", accshared.ErrInvalidStatus, id, bill.Status)
	}
	if amount.GreaterThan(bill.Outstanding()) {
		return Bill{}, fmt.Errorf("%w: open balance %s, payment %s", accshared.ErrOverpayment, bill.Outstanding(), amount)
	}
	bill.PaidTotal = bill.PaidTotal.Add(amount)
	if bill.PaidTotal.Equal(bill.Total) {
		bill.Status = StatusPaid
	}
	if err := s.repo.ApplyPaymentTx(ctx, tx, id, bill.PaidTotal, bill.Status); err != nil {
		return Bill{}, err
	}
	return bill, nil
}

// Get loads one bill with its lines.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Bill, error) {
	return s.repo.Get(ctx, id)
}

// List returns recent bills without lines.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Bill, error) {
	return s.repo.List(ctx, limit, offset)
}
