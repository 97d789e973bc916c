package payments

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
	"github.com/meridian-erp/meridian-erp/internal/procurement/bills"
	"github.com/meridian-erp/meridian-erp/internal/sales/invoices"
	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

// PostingEngine is the journal engine surface payments need.
type PostingEngine interface {
	PostTx(ctx context.Context, tx pgx.Tx, in journals.PostingInput) (journals.JournalEntry, error)
	AuditPosted(ctx context.Context, entry journals.JournalEntry, actorID int64)
}

// InvoicePort settles receipts against posted invoices.
type InvoicePort interface {
	ApplyPaymentTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (invoices.Invoice, error)
}

// BillPort settles disbursements against posted bills.
type BillPort interface {
	ApplyPaymentTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (bills.Bill, error)
}

// SequencePort allocates payment numbers.
type SequencePort interface {
	NextTx(ctx context.Context, tx pgx.Tx, docType string, occurredAt time.Time) (string, error)
}

// IdempotencyPort guards replayed payment requests.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Accounts maps settlement postings onto the chart of accounts.
type Accounts struct {
	Cash       string
	Receivable string
	Payable    string
}

// Service records settlements. Each payment posts in one transaction: the
// document's open balance moves, the cash entry books, and the payment row
// lands together.
type Service struct {
	repo        Repository
	engine      PostingEngine
	invoices    InvoicePort
	bills       BillPort
	sequences   SequencePort
	idempotency IdempotencyPort
	accounts    Accounts
}

func NewService(repo Repository, engine PostingEngine, invoicePort InvoicePort, billPort BillPort, sequences SequencePort, idempotency IdempotencyPort, accounts Accounts) *Service {
	return &Service{
		repo:        repo,
		engine:      engine,
		invoices:    invoicePort,
		bills:       billPort,
		sequences:   sequences,
		idempotency: idempotency,
		accounts:    accounts,
	}
}

// RecordInput describes a settlement request. IdempotencyKey is the client's
// request token; the same document legitimately receives several partial
// payments, so the key, not the document, deduplicates retries.
type RecordInput struct {
	Kind           Kind
	DocumentID     uuid.UUID
	Amount         decimal.Decimal
	PaymentDate    time.Time
	Memo           string
	ActorID        int64
	IdempotencyKey string
}

// Record settles a receipt or disbursement against its document.
func (s *Service) Record(ctx context.Context, in RecordInput) (Payment, error) {
	if in.Kind != KindReceipt && in.Kind != KindDisbursement {
		return Payment{}, errors.New("payments: kind must be RECEIPT or DISBURSEMENT")
	}
	if in.DocumentID == uuid.Nil {
		return Payment{}, errors.New("payments: document id required")
	}
	if in.PaymentDate.IsZero() {
		return Payment{}, errors.New("payments: payment date required")
	}
	if !in.Amount.IsPositive() || !internalShared.ValidMoney(in.Amount) {
		return Payment{}, accshared.ErrInvalidAmount
	}
	if in.IdempotencyKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, "payment:"+in.IdempotencyKey, "payments"); err != nil {
			return Payment{}, err
		}
	}

	payment := Payment{
		ID:          uuid.New(),
		Kind:        in.Kind,
		DocumentID:  in.DocumentID,
		Amount:      in.Amount,
		PaymentDate: in.PaymentDate,
		Memo:        in.Memo,
	}
	var entry journals.JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		number, txErr := s.sequences.NextTx(ctx, tx, DocType, in.PaymentDate)
		if txErr != nil {
			return txErr
		}
		payment.PaymentNumber = number

		var lines []journals.PostingLineInput
		switch in.Kind {
		case KindReceipt:
			if _, txErr = s.invoices.ApplyPaymentTx(ctx, tx, in.DocumentID, in.Amount); txErr != nil {
				return txErr
			}
			lines = []journals.PostingLineInput{
				{AccountCode: s.accounts.Cash, Debit: in.Amount, Description: "Receipt " + number},
				{AccountCode: s.accounts.Receivable, Credit: in.Amount, Description: "Receipt " + number},
			}
		case KindDisbursement:
			if _, txErr = s.bills.ApplyPaymentTx(ctx, tx, in.DocumentID, in.Amount); txErr != nil {
				return txErr
			}
			lines = []journals.PostingLineInput{
				{AccountCode: s.accounts.Payable, Debit: in.Amount, Description: "Payment " + number},
				{AccountCode: s.accounts.Cash, Credit: in.Amount, Description: "Payment " + number},
			}
		}

		entry, txErr = s.engine.PostTx(ctx, tx, journals.PostingInput{
			DocumentType: DocType,
			DocumentID:   payment.ID,
			OccurredAt:   in.PaymentDate,
			Memo:         in.Memo,
			PostedBy:     in.ActorID,
			Lines:        lines,
		})
		if txErr != nil {
			return txErr
		}
		payment.JournalID = entry.ID
		payment, txErr = s.repo.InsertTx(ctx, tx, payment)
		return txErr
	})
	if err != nil {
		if in.IdempotencyKey != "" {
			_ = s.idempotency.Delete(ctx, "payment:"+in.IdempotencyKey)
		}
		return Payment{}, fmt.Errorf("payments: record %s: %w", in.Kind, err)
	}
	s.engine.AuditPosted(ctx, entry, in.ActorID)
	return payment, nil
}

// Get loads one payment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Payment, error) {
	return s.repo.Get(ctx, id)
}

// ListForDocument lists a document's settlements, oldest first.
func (s *Service) ListForDocument(ctx context.Context, documentID uuid.UUID) ([]Payment, error) {
	return s.repo.ListForDocument(ctx, documentID)
}
