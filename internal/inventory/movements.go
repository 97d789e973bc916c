package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
)

// ManualDocType tags stock entered through the API rather than through a
// posted document.
const ManualDocType = "ADJ"

// PostingEngine is the journal engine surface manual movements need.
type PostingEngine interface {
	PostTx(ctx context.Context, tx pgx.Tx, in journals.PostingInput) (journals.JournalEntry, error)
	AuditPosted(ctx context.Context, entry journals.JournalEntry, actorID int64)
}

// PeriodGuard rejects movements dated inside locked periods.
type PeriodGuard interface {
	AssertOpenTx(ctx context.Context, tx pgx.Tx, date time.Time) error
}

// MovementAccounts maps manual movements onto the chart of accounts. Gains
// and write-offs both book against the adjustment account.
type MovementAccounts struct {
	Inventory  string
	Adjustment string
}

// Movements is the orchestrator for manual stock entries. Every entry runs
// the period check and books its journal lines in the same transaction the
// cost state changes in, so the subledger never moves without the GL.
type Movements struct {
	ledger   *Ledger
	engine   PostingEngine
	guard    PeriodGuard
	accounts MovementAccounts
}

// NewMovements builds the manual movement orchestrator.
func NewMovements(ledger *Ledger, engine PostingEngine, guard PeriodGuard, accounts MovementAccounts) *Movements {
	return &Movements{ledger: ledger, engine: engine, guard: guard, accounts: accounts}
}

// ManualReceiveInput describes a manual stock receipt.
type ManualReceiveInput struct {
	ItemID     int64
	Qty        decimal.Decimal
	UnitCost   decimal.Decimal
	OccurredAt time.Time
	Memo       string
	ActorID    int64
}

// ManualIssueInput describes a manual write-off costed at the current
// average.
type ManualIssueInput struct {
	ItemID     int64
	Qty        decimal.Decimal
	OccurredAt time.Time
	Memo       string
	ActorID    int64
}

// ManualAdjustInput describes a signed manual quantity correction.
type ManualAdjustInput struct {
	ItemID     int64
	DeltaQty   decimal.Decimal
	UnitCost   decimal.Decimal
	OccurredAt time.Time
	Memo       string
	ActorID    int64
}

// ManualMovement pairs a stock movement with the journal entry that books
// it. JournalID is nil for movements with no value effect.
type ManualMovement struct {
	Movement  StockMovement
	JournalID *int64
}

// Receive records a manual receipt, debiting inventory against the
// adjustment account.
func (s *Movements) Receive(ctx context.Context, in ManualReceiveInput) (ManualMovement, error) {
	doc := NewDocRef(ManualDocType, uuid.New(), in.OccurredAt)
	var out ManualMovement
	var entry journals.JournalEntry
	var posted bool
	err := s.ledger.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if txErr := s.guard.AssertOpenTx(ctx, tx, in.OccurredAt); txErr != nil {
			return txErr
		}
		movement, txErr := s.ledger.ReceiveTx(ctx, tx, ReceiveInput{
			ItemID:   in.ItemID,
			Qty:      in.Qty,
			UnitCost: in.UnitCost,
			Doc:      doc,
		})
		if txErr != nil {
			return txErr
		}
		out.Movement = movement
		desc := fmt.Sprintf("Manual receipt item %d", in.ItemID)
		lines := ReceiptLines(movement, desc, s.accounts.Inventory, s.accounts.Adjustment)
		entry, posted, txErr = s.postLines(ctx, tx, doc, in.Memo, in.ActorID, lines)
		if posted {
			out.JournalID = &entry.ID
		}
		return txErr
	})
	if err != nil {
		return ManualMovement{}, err
	}
	s.finish(ctx, out.Movement, entry, posted, in.ActorID)
	return out, nil
}

// Issue records a manual write-off, recognising the issued value on the
// adjustment account.
func (s *Movements) Issue(ctx context.Context, in ManualIssueInput) (ManualMovement, error) {
	doc := NewDocRef(ManualDocType, uuid.New(), in.OccurredAt)
	var out ManualMovement
	var entry journals.JournalEntry
	var posted bool
	err := s.ledger.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if txErr := s.guard.AssertOpenTx(ctx, tx, in.OccurredAt); txErr != nil {
			return txErr
		}
		issue, txErr := s.ledger.IssueTx(ctx, tx, IssueInput{
			ItemID: in.ItemID,
			Qty:    in.Qty,
			Doc:    doc,
		})
		if txErr != nil {
			return txErr
		}
		out.Movement = issue.Movement
		desc := fmt.Sprintf("Manual write-off item %d", in.ItemID)
		lines := IssueLines(issue, desc, s.accounts.Adjustment, s.accounts.Inventory)
		entry, posted, txErr = s.postLines(ctx, tx, doc, in.Memo, in.ActorID, lines)
		if posted {
			out.JournalID = &entry.ID
		}
		return txErr
	})
	if err != nil {
		return ManualMovement{}, err
	}
	s.finish(ctx, out.Movement, entry, posted, in.ActorID)
	return out, nil
}

// Adjust records a signed correction, booking gains and losses against the
// adjustment account.
func (s *Movements) Adjust(ctx context.Context, in ManualAdjustInput) (ManualMovement, error) {
	doc := NewDocRef(ManualDocType, uuid.New(), in.OccurredAt)
	var out ManualMovement
	var entry journals.JournalEntry
	var posted bool
	err := s.ledger.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if txErr := s.guard.AssertOpenTx(ctx, tx, in.OccurredAt); txErr != nil {
			return txErr
		}
		adj, txErr := s.ledger.AdjustTx(ctx, tx, AdjustInput{
			ItemID:   in.ItemID,
			DeltaQty: in.DeltaQty,
			UnitCost: in.UnitCost,
			Doc:      doc,
		})
		if txErr != nil {
			return txErr
		}
		out.Movement = adj.Movement
		desc := fmt.Sprintf("Manual adjustment item %d", in.ItemID)
		lines := AdjustmentLines(adj, desc, s.accounts.Inventory, s.accounts.Adjustment)
		entry, posted, txErr = s.postLines(ctx, tx, doc, in.Memo, in.ActorID, lines)
		if posted {
			out.JournalID = &entry.ID
		}
		return txErr
	})
	if err != nil {
		return ManualMovement{}, err
	}
	s.finish(ctx, out.Movement, entry, posted, in.ActorID)
	return out, nil
}

// postLines books the movement's lines unless the value effect is zero, in
// which case there is nothing to put on the GL.
func (s *Movements) postLines(ctx context.Context, tx pgx.Tx, doc DocRef, memo string, actorID int64, lines []journals.PostingLineInput) (journals.JournalEntry, bool, error) {
	if len(lines) == 0 || lines[0].Debit.Add(lines[0].Credit).IsZero() {
		return journals.JournalEntry{}, false, nil
	}
	entry, err := s.engine.PostTx(ctx, tx, journals.PostingInput{
		DocumentType: doc.Type,
		DocumentID:   doc.ID,
		OccurredAt:   doc.OccurredAt,
		Memo:         memo,
		PostedBy:     actorID,
		Lines:        lines,
	})
	if err != nil {
		return journals.JournalEntry{}, false, err
	}
	return entry, true, nil
}

func (s *Movements) finish(ctx context.Context, movement StockMovement, entry journals.JournalEntry, posted bool, actorID int64) {
	s.ledger.auditMovement(ctx, movement)
	if posted {
		s.engine.AuditPosted(ctx, entry, actorID)
	}
}
