package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Config groups costing policy settings.
type Config struct {
	// AllowNegativeStock permits issues beyond on-hand quantity. Disabled
	// by default; negative on-hand also forces the average cost to be kept
	// as-is, so enable only for backorder-style flows.
	AllowNegativeStock bool
}

// Ledger maintains per-item on-hand quantity and moving-average unit cost.
// Movements for the same item are serialized by a row lock held for the
// whole read-modify-write.
type Ledger struct {
	repo  Repository
	audit AuditPort
	cfg   Config
	now   func() time.Time
}

// NewLedger builds a Ledger.
func NewLedger(repo Repository, audit AuditPort, cfg Config) *Ledger {
	return &Ledger{repo: repo, audit: audit, cfg: cfg, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (l *Ledger) WithNow(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

// ReceiveInput describes an inbound movement.
type ReceiveInput struct {
	ItemID   int64
	Qty      decimal.Decimal
	UnitCost decimal.Decimal
	Doc      DocRef
}

// IssueInput describes an outbound movement costed at the current average.
type IssueInput struct {
	ItemID int64
	Qty    decimal.Decimal
	Doc    DocRef
}

// AdjustInput describes a signed quantity correction.
type AdjustInput struct {
	ItemID   int64
	DeltaQty decimal.Decimal
	// UnitCost applies only to increases; decreases cost out at the
	// current average.
	UnitCost decimal.Decimal
	Doc      DocRef
}

// ReceiveTx posts an inbound movement inside the caller's transaction,
// recomputing the weighted average:
// avg' = (onHand*avg + qty*unitCost) / (onHand + qty).
func (l *Ledger) ReceiveTx(ctx context.Context, tx pgx.Tx, in ReceiveInput) (StockMovement, error) {
	if in.ItemID == 0 {
		return StockMovement{}, errors.New("inventory: item required")
	}
	if !in.Qty.IsPositive() {
		return StockMovement{}, ErrInvalidQuantity
	}
	if in.UnitCost.IsNegative() {
		return StockMovement{}, ErrInvalidUnitCost
	}
	state, err := l.repo.GetStateForUpdate(ctx, tx, in.ItemID)
	if err != nil {
		return StockMovement{}, err
	}
	newQty := state.OnHandQty.Add(in.Qty)
	totalValue := state.TotalValue().Add(in.Qty.Mul(in.UnitCost))
	state.AvgUnitCost = totalValue.DivRound(newQty, CostPrecision)
	state.OnHandQty = newQty
	if err := l.repo.UpdateState(ctx, tx, state); err != nil {
		return StockMovement{}, err
	}
	return l.repo.InsertMovement(ctx, tx, StockMovement{
		ItemID:             in.ItemID,
		Direction:          DirectionIn,
		Qty:                in.Qty,
		UnitCost:           in.UnitCost,
		SourceDocumentType: in.Doc.Type,
		SourceDocumentID:   in.Doc.ID,
		OccurredAt:         in.Doc.OccurredAt,
	})
}

// IssueTx posts an outbound movement inside the caller's transaction. The
// cost of goods sold is qty times the average at time of issue; the average
// itself is unchanged.
func (l *Ledger) IssueTx(ctx context.Context, tx pgx.Tx, in IssueInput) (Issue, error) {
	if in.ItemID == 0 {
		return Issue{}, errors.New("inventory: item required")
	}
	if !in.Qty.IsPositive() {
		return Issue{}, ErrInvalidQuantity
	}
	state, err := l.repo.GetStateForUpdate(ctx, tx, in.ItemID)
	if err != nil {
		return Issue{}, err
	}
	if !l.cfg.AllowNegativeStock && in.Qty.GreaterThan(state.OnHandQty) {
		return Issue{}, fmt.Errorf("%w: item %d has %s on hand, requested %s",
			ErrInsufficientStock, in.ItemID, state.OnHandQty, in.Qty)
	}
	cogs := internalShared.RoundMoney(in.Qty.Mul(state.AvgUnitCost))
	state.OnHandQty = state.OnHandQty.Sub(in.Qty)
	if err := l.repo.UpdateState(ctx, tx, state); err != nil {
		return Issue{}, err
	}
	movement, err := l.repo.InsertMovement(ctx, tx, StockMovement{
		ItemID:             in.ItemID,
		Direction:          DirectionOut,
		Qty:                in.Qty,
		UnitCost:           state.AvgUnitCost,
		SourceDocumentType: in.Doc.Type,
		SourceDocumentID:   in.Doc.ID,
		OccurredAt:         in.Doc.OccurredAt,
	})
	if err != nil {
		return Issue{}, err
	}
	return Issue{Movement: movement, COGSAmount: cogs}, nil
}

// AdjustTx wraps ReceiveTx or IssueTx depending on the sign of DeltaQty;
// used by stock adjustments and opname variance postings.
func (l *Ledger) AdjustTx(ctx context.Context, tx pgx.Tx, in AdjustInput) (Adjustment, error) {
	if in.DeltaQty.IsZero() {
		return Adjustment{}, ErrInvalidQuantity
	}
	if in.DeltaQty.IsPositive() {
		movement, err := l.ReceiveTx(ctx, tx, ReceiveInput{
			ItemID:   in.ItemID,
			Qty:      in.DeltaQty,
			UnitCost: in.UnitCost,
			Doc:      in.Doc,
		})
		if err != nil {
			return Adjustment{}, err
		}
		return Adjustment{
			Movement: movement,
			Amount:   internalShared.RoundMoney(in.DeltaQty.Mul(in.UnitCost)),
		}, nil
	}
	issue, err := l.IssueTx(ctx, tx, IssueInput{
		ItemID: in.ItemID,
		Qty:    in.DeltaQty.Neg(),
		Doc:    in.Doc,
	})
	if err != nil {
		return Adjustment{}, err
	}
	return Adjustment{Movement: issue.Movement, Amount: issue.COGSAmount}, nil
}

// StateTx reads an item's cost state inside the caller's transaction, taking
// the same row lock the movement operations take. Opname posting uses it so
// the variance and its valuation come from one consistent read.
func (l *Ledger) StateTx(ctx context.Context, tx pgx.Tx, itemID int64) (ItemCostState, error) {
	return l.repo.GetStateForUpdate(ctx, tx, itemID)
}

// State returns the current cost state for an item. Items that never moved
// report zero quantity and cost.
func (l *Ledger) State(ctx context.Context, itemID int64) (ItemCostState, error) {
	state, err := l.repo.GetState(ctx, itemID)
	if errors.Is(err, ErrStateNotFound) {
		return ItemCostState{ItemID: itemID, OnHandQty: decimal.Zero, AvgUnitCost: decimal.Zero}, nil
	}
	return state, err
}

// Movements lists recent movements for an item, newest first.
func (l *Ledger) Movements(ctx context.Context, itemID int64, limit int) ([]StockMovement, error) {
	return l.repo.ListMovements(ctx, itemID, limit)
}

func (l *Ledger) auditMovement(ctx context.Context, m StockMovement) {
	if l.audit == nil {
		return
	}
	_ = l.audit.Record(ctx, internalShared.AuditLog{
		Action:   fmt.Sprintf("inventory.%s", m.Direction),
		Entity:   "stock_movement",
		EntityID: fmt.Sprintf("%d", m.ID),
		After: map[string]any{
			"item_id":       m.ItemID,
			"qty":           m.Qty.String(),
			"unit_cost":     m.UnitCost.String(),
			"document_type": m.SourceDocumentType,
			"document_id":   m.SourceDocumentID.String(),
		},
		At: l.now(),
	})
}

// NewDocRef is a convenience constructor for movement source references.
func NewDocRef(docType string, id uuid.UUID, occurredAt time.Time) DocRef {
	return DocRef{Type: docType, ID: id, OccurredAt: occurredAt}
}
