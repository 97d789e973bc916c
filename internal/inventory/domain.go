package inventory

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction enumerates stock movement directions.
type Direction string

const (
	// DirectionIn represents an inbound movement.
	DirectionIn Direction = "IN"
	// DirectionOut represents an outbound movement.
	DirectionOut Direction = "OUT"
)

// CostPrecision is the decimal precision kept for the moving average unit
// cost. Journal amounts derived from it are rounded to currency precision.
const CostPrecision = 6

// ItemCostState tracks per-item quantity on hand and moving-average unit
// cost. Mutated only by the Ledger, serialized per item.
type ItemCostState struct {
	ItemID      int64
	OnHandQty   decimal.Decimal
	AvgUnitCost decimal.Decimal
	UpdatedAt   time.Time
}

// TotalValue is the carrying value of the on-hand quantity.
func (s ItemCostState) TotalValue() decimal.Decimal {
	return s.OnHandQty.Mul(s.AvgUnitCost)
}

// DocRef ties a movement back to its source document.
type DocRef struct {
	Type       string
	ID         uuid.UUID
	OccurredAt time.Time
}

// StockMovement is one append-only entry in the movement log.
type StockMovement struct {
	ID                 int64
	ItemID             int64
	Direction          Direction
	Qty                decimal.Decimal
	UnitCost           decimal.Decimal
	SourceDocumentType string
	SourceDocumentID   uuid.UUID
	OccurredAt         time.Time
	CreatedAt          time.Time
}

// Issue bundles an outbound movement with the cost recognised for it.
type Issue struct {
	Movement   StockMovement
	COGSAmount decimal.Decimal
}

// Adjustment bundles an adjustment movement with its absolute value effect.
type Adjustment struct {
	Movement StockMovement
	Amount   decimal.Decimal
}

// ErrInsufficientStock is returned when an issue exceeds on-hand quantity.
var ErrInsufficientStock = errors.New("inventory: insufficient stock")

// ErrInvalidQuantity indicates a non-positive or zero quantity.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrInvalidUnitCost indicates a negative unit cost.
var ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")
