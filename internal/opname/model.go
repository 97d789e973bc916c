package opname

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the counting session lifecycle state. POSTED is terminal;
// corrections run through a new session or a manual adjustment.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusCounting  Status = "COUNTING"
	StatusSubmitted Status = "SUBMITTED"
	StatusPosted    Status = "POSTED"
	StatusCancelled Status = "CANCELLED"
)

// DocType is the sequence document type for opname numbers.
const DocType = "OPN"

// Session is one physical stock count.
type Session struct {
	ID            uuid.UUID
	SessionNumber string
	Status        Status
	Notes         string
	CreatedBy     int64
	JournalID     *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Items         []CountItem
}

// CountItem is one item's recorded count. SnapshotQty is the system on-hand
// quantity captured when the count was recorded; the posting adjusts by
// CountedQty minus SnapshotQty.
type CountItem struct {
	SessionID   uuid.UUID
	ItemID      int64
	SnapshotQty decimal.Decimal
	CountedQty  decimal.Decimal
	RecordedAt  time.Time
}

// Variance is the signed difference the posting must correct.
func (c CountItem) Variance() decimal.Decimal {
	return c.CountedQty.Sub(c.SnapshotQty)
}
