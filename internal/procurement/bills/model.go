package bills

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the bill lifecycle state.
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusPosted Status = "POSTED"
	StatusPaid   Status = "PAID"
	StatusVoid   Status = "VOID"
)

// DocType is the sequence document type for bill numbers.
const DocType = "BILL"

// Bill is a supplier document. Posting receives stocked lines into inventory
// and books the payable.
type Bill struct {
	ID           uuid.UUID
	BillNumber   string
	SupplierName string
	Status       Status
	BillDate     time.Time
	Memo         string
	Total        decimal.Decimal
	PaidTotal    decimal.Decimal
	JournalID    *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Lines        []BillLine
}

// Outstanding is the open balance still to be settled.
func (b Bill) Outstanding() decimal.Decimal {
	return b.Total.Sub(b.PaidTotal)
}

// BillLine is one billed row. ItemID is nil for expense lines that move no
// stock; for stocked lines UnitCost is the purchase cost fed to the moving
// average.
type BillLine struct {
	ID          int64
	BillID      uuid.UUID
	ItemID      *int64
	Description string
	Qty         decimal.Decimal
	UnitCost    decimal.Decimal
	Amount      decimal.Decimal
}
