package invoices

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the invoice lifecycle state.
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusPosted Status = "POSTED"
	StatusPaid   Status = "PAID"
	StatusVoid   Status = "VOID"
)

// DocType is the sequence document type for invoice numbers.
const DocType = "INV"

// Invoice is a sales document. Draft invoices carry no number; the number is
// allocated when the invoice posts.
type Invoice struct {
	ID            uuid.UUID
	InvoiceNumber string
	CustomerName  string
	Status        Status
	InvoiceDate   time.Time
	Memo          string
	Total         decimal.Decimal
	PaidTotal     decimal.Decimal
	JournalID     *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Lines         []InvoiceLine
}

// Outstanding is the open balance still to be settled.
func (i Invoice) Outstanding() decimal.Decimal {
	return i.Total.Sub(i.PaidTotal)
}

// InvoiceLine is one billed row. ItemID is nil for service lines that move
// no stock.
type InvoiceLine struct {
	ID          int64
	InvoiceID   uuid.UUID
	ItemID      *int64
	Description string
	Qty         decimal.Decimal
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
	// CostAmount is the cost of goods sold recognised for the line at
	// posting time; zero for service lines.
	CostAmount decimal.Decimal
}
