package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind distinguishes customer receipts from supplier disbursements.
type Kind string

const (
	KindReceipt      Kind = "RECEIPT"
	KindDisbursement Kind = "DISBURSEMENT"
)

// DocType is the sequence document type for payment numbers.
const DocType = "PAY"

// Payment settles part of a posted invoice or bill. Payments post
// immediately; there is no draft state.
type Payment struct {
	ID            uuid.UUID
	PaymentNumber string
	Kind          Kind
	DocumentID    uuid.UUID
	Amount        decimal.Decimal
	PaymentDate   time.Time
	Memo          string
	JournalID     int64
	CreatedAt     time.Time
}
