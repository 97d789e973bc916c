package journals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JournalEntry is one immutable, balanced posting in the ledger. Entries are
// created once and never updated; a mistake is corrected by a compensating
// entry referencing the original through ReversalOf.
type JournalEntry struct {
	ID           int64
	EntryNumber  string
	DocumentType string
	DocumentID   uuid.UUID
	OccurredAt   time.Time
	Memo         string
	PostedBy     int64
	ReversalOf   *int64
	CreatedAt    time.Time
	Lines        []JournalLine
}

// JournalLine stores the debit or credit amount for an account. Exactly one
// of Debit/Credit is positive. Lines are owned by their entry.
type JournalLine struct {
	ID          int64
	JournalID   int64
	AccountID   int64
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}
