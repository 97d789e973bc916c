package journals

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
)

// PostingLineInput describes a journal line for a posting request.
type PostingLineInput struct {
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	DocumentType string
	DocumentID   uuid.UUID
	OccurredAt   time.Time
	Memo         string
	PostedBy     int64
	Lines        []PostingLineInput
}

// Validate runs the structural checks that need no database: identity fields
// plus the registry line-set rules (two lines minimum, single-sided lines,
// exact balance at currency precision).
func (in PostingInput) Validate() error {
	if in.DocumentType == "" {
		return errors.New("accounting: document type required")
	}
	if in.DocumentID == uuid.Nil {
		return errors.New("accounting: document id required")
	}
	if in.OccurredAt.IsZero() {
		return errors.New("accounting: posting date required")
	}
	return accounts.ValidateLineSet(registryLines(in.Lines))
}

func registryLines(lines []PostingLineInput) []accounts.Line {
	out := make([]accounts.Line, 0, len(lines))
	for _, line := range lines {
		out = append(out, accounts.Line{
			AccountCode: line.AccountCode,
			Debit:       line.Debit,
			Credit:      line.Credit,
		})
	}
	return out
}

// ReverseInput wraps parameters for a compensating entry.
type ReverseInput struct {
	EntryID      int64
	ReversalDate time.Time
	Memo         string
	ActorID      int64
}
