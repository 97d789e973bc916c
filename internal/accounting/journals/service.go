package journals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

// EntryDocType is the sequence document type for journal entry numbers.
const EntryDocType = "JE"

// AccountPort resolves account codes inside the posting transaction.
type AccountPort interface {
	ResolveTx(ctx context.Context, tx pgx.Tx, code string) (accounts.Account, error)
}

// SequencePort allocates entry numbers inside the posting transaction.
type SequencePort interface {
	NextTx(ctx context.Context, tx pgx.Tx, docType string, occurredAt time.Time) (string, error)
}

// PeriodGuard rejects postings dated inside locked periods.
type PeriodGuard interface {
	AssertOpenTx(ctx context.Context, tx pgx.Tx, date time.Time) error
}

// AuditPort abstracts the audit sink.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Engine is the single writer of ledger history. Validation, the period
// check, number allocation, and persistence happen inside one transaction;
// any failure leaves nothing behind, including the sequence value.
type Engine struct {
	repo      Repository
	registry  AccountPort
	sequences SequencePort
	guard     PeriodGuard
	audit     AuditPort
	now       func() time.Time
}

// NewEngine constructs the posting engine.
func NewEngine(repo Repository, registry AccountPort, sequences SequencePort, guard PeriodGuard, audit AuditPort) *Engine {
	return &Engine{repo: repo, registry: registry, sequences: sequences, guard: guard, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (e *Engine) WithNow(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// Get loads one entry with its lines.
func (e *Engine) Get(ctx context.Context, entryID int64) (JournalEntry, error) {
	return e.repo.GetEntry(ctx, entryID)
}

// List returns recent entries without lines.
func (e *Engine) List(ctx context.Context, limit, offset int) ([]JournalEntry, error) {
	return e.repo.List(ctx, limit, offset)
}

// Post creates a journal entry in its own transaction and emits the audit
// record on success.
func (e *Engine) Post(ctx context.Context, in PostingInput) (JournalEntry, error) {
	var entry JournalEntry
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var txErr error
		entry, txErr = e.PostTx(ctx, tx, in)
		return txErr
	})
	if err != nil {
		return JournalEntry{}, err
	}
	e.AuditPosted(ctx, entry, in.PostedBy)
	return entry, nil
}

// PostTx creates a journal entry inside a caller-owned transaction; document
// orchestrators use it so the posting commits or rolls back with the rest of
// their unit of work. The caller emits the audit record after commit via
// AuditPosted.
func (e *Engine) PostTx(ctx context.Context, tx pgx.Tx, in PostingInput) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	lines := make([]JournalLine, 0, len(in.Lines))
	for _, line := range in.Lines {
		account, err := e.registry.ResolveTx(ctx, tx, line.AccountCode)
		if err != nil {
			return JournalEntry{}, fmt.Errorf("accounting: line account %s: %w", line.AccountCode, err)
		}
		lines = append(lines, JournalLine{
			AccountID:   account.ID,
			AccountCode: account.Code,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	if err := e.guard.AssertOpenTx(ctx, tx, in.OccurredAt); err != nil {
		return JournalEntry{}, err
	}
	number, err := e.sequences.NextTx(ctx, tx, EntryDocType, in.OccurredAt)
	if err != nil {
		return JournalEntry{}, err
	}
	entry, err := e.repo.InsertEntry(ctx, tx, JournalEntry{
		EntryNumber:  number,
		DocumentType: in.DocumentType,
		DocumentID:   in.DocumentID,
		OccurredAt:   in.OccurredAt,
		Memo:         in.Memo,
		PostedBy:     in.PostedBy,
	})
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines, err = e.repo.InsertLines(ctx, tx, entry.ID, lines)
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// Reverse creates a compensating entry with every line's debit and credit
// swapped, dated reversalDate and guarded by that date's period lock. The
// original entry is never altered.
func (e *Engine) Reverse(ctx context.Context, in ReverseInput) (JournalEntry, error) {
	var reversal JournalEntry
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var txErr error
		reversal, txErr = e.ReverseTx(ctx, tx, in)
		return txErr
	})
	if err != nil {
		return JournalEntry{}, err
	}
	e.AuditReversed(ctx, reversal, in.ActorID)
	return reversal, nil
}

// ReverseTx creates the compensating entry inside a caller-owned transaction.
// Orchestrators use it so a void and its reversal commit together; they emit
// the audit record after commit via AuditReversed.
func (e *Engine) ReverseTx(ctx context.Context, tx pgx.Tx, in ReverseInput) (JournalEntry, error) {
	if in.EntryID == 0 {
		return JournalEntry{}, errors.New("accounting: entry id required")
	}
	if in.ReversalDate.IsZero() {
		return JournalEntry{}, errors.New("accounting: reversal date required")
	}
	original, err := e.repo.GetEntryTx(ctx, tx, in.EntryID)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := e.guard.AssertOpenTx(ctx, tx, in.ReversalDate); err != nil {
		return JournalEntry{}, err
	}
	number, err := e.sequences.NextTx(ctx, tx, EntryDocType, in.ReversalDate)
	if err != nil {
		return JournalEntry{}, err
	}
	reversal, err := e.repo.InsertEntry(ctx, tx, JournalEntry{
		EntryNumber:  number,
		DocumentType: original.DocumentType + ":REVERSAL",
		DocumentID:   uuid.New(),
		OccurredAt:   in.ReversalDate,
		Memo:         reversalMemo(in.Memo, original.EntryNumber),
		PostedBy:     in.ActorID,
		ReversalOf:   &original.ID,
	})
	if err != nil {
		return JournalEntry{}, err
	}
	reversal.Lines, err = e.repo.InsertLines(ctx, tx, reversal.ID, swapLines(original.Lines))
	if err != nil {
		return JournalEntry{}, err
	}
	return reversal, nil
}

// AuditReversed emits the reversal audit record after the transaction commits.
func (e *Engine) AuditReversed(ctx context.Context, reversal JournalEntry, actorID int64) {
	if e.audit == nil || reversal.ReversalOf == nil {
		return
	}
	_ = e.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   "journal.reverse",
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", *reversal.ReversalOf),
		After:    map[string]any{"reversal_id": reversal.ID, "reversal_number": reversal.EntryNumber},
		At:       e.now(),
	})
}

// AuditPosted emits the posting audit record. Post calls it automatically;
// orchestrators using PostTx call it once their own transaction commits.
func (e *Engine) AuditPosted(ctx context.Context, entry JournalEntry, actorID int64) {
	if e.audit == nil {
		return
	}
	_ = e.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   "journal.post",
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		After: map[string]any{
			"entry_number":  entry.EntryNumber,
			"document_type": entry.DocumentType,
			"document_id":   entry.DocumentID.String(),
			"lines":         len(entry.Lines),
		},
		At: e.now(),
	})
}

func swapLines(lines []JournalLine) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, JournalLine{
			AccountID:   line.AccountID,
			AccountCode: line.AccountCode,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Description: line.Description,
		})
	}
	return out
}

func reversalMemo(memo, originalNumber string) string {
	if memo != "" {
		return memo
	}
	return fmt.Sprintf("Reversal of %s", originalNumber)
}
