package journals

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

type memoryRepo struct {
	entries map[int64]JournalEntry
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{entries: make(map[int64]JournalEntry)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return fn(ctx, nil)
}

func (r *memoryRepo) InsertEntry(ctx context.Context, _ pgx.Tx, entry JournalEntry) (JournalEntry, error) {
	r.nextID++
	entry.ID = r.nextID
	entry.CreatedAt = time.Now()
	r.entries[entry.ID] = entry
	return entry, nil
}

func (r *memoryRepo) InsertLines(ctx context.Context, _ pgx.Tx, entryID int64, lines []JournalLine) ([]JournalLine, error) {
	entry := r.entries[entryID]
	for i := range lines {
		lines[i].ID = int64(len(entry.Lines) + i + 1)
		lines[i].JournalID = entryID
	}
	entry.Lines = append(entry.Lines, lines...)
	r.entries[entryID] = entry
	return lines, nil
}

func (r *memoryRepo) GetEntryTx(ctx context.Context, _ pgx.Tx, entryID int64) (JournalEntry, error) {
	return r.GetEntry(ctx, entryID)
}

func (r *memoryRepo) GetEntry(ctx context.Context, entryID int64) (JournalEntry, error) {
	if entry, ok := r.entries[entryID]; ok {
		return entry, nil
	}
	return JournalEntry{}, shared.ErrJournalNotFound
}

func (r *memoryRepo) List(ctx context.Context, limit, offset int) ([]JournalEntry, error) {
	out := make([]JournalEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry)
	}
	return out, nil
}

type fakeRegistry struct {
	accounts map[string]accounts.Account
}

func (f *fakeRegistry) ResolveTx(ctx context.Context, _ pgx.Tx, code string) (accounts.Account, error) {
	if a, ok := f.accounts[code]; ok && a.IsActive {
		return a, nil
	}
	return accounts.Account{}, shared.ErrUnknownAccount
}

type fakeSequence struct {
	counter int64
}

func (f *fakeSequence) NextTx(ctx context.Context, _ pgx.Tx, docType string, occurredAt time.Time) (string, error) {
	f.counter++
	return fmt.Sprintf("%s-%s-%05d", docType, occurredAt.Format("200601"), f.counter), nil
}

type fakeGuard struct {
	locked map[string]bool
}

func (f *fakeGuard) AssertOpenTx(ctx context.Context, _ pgx.Tx, date time.Time) error {
	if f.locked[date.Format("2006-01")] {
		return shared.ErrPeriodLocked
	}
	return nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newEngine() (*Engine, *memoryRepo, *fakeGuard, *fakeSequence) {
	repo := newMemoryRepo()
	guard := &fakeGuard{locked: make(map[string]bool)}
	seq := &fakeSequence{}
	registry := &fakeRegistry{accounts: map[string]accounts.Account{
		"1100": {ID: 1, Code: "1100", Type: accounts.AccountTypeAsset, IsActive: true},
		"4000": {ID: 2, Code: "4000", Type: accounts.AccountTypeIncome, IsActive: true},
		"9999": {ID: 3, Code: "9999", Type: accounts.AccountTypeExpense, IsActive: false},
	}}
	return NewEngine(repo, registry, seq, guard, nil), repo, guard, seq
}

func validInput() PostingInput {
	return PostingInput{
		DocumentType: "INV",
		DocumentID:   uuid.New(),
		OccurredAt:   time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		Memo:         "Sale",
		PostedBy:     1,
		Lines: []PostingLineInput{
			{AccountCode: "1100", Debit: d("250.00"), Description: "AR"},
			{AccountCode: "4000", Credit: d("250.00"), Description: "Revenue"},
		},
	}
}

func TestPostBalancedEntry(t *testing.T) {
	engine, repo, _, _ := newEngine()
	ctx := context.Background()

	entry, err := engine.Post(ctx, validInput())
	require.NoError(t, err)
	require.Equal(t, "JE-202608-00001", entry.EntryNumber)
	require.Len(t, entry.Lines, 2)
	require.Len(t, repo.entries, 1)
}

func TestPostRejectsImbalance(t *testing.T) {
	engine, repo, _, _ := newEngine()
	in := validInput()
	in.Lines[1].Credit = d("249.99")

	_, err := engine.Post(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrUnbalanced)
	require.Empty(t, repo.entries)
}

func TestPostRejectsUnknownOrInactiveAccount(t *testing.T) {
	engine, repo, _, _ := newEngine()
	in := validInput()
	in.Lines[0].AccountCode = "9999"

	_, err := engine.Post(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrUnknownAccount)
	require.Empty(t, repo.entries)
}

func TestPostRejectsLockedPeriod(t *testing.T) {
	engine, repo, guard, _ := newEngine()
	guard.locked["2026-08"] = true

	_, err := engine.Post(context.Background(), validInput())
	require.ErrorIs(t, err, shared.ErrPeriodLocked)
	require.Empty(t, repo.entries)
}

func TestReverseSwapsSides(t *testing.T) {
	engine, repo, _, _ := newEngine()
	ctx := context.Background()

	entry, err := engine.Post(ctx, validInput())
	require.NoError(t, err)

	reversal, err := engine.Reverse(ctx, ReverseInput{
		EntryID:      entry.ID,
		ReversalDate: entry.OccurredAt.AddDate(0, 0, 1),
		ActorID:      2,
	})
	require.NoError(t, err)
	require.NotNil(t, reversal.ReversalOf)
	require.Equal(t, entry.ID, *reversal.ReversalOf)
	require.True(t, reversal.Lines[0].Credit.Equal(entry.Lines[0].Debit))
	require.True(t, reversal.Lines[1].Debit.Equal(entry.Lines[1].Credit))

	// The original entry is untouched.
	original, err := engine.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.True(t, original.Lines[0].Debit.Equal(d("250.00")))
	require.Len(t, repo.entries, 2)
}

func TestReverseOfReverseNetsToZero(t *testing.T) {
	engine, repo, _, _ := newEngine()
	ctx := context.Background()

	entry, err := engine.Post(ctx, validInput())
	require.NoError(t, err)

	first, err := engine.Reverse(ctx, ReverseInput{EntryID: entry.ID, ReversalDate: entry.OccurredAt, ActorID: 2})
	require.NoError(t, err)
	second, err := engine.Reverse(ctx, ReverseInput{EntryID: first.ID, ReversalDate: entry.OccurredAt, ActorID: 2})
	require.NoError(t, err)

	// Net effect per account across the two reversals is zero, and all three
	// entries remain present.
	net := make(map[string]decimal.Decimal)
	for _, e := range []JournalEntry{first, second} {
		for _, line := range e.Lines {
			net[line.AccountCode] = net[line.AccountCode].Add(line.Debit).Sub(line.Credit)
		}
	}
	for code, amount := range net {
		require.True(t, amount.IsZero(), "account %s net %s", code, amount)
	}
	require.Len(t, repo.entries, 3)
}

func TestReverseRejectsLockedReversalDate(t *testing.T) {
	engine, _, guard, _ := newEngine()
	ctx := context.Background()

	entry, err := engine.Post(ctx, validInput())
	require.NoError(t, err)

	guard.locked["2026-09"] = true
	_, err = engine.Reverse(ctx, ReverseInput{
		EntryID:      entry.ID,
		ReversalDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		ActorID:      2,
	})
	require.ErrorIs(t, err, shared.ErrPeriodLocked)
}
