package invoices

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	accshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type memoryRepo struct {
	invoices map[uuid.UUID]*Invoice
	nextLine int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{invoices: make(map[uuid.UUID]*Invoice)}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return fn(ctx, nil)
}

func (m *memoryRepo) Insert(ctx context.Context, inv Invoice) (Invoice, error) {
	for i := range inv.Lines {
		m.nextLine++
		inv.Lines[i].ID = m.nextLine
		inv.Lines[i].InvoiceID = inv.ID
	}
	stored := inv
	m.invoices[inv.ID] = &stored
	return inv, nil
}

func (m *memoryRepo) Get(ctx context.Context, id uuid.UUID) (Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, internalShared.ErrNotFound
	}
	return *inv, nil
}

func (m *memoryRepo) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Invoice, error) {
	return m.Get(ctx, id)
}

func (m *memoryRepo) MarkPostedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, number string, journalID int64) error {
	inv := m.invoices[id]
	inv.Status = StatusPosted
	inv.InvoiceNumber = number
	inv.JournalID = &journalID
	return nil
}

func (m *memoryRepo) SetLineCostTx(ctx context.Context, tx pgx.Tx, lineID int64, cost decimal.Decimal) error {
	for _, inv := range m.invoices {
		for i := range inv.Lines {
			if inv.Lines[i].ID == lineID {
				inv.Lines[i].CostAmount = cost
			}
		}
	}
	return nil
}

func (m *memoryRepo) ApplyPaymentTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, paidTotal decimal.Decimal, status Status) error {
	inv := m.invoices[id]
	inv.PaidTotal = paidTotal
	inv.Status = status
	return nil
}

func (m *memoryRepo) MarkVoidTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	m.invoices[id].Status = StatusVoid
	return nil
}

func (m *memoryRepo) List(ctx context.Context, limit, offset int) ([]Invoice, error) {
	out := make([]Invoice, 0, len(m.invoices))
	for _, inv := range m.invoices {
		out = append(out, *inv)
	}
	return out, nil
}

type fakeEngine struct {
	nextID   int64
	posted   []journals.PostingInput
	reversed []journals.ReverseInput
	audits   int
}

func (f *fakeEngine) PostTx(ctx context.Context, tx pgx.Tx, in journals.PostingInput) (journals.JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return journals.JournalEntry{}, err
	}
	f.nextID++
	f.posted = append(f.posted, in)
	return journals.JournalEntry{
		ID:           f.nextID,
		EntryNumber:  fmt.Sprintf("JE-%05d", f.nextID),
		DocumentType: in.DocumentType,
		DocumentID:   in.DocumentID,
		OccurredAt:   in.OccurredAt,
	}, nil
}

func (f *fakeEngine) ReverseTx(ctx context.Context, tx pgx.Tx, in journals.ReverseInput) (journals.JournalEntry, error) {
	f.nextID++
	f.reversed = append(f.reversed, in)
	entryID := in.EntryID
	return journals.JournalEntry{ID: f.nextID, ReversalOf: &entryID, OccurredAt: in.ReversalDate}, nil
}

func (f *fakeEngine) AuditPosted(ctx context.Context, entry journals.JournalEntry, actorID int64) {
	f.audits++
}

func (f *fakeEngine) AuditReversed(ctx context.Context, reversal journals.JournalEntry, actorID int64) {
	f.audits++
}

type itemState struct {
	qty decimal.Decimal
	avg decimal.Decimal
}

type fakeLedger struct {
	states map[int64]*itemState
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{states: make(map[int64]*itemState)}
}

func (f *fakeLedger) stock(itemID int64, qty, avg decimal.Decimal) {
	f.states[itemID] = &itemState{qty: qty, avg: avg}
}

func (f *fakeLedger) IssueTx(ctx context.Context, tx pgx.Tx, in inventory.IssueInput) (inventory.Issue, error) {
	state, ok := f.states[in.ItemID]
	if !ok || in.Qty.GreaterThan(state.qty) {
		return inventory.Issue{}, inventory.ErrInsufficientStock
	}
	cogs := internalShared.RoundMoney(in.Qty.Mul(state.avg))
	state.qty = state.qty.Sub(in.Qty)
	return inventory.Issue{
		Movement:   inventory.StockMovement{ItemID: in.ItemID, Direction: inventory.DirectionOut, Qty: in.Qty, UnitCost: state.avg},
		COGSAmount: cogs,
	}, nil
}

func (f *fakeLedger) ReceiveTx(ctx context.Context, tx pgx.Tx, in inventory.ReceiveInput) (inventory.StockMovement, error) {
	state, ok := f.states[in.ItemID]
	if !ok {
		state = &itemState{qty: decimal.Zero, avg: decimal.Zero}
		f.states[in.ItemID] = state
	}
	newQty := state.qty.Add(in.Qty)
	total := state.qty.Mul(state.avg).Add(in.Qty.Mul(in.UnitCost))
	state.avg = total.DivRound(newQty, inventory.CostPrecision)
	state.qty = newQty
	return inventory.StockMovement{ItemID: in.ItemID, Direction: inventory.DirectionIn, Qty: in.Qty, UnitCost: in.UnitCost}, nil
}

type fakeSequence struct {
	counters map[string]int64
}

func newFakeSequence() *fakeSequence {
	return &fakeSequence{counters: make(map[string]int64)}
}

func (f *fakeSequence) NextTx(ctx context.Context, tx pgx.Tx, docType string, occurredAt time.Time) (string, error) {
	key := docType + occurredAt.Format("200601")
	f.counters[key]++
	return fmt.Sprintf("%s-%s-%05d", docType, occurredAt.Format("200601"), f.counters[key]), nil
}

type fakeIdempotency struct {
	keys map[string]bool
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{keys: make(map[string]bool)}
}

func (f *fakeIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if f.keys[key] {
		return internalShared.ErrIdempotencyConflict
	}
	f.keys[key] = true
	return nil
}

func (f *fakeIdempotency) Delete(ctx context.Context, key string) error {
	delete(f.keys, key)
	return nil
}

var testAccounts = Accounts{
	Receivable: "1200",
	Revenue:    "4000",
	Inventory:  "1300",
	COGS:       "5000",
}

type fixture struct {
	svc         *Service
	repo        *memoryRepo
	engine      *fakeEngine
	ledger      *fakeLedger
	idempotency *fakeIdempotency
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:        newMemoryRepo(),
		engine:      &fakeEngine{},
		ledger:      newFakeLedger(),
		idempotency: newFakeIdempotency(),
	}
	f.svc = NewService(f.repo, f.engine, f.ledger, newFakeSequence(), f.idempotency, testAccounts)
	return f
}

func itemPtr(id int64) *int64 { return &id }

func draftInvoice(t *testing.T, f *fixture) Invoice {
	t.Helper()
	inv, err := f.svc.CreateDraft(context.Background(), CreateInput{
		CustomerName: "Acme Retail",
		InvoiceDate:  time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC),
		Lines: []LineInput{
			{ItemID: itemPtr(7), Description: "Widget", Qty: dec("4"), UnitPrice: dec("250")},
			{Description: "Installation", Qty: dec("1"), UnitPrice: dec("500")},
		},
	})
	require.NoError(t, err)
	return inv
}

func TestPostIssuesStockAndPostsBalancedLines(t *testing.T) {
	f := newFixture(t)
	f.ledger.stock(7, dec("10"), dec("100"))
	inv := draftInvoice(t, f)

	posted, err := f.svc.Post(context.Background(), inv.ID, 42)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)
	require.Equal(t, "INV-202608-00001", posted.InvoiceNumber)
	require.NotNil(t, posted.JournalID)

	require.Len(t, f.engine.posted, 1)
	lines := f.engine.posted[0].Lines
	require.Len(t, lines, 4)
	require.True(t, lines[0].Debit.Equal(dec("1500")), "receivable debit")
	require.True(t, lines[1].Credit.Equal(dec("1500")), "revenue credit")
	require.True(t, lines[2].Debit.Equal(dec("400")), "cogs debit")
	require.True(t, lines[3].Credit.Equal(dec("400")), "inventory credit")

	require.True(t, f.ledger.states[7].qty.Equal(dec("6")))
	stored, err := f.svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	require.True(t, stored.Lines[0].CostAmount.Equal(dec("400")))
	require.Equal(t, 1, f.engine.audits)
}

func TestPostRejectsNonDraft(t *testing.T) {
	f := newFixture(t)
	f.ledger.stock(7, dec("10"), dec("100"))
	inv := draftInvoice(t, f)

	_, err := f.svc.Post(context.Background(), inv.ID, 42)
	require.NoError(t, err)

	// A replay of the same document trips the idempotency guard first.
	_, err = f.svc.Post(context.Background(), inv.ID, 42)
	require.ErrorIs(t, err, internalShared.ErrIdempotencyConflict)

	// Even after key retention expires, the status machine refuses.
	require.NoError(t, f.idempotency.Delete(context.Background(), "invoice:post:"+inv.ID.String()))
	_, err = f.svc.Post(context.Background(), inv.ID, 42)
	require.ErrorIs(t, err, accshared.ErrInvalidStatus)
	require.False(t, f.idempotency.keys["invoice:post:"+inv.ID.String()])
}

func TestPostInsufficientStockLeavesDraft(t *testing.T) {
	f := newFixture(t)
	f.ledger.stock(7, dec("2"), dec("100"))
	inv := draftInvoice(t, f)

	_, err := f.svc.Post(context.Background(), inv.ID, 42)
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	stored, err := f.svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, stored.Status)
	require.False(t, f.idempotency.keys["invoice:post:"+inv.ID.String()], "key must be released on failure")
}

func TestVoidReversesAndRestocks(t *testing.T) {
	f := newFixture(t)
	f.ledger.stock(7, dec("10"), dec("100"))
	inv := draftInvoice(t, f)
	_, err := f.svc.Post(context.Background(), inv.ID, 42)
	require.NoError(t, err)

	voided, err := f.svc.Void(context.Background(), inv.ID, time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), 42)
	require.NoError(t, err)
	require.Equal(t, StatusVoid, voided.Status)
	require.Len(t, f.engine.reversed, 1)
	require.True(t, f.ledger.states[7].qty.Equal(dec("10")), "stock restored")
}

func TestVoidRejectsPaidInvoice(t *testing.T) {
	f := newFixture(t)
	f.ledger.stock(7, dec("10"), dec("100"))
	inv := draftInvoice(t, f)
	_, err := f.svc.Post(context.Background(), inv.ID, 42)
	require.NoError(t, err)

	_, err = f.svc.ApplyPaymentTx(context.Background(), nil, inv.ID, dec("1500"))
	require.NoError(t, err)

	_, err = f.svc.Void(context.Background(), inv.ID, time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), 42)
	require.ErrorIs(t, err, accshared.ErrInvalidStatus)
}

func TestApplyPayment(t *testing.T) {
	f := newFixture(t)
	f.ledger.stock(7, dec("10"), dec("100"))
	inv := draftInvoice(t, f)
	_, err := f.svc.Post(context.Background(), inv.ID, 42)
	require.NoError(t, err)

	partial, err := f.svc.ApplyPaymentTx(context.Background(), nil, inv.ID, dec("1000"))
	require.NoError(t, err)
	require.Equal(t, StatusPosted, partial.Status)
	require.True(t, partial.Outstanding().Equal(dec("500")))

	_, err = f.svc.ApplyPaymentTx(context.Background(), nil, inv.ID, dec("500.01"))
	require.ErrorIs(t, err, accshared.ErrOverpayment)

	paid, err := f.svc.ApplyPaymentTx(context.Background(), nil, inv.ID, dec("500"))
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)
	require.True(t, paid.Outstanding().IsZero())
}

func TestCreateDraftValidation(t *testing.T) {
	f := newFixture(t)
	date := time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC)

	_, err := f.svc.CreateDraft(context.Background(), CreateInput{InvoiceDate: date, Lines: []LineInput{{Qty: dec("1"), UnitPrice: dec("10")}}})
	require.Error(t, err)

	_, err = f.svc.CreateDraft(context.Background(), CreateInput{CustomerName: "Acme", InvoiceDate: date})
	require.Error(t, err)

	_, err = f.svc.CreateDraft(context.Background(), CreateInput{
		CustomerName: "Acme",
		InvoiceDate:  date,
		Lines:        []LineInput{{Qty: dec("0"), UnitPrice: dec("10")}},
	})
	require.ErrorIs(t, err, inventory.ErrInvalidQuantity)

	_, err = f.svc.CreateDraft(context.Background(), CreateInput{
		CustomerName: "Acme",
		InvoiceDate:  date,
		Lines:        []LineInput{{Qty: dec("1"), UnitPrice: dec("-5")}},
	})
	require.ErrorIs(t, err, accshared.ErrInvalidAmount)
}

func TestPostIdempotencyConflict(t *testing.T) {
	f := newFixture(t)
	f.ledger.stock(7, dec("10"), dec("100"))
	inv := draftInvoice(t, f)

	require.NoError(t, f.idempotency.CheckAndInsert(context.Background(), "invoice:post:"+inv.ID.String(), "sales"))
	_, err := f.svc.Post(context.Background(), inv.ID, 42)
	require.True(t, errors.Is(err, internalShared.ErrIdempotencyConflict))
}
