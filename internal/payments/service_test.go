package payments

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	accshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/procurement/bills"
	"github.com/meridian-erp/meridian-erp/internal/sales/invoices"
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
	payments map[uuid.UUID]Payment
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{payments: make(map[uuid.UUID]Payment)}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return fn(ctx, nil)
}

func (m *memoryRepo) InsertTx(ctx context.Context, tx pgx.Tx, p Payment) (Payment, error) {
	p.CreatedAt = time.Now()
	m.payments[p.ID] = p
	return p, nil
}

func (m *memoryRepo) Get(ctx context.Context, id uuid.UUID) (Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return Payment{}, internalShared.ErrNotFound
	}
	return p, nil
}

func (m *memoryRepo) ListForDocument(ctx context.Context, documentID uuid.UUID) ([]Payment, error) {
	var out []Payment
	for _, p := range m.payments {
		if p.DocumentID == documentID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeEngine struct {
	nextID int64
	posted []journals.PostingInput
	audits int
}

func (f *fakeEngine) PostTx(ctx context.Context, tx pgx.Tx, in journals.PostingInput) (journals.JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return journals.JournalEntry{}, err
	}
	f.nextID++
	f.posted = append(f.posted, in)
	return journals.JournalEntry{ID: f.nextID, EntryNumber: fmt.Sprintf("JE-%05d", f.nextID), DocumentID: in.DocumentID}, nil
}

func (f *fakeEngine) AuditPosted(ctx context.Context, entry journals.JournalEntry, actorID int64) {
	f.audits++
}

type openDoc struct {
	total decimal.Decimal
	paid  decimal.Decimal
}

func (d *openDoc) apply(amount decimal.Decimal) error {
	open := d.total.Sub(d.paid)
	if amount.GreaterThan(open) {
		return fmt.Errorf("%w: open balance %s", accshared.ErrOverpayment, open)
	}
	d.paid = d.paid.Add(amount)
	return nil
}

type fakeInvoices struct {
	docs map[uuid.UUID]*openDoc
}

func (f *fakeInvoices) ApplyPaymentTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (invoices.Invoice, error) {
	doc, ok := f.docs[id]
	if !ok {
		return invoices.Invoice{}, internalShared.ErrNotFound
	}
	if err := doc.apply(amount); err != nil {
		return invoices.Invoice{}, err
	}
	inv := invoices.Invoice{ID: id, Total: doc.total, PaidTotal: doc.paid, Status: invoices.StatusPosted}
	if doc.paid.Equal(doc.total) {
		inv.Status = invoices.StatusPaid
	}
	return inv, nil
}

type fakeBills struct {
	docs map[uuid.UUID]*openDoc
}

func (f *fakeBills) ApplyPaymentTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (bills.Bill, error) {
	doc, ok := f.docs[id]
	if !ok {
		return bills.Bill{}, internalShared.ErrNotFound
	}
	if err := doc.apply(amount); err != nil {
		return bills.Bill{}, err
	}
	bill := bills.Bill{ID: id, Total: doc.total, PaidTotal: doc.paid, Status: bills.StatusPosted}
	if doc.paid.Equal(doc.total) {
		bill.Status = bills.StatusPaid
	}
	return bill, nil
}

type fakeSequence struct {
	n int64
}

func (f *fakeSequence) NextTx(ctx context.Context, tx pgx.Tx, docType string, occurredAt time.Time) (string, error) {
	f.n++
	return fmt.Sprintf("%s-%s-%05d", docType, occurredAt.Format("200601"), f.n), nil
}

type fakeIdempotency struct {
	keys map[string]bool
}

func (f *fakeIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if f.keys == nil {
		f.keys = make(map[string]bool)
	}
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

var testAccounts = Accounts{Cash: "1100", Receivable: "1200", Payable: "2100"}

type fixture struct {
	svc         *Service
	repo        *memoryRepo
	engine      *fakeEngine
	invoices    *fakeInvoices
	bills       *fakeBills
	idempotency *fakeIdempotency
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:        newMemoryRepo(),
		engine:      &fakeEngine{},
		invoices:    &fakeInvoices{docs: make(map[uuid.UUID]*openDoc)},
		bills:       &fakeBills{docs: make(map[uuid.UUID]*openDoc)},
		idempotency: &fakeIdempotency{},
	}
	f.svc = NewService(f.repo, f.engine, f.invoices, f.bills, &fakeSequence{}, f.idempotency, testAccounts)
	return f
}

var paymentDate = time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

func TestReceiptSettlesInvoice(t *testing.T) {
	f := newFixture(t)
	invID := uuid.New()
	f.invoices.docs[invID] = &openDoc{total: dec("1500")}

	p, err := f.svc.Record(context.Background(), RecordInput{
		Kind:        KindReceipt,
		DocumentID:  invID,
		Amount:      dec("1000"),
		PaymentDate: paymentDate,
		ActorID:     42,
	})
	require.NoError(t, err)
	require.Equal(t, "PAY-202608-00001", p.PaymentNumber)

	require.Len(t, f.engine.posted, 1)
	lines := f.engine.posted[0].Lines
	require.Equal(t, testAccounts.Cash, lines[0].AccountCode)
	require.True(t, lines[0].Debit.Equal(dec("1000")))
	require.Equal(t, testAccounts.Receivable, lines[1].AccountCode)
	require.True(t, lines[1].Credit.Equal(dec("1000")))

	p2, err := f.svc.Record(context.Background(), RecordInput{
		Kind:        KindReceipt,
		DocumentID:  invID,
		Amount:      dec("500"),
		PaymentDate: paymentDate,
		ActorID:     42,
	})
	require.NoError(t, err)
	require.Equal(t, "PAY-202608-00002", p2.PaymentNumber)
	require.True(t, f.invoices.docs[invID].paid.Equal(dec("1500")))
	require.Equal(t, 2, f.engine.audits)
}

func TestReceiptRejectsOverpayment(t *testing.T) {
	f := newFixture(t)
	invID := uuid.New()
	f.invoices.docs[invID] = &openDoc{total: dec("1500")}

	_, err := f.svc.Record(context.Background(), RecordInput{
		Kind:           KindReceipt,
		DocumentID:     invID,
		Amount:         dec("1500.01"),
		PaymentDate:    paymentDate,
		IdempotencyKey: "req-1",
	})
	require.ErrorIs(t, err, accshared.ErrOverpayment)
	require.Empty(t, f.repo.payments)
	require.False(t, f.idempotency.keys["payment:req-1"], "key must be released on failure")
}

func TestDisbursementSettlesBill(t *testing.T) {
	f := newFixture(t)
	billID := uuid.New()
	f.bills.docs[billID] = &openDoc{total: dec("1080")}

	p, err := f.svc.Record(context.Background(), RecordInput{
		Kind:        KindDisbursement,
		DocumentID:  billID,
		Amount:      dec("1080"),
		PaymentDate: paymentDate,
	})
	require.NoError(t, err)
	require.Equal(t, KindDisbursement, p.Kind)

	lines := f.engine.posted[0].Lines
	require.Equal(t, testAccounts.Payable, lines[0].AccountCode)
	require.True(t, lines[0].Debit.Equal(dec("1080")))
	require.Equal(t, testAccounts.Cash, lines[1].AccountCode)
	require.True(t, lines[1].Credit.Equal(dec("1080")))
	require.True(t, f.bills.docs[billID].paid.Equal(dec("1080")))
}

func TestRecordValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Record(context.Background(), RecordInput{Kind: "TRANSFER", DocumentID: uuid.New(), Amount: dec("10"), PaymentDate: paymentDate})
	require.Error(t, err)

	_, err = f.svc.Record(context.Background(), RecordInput{Kind: KindReceipt, DocumentID: uuid.New(), Amount: dec("0"), PaymentDate: paymentDate})
	require.ErrorIs(t, err, accshared.ErrInvalidAmount)

	_, err = f.svc.Record(context.Background(), RecordInput{Kind: KindReceipt, DocumentID: uuid.New(), Amount: dec("10.001"), PaymentDate: paymentDate})
	require.ErrorIs(t, err, accshared.ErrInvalidAmount)

	_, err = f.svc.Record(context.Background(), RecordInput{Kind: KindReceipt, Amount: dec("10"), PaymentDate: paymentDate})
	require.Error(t, err)
}

func TestRecordReplayConflict(t *testing.T) {
	f := newFixture(t)
	invID := uuid.New()
	f.invoices.docs[invID] = &openDoc{total: dec("1500")}

	in := RecordInput{
		Kind:           KindReceipt,
		DocumentID:     invID,
		Amount:         dec("500"),
		PaymentDate:    paymentDate,
		IdempotencyKey: "req-77",
	}
	_, err := f.svc.Record(context.Background(), in)
	require.NoError(t, err)
	_, err = f.svc.Record(context.Background(), in)
	require.ErrorIs(t, err, internalShared.ErrIdempotencyConflict)
	require.True(t, f.invoices.docs[invID].paid.Equal(dec("500")), "replay must not settle twice")
}
