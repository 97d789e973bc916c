package reports

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func sampleBalances() []AccountBalance {
	return []AccountBalance{
		{Code: "1100", Name: "Cash", Type: "ASSET", Debit: dec("5000"), Credit: dec("1200")},
		{Code: "1300", Name: "Inventory", Type: "ASSET", Debit: dec("2000"), Credit: dec("750")},
		{Code: "2100", Name: "Accounts Payable", Type: "LIABILITY", Credit: dec("2000")},
		{Code: "3100", Name: "Owner Equity", Type: "EQUITY", Credit: dec("3000")},
		{Code: "4000", Name: "Sales", Type: "INCOME", Credit: dec("1800")},
		{Code: "5000", Name: "COGS", Type: "EXPENSE", Debit: dec("750")},
	}
}

func TestTrialBalanceTotalsBalance(t *testing.T) {
	tb := BuildTrialBalance(sampleBalances())
	require.True(t, tb.TotalDebit.Equal(tb.TotalCredit), "debits %s credits %s", tb.TotalDebit, tb.TotalCredit)
	require.True(t, tb.TotalDebit.Equal(dec("7750")))
	require.Len(t, tb.Groups, 5)
}

func TestProfitAndLossNetIncome(t *testing.T) {
	pl := BuildProfitAndLoss(sampleBalances())
	require.True(t, pl.Income.Total.Equal(dec("1800")))
	require.True(t, pl.Expense.Total.Equal(dec("750")))
	require.True(t, pl.NetIncome.Equal(dec("1050")))
}

func TestBalanceSheetSections(t *testing.T) {
	bs := BuildBalanceSheet(sampleBalances())
	require.True(t, bs.Assets.Total.Equal(dec("5050")))
	require.True(t, bs.Liabilities.Total.Equal(dec("2000")))
	require.True(t, bs.Equity.Total.Equal(dec("3000")))
	require.True(t, bs.TotalLiabilitiesAndEquity.Equal(dec("5000")))
}

func TestAgingBuckets(t *testing.T) {
	asOf := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	docs := []OpenDocument{
		{ID: uuid.New(), Number: "INV-1", DocDate: asOf, Outstanding: dec("100")},
		{ID: uuid.New(), Number: "INV-2", DocDate: asOf.AddDate(0, 0, -15), Outstanding: dec("200")},
		{ID: uuid.New(), Number: "INV-3", DocDate: asOf.AddDate(0, 0, -45), Outstanding: dec("300")},
		{ID: uuid.New(), Number: "INV-4", DocDate: asOf.AddDate(0, 0, -75), Outstanding: dec("400")},
		{ID: uuid.New(), Number: "INV-5", DocDate: asOf.AddDate(0, 0, -120), Outstanding: dec("500")},
		{ID: uuid.New(), Number: "INV-6", DocDate: asOf, Outstanding: decimal.Zero},
	}

	report := BuildAging(asOf, docs)
	require.Len(t, report.Rows, 5)
	require.True(t, report.Buckets[BucketCurrent].Equal(dec("100")))
	require.True(t, report.Buckets[Bucket1To30].Equal(dec("200")))
	require.True(t, report.Buckets[Bucket31To60].Equal(dec("300")))
	require.True(t, report.Buckets[Bucket61To90].Equal(dec("400")))
	require.True(t, report.Buckets[BucketOver90].Equal(dec("500")))
	require.True(t, report.Total.Equal(dec("1500")))
	require.Equal(t, ">90", report.Rows[0].Bucket)
}

func TestAgingBucketBoundaries(t *testing.T) {
	asOf := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		days   int
		bucket string
	}{
		{0, BucketCurrent},
		{1, Bucket1To30},
		{30, Bucket1To30},
		{31, Bucket31To60},
		{60, Bucket31To60},
		{61, Bucket61To90},
		{90, Bucket61To90},
		{91, BucketOver90},
	}
	for _, tc := range cases {
		report := BuildAging(asOf, []OpenDocument{{
			ID:          uuid.New(),
			Number:      "DOC",
			DocDate:     asOf.AddDate(0, 0, -tc.days),
			Outstanding: dec("10"),
		}})
		require.Equal(t, tc.bucket, report.Rows[0].Bucket, "days %d", tc.days)
	}
}

func TestValuationRoundsToCurrency(t *testing.T) {
	rows := []ValuationRow{
		{ItemID: 1, SKU: "WID-1", Name: "Widget", OnHand: dec("3"), AvgUnitCost: dec("33.333333")},
		{ItemID: 2, SKU: "GAD-1", Name: "Gadget", OnHand: dec("10"), AvgUnitCost: dec("150")},
	}
	valuation := BuildValuation(rows)
	require.Len(t, valuation.Rows, 2)
	// Rows are sorted by SKU.
	require.Equal(t, "GAD-1", valuation.Rows[0].SKU)
	require.True(t, valuation.Rows[0].TotalValue.Equal(dec("1500")))
	require.True(t, valuation.Rows[1].TotalValue.Equal(dec("100")))
	require.True(t, valuation.TotalValue.Equal(dec("1600")))
}

type stubReader struct {
	balances []AccountBalance
	calls    int
}

func (s *stubReader) AccountBalances(ctx context.Context, from, to time.Time) ([]AccountBalance, error) {
	s.calls++
	return s.balances, nil
}

func (s *stubReader) OpenInvoices(ctx context.Context, asOf time.Time) ([]OpenDocument, error) {
	return nil, nil
}

func (s *stubReader) OpenBills(ctx context.Context, asOf time.Time) ([]OpenDocument, error) {
	return nil, nil
}

func (s *stubReader) ValuationRows(ctx context.Context) ([]ValuationRow, error) {
	return nil, nil
}

func TestTrialBalanceUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	reader := &stubReader{balances: sampleBalances()}
	cache := NewCache(client, time.Minute, slog.New(slog.NewTextHandler(testWriter{t}, nil)))
	svc := NewService(reader, cache)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	first, err := svc.TrialBalance(context.Background(), from, to)
	require.NoError(t, err)
	second, err := svc.TrialBalance(context.Background(), from, to)
	require.NoError(t, err)
	require.Equal(t, 1, reader.calls)
	require.True(t, first.TotalDebit.Equal(second.TotalDebit))

	svc.InvalidateCache(context.Background())
	_, err = svc.TrialBalance(context.Background(), from, to)
	require.NoError(t, err)
	require.Equal(t, 2, reader.calls)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
