package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/reports"
)

type fakeCleaner struct {
	olderThan time.Duration
	calls     int
}

func (f *fakeCleaner) Cleanup(ctx context.Context, olderThan time.Duration) error {
	f.calls++
	f.olderThan = olderThan
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIdempotencyCleanupHandler(t *testing.T) {
	cleaner := &fakeCleaner{}
	handler := NewIdempotencyCleanupHandler(cleaner, nil, testLogger())

	task, err := NewIdempotencyCleanupTask(48 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, handler.ProcessTask(context.Background(), task))
	require.Equal(t, 1, cleaner.calls)
	require.Equal(t, 48*time.Hour, cleaner.olderThan)

	// A zero retention falls back to the default window.
	task, err = NewIdempotencyCleanupTask(0)
	require.NoError(t, err)
	require.NoError(t, handler.ProcessTask(context.Background(), task))
	require.Equal(t, DefaultIdempotencyRetention, cleaner.olderThan)
}

type fakeReporter struct {
	asOf time.Time
}

func (f *fakeReporter) ReceivablesAging(ctx context.Context, asOf time.Time) (reports.AgingReport, error) {
	f.asOf = asOf
	return reports.AgingReport{AsOf: asOf, Total: decimal.RequireFromString("1500"), Buckets: emptyBuckets()}, nil
}

func (f *fakeReporter) PayablesAging(ctx context.Context, asOf time.Time) (reports.AgingReport, error) {
	return reports.AgingReport{AsOf: asOf, Total: decimal.RequireFromString("900"), Buckets: emptyBuckets()}, nil
}

func emptyBuckets() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		reports.BucketCurrent: decimal.Zero,
		reports.Bucket1To30:   decimal.Zero,
		reports.Bucket31To60:  decimal.Zero,
		reports.Bucket61To90:  decimal.Zero,
		reports.BucketOver90:  decimal.Zero,
	}
}

type fakeSnapshotStore struct {
	kinds []string
}

func (f *fakeSnapshotStore) InsertAgingSnapshot(ctx context.Context, kind string, report reports.AgingReport) error {
	f.kinds = append(f.kinds, kind)
	return nil
}

func TestAgingSnapshotHandlerStoresBothSides(t *testing.T) {
	reporter := &fakeReporter{}
	store := &fakeSnapshotStore{}
	handler := NewAgingSnapshotHandler(reporter, store, nil, testLogger())

	asOf := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	task, err := NewAgingSnapshotTask(asOf)
	require.NoError(t, err)
	require.NoError(t, handler.ProcessTask(context.Background(), task))
	require.Equal(t, []string{"AR", "AP"}, store.kinds)
	require.Equal(t, asOf, reporter.asOf)
}

func TestAgingSnapshotHandlerDefaultsToNow(t *testing.T) {
	reporter := &fakeReporter{}
	store := &fakeSnapshotStore{}
	handler := NewAgingSnapshotHandler(reporter, store, nil, testLogger())
	fixed := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	handler.now = func() time.Time { return fixed }

	task, err := NewAgingSnapshotTask(time.Time{})
	require.NoError(t, err)
	require.NoError(t, handler.ProcessTask(context.Background(), task))
	require.Equal(t, fixed, reporter.asOf)
}
