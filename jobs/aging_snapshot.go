package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/accounting/reports"
	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
)

// AgingReporter renders the receivables and payables aging reports.
type AgingReporter interface {
	ReceivablesAging(ctx context.Context, asOf time.Time) (reports.AgingReport, error)
	PayablesAging(ctx context.Context, asOf time.Time) (reports.AgingReport, error)
}

// SnapshotStore persists rendered aging buckets.
type SnapshotStore interface {
	InsertAgingSnapshot(ctx context.Context, kind string, report reports.AgingReport) error
}

// AgingSnapshotHandler renders both aging reports and stores the bucket
// totals so trends survive document settlement.
type AgingSnapshotHandler struct {
	reporter AgingReporter
	store    SnapshotStore
	metrics  *jobmetrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewAgingSnapshotHandler(reporter AgingReporter, store SnapshotStore, metrics *jobmetrics.Metrics, logger *slog.Logger) *AgingSnapshotHandler {
	return &AgingSnapshotHandler{reporter: reporter, store: store, metrics: metrics, logger: logger, now: time.Now}
}

// ProcessTask implements asynq.Handler.
func (h *AgingSnapshotHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	tracker := h.metrics.Track("aging_snapshot")
	var payload AgingSnapshotPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(asynq.SkipRetry)
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = h.now()
	}

	receivables, err := h.reporter.ReceivablesAging(ctx, asOf)
	if err != nil {
		h.logger.Error("receivables aging failed", "error", err)
		return tracker.End(err)
	}
	if err := h.store.InsertAgingSnapshot(ctx, "AR", receivables); err != nil {
		return tracker.End(err)
	}

	payables, err := h.reporter.PayablesAging(ctx, asOf)
	if err != nil {
		h.logger.Error("payables aging failed", "error", err)
		return tracker.End(err)
	}
	if err := h.store.InsertAgingSnapshot(ctx, "AP", payables); err != nil {
		return tracker.End(err)
	}

	h.logger.Info("aging snapshot stored", "as_of", asOf.Format("2006-01-02"),
		"ar_total", receivables.Total.String(), "ap_total", payables.Total.String())
	return tracker.End(nil)
}
