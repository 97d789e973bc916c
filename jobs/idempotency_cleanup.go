package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
)

// DefaultIdempotencyRetention keeps processed keys long enough to absorb any
// plausible client retry window.
const DefaultIdempotencyRetention = 7 * 24 * time.Hour

// IdempotencyCleanupHandler prunes expired idempotency keys.
type IdempotencyCleanupHandler struct {
	store   IdempotencyCleaner
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

func NewIdempotencyCleanupHandler(store IdempotencyCleaner, metrics *jobmetrics.Metrics, logger *slog.Logger) *IdempotencyCleanupHandler {
	return &IdempotencyCleanupHandler{store: store, metrics: metrics, logger: logger}
}

// ProcessTask implements asynq.Handler.
func (h *IdempotencyCleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	tracker := h.metrics.Track("idempotency_cleanup")
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(asynq.SkipRetry)
	}
	retention := payload.Retention
	if retention <= 0 {
		retention = DefaultIdempotencyRetention
	}
	if err := h.store.Cleanup(ctx, retention); err != nil {
		h.logger.Error("idempotency cleanup failed", "error", err)
		return tracker.End(err)
	}
	h.logger.Info("idempotency keys pruned", "retention", retention.String())
	return tracker.End(nil)
}
