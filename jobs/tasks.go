package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskIdempotencyCleanup prunes processed idempotency keys past retention.
	TaskIdempotencyCleanup = "idempotency:cleanup"
	// TaskAgingSnapshot persists the AR and AP aging buckets for trend queries.
	TaskAgingSnapshot = "reports:aging_snapshot"
)

// IdempotencyCleanupPayload carries the retention window for key pruning.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// AgingSnapshotPayload carries the reference date for the snapshot.
type AgingSnapshotPayload struct {
	AsOf time.Time `json:"as_of"`
}

// NewAgingSnapshotTask constructs the aging snapshot task. A zero AsOf means
// "now" at execution time.
func NewAgingSnapshotTask(asOf time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(AgingSnapshotPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAgingSnapshot, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleaner is the store surface the cleanup handler needs.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}
