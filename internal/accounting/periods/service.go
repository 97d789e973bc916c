package periods

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuditPort abstracts the audit sink.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Guard tracks closed accounting periods and rejects postings dated inside
// them. Lock and Unlock are idempotent.
type Guard struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewGuard builds a Guard.
func NewGuard(repo Repository, audit AuditPort) *Guard {
	return &Guard{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (g *Guard) WithNow(now func() time.Time) {
	if now != nil {
		g.now = now
	}
}

var keyPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// AssertOpen fails with ErrPeriodLocked when date's period is locked.
func (g *Guard) AssertOpen(ctx context.Context, date time.Time) error {
	locked, err := g.repo.IsLocked(ctx, Key(date))
	if err != nil {
		return err
	}
	if locked {
		return shared.ErrPeriodLocked
	}
	return nil
}

// AssertOpenTx runs the check inside the caller's transaction so the lock
// check and the guarded write cannot race a concurrent Lock.
func (g *Guard) AssertOpenTx(ctx context.Context, tx pgx.Tx, date time.Time) error {
	locked, err := g.repo.IsLockedTx(ctx, tx, Key(date))
	if err != nil {
		return err
	}
	if locked {
		return shared.ErrPeriodLocked
	}
	return nil
}

// Lock closes a period. Locking an already-locked period is a no-op success.
func (g *Guard) Lock(ctx context.Context, periodKey string, actorID int64) error {
	if !keyPattern.MatchString(periodKey) {
		return fmt.Errorf("periods: invalid period key %q", periodKey)
	}
	inserted, err := g.repo.Insert(ctx, PeriodLock{PeriodKey: periodKey, LockedBy: actorID, LockedAt: g.now()})
	if err != nil {
		return err
	}
	if inserted && g.audit != nil {
		_ = g.audit.Record(ctx, internalShared.AuditLog{
			ActorID:  actorID,
			Action:   "period.lock",
			Entity:   "period",
			EntityID: periodKey,
			Before:   map[string]any{"status": "OPEN"},
			After:    map[string]any{"status": "LOCKED"},
			At:       g.now(),
		})
	}
	return nil
}

// Unlock reopens a period. It does not retroactively validate entries posted
// while the period was open.
func (g *Guard) Unlock(ctx context.Context, periodKey string, actorID int64) error {
	if !keyPattern.MatchString(periodKey) {
		return fmt.Errorf("periods: invalid period key %q", periodKey)
	}
	deleted, err := g.repo.Delete(ctx, periodKey)
	if err != nil {
		return err
	}
	if deleted && g.audit != nil {
		_ = g.audit.Record(ctx, internalShared.AuditLog{
			ActorID:  actorID,
			Action:   "period.unlock",
			Entity:   "period",
			EntityID: periodKey,
			Before:   map[string]any{"status": "LOCKED"},
			After:    map[string]any{"status": "OPEN"},
			At:       g.now(),
		})
	}
	return nil
}

// List returns all period locks ordered by key.
func (g *Guard) List(ctx context.Context) ([]PeriodLock, error) {
	return g.repo.List(ctx)
}
