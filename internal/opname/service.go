package opname

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	accshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
)

// CostingLedger reads item state and applies count variances.
type CostingLedger interface {
	StateTx(ctx context.Context, tx pgx.Tx, itemID int64) (inventory.ItemCostState, error)
	AdjustTx(ctx context.Context, tx pgx.Tx, in inventory.AdjustInput) (inventory.Adjustment, error)
}

// PostingEngine is the journal engine surface opname posting needs.
type PostingEngine interface {
	PostTx(ctx context.Context, tx pgx.Tx, in journals.PostingInput) (journals.JournalEntry, error)
	AuditPosted(ctx context.Context, entry journals.JournalEntry, actorID int64)
}

// SequencePort allocates session numbers.
type SequencePort interface {
	NextTx(ctx context.Context, tx pgx.Tx, docType string, occurredAt time.Time) (string, error)
}

// IdempotencyPort guards against double-posting a session.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Accounts maps variance postings onto the chart of accounts.
type Accounts struct {
	Inventory  string
	Adjustment string
}

// Service drives counting sessions from OPEN through POSTED.
type Service struct {
	repo        Repository
	ledger      CostingLedger
	engine      PostingEngine
	sequences   SequencePort
	idempotency IdempotencyPort
	accounts    Accounts
	now         func() time.Time
}

func NewService(repo Repository, ledger CostingLedger, engine PostingEngine, sequences SequencePort, idempotency IdempotencyPort, accounts Accounts) *Service {
	return &Service{
		repo:        repo,
		ledger:      ledger,
		engine:      engine,
		sequences:   sequences,
		idempotency: idempotency,
		accounts:    accounts,
		now:         time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Open starts a new counting session.
func (s *Service) Open(ctx context.Context, notes string, actorID int64) (Session, error) {
	return s.repo.Insert(ctx, Session{
		ID:        uuid.New(),
		Status:    StatusOpen,
		Notes:     notes,
		CreatedBy: actorID,
	})
}

// RecordCount upserts one item's counted quantity. The system on-hand
// quantity is snapshotted at record time; re-recording the same item
// replaces the previous count. The first count moves the session to
// COUNTING.
func (s *Service) RecordCount(ctx context.Context, sessionID uuid.UUID, itemID int64, countedQty decimal.Decimal) (Session, error) {
	if itemID == 0 {
		return Session{}, fmt.Errorf("opname: item required")
	}
	if countedQty.IsNegative() {
		return Session{}, inventory.ErrInvalidQuantity
	}
	var session Session
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var txErr error
		session, txErr = s.repo.GetForUpdateTx(ctx, tx, sessionID)
		if txErr != nil {
			return txErr
		}
		if session.Status != StatusOpen && session.Status != StatusCounting {
			return fmt.Errorf("%w: session %s is %s", accshared.ErrInvalidStatus, sessionID, session.Status)
		}
		state, txErr := s.ledger.StateTx(ctx, tx, itemID)
		if txErr != nil {
			return txErr
		}
		if txErr = s.repo.UpsertCountTx(ctx, tx, CountItem{
			SessionID:   sessionID,
			ItemID:      itemID,
			SnapshotQty: state.OnHandQty,
			CountedQty:  countedQty,
			RecordedAt:  s.now(),
		}); txErr != nil {
			return txErr
		}
		if session.Status == StatusOpen {
			if txErr = s.repo.SetStatusTx(ctx, tx, sessionID, StatusCounting); txErr != nil {
				return txErr
			}
			session.Status = StatusCounting
		}
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	return session, nil
}

// Submit freezes the counts. Only a session with recorded counts can submit.
func (s *Service) Submit(ctx context.Context, sessionID uuid.UUID) (Session, error) {
	var session Session
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var txErr error
		session, txErr = s.repo.GetForUpdateTx(ctx, tx, sessionID)
		if txErr != nil {
			return txErr
		}
		if session.Status != StatusCounting {
			return fmt.Errorf("%w: session %s is %s", accshared.ErrInvalidStatus, sessionID, session.Status)
		}
		if txErr = s.repo.SetStatusTx(ctx, tx, sessionID, StatusSubmitted); txErr != nil {
			return txErr
		}
		session.Status = StatusSubmitted
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	return session, nil
}

// Cancel abandons a session. Posted sessions cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, sessionID uuid.UUID) (Session, error) {
	var session Session
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var txErr error
		session, txErr = s.repo.GetForUpdateTx(ctx, tx, sessionID)
		if txErr != nil {
			return txErr
		}
		switch session.Status {
		case StatusOpen, StatusCounting, StatusSubmitted:
		default:
			return fmt.Errorf("%w: session %s is %s", accshared.ErrInvalidStatus, sessionID, session.Status)
		}
		if txErr = s.repo.SetStatusTx(ctx, tx, sessionID, StatusCancelled); txErr != nil {
			return txErr
		}
		session.Status = StatusCancelled
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	return session, nil
}

// Post applies every nonzero variance through the costing ledger and books
// the resulting gains and losses in one journal entry, all inside one
// transaction. Allowed from SUBMITTED only; POSTED is terminal.
func (s *Service) Post(ctx context.Context, sessionID uuid.UUID, postDate time.Time, actorID int64) (Session, error) {
	if postDate.IsZero() {
		return Session{}, fmt.Errorf("opname: post date required")
	}
	key := fmt.Sprintf("opname:post:%s", sessionID)
	if err := s.idempotency.CheckAndInsert(ctx, key, "opname"); err != nil {
		return Session{}, err
	}
	var session Session
	var entry journals.JournalEntry
	var posted bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var txErr error
		session, txErr = s.repo.GetForUpdateTx(ctx, tx, sessionID)
		if txErr != nil {
			return txErr
		}
		if session.Status != StatusSubmitted {
			return fmt.Errorf("%w: session %s is %s", accshared.ErrInvalidStatus, sessionID, session.Status)
		}
		number, txErr := s.sequences.NextTx(ctx, tx, DocType, postDate)
		if txErr != nil {
			return txErr
		}

		doc := inventory.NewDocRef(DocType, sessionID, postDate)
		var lines []journals.PostingLineInput
		for _, item := range session.Items {
			variance := item.Variance()
			if variance.IsZero() {
				continue
			}
			state, txErr := s.ledger.StateTx(ctx, tx, item.ItemID)
			if txErr != nil {
				return txErr
			}
			adj, txErr := s.ledger.AdjustTx(ctx, tx, inventory.AdjustInput{
				ItemID:   item.ItemID,
				DeltaQty: variance,
				UnitCost: state.AvgUnitCost,
				Doc:      doc,
			})
			if txErr != nil {
				return txErr
			}
			desc := fmt.Sprintf("Count variance item %d", item.ItemID)
			lines = append(lines, inventory.AdjustmentLines(adj, desc, s.accounts.Inventory, s.accounts.Adjustment)...)
		}

		var journalID *int64
		if len(lines) > 0 {
			entry, txErr = s.engine.PostTx(ctx, tx, journals.PostingInput{
				DocumentType: DocType,
				DocumentID:   sessionID,
				OccurredAt:   postDate,
				Memo:         session.Notes,
				PostedBy:     actorID,
				Lines:        lines,
			})
			if txErr != nil {
				return txErr
			}
			journalID = &entry.ID
			posted = true
		}
		if txErr = s.repo.MarkPostedTx(ctx, tx, sessionID, number, journalID); txErr != nil {
			return txErr
		}
		session.Status = StatusPosted
		session.SessionNumber = number
		session.JournalID = journalID
		return nil
	})
	if err != nil {
		_ = s.idempotency.Delete(ctx, key)
		return Session{}, err
	}
	if posted {
		s.engine.AuditPosted(ctx, entry, actorID)
	}
	return session, nil
}

// Get loads one session with its counts.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Session, error) {
	return s.repo.Get(ctx, id)
}

// List returns recent sessions without counts.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Session, error) {
	return s.repo.List(ctx, limit, offset)
}
