package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// ErrStateNotFound indicates no item_cost_state row exists yet.
var ErrStateNotFound = errors.New("inventory: item cost state not found")

// Repository encapsulates DB operations for the costing ledger.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
	// GetStateForUpdate locks the item's row for the duration of the
	// read-modify-write, creating it when the item has never moved.
	GetStateForUpdate(ctx context.Context, tx pgx.Tx, itemID int64) (ItemCostState, error)
	UpdateState(ctx context.Context, tx pgx.Tx, state ItemCostState) error
	InsertMovement(ctx context.Context, tx pgx.Tx, m StockMovement) (StockMovement, error)
	GetState(ctx context.Context, itemID int64) (ItemCostState, error)
	ListStates(ctx context.Context) ([]ItemCostState, error)
	ListMovements(ctx context.Context, itemID int64, limit int) ([]StockMovement, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

func (r *repository) GetStateForUpdate(ctx context.Context, tx pgx.Tx, itemID int64) (ItemCostState, error) {
	// Ensure the row exists so FOR UPDATE has something to lock for an
	// item's first movement.
	if _, err := tx.Exec(ctx, `INSERT INTO item_cost_state (item_id, on_hand_qty, avg_unit_cost)
VALUES ($1, 0, 0) ON CONFLICT (item_id) DO NOTHING`, itemID); err != nil {
		return ItemCostState{}, err
	}
	var state ItemCostState
	var qty, cost string
	err := tx.QueryRow(ctx, `SELECT item_id, on_hand_qty::text, avg_unit_cost::text, updated_at
FROM item_cost_state WHERE item_id=$1 FOR UPDATE`, itemID).
		Scan(&state.ItemID, &qty, &cost, &state.UpdatedAt)
	if err != nil {
		return ItemCostState{}, err
	}
	return parseState(state, qty, cost)
}

func (r *repository) UpdateState(ctx context.Context, tx pgx.Tx, state ItemCostState) error {
	_, err := tx.Exec(ctx, `UPDATE item_cost_state SET on_hand_qty=$2, avg_unit_cost=$3, updated_at=NOW() WHERE item_id=$1`,
		state.ItemID, state.OnHandQty.String(), state.AvgUnitCost.String())
	return err
}

func (r *repository) InsertMovement(ctx context.Context, tx pgx.Tx, m StockMovement) (StockMovement, error) {
	err := tx.QueryRow(ctx, `INSERT INTO stock_movements (item_id, direction, qty, unit_cost, source_document_type, source_document_id, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at`,
		m.ItemID, m.Direction, m.Qty.String(), m.UnitCost.String(), m.SourceDocumentType, m.SourceDocumentID, m.OccurredAt).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return StockMovement{}, err
	}
	return m, nil
}

func (r *repository) GetState(ctx context.Context, itemID int64) (ItemCostState, error) {
	var state ItemCostState
	var qty, cost string
	err := r.pool.QueryRow(ctx, `SELECT item_id, on_hand_qty::text, avg_unit_cost::text, updated_at
FROM item_cost_state WHERE item_id=$1`, itemID).
		Scan(&state.ItemID, &qty, &cost, &state.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ItemCostState{}, ErrStateNotFound
		}
		return ItemCostState{}, err
	}
	return parseState(state, qty, cost)
}

func (r *repository) ListStates(ctx context.Context) ([]ItemCostState, error) {
	rows, err := r.pool.Query(ctx, `SELECT item_id, on_hand_qty::text, avg_unit_cost::text, updated_at
FROM item_cost_state ORDER BY item_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var states []ItemCostState
	for rows.Next() {
		var state ItemCostState
		var qty, cost string
		if err := rows.Scan(&state.ItemID, &qty, &cost, &state.UpdatedAt); err != nil {
			return nil, err
		}
		state, err = parseState(state, qty, cost)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

func (r *repository) ListMovements(ctx context.Context, itemID int64, limit int) ([]StockMovement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, direction, qty::text, unit_cost::text, source_document_type, source_document_id, occurred_at, created_at
FROM stock_movements WHERE item_id=$1 ORDER BY id DESC LIMIT $2`, itemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		var qty, cost string
		if err := rows.Scan(&m.ID, &m.ItemID, &m.Direction, &qty, &cost, &m.SourceDocumentType, &m.SourceDocumentID, &m.OccurredAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		if m.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if m.UnitCost, err = decimal.NewFromString(cost); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func parseState(state ItemCostState, qty, cost string) (ItemCostState, error) {
	var err error
	if state.OnHandQty, err = decimal.NewFromString(qty); err != nil {
		return ItemCostState{}, err
	}
	if state.AvgUnitCost, err = decimal.NewFromString(cost); err != nil {
		return ItemCostState{}, err
	}
	return state, nil
}
