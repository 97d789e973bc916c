package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	states    map[int64]ItemCostState
	movements []StockMovement
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{states: make(map[int64]ItemCostState)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return fn(ctx, nil)
}

func (r *memoryRepo) GetStateForUpdate(ctx context.Context, _ pgx.Tx, itemID int64) (ItemCostState, error) {
	if state, ok := r.states[itemID]; ok {
		return state, nil
	}
	state := ItemCostState{ItemID: itemID, OnHandQty: decimal.Zero, AvgUnitCost: decimal.Zero}
	r.states[itemID] = state
	return state, nil
}

func (r *memoryRepo) UpdateState(ctx context.Context, _ pgx.Tx, state ItemCostState) error {
	r.states[state.ItemID] = state
	return nil
}

func (r *memoryRepo) InsertMovement(ctx context.Context, _ pgx.Tx, m StockMovement) (StockMovement, error) {
	r.nextID++
	m.ID = r.nextID
	m.CreatedAt = time.Now()
	r.movements = append(r.movements, m)
	return m, nil
}

func (r *memoryRepo) GetState(ctx context.Context, itemID int64) (ItemCostState, error) {
	if state, ok := r.states[itemID]; ok {
		return state, nil
	}
	return ItemCostState{}, ErrStateNotFound
}

func (r *memoryRepo) ListStates(ctx context.Context) ([]ItemCostState, error) {
	out := make([]ItemCostState, 0, len(r.states))
	for _, state := range r.states {
		out = append(out, state)
	}
	return out, nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, itemID int64, limit int) ([]StockMovement, error) {
	var out []StockMovement
	for _, m := range r.movements {
		if m.ItemID == itemID {
			out = append(out, m)
		}
	}
	return out, nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func doc() DocRef {
	return NewDocRef("ADJ", uuid.New(), time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC))
}

func TestWeightedAverageScenario(t *testing.T) {
	ledger := NewLedger(newMemoryRepo(), nil, Config{})
	ctx := context.Background()

	_, err := ledger.ReceiveTx(ctx, nil,ReceiveInput{ItemID: 1, Qty: d("10"), UnitCost: d("100"), Doc: doc()})
	require.NoError(t, err)
	state, err := ledger.State(ctx, 1)
	require.NoError(t, err)
	require.True(t, state.AvgUnitCost.Equal(d("100")), "avg %s", state.AvgUnitCost)

	_, err = ledger.ReceiveTx(ctx, nil,ReceiveInput{ItemID: 1, Qty: d("10"), UnitCost: d("200"), Doc: doc()})
	require.NoError(t, err)
	state, err = ledger.State(ctx, 1)
	require.NoError(t, err)
	require.True(t, state.AvgUnitCost.Equal(d("150")), "avg %s", state.AvgUnitCost)
	require.True(t, state.OnHandQty.Equal(d("20")))

	issue, err := ledger.IssueTx(ctx, nil,IssueInput{ItemID: 1, Qty: d("5"), Doc: doc()})
	require.NoError(t, err)
	require.True(t, issue.COGSAmount.Equal(d("750")), "cogs %s", issue.COGSAmount)

	state, err = ledger.State(ctx, 1)
	require.NoError(t, err)
	require.True(t, state.OnHandQty.Equal(d("15")))
	require.True(t, state.AvgUnitCost.Equal(d("150")), "avg unchanged by issue")
}

func TestIssueBeyondOnHandFails(t *testing.T) {
	repo := newMemoryRepo()
	ledger := NewLedger(repo, nil, Config{})
	ctx := context.Background()

	_, err := ledger.ReceiveTx(ctx, nil,ReceiveInput{ItemID: 1, Qty: d("3"), UnitCost: d("50"), Doc: doc()})
	require.NoError(t, err)

	_, err = ledger.IssueTx(ctx, nil,IssueInput{ItemID: 1, Qty: d("4"), Doc: doc()})
	require.ErrorIs(t, err, ErrInsufficientStock)

	// State unchanged after the failed issue.
	state, err := ledger.State(ctx, 1)
	require.NoError(t, err)
	require.True(t, state.OnHandQty.Equal(d("3")))
	require.Len(t, repo.movements, 1)
}

func TestNegativeStockFlag(t *testing.T) {
	ledger := NewLedger(newMemoryRepo(), nil, Config{AllowNegativeStock: true})
	ctx := context.Background()

	issue, err := ledger.IssueTx(ctx, nil,IssueInput{ItemID: 1, Qty: d("2"), Doc: doc()})
	require.NoError(t, err)
	require.True(t, issue.COGSAmount.IsZero())

	state, err := ledger.State(ctx, 1)
	require.NoError(t, err)
	require.True(t, state.OnHandQty.Equal(d("-2")))
}

func TestInvalidInputs(t *testing.T) {
	ledger := NewLedger(newMemoryRepo(), nil, Config{})
	ctx := context.Background()

	_, err := ledger.ReceiveTx(ctx, nil,ReceiveInput{ItemID: 1, Qty: d("0"), UnitCost: d("10"), Doc: doc()})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = ledger.ReceiveTx(ctx, nil,ReceiveInput{ItemID: 1, Qty: d("1"), UnitCost: d("-10"), Doc: doc()})
	require.ErrorIs(t, err, ErrInvalidUnitCost)

	_, err = ledger.IssueTx(ctx, nil,IssueInput{ItemID: 1, Qty: d("-1"), Doc: doc()})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = ledger.AdjustTx(ctx, nil,AdjustInput{ItemID: 1, DeltaQty: d("0"), Doc: doc()})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestAdjustWrapsBySign(t *testing.T) {
	ledger := NewLedger(newMemoryRepo(), nil, Config{})
	ctx := context.Background()

	up, err := ledger.AdjustTx(ctx, nil,AdjustInput{ItemID: 1, DeltaQty: d("4"), UnitCost: d("25"), Doc: doc()})
	require.NoError(t, err)
	require.Equal(t, DirectionIn, up.Movement.Direction)
	require.True(t, up.Amount.Equal(d("100")))

	down, err := ledger.AdjustTx(ctx, nil,AdjustInput{ItemID: 1, DeltaQty: d("-1"), Doc: doc()})
	require.NoError(t, err)
	require.Equal(t, DirectionOut, down.Movement.Direction)
	require.True(t, down.Amount.Equal(d("25")))

	state, err := ledger.State(ctx, 1)
	require.NoError(t, err)
	require.True(t, state.OnHandQty.Equal(d("3")))
}

func TestAdjustmentLinesBalance(t *testing.T) {
	ledger := NewLedger(newMemoryRepo(), nil, Config{})
	ctx := context.Background()

	up, err := ledger.AdjustTx(ctx, nil,AdjustInput{ItemID: 1, DeltaQty: d("4"), UnitCost: d("25"), Doc: doc()})
	require.NoError(t, err)

	lines := AdjustmentLines(up, "count variance", "1200", "6100")
	require.Len(t, lines, 2)
	require.Equal(t, "1200", lines[0].AccountCode)
	require.True(t, lines[0].Debit.Equal(lines[1].Credit))
}
