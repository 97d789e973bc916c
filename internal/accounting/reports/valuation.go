package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ValuationRow reports one item's quantity and carrying value.
type ValuationRow struct {
	ItemID      int64           `json:"item_id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	OnHand      decimal.Decimal `json:"on_hand"`
	AvgUnitCost decimal.Decimal `json:"avg_unit_cost"`
	TotalValue  decimal.Decimal `json:"total_value"`
}

// InventoryValuation is the stock valuation report.
type InventoryValuation struct {
	Rows       []ValuationRow  `json:"rows"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// BuildValuation computes per-item carrying value as on-hand quantity times
// the moving average unit cost, rounded to currency precision.
func BuildValuation(rows []ValuationRow) InventoryValuation {
	out := InventoryValuation{}
	for _, row := range rows {
		row.TotalValue = shared.RoundMoney(row.OnHand.Mul(row.AvgUnitCost))
		out.Rows = append(out.Rows, row)
		out.TotalValue = out.TotalValue.Add(row.TotalValue)
	}
	sort.Slice(out.Rows, func(i, j int) bool { return out.Rows[i].SKU < out.Rows[j].SKU })
	return out
}
