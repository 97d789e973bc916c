package app

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

type receiveStockRequest struct {
	ItemID   int64  `json:"item_id" validate:"required"`
	Qty      string `json:"qty" validate:"required"`
	UnitCost string `json:"unit_cost" validate:"required"`
	Date     string `json:"date"`
	Memo     string `json:"memo"`
	ActorID  int64  `json:"actor_id"`
}

type issueStockRequest struct {
	ItemID  int64  `json:"item_id" validate:"required"`
	Qty     string `json:"qty" validate:"required"`
	Date    string `json:"date"`
	Memo    string `json:"memo"`
	ActorID int64  `json:"actor_id"`
}

type adjustStockRequest struct {
	ItemID   int64  `json:"item_id" validate:"required"`
	DeltaQty string `json:"delta_qty" validate:"required"`
	UnitCost string `json:"unit_cost"`
	Date     string `json:"date"`
	Memo     string `json:"memo"`
	ActorID  int64  `json:"actor_id"`
}

type movementResponse struct {
	ID         int64           `json:"id"`
	ItemID     int64           `json:"item_id"`
	Direction  string          `json:"direction"`
	Qty        decimal.Decimal `json:"qty"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	DocType    string          `json:"doc_type"`
	DocID      uuid.UUID       `json:"doc_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	JournalID  *int64          `json:"journal_id,omitempty"`
}

type costStateResponse struct {
	ItemID      int64           `json:"item_id"`
	OnHandQty   decimal.Decimal `json:"on_hand_qty"`
	AvgUnitCost decimal.Decimal `json:"avg_unit_cost"`
	TotalValue  decimal.Decimal `json:"total_value"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func toMovementResponse(m inventory.StockMovement) movementResponse {
	return movementResponse{
		ID:         m.ID,
		ItemID:     m.ItemID,
		Direction:  string(m.Direction),
		Qty:        m.Qty,
		UnitCost:   m.UnitCost,
		DocType:    m.SourceDocumentType,
		DocID:      m.SourceDocumentID,
		OccurredAt: m.OccurredAt,
	}
}

func toManualResponse(m inventory.ManualMovement) movementResponse {
	out := toMovementResponse(m.Movement)
	out.JournalID = m.JournalID
	return out
}

// MountInventoryRoutes wires the stock ledger endpoints.
func (h *Handlers) MountInventoryRoutes(r chi.Router) {
	r.Post("/receive", h.receiveStock)
	r.Post("/issue", h.issueStock)
	r.Post("/adjust", h.adjustStock)
	r.Get("/items/{id}/state", h.itemState)
	r.Get("/items/{id}/movements", h.itemMovements)
}

func (h *Handlers) receiveStock(w http.ResponseWriter, r *http.Request) {
	var req receiveStockRequest
	if err := h.decodeValid(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	qty, err := parseAmount(req.Qty)
	if err != nil {
		badRequest(w, err)
		return
	}
	unitCost, err := parseAmount(req.UnitCost)
	if err != nil {
		badRequest(w, err)
		return
	}
	occurredAt, err := parseDateOrNow(req.Date)
	if err != nil {
		badRequest(w, err)
		return
	}
	got, err := h.deps.Movements.Receive(r.Context(), inventory.ManualReceiveInput{
		ItemID:     req.ItemID,
		Qty:        qty,
		UnitCost:   unitCost,
		OccurredAt: occurredAt,
		Memo:       req.Memo,
		ActorID:    req.ActorID,
	})
	h.observePosting(inventory.ManualDocType, err)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toManualResponse(got))
}

func (h *Handlers) issueStock(w http.ResponseWriter, r *http.Request) {
	var req issueStockRequest
	if err := h.decodeValid(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	qty, err := parseAmount(req.Qty)
	if err != nil {
		badRequest(w, err)
		return
	}
	occurredAt, err := parseDateOrNow(req.Date)
	if err != nil {
		badRequest(w, err)
		return
	}
	got, err := h.deps.Movements.Issue(r.Context(), inventory.ManualIssueInput{
		ItemID:     req.ItemID,
		Qty:        qty,
		OccurredAt: occurredAt,
		Memo:       req.Memo,
		ActorID:    req.ActorID,
	})
	h.observePosting(inventory.ManualDocType, err)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toManualResponse(got))
}

func (h *Handlers) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockRequest
	if err := h.decodeValid(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	delta, err := parseAmount(req.DeltaQty)
	if err != nil {
		badRequest(w, err)
		return
	}
	unitCost := decimal.Zero
	if req.UnitCost != "" {
		if unitCost, err = parseAmount(req.UnitCost); err != nil {
			badRequest(w, err)
			return
		}
	}
	occurredAt, err := parseDateOrNow(req.Date)
	if err != nil {
		badRequest(w, err)
		return
	}
	got, err := h.deps.Movements.Adjust(r.Context(), inventory.ManualAdjustInput{
		ItemID:     req.ItemID,
		DeltaQty:   delta,
		UnitCost:   unitCost,
		OccurredAt: occurredAt,
		Memo:       req.Memo,
		ActorID:    req.ActorID,
	})
	h.observePosting(inventory.ManualDocType, err)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toManualResponse(got))
}

func (h *Handlers) itemState(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, err)
		return
	}
	state, err := h.deps.Ledger.State(r.Context(), itemID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, costStateResponse{
		ItemID:      state.ItemID,
		OnHandQty:   state.OnHandQty,
		AvgUnitCost: state.AvgUnitCost,
		TotalValue:  state.TotalValue(),
		UpdatedAt:   state.UpdatedAt,
	})
}

func (h *Handlers) itemMovements(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, err)
		return
	}
	movements, err := h.deps.Ledger.Movements(r.Context(), itemID, queryInt(r, "limit", 100))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, toMovementResponse(m))
	}
	httpx.JSON(w, http.StatusOK, out)
}
