package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/procurement/bills"
)

type billLineRequest struct {
	ItemID      *int64 `json:"item_id"`
	Description string `json:"description" validate:"required"`
	Qty         string `json:"qty" validate:"required"`
	UnitCost    string `json:"unit_cost" validate:"required"`
}

type createBillRequest struct {
	SupplierName string            `json:"supplier_name" validate:"required"`
	BillDate     string            `json:"bill_date" validate:"required"`
	Memo         string            `json:"memo"`
	Lines        []billLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type billLineResponse struct {
	ID          int64           `json:"id"`
	ItemID      *int64          `json:"item_id,omitempty"`
	Description string          `json:"description"`
	Qty         decimal.Decimal `json:"qty"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Amount      decimal.Decimal `json:"amount"`
}

type billResponse struct {
	ID           uuid.UUID          `json:"id"`
	BillNumber   string             `json:"bill_number,omitempty"`
	SupplierName string             `json:"supplier_name"`
	Status       string             `json:"status"`
	BillDate     time.Time          `json:"bill_date"`
	Memo         string             `json:"memo,omitempty"`
	Total        decimal.Decimal    `json:"total"`
	PaidTotal    decimal.Decimal    `json:"paid_total"`
	Outstanding  decimal.Decimal    `json:"outstanding"`
	JournalID    *int64             `json:"journal_id,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	Lines        []billLineResponse `json:"lines,omitempty"`
}

func toBillResponse(b bills.Bill) billResponse {
	out := billResponse{
		ID:           b.ID,
		BillNumber:   b.BillNumber,
		SupplierName: b.SupplierName,
		Status:       string(b.Status),
		BillDate:     b.BillDate,
		Memo:         b.Memo,
		Total:        b.Total,
		PaidTotal:    b.PaidTotal,
		Outstanding:  b.Outstanding(),
		JournalID:    b.JournalID,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
	for _, line := range b.Lines {
		out.Lines = append(out.Lines, billLineResponse{
			ID:          line.ID,
			ItemID:      line.ItemID,
			Description: line.Description,
			Qty:         line.Qty,
			UnitCost:    line.UnitCost,
			Amount:      line.Amount,
		})
	}
	return out
}

// MountBillRoutes wires the purchase bill lifecycle endpoints.
func (h *Handlers) MountBillRoutes(r chi.Router) {
	r.Get("/", h.listBills)
	r.Post("/", h.createBill)
	r.Get("/{id}", h.getBill)
	r.Post("/{id}/post", h.postBill)
	r.Post("/{id}/void", h.voidBill)
}

func (h *Handlers) createBill(w http.ResponseWriter, r *http.Request) {
	var req createBillRequest
	if err := h.decodeValid(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	billDate, err := parseDate(req.BillDate)
	if err != nil {
		badRequest(w, err)
		return
	}
	in := bills.CreateInput{
		SupplierName: req.SupplierName,
		BillDate:     billDate,
		Memo:         req.Memo,
	}
	for _, line := range req.Lines {
		qty, err := parseAmount(line.Qty)
		if err != nil {
			badRequest(w, err)
			return
		}
		unitCost, err := parseAmount(line.UnitCost)
		if err != nil {
			badRequest(w, err)
			return
		}
		in.Lines = append(in.Lines, bills.LineInput{
			ItemID:      line.ItemID,
			Description: line.Description,
			Qty:         qty,
			UnitCost:    unitCost,
		})
	}
	bill, err := h.deps.Bills.CreateDraft(r.Context(), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toBillResponse(bill))
}

func (h *Handlers) postBill(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	var req postDocumentRequest
	if err := h.decodeValid(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	bill, err := h.deps.Bills.Post(r.Context(), id, req.ActorID)
	h.observePosting(bills.DocType, err)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBillResponse(bill))
}

func (h *Handlers) voidBill(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	var req voidDocumentRequest
	if err := h.decodeValid(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	voidDate, err := parseDate(req.VoidDate)
	if err != nil {
		badRequest(w, err)
		return
	}
	bill, err := h.deps.Bills.Void(r.Context(), id, voidDate, req.ActorID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBillResponse(bill))
}

func (h *Handlers) getBill(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	bill, err := h.deps.Bills.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBillResponse(bill))
}

func (h *Handlers) listBills(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Bills.List(r.Context(), queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]billResponse, 0, len(list))
	for _, b := range list {
		out = append(out, toBillResponse(b))
	}
	httpx.JSON(w, http.StatusOK, out)
}
