package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/sales/invoices"
)

type invoiceLineRequest struct {
	ItemID      *int64 `json:"item_id"`
	Description string `json:"description" validate:"required"`
	Qty         string `json:"qty" validate:"required"`
	UnitPrice   string `json:"unit_price" validate:"required"`
}

type createInvoiceRequest struct {
	CustomerName string               `json:"customer_name" validate:"required"`
	InvoiceDate  string               `json:"invoice_date" validate:"required"`
	Memo         string               `json:"memo"`
	Lines        []invoiceLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type voidDocumentRequest struct {
	VoidDate string `json:"void_date" validate:"required"`
	ActorID  int64  `json:"actor_id"`
}

type postDocumentRequest struct {
	ActorID int64 `json:"actor_id"`
}

type invoiceLineResponse struct {
	ID          int64           `json:"id"`
	ItemID      *int64          `json:"item_id,omitempty"`
	Description string          `json:"description"`
	Qty         decimal.Decimal `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
	CostAmount  decimal.Decimal `json:"cost_amount"`
}

type invoiceResponse struct {
	ID            uuid.UUID             `json:"id"`
	InvoiceNumber string                `json:"invoice_number,omitempty"`
	CustomerName  string                `json:"customer_name"`
	Status        string                `json:"status"`
	InvoiceDate   time.Time             `json:"invoice_date"`
	Memo          string                `json:"memo,omitempty"`
	Total         decimal.Decimal       `json:"total"`
	PaidTotal     decimal.Decimal       `json:"paid_total"`
	Outstanding   decimal.Decimal       `json:"outstanding"`
	JournalID     *int64                `json:"journal_id,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	Lines         []invoiceLineResponse `json:"lines,omitempty"`
}

func toInvoiceResponse(inv invoices.Invoice) invoiceResponse {
	out := invoiceResponse{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		CustomerName:  inv.CustomerName,
		Status:        string(inv.Status),
		InvoiceDate:   inv.InvoiceDate,
		Memo:          inv.Memo,
		Total:         inv.Total,
		PaidTotal:     inv.PaidTotal,
		Outstanding:   inv.Outstanding(),
		JournalID:     inv.JournalID,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
	for _, line := range inv.Lines {
		out.Lines = append(out.Lines, invoiceLineResponse{
			ID:          line.ID,
			ItemID:      line.ItemID,
			Description: line.Description,
			Qty:         line.Qty,
			UnitPrice:   line.UnitPrice,
			Amount:      line.Amount,
			CostAmount:  line.CostAmount,
		})
	}
	return out
}

// MountInvoiceRoutes wires the sales invoice lifecycle endpoints.
func (h *Handlers) MountInvoiceRoutes(r chi.Router) {
	r.Get("/", h.listInvoices)
	r.Post("/", h.createInvoice)
	r.Get("/{id}", h.getInvoice)
	r.Post("/{id}/post", h.postInvoice)
	r.Post("/{id}/void", h.voidInvoice)
}

func (h *Handlers) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := h.decodeValid(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	invoiceDate, err := parseDate(req.InvoiceDate)
	if err != nil {
		badRequest(w, err)
		return
	}
	in := invoices.CreateInput{
		CustomerName: req.CustomerName,
		InvoiceDate:  invoiceDate,
		Memo:         req.Memo,
	}
	for _, line := range req.Lines {
		qty, err := parseAmount(line.Qty)
		if err != nil {
			badRequest(w, err)
			return
		}
		unitPrice, err := parseAmount(line.UnitPrice)
		if err != nil {
			badRequest(w, err)
			return
		}
		in.Lines = append(in.Lines, invoices.LineInput{
			ItemID:      line.ItemID,
			Description: line.Description,
			Qty:         qty,
			UnitPrice:   unitPrice,
		})
	}
	inv, err := h.deps.Invoices.CreateDraft(r.Context(), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toInvoiceResponse(inv))
}

func (h *Handlers) postInvoice(w http.ResponseWriter, r *http.Request) {
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
	inv, err := h.deps.Invoices.Post(r.Context(), id, req.ActorID)
	h.observePosting(invoices.DocType, err)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handlers) voidInvoice(w http.ResponseWriter, r *http.Request) {
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
	inv, err := h.deps.Invoices.Void(r.Context(), id, voidDate, req.ActorID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handlers) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	inv, err := h.deps.Invoices.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handlers) listInvoices(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Invoices.List(r.Context(), queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]invoiceResponse, 0, len(list))
	for _, inv := range list {
		out = append(out, toInvoiceResponse(inv))
	}
	httpx.JSON(w, http.StatusOK, out)
}
