package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/payments"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

type recordPaymentRequest struct {
	Kind           string `json:"kind" validate:"required,oneof=RECEIPT DISBURSEMENT"`
	DocumentID     string `json:"document_id" validate:"required,uuid"`
	Amount         string `json:"amount" validate:"required"`
	PaymentDate    string `json:"payment_date" validate:"required"`
	Memo           string `json:"memo"`
	ActorID        int64  `json:"actor_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

type paymentResponse struct {
	ID            uuid.UUID       `json:"id"`
	PaymentNumber string          `json:"payment_number"`
	Kind          string          `json:"kind"`
	DocumentID    uuid.UUID       `json:"document_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   time.Time       `json:"payment_date"`
	Memo          string          `json:"memo,omitempty"`
	JournalID     int64           `json:"journal_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toPaymentResponse(p payments.Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		PaymentNumber: p.PaymentNumber,
		Kind:          string(p.Kind),
		DocumentID:    p.DocumentID,
		Amount:        p.Amount,
		PaymentDate:   p.PaymentDate,
		Memo:          p.Memo,
		JournalID:     p.JournalID,
		CreatedAt:     p.CreatedAt,
	}
}

// MountPaymentRoutes wires the payment endpoints.
func (h *Handlers) MountPaymentRoutes(r chi.Router) {
	r.Get("/", h.listPayments)
	r.Post("/", h.recordPayment)
	r.Get("/{id}", h.getPayment)
}

func (h *Handlers) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := h.decodeValid(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	docID, err := uuid.Parse(req.DocumentID)
	if err != nil {
		badRequest(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		badRequest(w, err)
		return
	}
	paymentDate, err := parseDate(req.PaymentDate)
	if err != nil {
		badRequest(w, err)
		return
	}
	payment, err := h.deps.Payments.Record(r.Context(), payments.RecordInput{
		Kind:           payments.Kind(req.Kind),
		DocumentID:     docID,
		Amount:         amount,
		PaymentDate:    paymentDate,
		Memo:           req.Memo,
		ActorID:        req.ActorID,
		IdempotencyKey: req.IdempotencyKey,
	})
	h.observePosting(payments.DocType, err)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPaymentResponse(payment))
}

func (h *Handlers) getPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	payment, err := h.deps.Payments.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPaymentResponse(payment))
}

// listPayments returns settlements recorded against one document.
func (h *Handlers) listPayments(w http.ResponseWriter, r *http.Request) {
	docID, err := uuid.Parse(r.URL.Query().Get("document_id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	list, err := h.deps.Payments.ListForDocument(r.Context(), docID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]paymentResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toPaymentResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}
