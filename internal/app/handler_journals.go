package app

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

type journalLineRequest struct {
	AccountCode string `json:"account_code" validate:"required"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Description string `json:"description"`
}

type postJournalRequest struct {
	DocumentType string               `json:"document_type" validate:"required"`
	DocumentID   string               `json:"document_id" validate:"required,uuid"`
	OccurredAt   string               `json:"occurred_at" validate:"required"`
	Memo         string               `json:"memo"`
	ActorID      int64                `json:"actor_id"`
	Lines        []journalLineRequest `json:"lines" validate:"required,min=2,dive"`
}

type reverseJournalRequest struct {
	ReversalDate string `json:"reversal_date" validate:"required"`
	Memo         string `json:"memo"`
	ActorID      int64  `json:"actor_id"`
}

type journalLineResponse struct {
	AccountCode string          `json:"account_code"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty"`
}

type journalResponse struct {
	ID           int64                 `json:"id"`
	EntryNumber  string                `json:"entry_number"`
	DocumentType string                `json:"document_type"`
	DocumentID   uuid.UUID             `json:"document_id"`
	OccurredAt   time.Time             `json:"occurred_at"`
	Memo         string                `json:"memo,omitempty"`
	PostedBy     int64                 `json:"posted_by"`
	ReversalOf   *int64                `json:"reversal_of,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	Lines        []journalLineResponse `json:"lines"`
}

func toJournalResponse(e journals.JournalEntry) journalResponse {
	out := journalResponse{
		ID:           e.ID,
		EntryNumber:  e.EntryNumber,
		DocumentType: e.DocumentType,
		DocumentID:   e.DocumentID,
		OccurredAt:   e.OccurredAt,
		Memo:         e.Memo,
		PostedBy:     e.PostedBy,
		ReversalOf:   e.ReversalOf,
		CreatedAt:    e.CreatedAt,
	}
	for _, line := range e.Lines {
		out.Lines = append(out.Lines, journalLineResponse{
			AccountCode: line.AccountCode,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	return out
}

// MountJournalRoutes wires the posting engine endpoints.
func (h *Handlers) MountJournalRoutes(r chi.Router) {
	r.Get("/", h.listJournals)
	r.Post("/", h.postJournal)
	r.Get("/{id}", h.getJournal)
	r.Post("/{id}/reverse", h.reverseJournal)
}

func (h *Handlers) postJournal(w http.ResponseWriter, r *http.Request) {
	var req postJournalRequest
	if err := h.decodeValid(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	docID, err := uuid.Parse(req.DocumentID)
	if err != nil {
		badRequest(w, err)
		return
	}
	occurredAt, err := parseDate(req.OccurredAt)
	if err != nil {
		badRequest(w, err)
		return
	}
	in := journals.PostingInput{
		DocumentType: req.DocumentType,
		DocumentID:   docID,
		OccurredAt:   occurredAt,
		Memo:         req.Memo,
		PostedBy:     req.ActorID,
	}
	for _, line := range req.Lines {
		debit, credit := decimal.Zero, decimal.Zero
		if line.Debit != "" {
			if debit, err = parseAmount(line.Debit); err != nil {
				badRequest(w, err)
				return
			}
		}
		if line.Credit != "" {
			if credit, err = parseAmount(line.Credit); err != nil {
				badRequest(w, err)
				return
			}
		}
		in.Lines = append(in.Lines, journals.PostingLineInput{
			AccountCode: line.AccountCode,
			Debit:       debit,
			Credit:      credit,
			Description: line.Description,
		})
	}
	entry, err := h.deps.Journals.Post(r.Context(), in)
	h.observePosting(req.DocumentType, err)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toJournalResponse(entry))
}

func (h *Handlers) reverseJournal(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, err)
		return
	}
	var req reverseJournalRequest
	if err := h.decodeValid(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	reversalDate, err := parseDate(req.ReversalDate)
	if err != nil {
		badRequest(w, err)
		return
	}
	reversal, err := h.deps.Journals.Reverse(r.Context(), journals.ReverseInput{
		EntryID:      entryID,
		ReversalDate: reversalDate,
		Memo:         req.Memo,
		ActorID:      req.ActorID,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toJournalResponse(reversal))
}

func (h *Handlers) getJournal(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, err)
		return
	}
	entry, err := h.deps.Journals.Get(r.Context(), entryID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toJournalResponse(entry))
}

func (h *Handlers) listJournals(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	entries, err := h.deps.Journals.List(r.Context(), limit, offset)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]journalResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toJournalResponse(e))
	}
	httpx.JSON(w, http.StatusOK, out)
}
