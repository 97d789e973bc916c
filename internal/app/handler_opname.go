package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/opname"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

type openOpnameRequest struct {
	Notes   string `json:"notes"`
	ActorID int64  `json:"actor_id"`
}

type recordCountRequest struct {
	ItemID     int64  `json:"item_id" validate:"required"`
	CountedQty string `json:"counted_qty" validate:"required"`
}

type postOpnameRequest struct {
	PostDate string `json:"post_date" validate:"required"`
	ActorID  int64  `json:"actor_id"`
}

type countItemResponse struct {
	ItemID      int64           `json:"item_id"`
	SnapshotQty decimal.Decimal `json:"snapshot_qty"`
	CountedQty  decimal.Decimal `json:"counted_qty"`
	Variance    decimal.Decimal `json:"variance"`
	RecordedAt  time.Time       `json:"recorded_at"`
}

type opnameResponse struct {
	ID            uuid.UUID           `json:"id"`
	SessionNumber string              `json:"session_number"`
	Status        string              `json:"status"`
	Notes         string              `json:"notes,omitempty"`
	CreatedBy     int64               `json:"created_by"`
	JournalID     *int64              `json:"journal_id,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Items         []countItemResponse `json:"items,omitempty"`
}

func toOpnameResponse(s opname.Session) opnameResponse {
	out := opnameResponse{
		ID:            s.ID,
		SessionNumber: s.SessionNumber,
		Status:        string(s.Status),
		Notes:         s.Notes,
		CreatedBy:     s.CreatedBy,
		JournalID:     s.JournalID,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
	for _, item := range s.Items {
		out.Items = append(out.Items, countItemResponse{
			ItemID:      item.ItemID,
			SnapshotQty: item.SnapshotQty,
			CountedQty:  item.CountedQty,
			Variance:    item.Variance(),
			RecordedAt:  item.RecordedAt,
		})
	}
	return out
}

// MountOpnameRoutes wires the stock count session endpoints.
func (h *Handlers) MountOpnameRoutes(r chi.Router) {
	r.Get("/", h.listOpnames)
	r.Post("/", h.openOpname)
	r.Get("/{id}", h.getOpname)
	r.Post("/{id}/counts", h.recordCount)
	r.Post("/{id}/submit", h.submitOpname)
	r.Post("/{id}/cancel", h.cancelOpname)
	r.Post("/{id}/post", h.postOpname)
}

func (h *Handlers) openOpname(w http.ResponseWriter, r *http.Request) {
	var req openOpnameRequest
	if err := h.decodeValid(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	session, err := h.deps.Opname.Open(r.Context(), req.Notes, req.ActorID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toOpnameResponse(session))
}

func (h *Handlers) recordCount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	var req recordCountRequest
	if err := h.decodeValid(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	counted, err := parseAmount(req.CountedQty)
	if err != nil {
		badRequest(w, err)
		return
	}
	session, err := h.deps.Opname.RecordCount(r.Context(), id, req.ItemID, counted)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOpnameResponse(session))
}

func (h *Handlers) submitOpname(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	session, err := h.deps.Opname.Submit(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOpnameResponse(session))
}

func (h *Handlers) cancelOpname(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	session, err := h.deps.Opname.Cancel(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOpnameResponse(session))
}

func (h *Handlers) postOpname(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	var req postOpnameRequest
	if err := h.decodeValid(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	postDate, err := parseDate(req.PostDate)
	if err != nil {
		badRequest(w, err)
		return
	}
	session, err := h.deps.Opname.Post(r.Context(), id, postDate, req.ActorID)
	h.observePosting(opname.DocType, err)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOpnameResponse(session))
}

func (h *Handlers) getOpname(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err)
		return
	}
	session, err := h.deps.Opname.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOpnameResponse(session))
}

func (h *Handlers) listOpnames(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Opname.List(r.Context(), queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]opnameResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toOpnameResponse(s))
	}
	httpx.JSON(w, http.StatusOK, out)
}
