package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

type periodLockResponse struct {
	PeriodKey string    `json:"period_key"`
	LockedBy  int64     `json:"locked_by"`
	LockedAt  time.Time `json:"locked_at"`
}

type periodActionRequest struct {
	ActorID int64 `json:"actor_id"`
}

// MountPeriodRoutes wires the period lock endpoints.
func (h *Handlers) MountPeriodRoutes(r chi.Router) {
	r.Get("/", h.listPeriodLocks)
	r.Post("/{key}/lock", h.lockPeriod)
	r.Post("/{key}/unlock", h.unlockPeriod)
}

func (h *Handlers) listPeriodLocks(w http.ResponseWriter, r *http.Request) {
	locks, err := h.deps.Periods.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]periodLockResponse, 0, len(locks))
	for _, l := range locks {
		out = append(out, periodLockResponse{PeriodKey: l.PeriodKey, LockedBy: l.LockedBy, LockedAt: l.LockedAt})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handlers) lockPeriod(w http.ResponseWriter, r *http.Request) {
	var req periodActionRequest
	if err := h.decodeValid(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if err := h.deps.Periods.Lock(r.Context(), chi.URLParam(r, "key"), req.ActorID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) unlockPeriod(w http.ResponseWriter, r *http.Request) {
	var req periodActionRequest
	if err := h.decodeValid(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if err := h.deps.Periods.Unlock(r.Context(), chi.URLParam(r, "key"), req.ActorID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
