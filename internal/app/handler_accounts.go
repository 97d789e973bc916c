package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

type createAccountRequest struct {
	Code     string `json:"code" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Type     string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY INCOME EXPENSE"`
	ParentID *int64 `json:"parent_id"`
	ActorID  int64  `json:"actor_id"`
}

type accountResponse struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toAccountResponse(a accounts.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Code:      a.Code,
		Name:      a.Name,
		Type:      string(a.Type),
		ParentID:  a.ParentID,
		IsActive:  a.IsActive,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// MountAccountRoutes wires the chart of accounts endpoints.
func (h *Handlers) MountAccountRoutes(r chi.Router) {
	r.Get("/", h.listAccounts)
	r.Post("/", h.createAccount)
	r.Get("/{code}", h.getAccount)
	r.Post("/{code}/deactivate", h.deactivateAccount)
	r.Delete("/{code}", h.deleteAccount)
}

func (h *Handlers) listAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Accounts.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]accountResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAccountResponse(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handlers) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := h.decodeValid(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	acc, err := h.deps.Accounts.Create(r.Context(), accounts.CreateInput{
		Code:     req.Code,
		Name:     req.Name,
		Type:     accounts.AccountType(req.Type),
		ParentID: req.ParentID,
		ActorID:  req.ActorID,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountResponse(acc))
}

func (h *Handlers) getAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.deps.Accounts.Resolve(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(acc))
}

func (h *Handlers) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Accounts.Deactivate(r.Context(), chi.URLParam(r, "code"), queryActor(r)); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) deleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Accounts.Delete(r.Context(), chi.URLParam(r, "code"), queryActor(r)); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
