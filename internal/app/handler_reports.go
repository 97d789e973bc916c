package app

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

var errBadWindow = errors.New("from and to are required as YYYY-MM-DD")

// reportWindow reads the from/to query parameters.
func reportWindow(r *http.Request) (time.Time, time.Time, error) {
	from, err := parseDate(r.URL.Query().Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, errBadWindow
	}
	to, err := parseDate(r.URL.Query().Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, errBadWindow
	}
	return from, to, nil
}

// reportAsOf reads the as_of query parameter, defaulting to today.
func reportAsOf(r *http.Request) (time.Time, error) {
	return parseDateOrNow(r.URL.Query().Get("as_of"))
}

// MountReportRoutes wires the read-only report endpoints.
func (h *Handlers) MountReportRoutes(r chi.Router) {
	r.Get("/trial-balance", h.trialBalance)
	r.Get("/profit-loss", h.profitAndLoss)
	r.Get("/balance-sheet", h.balanceSheet)
	r.Get("/aging/receivables", h.receivablesAging)
	r.Get("/aging/payables", h.payablesAging)
	r.Get("/valuation", h.valuation)
}

func (h *Handlers) trialBalance(w http.ResponseWriter, r *http.Request) {
	from, to, err := reportWindow(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	report, err := h.deps.Reports.TrialBalance(r.Context(), from, to)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handlers) profitAndLoss(w http.ResponseWriter, r *http.Request) {
	from, to, err := reportWindow(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	report, err := h.deps.Reports.ProfitAndLoss(r.Context(), from, to)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handlers) balanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, err := reportAsOf(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	report, err := h.deps.Reports.BalanceSheet(r.Context(), asOf)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handlers) receivablesAging(w http.ResponseWriter, r *http.Request) {
	asOf, err := reportAsOf(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	report, err := h.deps.Reports.ReceivablesAging(r.Context(), asOf)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handlers) payablesAging(w http.ResponseWriter, r *http.Request) {
	asOf, err := reportAsOf(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	report, err := h.deps.Reports.PayablesAging(r.Context(), asOf)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handlers) valuation(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.Reports.Valuation(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
