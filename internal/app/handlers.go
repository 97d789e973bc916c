package app

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/accounting/periods"
	"github.com/meridian-erp/meridian-erp/internal/accounting/reports"
	accshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/opname"
	"github.com/meridian-erp/meridian-erp/internal/payments"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/procurement/bills"
	"github.com/meridian-erp/meridian-erp/internal/sales/invoices"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// dateLayout is the wire format for date-only fields.
const dateLayout = "2006-01-02"

// HandlerDeps groups the services the HTTP surface exposes.
type HandlerDeps struct {
	Logger    *slog.Logger
	Accounts  *accounts.Registry
	Periods   *periods.Guard
	Journals  *journals.Engine
	Ledger    *inventory.Ledger
	Movements *inventory.Movements
	Invoices  *invoices.Service
	Bills     *bills.Service
	Payments  *payments.Service
	Opname    *opname.Service
	Reports   *reports.Service
	Metrics   *observability.Metrics
}

// Handlers holds the JSON API endpoints.
type Handlers struct {
	deps     HandlerDeps
	validate *validator.Validate
}

// NewHandlers constructs the handler set with its request validator.
func NewHandlers(deps HandlerDeps) *Handlers {
	return &Handlers{deps: deps, validate: validator.New()}
}

// decodeValid decodes the request body and runs struct validation.
func (h *Handlers) decodeValid(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return err
	}
	return h.validate.Struct(target)
}

// respondError translates domain errors into problem detail responses.
func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound),
		errors.Is(err, accshared.ErrJournalNotFound),
		errors.Is(err, inventory.ErrStateNotFound):
		httpx.Problem(w, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, accshared.ErrPeriodLocked),
		errors.Is(err, accshared.ErrInvalidStatus),
		errors.Is(err, accshared.ErrAccountInUse),
		errors.Is(err, accshared.ErrOverpayment),
		errors.Is(err, shared.ErrIdempotencyConflict),
		errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, db.ErrConcurrencyConflict):
		httpx.Problem(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, accshared.ErrUnbalanced),
		errors.Is(err, accshared.ErrTooFewLines),
		errors.Is(err, accshared.ErrUnknownAccount),
		errors.Is(err, accshared.ErrInvalidAmount),
		errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, inventory.ErrInvalidUnitCost):
		httpx.Problem(w, http.StatusUnprocessableEntity, "unprocessable", err.Error())
	default:
		h.deps.Logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "internal error", "")
	}
}

// observePosting records the outcome of a document posting attempt.
func (h *Handlers) observePosting(docType string, err error) {
	if err != nil {
		h.deps.Metrics.ObservePostingFailure(docType)
		return
	}
	h.deps.Metrics.ObservePosting(docType)
}

func badRequest(w http.ResponseWriter, err error) {
	httpx.Problem(w, http.StatusBadRequest, "bad request", err.Error())
}

// parseDate accepts date-only values in 2006-01-02 form.
func parseDate(raw string) (time.Time, error) {
	return time.Parse(dateLayout, raw)
}

// parseDateOrNow returns the current UTC time when raw is empty.
func parseDateOrNow(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	return parseDate(raw)
}

func parseAmount(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(raw)
}

// queryInt reads an integer query parameter with a fallback.
func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

// queryActor reads the acting user id from the query string.
func queryActor(r *http.Request) int64 {
	v, _ := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
	return v
}
