package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-erp/meridian-erp/internal/observability"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger   *slog.Logger
	Config   *Config
	Handlers *Handlers
	Metrics  *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	h := params.Handlers
	r.Route("/accounting/accounts", h.MountAccountRoutes)
	r.Route("/accounting/periods", h.MountPeriodRoutes)
	r.Route("/accounting/journals", h.MountJournalRoutes)
	r.Route("/inventory", h.MountInventoryRoutes)
	r.Route("/sales/invoices", h.MountInvoiceRoutes)
	r.Route("/procurement/bills", h.MountBillRoutes)
	r.Route("/payments", h.MountPaymentRoutes)
	r.Route("/opname", h.MountOpnameRoutes)
	r.Route("/reports", h.MountReportRoutes)

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
