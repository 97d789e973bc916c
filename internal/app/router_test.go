package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &Config{AppEnv: "test", AppRequestTimeout: 0}
	handlers := NewHandlers(HandlerDeps{Logger: logger})
	return NewRouter(RouterParams{Logger: logger, Config: cfg, Handlers: handlers})
}

func TestHealthz(t *testing.T) {
	router := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateInvoiceRejectsMissingFields(t *testing.T) {
	router := testRouter(t)

	body := strings.NewReader(`{"customer_name":"","lines":[]}`)
	req := httptest.NewRequest(http.MethodPost, "/sales/invoices", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "bad request")
}

func TestPostJournalRejectsBadAmount(t *testing.T) {
	router := testRouter(t)

	body := strings.NewReader(`{
		"document_type": "GEN",
		"document_id": "6f1e9df2-99a1-4c9c-9a53-0f0c1a1b2c3d",
		"occurred_at": "2026-08-01",
		"lines": [
			{"account_code": "1100", "debit": "not-a-number"},
			{"account_code": "4000", "credit": "100.00"}
		]
	}`)
	req := httptest.NewRequest(http.MethodPost, "/accounting/journals", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordPaymentRejectsUnknownKind(t *testing.T) {
	router := testRouter(t)

	body := strings.NewReader(`{
		"kind": "TRANSFER",
		"document_id": "6f1e9df2-99a1-4c9c-9a53-0f0c1a1b2c3d",
		"amount": "10.00",
		"payment_date": "2026-08-01"
	}`)
	req := httptest.NewRequest(http.MethodPost, "/payments", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
