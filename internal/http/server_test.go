package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"taxledger/internal/core"
	"taxledger/internal/importer"
	"taxledger/internal/rates"
	"taxledger/internal/services"
	"taxledger/internal/storage"
	"taxledger/internal/storage/memory"
)

type failingProvider struct{}

func (failingProvider) Latest(context.Context) (rates.Table, error) {
	return rates.Table{}, errors.New("provider down")
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T, rateLimit int) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	if err := storage.SeedCurrencies(context.Background(), store); err != nil {
		t.Fatalf("seed currencies: %v", err)
	}
	fallback, err := rates.LoadFallback("")
	if err != nil {
		t.Fatalf("load fallback: %v", err)
	}

	dashboard := services.NewDashboardService(store, nil)
	txs := services.NewTransactionService(store, nil, dashboard, nil)
	srv := NewServer(Config{Addr: ":0", RateLimitPerMinute: rateLimit}, Services{
		Users:        services.NewUserService(store, store, nil),
		Currencies:   services.NewCurrencyService(store, rates.NewService(store, failingProvider{}, fallback, nil, nil)),
		Categories:   services.NewCategoryService(store, store),
		Transactions: txs,
		Reports:      services.NewReportService(store, nil, dashboard, nil),
		Dashboard:    dashboard,
		Importer:     importer.NewService(store, txs, nil),
	}, store, nil)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func createUser(t *testing.T, srv *Server, username string) core.User {
	t.Helper()
	rr := do(t, srv, http.MethodPost, "/api/users", map[string]any{
		"username": username, "password": "s3cret-pass", "fullName": "Jane Doe",
		"businessType": "sole_trader", "baseCurrency": "GBP",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create user status = %d body = %s", rr.Code, rr.Body.String())
	}
	return decode[core.User](t, rr)
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, 60)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
	}

	srv.store = downStore{}
	rr := do(t, srv, http.MethodGet, "/readyz", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing store status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "connection refused") {
		t.Errorf("readyz body = %s", rr.Body.String())
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	srv, _ := newTestServer(t, 60)
	rr := do(t, srv, http.MethodGet, "/api/currencies", nil)

	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestUsers(t *testing.T) {
	srv, _ := newTestServer(t, 60)
	u := createUser(t, srv, "jane")

	rr := do(t, srv, http.MethodGet, "/api/users/"+itoa(u.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get user status = %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "password") || strings.Contains(rr.Body.String(), "s3cret") {
		t.Errorf("user response leaks the password: %s", rr.Body.String())
	}

	tests := []struct {
		name string
		rr   *httptest.ResponseRecorder
		want int
	}{
		{"unknown user", do(t, srv, http.MethodGet, "/api/users/999", nil), http.StatusNotFound},
		{"bad id", do(t, srv, http.MethodGet, "/api/users/abc", nil), http.StatusBadRequest},
		{"duplicate username", do(t, srv, http.MethodPost, "/api/users", map[string]any{
			"username": "jane", "password": "s3cret-pass", "fullName": "Jane Again", "businessType": "sole_trader",
		}), http.StatusConflict},
		{"missing fields", do(t, srv, http.MethodPost, "/api/users", map[string]any{"username": "x"}), http.StatusBadRequest},
		{"malformed body", do(t, srv, http.MethodPost, "/api/users", "{"), http.StatusBadRequest},
		{"empty body", do(t, srv, http.MethodPost, "/api/users", ""), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.rr.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", tt.rr.Code, tt.want, tt.rr.Body.String())
			}
			body := decode[ErrorBody](t, tt.rr)
			if body.Message == "" {
				t.Error("error response has no message")
			}
		})
	}
}

func TestValidationErrorsListFields(t *testing.T) {
	srv, _ := newTestServer(t, 60)
	rr := do(t, srv, http.MethodPost, "/api/categories", map[string]any{"name": "", "type": "gift"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decode[ErrorBody](t, rr)
	if len(body.Errors) < 2 {
		t.Errorf("errors = %+v, want one entry per bad field", body.Errors)
	}
}

func TestCurrencies(t *testing.T) {
	srv, _ := newTestServer(t, 60)

	rr := do(t, srv, http.MethodGet, "/api/currencies", nil)
	list := decode[[]core.Currency](t, rr)
	if len(list) != 5 {
		t.Fatalf("currencies = %d, want 5", len(list))
	}

	rr = do(t, srv, http.MethodGet, "/api/currencies/eur", nil)
	if rr.Code != http.StatusOK || decode[core.Currency](t, rr).Code != "EUR" {
		t.Fatalf("get currency status = %d body = %s", rr.Code, rr.Body.String())
	}
	if rr := do(t, srv, http.MethodGet, "/api/currencies/XYZ", nil); rr.Code != http.StatusNotFound {
		t.Errorf("unknown currency status = %d", rr.Code)
	}

	// the provider is down, so the fallback table is applied
	rr = do(t, srv, http.MethodPost, "/api/currencies/update-rates", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("update rates status = %d body = %s", rr.Code, rr.Body.String())
	}
	for _, c := range decode[[]core.Currency](t, rr) {
		if c.Code == "USD" && !c.Rate.Equal(decimal.RequireFromString("1.31")) {
			t.Errorf("USD rate = %s, want fallback 1.31", c.Rate)
		}
	}
}

func TestTransactionsAndReports(t *testing.T) {
	srv, _ := newTestServer(t, 60)
	u := createUser(t, srv, "jane")
	uid := itoa(u.ID)

	rr := do(t, srv, http.MethodPost, "/api/categories", map[string]any{"name": "Sales", "type": "income", "userId": u.ID})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create category status = %d body = %s", rr.Code, rr.Body.String())
	}
	sales := decode[core.Category](t, rr)

	rr = do(t, srv, http.MethodGet, "/api/users/"+uid+"/categories", nil)
	if got := decode[[]core.Category](t, rr); len(got) != 1 {
		t.Fatalf("categories = %+v", got)
	}

	for _, body := range []map[string]any{
		{"date": "2024-05-10", "description": "Invoice 1", "amount": "1000", "currency": "GBP", "type": "income", "categoryId": sales.ID, "userId": u.ID},
		{"date": "2024-05-12", "description": "Laptop", "amount": 200, "currency": "GBP", "type": "expense", "userId": u.ID},
		{"date": "2024-06-01", "description": "Invoice 2", "amount": "118", "currency": "EUR", "convertedAmount": "1", "type": "income", "userId": u.ID},
	} {
		rr := do(t, srv, http.MethodPost, "/api/transactions", body)
		if rr.Code != http.StatusCreated {
			t.Fatalf("create transaction status = %d body = %s", rr.Code, rr.Body.String())
		}
	}

	rr = do(t, srv, http.MethodGet, "/api/users/"+uid+"/transactions?type=income&currency=eur", nil)
	incomeEUR := decode[[]core.Transaction](t, rr)
	if len(incomeEUR) != 1 {
		t.Fatalf("filtered transactions = %+v", incomeEUR)
	}
	if !incomeEUR[0].ConvertedAmount.Equal(decimal.RequireFromString("100")) {
		t.Errorf("converted = %s, want 100 (client value ignored)", incomeEUR[0].ConvertedAmount)
	}

	rr = do(t, srv, http.MethodGet, "/api/transactions/"+itoa(incomeEUR[0].ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get transaction status = %d", rr.Code)
	}

	if rr := do(t, srv, http.MethodGet, "/api/users/"+uid+"/transactions?startDate=yesterday", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("bad startDate status = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPost, "/api/transactions", map[string]any{
		"date": "2024-05-10", "description": "Wrong type", "amount": "10", "currency": "GBP",
		"type": "expense", "categoryId": sales.ID, "userId": u.ID,
	}); rr.Code != http.StatusBadRequest {
		t.Errorf("category type mismatch status = %d", rr.Code)
	}

	rr = do(t, srv, http.MethodPost, "/api/tax-reports", map[string]any{"userId": u.ID, "year": 2024, "quarter": 1})
	if rr.Code != http.StatusCreated {
		t.Fatalf("draft status = %d body = %s", rr.Code, rr.Body.String())
	}
	report := decode[core.TaxReport](t, rr)
	if report.Status != core.StatusDraft ||
		!report.TotalIncome.Equal(decimal.RequireFromString("1100")) ||
		!report.TotalExpenses.Equal(decimal.RequireFromString("200")) ||
		!report.TaxDue.Equal(decimal.RequireFromString("180")) {
		t.Fatalf("draft = %+v", report)
	}

	rr = do(t, srv, http.MethodPut, "/api/tax-reports/"+itoa(report.ID)+"/submit", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("submit status = %d body = %s", rr.Code, rr.Body.String())
	}
	submitted := decode[core.TaxReport](t, rr)
	if submitted.Status != core.StatusSubmitted || submitted.HMRCReference == "" || submitted.SubmissionDate == nil {
		t.Fatalf("submitted = %+v", submitted)
	}

	again := decode[core.TaxReport](t, do(t, srv, http.MethodPut, "/api/tax-reports/"+itoa(report.ID)+"/submit", nil))
	if again.HMRCReference != submitted.HMRCReference {
		t.Errorf("resubmission changed the reference: %s -> %s", submitted.HMRCReference, again.HMRCReference)
	}

	if rr := do(t, srv, http.MethodPost, "/api/tax-reports", map[string]any{"userId": u.ID, "year": 2024, "quarter": 1}); rr.Code != http.StatusBadRequest {
		t.Errorf("redraft of a filed quarter status = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPut, "/api/tax-reports/999/submit", nil); rr.Code != http.StatusNotFound {
		t.Errorf("submit unknown report status = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/tax-reports/"+itoa(report.ID), nil); rr.Code != http.StatusOK {
		t.Errorf("get report status = %d", rr.Code)
	}

	reports := decode[[]core.TaxReport](t, do(t, srv, http.MethodGet, "/api/users/"+uid+"/tax-reports", nil))
	if len(reports) != 1 {
		t.Errorf("reports = %+v", reports)
	}
}

func TestDashboardAndDeadline(t *testing.T) {
	srv, _ := newTestServer(t, 60)
	u := createUser(t, srv, "jane")

	rr := do(t, srv, http.MethodGet, "/api/users/"+itoa(u.ID)+"/dashboard", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d body = %s", rr.Code, rr.Body.String())
	}
	summary := decode[core.Summary](t, rr)
	if !summary.TotalRevenue.IsZero() {
		t.Errorf("new user revenue = %s", summary.TotalRevenue)
	}

	rr = do(t, srv, http.MethodGet, "/api/users/"+itoa(u.ID)+"/tax-deadline", nil)
	info := decode[core.DeadlineInfo](t, rr)
	if info.Quarter < 1 || info.Quarter > 4 || info.DaysUntil < 0 {
		t.Errorf("deadline = %+v", info)
	}

	if rr := do(t, srv, http.MethodGet, "/api/users/999/dashboard", nil); rr.Code != http.StatusNotFound {
		t.Errorf("unknown user dashboard status = %d", rr.Code)
	}
}

func TestImportAndCredentials(t *testing.T) {
	srv, _ := newTestServer(t, 60)
	u := createUser(t, srv, "jane")

	rr := do(t, srv, http.MethodPost, "/api/import/excel", map[string]any{"userId": u.ID, "fileRef": "gs://books/q1.xlsx"})
	if rr.Code != http.StatusOK {
		t.Fatalf("import status = %d body = %s", rr.Code, rr.Body.String())
	}
	if res := decode[importer.Result](t, rr); res.Status != importer.StatusProcessing {
		t.Errorf("import status = %q, want processing", res.Status)
	}
	if rr := do(t, srv, http.MethodPost, "/api/import/excel", map[string]any{}); rr.Code != http.StatusBadRequest {
		t.Errorf("import without user status = %d", rr.Code)
	}

	rr = do(t, srv, http.MethodPost, "/api/hmrc/test-credentials", map[string]any{"clientId": "x"})
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != `{"valid":true}` {
		t.Errorf("test credentials = %d %s", rr.Code, rr.Body.String())
	}
}

func TestWriteRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		do(t, srv, http.MethodPost, "/api/hmrc/test-credentials", nil)
	}
	rr := do(t, srv, http.MethodPost, "/api/hmrc/test-credentials", nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("third write status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if rr := do(t, srv, http.MethodGet, "/api/currencies", nil); rr.Code != http.StatusOK {
		t.Errorf("reads must not be limited, status = %d", rr.Code)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
