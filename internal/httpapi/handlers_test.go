package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dukapos/backend/internal/cache"
	"dukapos/backend/internal/domain"
	"dukapos/backend/internal/service"
	"dukapos/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopSummaryCache{}, 5*time.Second)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

func loginToken(t *testing.T, handler http.Handler, username string, password string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func csrfToken(t *testing.T, handler http.Handler) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("csrf token fetch failed: %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode csrf response: %v", err)
	}
	return body["csrf_token"]
}

func authedRequest(t *testing.T, handler http.Handler, method string, path string, token string, csrf string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func firstItemID(t *testing.T, handler http.Handler, token string) string {
	t.Helper()

	rec := authedRequest(t, handler, http.MethodGet, "/api/v1/items?search=Oil+Filter", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list items failed: %d %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Items []domain.Item `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if len(body.Items) == 0 {
		t.Fatalf("expected seeded item")
	}
	return body.Items[0].ID
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleRegister(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"shop_name": "Kariobangi Spares",
		"username":  "newowner",
		"password":  "secret123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AccessToken == "" || resp.ShopID == "" {
		t.Fatalf("expected token and shop id, got %+v", resp)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleLogin_RateLimit(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	// The loginLimiter allows 5 attempts per minute.
	// Fire 6 requests from the same "IP" (httptest uses RemoteAddr "192.0.2.1:1234").
	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "badpass",
	})

	var lastCode int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after 6 attempts, got %d", lastCode)
	}
}

func TestHandleItems_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleItems_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")

	rec := authedRequest(t, handler, http.MethodGet, "/api/v1/items", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["items"] == nil {
		t.Fatalf("expected items key in response, got %v", body)
	}
}

func TestHandleSaleLifecycle(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")
	csrf := csrfToken(t, handler)
	itemID := firstItemID(t, handler, token)

	rec := authedRequest(t, handler, http.MethodPost, "/api/v1/sales", token, csrf, map[string]any{
		"payment_type": "cash",
		"items": []map[string]any{
			{"item_id": itemID, "quantity": 2},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sale: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.SaleResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode sale response: %v", err)
	}
	if resp.ReceiptNumber == "" {
		t.Fatalf("expected receipt number")
	}

	rec = authedRequest(t, handler, http.MethodGet, "/api/v1/sales/"+resp.Sale.ID, token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get sale: expected 200, got %d", rec.Code)
	}

	rec = authedRequest(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/sales/%s/void", resp.Sale.ID), token, csrf, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("void sale: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = authedRequest(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/sales/%s/void", resp.Sale.ID), token, csrf, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("double void: expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleSale_InsufficientStockConflict(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")
	csrf := csrfToken(t, handler)
	itemID := firstItemID(t, handler, token)

	rec := authedRequest(t, handler, http.MethodPost, "/api/v1/sales", token, csrf, map[string]any{
		"payment_type": "cash",
		"items": []map[string]any{
			{"item_id": itemID, "quantity": 9999},
		},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleSale_EmptyCartBadRequest(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")
	csrf := csrfToken(t, handler)

	rec := authedRequest(t, handler, http.MethodPost, "/api/v1/sales", token, csrf, map[string]any{
		"payment_type": "cash",
		"items":        []map[string]any{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleVoid_ForbiddenForCashier(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	adminToken := loginToken(t, handler, "admin", "admin123")
	cashierToken := loginToken(t, handler, "cashier", "cashier123")
	csrf := csrfToken(t, handler)
	itemID := firstItemID(t, handler, adminToken)

	rec := authedRequest(t, handler, http.MethodPost, "/api/v1/sales", adminToken, csrf, map[string]any{
		"payment_type": "cash",
		"items": []map[string]any{
			{"item_id": itemID, "quantity": 1},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sale failed: %d", rec.Code)
	}
	var resp domain.SaleResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode sale: %v", err)
	}

	rec = authedRequest(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/sales/%s/void", resp.Sale.ID), cashierToken, csrf, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier void, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandlePurchases_AdminOnly(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	cashierToken := loginToken(t, handler, "cashier", "cashier123")
	csrf := csrfToken(t, handler)

	rec := authedRequest(t, handler, http.MethodPost, "/api/v1/purchases", cashierToken, csrf, map[string]any{
		"supplier_id": "sup-demo",
		"items": []map[string]any{
			{"item_name": "Fan Belt", "quantity": 4, "buying_price": "100"},
		},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier purchase, got %d", rec.Code)
	}

	adminToken := loginToken(t, handler, "admin", "admin123")
	rec = authedRequest(t, handler, http.MethodPost, "/api/v1/purchases", adminToken, csrf, map[string]any{
		"supplier_id": "sup-demo",
		"items": []map[string]any{
			{"item_name": "Fan Belt", "quantity": 4, "buying_price": "100"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin purchase, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleShiftEndpoints(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")
	csrf := csrfToken(t, handler)

	rec := authedRequest(t, handler, http.MethodPost, "/api/v1/shifts/open", token, csrf, map[string]any{
		"start_cash": "1000",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open shift: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = authedRequest(t, handler, http.MethodGet, "/api/v1/shifts/current", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("current shift: expected 200, got %d", rec.Code)
	}

	rec = authedRequest(t, handler, http.MethodPost, "/api/v1/shifts/close", token, csrf, map[string]any{
		"actual_cash": "1000",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("close shift: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = authedRequest(t, handler, http.MethodPost, "/api/v1/shifts/close", token, csrf, map[string]any{
		"actual_cash": "1000",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("close without open: expected 409, got %d", rec.Code)
	}
}

func TestHandleDailyReportCSV(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")

	rec := authedRequest(t, handler, http.MethodGet, "/api/v1/reports/daily?format=csv", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if contentType := rec.Header().Get("Content-Type"); contentType != "text/csv; charset=utf-8" {
		t.Fatalf("content type = %q, want text/csv", contentType)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("section,key,value")) {
		t.Fatalf("expected CSV header in body, got %q", rec.Body.String())
	}
}

func TestHandleDashboard(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")

	rec := authedRequest(t, handler, http.MethodGet, "/api/v1/dashboard", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var summary domain.DashboardSummary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.ShopID != "shop-demo" {
		t.Fatalf("shop id = %s, want shop-demo", summary.ShopID)
	}
}

func TestHandleCreditAndFinancialReports(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	cashier := loginToken(t, handler, "cashier", "cashier123")
	admin := loginToken(t, handler, "admin", "admin123")
	csrf := csrfToken(t, handler)

	saleRec := authedRequest(t, handler, http.MethodPost, "/api/v1/sales", cashier, csrf, map[string]any{
		"payment_type":  "credit",
		"customer_name": "Kariuki Hardware",
		"items":         []map[string]any{{"item_id": firstItemID(t, handler, cashier), "quantity": 1}},
	})
	if saleRec.Code != http.StatusCreated {
		t.Fatalf("credit sale failed: %d (body: %s)", saleRec.Code, saleRec.Body.String())
	}

	rec := authedRequest(t, handler, http.MethodGet, "/api/v1/reports/credit", cashier, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("credit report: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var creditReport domain.CreditReport
	if err := json.NewDecoder(rec.Body).Decode(&creditReport); err != nil {
		t.Fatalf("decode credit report: %v", err)
	}
	if len(creditReport.Customers) != 1 || !creditReport.TotalOutstanding.IsPositive() {
		t.Fatalf("credit report = %d debtors, outstanding %s", len(creditReport.Customers), creditReport.TotalOutstanding)
	}

	if rec := authedRequest(t, handler, http.MethodGet, "/api/v1/reports/financial", cashier, "", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("financial report as cashier: expected 403, got %d", rec.Code)
	}
	rec = authedRequest(t, handler, http.MethodGet, "/api/v1/reports/financial", admin, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("financial report: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var financialReport domain.FinancialReport
	if err := json.NewDecoder(rec.Body).Decode(&financialReport); err != nil {
		t.Fatalf("decode financial report: %v", err)
	}
	if len(financialReport.TrialBalance) == 0 {
		t.Fatalf("expected trial balance rows after a sale")
	}
	if !financialReport.NetProfit.Equal(financialReport.TotalRevenue.Sub(financialReport.TotalExpenses)) {
		t.Fatalf("net profit %s != revenue %s - expenses %s",
			financialReport.NetProfit, financialReport.TotalRevenue, financialReport.TotalExpenses)
	}
}
