/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Checkout on account through to the ledger balance
- Error mapping (validation, rejection, conflict, not found)
- Monthly statement as JSON and PDF
- Store-wide milk billing and default milk logs
- Legacy migration endpoint idempotence
- Health endpoint
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/kirana-ledger/billing"
	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/customers"
	"github.com/warp/kirana-ledger/ledger"
	"github.com/warp/kirana-ledger/migration"
	"github.com/warp/kirana-ledger/orders"
	"github.com/warp/kirana-ledger/settings"
	"github.com/warp/kirana-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	t       *testing.T
	store   *sqlite.Store
	handler *Handler
	router  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, settings.Settings{MilkPricePerLitre: core.MustDecimal("60")})
	return &testServer{t: t, store: store, handler: h, router: NewRouter(h, nil)}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) registerCustomer(phone, name, pin string) customers.Customer {
	s.t.Helper()
	rec := s.do("POST", "/api/customers", map[string]any{"phone": phone, "name": name, "pin": pin})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[customers.Customer](s.t, rec)
}

func (s *testServer) saveProduct(body map[string]any) int64 {
	s.t.Helper()
	rec := s.do("POST", "/api/products", body)
	require.Contains(s.t, []int{http.StatusOK, http.StatusCreated}, rec.Code, rec.Body.String())
	return decodeBody[ProductResponse](s.t, rec).ID
}

// =============================================================================
// ORDERS & LEDGER
// =============================================================================

func TestCheckoutOnAccount_ReachesLedger(t *testing.T) {
	// GIVEN: A registered customer and a tiered product
	s := newTestServer(t)
	c := s.registerCustomer("+91 98765 43210", "Meena", "")
	productID := s.saveProduct(map[string]any{
		"name":          "Toor Dal",
		"tiers":         []map[string]any{{"minQty": 1, "price": 80}, {"minQty": 5, "price": "70"}},
		"stockQuantity": 10,
	})

	// WHEN: Ordering 2 on account with a forged client price
	rec := s.do("POST", "/api/orders", map[string]any{
		"customerName":  "Meena",
		"phone":         "9876543210",
		"paymentMethod": "account",
		"items":         []map[string]any{{"productId": productID, "quantity": 2, "price": 1}},
	})

	// THEN: The order is priced by the server and credited to the ledger
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	o := decodeBody[orders.Order](t, rec)
	assert.True(t, o.Total.Equal(core.MustDecimal("160")))
	assert.True(t, o.AddedToUdhar)

	rec = s.do("GET", "/api/ledger?customerId="+itoa(c.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ledgerResp := decodeBody[LedgerResponse](t, rec)
	require.Len(t, ledgerResp.Entries, 1)
	assert.Equal(t, ledger.SourceAppOrder, ledgerResp.Entries[0].Source)
	assert.True(t, ledgerResp.Balance.Total.Equal(core.MustDecimal("160")))

	// WHEN: Marked paid, twice
	rec = s.do("POST", "/api/orders/"+itoa(o.ID)+"/mark-paid", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do("POST", "/api/orders/"+itoa(o.ID)+"/mark-paid", nil)

	// THEN: The second attempt conflicts and the balance is settled once
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, core.CodeAlreadyPaid, decodeBody[ErrorResponse](t, rec).Code)

	rec = s.do("GET", "/api/customers/"+itoa(c.ID)+"/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[ledger.Balance](t, rec).Total.IsZero())
}

func TestPlaceOrder_InsufficientStockReportsAvailable(t *testing.T) {
	s := newTestServer(t)
	productID := s.saveProduct(map[string]any{
		"name":          "Paneer",
		"tiers":         []map[string]any{{"minQty": 1, "price": 90}},
		"stockQuantity": 2,
	})

	rec := s.do("POST", "/api/orders", map[string]any{
		"customerName": "Walk-in",
		"phone":        "9000000000",
		"items":        []map[string]any{{"productId": productID, "quantity": 3}},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[struct {
		Code    string         `json:"code"`
		Details map[string]int `json:"details"`
	}](t, rec)
	assert.Equal(t, core.CodeInsufficientStock, resp.Code)
	assert.Equal(t, 2, resp.Details["available"])
}

func TestCancelOrder_RestocksViaUpdate(t *testing.T) {
	s := newTestServer(t)
	productID := s.saveProduct(map[string]any{
		"name":          "Ghee",
		"tiers":         []map[string]any{{"minQty": 1, "price": 550}},
		"stockQuantity": 3,
	})
	rec := s.do("POST", "/api/orders", map[string]any{
		"customerName": "Walk-in",
		"phone":        "9000000000",
		"items":        []map[string]any{{"productId": productID, "quantity": 3}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	o := decodeBody[orders.Order](t, rec)

	rec = s.do("PUT", "/api/orders/"+itoa(o.ID), map[string]any{"status": "cancelled"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do("GET", "/api/products/"+itoa(productID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decodeBody[ProductResponse](t, rec)
	require.NotNil(t, p.StockQuantity)
	assert.Equal(t, 3, *p.StockQuantity)
}

func TestLedgerEntry_PostCorrectDelete(t *testing.T) {
	s := newTestServer(t)
	c := s.registerCustomer("9811111111", "Rekha", "")

	rec := s.do("POST", "/api/ledger", map[string]any{
		"customerId": c.ID, "type": "credit", "amount": "250.50", "note": "monthly groceries",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	e := decodeBody[ledger.Entry](t, rec)
	assert.Equal(t, ledger.SourceManual, e.Source)

	rec = s.do("PUT", "/api/ledger/"+itoa(e.ID), map[string]any{"amount": 200})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[ledger.Entry](t, rec).Amount.Equal(core.MustDecimal("200")))

	rec = s.do("DELETE", "/api/ledger/"+itoa(e.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do("DELETE", "/api/ledger/"+itoa(e.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown order", "GET", "/api/orders/99", nil, http.StatusNotFound, ""},
		{"bad id", "GET", "/api/orders/abc", nil, http.StatusBadRequest, ""},
		{"zero amount", "POST", "/api/ledger", map[string]any{"customerId": 1, "type": "credit", "amount": 0}, http.StatusBadRequest, "validation"},
		{"ledger without customer", "GET", "/api/ledger", nil, http.StatusBadRequest, ""},
		{"bad month", "GET", "/api/milk/billing/2024-13", nil, http.StatusBadRequest, "validation"},
		{"unknown customer statement", "GET", "/api/customers/42/statement/2024-05", nil, http.StatusNotFound, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			if tc.code != "" {
				assert.Equal(t, tc.code, decodeBody[ErrorResponse](t, rec).Code)
			}
		})
	}

	// Malformed JSON
	req := httptest.NewRequest("POST", "/api/orders", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveProduct_CatalogInvariants(t *testing.T) {
	s := newTestServer(t)

	// Negative stock is invalid and nothing is stored
	rec := s.do("POST", "/api/products", map[string]any{"name": "Atta", "stockQuantity": -5, "tiers": []map[string]any{{"minQty": 1, "price": 45}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	body := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "validation", body.Code)
	assert.Equal(t, map[string]any{"field": "stockQuantity"}, body.Details)

	rec = s.do("POST", "/api/products", map[string]any{"name": "Atta", "lowStockThreshold": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// A reused barcode is a business rejection, not an internal error
	s.saveProduct(map[string]any{"name": "Atta", "barcode": "X1", "stockQuantity": 4})
	rec = s.do("POST", "/api/products", map[string]any{"name": "Maida", "barcode": "X1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, core.CodeDuplicateBarcode, decodeBody[ErrorResponse](t, rec).Code)
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func TestCustomerLifecycle(t *testing.T) {
	s := newTestServer(t)
	c := s.registerCustomer("9822222222", "Farida", "4321")

	// Duplicate phone
	rec := s.do("POST", "/api/customers", map[string]any{"phone": "98222 22222", "name": "Other"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, core.CodeDuplicatePhone, decodeBody[ErrorResponse](t, rec).Code)

	// PIN check
	rec = s.do("POST", "/api/customers/verify-pin", map[string]any{"phone": "9822222222", "pin": "0000"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do("POST", "/api/customers/verify-pin", map[string]any{"phone": "9822222222", "pin": "4321"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Soft delete hides, restore brings back
	rec = s.do("DELETE", "/api/customers/"+itoa(c.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do("GET", "/api/customers/"+itoa(c.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do("GET", "/api/customers/"+itoa(c.ID)+"?includeDeleted=true", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do("POST", "/api/customers/"+itoa(c.ID)+"/restore", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Hard delete removes for good
	rec = s.do("DELETE", "/api/customers/"+itoa(c.ID)+"?hard=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do("GET", "/api/customers/"+itoa(c.ID)+"?includeDeleted=true", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// STATEMENTS & MILK
// =============================================================================

func TestStatement_JSONAndPDF(t *testing.T) {
	// GIVEN: 2 L of milk at 60 and a 50 payment in May
	s := newTestServer(t)
	c := s.registerCustomer("9833333333", "Asha", "")
	rec := s.do("POST", "/api/milk/logs", map[string]any{"customerId": c.ID, "date": "2024-05-03", "qty": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do("POST", "/api/milk/payments", map[string]any{"customerId": c.ID, "month": "2024-05", "amount": 50})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN: Fetching the JSON statement
	rec = s.do("GET", "/api/customers/"+itoa(c.ID)+"/statement/2024-05", nil)

	// THEN
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decodeBody[billing.Statement](t, rec)
	assert.True(t, st.Summary.Outstanding.Equal(core.MustDecimal("70")))

	// WHEN: Fetching the PDF
	rec = s.do("GET", "/api/customers/"+itoa(c.ID)+"/statement/2024-05.pdf", nil)

	// THEN
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestMilkSubscriptionAndBilling(t *testing.T) {
	s := newTestServer(t)
	c := s.registerCustomer("9844444444", "Bina", "")

	rec := s.do("POST", "/api/milk/subscriptions", map[string]any{"customerId": c.ID, "defaultQty": "1.5"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = s.do("POST", "/api/milk/subscriptions", map[string]any{"customerId": c.ID, "defaultQty": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, core.CodeDuplicateSubscription, decodeBody[ErrorResponse](t, rec).Code)

	// Default logs for two days, the second one twice
	for _, date := range []string{"2024-06-01", "2024-06-02", "2024-06-02"} {
		rec = s.do("POST", "/api/milk/logs/auto?date="+date, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	assert.Equal(t, 0, decodeBody[AutoLogResponse](t, rec).Created)

	rec = s.do("GET", "/api/milk/logs?month=2024-06&customerId="+itoa(c.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]json.RawMessage](t, rec), 2)

	rec = s.do("GET", "/api/milk/billing/2024-06", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	bill := decodeBody[billing.MilkBilling](t, rec)
	require.Len(t, bill.Customers, 1)
	assert.True(t, bill.Totals.Amount.Equal(core.MustDecimal("180")))
	assert.True(t, bill.Totals.Litres.Equal(core.MustDecimal("3")))

	// Pause then resume
	rec = s.do("POST", "/api/milk/subscriptions/"+itoa(c.ID)+"/pause", map[string]any{"from": "2024-06-10", "to": "2024-06-12"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do("POST", "/api/milk/logs/auto?date=2024-06-11", nil)
	assert.Equal(t, 0, decodeBody[AutoLogResponse](t, rec).Created)
	rec = s.do("POST", "/api/milk/subscriptions/"+itoa(c.ID)+"/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// MIGRATION, SETTINGS, HEALTH
// =============================================================================

func TestMigrateToLedger_Idempotent(t *testing.T) {
	s := newTestServer(t)
	c := s.registerCustomer("9855555555", "Lata", "")
	ctx := context.Background()
	require.NoError(t, s.store.InsertLegacy(ctx, ledger.LegacyRecord{
		ID: 1, CustomerID: c.ID, Kind: ledger.KindCredit, Amount: core.MustDecimal("300"),
		Date: "2023-12-01", CreatedAt: time.Date(2023, 12, 1, 10, 0, 0, 0, time.UTC),
	}))

	rec := s.do("POST", "/api/migrate-to-ledger", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, migration.Result{MigratedCredits: 1}, decodeBody[migration.Result](t, rec))

	rec = s.do("POST", "/api/migrate-to-ledger", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, migration.Result{}, decodeBody[migration.Result](t, rec))

	rec = s.do("GET", "/api/customers/"+itoa(c.ID)+"/balance", nil)
	b := decodeBody[ledger.Balance](t, rec)
	assert.True(t, b.Total.Equal(core.MustDecimal("300")))
	assert.True(t, b.Migrated())
}

func TestSettings_RoundTrip(t *testing.T) {
	s := newTestServer(t)

	rec := s.do("GET", "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[settings.Settings](t, rec).MilkPricePerLitre.Equal(core.MustDecimal("60")))

	rec = s.do("PUT", "/api/settings", map[string]any{"milkPricePerLitre": "64"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do("GET", "/api/settings", nil)
	assert.True(t, decodeBody[settings.Settings](t, rec).MilkPricePerLitre.Equal(core.MustDecimal("64")))

	rec = s.do("PUT", "/api/settings", map[string]any{"milkPricePerLitre": "-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type patternCache struct {
	billing.NopCache
	patterns []string
}

func (c *patternCache) DeletePattern(_ context.Context, pattern string) {
	c.patterns = append(c.patterns, pattern)
}

func TestSaveSettings_DropsEveryCachedBillingMonth(t *testing.T) {
	// GIVEN: Billing routed through a cache
	s := newTestServer(t)
	c := &patternCache{}
	s.handler.UseCache(c, nil, time.Minute)

	// WHEN: The default milk price changes
	rec := s.do("PUT", "/api/settings", map[string]any{"milkPricePerLitre": "64"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: Cached billing for every month is dropped, not just the current one
	assert.Equal(t, []string{"billing:milk:*"}, c.patterns)

	// WHEN: The save is rejected
	rec = s.do("PUT", "/api/settings", map[string]any{"milkPricePerLitre": "-1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// THEN: The cache is untouched
	assert.Len(t, c.patterns, 1)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do("GET", "/healthz", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "ok", resp["database"])
	assert.Equal(t, "disabled", resp["cache"])
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
