/*
handlers.go - HTTP API handlers for the ledger & fulfillment engine

PURPOSE:
  Exposes orders, the udhar ledger, milk subscriptions, billing and the
  legacy migration over REST. Handlers parse the request, call exactly one
  domain service operation and serialize its result.

ENDPOINTS:
  Orders:
    GET    /api/orders                       List (customerId, phone, status, month)
    POST   /api/orders                       Place order
    GET    /api/orders/{id}                  Get order
    PUT    /api/orders/{id}                  Update status (cancel restocks)
    POST   /api/orders/{id}/convert-to-udhar Post order total to the ledger
    POST   /api/orders/{id}/mark-paid        Record the order as paid

  Ledger:
    GET    /api/ledger?customerId=           Entries plus balance
    POST   /api/ledger                       Post a manual entry
    PUT    /api/ledger/{id}                  Correct amount/note/date
    DELETE /api/ledger/{id}                  Remove an entry

  Customers:
    GET    /api/customers                    List (includeDeleted=true)
    POST   /api/customers                    Register
    POST   /api/customers/verify-pin         Check a customer PIN
    GET    /api/customers/{id}               Get
    DELETE /api/customers/{id}[?hard=true]   Soft (default) or hard delete
    POST   /api/customers/{id}/restore       Undo soft delete
    GET    /api/customers/{id}/balance       Ledger + unmigrated legacy balance
    GET    /api/customers/{id}/statement/{month}[.pdf]

  Milk:
    GET    /api/milk/subscriptions           List
    POST   /api/milk/subscriptions           Subscribe
    GET    /api/milk/subscriptions/{customerId}
    POST   /api/milk/subscriptions/{customerId}/pause
    POST   /api/milk/subscriptions/{customerId}/resume
    GET    /api/milk/logs?customerId=&month=
    POST   /api/milk/logs                    Record (upsert) a delivery
    POST   /api/milk/logs/auto?date=         Default logs for a day
    POST   /api/milk/payments                Record a milk payment
    GET    /api/milk/billing/{month}         Store-wide dues

  Admin:
    POST   /api/migrate-to-ledger            Copy legacy records into the ledger
    GET    /api/products/{id}, POST /api/products
    GET    /api/settings, PUT /api/settings

ERROR HANDLING:
  Service errors go through writeDomainError (errors.go):
  - 400: Validation errors, business rule rejections
  - 404: Unknown id
  - 409: Conflict (already paid, already converted, lost race)
  - 500: Storage failures

SECURITY NOTE:
  No authentication. Operator endpoints (ledger corrections, hard delete,
  migration) must sit behind the store's admin gateway.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/kirana-ledger/billing"
	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/customers"
	"github.com/warp/kirana-ledger/inventory"
	"github.com/warp/kirana-ledger/ledger"
	"github.com/warp/kirana-ledger/milk"
	"github.com/warp/kirana-ledger/migration"
	"github.com/warp/kirana-ledger/orders"
	"github.com/warp/kirana-ledger/sequence"
	"github.com/warp/kirana-ledger/settings"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Backend is everything a storage implementation provides. store/memory,
// store/sqlite and store/postgres all satisfy it.
type Backend interface {
	sequence.CounterStore
	customers.Store
	inventory.Catalog
	ledger.Store
	orders.Store
	milk.Store
	settings.Store
}

// HealthChecker reports the health of an optional dependency.
type HealthChecker interface {
	IsHealthy(ctx context.Context) bool
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Catalog   inventory.Catalog
	Seq       *sequence.Generator
	Settings  *settings.Provider
	Customers *customers.Directory
	Ledger    *ledger.Ledger
	Orders    *orders.Fulfillment
	Milk      *milk.Service
	Billing   *billing.Aggregator
	Migration *migration.Adapter

	backend Backend
	cache   HealthChecker
}

// NewHandler wires every service on top of backend. defaults are the store
// settings used until an operator saves their own.
func NewHandler(backend Backend, defaults settings.Settings) *Handler {
	seq := sequence.NewGenerator(backend)
	sp := settings.NewProvider(backend, defaults)
	dir := customers.NewDirectory(backend, seq)
	l := ledger.New(backend, seq, dir)
	f := orders.NewFulfillment(backend, inventory.NewReserver(backend), l, dir, sp, seq)
	m := milk.NewService(backend, dir, sp, seq)
	agg := billing.NewAggregator(dir, l, f, m)
	m.SetInvalidator(agg)
	dir.SetInvalidator(agg)

	return &Handler{
		Catalog:   backend,
		Seq:       seq,
		Settings:  sp,
		Customers: dir,
		Ledger:    l,
		Orders:    f,
		Milk:      m,
		Billing:   agg,
		Migration: migration.NewAdapter(l),
		backend:   backend,
	}
}

// UseCache routes store-wide billing through c. c may be nil.
func (h *Handler) UseCache(c billing.Cache, health HealthChecker, ttl time.Duration) {
	h.Billing.UseCache(c, ttl)
	h.cache = health
}

// =============================================================================
// HEALTH
// =============================================================================

type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports database and cache reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok", "database": "ok", "cache": "disabled"}
	status := http.StatusOK

	if p, ok := h.backend.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			resp["status"] = "degraded"
			resp["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	if h.cache != nil {
		if h.cache.IsHealthy(r.Context()) {
			resp["cache"] = "ok"
		} else {
			resp["cache"] = "unavailable"
		}
	}
	writeJSON(w, status, resp)
}

// =============================================================================
// ORDER HANDLERS
// =============================================================================

// PlaceOrder checks out a cart.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if !decode(w, r, &req) {
		return
	}
	o, err := h.Orders.PlaceOrder(r.Context(), req.toInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// ListOrders filters by customerId/phone (OR-matched), status and month.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f orders.Filter
	if v := q.Get("customerId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid customerId", err)
			return
		}
		f.CustomerID = id
	}
	f.Phone = customers.NormalizePhone(q.Get("phone"))
	f.Status = orders.Status(q.Get("status"))
	if v := q.Get("month"); v != "" {
		m, err := core.ParseMonth(v)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		f.From, f.To = m.Start(), m.End()
	}

	list, err := h.Orders.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	o, err := h.Orders.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// UpdateOrder changes the order status. Moving to cancelled restocks once.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateOrderRequest
	if !decode(w, r, &req) {
		return
	}
	o, err := h.Orders.UpdateStatus(r.Context(), id, orders.Status(req.Status))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) ConvertToUdhar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ConvertToUdharRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	o, err := h.Orders.ConvertToCredit(r.Context(), id, req.CustomerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	o, err := h.Orders.MarkPaid(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// GetLedger returns the customer's entries with the running balance summary.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	customerID, err := strconv.ParseInt(r.URL.Query().Get("customerId"), 10, 64)
	if err != nil || customerID <= 0 {
		writeError(w, http.StatusBadRequest, "customerId query parameter is required", err)
		return
	}
	entries, err := h.Ledger.List(r.Context(), customerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	balance, err := h.Ledger.Balance(r.Context(), customerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, LedgerResponse{CustomerID: customerID, Entries: entries, Balance: balance})
}

// PostEntry records a manual credit or payment.
func (h *Handler) PostEntry(w http.ResponseWriter, r *http.Request) {
	var req PostEntryRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := h.Ledger.Post(r.Context(), ledger.PostInput{
		CustomerID: req.CustomerID,
		Kind:       ledger.Kind(req.Type),
		Amount:     req.Amount,
		Note:       req.Note,
		Date:       core.Date(req.Date),
		Source:     ledger.SourceManual,
		Items:      req.Items,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req PatchEntryRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := h.Ledger.Update(r.Context(), id, ledger.Patch{Amount: req.Amount, Note: req.Note, Date: req.Date})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Ledger.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}

// MigrateToLedger runs the legacy migration. Safe to call repeatedly.
func (h *Handler) MigrateToLedger(w http.ResponseWriter, r *http.Request) {
	res, err := h.Migration.MigrateLegacyToLedger(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	opts := customers.ReadOptions{IncludeDeleted: r.URL.Query().Get("includeDeleted") == "true"}
	list, err := h.Customers.List(r.Context(), opts)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if list == nil {
		list = []customers.Customer{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) RegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req RegisterCustomerRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.Customers.Register(r.Context(), customers.RegisterInput{
		Phone:       req.Phone,
		Name:        req.Name,
		Address:     req.Address,
		CreditLimit: req.CreditLimit,
		PIN:         req.PIN,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	opts := customers.ReadOptions{IncludeDeleted: r.URL.Query().Get("includeDeleted") == "true"}
	c, err := h.customer(r.Context(), id, opts)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteCustomer soft-deletes by default; ?hard=true cascades.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if r.URL.Query().Get("hard") == "true" {
		if err := h.Customers.HardDelete(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
		return
	}
	c, err := h.Customers.SoftDelete(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) RestoreCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.Customers.Restore(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	var req VerifyPINRequest
	if !decode(w, r, &req) {
		return
	}
	c, ok, err := h.Customers.VerifyPIN(r.Context(), req.Phone, req.PIN)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid phone or PIN", nil)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.customer(r.Context(), id, customers.ReadOptions{IncludeDeleted: true}); err != nil {
		writeDomainError(w, err)
		return
	}
	b, err := h.Ledger.Balance(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// GetStatement renders the monthly statement as JSON, or as a PDF when the
// month segment ends in ".pdf".
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	raw := chi.URLParam(r, "month")
	asPDF := strings.HasSuffix(raw, ".pdf")
	month, err := core.ParseMonth(strings.TrimSuffix(raw, ".pdf"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	st, err := h.Billing.MonthlyStatement(r.Context(), id, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !asPDF {
		writeJSON(w, http.StatusOK, st)
		return
	}

	data, err := billing.RenderStatementPDF(st)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render statement", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		"attachment; filename=statement-"+strconv.FormatInt(id, 10)+"-"+string(month)+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// =============================================================================
// MILK HANDLERS
// =============================================================================

func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Milk.Subscriptions(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if subs == nil {
		subs = []milk.Subscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if !decode(w, r, &req) {
		return
	}
	sub, err := h.Milk.Subscribe(r.Context(), milk.SubscribeInput{
		CustomerID:    req.CustomerID,
		DefaultQty:    req.DefaultQty,
		DefaultItems:  req.DefaultItems,
		PricePerLitre: req.PricePerLitre,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	customerID, ok := pathID(w, r, "customerId")
	if !ok {
		return
	}
	sub, err := h.Milk.Subscription(r.Context(), customerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) PauseSubscription(w http.ResponseWriter, r *http.Request) {
	customerID, ok := pathID(w, r, "customerId")
	if !ok {
		return
	}
	var req PauseRequest
	if !decode(w, r, &req) {
		return
	}
	from := core.Today()
	if req.From != "" {
		d, err := core.ParseDate(req.From)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		from = d
	}
	var to *core.Date
	if req.To != "" {
		d, err := core.ParseDate(req.To)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		to = &d
	}
	sub, err := h.Milk.Pause(r.Context(), customerID, from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) ResumeSubscription(w http.ResponseWriter, r *http.Request) {
	customerID, ok := pathID(w, r, "customerId")
	if !ok {
		return
	}
	sub, err := h.Milk.Resume(r.Context(), customerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// ListMilkLogs returns one customer's logs, or the whole month's when no
// customerId is given.
func (h *Handler) ListMilkLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	month, err := core.ParseMonth(q.Get("month"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var logs []milk.Log
	if v := q.Get("customerId"); v != "" {
		customerID, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "Invalid customerId", perr)
			return
		}
		logs, err = h.Milk.Logs(r.Context(), customerID, month)
	} else {
		logs, err = h.Milk.LogsForMonth(r.Context(), month)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if logs == nil {
		logs = []milk.Log{}
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *Handler) RecordDelivery(w http.ResponseWriter, r *http.Request) {
	var req DeliveryRequest
	if !decode(w, r, &req) {
		return
	}
	l, err := h.Milk.RecordDelivery(r.Context(), milk.DeliveryInput{
		CustomerID: req.CustomerID,
		Date:       core.Date(req.Date),
		Qty:        req.Qty,
		Items:      req.Items,
		Price:      req.Price,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// AutoLogDeliveries writes default logs for ?date= (today when omitted).
func (h *Handler) AutoLogDeliveries(w http.ResponseWriter, r *http.Request) {
	date := core.Today()
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		date = d
	}
	n, err := h.Milk.AutoLogDeliveries(r.Context(), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AutoLogResponse{Date: date, Created: n})
}

func (h *Handler) RecordMilkPayment(w http.ResponseWriter, r *http.Request) {
	var req MilkPaymentRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Milk.RecordPayment(r.Context(), milk.PaymentInput{
		CustomerID: req.CustomerID,
		Month:      core.Month(req.Month),
		Amount:     req.Amount,
		Note:       req.Note,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) GetMilkBilling(w http.ResponseWriter, r *http.Request) {
	month, err := core.ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	b, err := h.Billing.StoreMilkBilling(r.Context(), month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// =============================================================================
// CATALOG & SETTINGS
// =============================================================================

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		writeDomainError(w, core.Storage("get product", err))
		return
	}
	if p == nil {
		writeDomainError(w, core.NotFound("product", id))
		return
	}
	writeJSON(w, http.StatusOK, ProductResponse{Product: *p, StockStatus: p.StockStatus()})
}

// SaveProduct creates (id omitted) or replaces a product.
func (h *Handler) SaveProduct(w http.ResponseWriter, r *http.Request) {
	var p inventory.Product
	if !decode(w, r, &p) {
		return
	}
	if err := p.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}
	status := http.StatusOK
	if p.ID == 0 {
		id, err := h.Seq.NextID(r.Context(), sequence.Products)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		p.ID = id
		status = http.StatusCreated
	}
	if err := inventory.SaveProduct(r.Context(), h.Catalog, p); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, status, ProductResponse{Product: p, StockStatus: p.StockStatus()})
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Settings.Current(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var s settings.Settings
	if !decode(w, r, &s) {
		return
	}
	if err := h.Settings.Save(r.Context(), s); err != nil {
		writeDomainError(w, err)
		return
	}
	// The default milk price feeds every unsnapshotted bill, in any month.
	h.Billing.InvalidateAll(r.Context())
	writeJSON(w, http.StatusOK, s)
}

// =============================================================================
// HELPERS
// =============================================================================

// customer is Directory.Get with a missing customer reported as NotFound.
func (h *Handler) customer(ctx context.Context, id int64, opts customers.ReadOptions) (*customers.Customer, error) {
	c, err := h.Customers.Get(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, core.NotFound("customer", id)
	}
	return c, nil
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid "+name, err)
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}
