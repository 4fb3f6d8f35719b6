// Package memory provides an in-memory implementation of every store
// contract, for tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/customers"
	"github.com/warp/kirana-ledger/inventory"
	"github.com/warp/kirana-ledger/ledger"
	"github.com/warp/kirana-ledger/milk"
	"github.com/warp/kirana-ledger/orders"
	"github.com/warp/kirana-ledger/sequence"
	"github.com/warp/kirana-ledger/settings"
)

var (
	_ sequence.CounterStore = (*Memory)(nil)
	_ customers.Store       = (*Memory)(nil)
	_ inventory.Catalog     = (*Memory)(nil)
	_ ledger.Store          = (*Memory)(nil)
	_ orders.Store          = (*Memory)(nil)
	_ milk.Store            = (*Memory)(nil)
	_ settings.Store        = (*Memory)(nil)
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory holds every collection behind one RWMutex. Values are copied on
// the way in and out so callers never share slices with the store.
type Memory struct {
	mu sync.RWMutex

	counters      map[string]int64
	customers     map[int64]customers.Customer
	products      map[int64]inventory.Product
	entries       map[int64]ledger.Entry
	legacy        map[ledger.Kind]map[int64]ledger.LegacyRecord
	orders        map[int64]orders.Order
	subscriptions map[int64]milk.Subscription // by customer
	logs          map[logKey]milk.Log
	payments      map[int64]milk.Payment
	settings      *settings.Settings
}

type logKey struct {
	CustomerID int64
	Date       core.Date
}

func New() *Memory {
	return &Memory{
		counters:      make(map[string]int64),
		customers:     make(map[int64]customers.Customer),
		products:      make(map[int64]inventory.Product),
		entries:       make(map[int64]ledger.Entry),
		legacy:        map[ledger.Kind]map[int64]ledger.LegacyRecord{ledger.KindCredit: {}, ledger.KindPayment: {}},
		orders:        make(map[int64]orders.Order),
		subscriptions: make(map[int64]milk.Subscription),
		logs:          make(map[logKey]milk.Log),
		payments:      make(map[int64]milk.Payment),
	}
}

// =============================================================================
// COUNTERS
// =============================================================================

func (m *Memory) IncrementCounter(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name]++
	return m.counters[name], nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (m *Memory) InsertCustomer(_ context.Context, c customers.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[c.ID]; ok {
		return core.ErrDuplicate
	}
	if c.State == customers.StateActive && m.activePhoneTakenLocked(c.Phone, c.ID) {
		return core.ErrDuplicate
	}
	m.customers[c.ID] = c
	return nil
}

func (m *Memory) UpdateCustomer(_ context.Context, c customers.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.State == customers.StateActive && m.activePhoneTakenLocked(c.Phone, c.ID) {
		return core.ErrDuplicate
	}
	m.customers[c.ID] = c
	return nil
}

func (m *Memory) activePhoneTakenLocked(phone string, exceptID int64) bool {
	for id, c := range m.customers {
		if id != exceptID && c.Phone == phone && c.State == customers.StateActive {
			return true
		}
	}
	return false
}

func (m *Memory) GetCustomer(_ context.Context, id int64) (*customers.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) FindActiveCustomerByPhone(_ context.Context, phone string) (*customers.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.customers {
		if c.Phone == phone && c.State == customers.StateActive {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListCustomers(_ context.Context, includeDeleted bool) ([]customers.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []customers.Customer
	for _, c := range m.customers {
		if !includeDeleted && c.Deleted() {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// HardDeleteCustomer removes the customer and every record that references it.
func (m *Memory) HardDeleteCustomer(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil
	}
	delete(m.customers, id)
	for eid, e := range m.entries {
		if e.CustomerID == id {
			delete(m.entries, eid)
		}
	}
	for _, records := range m.legacy {
		for rid, r := range records {
			if r.CustomerID == id {
				delete(records, rid)
			}
		}
	}
	for oid, o := range m.orders {
		if (o.CustomerID != nil && *o.CustomerID == id) || (o.CustomerID == nil && o.Phone == c.Phone) {
			delete(m.orders, oid)
		}
	}
	delete(m.subscriptions, id)
	for k := range m.logs {
		if k.CustomerID == id {
			delete(m.logs, k)
		}
	}
	for pid, p := range m.payments {
		if p.CustomerID == id {
			delete(m.payments, pid)
		}
	}
	return nil
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Memory) GetProduct(_ context.Context, id int64) (*inventory.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	p = cloneProduct(p)
	return &p, nil
}

// DecrementStockIfAvailable checks and decrements under the write lock.
func (m *Memory) DecrementStockIfAvailable(_ context.Context, id int64, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok || p.StockQuantity == nil || *p.StockQuantity < quantity {
		return false, nil
	}
	q := *p.StockQuantity - quantity
	p.StockQuantity = &q
	m.products[id] = p
	return true, nil
}

func (m *Memory) IncrementStock(_ context.Context, id int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok || p.StockQuantity == nil {
		return nil
	}
	q := *p.StockQuantity + quantity
	p.StockQuantity = &q
	m.products[id] = p
	return nil
}

func (m *Memory) SaveProduct(_ context.Context, p inventory.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if (p.StockQuantity != nil && *p.StockQuantity < 0) || p.LowStockThreshold < 0 {
		return fmt.Errorf("product %d: stock values must not be negative", p.ID)
	}
	if p.Barcode != "" {
		for id, other := range m.products {
			if id != p.ID && other.Barcode == p.Barcode {
				return core.ErrDuplicate
			}
		}
	}
	m.products[p.ID] = cloneProduct(p)
	return nil
}

func cloneProduct(p inventory.Product) inventory.Product {
	if p.StockQuantity != nil {
		q := *p.StockQuantity
		p.StockQuantity = &q
	}
	p.Tiers = append([]inventory.PriceTier(nil), p.Tiers...)
	variants := make([]inventory.Variant, len(p.Variants))
	for i, v := range p.Variants {
		v.Tiers = append([]inventory.PriceTier(nil), v.Tiers...)
		variants[i] = v
	}
	p.Variants = variants
	return p
}

// =============================================================================
// LEDGER
// =============================================================================

func (m *Memory) InsertEntry(_ context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.ID]; ok {
		return core.ErrDuplicate
	}
	for _, other := range m.entries {
		if other.Source != e.Source {
			continue
		}
		if e.LegacyID != nil && other.LegacyID != nil && *other.LegacyID == *e.LegacyID {
			return core.ErrDuplicate
		}
		if e.Source.Automated() && !e.Source.Legacy() &&
			e.OrderID != nil && other.OrderID != nil && *other.OrderID == *e.OrderID {
			return core.ErrDuplicate
		}
	}
	e.Items = append([]ledger.Item(nil), e.Items...)
	m.entries[e.ID] = e
	return nil
}

func (m *Memory) GetEntry(_ context.Context, id int64) (*ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, nil
	}
	e = cloneEntry(e)
	return &e, nil
}

func (m *Memory) ListEntries(_ context.Context, customerID int64) ([]ledger.Entry, error) {
	return m.filterEntries(func(e ledger.Entry) bool { return e.CustomerID == customerID }), nil
}

func (m *Memory) ListEntriesBetween(_ context.Context, customerID int64, from, to core.Date) ([]ledger.Entry, error) {
	return m.filterEntries(func(e ledger.Entry) bool {
		return e.CustomerID == customerID && e.Date.Between(from, to)
	}), nil
}

func (m *Memory) filterEntries(keep func(ledger.Entry) bool) []ledger.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Entry
	for _, e := range m.entries {
		if keep(e) {
			out = append(out, cloneEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return entryLess(out[i].Date, out[i].CreatedAt, out[i].ID, out[j].Date, out[j].CreatedAt, out[j].ID)
	})
	return out
}

func entryLess(d1 core.Date, t1 time.Time, id1 int64, d2 core.Date, t2 time.Time, id2 int64) bool {
	if d1 != d2 {
		return d1 < d2
	}
	if !t1.Equal(t2) {
		return t1.Before(t2)
	}
	return id1 < id2
}

func cloneEntry(e ledger.Entry) ledger.Entry {
	e.Items = append([]ledger.Item(nil), e.Items...)
	return e
}

func (m *Memory) UpdateEntry(_ context.Context, id int64, amount decimal.Decimal, note string, date core.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil
	}
	e.Amount = amount
	e.Note = note
	e.Date = date
	m.entries[id] = e
	return nil
}

func (m *Memory) DeleteEntry(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return false, nil
	}
	delete(m.entries, id)
	return true, nil
}

func (m *Memory) MigratedLegacyIDs(_ context.Context, source ledger.Source, customerID int64) (map[int64]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make(map[int64]bool)
	for _, e := range m.entries {
		if e.Source != source || e.LegacyID == nil {
			continue
		}
		if customerID != 0 && e.CustomerID != customerID {
			continue
		}
		ids[*e.LegacyID] = true
	}
	return ids, nil
}

func (m *Memory) FindByLegacyID(_ context.Context, source ledger.Source, legacyID int64) (*ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.Source == source && e.LegacyID != nil && *e.LegacyID == legacyID {
			e = cloneEntry(e)
			return &e, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListLegacy(_ context.Context, kind ledger.Kind, customerID int64) ([]ledger.LegacyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.LegacyRecord
	for _, r := range m.legacy[kind] {
		if customerID != 0 && r.CustomerID != customerID {
			continue
		}
		r.Items = append([]ledger.Item(nil), r.Items...)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return entryLess(out[i].Date, out[i].CreatedAt, out[i].ID, out[j].Date, out[j].CreatedAt, out[j].ID)
	})
	return out, nil
}

func (m *Memory) InsertLegacy(_ context.Context, r ledger.LegacyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	records, ok := m.legacy[r.Kind]
	if !ok {
		return core.Invalid("type", "must be credit or payment")
	}
	if _, exists := records[r.ID]; exists {
		return core.ErrDuplicate
	}
	r.Items = append([]ledger.Item(nil), r.Items...)
	records[r.ID] = r
	return nil
}

// =============================================================================
// ORDERS
// =============================================================================

func (m *Memory) InsertOrder(_ context.Context, o orders.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; ok {
		return core.ErrDuplicate
	}
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *Memory) GetOrder(_ context.Context, id int64) (*orders.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	o = cloneOrder(o)
	return &o, nil
}

func (m *Memory) UpdateOrder(_ context.Context, o orders.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *Memory) ClaimRestock(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.StockRestored {
		return false, nil
	}
	o.StockRestored = true
	m.orders[id] = o
	return true, nil
}

func (m *Memory) ListOrders(_ context.Context, f orders.Filter) ([]orders.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []orders.Order
	for _, o := range m.orders {
		if !matchOrder(o, f) {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func matchOrder(o orders.Order, f orders.Filter) bool {
	if f.CustomerID != 0 || f.Phone != "" {
		byID := f.CustomerID != 0 && o.CustomerID != nil && *o.CustomerID == f.CustomerID
		byPhone := f.Phone != "" && o.Phone == f.Phone
		if !byID && !byPhone {
			return false
		}
	}
	if !f.From.IsZero() && o.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !o.CreatedAt.Before(f.To) {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	return true
}

func cloneOrder(o orders.Order) orders.Order {
	o.Items = append([]orders.LineItem(nil), o.Items...)
	return o
}

// =============================================================================
// MILK
// =============================================================================

func (m *Memory) InsertSubscription(_ context.Context, s milk.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscriptions[s.CustomerID]; ok {
		return core.ErrDuplicate
	}
	m.subscriptions[s.CustomerID] = cloneSubscription(s)
	return nil
}

func (m *Memory) GetSubscription(_ context.Context, customerID int64) (*milk.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subscriptions[customerID]
	if !ok {
		return nil, nil
	}
	s = cloneSubscription(s)
	return &s, nil
}

func (m *Memory) UpdateSubscription(_ context.Context, s milk.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[s.CustomerID] = cloneSubscription(s)
	return nil
}

func (m *Memory) ListSubscriptions(_ context.Context) ([]milk.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]milk.Subscription, 0, len(m.subscriptions))
	for _, s := range m.subscriptions {
		out = append(out, cloneSubscription(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	return out, nil
}

func cloneSubscription(s milk.Subscription) milk.Subscription {
	s.DefaultItems = append([]milk.Item(nil), s.DefaultItems...)
	return s
}

func (m *Memory) InsertLog(_ context.Context, l milk.Log) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := logKey{l.CustomerID, l.Date}
	if _, ok := m.logs[k]; ok {
		return core.ErrDuplicate
	}
	m.logs[k] = cloneLog(l)
	return nil
}

func (m *Memory) UpsertLog(_ context.Context, l milk.Log) (milk.Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := logKey{l.CustomerID, l.Date}
	if existing, ok := m.logs[k]; ok {
		l.ID = existing.ID
		l.CreatedAt = existing.CreatedAt
	}
	m.logs[k] = cloneLog(l)
	return cloneLog(l), nil
}

func (m *Memory) ListLogs(_ context.Context, customerID int64, month core.Month) ([]milk.Log, error) {
	return m.filterLogs(func(l milk.Log) bool { return l.CustomerID == customerID && month.Contains(l.Date) }), nil
}

func (m *Memory) ListLogsForMonth(_ context.Context, month core.Month) ([]milk.Log, error) {
	return m.filterLogs(func(l milk.Log) bool { return month.Contains(l.Date) }), nil
}

func (m *Memory) filterLogs(keep func(milk.Log) bool) []milk.Log {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []milk.Log
	for _, l := range m.logs {
		if keep(l) {
			out = append(out, cloneLog(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].CustomerID < out[j].CustomerID
	})
	return out
}

func cloneLog(l milk.Log) milk.Log {
	l.Items = append([]milk.Item(nil), l.Items...)
	return l
}

func (m *Memory) InsertMilkPayment(_ context.Context, p milk.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.ID]; ok {
		return core.ErrDuplicate
	}
	m.payments[p.ID] = p
	return nil
}

func (m *Memory) ListMilkPayments(_ context.Context, customerID int64, month core.Month) ([]milk.Payment, error) {
	return m.filterPayments(func(p milk.Payment) bool { return p.CustomerID == customerID && p.Month == month }), nil
}

func (m *Memory) ListMilkPaymentsForMonth(_ context.Context, month core.Month) ([]milk.Payment, error) {
	return m.filterPayments(func(p milk.Payment) bool { return p.Month == month }), nil
}

func (m *Memory) filterPayments(keep func(milk.Payment) bool) []milk.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []milk.Payment
	for _, p := range m.payments {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// =============================================================================
// SETTINGS
// =============================================================================

func (m *Memory) GetSettings(_ context.Context) (*settings.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return nil, nil
	}
	s := *m.settings
	return &s, nil
}

func (m *Memory) SaveSettings(_ context.Context, s settings.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
	return nil
}
