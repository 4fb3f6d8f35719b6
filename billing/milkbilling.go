package billing

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/metrics"
	"github.com/warp/kirana-ledger/milk"
)

// =============================================================================
// CACHE
// =============================================================================

// Cache stores rendered store-wide billing. Misses and failures are
// indistinguishable to callers; billing is always recomputable.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
	// DeletePattern removes every key matching a glob pattern.
	DeletePattern(ctx context.Context, pattern string)
}

// NopCache never hits.
type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (NopCache) Set(context.Context, string, []byte, time.Duration) {}
func (NopCache) Delete(context.Context, ...string) {}
func (NopCache) DeletePattern(context.Context, string) {}

const milkBillingKeyPrefix = "billing:milk:"

func milkBillingKey(month core.Month) string { return milkBillingKeyPrefix + string(month) }

// UseCache enables caching of store-wide milk billing for ttl.
func (a *Aggregator) UseCache(c Cache, ttl time.Duration) {
	if c == nil {
		c = NopCache{}
	}
	a.cache = c
	a.cacheTTL = ttl
}

// Invalidate drops cached billing for month. Milk deliveries and payments call it.
func (a *Aggregator) Invalidate(ctx context.Context, month core.Month) {
	a.cache.Delete(ctx, milkBillingKey(month))
}

// InvalidateAll drops cached billing for every month. Writes that change who
// is billed, or the default price, call it.
func (a *Aggregator) InvalidateAll(ctx context.Context) {
	a.cache.DeletePattern(ctx, milkBillingKeyPrefix+"*")
}

// =============================================================================
// STORE-WIDE MILK BILLING
// =============================================================================

// CustomerDue is one subscribed customer's milk bill for a month.
type CustomerDue struct {
	CustomerID int64           `json:"customerId"`
	Name       string          `json:"name"`
	Phone      string          `json:"phone"`
	Status     milk.Status     `json:"status"`
	Deliveries int             `json:"deliveries"`
	Litres     decimal.Decimal `json:"litres"`
	Amount     decimal.Decimal `json:"amount"`
	Paid       decimal.Decimal `json:"paid"`
	Due        decimal.Decimal `json:"due"`
}

type MilkTotals struct {
	Customers int             `json:"customers"`
	Litres    decimal.Decimal `json:"litres"`
	Amount    decimal.Decimal `json:"amount"`
	Paid      decimal.Decimal `json:"paid"`
	Due       decimal.Decimal `json:"due"`
}

type MilkBilling struct {
	Month     core.Month    `json:"month"`
	Customers []CustomerDue `json:"customers"`
	Totals    MilkTotals    `json:"totals"`
}

// StoreMilkBilling computes the month's milk dues for every subscribed,
// non-deleted customer, served from the cache when present.
func (a *Aggregator) StoreMilkBilling(ctx context.Context, month core.Month) (*MilkBilling, error) {
	if _, err := core.ParseMonth(string(month)); err != nil {
		return nil, err
	}
	key := milkBillingKey(month)
	if data, ok := a.cache.Get(ctx, key); ok {
		var cached MilkBilling
		if err := json.Unmarshal(data, &cached); err == nil {
			metrics.BillingCacheLookups.WithLabelValues("hit").Inc()
			return &cached, nil
		}
	}
	metrics.BillingCacheLookups.WithLabelValues("miss").Inc()

	b, err := a.computeMilkBilling(ctx, month)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(b); err == nil {
		a.cache.Set(ctx, key, data, a.cacheTTL)
	} else {
		log.Printf("[Billing] failed to encode milk billing for %s: %v", month, err)
	}
	return b, nil
}

func (a *Aggregator) computeMilkBilling(ctx context.Context, month core.Month) (*MilkBilling, error) {
	subs, err := a.milk.Subscriptions(ctx)
	if err != nil {
		return nil, err
	}
	logs, err := a.milk.LogsForMonth(ctx, month)
	if err != nil {
		return nil, err
	}
	payments, err := a.milk.PaymentsForMonth(ctx, month)
	if err != nil {
		return nil, err
	}
	defaultPrice, err := a.milk.DefaultPrice(ctx)
	if err != nil {
		return nil, err
	}

	logsBy := make(map[int64][]milk.Log)
	for _, l := range logs {
		logsBy[l.CustomerID] = append(logsBy[l.CustomerID], l)
	}
	paidBy := make(map[int64]decimal.Decimal)
	for _, p := range payments {
		paidBy[p.CustomerID] = paidBy[p.CustomerID].Add(p.Amount)
	}

	b := &MilkBilling{
		Month:     month,
		Customers: []CustomerDue{},
		Totals: MilkTotals{
			Litres: decimal.Zero,
			Amount: decimal.Zero,
			Paid:   decimal.Zero,
			Due:    decimal.Zero,
		},
	}
	for _, sub := range subs {
		c, err := a.customers.FindByID(ctx, sub.CustomerID)
		if err != nil {
			return nil, err
		}
		if c == nil {
			continue
		}
		due := CustomerDue{
			CustomerID: c.ID,
			Name:       c.Name,
			Phone:      c.Phone,
			Status:     sub.Status,
			Litres:     decimal.Zero,
			Amount:     decimal.Zero,
			Paid:       paidBy[c.ID],
		}
		for _, l := range logsBy[c.ID] {
			due.Deliveries++
			due.Litres = due.Litres.Add(l.Litres())
			due.Amount = due.Amount.Add(l.Amount(sub.PricePerLitre, defaultPrice))
		}
		due.Due = due.Amount.Sub(due.Paid)
		b.Customers = append(b.Customers, due)

		b.Totals.Customers++
		b.Totals.Litres = b.Totals.Litres.Add(due.Litres)
		b.Totals.Amount = b.Totals.Amount.Add(due.Amount)
		b.Totals.Paid = b.Totals.Paid.Add(due.Paid)
		b.Totals.Due = b.Totals.Due.Add(due.Due)
	}
	sort.Slice(b.Customers, func(i, j int) bool { return b.Customers[i].CustomerID < b.Customers[j].CustomerID })
	return b, nil
}
