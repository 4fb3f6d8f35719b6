/*
Package billing derives monthly statements from the ledger, legacy
records, orders and milk data. Nothing here is stored; every figure is
recomputed from its sources on request.

CUSTOMER STATEMENT (MonthlyStatement):
  Lines are merged from five sources, then sorted by (date, timestamp):

    milk logs in month          -> milk       Σ(qty×price) itemized, else qty × price snapshot
    milk payments for month     -> payment
    app orders created in month -> order      non-cancelled, not yet on the ledger
    ledger entries in month     -> udhar      credits (store purchases)
                                -> payment    payments
    legacy records in month     -> udhar / payment, unmigrated only

  outstanding = milkTotal + orderTotal + udharTotal - paymentsTotal

  This is the month's view, not the customer's all-time balance
  (ledger.Balance).

NO DOUBLE COUNTING:
  - An order on the ledger (addedToUdhar) appears through its app_order
    credit only.
  - A legacy record with a ledger copy appears through the copy only.

SEE ALSO:
  - milkbilling.go: store-wide milk dues
  - pdf.go: statement rendering
*/
package billing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/customers"
	"github.com/warp/kirana-ledger/ledger"
	"github.com/warp/kirana-ledger/milk"
	"github.com/warp/kirana-ledger/orders"
)

// Category groups statement lines for the summary.
type Category string

const (
	CategoryMilk    Category = "milk"
	CategoryOrder   Category = "order"
	CategoryUdhar   Category = "udhar"
	CategoryPayment Category = "payment"
)

// Line is one statement row.
type Line struct {
	Date        core.Date       `json:"date"`
	Timestamp   time.Time       `json:"timestamp"`
	Category    Category        `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	// Source names the record the line was derived from (milk_log,
	// milk_payment, order, a ledger source, legacy_credit, legacy_payment).
	Source string `json:"source"`
	RefID  int64  `json:"refId"`
}

type Summary struct {
	MilkTotal     decimal.Decimal `json:"milkTotal"`
	OrderTotal    decimal.Decimal `json:"orderTotal"`
	UdharTotal    decimal.Decimal `json:"udharTotal"`
	PaymentsTotal decimal.Decimal `json:"paymentsTotal"`
	Outstanding   decimal.Decimal `json:"outstanding"`
}

type Statement struct {
	CustomerID   int64      `json:"customerId"`
	CustomerName string     `json:"customerName"`
	Phone        string     `json:"phone"`
	Month        core.Month `json:"month"`
	Entries      []Line     `json:"entries"`
	Summary      Summary    `json:"summary"`
}

// Aggregator reads every source a statement is built from.
type Aggregator struct {
	customers customers.Lookup
	ledger    *ledger.Ledger
	orders    *orders.Fulfillment
	milk      *milk.Service
	cache     Cache
	cacheTTL  time.Duration
}

func NewAggregator(lookup customers.Lookup, l *ledger.Ledger, f *orders.Fulfillment, m *milk.Service) *Aggregator {
	return &Aggregator{
		customers: lookup,
		ledger:    l,
		orders:    f,
		milk:      m,
		cache:     NopCache{},
	}
}

// MonthlyStatement builds the customer's statement for month.
func (a *Aggregator) MonthlyStatement(ctx context.Context, customerID int64, month core.Month) (*Statement, error) {
	if _, err := core.ParseMonth(string(month)); err != nil {
		return nil, err
	}
	c, err := a.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, core.NotFound("customer", customerID)
	}

	st := &Statement{
		CustomerID:   c.ID,
		CustomerName: c.Name,
		Phone:        c.Phone,
		Month:        month,
	}
	for _, collect := range []func(context.Context, *customers.Customer, core.Month) ([]Line, error){
		a.milkLines,
		a.milkPaymentLines,
		a.orderLines,
		a.ledgerLines,
		a.legacyLines,
	} {
		lines, err := collect(ctx, c, month)
		if err != nil {
			return nil, err
		}
		st.Entries = append(st.Entries, lines...)
	}

	sort.SliceStable(st.Entries, func(i, j int) bool {
		if st.Entries[i].Date != st.Entries[j].Date {
			return st.Entries[i].Date < st.Entries[j].Date
		}
		return st.Entries[i].Timestamp.Before(st.Entries[j].Timestamp)
	})
	st.Summary = Summarize(st.Entries)
	return st, nil
}

// Summarize totals lines per category.
func Summarize(lines []Line) Summary {
	s := Summary{
		MilkTotal:     decimal.Zero,
		OrderTotal:    decimal.Zero,
		UdharTotal:    decimal.Zero,
		PaymentsTotal: decimal.Zero,
	}
	for _, l := range lines {
		switch l.Category {
		case CategoryMilk:
			s.MilkTotal = s.MilkTotal.Add(l.Amount)
		case CategoryOrder:
			s.OrderTotal = s.OrderTotal.Add(l.Amount)
		case CategoryUdhar:
			s.UdharTotal = s.UdharTotal.Add(l.Amount)
		case CategoryPayment:
			s.PaymentsTotal = s.PaymentsTotal.Add(l.Amount)
		}
	}
	s.Outstanding = core.Sum(s.MilkTotal, s.OrderTotal, s.UdharTotal).Sub(s.PaymentsTotal)
	return s
}

// =============================================================================
// LINE COLLECTORS
// =============================================================================

func (a *Aggregator) milkLines(ctx context.Context, c *customers.Customer, month core.Month) ([]Line, error) {
	logs, err := a.milk.Logs(ctx, c.ID, month)
	if err != nil || len(logs) == 0 {
		return nil, err
	}
	subPrice, defaultPrice, err := a.milkPrices(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(logs))
	for _, l := range logs {
		desc := fmt.Sprintf("Milk %s L", l.Qty.String())
		if len(l.Items) > 0 {
			desc = fmt.Sprintf("Milk delivery (%d items)", len(l.Items))
		}
		lines = append(lines, Line{
			Date:        l.Date,
			Timestamp:   l.CreatedAt,
			Category:    CategoryMilk,
			Description: desc,
			Amount:      l.Amount(subPrice, defaultPrice),
			Source:      "milk_log",
			RefID:       l.ID,
		})
	}
	return lines, nil
}

// milkPrices returns the subscription price (nil without one) and the store default.
func (a *Aggregator) milkPrices(ctx context.Context, customerID int64) (*decimal.Decimal, decimal.Decimal, error) {
	defaultPrice, err := a.milk.DefaultPrice(ctx)
	if err != nil {
		return nil, decimal.Zero, err
	}
	sub, err := a.milk.Subscription(ctx, customerID)
	if core.IsNotFound(err) {
		return nil, defaultPrice, nil
	}
	if err != nil {
		return nil, decimal.Zero, err
	}
	return sub.PricePerLitre, defaultPrice, nil
}

func (a *Aggregator) milkPaymentLines(ctx context.Context, c *customers.Customer, month core.Month) ([]Line, error) {
	payments, err := a.milk.Payments(ctx, c.ID, month)
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(payments))
	for _, p := range payments {
		desc := "Milk payment"
		if p.Note != "" {
			desc += ": " + p.Note
		}
		// Payments recorded outside the billed month still sort into it
		date := core.DateOf(p.CreatedAt)
		switch {
		case date.Before(month.FirstDay()):
			date = month.FirstDay()
		case date.After(month.LastDay()):
			date = month.LastDay()
		}
		lines = append(lines, Line{
			Date:        date,
			Timestamp:   p.CreatedAt,
			Category:    CategoryPayment,
			Description: desc,
			Amount:      p.Amount,
			Source:      "milk_payment",
			RefID:       p.ID,
		})
	}
	return lines, nil
}

func (a *Aggregator) orderLines(ctx context.Context, c *customers.Customer, month core.Month) ([]Line, error) {
	list, err := a.orders.List(ctx, orders.Filter{
		CustomerID: c.ID,
		Phone:      c.Phone,
		From:       month.Start(),
		To:         month.End(),
	})
	if err != nil {
		return nil, err
	}
	var lines []Line
	for _, o := range list {
		if o.Status == orders.StatusCancelled || o.AddedToUdhar {
			continue
		}
		lines = append(lines, Line{
			Date:        core.DateOf(o.CreatedAt),
			Timestamp:   o.CreatedAt,
			Category:    CategoryOrder,
			Description: fmt.Sprintf("Order #%d (%s)", o.ID, o.PaymentMethod),
			Amount:      o.Total,
			Source:      "order",
			RefID:       o.ID,
		})
	}
	return lines, nil
}

func (a *Aggregator) ledgerLines(ctx context.Context, c *customers.Customer, month core.Month) ([]Line, error) {
	entries, err := a.ledger.EntriesInMonth(ctx, c.ID, month)
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, Line{
			Date:        e.Date,
			Timestamp:   e.CreatedAt,
			Category:    categoryFor(e.Kind),
			Description: describeEntry(e),
			Amount:      e.Amount,
			Source:      string(e.Source),
			RefID:       e.ID,
		})
	}
	return lines, nil
}

func (a *Aggregator) legacyLines(ctx context.Context, c *customers.Customer, month core.Month) ([]Line, error) {
	var lines []Line
	for _, kind := range []ledger.Kind{ledger.KindCredit, ledger.KindPayment} {
		pending, err := a.ledger.UnmigratedLegacy(ctx, kind, c.ID)
		if err != nil {
			return nil, err
		}
		for _, r := range pending {
			if !month.Contains(r.Date) {
				continue
			}
			source, desc := "legacy_credit", "Udhar (legacy)"
			if kind == ledger.KindPayment {
				source, desc = "legacy_payment", "Payment (legacy)"
			}
			if r.Note != "" {
				desc += ": " + r.Note
			}
			lines = append(lines, Line{
				Date:        r.Date,
				Timestamp:   r.CreatedAt,
				Category:    categoryFor(kind),
				Description: desc,
				Amount:      r.Amount,
				Source:      source,
				RefID:       r.ID,
			})
		}
	}
	return lines, nil
}

func categoryFor(kind ledger.Kind) Category {
	if kind == ledger.KindPayment {
		return CategoryPayment
	}
	return CategoryUdhar
}

func describeEntry(e ledger.Entry) string {
	var desc string
	switch e.Source {
	case ledger.SourceAppOrder, ledger.SourceLegacyUdhar:
		desc = "Store purchase"
		if e.OrderID != nil {
			desc = fmt.Sprintf("Store purchase, order #%d", *e.OrderID)
		}
	case ledger.SourceOrderPayment:
		desc = "Order payment"
		if e.OrderID != nil {
			desc = fmt.Sprintf("Payment, order #%d", *e.OrderID)
		}
	default:
		desc = "Udhar"
		if e.Kind == ledger.KindPayment {
			desc = "Payment"
		}
	}
	if e.Note != "" {
		desc += ": " + e.Note
	}
	return desc
}
