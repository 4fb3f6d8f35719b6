package milk

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/kirana-ledger/core"
)

type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
)

// Item is one itemized product in a default delivery or a log (milk, curd, paneer...).
type Item struct {
	Name  string          `json:"name"`
	Qty   decimal.Decimal `json:"qty"`
	Price decimal.Decimal `json:"price"`
}

func itemsTotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Qty.Mul(it.Price))
	}
	return total
}

// Subscription is a customer's standing daily delivery. A customer owns at most one.
type Subscription struct {
	ID            int64            `json:"id"`
	CustomerID    int64            `json:"customerId"`
	DefaultQty    decimal.Decimal  `json:"defaultQty"`
	DefaultItems  []Item           `json:"defaultItems,omitempty"`
	PricePerLitre *decimal.Decimal `json:"pricePerLitre,omitempty"`
	Status        Status           `json:"status"`
	PauseFrom     *core.Date       `json:"pauseFrom,omitempty"`
	PauseTo       *core.Date       `json:"pauseTo,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// DeliversOn reports whether the default delivery applies on date.
// A paused subscription without a window is paused indefinitely.
func (s *Subscription) DeliversOn(date core.Date) bool {
	if s.Status != StatusPaused {
		return true
	}
	if s.PauseFrom != nil && date.Before(*s.PauseFrom) {
		return true
	}
	if s.PauseTo != nil && date.After(*s.PauseTo) {
		return true
	}
	return false
}

// Log is the delivery for one (customer, date).
type Log struct {
	ID         int64            `json:"id"`
	CustomerID int64            `json:"customerId"`
	Date       core.Date        `json:"date"`
	Qty        decimal.Decimal  `json:"qty"`
	Items      []Item           `json:"items,omitempty"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// Amount bills the log: itemized sum, else qty at the first known price
// among the log snapshot, the subscription price and the store default.
func (l *Log) Amount(subscriptionPrice *decimal.Decimal, storeDefault decimal.Decimal) decimal.Decimal {
	if len(l.Items) > 0 {
		return itemsTotal(l.Items)
	}
	price := storeDefault
	switch {
	case l.Price != nil:
		price = *l.Price
	case subscriptionPrice != nil:
		price = *subscriptionPrice
	}
	return l.Qty.Mul(price)
}

// Litres is the delivered quantity; for itemized logs the item quantities summed.
func (l *Log) Litres() decimal.Decimal {
	if len(l.Items) == 0 {
		return l.Qty
	}
	total := decimal.Zero
	for _, it := range l.Items {
		total = total.Add(it.Qty)
	}
	return total
}

// Payment settles milk billing for a month.
type Payment struct {
	ID         int64           `json:"id"`
	CustomerID int64           `json:"customerId"`
	Month      core.Month      `json:"month"`
	Amount     decimal.Decimal `json:"amount"`
	Note       string          `json:"note,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Store persists subscriptions, logs and payments.
type Store interface {
	// InsertSubscription returns core.ErrDuplicate when the customer already has one.
	InsertSubscription(ctx context.Context, s Subscription) error
	// GetSubscription returns nil when the customer has none.
	GetSubscription(ctx context.Context, customerID int64) (*Subscription, error)
	UpdateSubscription(ctx context.Context, s Subscription) error
	ListSubscriptions(ctx context.Context) ([]Subscription, error)

	// InsertLog returns core.ErrDuplicate when (customer, date) is already logged.
	InsertLog(ctx context.Context, l Log) error
	// UpsertLog replaces the delivery for (customer, date), keeping the
	// existing id and createdAt, and returns the stored log.
	UpsertLog(ctx context.Context, l Log) (Log, error)
	ListLogs(ctx context.Context, customerID int64, month core.Month) ([]Log, error)
	ListLogsForMonth(ctx context.Context, month core.Month) ([]Log, error)

	InsertMilkPayment(ctx context.Context, p Payment) error
	ListMilkPayments(ctx context.Context, customerID int64, month core.Month) ([]Payment, error)
	ListMilkPaymentsForMonth(ctx context.Context, month core.Month) ([]Payment, error)
}
