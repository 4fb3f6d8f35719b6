/*
Package milk manages daily milk subscriptions, delivery logs and monthly
milk payments.

  Subscribe          one subscription per customer (duplicate_subscription)
  Pause/Resume       optional [from, to] window; no window means until resumed
  RecordDelivery     upsert on (customer, date), snapshotting the price
  RecordPayment      payment against a month's milk bill
  AutoLogDeliveries  default deliveries for every subscription delivering on a date

Billing for a month is derived from logs and payments, never stored.
Writes notify the Invalidator so cached store-wide billing for the
affected month is dropped.
*/
package milk

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/customers"
	"github.com/warp/kirana-ledger/sequence"
	"github.com/warp/kirana-ledger/settings"
)

// Invalidator drops derived data after a write: one month for deliveries
// and payments, every month for subscription changes.
type Invalidator interface {
	Invalidate(ctx context.Context, month core.Month)
	InvalidateAll(ctx context.Context)
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context, core.Month) {}
func (nopInvalidator) InvalidateAll(context.Context) {}

type Service struct {
	store       Store
	customers   customers.Lookup
	settings    *settings.Provider
	seq         *sequence.Generator
	invalidator Invalidator
	now         func() time.Time
}

func NewService(store Store, lookup customers.Lookup, sp *settings.Provider, seq *sequence.Generator) *Service {
	return &Service{
		store:       store,
		customers:   lookup,
		settings:    sp,
		seq:         seq,
		invalidator: nopInvalidator{},
		now:         time.Now,
	}
}

// SetInvalidator registers the cache to notify on writes.
func (s *Service) SetInvalidator(inv Invalidator) {
	if inv == nil {
		inv = nopInvalidator{}
	}
	s.invalidator = inv
}

func (s *Service) requireCustomer(ctx context.Context, id int64) error {
	if id <= 0 {
		return core.Invalid("customerId", "is required")
	}
	c, err := s.customers.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return core.NotFound("customer", id)
	}
	return nil
}

func validateItems(items []Item) error {
	for _, it := range items {
		if strings.TrimSpace(it.Name) == "" {
			return core.Invalid("items.name", "is required")
		}
		if !it.Qty.IsPositive() {
			return core.Invalid("items.qty", "must be greater than zero")
		}
		if it.Price.IsNegative() {
			return core.Invalid("items.price", "must not be negative")
		}
	}
	return nil
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

type SubscribeInput struct {
	CustomerID    int64
	DefaultQty    decimal.Decimal
	DefaultItems  []Item
	PricePerLitre *decimal.Decimal
}

// Subscribe creates the customer's subscription.
func (s *Service) Subscribe(ctx context.Context, in SubscribeInput) (*Subscription, error) {
	if err := s.requireCustomer(ctx, in.CustomerID); err != nil {
		return nil, err
	}
	if len(in.DefaultItems) == 0 && !in.DefaultQty.IsPositive() {
		return nil, core.Invalid("defaultQty", "must be greater than zero")
	}
	if err := validateItems(in.DefaultItems); err != nil {
		return nil, err
	}
	if in.PricePerLitre != nil && in.PricePerLitre.IsNegative() {
		return nil, core.Invalid("pricePerLitre", "must not be negative")
	}

	existing, err := s.store.GetSubscription(ctx, in.CustomerID)
	if err != nil {
		return nil, core.Storage("get subscription", err)
	}
	if existing != nil {
		return nil, duplicateSubscription(in.CustomerID)
	}

	id, err := s.seq.NextID(ctx, sequence.Subscriptions)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sub := Subscription{
		ID:            id,
		CustomerID:    in.CustomerID,
		DefaultQty:    in.DefaultQty,
		DefaultItems:  in.DefaultItems,
		PricePerLitre: in.PricePerLitre,
		Status:        StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.InsertSubscription(ctx, sub); err != nil {
		if errors.Is(err, core.ErrDuplicate) {
			return nil, duplicateSubscription(in.CustomerID)
		}
		return nil, core.Storage("insert subscription", err)
	}
	s.invalidator.InvalidateAll(ctx)
	return &sub, nil
}

func duplicateSubscription(customerID int64) error {
	return core.Reject(core.CodeDuplicateSubscription, "customer %d already has a milk subscription", customerID)
}

// Subscription returns the customer's subscription or NotFound.
func (s *Service) Subscription(ctx context.Context, customerID int64) (*Subscription, error) {
	sub, err := s.store.GetSubscription(ctx, customerID)
	if err != nil {
		return nil, core.Storage("get subscription", err)
	}
	if sub == nil {
		return nil, core.NotFound("milk subscription", customerID)
	}
	return sub, nil
}

// Subscriptions lists every subscription.
func (s *Service) Subscriptions(ctx context.Context) ([]Subscription, error) {
	subs, err := s.store.ListSubscriptions(ctx)
	if err != nil {
		return nil, core.Storage("list subscriptions", err)
	}
	return subs, nil
}

// Pause stops default deliveries for [from, to]. A nil to pauses until
// Resume; an empty from starts today.
func (s *Service) Pause(ctx context.Context, customerID int64, from core.Date, to *core.Date) (*Subscription, error) {
	sub, err := s.Subscription(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if from == "" {
		from = core.DateOf(s.now())
	} else if _, err := core.ParseDate(string(from)); err != nil {
		return nil, err
	}
	if to != nil {
		if _, err := core.ParseDate(string(*to)); err != nil {
			return nil, err
		}
		if to.Before(from) {
			return nil, core.Invalid("pauseTo", "must not be before pauseFrom")
		}
	}
	sub.Status = StatusPaused
	sub.PauseFrom = &from
	sub.PauseTo = to
	return s.saveSubscription(ctx, sub)
}

// Resume reactivates a paused subscription.
func (s *Service) Resume(ctx context.Context, customerID int64) (*Subscription, error) {
	sub, err := s.Subscription(ctx, customerID)
	if err != nil {
		return nil, err
	}
	sub.Status = StatusActive
	sub.PauseFrom = nil
	sub.PauseTo = nil
	return s.saveSubscription(ctx, sub)
}

func (s *Service) saveSubscription(ctx context.Context, sub *Subscription) (*Subscription, error) {
	sub.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateSubscription(ctx, *sub); err != nil {
		return nil, core.Storage("update subscription", err)
	}
	s.invalidator.InvalidateAll(ctx)
	return sub, nil
}

// =============================================================================
// DELIVERIES & PAYMENTS
// =============================================================================

type DeliveryInput struct {
	CustomerID int64
	Date       core.Date
	Qty        decimal.Decimal
	Items      []Item
	// Price overrides the snapshot price for a flat-rate log.
	Price *decimal.Decimal
}

// RecordDelivery writes the delivery for (customer, date), replacing any
// earlier log for that day.
func (s *Service) RecordDelivery(ctx context.Context, in DeliveryInput) (*Log, error) {
	if err := s.requireCustomer(ctx, in.CustomerID); err != nil {
		return nil, err
	}
	if in.Date == "" {
		in.Date = core.DateOf(s.now())
	} else if _, err := core.ParseDate(string(in.Date)); err != nil {
		return nil, err
	}
	if in.Qty.IsNegative() {
		return nil, core.Invalid("qty", "must not be negative")
	}
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}

	sub, err := s.store.GetSubscription(ctx, in.CustomerID)
	if err != nil {
		return nil, core.Storage("get subscription", err)
	}
	price := in.Price
	if price == nil && len(in.Items) == 0 {
		p, err := s.snapshotPrice(ctx, sub)
		if err != nil {
			return nil, err
		}
		price = &p
	}

	id, err := s.seq.NextID(ctx, sequence.MilkLogs)
	if err != nil {
		return nil, err
	}
	stored, err := s.store.UpsertLog(ctx, Log{
		ID:         id,
		CustomerID: in.CustomerID,
		Date:       in.Date,
		Qty:        in.Qty,
		Items:      in.Items,
		Price:      price,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return nil, core.Storage("upsert milk log", err)
	}
	s.invalidator.Invalidate(ctx, in.Date.Month())
	return &stored, nil
}

// snapshotPrice is the subscription price, else the store default.
func (s *Service) snapshotPrice(ctx context.Context, sub *Subscription) (decimal.Decimal, error) {
	if sub != nil && sub.PricePerLitre != nil {
		return *sub.PricePerLitre, nil
	}
	return s.DefaultPrice(ctx)
}

// DefaultPrice is the store-wide milk price per litre.
func (s *Service) DefaultPrice(ctx context.Context) (decimal.Decimal, error) {
	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return cfg.MilkPricePerLitre, nil
}

type PaymentInput struct {
	CustomerID int64
	Month      core.Month
	Amount     decimal.Decimal
	Note       string
}

// RecordPayment records a payment against a month's milk bill.
func (s *Service) RecordPayment(ctx context.Context, in PaymentInput) (*Payment, error) {
	if err := s.requireCustomer(ctx, in.CustomerID); err != nil {
		return nil, err
	}
	if err := core.RequirePositive("amount", in.Amount); err != nil {
		return nil, err
	}
	if in.Month == "" {
		in.Month = core.MonthOf(s.now())
	} else if _, err := core.ParseMonth(string(in.Month)); err != nil {
		return nil, err
	}

	id, err := s.seq.NextID(ctx, sequence.MilkPayments)
	if err != nil {
		return nil, err
	}
	p := Payment{
		ID:         id,
		CustomerID: in.CustomerID,
		Month:      in.Month,
		Amount:     in.Amount,
		Note:       strings.TrimSpace(in.Note),
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.InsertMilkPayment(ctx, p); err != nil {
		return nil, core.Storage("insert milk payment", err)
	}
	s.invalidator.Invalidate(ctx, in.Month)
	return &p, nil
}

// Logs returns a customer's deliveries in month.
func (s *Service) Logs(ctx context.Context, customerID int64, month core.Month) ([]Log, error) {
	logs, err := s.store.ListLogs(ctx, customerID, month)
	if err != nil {
		return nil, core.Storage("list milk logs", err)
	}
	return logs, nil
}

// LogsForMonth returns every delivery in month.
func (s *Service) LogsForMonth(ctx context.Context, month core.Month) ([]Log, error) {
	logs, err := s.store.ListLogsForMonth(ctx, month)
	if err != nil {
		return nil, core.Storage("list milk logs for month", err)
	}
	return logs, nil
}

// Payments returns a customer's milk payments for month.
func (s *Service) Payments(ctx context.Context, customerID int64, month core.Month) ([]Payment, error) {
	payments, err := s.store.ListMilkPayments(ctx, customerID, month)
	if err != nil {
		return nil, core.Storage("list milk payments", err)
	}
	return payments, nil
}

// PaymentsForMonth returns every milk payment for month.
func (s *Service) PaymentsForMonth(ctx context.Context, month core.Month) ([]Payment, error) {
	payments, err := s.store.ListMilkPaymentsForMonth(ctx, month)
	if err != nil {
		return nil, core.Storage("list milk payments for month", err)
	}
	return payments, nil
}

// =============================================================================
// AUTO LOG
// =============================================================================

// AutoLogDeliveries creates the default delivery on date for every subscription that
// delivers that day and has no log yet. Existing logs are never touched.
// Returns the number of logs created.
func (s *Service) AutoLogDeliveries(ctx context.Context, date core.Date) (int, error) {
	subs, err := s.Subscriptions(ctx)
	if err != nil {
		return 0, err
	}
	created := 0
	for i := range subs {
		sub := &subs[i]
		if !sub.DeliversOn(date) {
			continue
		}
		c, err := s.customers.FindByID(ctx, sub.CustomerID)
		if err != nil {
			return created, err
		}
		if c == nil {
			continue
		}

		var price *decimal.Decimal
		if len(sub.DefaultItems) == 0 {
			p, err := s.snapshotPrice(ctx, sub)
			if err != nil {
				return created, err
			}
			price = &p
		}
		id, err := s.seq.NextID(ctx, sequence.MilkLogs)
		if err != nil {
			return created, err
		}
		err = s.store.InsertLog(ctx, Log{
			ID:         id,
			CustomerID: sub.CustomerID,
			Date:       date,
			Qty:        sub.DefaultQty,
			Items:      sub.DefaultItems,
			Price:      price,
			CreatedAt:  s.now().UTC(),
		})
		if errors.Is(err, core.ErrDuplicate) {
			continue
		}
		if err != nil {
			return created, core.Storage("insert milk log", err)
		}
		created++
	}
	if created > 0 {
		log.Printf("[Milk] auto-logged %d default deliveries for %s", created, date)
		s.invalidator.Invalidate(ctx, date.Month())
	}
	return created, nil
}
