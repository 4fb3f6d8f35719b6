/*
Package orders validates and prices carts, reserves inventory and records
orders, posting to the ledger when an order is taken on account.

CHECKOUT FLOW (PlaceOrder):
  1. Validate input (name, phone, items, payment method)
  2. Reserve every regular line through inventory.Reserver. The reserver
     re-prices the line from the catalog tiers; client prices are ignored.
  3. On any rejection, release what this request already reserved and
     return the rejection. Nothing stays reserved.
  4. Add the configured gift line when requested and the subtotal qualifies
  5. Resolve the customer by phone (nil when there is no account)
  6. Persist the order
  7. paymentMethod == account with a customer: post an app_order credit
     for the total and set addedToUdhar

NO CROSS-COLLECTION TRANSACTION:
  Steps 6 and 7 are separate writes. If the credit fails the order stays
  with addedToUdhar=false and the failure is logged; ConvertToCredit is the
  reconciliation path. The same holds for cancellation restock, guarded by
  per-line Restocked flags and the order-level stockRestored flag.

OTHER OPERATIONS:
  UpdateStatus / Cancel   status edits; entering cancelled restocks once
  MarkPaid                order_payment entry, paid = true
  ConvertToCredit         app_order entry for orders not on the ledger yet
*/
package orders

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/customers"
	"github.com/warp/kirana-ledger/inventory"
	"github.com/warp/kirana-ledger/ledger"
	"github.com/warp/kirana-ledger/metrics"
	"github.com/warp/kirana-ledger/sequence"
	"github.com/warp/kirana-ledger/settings"
)

// Fulfillment wires the checkout collaborators.
type Fulfillment struct {
	store     Store
	reserver  *inventory.Reserver
	ledger    *ledger.Ledger
	customers customers.Lookup
	settings  *settings.Provider
	seq       *sequence.Generator
	now       func() time.Time
}

func NewFulfillment(
	store Store,
	reserver *inventory.Reserver,
	l *ledger.Ledger,
	lookup customers.Lookup,
	sp *settings.Provider,
	seq *sequence.Generator,
) *Fulfillment {
	return &Fulfillment{
		store:     store,
		reserver:  reserver,
		ledger:    l,
		customers: lookup,
		settings:  sp,
		seq:       seq,
		now:       time.Now,
	}
}

// =============================================================================
// PLACE ORDER
// =============================================================================

// CartItem is a client cart line. ClientPrice is advisory only.
type CartItem struct {
	ProductID   int64
	VariantID   string
	Quantity    int
	ClientPrice *decimal.Decimal
}

type PlaceOrderInput struct {
	CustomerName  string
	Phone         string
	Address       customers.Address
	Items         []CartItem
	PaymentMethod PaymentMethod
	FreeGift      bool
	Notes         string
}

func (in *PlaceOrderInput) validate() error {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	if in.CustomerName == "" {
		return core.Invalid("customerName", "is required")
	}
	in.Phone = customers.NormalizePhone(in.Phone)
	if len(in.Phone) < 10 {
		return core.Invalid("phone", "must contain at least 10 digits")
	}
	if len(in.Items) == 0 {
		return core.Invalid("items", "cart is empty")
	}
	for _, it := range in.Items {
		if it.ProductID <= 0 {
			return core.Invalid("items.productId", "is required")
		}
		if it.Quantity <= 0 {
			return core.Invalid("items.quantity", "must be at least 1")
		}
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = PaymentCOD
	}
	if !in.PaymentMethod.Valid() {
		return core.Invalid("paymentMethod", "unsupported payment method "+string(in.PaymentMethod))
	}
	return nil
}

// PlaceOrder re-prices the cart, reserves stock and records the order.
func (f *Fulfillment) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	cfg, err := f.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	reserved := make([]inventory.Reservation, 0, len(in.Items))
	for _, it := range in.Items {
		res, err := f.reserver.Reserve(ctx, it.ProductID, it.VariantID, it.Quantity)
		if err != nil {
			f.rollback(ctx, reserved)
			metrics.OrderRejections.WithLabelValues(rejectionCode(err)).Inc()
			return nil, err
		}
		if it.ClientPrice != nil && !it.ClientPrice.Equal(res.UnitPrice) {
			log.Printf("[Orders] client price %s ignored for product %d, server price %s",
				it.ClientPrice, it.ProductID, res.UnitPrice)
		}
		reserved = append(reserved, res)
	}

	items := make([]LineItem, 0, len(reserved)+1)
	subtotal := decimal.Zero
	for _, r := range reserved {
		lineTotal := r.UnitPrice.Mul(decimal.NewFromInt(int64(r.Quantity)))
		items = append(items, LineItem{
			ProductID: r.ProductID,
			VariantID: r.VariantID,
			Name:      r.ProductName,
			Label:     r.Label,
			Quantity:  r.Quantity,
			Price:     r.UnitPrice,
			LineTotal: lineTotal,
			// Untracked lines have nothing to give back
			Restocked: !r.Tracked,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	total := subtotal
	if in.FreeGift && cfg.FreeGift.Qualifies(subtotal) {
		gift := cfg.FreeGift
		name := gift.Name
		if name == "" {
			name = "Free gift"
		}
		items = append(items, LineItem{
			ProductID: gift.ProductID,
			VariantID: gift.VariantID,
			Name:      name,
			Quantity:  1,
			Price:     gift.Price,
			LineTotal: gift.Price,
			Gift:      true,
		})
		total = total.Add(gift.Price)
	}

	customer, err := f.customers.FindByPhone(ctx, in.Phone)
	if err != nil {
		f.rollback(ctx, reserved)
		return nil, err
	}

	id, err := f.seq.NextID(ctx, sequence.Orders)
	if err != nil {
		f.rollback(ctx, reserved)
		return nil, err
	}

	now := f.now().UTC()
	o := Order{
		ID:            id,
		CustomerName:  in.CustomerName,
		Phone:         in.Phone,
		Address:       in.Address,
		Items:         items,
		Subtotal:      subtotal,
		Total:         total,
		Status:        StatusPending,
		PaymentMethod: in.PaymentMethod,
		Notes:         strings.TrimSpace(in.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if customer != nil {
		cid := customer.ID
		o.CustomerID = &cid
	}

	if err := f.store.InsertOrder(ctx, o); err != nil {
		f.rollback(ctx, reserved)
		return nil, core.Storage("insert order", err)
	}
	metrics.OrdersPlaced.WithLabelValues(string(o.PaymentMethod)).Inc()

	if o.PaymentMethod == PaymentAccount && customer != nil {
		if err := f.creditOrder(ctx, &o, customer.ID); err != nil {
			// Order stands; addedToUdhar=false marks it for ConvertToCredit
			log.Printf("[Orders] order %d placed but udhar credit failed: %v", o.ID, err)
		}
	}
	return &o, nil
}

func (f *Fulfillment) rollback(ctx context.Context, reserved []inventory.Reservation) {
	for _, r := range reserved {
		if !r.Tracked {
			continue
		}
		if err := f.reserver.Release(ctx, r.ProductID, r.Quantity); err != nil {
			log.Printf("[Orders] rollback of product %d qty %d failed: %v", r.ProductID, r.Quantity, err)
			continue
		}
		metrics.StockReleased.Add(float64(r.Quantity))
	}
}

func rejectionCode(err error) string {
	var rej *core.RejectionError
	if errors.As(err, &rej) {
		return rej.Code
	}
	var conflict *core.ConflictError
	if errors.As(err, &conflict) {
		return conflict.Code
	}
	switch {
	case errors.Is(err, core.ErrValidation):
		return "validation"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	}
	return "storage"
}

// creditOrder posts the app_order credit and flags the order.
func (f *Fulfillment) creditOrder(ctx context.Context, o *Order, customerID int64) error {
	orderID := o.ID
	entry, err := f.ledger.PostForCustomer(ctx, ledger.PostInput{
		CustomerID: customerID,
		Kind:       ledger.KindCredit,
		Amount:     o.Total,
		Note:       "App order #" + itoa(o.ID),
		Date:       core.DateOf(o.CreatedAt),
		Source:     ledger.SourceAppOrder,
		OrderID:    &orderID,
		Items:      o.Snapshot(),
	})
	if err != nil {
		return err
	}
	o.AddedToUdhar = true
	o.CreditEntryID = &entry.ID
	o.CustomerID = &customerID
	o.UpdatedAt = f.now().UTC()
	if err := f.store.UpdateOrder(ctx, *o); err != nil {
		return core.Storage("update order", err)
	}
	return nil
}

// =============================================================================
// STATUS TRANSITIONS
// =============================================================================

// Get returns an order or NotFound.
func (f *Fulfillment) Get(ctx context.Context, id int64) (*Order, error) {
	o, err := f.store.GetOrder(ctx, id)
	if err != nil {
		return nil, core.Storage("get order", err)
	}
	if o == nil {
		return nil, core.NotFound("order", id)
	}
	return o, nil
}

// List returns orders matching filter.
func (f *Fulfillment) List(ctx context.Context, filter Filter) ([]Order, error) {
	list, err := f.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, core.Storage("list orders", err)
	}
	return list, nil
}

// UpdateStatus moves an order to status. Entering cancelled returns every
// regular line to stock exactly once.
func (f *Fulfillment) UpdateStatus(ctx context.Context, id int64, status Status) (*Order, error) {
	if !status.Valid() {
		return nil, core.Invalid("status", "unknown status "+string(status))
	}
	o, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := f.now().UTC()
	var restockErr error
	if status == StatusCancelled && o.Status != StatusCancelled && !o.StockRestored {
		claimed, err := f.store.ClaimRestock(ctx, o.ID)
		if err != nil {
			return nil, core.Storage("claim restock", err)
		}
		if !claimed {
			// A concurrent cancel owns the restock and the write.
			return f.Get(ctx, id)
		}
		o.StockRestored = true
		if restockErr = f.restock(ctx, o); restockErr != nil {
			// Release the claim so a retry restocks the remaining lines
			o.StockRestored = false
		}
	}

	if restockErr == nil {
		if status == StatusCancelled && o.Status != StatusCancelled {
			o.CancelledAt = &now
		}
		if status == StatusDelivered && o.Status != StatusDelivered {
			o.DeliveredAt = &now
			log.Printf("[Orders] order %d delivered to %s", o.ID, o.Phone)
		}
		o.Status = status
	}
	o.UpdatedAt = now

	// Persist restock progress even when a release failed part-way
	if err := f.store.UpdateOrder(ctx, *o); err != nil {
		return nil, core.Storage("update order", err)
	}
	if restockErr != nil {
		return nil, restockErr
	}
	return o, nil
}

// Cancel is UpdateStatus(cancelled).
func (f *Fulfillment) Cancel(ctx context.Context, id int64) (*Order, error) {
	return f.UpdateStatus(ctx, id, StatusCancelled)
}

func (f *Fulfillment) restock(ctx context.Context, o *Order) error {
	for i := range o.Items {
		li := &o.Items[i]
		if li.Gift || li.Restocked {
			continue
		}
		if err := f.reserver.Release(ctx, li.ProductID, li.Quantity); err != nil {
			return err
		}
		li.Restocked = true
		metrics.StockReleased.Add(float64(li.Quantity))
	}
	return nil
}

// =============================================================================
// LEDGER LINKS
// =============================================================================

// MarkPaid posts an order_payment entry for the order total.
func (f *Fulfillment) MarkPaid(ctx context.Context, id int64) (*Order, error) {
	o, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Paid {
		return nil, &core.ConflictError{Code: core.CodeAlreadyPaid, Reason: "order already marked paid"}
	}
	if o.Status == StatusCancelled {
		return nil, core.Reject(core.CodeOrderCancelled, "order %d is cancelled", o.ID)
	}
	c, err := f.resolveCustomer(ctx, o, 0)
	if err != nil {
		return nil, err
	}

	orderID := o.ID
	entry, err := f.ledger.PostForCustomer(ctx, ledger.PostInput{
		CustomerID: c.ID,
		Kind:       ledger.KindPayment,
		Amount:     o.Total,
		Note:       "Payment for order #" + itoa(o.ID),
		Source:     ledger.SourceOrderPayment,
		OrderID:    &orderID,
	})
	if err != nil {
		if errors.Is(err, core.ErrConflict) {
			return nil, &core.ConflictError{Code: core.CodeAlreadyPaid, Reason: "order already marked paid"}
		}
		return nil, err
	}

	now := f.now().UTC()
	cid := c.ID
	o.Paid = true
	o.PaidAt = &now
	o.PaidEntryID = &entry.ID
	o.CustomerID = &cid
	o.UpdatedAt = now
	if err := f.store.UpdateOrder(ctx, *o); err != nil {
		return nil, core.Storage("update order", err)
	}
	return o, nil
}

// ConvertToCredit puts an order that is not on the ledger yet onto the
// customer's udhar. customerID overrides the phone lookup when non-zero.
func (f *Fulfillment) ConvertToCredit(ctx context.Context, id int64, customerID int64) (*Order, error) {
	o, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.AddedToUdhar {
		return nil, &core.ConflictError{Code: core.CodeAlreadyConverted, Reason: "order already added to udhar"}
	}
	if o.Status == StatusCancelled {
		return nil, core.Reject(core.CodeOrderCancelled, "order %d is cancelled", o.ID)
	}
	c, err := f.resolveCustomer(ctx, o, customerID)
	if err != nil {
		return nil, err
	}
	if err := f.creditOrder(ctx, o, c.ID); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return nil, &core.ConflictError{Code: core.CodeAlreadyConverted, Reason: "order already added to udhar"}
		}
		return nil, err
	}
	return o, nil
}

// resolveCustomer finds the account for an order: explicit id, then the
// order's customer id, then its phone.
func (f *Fulfillment) resolveCustomer(ctx context.Context, o *Order, explicit int64) (*customers.Customer, error) {
	var ids []int64
	if explicit > 0 {
		ids = append(ids, explicit)
	}
	if o.CustomerID != nil {
		ids = append(ids, *o.CustomerID)
	}
	for _, cid := range ids {
		c, err := f.customers.FindByID(ctx, cid)
		if err != nil {
			return nil, err
		}
		if c != nil {
			return c, nil
		}
	}
	if explicit == 0 {
		c, err := f.customers.FindByPhone(ctx, o.Phone)
		if err != nil {
			return nil, err
		}
		if c != nil {
			return c, nil
		}
	}
	return nil, core.Reject(core.CodeNoCustomer, "no customer account matches order %d", o.ID)
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
