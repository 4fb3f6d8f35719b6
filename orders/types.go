package orders

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/kirana-ledger/customers"
	"github.com/warp/kirana-ledger/ledger"
)

// =============================================================================
// STATUS & PAYMENT METHOD
// =============================================================================

type Status string

const (
	StatusPending        Status = "pending"
	StatusPreparing      Status = "preparing"
	StatusOutForDelivery Status = "out-for-delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusOutForDelivery, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCOD     PaymentMethod = "cod"
	PaymentAccount PaymentMethod = "account"
	PaymentUPI     PaymentMethod = "upi"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentAccount || m == PaymentUPI
}

// =============================================================================
// ORDER
// =============================================================================

// LineItem carries the server-computed unit price. Client prices never land here.
type LineItem struct {
	ProductID int64           `json:"productId"`
	VariantID string          `json:"variantId,omitempty"`
	Name      string          `json:"name"`
	Label     string          `json:"label,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	Gift      bool            `json:"gift,omitempty"`
	// Restocked is set once this line's quantity has been returned to stock.
	Restocked bool `json:"restocked,omitempty"`
}

type Order struct {
	ID            int64             `json:"id"`
	CustomerName  string            `json:"customerName"`
	Phone         string            `json:"phone"`
	CustomerID    *int64            `json:"customerId"`
	Address       customers.Address `json:"address"`
	Items         []LineItem        `json:"items"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	Total         decimal.Decimal   `json:"total"`
	Status        Status            `json:"status"`
	PaymentMethod PaymentMethod     `json:"paymentMethod"`
	Notes         string            `json:"notes,omitempty"`

	AddedToUdhar  bool   `json:"addedToUdhar"`
	CreditEntryID *int64 `json:"creditEntryId,omitempty"`
	StockRestored bool   `json:"stockRestored"`
	Paid          bool   `json:"paid"`
	PaidEntryID   *int64 `json:"paidEntryId,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
}

// Snapshot returns the ledger item snapshot of the order lines.
func (o *Order) Snapshot() []ledger.Item {
	items := make([]ledger.Item, 0, len(o.Items))
	for _, li := range o.Items {
		name := li.Name
		if li.Label != "" && li.Label != li.Name {
			name += " (" + li.Label + ")"
		}
		items = append(items, ledger.Item{
			ProductID: li.ProductID,
			VariantID: li.VariantID,
			Name:      name,
			Quantity:  decimal.NewFromInt(int64(li.Quantity)),
			Price:     li.Price,
		})
	}
	return items
}

// =============================================================================
// STORE
// =============================================================================

// Filter selects orders. Zero fields are ignored; CustomerID and Phone
// match either (an order belongs to a customer by id or by phone).
type Filter struct {
	CustomerID int64
	Phone      string
	From       time.Time // inclusive
	To         time.Time // exclusive
	Status     Status
}

type Store interface {
	InsertOrder(ctx context.Context, o Order) error
	// GetOrder returns nil when absent.
	GetOrder(ctx context.Context, id int64) (*Order, error)
	UpdateOrder(ctx context.Context, o Order) error
	ListOrders(ctx context.Context, f Filter) ([]Order, error)

	// ClaimRestock sets stockRestored only if it is still false and reports
	// whether this call set it. Exactly one concurrent caller wins.
	ClaimRestock(ctx context.Context, id int64) (bool, error)
}
