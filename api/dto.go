/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Request bodies accepted by the handlers. Responses reuse the domain types
  directly (they already carry JSON tags); only wrappers live here.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Response wrappers

MONEY:
  Amounts are decimal.Decimal, which accepts both JSON numbers and strings
  on input and always renders as a string on output.

VALIDATION:
  Validation is done by the domain services, not in DTOs. DTOs are pure
  data carriers; handlers only parse path/query parameters.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/customers"
	"github.com/warp/kirana-ledger/inventory"
	"github.com/warp/kirana-ledger/ledger"
	"github.com/warp/kirana-ledger/milk"
	"github.com/warp/kirana-ledger/orders"
)

// =============================================================================
// ORDERS
// =============================================================================

// CartItemRequest is one cart line. Price is what the client displayed; the
// server re-prices every line and ignores it.
type CartItemRequest struct {
	ProductID int64            `json:"productId"`
	VariantID string           `json:"variantId,omitempty"`
	Quantity  int              `json:"quantity"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

type PlaceOrderRequest struct {
	CustomerName  string            `json:"customerName"`
	Phone         string            `json:"phone"`
	Address       customers.Address `json:"address"`
	Items         []CartItemRequest `json:"items"`
	PaymentMethod string            `json:"paymentMethod"`
	FreeGift      bool              `json:"freeGift"`
	Notes         string            `json:"notes"`
}

func (req PlaceOrderRequest) toInput() orders.PlaceOrderInput {
	items := make([]orders.CartItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = orders.CartItem{
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
			Quantity:    it.Quantity,
			ClientPrice: it.Price,
		}
	}
	return orders.PlaceOrderInput{
		CustomerName:  req.CustomerName,
		Phone:         req.Phone,
		Address:       req.Address,
		Items:         items,
		PaymentMethod: orders.PaymentMethod(req.PaymentMethod),
		FreeGift:      req.FreeGift,
		Notes:         req.Notes,
	}
}

type UpdateOrderRequest struct {
	Status string `json:"status"`
}

// ConvertToUdharRequest optionally names the customer to charge.
type ConvertToUdharRequest struct {
	CustomerID int64 `json:"customerId,omitempty"`
}

// =============================================================================
// LEDGER
// =============================================================================

type PostEntryRequest struct {
	CustomerID int64           `json:"customerId"`
	Type       string          `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	Note       string          `json:"note"`
	Date       string          `json:"date,omitempty"`
	Items      []ledger.Item   `json:"items,omitempty"`
}

// PatchEntryRequest carries an operator correction. Omitted fields are unchanged.
type PatchEntryRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Note   *string          `json:"note,omitempty"`
	Date   *core.Date       `json:"date,omitempty"`
}

type LedgerResponse struct {
	CustomerID int64          `json:"customerId"`
	Entries    []ledger.Entry `json:"entries"`
	Balance    ledger.Balance `json:"balance"`
}

// =============================================================================
// CUSTOMERS & CATALOG
// =============================================================================

type RegisterCustomerRequest struct {
	Phone       string            `json:"phone"`
	Name        string            `json:"name"`
	Address     customers.Address `json:"address"`
	CreditLimit decimal.Decimal   `json:"creditLimit"`
	PIN         string            `json:"pin,omitempty"`
}

type VerifyPINRequest struct {
	Phone string `json:"phone"`
	PIN   string `json:"pin"`
}

// ProductResponse adds the derived stock label to a product.
type ProductResponse struct {
	inventory.Product
	StockStatus string `json:"stockStatus"`
}

// =============================================================================
// MILK
// =============================================================================

type SubscribeRequest struct {
	CustomerID    int64            `json:"customerId"`
	DefaultQty    decimal.Decimal  `json:"defaultQty"`
	DefaultItems  []milk.Item      `json:"defaultItems,omitempty"`
	PricePerLitre *decimal.Decimal `json:"pricePerLitre,omitempty"`
}

type PauseRequest struct {
	From string `json:"from"`
	To   string `json:"to,omitempty"`
}

type DeliveryRequest struct {
	CustomerID int64            `json:"customerId"`
	Date       string           `json:"date"`
	Qty        decimal.Decimal  `json:"qty"`
	Items      []milk.Item      `json:"items,omitempty"`
	Price      *decimal.Decimal `json:"price,omitempty"`
}

type MilkPaymentRequest struct {
	CustomerID int64           `json:"customerId"`
	Month      string          `json:"month"`
	Amount     decimal.Decimal `json:"amount"`
	Note       string          `json:"note"`
}

type AutoLogResponse struct {
	Date    core.Date `json:"date"`
	Created int       `json:"created"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
