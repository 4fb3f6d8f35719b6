package inventory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/kirana-ledger/core"
)

// Reservation is a committed stock decrement (or an untracked pass-through)
// together with the server-resolved unit price.
type Reservation struct {
	ProductID   int64
	VariantID   string
	ProductName string
	Label       string
	Quantity    int
	UnitPrice   decimal.Decimal
	// Tracked is false when the product has no stock count; nothing to release.
	Tracked bool
}

// Reserver performs reserve/release against the catalog.
type Reserver struct {
	catalog Catalog
}

func NewReserver(catalog Catalog) *Reserver {
	return &Reserver{catalog: catalog}
}

// Reserve checks availability, atomically decrements tracked stock and
// resolves the unit price.
//
// The decrement is conditional on stock still being >= quantity at write
// time, so two concurrent checkouts for the last unit cannot both succeed:
// the loser receives a retryable ConflictError.
func (r *Reserver) Reserve(ctx context.Context, productID int64, variantID string, quantity int) (Reservation, error) {
	if quantity <= 0 {
		return Reservation{}, core.Invalid("quantity", "must be at least 1")
	}

	p, err := r.catalog.GetProduct(ctx, productID)
	if err != nil {
		return Reservation{}, core.Storage("get product", err)
	}
	if p == nil {
		return Reservation{}, core.NotFound("product", productID)
	}
	if p.Disabled {
		return Reservation{}, core.Reject(core.CodeUnavailable, "%s is unavailable", p.Name)
	}

	variant, ok := p.FindVariant(variantID)
	if !ok {
		return Reservation{}, core.Invalid("variantId", "unknown variant "+variantID+" for "+p.Name)
	}
	if !variant.InStock {
		return Reservation{}, core.Reject(core.CodeOutOfStock, "%s (%s) is out of stock", p.Name, variant.Label)
	}
	price, ok := ResolveUnitPrice(variant.Tiers, quantity)
	if !ok {
		return Reservation{}, core.Reject(core.CodeUnavailable, "%s has no price configured", p.Name)
	}

	res := Reservation{
		ProductID:   p.ID,
		VariantID:   variant.ID,
		ProductName: p.Name,
		Label:       variant.Label,
		Quantity:    quantity,
		UnitPrice:   price,
	}

	if !p.Tracked() {
		return res, nil
	}

	available := *p.StockQuantity
	if available <= 0 {
		return Reservation{}, core.Reject(core.CodeOutOfStock, "%s is out of stock", p.Name)
	}
	if available < quantity {
		return Reservation{}, &core.RejectionError{
			Code:      core.CodeInsufficientStock,
			Reason:    "insufficient stock for " + p.Name,
			Available: &available,
		}
	}

	applied, err := r.catalog.DecrementStockIfAvailable(ctx, p.ID, quantity)
	if err != nil {
		return Reservation{}, core.Storage("decrement stock", err)
	}
	if !applied {
		return Reservation{}, &core.ConflictError{
			Code:      core.CodeStockChanged,
			Reason:    "stock for " + p.Name + " changed during checkout, retry",
			Retryable: true,
		}
	}
	res.Tracked = true
	return res, nil
}

// Release returns quantity to tracked stock. It only ever increments.
func (r *Reserver) Release(ctx context.Context, productID int64, quantity int) error {
	if quantity <= 0 {
		return nil
	}
	if err := r.catalog.IncrementStock(ctx, productID, quantity); err != nil {
		return core.Storage("increment stock", err)
	}
	return nil
}
