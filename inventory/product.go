/*
Package inventory models the catalog data the engine needs at checkout and
the atomic stock reservation performed against it.

KEY CONCEPTS:
  - Product: catalog item with optional variants and an optional tracked
    stock quantity (nil = untracked / unlimited).
  - Variant: a sellable unit of a product with its own price tiers.
  - PriceTier: unit price that applies from MinQty upwards.
  - StockStatus: pure function of quantity vs. low-stock threshold.

PRICE RESOLUTION:
  Tiers are sorted by MinQty ascending; the unit price is the price of the
  highest MinQty <= requested quantity. If no tier qualifies, the lowest
  tier's price is used.

    tiers [{1: 80}, {5: 70}]
    qty 4   -> 80
    qty 5   -> 70
    qty 100 -> 70

SEE ALSO:
  - reserve.go: Reserve/Release with conditional decrement
*/
package inventory

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/kirana-ledger/core"
)

// =============================================================================
// CATALOG TYPES
// =============================================================================

type PriceTier struct {
	MinQty int             `json:"minQty"`
	Price  decimal.Decimal `json:"price"`
}

type Variant struct {
	ID      string      `json:"id"`
	Label   string      `json:"label"`
	Tiers   []PriceTier `json:"tiers"`
	InStock bool        `json:"inStock"`
}

type Product struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Barcode  string `json:"barcode,omitempty"`
	Disabled bool   `json:"disabled"`

	// Tiers price the product when it has no variants or no variant is requested.
	Tiers    []PriceTier `json:"tiers,omitempty"`
	Variants []Variant   `json:"variants,omitempty"`

	// StockQuantity nil means untracked (unlimited).
	StockQuantity     *int `json:"stockQuantity"`
	LowStockThreshold int  `json:"lowStockThreshold"`
}

// StockStatus values.
const (
	OutOfStock = "Out of Stock"
	LowStock   = "Low Stock"
	InStock    = "In Stock"
)

// StockStatus derives the display status from quantity and threshold.
func StockStatus(quantity *int, threshold int) string {
	switch {
	case quantity == nil:
		return InStock
	case *quantity <= 0:
		return OutOfStock
	case *quantity <= threshold:
		return LowStock
	default:
		return InStock
	}
}

// StockStatus returns the product's current stock status.
func (p *Product) StockStatus() string {
	return StockStatus(p.StockQuantity, p.LowStockThreshold)
}

// Validate checks the catalog invariants: a name, non-negative stock and
// threshold, and non-negative tier prices.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return core.Invalid("name", "is required")
	}
	if p.StockQuantity != nil && *p.StockQuantity < 0 {
		return core.Invalid("stockQuantity", "must not be negative")
	}
	if p.LowStockThreshold < 0 {
		return core.Invalid("lowStockThreshold", "must not be negative")
	}
	tiers := append([]PriceTier(nil), p.Tiers...)
	for _, v := range p.Variants {
		tiers = append(tiers, v.Tiers...)
	}
	for _, t := range tiers {
		if t.MinQty < 0 || t.Price.IsNegative() {
			return core.Invalid("tiers", "minQty and price must not be negative")
		}
	}
	return nil
}

// Tracked reports whether stock is counted for this product.
func (p *Product) Tracked() bool { return p.StockQuantity != nil }

// FindVariant returns the variant with id. An empty id selects the product's
// own tiers as an implicit default variant.
func (p *Product) FindVariant(variantID string) (Variant, bool) {
	if variantID == "" {
		if len(p.Tiers) > 0 {
			return Variant{Label: p.Name, Tiers: p.Tiers, InStock: true}, true
		}
		if len(p.Variants) == 1 {
			return p.Variants[0], true
		}
		return Variant{}, false
	}
	for _, v := range p.Variants {
		if v.ID == variantID {
			return v, true
		}
	}
	return Variant{}, false
}

// =============================================================================
// PRICE RESOLUTION
// =============================================================================

// ResolveUnitPrice selects the tier price for quantity. ok is false when
// there are no tiers at all.
func ResolveUnitPrice(tiers []PriceTier, quantity int) (price decimal.Decimal, ok bool) {
	if len(tiers) == 0 {
		return decimal.Zero, false
	}
	sorted := make([]PriceTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinQty < sorted[j].MinQty })

	price = sorted[0].Price
	for _, t := range sorted {
		if t.MinQty > quantity {
			break
		}
		price = t.Price
	}
	return price, true
}

// =============================================================================
// CATALOG STORE
// =============================================================================

// Catalog is the contract the catalog service provides to the engine.
type Catalog interface {
	// GetProduct returns nil when the product does not exist.
	GetProduct(ctx context.Context, id int64) (*Product, error)

	// DecrementStockIfAvailable subtracts quantity only if, at the moment of
	// the write, stock is tracked and >= quantity. Returns whether it applied.
	DecrementStockIfAvailable(ctx context.Context, id int64, quantity int) (bool, error)

	// IncrementStock adds quantity to tracked stock. Untracked products are untouched.
	IncrementStock(ctx context.Context, id int64, quantity int) error

	// SaveProduct inserts or replaces a product (catalog administration).
	SaveProduct(ctx context.Context, p Product) error
}

// SaveProduct validates p and stores it. A barcode already used by another
// product is rejected.
func SaveProduct(ctx context.Context, catalog Catalog, p Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	err := catalog.SaveProduct(ctx, p)
	if errors.Is(err, core.ErrDuplicate) {
		return core.Reject(core.CodeDuplicateBarcode, "barcode %s is already used by another product", p.Barcode)
	}
	if err != nil {
		return core.Storage("save product", err)
	}
	return nil
}
