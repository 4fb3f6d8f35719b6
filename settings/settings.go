// Package settings exposes store-wide configuration the engine reads at
// request time: the default milk price and the free-gift promotion.
//
// Values saved by an operator win over the configured defaults.
package settings

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/kirana-ledger/core"
)

// FreeGift configures the promotional item added to qualifying orders.
type FreeGift struct {
	Enabled   bool            `json:"enabled"`
	Threshold decimal.Decimal `json:"threshold"`
	ProductID int64           `json:"productId"`
	VariantID string          `json:"variantId,omitempty"`
	Name      string          `json:"name,omitempty"`
	// Price charged for the gift (zero for a free item).
	Price decimal.Decimal `json:"price"`
}

// Qualifies reports whether an order subtotal earns the gift.
func (g FreeGift) Qualifies(subtotal decimal.Decimal) bool {
	return g.Enabled && g.ProductID > 0 && subtotal.GreaterThanOrEqual(g.Threshold)
}

type Settings struct {
	MilkPricePerLitre decimal.Decimal `json:"milkPricePerLitre"`
	FreeGift          FreeGift        `json:"freeGift"`
}

// Store persists operator-edited settings.
type Store interface {
	// GetSettings returns nil when nothing has been saved yet.
	GetSettings(ctx context.Context) (*Settings, error)
	SaveSettings(ctx context.Context, s Settings) error
}

// Provider resolves the current settings.
type Provider struct {
	store    Store
	defaults Settings
}

func NewProvider(store Store, defaults Settings) *Provider {
	return &Provider{store: store, defaults: defaults}
}

// Current returns saved settings, falling back to defaults.
func (p *Provider) Current(ctx context.Context) (Settings, error) {
	s, err := p.store.GetSettings(ctx)
	if err != nil {
		return Settings{}, core.Storage("get settings", err)
	}
	if s == nil {
		return p.defaults, nil
	}
	return *s, nil
}

// Save validates and stores settings.
func (p *Provider) Save(ctx context.Context, s Settings) error {
	if s.MilkPricePerLitre.IsNegative() {
		return core.Invalid("milkPricePerLitre", "must not be negative")
	}
	if s.FreeGift.Price.IsNegative() || s.FreeGift.Threshold.IsNegative() {
		return core.Invalid("freeGift", "price and threshold must not be negative")
	}
	if err := p.store.SaveSettings(ctx, s); err != nil {
		return core.Storage("save settings", err)
	}
	return nil
}
