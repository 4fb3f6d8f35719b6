package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/inventory"
	"github.com/warp/kirana-ledger/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func intPtr(n int) *int { return &n }

func tiers(pairs ...any) []inventory.PriceTier {
	var out []inventory.PriceTier
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, inventory.PriceTier{
			MinQty: pairs[i].(int),
			Price:  core.MustDecimal(pairs[i+1].(string)),
		})
	}
	return out
}

func seedProduct(t *testing.T, store *memory.Memory, p inventory.Product) {
	t.Helper()
	require.NoError(t, store.SaveProduct(context.Background(), p))
}

// =============================================================================
// PRICE RESOLUTION
// =============================================================================

func TestResolveUnitPrice_TierSelection(t *testing.T) {
	// GIVEN: 1+ at 80, 5+ at 70
	tt := tiers(1, "80", 5, "70")

	cases := []struct {
		qty  int
		want string
	}{
		{1, "80"},
		{4, "80"},
		{5, "70"},
		{100, "70"},
	}
	for _, tc := range cases {
		// WHEN: Resolving the unit price
		price, ok := inventory.ResolveUnitPrice(tt, tc.qty)

		// THEN: The largest tier not exceeding qty wins
		require.True(t, ok)
		assert.True(t, price.Equal(core.MustDecimal(tc.want)), "qty %d: got %s", tc.qty, price)
	}
}

func TestResolveUnitPrice_UnsortedAndBelowFirstTier(t *testing.T) {
	// GIVEN: Tiers out of order, smallest minQty above 1
	tt := tiers(10, "45", 3, "50")

	// WHEN/THEN: Below the first tier the first tier's price applies
	price, ok := inventory.ResolveUnitPrice(tt, 1)
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromInt(50)))

	price, _ = inventory.ResolveUnitPrice(tt, 12)
	assert.True(t, price.Equal(decimal.NewFromInt(45)))

	_, ok = inventory.ResolveUnitPrice(nil, 1)
	assert.False(t, ok)
}

func TestStockStatus(t *testing.T) {
	assert.Equal(t, inventory.InStock, inventory.StockStatus(nil, 5))
	assert.Equal(t, inventory.OutOfStock, inventory.StockStatus(intPtr(0), 5))
	assert.Equal(t, inventory.LowStock, inventory.StockStatus(intPtr(5), 5))
	assert.Equal(t, inventory.InStock, inventory.StockStatus(intPtr(6), 5))
}

// =============================================================================
// RESERVATION
// =============================================================================

func TestReserve_RejectsUnavailableProducts(t *testing.T) {
	store := memory.New()
	seedProduct(t, store, inventory.Product{ID: 1, Name: "Atta", Disabled: true, Tiers: tiers(1, "50")})
	seedProduct(t, store, inventory.Product{ID: 2, Name: "Dal", Tiers: tiers(1, "90"), StockQuantity: intPtr(0)})
	seedProduct(t, store, inventory.Product{ID: 3, Name: "Oil", Tiers: tiers(1, "150"), StockQuantity: intPtr(2)})
	r := inventory.NewReserver(store)
	ctx := context.Background()

	// Disabled
	_, err := r.Reserve(ctx, 1, "", 1)
	var rej *core.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, core.CodeUnavailable, rej.Code)

	// Out of stock
	_, err = r.Reserve(ctx, 2, "", 1)
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, core.CodeOutOfStock, rej.Code)

	// Insufficient stock reports what is available
	_, err = r.Reserve(ctx, 3, "", 3)
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, core.CodeInsufficientStock, rej.Code)
	require.NotNil(t, rej.Available)
	assert.Equal(t, 2, *rej.Available)

	// Unknown product
	_, err = r.Reserve(ctx, 99, "", 1)
	assert.True(t, core.IsNotFound(err))
}

func TestReserve_VariantPricingAndRelease(t *testing.T) {
	// GIVEN: A product with two variants and tracked stock
	store := memory.New()
	seedProduct(t, store, inventory.Product{
		ID:   1,
		Name: "Milk",
		Variants: []inventory.Variant{
			{ID: "500ml", Label: "500 ml", Tiers: tiers(1, "30"), InStock: true},
			{ID: "1l", Label: "1 L", Tiers: tiers(1, "60", 6, "56"), InStock: true},
		},
		StockQuantity: intPtr(10),
	})
	r := inventory.NewReserver(store)
	ctx := context.Background()

	// WHEN: Reserving 6 of the 1 L variant
	res, err := r.Reserve(ctx, 1, "1l", 6)

	// THEN: The variant's tier price applies and stock drops
	require.NoError(t, err)
	assert.True(t, res.Tracked)
	assert.Equal(t, "1 L", res.Label)
	assert.True(t, res.UnitPrice.Equal(decimal.NewFromInt(56)))

	p, _ := store.GetProduct(ctx, 1)
	assert.Equal(t, 4, *p.StockQuantity)

	// WHEN: Releasing
	require.NoError(t, r.Release(ctx, 1, 6))

	// THEN: Stock is back
	p, _ = store.GetProduct(ctx, 1)
	assert.Equal(t, 10, *p.StockQuantity)

	// Unknown variant is a validation error
	_, err = r.Reserve(ctx, 1, "2l", 1)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestReserve_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	// GIVEN: 5 units in stock and 20 concurrent buyers of one unit each
	store := memory.New()
	seedProduct(t, store, inventory.Product{ID: 1, Name: "Paneer", Tiers: tiers(1, "90"), StockQuantity: intPtr(5)})
	r := inventory.NewReserver(store)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Reserve(ctx, 1, "", 1)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			// Losers see either a rejection or a retryable conflict
			if !errors.Is(err, core.ErrRejected) && !errors.Is(err, core.ErrConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// THEN: Exactly the available units were sold and stock never went negative
	assert.Equal(t, 5, succeeded)
	p, _ := store.GetProduct(ctx, 1)
	assert.Equal(t, 0, *p.StockQuantity)
}

func TestReserve_UntrackedProductIsUnlimited(t *testing.T) {
	store := memory.New()
	seedProduct(t, store, inventory.Product{ID: 1, Name: "Bread", Tiers: tiers(1, "40")})
	r := inventory.NewReserver(store)

	res, err := r.Reserve(context.Background(), 1, "", 500)

	require.NoError(t, err)
	assert.False(t, res.Tracked)
}

// =============================================================================
// CATALOG ADMINISTRATION
// =============================================================================

func TestProductValidate(t *testing.T) {
	tests := []struct {
		name    string
		product inventory.Product
		field   string
	}{
		{"missing name", inventory.Product{Name: "  "}, "name"},
		{"negative stock", inventory.Product{Name: "Atta", StockQuantity: intPtr(-5)}, "stockQuantity"},
		{"negative threshold", inventory.Product{Name: "Atta", LowStockThreshold: -1}, "lowStockThreshold"},
		{"negative tier price", inventory.Product{Name: "Atta", Tiers: tiers(1, "-2")}, "tiers"},
		{"negative variant tier", inventory.Product{Name: "Atta", Variants: []inventory.Variant{{ID: "5kg", Tiers: tiers(-1, "200")}}}, "tiers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.product.Validate()

			var invalid *core.ValidationError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.field, invalid.Field)
		})
	}

	ok := inventory.Product{Name: "Atta", StockQuantity: intPtr(0), Tiers: tiers(1, "45")}
	assert.NoError(t, ok.Validate())
}

func TestSaveProduct_RejectsNegativeStockAndDuplicateBarcode(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	// WHEN: Saving a product with negative stock
	err := inventory.SaveProduct(ctx, store, inventory.Product{ID: 1, Name: "Atta", StockQuantity: intPtr(-5)})

	// THEN: Invalid, and nothing is stored
	assert.ErrorIs(t, err, core.ErrValidation)
	p, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, p)

	// GIVEN: A product with a barcode
	require.NoError(t, inventory.SaveProduct(ctx, store, inventory.Product{ID: 1, Name: "Atta", Barcode: "X1"}))

	// WHEN: Another product reuses it
	err = inventory.SaveProduct(ctx, store, inventory.Product{ID: 2, Name: "Maida", Barcode: "X1"})

	// THEN: A business rejection, not a storage failure
	var rej *core.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, core.CodeDuplicateBarcode, rej.Code)
	assert.False(t, errors.Is(err, core.ErrStorage))

	// Re-saving the same product keeps its own barcode
	assert.NoError(t, inventory.SaveProduct(ctx, store, inventory.Product{ID: 1, Name: "Atta 5kg", Barcode: "X1"}))
}
