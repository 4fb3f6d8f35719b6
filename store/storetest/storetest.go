/*
Package storetest is the shared contract suite for store backends.

PURPOSE:
  Every backend (memory, sqlite, postgres) implements the same seven store
  interfaces. Run exercises the behaviour the services rely on, so a
  backend passes the suite or the services break on it:
  - missing records read as nil, never as an error
  - uniqueness violations surface as core.ErrDuplicate
  - conditional stock decrement never goes below zero
  - listings are ordered

USAGE:
  func TestContract(t *testing.T) {
      storetest.Run(t, func(t *testing.T) storetest.Backend {
          return memory.New()
      })
  }
*/
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/customers"
	"github.com/warp/kirana-ledger/inventory"
	"github.com/warp/kirana-ledger/ledger"
	"github.com/warp/kirana-ledger/milk"
	"github.com/warp/kirana-ledger/orders"
	"github.com/warp/kirana-ledger/sequence"
	"github.com/warp/kirana-ledger/settings"
)

// Backend is everything a complete store implements.
type Backend interface {
	sequence.CounterStore
	customers.Store
	inventory.Catalog
	ledger.Store
	orders.Store
	milk.Store
	settings.Store
}

// Factory returns an empty backend for one subtest.
type Factory func(t *testing.T) Backend

// Run executes the contract suite against backends produced by open.
func Run(t *testing.T, open Factory) {
	t.Run("Counters", func(t *testing.T) { testCounters(t, open(t)) })
	t.Run("Customers", func(t *testing.T) { testCustomers(t, open(t)) })
	t.Run("HardDelete", func(t *testing.T) { testHardDelete(t, open(t)) })
	t.Run("Catalog", func(t *testing.T) { testCatalog(t, open(t)) })
	t.Run("LedgerEntries", func(t *testing.T) { testLedgerEntries(t, open(t)) })
	t.Run("LedgerUniqueness", func(t *testing.T) { testLedgerUniqueness(t, open(t)) })
	t.Run("LegacyRecords", func(t *testing.T) { testLegacyRecords(t, open(t)) })
	t.Run("Orders", func(t *testing.T) { testOrders(t, open(t)) })
	t.Run("MilkSubscriptions", func(t *testing.T) { testMilkSubscriptions(t, open(t)) })
	t.Run("MilkLogs", func(t *testing.T) { testMilkLogs(t, open(t)) })
	t.Run("MilkPayments", func(t *testing.T) { testMilkPayments(t, open(t)) })
	t.Run("Settings", func(t *testing.T) { testSettings(t, open(t)) })
}

// =============================================================================
// FIXTURES
// =============================================================================

// base is a fixed timestamp at second precision so every backend round-trips it.
var base = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return core.MustDecimal(s) }

func ptr[T any](v T) *T { return &v }

func customer(id int64, phone string) customers.Customer {
	return customers.Customer{
		ID:          id,
		Phone:       phone,
		Name:        "Customer",
		Address:     customers.Address{Line1: "12 Market Road", Pincode: "560001"},
		CreditLimit: d("2000"),
		State:       customers.StateActive,
		CreatedAt:   base,
	}
}

func entry(id, customerID int64, kind ledger.Kind, amount string, date core.Date) ledger.Entry {
	return ledger.Entry{
		ID:         id,
		CustomerID: customerID,
		Kind:       kind,
		Amount:     d(amount),
		Date:       date,
		CreatedAt:  base.Add(time.Duration(id) * time.Minute),
		Source:     ledger.SourceManual,
	}
}

// =============================================================================
// COUNTERS & SETTINGS
// =============================================================================

func testCounters(t *testing.T, s Backend) {
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := s.IncrementCounter(ctx, string(sequence.Orders))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	got, err := s.IncrementCounter(ctx, string(sequence.Customers))
	require.NoError(t, err)
	assert.Equal(t, int64(1), got, "counters are independent")
}

func testSettings(t *testing.T, s Backend) {
	ctx := context.Background()

	got, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	want := settings.Settings{
		MilkPricePerLitre: d("64.50"),
		FreeGift:          settings.FreeGift{Enabled: true, Threshold: d("500"), ProductID: 9, Name: "Biscuits", Price: decimal.Zero},
	}
	require.NoError(t, s.SaveSettings(ctx, want))
	want.MilkPricePerLitre = d("66")
	require.NoError(t, s.SaveSettings(ctx, want))

	got, err = s.GetSettings(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.MilkPricePerLitre.Equal(d("66")))
	assert.True(t, got.FreeGift.Enabled)
	assert.Equal(t, int64(9), got.FreeGift.ProductID)
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func testCustomers(t *testing.T, s Backend) {
	ctx := context.Background()

	missing, err := s.GetCustomer(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, missing)

	c := customer(1, "9876543210")
	require.NoError(t, s.InsertCustomer(ctx, c))

	got, err := s.GetCustomer(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "9876543210", got.Phone)
	assert.Equal(t, "12 Market Road", got.Address.Line1)
	assert.True(t, got.CreditLimit.Equal(d("2000")))
	assert.True(t, got.CreatedAt.Equal(base))

	// Active phone is unique
	err = s.InsertCustomer(ctx, customer(2, "9876543210"))
	assert.ErrorIs(t, err, core.ErrDuplicate)

	// Soft delete frees the phone
	deletedAt := base.Add(time.Hour)
	c.State = customers.StateSoftDeleted
	c.DeletedAt = &deletedAt
	require.NoError(t, s.UpdateCustomer(ctx, c))

	byPhone, err := s.FindActiveCustomerByPhone(ctx, "9876543210")
	require.NoError(t, err)
	assert.Nil(t, byPhone)

	require.NoError(t, s.InsertCustomer(ctx, customer(2, "9876543210")))
	byPhone, err = s.FindActiveCustomerByPhone(ctx, "9876543210")
	require.NoError(t, err)
	require.NotNil(t, byPhone)
	assert.Equal(t, int64(2), byPhone.ID)

	// Restoring the first customer would clash with the new one
	c.State = customers.StateActive
	c.DeletedAt = nil
	assert.ErrorIs(t, s.UpdateCustomer(ctx, c), core.ErrDuplicate)

	active, err := s.ListCustomers(ctx, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	all, err := s.ListCustomers(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].ID)
	assert.True(t, all[0].Deleted())
}

func testHardDelete(t *testing.T, s Backend) {
	ctx := context.Background()
	require.NoError(t, s.InsertCustomer(ctx, customer(1, "9000000001")))
	require.NoError(t, s.InsertCustomer(ctx, customer(2, "9000000002")))
	require.NoError(t, s.InsertEntry(ctx, entry(1, 1, ledger.KindCredit, "100", "2024-05-01")))
	require.NoError(t, s.InsertEntry(ctx, entry(2, 2, ledger.KindCredit, "200", "2024-05-01")))
	require.NoError(t, s.InsertSubscription(ctx, milk.Subscription{ID: 1, CustomerID: 1, DefaultQty: d("1"), Status: milk.StatusActive, CreatedAt: base, UpdatedAt: base}))
	require.NoError(t, s.InsertLog(ctx, milk.Log{ID: 1, CustomerID: 1, Date: "2024-05-01", Qty: d("1"), CreatedAt: base}))

	require.NoError(t, s.HardDeleteCustomer(ctx, 1))

	c, err := s.GetCustomer(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, c)
	entries, err := s.ListEntries(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, entries)
	sub, err := s.GetSubscription(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, sub)
	logs, err := s.ListLogs(ctx, 1, "2024-05")
	require.NoError(t, err)
	assert.Empty(t, logs)

	// Other customers are untouched
	entries, err = s.ListEntries(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// Deleting a missing customer is a no-op
	require.NoError(t, s.HardDeleteCustomer(ctx, 99))
}

// =============================================================================
// CATALOG
// =============================================================================

func testCatalog(t *testing.T, s Backend) {
	ctx := context.Background()

	missing, err := s.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, missing)

	p := inventory.Product{
		ID:      1,
		Name:    "Amul Milk",
		Barcode: "8901262010016",
		Tiers:   []inventory.PriceTier{{MinQty: 1, Price: d("30")}},
		Variants: []inventory.Variant{
			{ID: "1l", Label: "1 L", Tiers: []inventory.PriceTier{{MinQty: 1, Price: d("60")}}, InStock: true},
		},
		StockQuantity:     ptr(3),
		LowStockThreshold: 2,
	}
	require.NoError(t, s.SaveProduct(ctx, p))

	got, err := s.GetProduct(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "8901262010016", got.Barcode)
	require.Len(t, got.Variants, 1)
	assert.True(t, got.Variants[0].Tiers[0].Price.Equal(d("60")))
	require.NotNil(t, got.StockQuantity)
	assert.Equal(t, 3, *got.StockQuantity)

	// Conditional decrement
	ok, err := s.DecrementStockIfAvailable(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.DecrementStockIfAvailable(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, ok, "only 1 left")

	require.NoError(t, s.IncrementStock(ctx, 1, 4))
	got, err = s.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, *got.StockQuantity)

	// Barcodes are unique
	err = s.SaveProduct(ctx, inventory.Product{ID: 2, Name: "Copy", Barcode: "8901262010016"})
	assert.ErrorIs(t, err, core.ErrDuplicate)

	// Untracked products never decrement
	require.NoError(t, s.SaveProduct(ctx, inventory.Product{ID: 3, Name: "Loose sugar"}))
	ok, err = s.DecrementStockIfAvailable(ctx, 3, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	// Tracked stock is never stored negative
	err = s.SaveProduct(ctx, inventory.Product{ID: 4, Name: "Broken", StockQuantity: ptr(-5)})
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrDuplicate)
	err = s.SaveProduct(ctx, inventory.Product{ID: 4, Name: "Broken", LowStockThreshold: -1})
	require.Error(t, err)
	missing, err = s.GetProduct(ctx, 4)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// =============================================================================
// LEDGER
// =============================================================================

func testLedgerEntries(t *testing.T, s Backend) {
	ctx := context.Background()

	// Inserted out of date order
	e3 := entry(3, 1, ledger.KindPayment, "50", "2024-05-20")
	e1 := entry(1, 1, ledger.KindCredit, "120.75", "2024-05-02")
	e1.Note = "rice"
	e1.Items = []ledger.Item{{ProductID: 4, Name: "Rice", Quantity: d("2"), Price: d("60.375")}}
	e2 := entry(2, 1, ledger.KindCredit, "30", "2024-06-01")
	for _, e := range []ledger.Entry{e3, e1, e2} {
		require.NoError(t, s.InsertEntry(ctx, e))
	}

	all, err := s.ListEntries(ctx, 1)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{1, 3, 2}, []int64{all[0].ID, all[1].ID, all[2].ID})
	assert.True(t, all[0].Amount.Equal(d("120.75")))
	assert.Equal(t, "rice", all[0].Note)
	require.Len(t, all[0].Items, 1)
	assert.True(t, all[0].Items[0].Price.Equal(d("60.375")))

	may, err := s.ListEntriesBetween(ctx, 1, "2024-05-01", "2024-05-31")
	require.NoError(t, err)
	assert.Len(t, may, 2)

	require.NoError(t, s.UpdateEntry(ctx, 3, d("55"), "corrected", "2024-05-21"))
	got, err := s.GetEntry(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Amount.Equal(d("55")))
	assert.Equal(t, "corrected", got.Note)
	assert.Equal(t, core.Date("2024-05-21"), got.Date)

	deleted, err := s.DeleteEntry(ctx, 3)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = s.DeleteEntry(ctx, 3)
	require.NoError(t, err)
	assert.False(t, deleted)

	missing, err := s.GetEntry(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testLedgerUniqueness(t *testing.T, s Backend) {
	ctx := context.Background()

	credit := entry(1, 1, ledger.KindCredit, "100", "2024-05-01")
	credit.Source = ledger.SourceAppOrder
	credit.OrderID = ptr(int64(7))
	require.NoError(t, s.InsertEntry(ctx, credit))

	// Second credit for the same order
	again := credit
	again.ID = 2
	assert.ErrorIs(t, s.InsertEntry(ctx, again), core.ErrDuplicate)

	// A payment for the same order is a different source
	payment := entry(3, 1, ledger.KindPayment, "100", "2024-05-02")
	payment.Source = ledger.SourceOrderPayment
	payment.OrderID = ptr(int64(7))
	require.NoError(t, s.InsertEntry(ctx, payment))

	// Manual entries may reference an order any number of times
	for id := int64(4); id <= 5; id++ {
		manual := entry(id, 1, ledger.KindCredit, "10", "2024-05-03")
		manual.OrderID = ptr(int64(7))
		require.NoError(t, s.InsertEntry(ctx, manual))
	}

	// One ledger copy per legacy record
	copied := entry(6, 1, ledger.KindCredit, "40", "2024-01-01")
	copied.Source = ledger.SourceLegacyUdhar
	copied.LegacyID = ptr(int64(11))
	require.NoError(t, s.InsertEntry(ctx, copied))
	copied.ID = 7
	assert.ErrorIs(t, s.InsertEntry(ctx, copied), core.ErrDuplicate)
}

func testLegacyRecords(t *testing.T, s Backend) {
	ctx := context.Background()

	records := []ledger.LegacyRecord{
		{ID: 2, CustomerID: 1, Kind: ledger.KindCredit, Amount: d("200"), Date: "2023-12-05", CreatedAt: base},
		{ID: 1, CustomerID: 1, Kind: ledger.KindCredit, Amount: d("100"), Date: "2023-12-01", CreatedAt: base, Note: "old"},
		{ID: 3, CustomerID: 2, Kind: ledger.KindCredit, Amount: d("300"), Date: "2023-12-02", CreatedAt: base},
		{ID: 1, CustomerID: 1, Kind: ledger.KindPayment, Amount: d("50"), Date: "2023-12-10", CreatedAt: base},
	}
	for _, r := range records {
		require.NoError(t, s.InsertLegacy(ctx, r))
	}
	assert.ErrorIs(t, s.InsertLegacy(ctx, records[0]), core.ErrDuplicate)

	credits, err := s.ListLegacy(ctx, ledger.KindCredit, 1)
	require.NoError(t, err)
	require.Len(t, credits, 2)
	assert.Equal(t, int64(1), credits[0].ID)
	assert.Equal(t, "old", credits[0].Note)
	assert.Equal(t, ledger.KindCredit, credits[0].Kind)

	everyone, err := s.ListLegacy(ctx, ledger.KindCredit, 0)
	require.NoError(t, err)
	assert.Len(t, everyone, 3)

	payments, err := s.ListLegacy(ctx, ledger.KindPayment, 1)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, ledger.KindPayment, payments[0].Kind)

	// Copy credit 1 into the ledger
	copied := entry(1, 1, ledger.KindCredit, "100", "2023-12-01")
	copied.Source = ledger.SourceLegacyUdhar
	copied.LegacyID = ptr(int64(1))
	require.NoError(t, s.InsertEntry(ctx, copied))

	migrated, err := s.MigratedLegacyIDs(ctx, ledger.SourceLegacyUdhar, 0)
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{1: true}, migrated)

	migrated, err = s.MigratedLegacyIDs(ctx, ledger.SourceLegacyPayment, 1)
	require.NoError(t, err)
	assert.Empty(t, migrated)

	found, err := s.FindByLegacyID(ctx, ledger.SourceLegacyUdhar, 1)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(1), found.ID)

	none, err := s.FindByLegacyID(ctx, ledger.SourceLegacyPayment, 1)
	require.NoError(t, err)
	assert.Nil(t, none)
}

// =============================================================================
// ORDERS
// =============================================================================

func testOrders(t *testing.T, s Backend) {
	ctx := context.Background()

	missing, err := s.GetOrder(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, missing)

	o := orders.Order{
		ID:           1,
		CustomerName: "Meena",
		Phone:        "9876543210",
		Address:      customers.Address{Line1: "4 Temple Street"},
		Items: []orders.LineItem{
			{ProductID: 1, Name: "Dal", Quantity: 2, Price: d("80"), LineTotal: d("160")},
		},
		Subtotal:      d("160"),
		Total:         d("160"),
		Status:        orders.StatusPending,
		PaymentMethod: orders.PaymentCOD,
		CreatedAt:     base,
		UpdatedAt:     base,
	}
	require.NoError(t, s.InsertOrder(ctx, o))
	assert.ErrorIs(t, s.InsertOrder(ctx, o), core.ErrDuplicate)

	other := o
	other.ID = 2
	other.Phone = "9000000000"
	other.CustomerID = ptr(int64(5))
	other.CreatedAt = base.AddDate(0, 1, 0)
	require.NoError(t, s.InsertOrder(ctx, other))

	// Update carries every mutable field
	paidAt := base.Add(time.Hour)
	o.Status = orders.StatusDelivered
	o.DeliveredAt = &paidAt
	o.Paid = true
	o.PaidAt = &paidAt
	o.PaidEntryID = ptr(int64(9))
	o.CustomerID = ptr(int64(4))
	o.Items[0].Restocked = true
	require.NoError(t, s.UpdateOrder(ctx, o))

	got, err := s.GetOrder(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, orders.StatusDelivered, got.Status)
	assert.True(t, got.Paid)
	require.NotNil(t, got.PaidEntryID)
	assert.Equal(t, int64(9), *got.PaidEntryID)
	require.NotNil(t, got.CustomerID)
	assert.Equal(t, int64(4), *got.CustomerID)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Restocked)
	assert.True(t, got.Total.Equal(d("160")))
	assert.Equal(t, "4 Temple Street", got.Address.Line1)

	// Filters
	byPhone, err := s.ListOrders(ctx, orders.Filter{Phone: "9876543210"})
	require.NoError(t, err)
	require.Len(t, byPhone, 1)

	byEither, err := s.ListOrders(ctx, orders.Filter{CustomerID: 5, Phone: "9876543210"})
	require.NoError(t, err)
	assert.Len(t, byEither, 2)

	may, err := s.ListOrders(ctx, orders.Filter{From: base.AddDate(0, 0, -1), To: base.AddDate(0, 0, 1)})
	require.NoError(t, err)
	require.Len(t, may, 1)
	assert.Equal(t, int64(1), may[0].ID)

	pending, err := s.ListOrders(ctx, orders.Filter{Status: orders.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(2), pending[0].ID)

	// Restock claim succeeds once per order
	claimed, err := s.ClaimRestock(ctx, 2)
	require.NoError(t, err)
	assert.True(t, claimed)
	claimed, err = s.ClaimRestock(ctx, 2)
	require.NoError(t, err)
	assert.False(t, claimed)
	claimed, err = s.ClaimRestock(ctx, 99)
	require.NoError(t, err)
	assert.False(t, claimed)

	got, err = s.GetOrder(ctx, 2)
	require.NoError(t, err)
	assert.True(t, got.StockRestored)
}

// =============================================================================
// MILK
// =============================================================================

func testMilkSubscriptions(t *testing.T, s Backend) {
	ctx := context.Background()

	missing, err := s.GetSubscription(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, missing)

	sub := milk.Subscription{
		ID:            1,
		CustomerID:    1,
		DefaultQty:    d("1.5"),
		DefaultItems:  []milk.Item{{Name: "Curd", Qty: d("1"), Price: d("35")}},
		PricePerLitre: ptr(d("58")),
		Status:        milk.StatusActive,
		CreatedAt:     base,
		UpdatedAt:     base,
	}
	require.NoError(t, s.InsertSubscription(ctx, sub))

	dup := sub
	dup.ID = 2
	assert.ErrorIs(t, s.InsertSubscription(ctx, dup), core.ErrDuplicate)

	from, to := core.Date("2024-05-10"), core.Date("2024-05-12")
	sub.Status = milk.StatusPaused
	sub.PauseFrom = &from
	sub.PauseTo = &to
	require.NoError(t, s.UpdateSubscription(ctx, sub))

	got, err := s.GetSubscription(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, milk.StatusPaused, got.Status)
	require.NotNil(t, got.PauseTo)
	assert.Equal(t, to, *got.PauseTo)
	require.NotNil(t, got.PricePerLitre)
	assert.True(t, got.PricePerLitre.Equal(d("58")))
	require.Len(t, got.DefaultItems, 1)
	assert.True(t, got.DefaultQty.Equal(d("1.5")))

	require.NoError(t, s.InsertSubscription(ctx, milk.Subscription{ID: 3, CustomerID: 2, DefaultQty: d("1"), Status: milk.StatusActive, CreatedAt: base, UpdatedAt: base}))
	all, err := s.ListSubscriptions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testMilkLogs(t *testing.T, s Backend) {
	ctx := context.Background()

	l := milk.Log{ID: 1, CustomerID: 1, Date: "2024-05-03", Qty: d("1"), Price: ptr(d("60")), CreatedAt: base}
	require.NoError(t, s.InsertLog(ctx, l))

	dup := l
	dup.ID = 2
	assert.ErrorIs(t, s.InsertLog(ctx, dup), core.ErrDuplicate)

	// Upsert replaces the day but keeps its identity
	replaced, err := s.UpsertLog(ctx, milk.Log{
		ID: 3, CustomerID: 1, Date: "2024-05-03", Qty: d("2"),
		Items:     []milk.Item{{Name: "Milk", Qty: d("2"), Price: d("60")}},
		CreatedAt: base.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), replaced.ID)
	assert.True(t, replaced.CreatedAt.Equal(base))
	assert.True(t, replaced.Qty.Equal(d("2")))

	inserted, err := s.UpsertLog(ctx, milk.Log{ID: 4, CustomerID: 2, Date: "2024-05-04", Qty: d("1"), CreatedAt: base})
	require.NoError(t, err)
	assert.Equal(t, int64(4), inserted.ID)
	require.NoError(t, s.InsertLog(ctx, milk.Log{ID: 5, CustomerID: 1, Date: "2024-06-01", Qty: d("1"), CreatedAt: base}))

	mine, err := s.ListLogs(ctx, 1, "2024-05")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Nil(t, mine[0].Price, "upsert cleared the flat price")
	require.Len(t, mine[0].Items, 1)

	month, err := s.ListLogsForMonth(ctx, "2024-05")
	require.NoError(t, err)
	require.Len(t, month, 2)
	assert.Equal(t, core.Date("2024-05-03"), month[0].Date)
}

func testMilkPayments(t *testing.T, s Backend) {
	ctx := context.Background()

	for _, p := range []milk.Payment{
		{ID: 1, CustomerID: 1, Month: "2024-05", Amount: d("500"), Note: "cash", CreatedAt: base},
		{ID: 2, CustomerID: 1, Month: "2024-06", Amount: d("450"), CreatedAt: base},
		{ID: 3, CustomerID: 2, Month: "2024-05", Amount: d("300"), CreatedAt: base},
	} {
		require.NoError(t, s.InsertMilkPayment(ctx, p))
	}

	mine, err := s.ListMilkPayments(ctx, 1, "2024-05")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.True(t, mine[0].Amount.Equal(d("500")))
	assert.Equal(t, "cash", mine[0].Note)

	month, err := s.ListMilkPaymentsForMonth(ctx, "2024-05")
	require.NoError(t, err)
	assert.Len(t, month, 2)
}
