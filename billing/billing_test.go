package billing_test

import (
	"bytes"
	"context"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/kirana-ledger/billing"
	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/customers"
	"github.com/warp/kirana-ledger/inventory"
	"github.com/warp/kirana-ledger/ledger"
	"github.com/warp/kirana-ledger/milk"
	"github.com/warp/kirana-ledger/orders"
	"github.com/warp/kirana-ledger/sequence"
	"github.com/warp/kirana-ledger/settings"
	"github.com/warp/kirana-ledger/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if ok {
		c.hits++
	}
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key string, data []byte, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

func (c *mapCache) Delete(_ context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
}

func (c *mapCache) DeletePattern(_ context.Context, pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(c.data, k)
		}
	}
}

type fixture struct {
	store       *memory.Memory
	customers   *customers.Directory
	ledger      *ledger.Ledger
	fulfillment *orders.Fulfillment
	milk        *milk.Service
	agg         *billing.Aggregator
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	seq := sequence.NewGenerator(store)
	sp := settings.NewProvider(store, settings.Settings{MilkPricePerLitre: d("60")})
	dir := customers.NewDirectory(store, seq)
	l := ledger.New(store, seq, dir)
	f := orders.NewFulfillment(store, inventory.NewReserver(store), l, dir, sp, seq)
	m := milk.NewService(store, dir, sp, seq)
	agg := billing.NewAggregator(dir, l, f, m)
	m.SetInvalidator(agg)
	dir.SetInvalidator(agg)

	require.NoError(t, store.SaveProduct(context.Background(), inventory.Product{
		ID:    1,
		Name:  "Sugar",
		Tiers: []inventory.PriceTier{{MinQty: 1, Price: d("40")}},
	}))
	return &fixture{store: store, customers: dir, ledger: l, fulfillment: f, milk: m, agg: agg}
}

func d(s string) decimal.Decimal { return core.MustDecimal(s) }

func (f *fixture) register(t *testing.T, phone, name string) *customers.Customer {
	t.Helper()
	c, err := f.customers.Register(context.Background(), customers.RegisterInput{Phone: phone, Name: name})
	require.NoError(t, err)
	return c
}

func (f *fixture) order(t *testing.T, phone string, qty int, method orders.PaymentMethod) *orders.Order {
	t.Helper()
	o, err := f.fulfillment.PlaceOrder(context.Background(), orders.PlaceOrderInput{
		CustomerName:  "Buyer",
		Phone:         phone,
		Items:         []orders.CartItem{{ProductID: 1, Quantity: qty}},
		PaymentMethod: method,
	})
	require.NoError(t, err)
	return o
}

// =============================================================================
// CUSTOMER STATEMENT
// =============================================================================

func TestMonthlyStatement_MilkOnly(t *testing.T) {
	// GIVEN: 2 L delivered at 60 and 50 paid
	f := setup(t)
	ctx := context.Background()
	c := f.register(t, "9811111111", "Rekha")
	_, err := f.milk.RecordDelivery(ctx, milk.DeliveryInput{CustomerID: c.ID, Date: "2024-05-03", Qty: d("2")})
	require.NoError(t, err)
	_, err = f.milk.RecordPayment(ctx, milk.PaymentInput{CustomerID: c.ID, Month: "2024-05", Amount: d("50")})
	require.NoError(t, err)

	// WHEN
	st, err := f.agg.MonthlyStatement(ctx, c.ID, "2024-05")

	// THEN
	require.NoError(t, err)
	assert.Equal(t, "Rekha", st.CustomerName)
	require.Len(t, st.Entries, 2)
	assert.Equal(t, billing.CategoryMilk, st.Entries[0].Category)
	assert.True(t, st.Summary.MilkTotal.Equal(d("120")))
	assert.True(t, st.Summary.PaymentsTotal.Equal(d("50")))
	assert.True(t, st.Summary.Outstanding.Equal(d("70")))

	// Payment made outside the month still sorts into it
	assert.Equal(t, core.Date("2024-05-31"), st.Entries[1].Date)
}

func TestMonthlyStatement_NoDoubleCounting(t *testing.T) {
	// GIVEN: Every source has something in the current month
	f := setup(t)
	ctx := context.Background()
	phone := "9822222222"
	c := f.register(t, phone, "Farida")
	month := core.Today().Month()

	f.order(t, phone, 2, orders.PaymentCOD)     // 80, not on the ledger
	f.order(t, phone, 1, orders.PaymentAccount) // 40, on the ledger as app_order
	cancelled := f.order(t, phone, 5, orders.PaymentCOD)
	_, err := f.fulfillment.Cancel(ctx, cancelled.ID)
	require.NoError(t, err)

	_, err = f.milk.RecordDelivery(ctx, milk.DeliveryInput{CustomerID: c.ID, Date: month.FirstDay(), Qty: d("2")})
	require.NoError(t, err)
	_, err = f.milk.RecordPayment(ctx, milk.PaymentInput{CustomerID: c.ID, Month: month, Amount: d("50")})
	require.NoError(t, err)

	_, err = f.ledger.Post(ctx, ledger.PostInput{CustomerID: c.ID, Kind: ledger.KindPayment, Amount: d("30"), Date: core.Today()})
	require.NoError(t, err)

	require.NoError(t, f.store.InsertLegacy(ctx, ledger.LegacyRecord{
		ID: 1, CustomerID: c.ID, Kind: ledger.KindCredit, Amount: d("25"), Date: month.FirstDay(), CreatedAt: time.Now().UTC(),
	}))

	// WHEN
	st, err := f.agg.MonthlyStatement(ctx, c.ID, month)

	// THEN: The account order counts once (through the ledger), the
	// cancelled one not at all, the legacy credit once
	require.NoError(t, err)
	assert.True(t, st.Summary.MilkTotal.Equal(d("120")), "milk %s", st.Summary.MilkTotal)
	assert.True(t, st.Summary.OrderTotal.Equal(d("80")), "orders %s", st.Summary.OrderTotal)
	assert.True(t, st.Summary.UdharTotal.Equal(d("65")), "udhar %s", st.Summary.UdharTotal)
	assert.True(t, st.Summary.PaymentsTotal.Equal(d("80")), "payments %s", st.Summary.PaymentsTotal)
	assert.True(t, st.Summary.Outstanding.Equal(d("185")), "outstanding %s", st.Summary.Outstanding)

	// WHEN: The legacy record is copied into the ledger
	legacyID := int64(1)
	_, err = f.ledger.PostForCustomer(ctx, ledger.PostInput{
		CustomerID: c.ID, Kind: ledger.KindCredit, Amount: d("25"), Date: month.FirstDay(),
		Source: ledger.SourceLegacyUdhar, LegacyID: &legacyID,
	})
	require.NoError(t, err)

	// THEN: The outstanding amount does not move
	st, err = f.agg.MonthlyStatement(ctx, c.ID, month)
	require.NoError(t, err)
	assert.True(t, st.Summary.Outstanding.Equal(d("185")))

	for i := 1; i < len(st.Entries); i++ {
		assert.False(t, st.Entries[i].Date < st.Entries[i-1].Date, "entries are sorted by date")
	}
}

func TestMonthlyStatement_Errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.agg.MonthlyStatement(ctx, 1, "2024-13")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.agg.MonthlyStatement(ctx, 404, "2024-05")
	assert.True(t, core.IsNotFound(err))
}

func TestSummarize(t *testing.T) {
	s := billing.Summarize([]billing.Line{
		{Category: billing.CategoryMilk, Amount: d("100")},
		{Category: billing.CategoryOrder, Amount: d("20.50")},
		{Category: billing.CategoryUdhar, Amount: d("9.50")},
		{Category: billing.CategoryPayment, Amount: d("30")},
	})
	assert.True(t, s.Outstanding.Equal(d("100")))

	empty := billing.Summarize(nil)
	assert.True(t, empty.Outstanding.IsZero())
}

// =============================================================================
// STORE-WIDE MILK BILLING
// =============================================================================

func TestStoreMilkBilling_CachesUntilMilkWrite(t *testing.T) {
	// GIVEN: Two subscribers, one with a custom price
	f := setup(t)
	ctx := context.Background()
	cache := newMapCache()
	f.agg.UseCache(cache, time.Minute)

	a := f.register(t, "9833333333", "Asha")
	b := f.register(t, "9844444444", "Bina")
	custom := d("55")
	_, err := f.milk.Subscribe(ctx, milk.SubscribeInput{CustomerID: a.ID, DefaultQty: d("1")})
	require.NoError(t, err)
	_, err = f.milk.Subscribe(ctx, milk.SubscribeInput{CustomerID: b.ID, DefaultQty: d("2"), PricePerLitre: &custom})
	require.NoError(t, err)
	created, err := f.milk.AutoLogDeliveries(ctx, "2024-06-01")
	require.NoError(t, err)
	require.Equal(t, 2, created)
	_, err = f.milk.RecordPayment(ctx, milk.PaymentInput{CustomerID: b.ID, Month: "2024-06", Amount: d("100")})
	require.NoError(t, err)

	// WHEN: Computed
	bill, err := f.agg.StoreMilkBilling(ctx, "2024-06")

	// THEN
	require.NoError(t, err)
	require.Len(t, bill.Customers, 2)
	assert.True(t, bill.Customers[0].Amount.Equal(d("60")))
	assert.True(t, bill.Customers[1].Amount.Equal(d("110")))
	assert.True(t, bill.Customers[1].Due.Equal(d("10")))
	assert.True(t, bill.Totals.Due.Equal(d("70")))
	assert.True(t, bill.Totals.Litres.Equal(d("3")))
	assert.Equal(t, 0, cache.hits)

	// WHEN: Asked again
	again, err := f.agg.StoreMilkBilling(ctx, "2024-06")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.True(t, again.Totals.Due.Equal(d("70")))

	// WHEN: A delivery changes
	_, err = f.milk.RecordDelivery(ctx, milk.DeliveryInput{CustomerID: a.ID, Date: "2024-06-01", Qty: d("2")})
	require.NoError(t, err)

	// THEN: The cached month was dropped and the new figure is computed
	fresh, err := f.agg.StoreMilkBilling(ctx, "2024-06")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.True(t, fresh.Totals.Due.Equal(d("130")))
}

func TestStoreMilkBilling_CustomerLifecycleDropsEveryCachedMonth(t *testing.T) {
	// GIVEN: A subscriber billed in two cached months
	f := setup(t)
	ctx := context.Background()
	cache := newMapCache()
	f.agg.UseCache(cache, time.Hour)

	c := f.register(t, "9855555555", "Gone")
	_, err := f.milk.Subscribe(ctx, milk.SubscribeInput{CustomerID: c.ID, DefaultQty: d("1")})
	require.NoError(t, err)
	_, err = f.milk.AutoLogDeliveries(ctx, "2024-05-31")
	require.NoError(t, err)
	_, err = f.milk.AutoLogDeliveries(ctx, "2024-06-01")
	require.NoError(t, err)
	for _, month := range []core.Month{"2024-05", "2024-06"} {
		bill, err := f.agg.StoreMilkBilling(ctx, month)
		require.NoError(t, err)
		require.Len(t, bill.Customers, 1)
	}

	// WHEN: The customer is soft-deleted
	_, err = f.customers.SoftDelete(ctx, c.ID)
	require.NoError(t, err)

	// THEN: Neither month still lists them
	for _, month := range []core.Month{"2024-05", "2024-06"} {
		bill, err := f.agg.StoreMilkBilling(ctx, month)
		require.NoError(t, err)
		assert.Empty(t, bill.Customers, month)
		assert.True(t, bill.Totals.Due.IsZero())
	}

	// WHEN: Restored
	_, err = f.customers.Restore(ctx, c.ID)
	require.NoError(t, err)

	// THEN: Billed again
	bill, err := f.agg.StoreMilkBilling(ctx, "2024-06")
	require.NoError(t, err)
	require.Len(t, bill.Customers, 1)
	assert.True(t, bill.Totals.Due.Equal(d("60")))

	// WHEN: Hard-deleted
	require.NoError(t, f.customers.HardDelete(ctx, c.ID))

	// THEN
	bill, err = f.agg.StoreMilkBilling(ctx, "2024-06")
	require.NoError(t, err)
	assert.Empty(t, bill.Customers)
}

func TestStoreMilkBilling_SubscriptionChangeDropsCache(t *testing.T) {
	// GIVEN: A cached month with no subscribers
	f := setup(t)
	ctx := context.Background()
	cache := newMapCache()
	f.agg.UseCache(cache, time.Hour)
	c := f.register(t, "9877777777", "Nisha")

	empty, err := f.agg.StoreMilkBilling(ctx, "2024-06")
	require.NoError(t, err)
	require.Empty(t, empty.Customers)

	// WHEN: The customer subscribes
	_, err = f.milk.Subscribe(ctx, milk.SubscribeInput{CustomerID: c.ID, DefaultQty: d("1")})
	require.NoError(t, err)

	// THEN: The next read is recomputed and lists them
	bill, err := f.agg.StoreMilkBilling(ctx, "2024-06")
	require.NoError(t, err)
	assert.Len(t, bill.Customers, 1)
	assert.Equal(t, 0, cache.hits)
}

func TestStoreMilkBilling_SkipsDeletedCustomers(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.register(t, "9855555555", "Gone")
	_, err := f.milk.Subscribe(ctx, milk.SubscribeInput{CustomerID: c.ID, DefaultQty: d("1")})
	require.NoError(t, err)
	_, err = f.customers.SoftDelete(ctx, c.ID)
	require.NoError(t, err)

	bill, err := f.agg.StoreMilkBilling(ctx, "2024-06")

	require.NoError(t, err)
	assert.Empty(t, bill.Customers)
	assert.True(t, bill.Totals.Due.IsZero())
}

// =============================================================================
// PDF
// =============================================================================

func TestRenderStatementPDF(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.register(t, "9866666666", "Kavita")
	_, err := f.milk.RecordDelivery(ctx, milk.DeliveryInput{CustomerID: c.ID, Date: "2024-05-03", Qty: d("1")})
	require.NoError(t, err)
	st, err := f.agg.MonthlyStatement(ctx, c.ID, "2024-05")
	require.NoError(t, err)

	pdf, err := billing.RenderStatementPDF(st)

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}
