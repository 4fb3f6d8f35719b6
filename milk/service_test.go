package milk_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/customers"
	"github.com/warp/kirana-ledger/milk"
	"github.com/warp/kirana-ledger/sequence"
	"github.com/warp/kirana-ledger/settings"
	"github.com/warp/kirana-ledger/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type recordingInvalidator struct {
	mu     sync.Mutex
	months []core.Month
	all    int
}

func (r *recordingInvalidator) Invalidate(_ context.Context, month core.Month) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.months = append(r.months, month)
}

func (r *recordingInvalidator) InvalidateAll(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all++
}

type fixture struct {
	svc         *milk.Service
	customers   *customers.Directory
	invalidated *recordingInvalidator
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	seq := sequence.NewGenerator(store)
	dir := customers.NewDirectory(store, seq)
	svc := milk.NewService(store, dir, settings.NewProvider(store, settings.Settings{MilkPricePerLitre: d("60")}), seq)
	inv := &recordingInvalidator{}
	svc.SetInvalidator(inv)
	return &fixture{svc: svc, customers: dir, invalidated: inv}
}

func d(s string) decimal.Decimal { return core.MustDecimal(s) }

func (f *fixture) customer(t *testing.T, phone string) int64 {
	t.Helper()
	c, err := f.customers.Register(context.Background(), customers.RegisterInput{Phone: phone, Name: "Customer " + phone})
	require.NoError(t, err)
	return c.ID
}

func datePtr(s string) *core.Date {
	d := core.Date(s)
	return &d
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

func TestSubscribe_OnePerCustomer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	cid := f.customer(t, "9000000001")

	sub, err := f.svc.Subscribe(ctx, milk.SubscribeInput{CustomerID: cid, DefaultQty: d("1.5")})
	require.NoError(t, err)
	assert.Equal(t, milk.StatusActive, sub.Status)

	// WHEN: Subscribing again
	_, err = f.svc.Subscribe(ctx, milk.SubscribeInput{CustomerID: cid, DefaultQty: d("1")})

	// THEN
	var rej *core.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, core.CodeDuplicateSubscription, rej.Code)
}

func TestSubscribe_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	cid := f.customer(t, "9000000001")

	_, err := f.svc.Subscribe(ctx, milk.SubscribeInput{CustomerID: cid})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.svc.Subscribe(ctx, milk.SubscribeInput{CustomerID: cid, DefaultItems: []milk.Item{{Name: "Curd", Qty: decimal.Zero, Price: d("30")}}})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.svc.Subscribe(ctx, milk.SubscribeInput{CustomerID: 404, DefaultQty: d("1")})
	assert.True(t, core.IsNotFound(err))
}

func TestPauseAndResume(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	cid := f.customer(t, "9000000001")
	_, err := f.svc.Subscribe(ctx, milk.SubscribeInput{CustomerID: cid, DefaultQty: d("1")})
	require.NoError(t, err)
	assert.Equal(t, 1, f.invalidated.all)

	// WHEN: Pausing for the 10th to the 12th
	sub, err := f.svc.Pause(ctx, cid, "2024-05-10", datePtr("2024-05-12"))
	require.NoError(t, err)
	assert.Equal(t, 2, f.invalidated.all, "a pause changes every cached month")

	// THEN: Deliveries stop only inside the window
	assert.Equal(t, milk.StatusPaused, sub.Status)
	assert.True(t, sub.DeliversOn("2024-05-09"))
	assert.False(t, sub.DeliversOn("2024-05-10"))
	assert.False(t, sub.DeliversOn("2024-05-12"))
	assert.True(t, sub.DeliversOn("2024-05-13"))

	// An inverted window is invalid
	_, err = f.svc.Pause(ctx, cid, "2024-05-12", datePtr("2024-05-10"))
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Equal(t, 2, f.invalidated.all)

	// WHEN: Resumed
	sub, err = f.svc.Resume(ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, 3, f.invalidated.all)
	assert.Equal(t, milk.StatusActive, sub.Status)
	assert.Nil(t, sub.PauseFrom)
	assert.True(t, sub.DeliversOn("2024-05-11"))
}

// =============================================================================
// DELIVERIES
// =============================================================================

func TestRecordDelivery_ReplacesSameDay(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	cid := f.customer(t, "9000000001")

	first, err := f.svc.RecordDelivery(ctx, milk.DeliveryInput{CustomerID: cid, Date: "2024-05-03", Qty: d("1")})
	require.NoError(t, err)
	require.NotNil(t, first.Price)
	assert.True(t, first.Price.Equal(d("60")), "store default price is snapshotted")

	// WHEN: The same day is recorded again
	second, err := f.svc.RecordDelivery(ctx, milk.DeliveryInput{CustomerID: cid, Date: "2024-05-03", Qty: d("2")})
	require.NoError(t, err)

	// THEN: One log for the day with the new quantity
	logs, err := f.svc.Logs(ctx, cid, "2024-05")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, logs[0].Qty.Equal(d("2")))
	assert.Contains(t, f.invalidated.months, core.Month("2024-05"))
}

func TestRecordDelivery_SubscriptionPriceWins(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	cid := f.customer(t, "9000000001")
	price := d("56")
	_, err := f.svc.Subscribe(ctx, milk.SubscribeInput{CustomerID: cid, DefaultQty: d("1"), PricePerLitre: &price})
	require.NoError(t, err)

	l, err := f.svc.RecordDelivery(ctx, milk.DeliveryInput{CustomerID: cid, Date: "2024-05-03", Qty: d("2")})

	require.NoError(t, err)
	assert.True(t, l.Amount(nil, d("60")).Equal(d("112")))
}

func TestLogAmount(t *testing.T) {
	snapshot := d("58")
	sub := d("55")

	itemized := milk.Log{Qty: d("9"), Items: []milk.Item{
		{Name: "Milk", Qty: d("1"), Price: d("60")},
		{Name: "Curd", Qty: d("0.5"), Price: d("80")},
	}}
	assert.True(t, itemized.Amount(&sub, d("60")).Equal(d("100")))
	assert.True(t, itemized.Litres().Equal(d("1.5")))

	snap := milk.Log{Qty: d("2"), Price: &snapshot}
	assert.True(t, snap.Amount(&sub, d("60")).Equal(d("116")))

	bare := milk.Log{Qty: d("2")}
	assert.True(t, bare.Amount(&sub, d("60")).Equal(d("110")))
	assert.True(t, bare.Amount(nil, d("60")).Equal(d("120")))
}

func TestRecordPayment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	cid := f.customer(t, "9000000001")

	p, err := f.svc.RecordPayment(ctx, milk.PaymentInput{CustomerID: cid, Month: "2024-05", Amount: d("500")})
	require.NoError(t, err)
	assert.Equal(t, core.Month("2024-05"), p.Month)

	_, err = f.svc.RecordPayment(ctx, milk.PaymentInput{CustomerID: cid, Month: "2024-05", Amount: decimal.Zero})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.svc.RecordPayment(ctx, milk.PaymentInput{CustomerID: cid, Month: "May", Amount: d("1")})
	assert.ErrorIs(t, err, core.ErrValidation)

	payments, err := f.svc.Payments(ctx, cid, "2024-05")
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

// =============================================================================
// AUTO LOG
// =============================================================================

func TestAutoLogDeliveries(t *testing.T) {
	// GIVEN: Three subscribers; one paused, one already logged today
	f := setup(t)
	ctx := context.Background()
	active := f.customer(t, "9000000001")
	paused := f.customer(t, "9000000002")
	logged := f.customer(t, "9000000003")
	for _, cid := range []int64{active, paused, logged} {
		_, err := f.svc.Subscribe(ctx, milk.SubscribeInput{CustomerID: cid, DefaultQty: d("1")})
		require.NoError(t, err)
	}
	_, err := f.svc.Pause(ctx, paused, "2024-05-01", nil)
	require.NoError(t, err)
	_, err = f.svc.RecordDelivery(ctx, milk.DeliveryInput{CustomerID: logged, Date: "2024-05-03", Qty: d("3")})
	require.NoError(t, err)

	// WHEN
	created, err := f.svc.AutoLogDeliveries(ctx, "2024-05-03")

	// THEN: Only the active, unlogged subscriber gets a default log
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	logs, err := f.svc.LogsForMonth(ctx, "2024-05")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	for _, l := range logs {
		if l.CustomerID == logged {
			assert.True(t, l.Qty.Equal(d("3")), "manual log is untouched")
		}
	}

	// A second run is a no-op
	created, err = f.svc.AutoLogDeliveries(ctx, "2024-05-03")
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestAutoLogDeliveries_SkipsDeletedCustomers(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	cid := f.customer(t, "9000000001")
	_, err := f.svc.Subscribe(ctx, milk.SubscribeInput{CustomerID: cid, DefaultQty: d("1")})
	require.NoError(t, err)
	_, err = f.customers.SoftDelete(ctx, cid)
	require.NoError(t, err)

	created, err := f.svc.AutoLogDeliveries(ctx, "2024-05-03")

	require.NoError(t, err)
	assert.Zero(t, created)
}
