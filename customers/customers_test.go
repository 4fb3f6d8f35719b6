package customers_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/customers"
	"github.com/warp/kirana-ledger/sequence"
	"github.com/warp/kirana-ledger/store/memory"
)

func newDirectory() (*customers.Directory, *memory.Memory) {
	store := memory.New()
	return customers.NewDirectory(store, sequence.NewGenerator(store)), store
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "9876543210", customers.NormalizePhone("+91 98765-43210"))
	assert.Equal(t, "9876543210", customers.NormalizePhone("98765 43210"))
	assert.Equal(t, "", customers.NormalizePhone("n/a"))
}

func TestRegister_ValidatesAndRejectsDuplicatePhone(t *testing.T) {
	dir, _ := newDirectory()
	ctx := context.Background()

	// GIVEN: A registered customer
	c, err := dir.Register(ctx, customers.RegisterInput{Phone: "+91 98765 43210", Name: " Asha "})
	require.NoError(t, err)
	assert.Equal(t, "9876543210", c.Phone)
	assert.Equal(t, "Asha", c.Name)
	assert.Equal(t, customers.StateActive, c.State)

	// WHEN: Registering the same phone in another format
	_, err = dir.Register(ctx, customers.RegisterInput{Phone: "9876543210", Name: "Other"})

	// THEN: Rejected as a duplicate
	var rej *core.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, core.CodeDuplicatePhone, rej.Code)

	// Invalid input never reaches the store
	_, err = dir.Register(ctx, customers.RegisterInput{Phone: "123", Name: "Short"})
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = dir.Register(ctx, customers.RegisterInput{Phone: "9000000001", Name: ""})
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = dir.Register(ctx, customers.RegisterInput{Phone: "9000000001", Name: "X", CreditLimit: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSoftDelete_HidesCustomerUntilRestored(t *testing.T) {
	dir, _ := newDirectory()
	ctx := context.Background()
	c, err := dir.Register(ctx, customers.RegisterInput{Phone: "9000000001", Name: "Ravi"})
	require.NoError(t, err)

	// WHEN: Soft deleting
	deleted, err := dir.SoftDelete(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted())
	require.NotNil(t, deleted.DeletedAt)

	// THEN: Default reads no longer see the customer
	found, err := dir.FindByPhone(ctx, "9000000001")
	require.NoError(t, err)
	assert.Nil(t, found)
	found, _ = dir.FindByID(ctx, c.ID)
	assert.Nil(t, found)
	list, _ := dir.List(ctx, customers.ReadOptions{})
	assert.Empty(t, list)

	// AND: Admin reads still do
	found, _ = dir.Get(ctx, c.ID, customers.ReadOptions{IncludeDeleted: true})
	require.NotNil(t, found)
	list, _ = dir.List(ctx, customers.ReadOptions{IncludeDeleted: true})
	assert.Len(t, list, 1)

	// WHEN: Restoring
	restored, err := dir.Restore(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, customers.StateActive, restored.State)
	assert.Nil(t, restored.DeletedAt)
}

func TestRestore_FailsWhenPhoneWasReused(t *testing.T) {
	dir, _ := newDirectory()
	ctx := context.Background()

	// GIVEN: A soft-deleted customer whose phone was re-registered
	old, _ := dir.Register(ctx, customers.RegisterInput{Phone: "9000000001", Name: "Old"})
	_, err := dir.SoftDelete(ctx, old.ID)
	require.NoError(t, err)
	_, err = dir.Register(ctx, customers.RegisterInput{Phone: "9000000001", Name: "New"})
	require.NoError(t, err)

	// WHEN: Restoring the old record
	_, err = dir.Restore(ctx, old.ID)

	// THEN: Rejected
	var rej *core.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, core.CodeDuplicatePhone, rej.Code)
}

func TestHardDelete_RemovesCustomer(t *testing.T) {
	dir, store := newDirectory()
	ctx := context.Background()
	c, _ := dir.Register(ctx, customers.RegisterInput{Phone: "9000000001", Name: "Ravi"})

	require.NoError(t, dir.HardDelete(ctx, c.ID))

	got, err := store.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.True(t, core.IsNotFound(dir.HardDelete(ctx, c.ID)))
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) InvalidateAll(context.Context) { c.calls++ }

func TestLifecycleChanges_NotifyInvalidator(t *testing.T) {
	dir, _ := newDirectory()
	inv := &countingInvalidator{}
	dir.SetInvalidator(inv)
	ctx := context.Background()
	c, err := dir.Register(ctx, customers.RegisterInput{Phone: "9000000001", Name: "Ravi"})
	require.NoError(t, err)
	assert.Zero(t, inv.calls)

	_, err = dir.SoftDelete(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, inv.calls)

	// A repeated soft delete changes nothing
	_, err = dir.SoftDelete(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, inv.calls)

	_, err = dir.Restore(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, inv.calls)

	require.NoError(t, dir.HardDelete(ctx, c.ID))
	assert.Equal(t, 3, inv.calls)
}

func TestVerifyPIN(t *testing.T) {
	dir, _ := newDirectory()
	ctx := context.Background()
	c, err := dir.Register(ctx, customers.RegisterInput{Phone: "9000000001", Name: "Ravi", PIN: "4321"})
	require.NoError(t, err)
	assert.NotEqual(t, "4321", c.PINHash)

	got, ok, err := dir.VerifyPIN(ctx, "9000000001", "4321")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, c.ID, got.ID)

	_, ok, err = dir.VerifyPIN(ctx, "9000000001", "0000")
	require.NoError(t, err)
	assert.False(t, ok)
}
