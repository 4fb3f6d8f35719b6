package core_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/kirana-ledger/core"
)

// =============================================================================
// ERRORS
// =============================================================================

func TestErrorCategories(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		sentinel  error
		client    bool
		retryable bool
	}{
		{"validation", core.Invalid("amount", "must be greater than zero"), core.ErrValidation, true, false},
		{"rejection", core.Reject(core.CodeOutOfStock, "%s is out of stock", "Toor Dal"), core.ErrRejected, true, false},
		{"retryable conflict", &core.ConflictError{Code: core.CodeStockChanged, Reason: "retry", Retryable: true}, core.ErrConflict, true, true},
		{"final conflict", &core.ConflictError{Code: core.CodeAlreadyPaid, Reason: "paid"}, core.ErrConflict, true, false},
		{"not found", core.NotFound("order", 7), core.ErrNotFound, false, false},
		{"storage", core.Storage("insert order", errors.New("disk full")), core.ErrStorage, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("place order: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.Equal(t, tt.client, core.IsClientError(wrapped))
			assert.Equal(t, tt.retryable, core.IsRetryable(wrapped))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "amount: must be greater than zero", core.Invalid("amount", "must be greater than zero").Error())
	assert.Equal(t, "bad body", core.Invalid("", "bad body").Error())
	assert.Equal(t, "Toor Dal is out of stock", core.Reject(core.CodeOutOfStock, "%s is out of stock", "Toor Dal").Error())
	assert.Equal(t, "customer 42 not found", core.NotFound("customer", int64(42)).Error())
}

func TestStorage_KeepsCategorizedErrors(t *testing.T) {
	// GIVEN: An error that already has a category
	nf := core.NotFound("order", 1)

	// WHEN / THEN: Storage does not re-wrap it
	assert.Same(t, nf, core.Storage("get order", nf))
	assert.NoError(t, core.Storage("noop", nil))

	// THEN: Driver errors stay reachable through the wrapper
	driver := errors.New("connection reset")
	err := core.Storage("list orders", driver)
	assert.ErrorIs(t, err, driver)
	assert.True(t, core.IsNotFound(nf))
	assert.False(t, core.IsNotFound(err))
}

func TestRejectionError_Available(t *testing.T) {
	available := 3
	err := fmt.Errorf("line 1: %w", &core.RejectionError{Code: core.CodeInsufficientStock, Reason: "only 3 left", Available: &available})

	var rej *core.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, core.CodeInsufficientStock, rej.Code)
	assert.Equal(t, 3, *rej.Available)
}

// =============================================================================
// DATES & MONEY
// =============================================================================

func TestParseDateAndMonth(t *testing.T) {
	d, err := core.ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, core.Month("2024-02"), d.Month())

	_, err = core.ParseDate("2023-02-29")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = core.ParseMonth("2024-13")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestMonthBounds(t *testing.T) {
	m := core.Month("2024-02")

	assert.Equal(t, core.Date("2024-02-01"), m.FirstDay())
	assert.Equal(t, core.Date("2024-02-29"), m.LastDay())
	assert.Equal(t, core.Month("2024-03"), core.MonthOf(m.End()))
	assert.True(t, m.Contains("2024-02-15"))
	assert.False(t, m.Contains("2024-03-01"))
}

func TestDateOf_UsesStoreTimeZone(t *testing.T) {
	// 20:00 UTC on the last day of May is already June 1st in IST
	instant := time.Date(2024, 5, 31, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, core.Date("2024-06-01"), core.DateOf(instant))
	assert.Equal(t, core.Month("2024-06"), core.MonthOf(instant))
}

func TestDate_Between(t *testing.T) {
	d := core.Date("2024-05-10")

	assert.True(t, d.Between("2024-05-01", "2024-05-10"))
	assert.True(t, d.Between("", "2024-05-31"))
	assert.True(t, d.Between("2024-05-10", ""))
	assert.False(t, d.Between("2024-05-11", ""))
}

func TestMoneyHelpers(t *testing.T) {
	assert.True(t, core.Sum(core.MustDecimal("10.10"), core.MustDecimal("0.20")).Equal(core.MustDecimal("10.30")))
	assert.True(t, core.Sum().IsZero())
	assert.True(t, core.MustDecimal("abc").IsZero())

	assert.NoError(t, core.RequirePositive("amount", core.MustDecimal("0.01")))
	assert.ErrorIs(t, core.RequirePositive("amount", core.MustDecimal("0")), core.ErrValidation)
}
