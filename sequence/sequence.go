/*
Package sequence issues monotonically increasing integer ids per named counter.

PURPOSE:
  Every entity created by the engine (orders, ledger entries, customers,
  milk logs...) takes its id from a named counter. The counter lives in
  the shared persistent store, not in process memory, so ids survive
  restarts and stay unique across several server instances.

CONTRACT:
  NextID(counter) returns the next value of the counter. The increment is
  persisted before the value is returned: an id is consumed the instant it
  is issued, even if the caller later fails. Gaps are acceptable,
  duplicates are not.

ATOMICITY:
  The CounterStore performs increment-and-fetch as a single statement
  (INSERT ... ON CONFLICT DO UPDATE ... RETURNING in SQL stores, a mutex in
  the memory store). Two concurrent callers never observe the same value.

ERRORS:
  A storage failure is fatal to the calling operation and is returned as a
  core.StorageError.
*/
package sequence

import (
	"context"

	"github.com/warp/kirana-ledger/core"
)

// Counter names a sequence.
type Counter string

const (
	Orders        Counter = "orders"
	LedgerEntries Counter = "ledger_entries"
	Customers     Counter = "customers"
	Subscriptions Counter = "milk_subscriptions"
	MilkLogs      Counter = "milk_logs"
	MilkPayments  Counter = "milk_payments"
	Products      Counter = "products"
	LegacyRecords Counter = "legacy_records"
)

// CounterStore persists named counters.
type CounterStore interface {
	// IncrementCounter atomically increments the named counter (creating it
	// at 1 if absent) and returns the new value.
	IncrementCounter(ctx context.Context, name string) (int64, error)
}

// Generator hands out ids.
type Generator struct {
	store CounterStore
}

func NewGenerator(store CounterStore) *Generator {
	return &Generator{store: store}
}

// NextID returns the next id for counter.
func (g *Generator) NextID(ctx context.Context, counter Counter) (int64, error) {
	if counter == "" {
		return 0, core.Invalid("counter", "name is required")
	}
	id, err := g.store.IncrementCounter(ctx, string(counter))
	if err != nil {
		return 0, core.Storage("next id "+string(counter), err)
	}
	return id, nil
}
