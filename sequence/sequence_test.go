package sequence_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/sequence"
	"github.com/warp/kirana-ledger/store/memory"
)

func TestNextID_IncrementsPerCounter(t *testing.T) {
	// GIVEN: A fresh generator
	g := sequence.NewGenerator(memory.New())
	ctx := context.Background()

	// WHEN: Drawing ids from two counters
	o1, err := g.NextID(ctx, sequence.Orders)
	require.NoError(t, err)
	o2, _ := g.NextID(ctx, sequence.Orders)
	c1, _ := g.NextID(ctx, sequence.Customers)

	// THEN: Each counter starts at 1 independently
	assert.Equal(t, int64(1), o1)
	assert.Equal(t, int64(2), o2)
	assert.Equal(t, int64(1), c1)
}

func TestNextID_ConcurrentCallersGetDistinctIDs(t *testing.T) {
	g := sequence.NewGenerator(memory.New())
	ctx := context.Background()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[int64]bool)
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := g.NextID(ctx, sequence.LedgerEntries)
			assert.NoError(t, err)
			mu.Lock()
			ids[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 50)
	assert.True(t, ids[1] && ids[50])
}

func TestNextID_RequiresCounterName(t *testing.T) {
	_, err := sequence.NewGenerator(memory.New()).NextID(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrValidation)
}
