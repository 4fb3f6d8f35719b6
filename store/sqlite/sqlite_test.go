package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/ledger"
	"github.com/warp/kirana-ledger/store/sqlite"
	"github.com/warp/kirana-ledger/store/storetest"
)

func open(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Backend {
		return open(t)
	})
}

func TestNew_ReopensFileWithData(t *testing.T) {
	// GIVEN: A database file with one counter value
	path := filepath.Join(t.TempDir(), "kirana.db")
	ctx := context.Background()

	s, err := sqlite.New(path)
	require.NoError(t, err)
	_, err = s.IncrementCounter(ctx, "orders")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// WHEN: Reopened (migrations run again)
	s, err = sqlite.New(path)
	require.NoError(t, err)
	defer s.Close()

	// THEN: Data survives and migration is idempotent
	next, err := s.IncrementCounter(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(2), next)
	assert.NoError(t, s.Ping(ctx))
}

func TestInsertLegacy_UnknownKind(t *testing.T) {
	s := open(t)
	err := s.InsertLegacy(context.Background(), ledger.LegacyRecord{ID: 1, CustomerID: 1, Kind: "refund", Amount: core.MustDecimal("10"), Date: "2024-01-01"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrDuplicate)
}
