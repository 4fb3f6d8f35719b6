package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/kirana-ledger/core"
)

// Store persists ledger entries and exposes the legacy stores read-only
// (plus inserts for importing historical data).
//
// Single-document atomicity is enough here: posting an entry is one insert.
// The (source, legacy_id) pair is unique so a legacy record can only ever
// be migrated once, even by concurrent migration runs.
type Store interface {
	// InsertEntry returns core.ErrDuplicate if (Source, LegacyID) already
	// exists, or if an automated order entry (app_order, order_payment)
	// already exists for the same (Source, OrderID).
	InsertEntry(ctx context.Context, e Entry) error

	// GetEntry returns nil when absent.
	GetEntry(ctx context.Context, id int64) (*Entry, error)

	// ListEntries returns the customer's entries ordered by (date, createdAt, id).
	ListEntries(ctx context.Context, customerID int64) ([]Entry, error)

	// ListEntriesBetween returns the customer's entries dated within [from, to].
	ListEntriesBetween(ctx context.Context, customerID int64, from, to core.Date) ([]Entry, error)

	// UpdateEntry applies an operator correction to amount/note/date.
	UpdateEntry(ctx context.Context, id int64, amount decimal.Decimal, note string, date core.Date) error

	// DeleteEntry removes an entry. Returns false when nothing was deleted.
	DeleteEntry(ctx context.Context, id int64) (bool, error)

	// MigratedLegacyIDs returns the legacy ids already present in the ledger
	// for source, optionally restricted to a customer (0 = all customers).
	MigratedLegacyIDs(ctx context.Context, source Source, customerID int64) (map[int64]bool, error)

	// FindByLegacyID returns the ledger copy of a legacy record, or nil.
	FindByLegacyID(ctx context.Context, source Source, legacyID int64) (*Entry, error)

	// ListLegacy returns legacy records of kind, for one customer (0 = all),
	// ordered by (date, createdAt, id).
	ListLegacy(ctx context.Context, kind Kind, customerID int64) ([]LegacyRecord, error)

	// InsertLegacy imports a historical legacy record.
	InsertLegacy(ctx context.Context, r LegacyRecord) error
}
