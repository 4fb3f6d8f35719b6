/*
Package ledger is the unified, append-only financial ledger per customer.

KEY CONCEPTS IN THIS FILE (types.go):
  - Entry: one immutable financial fact (credit owed or payment received)
  - Kind: credit | payment
  - Source: where the entry came from (manual, app_order, order_payment,
    legacy_udhar, legacy_payment)
  - LegacyRecord: a credit or payment from the earlier-generation stores
    ("udharEntries" / "udharPayments"), kept until migrated

BALANCE IDENTITY:
  balance(customer) = Σ credit.amount − Σ payment.amount

  over every ledger entry of the customer, plus every legacy record that
  has not been copied into the ledger yet. A legacy record counts as
  migrated once a ledger entry carries its id in LegacyID with the matching
  legacy source. Migrated legacy records are never summed twice.

IMMUTABILITY:
  Entries posted by automated sources (orders, migration) are never
  rewritten by the engine. Operators can still correct or delete any entry
  through Ledger.Update / Ledger.Delete; that is a trusted escape hatch,
  not something the engine does on its own.

SEE ALSO:
  - ledger.go: Post / List / Balance / Update / Delete
  - store.go: persistence contract
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/kirana-ledger/core"
)

// =============================================================================
// ENTRY KIND & SOURCE
// =============================================================================

type Kind string

const (
	KindCredit  Kind = "credit"
	KindPayment Kind = "payment"
)

func (k Kind) Valid() bool { return k == KindCredit || k == KindPayment }

// Sign returns +1 for credits and -1 for payments.
func (k Kind) Sign() decimal.Decimal {
	if k == KindPayment {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

type Source string

const (
	SourceManual        Source = "manual"
	SourceAppOrder      Source = "app_order"
	SourceOrderPayment  Source = "order_payment"
	SourceLegacyUdhar   Source = "legacy_udhar"
	SourceLegacyPayment Source = "legacy_payment"
)

func (s Source) Valid() bool {
	switch s {
	case SourceManual, SourceAppOrder, SourceOrderPayment, SourceLegacyUdhar, SourceLegacyPayment:
		return true
	}
	return false
}

// Automated reports whether entries with this source are posted by the engine.
func (s Source) Automated() bool { return s != SourceManual && s != "" }

// Legacy reports whether the source marks a migrated legacy record.
func (s Source) Legacy() bool { return s == SourceLegacyUdhar || s == SourceLegacyPayment }

// =============================================================================
// ENTRY - Immutable financial fact
// =============================================================================

// Item is a snapshot of a purchased line attached to a credit entry.
type Item struct {
	ProductID int64           `json:"productId,omitempty"`
	VariantID string          `json:"variantId,omitempty"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Entry struct {
	ID         int64           `json:"id"`
	CustomerID int64           `json:"customerId"`
	Kind       Kind            `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	Note       string          `json:"note"`
	Date       core.Date       `json:"date"`
	CreatedAt  time.Time       `json:"createdAt"`
	Source     Source          `json:"source,omitempty"`
	OrderID    *int64          `json:"orderId,omitempty"`
	LegacyID   *int64          `json:"legacyId,omitempty"`
	Items      []Item          `json:"items,omitempty"`
}

// Signed returns the entry amount signed by kind.
func (e Entry) Signed() decimal.Decimal { return e.Amount.Mul(e.Kind.Sign()) }

// =============================================================================
// LEGACY RECORDS - Earlier-generation credit stores
// =============================================================================

// LegacyRecord is an entry from the legacy "udharEntries" (credit) or
// "udharPayments" (payment) store. Kind tells which store it came from.
type LegacyRecord struct {
	ID         int64           `json:"id"`
	CustomerID int64           `json:"customerId"`
	Kind       Kind            `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	Note       string          `json:"note"`
	Date       core.Date       `json:"date"`
	CreatedAt  time.Time       `json:"createdAt"`
	Items      []Item          `json:"items,omitempty"`
}

// MigrationSource is the ledger source tag a migrated copy of r carries.
func (r LegacyRecord) MigrationSource() Source {
	if r.Kind == KindPayment {
		return SourceLegacyPayment
	}
	return SourceLegacyUdhar
}

// =============================================================================
// BALANCE VIEW
// =============================================================================

// Balance is the all-time balance of a customer, split by origin so the
// transitional legacy contribution is visible instead of silently summed.
type Balance struct {
	CustomerID int64 `json:"customerId"`

	Credits       decimal.Decimal `json:"credits"`
	Payments      decimal.Decimal `json:"payments"`
	LedgerBalance decimal.Decimal `json:"ledgerBalance"`

	// Legacy records not yet copied into the ledger.
	LegacyCredits        decimal.Decimal `json:"legacyCredits"`
	LegacyPayments       decimal.Decimal `json:"legacyPayments"`
	UnmigratedLegacy     decimal.Decimal `json:"unmigratedLegacy"`
	PendingLegacyRecords int             `json:"pendingLegacyRecords"`

	// Total = LedgerBalance + UnmigratedLegacy.
	Total decimal.Decimal `json:"total"`
}

// Migrated reports whether no legacy record is outstanding for the customer.
func (b Balance) Migrated() bool { return b.PendingLegacyRecords == 0 }
