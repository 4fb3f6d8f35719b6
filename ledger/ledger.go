/*
ledger.go - Posting, listing and balance computation

PURPOSE:
  The Ledger is the single source of truth for customer money going
  forward. New credit is written here only; the legacy stores are read for
  the transition period and consumed once by the migration adapter.

OPERATIONS:
  Post(input)          validate, take a sequence id, insert
  List(customer)       chronological entries
  Balance(customer)    fold ledger + unmigrated legacy (see types.go)
  Update(id, patch)    operator correction of amount/note/date
  Delete(id)           operator removal

  Update and Delete never touch stock or order state. If an operator
  deletes the credit of an account order, the order keeps addedToUdhar.

SEE ALSO:
  - migration/: copies legacy records into the ledger
  - billing/: monthly statements built from entries
*/
package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/customers"
	"github.com/warp/kirana-ledger/metrics"
	"github.com/warp/kirana-ledger/sequence"
)

// Ledger posts and folds entries.
type Ledger struct {
	store     Store
	seq       *sequence.Generator
	customers customers.Lookup
	now       func() time.Time
}

func New(store Store, seq *sequence.Generator, lookup customers.Lookup) *Ledger {
	return &Ledger{store: store, seq: seq, customers: lookup, now: time.Now}
}

// PostInput describes a new entry. Date defaults to today; Source to manual.
type PostInput struct {
	CustomerID int64
	Kind       Kind
	Amount     decimal.Decimal
	Note       string
	Date       core.Date
	Source     Source
	OrderID    *int64
	LegacyID   *int64
	Items      []Item
}

func (in *PostInput) validate() error {
	if in.CustomerID <= 0 {
		return core.Invalid("customerId", "is required")
	}
	if !in.Kind.Valid() {
		return core.Invalid("type", "must be credit or payment")
	}
	if err := core.RequirePositive("amount", in.Amount); err != nil {
		return err
	}
	if in.Source == "" {
		in.Source = SourceManual
	}
	if !in.Source.Valid() {
		return core.Invalid("source", "unknown source "+string(in.Source))
	}
	if in.Source.Legacy() && in.LegacyID == nil {
		return core.Invalid("legacyId", "is required for legacy sources")
	}
	if in.Date != "" {
		if _, err := core.ParseDate(string(in.Date)); err != nil {
			return err
		}
	}
	in.Note = strings.TrimSpace(in.Note)
	return nil
}

// Post appends a new entry for an existing, non-deleted customer.
func (l *Ledger) Post(ctx context.Context, in PostInput) (*Entry, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c, err := l.customers.FindByID(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, core.NotFound("customer", in.CustomerID)
	}
	return l.insert(ctx, in)
}

// insert assigns id/timestamps and writes. Customer existence is the caller's concern.
func (l *Ledger) insert(ctx context.Context, in PostInput) (*Entry, error) {
	id, err := l.seq.NextID(ctx, sequence.LedgerEntries)
	if err != nil {
		return nil, err
	}
	now := l.now()
	date := in.Date
	if date == "" {
		date = core.DateOf(now)
	}
	e := Entry{
		ID:         id,
		CustomerID: in.CustomerID,
		Kind:       in.Kind,
		Amount:     in.Amount,
		Note:       in.Note,
		Date:       date,
		CreatedAt:  now.UTC(),
		Source:     in.Source,
		OrderID:    in.OrderID,
		LegacyID:   in.LegacyID,
		Items:      in.Items,
	}
	if err := l.store.InsertEntry(ctx, e); err != nil {
		if errors.Is(err, core.ErrDuplicate) {
			return nil, &core.ConflictError{Code: core.CodeDuplicateEntry, Reason: "entry already posted"}
		}
		return nil, core.Storage("insert ledger entry", err)
	}
	metrics.LedgerPosts.WithLabelValues(string(e.Kind), string(e.Source)).Inc()
	return &e, nil
}

// PostForCustomer is used by automated flows that already resolved the customer.
func (l *Ledger) PostForCustomer(ctx context.Context, in PostInput) (*Entry, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	return l.insert(ctx, in)
}

// Get returns an entry or NotFound.
func (l *Ledger) Get(ctx context.Context, id int64) (*Entry, error) {
	e, err := l.store.GetEntry(ctx, id)
	if err != nil {
		return nil, core.Storage("get ledger entry", err)
	}
	if e == nil {
		return nil, core.NotFound("ledger entry", id)
	}
	return e, nil
}

// List returns the customer's entries in chronological order.
func (l *Ledger) List(ctx context.Context, customerID int64) ([]Entry, error) {
	if customerID <= 0 {
		return nil, core.Invalid("customerId", "is required")
	}
	entries, err := l.store.ListEntries(ctx, customerID)
	if err != nil {
		return nil, core.Storage("list ledger entries", err)
	}
	return entries, nil
}

// Balance folds the customer's ledger and unmigrated legacy records.
func (l *Ledger) Balance(ctx context.Context, customerID int64) (Balance, error) {
	entries, err := l.List(ctx, customerID)
	if err != nil {
		return Balance{}, err
	}
	b := FoldEntries(customerID, entries)

	for _, kind := range []Kind{KindCredit, KindPayment} {
		pending, err := l.UnmigratedLegacy(ctx, kind, customerID)
		if err != nil {
			return Balance{}, err
		}
		for _, r := range pending {
			b.PendingLegacyRecords++
			if kind == KindCredit {
				b.LegacyCredits = b.LegacyCredits.Add(r.Amount)
			} else {
				b.LegacyPayments = b.LegacyPayments.Add(r.Amount)
			}
		}
	}
	b.UnmigratedLegacy = b.LegacyCredits.Sub(b.LegacyPayments)
	b.Total = b.LedgerBalance.Add(b.UnmigratedLegacy)
	return b, nil
}

// FoldEntries computes the ledger-only part of a Balance.
func FoldEntries(customerID int64, entries []Entry) Balance {
	b := Balance{
		CustomerID:     customerID,
		Credits:        decimal.Zero,
		Payments:       decimal.Zero,
		LegacyCredits:  decimal.Zero,
		LegacyPayments: decimal.Zero,
	}
	for _, e := range entries {
		switch e.Kind {
		case KindCredit:
			b.Credits = b.Credits.Add(e.Amount)
		case KindPayment:
			b.Payments = b.Payments.Add(e.Amount)
		}
	}
	b.LedgerBalance = b.Credits.Sub(b.Payments)
	b.UnmigratedLegacy = decimal.Zero
	b.Total = b.LedgerBalance
	return b
}

// UnmigratedLegacy returns legacy records of kind that have no ledger copy yet.
// customerID 0 selects every customer.
func (l *Ledger) UnmigratedLegacy(ctx context.Context, kind Kind, customerID int64) ([]LegacyRecord, error) {
	records, err := l.store.ListLegacy(ctx, kind, customerID)
	if err != nil {
		return nil, core.Storage("list legacy records", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	source := LegacyRecord{Kind: kind}.MigrationSource()
	migrated, err := l.store.MigratedLegacyIDs(ctx, source, customerID)
	if err != nil {
		return nil, core.Storage("list migrated legacy ids", err)
	}
	pending := records[:0]
	for _, r := range records {
		if !migrated[r.ID] {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

// Patch is an operator correction. Nil fields are left unchanged.
type Patch struct {
	Amount *decimal.Decimal
	Note   *string
	Date   *core.Date
}

// Update corrects amount/note/date of an entry. Trusted operator action.
func (l *Ledger) Update(ctx context.Context, id int64, p Patch) (*Entry, error) {
	e, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Amount != nil {
		if err := core.RequirePositive("amount", *p.Amount); err != nil {
			return nil, err
		}
		e.Amount = *p.Amount
	}
	if p.Note != nil {
		e.Note = strings.TrimSpace(*p.Note)
	}
	if p.Date != nil {
		d, err := core.ParseDate(string(*p.Date))
		if err != nil {
			return nil, err
		}
		e.Date = d
	}
	if err := l.store.UpdateEntry(ctx, id, e.Amount, e.Note, e.Date); err != nil {
		return nil, core.Storage("update ledger entry", err)
	}
	return e, nil
}

// Delete removes an entry. Trusted operator action.
func (l *Ledger) Delete(ctx context.Context, id int64) error {
	deleted, err := l.store.DeleteEntry(ctx, id)
	if err != nil {
		return core.Storage("delete ledger entry", err)
	}
	if !deleted {
		return core.NotFound("ledger entry", id)
	}
	return nil
}

// EntriesInMonth returns the customer's entries dated within month.
func (l *Ledger) EntriesInMonth(ctx context.Context, customerID int64, month core.Month) ([]Entry, error) {
	entries, err := l.store.ListEntriesBetween(ctx, customerID, month.FirstDay(), month.LastDay())
	if err != nil {
		return nil, core.Storage("list ledger entries for month", err)
	}
	return entries, nil
}
