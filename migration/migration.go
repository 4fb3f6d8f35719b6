/*
Package migration copies legacy udhar and payment records into the ledger.

IDEMPOTENCE:
  A legacy record is migrated when a ledger entry carries
  source = legacy_udhar|legacy_payment and legacyId = record id. Each run
  copies only records without such an entry. The ledger store enforces
  (source, legacyId) uniqueness, so a record raced by a concurrent run is
  counted as skipped, never copied twice.

  Legacy records are never modified or deleted; the legacy stores remain
  the fallback of record. A record written to a legacy store while a run
  is in progress migrates on the next run.
*/
package migration

import (
	"context"
	"errors"
	"log"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/ledger"
	"github.com/warp/kirana-ledger/metrics"
)

// Result reports one migration run.
type Result struct {
	MigratedCredits  int `json:"migratedCredits"`
	MigratedPayments int `json:"migratedPayments"`
	Skipped          int `json:"skipped"`
}

// Total is the number of records copied by the run.
func (r Result) Total() int { return r.MigratedCredits + r.MigratedPayments }

type Adapter struct {
	ledger *ledger.Ledger
}

func NewAdapter(l *ledger.Ledger) *Adapter {
	return &Adapter{ledger: l}
}

// MigrateLegacyToLedger copies every unmigrated legacy record into the ledger.
func (a *Adapter) MigrateLegacyToLedger(ctx context.Context) (Result, error) {
	var res Result
	for _, kind := range []ledger.Kind{ledger.KindCredit, ledger.KindPayment} {
		pending, err := a.ledger.UnmigratedLegacy(ctx, kind, 0)
		if err != nil {
			return res, err
		}
		for _, r := range pending {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			copied, err := a.migrate(ctx, r)
			if err != nil {
				return res, err
			}
			switch {
			case !copied:
				res.Skipped++
			case kind == ledger.KindCredit:
				res.MigratedCredits++
			default:
				res.MigratedPayments++
			}
		}
	}
	if res.Total() > 0 || res.Skipped > 0 {
		log.Printf("[Migration] copied %d credits, %d payments (%d already present)",
			res.MigratedCredits, res.MigratedPayments, res.Skipped)
	}
	return res, nil
}

// migrate copies one record. Returns false when a ledger copy already exists.
func (a *Adapter) migrate(ctx context.Context, r ledger.LegacyRecord) (bool, error) {
	legacyID := r.ID
	_, err := a.ledger.PostForCustomer(ctx, ledger.PostInput{
		CustomerID: r.CustomerID,
		Kind:       r.Kind,
		Amount:     r.Amount,
		Note:       r.Note,
		Date:       r.Date,
		Source:     r.MigrationSource(),
		LegacyID:   &legacyID,
		Items:      r.Items,
	})
	var conflict *core.ConflictError
	if errors.As(err, &conflict) && conflict.Code == core.CodeDuplicateEntry {
		return false, nil
	}
	if errors.Is(err, core.ErrValidation) {
		// Malformed legacy data stays where it is and is reported every run
		log.Printf("[Migration] legacy %s record %d not migrated: %v", r.Kind, r.ID, err)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	metrics.MigratedRecords.WithLabelValues(string(r.Kind)).Inc()
	return true, nil
}
