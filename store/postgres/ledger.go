package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/ledger"
)

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

const entrySelect = `SELECT id, customer_id, kind, amount::text, note, date, created_at, source,
	order_id, legacy_id, items::text FROM ledger_entries`

func (s *Store) InsertEntry(ctx context.Context, e ledger.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ledger_entries (id, customer_id, kind, amount, note, date, created_at, source, order_id, legacy_id, items)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		e.ID, e.CustomerID, string(e.Kind), e.Amount.String(), e.Note, string(e.Date),
		e.CreatedAt.UTC(), string(e.Source), e.OrderID, e.LegacyID, toJSON(e.Items),
	)
	return classify("insert ledger entry", err)
}

func (s *Store) GetEntry(ctx context.Context, id int64) (*ledger.Entry, error) {
	e, err := scanEntry(s.pool.QueryRow(ctx, entrySelect+" WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (s *Store) ListEntries(ctx context.Context, customerID int64) ([]ledger.Entry, error) {
	return s.queryEntries(ctx, entrySelect+`
		WHERE customer_id = $1
		ORDER BY date ASC, created_at ASC, id ASC
	`, customerID)
}

func (s *Store) ListEntriesBetween(ctx context.Context, customerID int64, from, to core.Date) ([]ledger.Entry, error) {
	return s.queryEntries(ctx, entrySelect+`
		WHERE customer_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC, created_at ASC, id ASC
	`, customerID, string(from), string(to))
}

func (s *Store) UpdateEntry(ctx context.Context, id int64, amount decimal.Decimal, note string, date core.Date) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE ledger_entries SET amount = $1, note = $2, date = $3 WHERE id = $4",
		amount.String(), note, string(date), id)
	if err != nil {
		return fmt.Errorf("failed to update ledger entry: %w", err)
	}
	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM ledger_entries WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete ledger entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) MigratedLegacyIDs(ctx context.Context, source ledger.Source, customerID int64) (map[int64]bool, error) {
	query := "SELECT legacy_id FROM ledger_entries WHERE source = $1 AND legacy_id IS NOT NULL"
	args := []any{string(source)}
	if customerID != 0 {
		query += " AND customer_id = $2"
		args = append(args, customerID)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrated legacy ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func (s *Store) FindByLegacyID(ctx context.Context, source ledger.Source, legacyID int64) (*ledger.Entry, error) {
	e, err := scanEntry(s.pool.QueryRow(ctx,
		entrySelect+" WHERE source = $1 AND legacy_id = $2", string(source), legacyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]ledger.Entry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// scanEntry returns pgx.ErrNoRows unwrapped so single-row callers can test it.
func scanEntry(row scanner) (*ledger.Entry, error) {
	var (
		e      ledger.Entry
		kind   string
		amount string
		date   string
		source string
		items  *string
	)
	err := row.Scan(&e.ID, &e.CustomerID, &kind, &amount, &e.Note, &date, &e.CreatedAt, &source,
		&e.OrderID, &e.LegacyID, &items)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
	}
	if e.Amount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	e.Kind = ledger.Kind(kind)
	e.Date = core.Date(date)
	e.Source = ledger.Source(source)
	if err := fromJSON(items, &e.Items); err != nil {
		return nil, fmt.Errorf("failed to decode entry items: %w", err)
	}
	return &e, nil
}

// =============================================================================
// LEGACY STORES
// =============================================================================

func legacyTable(kind ledger.Kind) (string, error) {
	switch kind {
	case ledger.KindCredit:
		return "legacy_udhar_entries", nil
	case ledger.KindPayment:
		return "legacy_udhar_payments", nil
	}
	return "", fmt.Errorf("unknown legacy kind %q", kind)
}

func (s *Store) ListLegacy(ctx context.Context, kind ledger.Kind, customerID int64) ([]ledger.LegacyRecord, error) {
	table, err := legacyTable(kind)
	if err != nil {
		return nil, err
	}
	query := "SELECT id, customer_id, amount::text, note, date, created_at, items::text FROM " + table
	var args []any
	if customerID != 0 {
		query += " WHERE customer_id = $1"
		args = append(args, customerID)
	}
	query += " ORDER BY date ASC, created_at ASC, id ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var records []ledger.LegacyRecord
	for rows.Next() {
		var (
			r         ledger.LegacyRecord
			amount    string
			date      string
			createdAt time.Time
			items     *string
		)
		if err := rows.Scan(&r.ID, &r.CustomerID, &amount, &r.Note, &date, &createdAt, &items); err != nil {
			return nil, fmt.Errorf("failed to scan legacy record: %w", err)
		}
		if r.Amount, err = parseDecimal(amount); err != nil {
			return nil, err
		}
		r.Kind = kind
		r.Date = core.Date(date)
		r.CreatedAt = createdAt
		if err := fromJSON(items, &r.Items); err != nil {
			return nil, fmt.Errorf("failed to decode legacy items: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) InsertLegacy(ctx context.Context, r ledger.LegacyRecord) error {
	table, err := legacyTable(r.Kind)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		"INSERT INTO "+table+" (id, customer_id, amount, note, date, created_at, items) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		r.ID, r.CustomerID, r.Amount.String(), r.Note, string(r.Date), r.CreatedAt.UTC(), toJSON(r.Items))
	return classify("insert legacy record", err)
}
