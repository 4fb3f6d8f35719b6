package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/ledger"
)

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

const entryColumns = `id, customer_id, kind, amount, note, date, created_at, source, order_id, legacy_id, items_json`

// InsertEntry appends an entry. The partial unique indexes turn a second
// copy of a legacy record or a second order credit/payment into ErrDuplicate.
func (s *Store) InsertEntry(ctx context.Context, e ledger.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.CustomerID, string(e.Kind), e.Amount, e.Note, string(e.Date),
		formatTime(e.CreatedAt), string(e.Source), nullInt64(e.OrderID), nullInt64(e.LegacyID),
		toJSON(e.Items),
	)
	if isUniqueConstraintError(err) {
		return core.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, id int64) (*ledger.Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM ledger_entries WHERE id = ?", id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (s *Store) ListEntries(ctx context.Context, customerID int64) ([]ledger.Entry, error) {
	return s.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE customer_id = ?
		ORDER BY date ASC, created_at ASC, id ASC
	`, customerID)
}

func (s *Store) ListEntriesBetween(ctx context.Context, customerID int64, from, to core.Date) ([]ledger.Entry, error) {
	return s.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE customer_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC, created_at ASC, id ASC
	`, customerID, string(from), string(to))
}

func (s *Store) UpdateEntry(ctx context.Context, id int64, amount decimal.Decimal, note string, date core.Date) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE ledger_entries SET amount = ?, note = ?, date = ? WHERE id = ?",
		amount, note, string(date), id)
	if err != nil {
		return fmt.Errorf("failed to update ledger entry: %w", err)
	}
	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM ledger_entries WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete ledger entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) MigratedLegacyIDs(ctx context.Context, source ledger.Source, customerID int64) (map[int64]bool, error) {
	query := "SELECT legacy_id FROM ledger_entries WHERE source = ? AND legacy_id IS NOT NULL"
	args := []any{string(source)}
	if customerID != 0 {
		query += " AND customer_id = ?"
		args = append(args, customerID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
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
	row := s.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM ledger_entries WHERE source = ? AND legacy_id = ?",
		string(source), legacyID)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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

// scanEntry returns sql.ErrNoRows unwrapped so single-row callers can test it.
func scanEntry(row scanner) (*ledger.Entry, error) {
	var (
		e         ledger.Entry
		kind      string
		date      string
		createdAt string
		source    string
		orderID   sql.NullInt64
		legacyID  sql.NullInt64
		items     sql.NullString
	)
	err := row.Scan(&e.ID, &e.CustomerID, &kind, &e.Amount, &e.Note, &date, &createdAt, &source, &orderID, &legacyID, &items)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
	}
	e.Kind = ledger.Kind(kind)
	e.Date = core.Date(date)
	e.CreatedAt = parseTime(createdAt)
	e.Source = ledger.Source(source)
	e.OrderID = int64Ptr(orderID)
	e.LegacyID = int64Ptr(legacyID)
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
	var (
		where []string
		args  []any
	)
	if customerID != 0 {
		where = append(where, "customer_id = ?")
		args = append(args, customerID)
	}
	query := "SELECT id, customer_id, amount, note, date, created_at, items_json FROM " + table
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date ASC, created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var records []ledger.LegacyRecord
	for rows.Next() {
		var (
			r         ledger.LegacyRecord
			date      string
			createdAt string
			items     sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.CustomerID, &r.Amount, &r.Note, &date, &createdAt, &items); err != nil {
			return nil, fmt.Errorf("failed to scan legacy record: %w", err)
		}
		r.Kind = kind
		r.Date = core.Date(date)
		r.CreatedAt = parseTime(createdAt)
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
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO "+table+" (id, customer_id, amount, note, date, created_at, items_json) VALUES (?, ?, ?, ?, ?, ?, ?)",
		r.ID, r.CustomerID, r.Amount, r.Note, string(r.Date), formatTime(r.CreatedAt), toJSON(r.Items))
	if isUniqueConstraintError(err) {
		return core.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert legacy record: %w", err)
	}
	return nil
}
