package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/milk"
)

// =============================================================================
// MILK STORE (milk.Store interface)
// =============================================================================

const subscriptionColumns = `id, customer_id, default_qty, default_items_json, price_per_litre, status,
	pause_from, pause_to, created_at, updated_at`

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func decimalPtr(nd decimal.NullDecimal) *decimal.Decimal {
	if !nd.Valid {
		return nil
	}
	d := nd.Decimal
	return &d
}

func (s *Store) InsertSubscription(ctx context.Context, sub milk.Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO milk_subscriptions (`+subscriptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sub.ID, sub.CustomerID, sub.DefaultQty, toJSON(sub.DefaultItems), nullDecimal(sub.PricePerLitre),
		string(sub.Status), nullDate(sub.PauseFrom), nullDate(sub.PauseTo),
		formatTime(sub.CreatedAt), formatTime(sub.UpdatedAt),
	)
	if isUniqueConstraintError(err) {
		return core.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, customerID int64) (*milk.Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+subscriptionColumns+" FROM milk_subscriptions WHERE customer_id = ?", customerID)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sub, err
}

func (s *Store) UpdateSubscription(ctx context.Context, sub milk.Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE milk_subscriptions
		SET default_qty = ?, default_items_json = ?, price_per_litre = ?, status = ?,
		    pause_from = ?, pause_to = ?, updated_at = ?
		WHERE customer_id = ?
	`,
		sub.DefaultQty, toJSON(sub.DefaultItems), nullDecimal(sub.PricePerLitre), string(sub.Status),
		nullDate(sub.PauseFrom), nullDate(sub.PauseTo), formatTime(sub.UpdatedAt), sub.CustomerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context) ([]milk.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+subscriptionColumns+" FROM milk_subscriptions ORDER BY customer_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []milk.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func scanSubscription(row scanner) (*milk.Subscription, error) {
	var (
		sub       milk.Subscription
		items     sql.NullString
		price     decimal.NullDecimal
		status    string
		pauseFrom sql.NullString
		pauseTo   sql.NullString
		createdAt string
		updatedAt string
	)
	err := row.Scan(&sub.ID, &sub.CustomerID, &sub.DefaultQty, &items, &price, &status,
		&pauseFrom, &pauseTo, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	if err := fromJSON(items, &sub.DefaultItems); err != nil {
		return nil, fmt.Errorf("failed to decode default items: %w", err)
	}
	sub.PricePerLitre = decimalPtr(price)
	sub.Status = milk.Status(status)
	sub.PauseFrom = datePtr(pauseFrom)
	sub.PauseTo = datePtr(pauseTo)
	sub.CreatedAt = parseTime(createdAt)
	sub.UpdatedAt = parseTime(updatedAt)
	return &sub, nil
}

// =============================================================================
// DELIVERY LOGS
// =============================================================================

const logColumns = `id, customer_id, date, qty, items_json, price, created_at`

func (s *Store) InsertLog(ctx context.Context, l milk.Log) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO milk_logs (`+logColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.CustomerID, string(l.Date), l.Qty, toJSON(l.Items), nullDecimal(l.Price), formatTime(l.CreatedAt))
	if isUniqueConstraintError(err) {
		return core.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert milk log: %w", err)
	}
	return nil
}

// UpsertLog replaces the (customer, date) row in place.
func (s *Store) UpsertLog(ctx context.Context, l milk.Log) (milk.Log, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO milk_logs (`+logColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(customer_id, date) DO UPDATE SET
			qty = excluded.qty,
			items_json = excluded.items_json,
			price = excluded.price
		RETURNING `+logColumns,
		l.ID, l.CustomerID, string(l.Date), l.Qty, toJSON(l.Items), nullDecimal(l.Price), formatTime(l.CreatedAt))
	stored, err := scanLog(row)
	if err != nil {
		return milk.Log{}, fmt.Errorf("failed to upsert milk log: %w", err)
	}
	return *stored, nil
}

func (s *Store) ListLogs(ctx context.Context, customerID int64, month core.Month) ([]milk.Log, error) {
	return s.queryLogs(ctx, `
		SELECT `+logColumns+` FROM milk_logs
		WHERE customer_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, customerID, string(month.FirstDay()), string(month.LastDay()))
}

func (s *Store) ListLogsForMonth(ctx context.Context, month core.Month) ([]milk.Log, error) {
	return s.queryLogs(ctx, `
		SELECT `+logColumns+` FROM milk_logs
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC, customer_id ASC
	`, string(month.FirstDay()), string(month.LastDay()))
}

func (s *Store) queryLogs(ctx context.Context, query string, args ...any) ([]milk.Log, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query milk logs: %w", err)
	}
	defer rows.Close()

	var logs []milk.Log
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

func scanLog(row scanner) (*milk.Log, error) {
	var (
		l         milk.Log
		date      string
		items     sql.NullString
		price     decimal.NullDecimal
		createdAt string
	)
	if err := row.Scan(&l.ID, &l.CustomerID, &date, &l.Qty, &items, &price, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan milk log: %w", err)
	}
	l.Date = core.Date(date)
	if err := fromJSON(items, &l.Items); err != nil {
		return nil, fmt.Errorf("failed to decode log items: %w", err)
	}
	l.Price = decimalPtr(price)
	l.CreatedAt = parseTime(createdAt)
	return &l, nil
}

// =============================================================================
// MILK PAYMENTS
// =============================================================================

func (s *Store) InsertMilkPayment(ctx context.Context, p milk.Payment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO milk_payments (id, customer_id, month, amount, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.CustomerID, string(p.Month), p.Amount, p.Note, formatTime(p.CreatedAt))
	if isUniqueConstraintError(err) {
		return core.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert milk payment: %w", err)
	}
	return nil
}

func (s *Store) ListMilkPayments(ctx context.Context, customerID int64, month core.Month) ([]milk.Payment, error) {
	return s.queryMilkPayments(ctx, `
		SELECT id, customer_id, month, amount, note, created_at FROM milk_payments
		WHERE customer_id = ? AND month = ? ORDER BY id
	`, customerID, string(month))
}

func (s *Store) ListMilkPaymentsForMonth(ctx context.Context, month core.Month) ([]milk.Payment, error) {
	return s.queryMilkPayments(ctx, `
		SELECT id, customer_id, month, amount, note, created_at FROM milk_payments
		WHERE month = ? ORDER BY id
	`, string(month))
}

func (s *Store) queryMilkPayments(ctx context.Context, query string, args ...any) ([]milk.Payment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query milk payments: %w", err)
	}
	defer rows.Close()

	var payments []milk.Payment
	for rows.Next() {
		var (
			p         milk.Payment
			month     string
			createdAt string
		)
		if err := rows.Scan(&p.ID, &p.CustomerID, &month, &p.Amount, &p.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan milk payment: %w", err)
		}
		p.Month = core.Month(month)
		p.CreatedAt = parseTime(createdAt)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
