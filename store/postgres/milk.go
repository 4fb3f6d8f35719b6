package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/milk"
)

// =============================================================================
// MILK STORE (milk.Store interface)
// =============================================================================

const subscriptionSelect = `SELECT id, customer_id, default_qty::text, default_items::text,
	price_per_litre::text, status, pause_from, pause_to, created_at, updated_at FROM milk_subscriptions`

func (s *Store) InsertSubscription(ctx context.Context, sub milk.Subscription) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO milk_subscriptions (id, customer_id, default_qty, default_items, price_per_litre, status,
			pause_from, pause_to, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		sub.ID, sub.CustomerID, sub.DefaultQty.String(), toJSON(sub.DefaultItems), decimalArg(sub.PricePerLitre),
		string(sub.Status), dateArg(sub.PauseFrom), dateArg(sub.PauseTo), sub.CreatedAt.UTC(), sub.UpdatedAt.UTC(),
	)
	return classify("insert subscription", err)
}

func (s *Store) GetSubscription(ctx context.Context, customerID int64) (*milk.Subscription, error) {
	sub, err := scanSubscription(s.pool.QueryRow(ctx, subscriptionSelect+" WHERE customer_id = $1", customerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

func (s *Store) UpdateSubscription(ctx context.Context, sub milk.Subscription) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE milk_subscriptions
		SET default_qty = $1, default_items = $2, price_per_litre = $3, status = $4,
		    pause_from = $5, pause_to = $6, updated_at = $7
		WHERE customer_id = $8
	`,
		sub.DefaultQty.String(), toJSON(sub.DefaultItems), decimalArg(sub.PricePerLitre), string(sub.Status),
		dateArg(sub.PauseFrom), dateArg(sub.PauseTo), sub.UpdatedAt.UTC(), sub.CustomerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context) ([]milk.Subscription, error) {
	rows, err := s.pool.Query(ctx, subscriptionSelect+" ORDER BY customer_id")
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
		sub        milk.Subscription
		defaultQty string
		items      *string
		price      *string
		status     string
		pauseFrom  *string
		pauseTo    *string
	)
	err := row.Scan(&sub.ID, &sub.CustomerID, &defaultQty, &items, &price, &status,
		&pauseFrom, &pauseTo, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	if sub.DefaultQty, err = parseDecimal(defaultQty); err != nil {
		return nil, err
	}
	if sub.PricePerLitre, err = parseDecimalPtr(price); err != nil {
		return nil, err
	}
	if err := fromJSON(items, &sub.DefaultItems); err != nil {
		return nil, fmt.Errorf("failed to decode default items: %w", err)
	}
	sub.Status = milk.Status(status)
	sub.PauseFrom = datePtr(pauseFrom)
	sub.PauseTo = datePtr(pauseTo)
	return &sub, nil
}

// =============================================================================
// DELIVERY LOGS
// =============================================================================

const logReturning = `id, customer_id, date, qty::text, items::text, price::text, created_at`

func (s *Store) InsertLog(ctx context.Context, l milk.Log) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO milk_logs (id, customer_id, date, qty, items, price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, l.ID, l.CustomerID, string(l.Date), l.Qty.String(), toJSON(l.Items), decimalArg(l.Price), l.CreatedAt.UTC())
	return classify("insert milk log", err)
}

// UpsertLog replaces the (customer, date) row in place.
func (s *Store) UpsertLog(ctx context.Context, l milk.Log) (milk.Log, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO milk_logs (id, customer_id, date, qty, items, price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (customer_id, date) DO UPDATE SET
			qty = EXCLUDED.qty,
			items = EXCLUDED.items,
			price = EXCLUDED.price
		RETURNING `+logReturning,
		l.ID, l.CustomerID, string(l.Date), l.Qty.String(), toJSON(l.Items), decimalArg(l.Price), l.CreatedAt.UTC())
	stored, err := scanLog(row)
	if err != nil {
		return milk.Log{}, fmt.Errorf("failed to upsert milk log: %w", err)
	}
	return *stored, nil
}

func (s *Store) ListLogs(ctx context.Context, customerID int64, month core.Month) ([]milk.Log, error) {
	return s.queryLogs(ctx, `
		SELECT `+logReturning+` FROM milk_logs
		WHERE customer_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`, customerID, string(month.FirstDay()), string(month.LastDay()))
}

func (s *Store) ListLogsForMonth(ctx context.Context, month core.Month) ([]milk.Log, error) {
	return s.queryLogs(ctx, `
		SELECT `+logReturning+` FROM milk_logs
		WHERE date >= $1 AND date <= $2
		ORDER BY date ASC, customer_id ASC
	`, string(month.FirstDay()), string(month.LastDay()))
}

func (s *Store) queryLogs(ctx context.Context, query string, args ...any) ([]milk.Log, error) {
	rows, err := s.pool.Query(ctx, query, args...)
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
		l     milk.Log
		date  string
		qty   string
		items *string
		price *string
	)
	if err := row.Scan(&l.ID, &l.CustomerID, &date, &qty, &items, &price, &l.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan milk log: %w", err)
	}
	var err error
	if l.Qty, err = parseDecimal(qty); err != nil {
		return nil, err
	}
	if l.Price, err = parseDecimalPtr(price); err != nil {
		return nil, err
	}
	if err := fromJSON(items, &l.Items); err != nil {
		return nil, fmt.Errorf("failed to decode log items: %w", err)
	}
	l.Date = core.Date(date)
	return &l, nil
}

// =============================================================================
// MILK PAYMENTS
// =============================================================================

func (s *Store) InsertMilkPayment(ctx context.Context, p milk.Payment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO milk_payments (id, customer_id, month, amount, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.CustomerID, string(p.Month), p.Amount.String(), p.Note, p.CreatedAt.UTC())
	return classify("insert milk payment", err)
}

func (s *Store) ListMilkPayments(ctx context.Context, customerID int64, month core.Month) ([]milk.Payment, error) {
	return s.queryMilkPayments(ctx, `
		SELECT id, customer_id, month, amount::text, note, created_at FROM milk_payments
		WHERE customer_id = $1 AND month = $2 ORDER BY id
	`, customerID, string(month))
}

func (s *Store) ListMilkPaymentsForMonth(ctx context.Context, month core.Month) ([]milk.Payment, error) {
	return s.queryMilkPayments(ctx, `
		SELECT id, customer_id, month, amount::text, note, created_at FROM milk_payments
		WHERE month = $1 ORDER BY id
	`, string(month))
}

func (s *Store) queryMilkPayments(ctx context.Context, query string, args ...any) ([]milk.Payment, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query milk payments: %w", err)
	}
	defer rows.Close()

	var payments []milk.Payment
	for rows.Next() {
		var (
			p      milk.Payment
			month  string
			amount string
		)
		if err := rows.Scan(&p.ID, &p.CustomerID, &month, &amount, &p.Note, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan milk payment: %w", err)
		}
		if p.Amount, err = parseDecimal(amount); err != nil {
			return nil, err
		}
		p.Month = core.Month(month)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
