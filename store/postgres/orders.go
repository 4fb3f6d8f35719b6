package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/warp/kirana-ledger/orders"
)

// =============================================================================
// ORDER STORE (orders.Store interface)
// =============================================================================

const orderSelect = `SELECT id, customer_name, phone, customer_id, address::text, items::text,
	subtotal::text, total::text, status, payment_method, notes, added_to_udhar, credit_entry_id,
	stock_restored, paid, paid_entry_id, created_at, updated_at, delivered_at, cancelled_at, paid_at
	FROM orders`

func orderArgs(o orders.Order) []any {
	return []any{
		o.ID, o.CustomerName, o.Phone, o.CustomerID, toJSON(o.Address), toJSON(o.Items),
		o.Subtotal.String(), o.Total.String(), string(o.Status), string(o.PaymentMethod), o.Notes,
		o.AddedToUdhar, o.CreditEntryID, o.StockRestored, o.Paid, o.PaidEntryID,
		o.CreatedAt.UTC(), o.UpdatedAt.UTC(), utc(o.DeliveredAt), utc(o.CancelledAt), utc(o.PaidAt),
	}
}

func (s *Store) InsertOrder(ctx context.Context, o orders.Order) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO orders (id, customer_name, phone, customer_id, address, items, subtotal, total,
			status, payment_method, notes, added_to_udhar, credit_entry_id, stock_restored, paid, paid_entry_id,
			created_at, updated_at, delivered_at, cancelled_at, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`, orderArgs(o)...)
	return classify("insert order", err)
}

// UpdateOrder rewrites every mutable column of the order.
func (s *Store) UpdateOrder(ctx context.Context, o orders.Order) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE orders SET
			customer_name = $2, phone = $3, customer_id = $4, address = $5, items = $6, subtotal = $7, total = $8,
			status = $9, payment_method = $10, notes = $11, added_to_udhar = $12, credit_entry_id = $13,
			stock_restored = $14, paid = $15, paid_entry_id = $16, created_at = $17, updated_at = $18,
			delivered_at = $19, cancelled_at = $20, paid_at = $21
		WHERE id = $1
	`, orderArgs(o)...)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return nil
}

// ClaimRestock is a conditional UPDATE so concurrent cancels restock once.
func (s *Store) ClaimRestock(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET stock_restored = TRUE WHERE id = $1 AND stock_restored = FALSE
	`, id)
	if err != nil {
		return false, fmt.Errorf("failed to claim restock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*orders.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, orderSelect+" WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

func (s *Store) ListOrders(ctx context.Context, f orders.Filter) ([]orders.Order, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	switch {
	case f.CustomerID != 0 && f.Phone != "":
		where = append(where, "(customer_id = "+arg(f.CustomerID)+" OR phone = "+arg(f.Phone)+")")
	case f.CustomerID != 0:
		where = append(where, "customer_id = "+arg(f.CustomerID))
	case f.Phone != "":
		where = append(where, "phone = "+arg(f.Phone))
	}
	if !f.From.IsZero() {
		where = append(where, "created_at >= "+arg(f.From.UTC()))
	}
	if !f.To.IsZero() {
		where = append(where, "created_at < "+arg(f.To.UTC()))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}

	query := orderSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var list []orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *o)
	}
	return list, rows.Err()
}

func scanOrder(row scanner) (*orders.Order, error) {
	var (
		o             orders.Order
		address       *string
		items         *string
		subtotal      string
		total         string
		status        string
		paymentMethod string
	)
	err := row.Scan(
		&o.ID, &o.CustomerName, &o.Phone, &o.CustomerID, &address, &items, &subtotal, &total,
		&status, &paymentMethod, &o.Notes, &o.AddedToUdhar, &o.CreditEntryID, &o.StockRestored, &o.Paid,
		&o.PaidEntryID, &o.CreatedAt, &o.UpdatedAt, &o.DeliveredAt, &o.CancelledAt, &o.PaidAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	if err := fromJSON(address, &o.Address); err != nil {
		return nil, fmt.Errorf("failed to decode order address: %w", err)
	}
	if err := fromJSON(items, &o.Items); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}
	if o.Subtotal, err = parseDecimal(subtotal); err != nil {
		return nil, err
	}
	if o.Total, err = parseDecimal(total); err != nil {
		return nil, err
	}
	o.Status = orders.Status(status)
	o.PaymentMethod = orders.PaymentMethod(paymentMethod)
	return &o, nil
}
