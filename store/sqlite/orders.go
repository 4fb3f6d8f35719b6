package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/orders"
)

// =============================================================================
// ORDER STORE (orders.Store interface)
// =============================================================================

const orderColumns = `id, customer_name, phone, customer_id, address_json, items_json, subtotal, total,
	status, payment_method, notes, added_to_udhar, credit_entry_id, stock_restored, paid, paid_entry_id,
	created_at, updated_at, delivered_at, cancelled_at, paid_at`

func orderArgs(o orders.Order) []any {
	return []any{
		o.ID, o.CustomerName, o.Phone, nullInt64(o.CustomerID), toJSON(o.Address), toJSON(o.Items),
		o.Subtotal, o.Total, string(o.Status), string(o.PaymentMethod), o.Notes,
		o.AddedToUdhar, nullInt64(o.CreditEntryID), o.StockRestored, o.Paid, nullInt64(o.PaidEntryID),
		formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
		nullTime(o.DeliveredAt), nullTime(o.CancelledAt), nullTime(o.PaidAt),
	}
}

func (s *Store) InsertOrder(ctx context.Context, o orders.Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, orderArgs(o)...)
	if isUniqueConstraintError(err) {
		return core.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// UpdateOrder rewrites every mutable column of the order.
func (s *Store) UpdateOrder(ctx context.Context, o orders.Order) error {
	args := orderArgs(o)
	// Move id to the end for the WHERE clause
	args = append(args[1:], o.ID)
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders SET
			customer_name = ?, phone = ?, customer_id = ?, address_json = ?, items_json = ?, subtotal = ?, total = ?,
			status = ?, payment_method = ?, notes = ?, added_to_udhar = ?, credit_entry_id = ?, stock_restored = ?,
			paid = ?, paid_entry_id = ?, created_at = ?, updated_at = ?, delivered_at = ?, cancelled_at = ?, paid_at = ?
		WHERE id = ?
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return nil
}

// ClaimRestock is a conditional UPDATE so concurrent cancels restock once.
func (s *Store) ClaimRestock(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET stock_restored = TRUE WHERE id = ? AND stock_restored = FALSE
	`, id)
	if err != nil {
		return false, fmt.Errorf("failed to claim restock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*orders.Order, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = ?", id)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return o, err
}

func (s *Store) ListOrders(ctx context.Context, f orders.Filter) ([]orders.Order, error) {
	var (
		where []string
		args  []any
	)
	switch {
	case f.CustomerID != 0 && f.Phone != "":
		where = append(where, "(customer_id = ? OR phone = ?)")
		args = append(args, f.CustomerID, f.Phone)
	case f.CustomerID != 0:
		where = append(where, "customer_id = ?")
		args = append(args, f.CustomerID)
	case f.Phone != "":
		where = append(where, "phone = ?")
		args = append(args, f.Phone)
	}
	if !f.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, formatTime(f.To))
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	query := "SELECT " + orderColumns + " FROM orders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
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
		customerID    sql.NullInt64
		address       sql.NullString
		items         sql.NullString
		status        string
		paymentMethod string
		creditEntryID sql.NullInt64
		paidEntryID   sql.NullInt64
		createdAt     string
		updatedAt     string
		deliveredAt   sql.NullString
		cancelledAt   sql.NullString
		paidAt        sql.NullString
	)
	err := row.Scan(
		&o.ID, &o.CustomerName, &o.Phone, &customerID, &address, &items, &o.Subtotal, &o.Total,
		&status, &paymentMethod, &o.Notes, &o.AddedToUdhar, &creditEntryID, &o.StockRestored, &o.Paid, &paidEntryID,
		&createdAt, &updatedAt, &deliveredAt, &cancelledAt, &paidAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	o.CustomerID = int64Ptr(customerID)
	if err := fromJSON(address, &o.Address); err != nil {
		return nil, fmt.Errorf("failed to decode order address: %w", err)
	}
	if err := fromJSON(items, &o.Items); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}
	o.Status = orders.Status(status)
	o.PaymentMethod = orders.PaymentMethod(paymentMethod)
	o.CreditEntryID = int64Ptr(creditEntryID)
	o.PaidEntryID = int64Ptr(paidEntryID)
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = parseTime(updatedAt)
	o.DeliveredAt = parseNullTime(deliveredAt)
	o.CancelledAt = parseNullTime(cancelledAt)
	o.PaidAt = parseNullTime(paidAt)
	return &o, nil
}
