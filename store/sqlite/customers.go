package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/customers"
)

// =============================================================================
// CUSTOMER STORE (customers.Store interface)
// =============================================================================

const customerColumns = `id, phone, name, address_json, credit_limit, state, deleted_at, pin_hash, created_at`

func (s *Store) InsertCustomer(ctx context.Context, c customers.Customer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.Phone, c.Name, toJSON(c.Address), c.CreditLimit, string(c.State),
		nullTime(c.DeletedAt), nullString(c.PINHash), formatTime(c.CreatedAt),
	)
	if isUniqueConstraintError(err) {
		return core.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert customer: %w", err)
	}
	return nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c customers.Customer) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET phone = ?, name = ?, address_json = ?, credit_limit = ?, state = ?, deleted_at = ?, pin_hash = ?
		WHERE id = ?
	`,
		c.Phone, c.Name, toJSON(c.Address), c.CreditLimit, string(c.State),
		nullTime(c.DeletedAt), nullString(c.PINHash), c.ID,
	)
	if isUniqueConstraintError(err) {
		return core.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*customers.Customer, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+customerColumns+" FROM customers WHERE id = ?", id)
	return scanCustomer(row)
}

func (s *Store) FindActiveCustomerByPhone(ctx context.Context, phone string) (*customers.Customer, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE phone = ? AND state = 'active'", phone)
	return scanCustomer(row)
}

func (s *Store) ListCustomers(ctx context.Context, includeDeleted bool) ([]customers.Customer, error) {
	query := "SELECT " + customerColumns + " FROM customers"
	if !includeDeleted {
		query += " WHERE state = 'active'"
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var list []customers.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}

// HardDeleteCustomer removes the customer and all related rows in one transaction.
func (s *Store) HardDeleteCustomer(ctx context.Context, id int64) error {
	c, err := s.GetCustomer(ctx, id)
	if err != nil || c == nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmts := []struct {
		query string
		args  []any
	}{
		{"DELETE FROM ledger_entries WHERE customer_id = ?", []any{id}},
		{"DELETE FROM legacy_udhar_entries WHERE customer_id = ?", []any{id}},
		{"DELETE FROM legacy_udhar_payments WHERE customer_id = ?", []any{id}},
		{"DELETE FROM orders WHERE customer_id = ? OR (customer_id IS NULL AND phone = ?)", []any{id, c.Phone}},
		{"DELETE FROM milk_subscriptions WHERE customer_id = ?", []any{id}},
		{"DELETE FROM milk_logs WHERE customer_id = ?", []any{id}},
		{"DELETE FROM milk_payments WHERE customer_id = ?", []any{id}},
		{"DELETE FROM customers WHERE id = ?", []any{id}},
	}
	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, st.query, st.args...); err != nil {
			return fmt.Errorf("failed to hard delete customer %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row scanner) (*customers.Customer, error) {
	var (
		c         customers.Customer
		address   sql.NullString
		state     string
		deletedAt sql.NullString
		pinHash   sql.NullString
		createdAt string
	)
	err := row.Scan(&c.ID, &c.Phone, &c.Name, &address, &c.CreditLimit, &state, &deletedAt, &pinHash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan customer: %w", err)
	}
	if err := fromJSON(address, &c.Address); err != nil {
		return nil, fmt.Errorf("failed to decode customer address: %w", err)
	}
	c.State = customers.State(state)
	c.DeletedAt = parseNullTime(deletedAt)
	c.PINHash = pinHash.String
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}
