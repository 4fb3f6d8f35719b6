package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/warp/kirana-ledger/customers"
)

// =============================================================================
// CUSTOMER STORE (customers.Store interface)
// =============================================================================

const customerSelect = `SELECT id, phone, name, address::text, credit_limit::text, state,
	deleted_at, pin_hash, created_at FROM customers`

func (s *Store) InsertCustomer(ctx context.Context, c customers.Customer) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO customers (id, phone, name, address, credit_limit, state, deleted_at, pin_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		c.ID, c.Phone, c.Name, toJSON(c.Address), c.CreditLimit.String(), string(c.State),
		utc(c.DeletedAt), stringArg(c.PINHash), c.CreatedAt.UTC(),
	)
	return classify("insert customer", err)
}

func (s *Store) UpdateCustomer(ctx context.Context, c customers.Customer) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE customers
		SET phone = $1, name = $2, address = $3, credit_limit = $4, state = $5, deleted_at = $6, pin_hash = $7
		WHERE id = $8
	`,
		c.Phone, c.Name, toJSON(c.Address), c.CreditLimit.String(), string(c.State),
		utc(c.DeletedAt), stringArg(c.PINHash), c.ID,
	)
	return classify("update customer", err)
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*customers.Customer, error) {
	return scanCustomer(s.pool.QueryRow(ctx, customerSelect+" WHERE id = $1", id))
}

func (s *Store) FindActiveCustomerByPhone(ctx context.Context, phone string) (*customers.Customer, error) {
	return scanCustomer(s.pool.QueryRow(ctx, customerSelect+" WHERE phone = $1 AND state = 'active'", phone))
}

func (s *Store) ListCustomers(ctx context.Context, includeDeleted bool) ([]customers.Customer, error) {
	query := customerSelect
	if !includeDeleted {
		query += " WHERE state = 'active'"
	}
	query += " ORDER BY id"

	rows, err := s.pool.Query(ctx, query)
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmts := []struct {
		query string
		args  []any
	}{
		{"DELETE FROM ledger_entries WHERE customer_id = $1", []any{id}},
		{"DELETE FROM legacy_udhar_entries WHERE customer_id = $1", []any{id}},
		{"DELETE FROM legacy_udhar_payments WHERE customer_id = $1", []any{id}},
		{"DELETE FROM orders WHERE customer_id = $1 OR (customer_id IS NULL AND phone = $2)", []any{id, c.Phone}},
		{"DELETE FROM milk_subscriptions WHERE customer_id = $1", []any{id}},
		{"DELETE FROM milk_logs WHERE customer_id = $1", []any{id}},
		{"DELETE FROM milk_payments WHERE customer_id = $1", []any{id}},
		{"DELETE FROM customers WHERE id = $1", []any{id}},
	}
	for _, st := range stmts {
		if _, err := tx.Exec(ctx, st.query, st.args...); err != nil {
			return fmt.Errorf("failed to hard delete customer %d: %w", id, err)
		}
	}
	return tx.Commit(ctx)
}

func scanCustomer(row scanner) (*customers.Customer, error) {
	var (
		c           customers.Customer
		address     *string
		creditLimit string
		state       string
		deletedAt   *time.Time
		pinHash     *string
	)
	err := row.Scan(&c.ID, &c.Phone, &c.Name, &address, &creditLimit, &state, &deletedAt, &pinHash, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan customer: %w", err)
	}
	if err := fromJSON(address, &c.Address); err != nil {
		return nil, fmt.Errorf("failed to decode customer address: %w", err)
	}
	if c.CreditLimit, err = parseDecimal(creditLimit); err != nil {
		return nil, err
	}
	c.State = customers.State(state)
	c.DeletedAt = deletedAt
	if pinHash != nil {
		c.PINHash = *pinHash
	}
	return &c, nil
}
