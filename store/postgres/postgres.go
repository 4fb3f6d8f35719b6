/*
Package postgres provides a PostgreSQL implementation of the storage
interfaces for deployments running several server instances against one
database.

DIFFERENCES FROM store/sqlite:
  - Connection pool (pgxpool) instead of a single connection; atomicity of
    stock decrement, counter increment and uniqueness comes from single
    statements and unique indexes, not from serialization.
  - Money columns are NUMERIC; values cross the wire as text so no float
    rounding is ever involved.
  - Timestamps are TIMESTAMPTZ; calendar dates and months stay TEXT
    (YYYY-MM-DD / YYYY-MM) so they compare lexically like the domain types.

ERRORS:
  Unique violations (SQLSTATE 23505) map to core.ErrDuplicate.
*/
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/customers"
	"github.com/warp/kirana-ledger/inventory"
	"github.com/warp/kirana-ledger/ledger"
	"github.com/warp/kirana-ledger/milk"
	"github.com/warp/kirana-ledger/orders"
	"github.com/warp/kirana-ledger/sequence"
	"github.com/warp/kirana-ledger/settings"
)

var (
	_ sequence.CounterStore = (*Store)(nil)
	_ customers.Store       = (*Store)(nil)
	_ inventory.Catalog     = (*Store)(nil)
	_ ledger.Store          = (*Store)(nil)
	_ orders.Store          = (*Store)(nil)
	_ milk.Store            = (*Store)(nil)
	_ settings.Store        = (*Store)(nil)
)

type Store struct {
	pool *pgxpool.Pool
}

// New connects to connStr, verifies the connection and migrates the schema.
func New(ctx context.Context, connStr string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS counters (
		name TEXT PRIMARY KEY,
		value BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS customers (
		id BIGINT PRIMARY KEY,
		phone TEXT NOT NULL,
		name TEXT NOT NULL,
		address JSONB,
		credit_limit NUMERIC NOT NULL DEFAULT 0,
		state TEXT NOT NULL DEFAULT 'active',
		deleted_at TIMESTAMPTZ,
		pin_hash TEXT,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_customers_active_phone
		ON customers(phone) WHERE state = 'active';

	CREATE TABLE IF NOT EXISTS products (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		barcode TEXT,
		disabled BOOLEAN NOT NULL DEFAULT FALSE,
		tiers JSONB,
		variants JSONB,
		stock_quantity INTEGER CHECK (stock_quantity IS NULL OR stock_quantity >= 0),
		low_stock_threshold INTEGER NOT NULL DEFAULT 0 CHECK (low_stock_threshold >= 0)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_products_barcode
		ON products(barcode) WHERE barcode IS NOT NULL;

	CREATE TABLE IF NOT EXISTS ledger_entries (
		id BIGINT PRIMARY KEY,
		customer_id BIGINT NOT NULL,
		kind TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		source TEXT NOT NULL DEFAULT 'manual',
		order_id BIGINT,
		legacy_id BIGINT,
		items JSONB
	);
	CREATE INDEX IF NOT EXISTS idx_ledger_customer_date
		ON ledger_entries(customer_id, date, created_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_legacy
		ON ledger_entries(source, legacy_id) WHERE legacy_id IS NOT NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_order
		ON ledger_entries(source, order_id)
		WHERE order_id IS NOT NULL AND source IN ('app_order', 'order_payment');

	CREATE TABLE IF NOT EXISTS legacy_udhar_entries (
		id BIGINT PRIMARY KEY,
		customer_id BIGINT NOT NULL,
		amount NUMERIC NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		items JSONB
	);
	CREATE TABLE IF NOT EXISTS legacy_udhar_payments (
		id BIGINT PRIMARY KEY,
		customer_id BIGINT NOT NULL,
		amount NUMERIC NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		items JSONB
	);

	CREATE TABLE IF NOT EXISTS orders (
		id BIGINT PRIMARY KEY,
		customer_name TEXT NOT NULL,
		phone TEXT NOT NULL,
		customer_id BIGINT,
		address JSONB,
		items JSONB NOT NULL,
		subtotal NUMERIC NOT NULL,
		total NUMERIC NOT NULL,
		status TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		added_to_udhar BOOLEAN NOT NULL DEFAULT FALSE,
		credit_entry_id BIGINT,
		stock_restored BOOLEAN NOT NULL DEFAULT FALSE,
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		paid_entry_id BIGINT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		delivered_at TIMESTAMPTZ,
		cancelled_at TIMESTAMPTZ,
		paid_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_orders_phone ON orders(phone, created_at);

	CREATE TABLE IF NOT EXISTS milk_subscriptions (
		id BIGINT PRIMARY KEY,
		customer_id BIGINT NOT NULL UNIQUE,
		default_qty NUMERIC NOT NULL,
		default_items JSONB,
		price_per_litre NUMERIC,
		status TEXT NOT NULL,
		pause_from TEXT,
		pause_to TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS milk_logs (
		id BIGINT PRIMARY KEY,
		customer_id BIGINT NOT NULL,
		date TEXT NOT NULL,
		qty NUMERIC NOT NULL,
		items JSONB,
		price NUMERIC,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (customer_id, date)
	);
	CREATE INDEX IF NOT EXISTS idx_milk_logs_date ON milk_logs(date);

	CREATE TABLE IF NOT EXISTS milk_payments (
		id BIGINT PRIMARY KEY,
		customer_id BIGINT NOT NULL,
		month TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_milk_payments_month ON milk_payments(month, customer_id);

	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		data JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	`)
	return err
}

// =============================================================================
// COUNTERS & SETTINGS
// =============================================================================

func (s *Store) IncrementCounter(ctx context.Context, name string) (int64, error) {
	var value int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO counters (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
		RETURNING value
	`, name).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", name, err)
	}
	return value, nil
}

func (s *Store) GetSettings(ctx context.Context) (*settings.Settings, error) {
	var data string
	err := s.pool.QueryRow(ctx, "SELECT data::text FROM settings WHERE id = 1").Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	var st settings.Settings
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &st, nil
}

func (s *Store) SaveSettings(ctx context.Context, st settings.Settings) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (id, data, updated_at) VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`, toJSON(st))
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// scanner is satisfied by pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// classify maps a write error to core.ErrDuplicate or wraps it.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return core.ErrDuplicate
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func toJSON(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func fromJSON(s *string, v any) error {
	if s == nil || *s == "" || *s == "null" {
		return nil
	}
	return json.Unmarshal([]byte(*s), v)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid numeric %q: %w", s, err)
	}
	return d, nil
}

func parseDecimalPtr(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := parseDecimal(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// decimalArg is the text form of an optional amount, nil for SQL NULL.
func decimalArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func stringArg(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func dateArg(d *core.Date) *string {
	if d == nil {
		return nil
	}
	s := string(*d)
	return &s
}

func datePtr(s *string) *core.Date {
	if s == nil {
		return nil
	}
	d := core.Date(*s)
	return &d
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
