/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Default persistent backend for a single store installation. Implements
  every store contract of the engine in one database file.

INTERFACES IMPLEMENTED (one file each, counters and settings here):
  sequence.CounterStore   named id counters
  customers.Store         customer directory                         customers.go
  inventory.Catalog       products and atomic stock decrement        products.go
  ledger.Store            ledger entries + legacy credit/payment     ledger.go
  orders.Store            orders                                     orders.go
  milk.Store              subscriptions, delivery logs, payments     milk.go
  settings.Store          store-wide settings

KEY TABLES:
  counters                 name -> last issued value
  customers                phone unique among active rows
  products                 tiers/variants as JSON, nullable stock_quantity
  ledger_entries           money columns as decimal text
  legacy_udhar_entries     legacy credit store (read by migration)
  legacy_udhar_payments    legacy payment store (read by migration)
  orders                   line items as JSON
  milk_subscriptions       one per customer
  milk_logs                unique (customer_id, date)
  milk_payments
  settings                 single row JSON document

UNIQUENESS:
  - idx_customers_active_phone:  phone among active customers
  - idx_products_barcode:        barcode, sparse
  - idx_ledger_legacy:           (source, legacy_id), one copy per legacy record
  - idx_ledger_order:            (source, order_id) for app_order/order_payment
  - milk_logs UNIQUE:            (customer_id, date)
  Violations surface as core.ErrDuplicate.

CONCURRENCY:
  The pool is limited to one connection. SQLite serializes writers anyway,
  and ":memory:" databases exist per connection. Stock decrement is a
  single conditional UPDATE, so checkout cannot oversell.

USAGE:
  store, err := sqlite.New("./data/kirana.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - store/memory: in-memory implementation for tests
  - store/postgres: multi-instance deployments
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

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

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"
	if dbPath == ":memory:" {
		dsn = dbPath
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS counters (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);

	-- Customers
	CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY,
		phone TEXT NOT NULL,
		name TEXT NOT NULL,
		address_json TEXT,
		credit_limit TEXT NOT NULL DEFAULT '0',
		state TEXT NOT NULL DEFAULT 'active',
		deleted_at TEXT,
		pin_hash TEXT,
		created_at TEXT NOT NULL
	);

	-- Phone is the lookup key among active customers only
	CREATE UNIQUE INDEX IF NOT EXISTS idx_customers_active_phone
		ON customers(phone) WHERE state = 'active';

	-- Products
	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		barcode TEXT,
		disabled BOOLEAN NOT NULL DEFAULT FALSE,
		tiers_json TEXT,
		variants_json TEXT,
		stock_quantity INTEGER CHECK (stock_quantity IS NULL OR stock_quantity >= 0),
		low_stock_threshold INTEGER NOT NULL DEFAULT 0 CHECK (low_stock_threshold >= 0)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_products_barcode
		ON products(barcode) WHERE barcode IS NOT NULL;

	-- Ledger
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id INTEGER PRIMARY KEY,
		customer_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT 'manual',
		order_id INTEGER,
		legacy_id INTEGER,
		items_json TEXT
	);

	-- Hot path: balance and statement reads
	CREATE INDEX IF NOT EXISTS idx_ledger_customer_date
		ON ledger_entries(customer_id, date, created_at);

	-- CRITICAL: a legacy record is copied into the ledger at most once
	CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_legacy
		ON ledger_entries(source, legacy_id) WHERE legacy_id IS NOT NULL;

	-- An order is credited and paid at most once
	CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_order
		ON ledger_entries(source, order_id)
		WHERE order_id IS NOT NULL AND source IN ('app_order', 'order_payment');

	-- Legacy stores
	CREATE TABLE IF NOT EXISTS legacy_udhar_entries (
		id INTEGER PRIMARY KEY,
		customer_id INTEGER NOT NULL,
		amount TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		items_json TEXT
	);

	CREATE TABLE IF NOT EXISTS legacy_udhar_payments (
		id INTEGER PRIMARY KEY,
		customer_id INTEGER NOT NULL,
		amount TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		items_json TEXT
	);

	-- Orders
	CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY,
		customer_name TEXT NOT NULL,
		phone TEXT NOT NULL,
		customer_id INTEGER,
		address_json TEXT,
		items_json TEXT NOT NULL,
		subtotal TEXT NOT NULL,
		total TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		added_to_udhar BOOLEAN NOT NULL DEFAULT FALSE,
		credit_entry_id INTEGER,
		stock_restored BOOLEAN NOT NULL DEFAULT FALSE,
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		paid_entry_id INTEGER,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		delivered_at TEXT,
		cancelled_at TEXT,
		paid_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_orders_phone ON orders(phone, created_at);

	-- Milk
	CREATE TABLE IF NOT EXISTS milk_subscriptions (
		id INTEGER PRIMARY KEY,
		customer_id INTEGER NOT NULL UNIQUE,
		default_qty TEXT NOT NULL,
		default_items_json TEXT,
		price_per_litre TEXT,
		status TEXT NOT NULL,
		pause_from TEXT,
		pause_to TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS milk_logs (
		id INTEGER PRIMARY KEY,
		customer_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		qty TEXT NOT NULL,
		items_json TEXT,
		price TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(customer_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_milk_logs_date ON milk_logs(date);

	CREATE TABLE IF NOT EXISTS milk_payments (
		id INTEGER PRIMARY KEY,
		customer_id INTEGER NOT NULL,
		month TEXT NOT NULL,
		amount TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_milk_payments_month ON milk_payments(month, customer_id);

	-- Settings (single row)
	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		data_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// COUNTERS (sequence.CounterStore interface)
// =============================================================================

// IncrementCounter bumps and returns the counter in one statement.
func (s *Store) IncrementCounter(ctx context.Context, name string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO counters (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
		RETURNING value
	`, name).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", name, err)
	}
	return value, nil
}

// =============================================================================
// SETTINGS (settings.Store interface)
// =============================================================================

func (s *Store) GetSettings(ctx context.Context) (*settings.Settings, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data_json FROM settings WHERE id = 1").Scan(&data)
	if err == sql.ErrNoRows {
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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, data_json, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data_json = excluded.data_json, updated_at = excluded.updated_at
	`, toJSON(st), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullDate(d *core.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*d), Valid: true}
}

func datePtr(ns sql.NullString) *core.Date {
	if !ns.Valid {
		return nil
	}
	d := core.Date(ns.String)
	return &d
}

func toJSON(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func fromJSON(ns sql.NullString, v any) error {
	if !ns.Valid || ns.String == "" || ns.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), v)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

