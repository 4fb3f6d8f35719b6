package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/inventory"
)

// =============================================================================
// CATALOG (inventory.Catalog interface)
// =============================================================================

func (s *Store) GetProduct(ctx context.Context, id int64) (*inventory.Product, error) {
	var (
		p        inventory.Product
		barcode  sql.NullString
		tiers    sql.NullString
		variants sql.NullString
		stock    sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, barcode, disabled, tiers_json, variants_json, stock_quantity, low_stock_threshold
		FROM products WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &barcode, &p.Disabled, &tiers, &variants, &stock, &p.LowStockThreshold)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	p.Barcode = barcode.String
	if err := fromJSON(tiers, &p.Tiers); err != nil {
		return nil, fmt.Errorf("failed to decode tiers: %w", err)
	}
	if err := fromJSON(variants, &p.Variants); err != nil {
		return nil, fmt.Errorf("failed to decode variants: %w", err)
	}
	if stock.Valid {
		q := int(stock.Int64)
		p.StockQuantity = &q
	}
	return &p, nil
}

// DecrementStockIfAvailable is a single conditional UPDATE: the check and
// the decrement happen atomically in the database.
func (s *Store) DecrementStockIfAvailable(ctx context.Context, id int64, quantity int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET stock_quantity = stock_quantity - ?
		WHERE id = ? AND stock_quantity IS NOT NULL AND stock_quantity >= ?
	`, quantity, id, quantity)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) IncrementStock(ctx context.Context, id int64, quantity int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE products SET stock_quantity = stock_quantity + ?
		WHERE id = ? AND stock_quantity IS NOT NULL
	`, quantity, id)
	if err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}
	return nil
}

func (s *Store) SaveProduct(ctx context.Context, p inventory.Product) error {
	var stock sql.NullInt64
	if p.StockQuantity != nil {
		stock = sql.NullInt64{Int64: int64(*p.StockQuantity), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, barcode, disabled, tiers_json, variants_json, stock_quantity, low_stock_threshold)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			barcode = excluded.barcode,
			disabled = excluded.disabled,
			tiers_json = excluded.tiers_json,
			variants_json = excluded.variants_json,
			stock_quantity = excluded.stock_quantity,
			low_stock_threshold = excluded.low_stock_threshold
	`, p.ID, p.Name, nullString(p.Barcode), p.Disabled, toJSON(p.Tiers), toJSON(p.Variants), stock, p.LowStockThreshold)
	if isUniqueConstraintError(err) {
		return core.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}
