package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/warp/kirana-ledger/inventory"
)

// =============================================================================
// CATALOG (inventory.Catalog interface)
// =============================================================================

func (s *Store) GetProduct(ctx context.Context, id int64) (*inventory.Product, error) {
	var (
		p        inventory.Product
		barcode  *string
		tiers    *string
		variants *string
		stock    *int32
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, barcode, disabled, tiers::text, variants::text, stock_quantity, low_stock_threshold
		FROM products WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &barcode, &p.Disabled, &tiers, &variants, &stock, &p.LowStockThreshold)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if barcode != nil {
		p.Barcode = *barcode
	}
	if err := fromJSON(tiers, &p.Tiers); err != nil {
		return nil, fmt.Errorf("failed to decode tiers: %w", err)
	}
	if err := fromJSON(variants, &p.Variants); err != nil {
		return nil, fmt.Errorf("failed to decode variants: %w", err)
	}
	if stock != nil {
		q := int(*stock)
		p.StockQuantity = &q
	}
	return &p, nil
}

// DecrementStockIfAvailable is a single conditional UPDATE; concurrent
// callers on other pool connections serialize on the row lock.
func (s *Store) DecrementStockIfAvailable(ctx context.Context, id int64, quantity int) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE products SET stock_quantity = stock_quantity - $1
		WHERE id = $2 AND stock_quantity IS NOT NULL AND stock_quantity >= $1
	`, quantity, id)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) IncrementStock(ctx context.Context, id int64, quantity int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE products SET stock_quantity = stock_quantity + $1
		WHERE id = $2 AND stock_quantity IS NOT NULL
	`, quantity, id)
	if err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}
	return nil
}

func (s *Store) SaveProduct(ctx context.Context, p inventory.Product) error {
	var stock *int32
	if p.StockQuantity != nil {
		q := int32(*p.StockQuantity)
		stock = &q
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (id, name, barcode, disabled, tiers, variants, stock_quantity, low_stock_threshold)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			barcode = EXCLUDED.barcode,
			disabled = EXCLUDED.disabled,
			tiers = EXCLUDED.tiers,
			variants = EXCLUDED.variants,
			stock_quantity = EXCLUDED.stock_quantity,
			low_stock_threshold = EXCLUDED.low_stock_threshold
	`, p.ID, p.Name, stringArg(p.Barcode), p.Disabled, toJSON(p.Tiers), toJSON(p.Variants), stock, p.LowStockThreshold)
	return classify("save product", err)
}
