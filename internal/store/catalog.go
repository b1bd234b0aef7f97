package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"food-order-service/internal/models"
)

// GetProduct returns an active product of an active restaurant
func (t *Tx) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	var product models.Product
	err := t.tx.GetContext(ctx, &product, `
		SELECT p.id, p.restaurant_id, r.name AS restaurant_name, p.name, p.price, p.is_active
		FROM products p
		JOIN restaurants r ON r.id = p.restaurant_id
		WHERE p.id = $1 AND p.is_active AND r.is_active`, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetVariant returns an active variant that belongs to the product
func (t *Tx) GetVariant(ctx context.Context, productID, variantID int64) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := t.tx.GetContext(ctx, &variant, `
		SELECT id, product_id, name, price, is_active
		FROM product_variants
		WHERE id = $1 AND product_id = $2 AND is_active`, variantID, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("variant %d of product %d: %w", variantID, productID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &variant, nil
}
