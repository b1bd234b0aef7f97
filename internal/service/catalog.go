package service

import (
	"context"
	"errors"

	"food-order-service/internal/apperr"
	"food-order-service/internal/models"
	"food-order-service/internal/store"

	"github.com/shopspring/decimal"
)

// CatalogReader re-fetches authoritative prices inside the order transaction
type CatalogReader interface {
	GetProduct(ctx context.Context, productID int64) (*models.Product, error)
	GetVariant(ctx context.Context, productID, variantID int64) (*models.ProductVariant, error)
}

// pricedCart is a cart re-priced from the catalog. Restaurants keep the
// order in which they first appear in the cart.
type pricedCart struct {
	items       []models.OrderItem
	restaurants []models.OrderRestaurant
	subTotal    decimal.Decimal
}

// itemsFor returns the items belonging to one restaurant
func (c *pricedCart) itemsFor(restaurantID int64) []models.OrderItem {
	var out []models.OrderItem
	for _, item := range c.items {
		if item.RestaurantID == restaurantID {
			out = append(out, item)
		}
	}
	return out
}

// priceCart builds item snapshots and per-restaurant aggregates. Client
// prices are never consulted.
func priceCart(ctx context.Context, catalog CatalogReader, lines []OrderLineRequest) (*pricedCart, error) {
	cart := &pricedCart{subTotal: decimal.Zero}
	index := make(map[int64]int)

	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, apperr.Validation("quantity for product %d must be at least 1", line.ProductID)
		}

		product, err := catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, notFoundOr(err, "product %d not found", line.ProductID)
		}

		item := models.OrderItem{
			ProductID:    product.ID,
			ProductName:  product.Name,
			Price:        product.Price,
			Quantity:     line.Quantity,
			RestaurantID: product.RestaurantID,
		}

		if line.VariantID != nil {
			variant, err := catalog.GetVariant(ctx, product.ID, *line.VariantID)
			if err != nil {
				return nil, notFoundOr(err, "variant %d of product %d not found", *line.VariantID, product.ID)
			}
			item.Price = variant.Price
			item.VariantID = &variant.ID
			name := variant.Name
			item.VariantName = &name
		}

		item.Subtotal = item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		cart.items = append(cart.items, item)
		cart.subTotal = cart.subTotal.Add(item.Subtotal)

		i, ok := index[product.RestaurantID]
		if !ok {
			i = len(cart.restaurants)
			index[product.RestaurantID] = i
			cart.restaurants = append(cart.restaurants, models.OrderRestaurant{
				RestaurantID:   product.RestaurantID,
				RestaurantName: product.RestaurantName,
				Subtotal:       decimal.Zero,
			})
		}
		cart.restaurants[i].Subtotal = cart.restaurants[i].Subtotal.Add(item.Subtotal)
		cart.restaurants[i].ItemCount += item.Quantity
	}

	return cart, nil
}

func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(format, args...)
	}
	return err
}
