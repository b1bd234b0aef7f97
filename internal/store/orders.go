package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"food-order-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, order_number, group_id, customer_id, customer_name, customer_phone,
	customer_email, customer_address, notes, sub_total, discount_amount, total_amount,
	coupon_id, coupon_code, status, payment_status, payment_method, payment_transaction_id,
	payment_response, paid_at, payment_error, verify_enrollment_request_id, idempotency_key,
	created_at, updated_at`

// InsertOrder creates a new order and fills in its generated columns
func (t *Tx) InsertOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (order_number, group_id, customer_id, customer_name, customer_phone,
			customer_email, customer_address, notes, sub_total, discount_amount, total_amount,
			coupon_id, coupon_code, status, payment_status, payment_method, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at`

	return t.tx.QueryRowxContext(ctx, query,
		order.OrderNumber, order.GroupID, order.CustomerID, order.CustomerName, order.CustomerPhone,
		order.CustomerEmail, order.CustomerAddress, order.Notes, order.SubTotal, order.DiscountAmount,
		order.TotalAmount, order.CouponID, order.CouponCode, order.Status, order.PaymentStatus,
		order.PaymentMethod, order.IdempotencyKey,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
}

// InsertOrderItems batch-inserts the item snapshots of one or more orders
func (t *Tx) InsertOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO order_items (order_id, product_id, product_name, price, quantity, subtotal,
			variant_id, variant_name, restaurant_id)
		VALUES (:order_id, :product_id, :product_name, :price, :quantity, :subtotal,
			:variant_id, :variant_name, :restaurant_id)`, items)
	if err != nil {
		return fmt.Errorf("failed to insert order items: %w", err)
	}
	return nil
}

// InsertOrderRestaurants batch-inserts the per-restaurant aggregates
func (t *Tx) InsertOrderRestaurants(ctx context.Context, rows []models.OrderRestaurant) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO order_restaurants (order_id, restaurant_id, restaurant_name, subtotal, item_count)
		VALUES (:order_id, :restaurant_id, :restaurant_name, :subtotal, :item_count)`, rows)
	if err != nil {
		return fmt.Errorf("failed to insert order restaurants: %w", err)
	}
	return nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	order, err := getOrder(ctx, s.db, "id = $1", id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	return order, nil
}

// GetOrderByIdempotencyKey retrieves a customer's order by idempotency key.
// It returns nil, nil when the key is unused.
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, customerID int64, key string) (*models.Order, error) {
	return getOrder(ctx, s.db,
		"customer_id = $1 AND idempotency_key = $2 ORDER BY id LIMIT 1", customerID, key)
}

// GetOrderByTransactionID retrieves the order a bank transaction settled
func (s *Store) GetOrderByTransactionID(ctx context.Context, transactionID string) (*models.Order, error) {
	order, err := getOrder(ctx, s.db,
		"payment_transaction_id = $1 ORDER BY id LIMIT 1", transactionID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, ErrNotFound)
	}
	return order, nil
}

// FindPendingByEnrollmentID returns the still-Pending order bound to an
// enrollment request, or nil when none is left to settle.
func (s *Store) FindPendingByEnrollmentID(ctx context.Context, verifyID string) (*models.Order, error) {
	return getOrder(ctx, s.db,
		"verify_enrollment_request_id = $1 AND payment_status = $2",
		verifyID, models.PaymentStatusPending)
}

// FindByEnrollmentID returns the order bound to an enrollment request in any state
func (s *Store) FindByEnrollmentID(ctx context.Context, verifyID string) (*models.Order, error) {
	return getOrder(ctx, s.db, "verify_enrollment_request_id = $1", verifyID)
}

// GetOrdersByGroupID lists every order of a checkout
func (s *Store) GetOrdersByGroupID(ctx context.Context, groupID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE group_id = $1 ORDER BY id", groupID)
	return orders, err
}

// GetOrderItems retrieves all items for an order
func (s *Store) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT id, order_id, product_id, product_name, price, quantity, subtotal,
			variant_id, variant_name, restaurant_id
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	return items, err
}

// GetOrderRestaurants retrieves the per-restaurant aggregates of an order
func (s *Store) GetOrderRestaurants(ctx context.Context, orderID int64) ([]models.OrderRestaurant, error) {
	var rows []models.OrderRestaurant
	err := s.db.SelectContext(ctx, &rows, `
		SELECT order_id, restaurant_id, restaurant_name, subtotal, item_count
		FROM order_restaurants WHERE order_id = $1 ORDER BY restaurant_id`, orderID)
	return rows, err
}

// GroupPayableTotal sums the totals of every order in a checkout
func (s *Store) GroupPayableTotal(ctx context.Context, groupID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.GetContext(ctx, &total,
		"SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE group_id = $1", groupID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum group %s: %w", groupID, err)
	}
	return total, nil
}

// SaveEnrollment binds an enrollment request to a Pending order. It reports
// false when the order already left Pending.
func (s *Store) SaveEnrollment(ctx context.Context, orderID int64, verifyID, metadata string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET verify_enrollment_request_id = $1, payment_response = $2::jsonb,
			payment_method = $3, updated_at = NOW()
		WHERE id = $4 AND payment_status = $5`,
		verifyID, metadata, models.PaymentMethodCard, orderID, models.PaymentStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to save enrollment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func getOrder(ctx context.Context, q sqlx.QueryerContext, where string, args ...any) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, q, &order, "SELECT "+orderColumns+" FROM orders WHERE "+where, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}
