package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Restaurant is a read-only catalog row
type Restaurant struct {
	ID       int64  `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// Product represents a product in the catalog
type Product struct {
	ID             int64           `db:"id" json:"id"`
	RestaurantID   int64           `db:"restaurant_id" json:"restaurant_id"`
	RestaurantName string          `db:"restaurant_name" json:"restaurant_name"`
	Name           string          `db:"name" json:"name"`
	Price          decimal.Decimal `db:"price" json:"price"`
	IsActive       bool            `db:"is_active" json:"is_active"`
}

// ProductVariant carries its own absolute unit price
type ProductVariant struct {
	ID        int64           `db:"id" json:"id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
	IsActive  bool            `db:"is_active" json:"is_active"`
}

// OrderStatus is the fulfillment lifecycle, independent from settlement
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusConfirmed OrderStatus = "Confirmed"
	OrderStatusPreparing OrderStatus = "Preparing"
	OrderStatusDelivered OrderStatus = "Delivered"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// Order represents one restaurant-spanning (or, in split mode, single-restaurant) order
type Order struct {
	ID                        int64           `db:"id" json:"id"`
	OrderNumber               string          `db:"order_number" json:"order_number"`
	GroupID                   string          `db:"group_id" json:"group_id"`
	CustomerID                int64           `db:"customer_id" json:"customer_id"`
	CustomerName              string          `db:"customer_name" json:"customer_name"`
	CustomerPhone             string          `db:"customer_phone" json:"customer_phone"`
	CustomerEmail             string          `db:"customer_email" json:"customer_email,omitempty"`
	CustomerAddress           string          `db:"customer_address" json:"customer_address"`
	Notes                     string          `db:"notes" json:"notes,omitempty"`
	SubTotal                  decimal.Decimal `db:"sub_total" json:"sub_total"`
	DiscountAmount            decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	TotalAmount               decimal.Decimal `db:"total_amount" json:"total_amount"`
	CouponID                  *int64          `db:"coupon_id" json:"coupon_id,omitempty"`
	CouponCode                *string         `db:"coupon_code" json:"coupon_code,omitempty"`
	Status                    OrderStatus     `db:"status" json:"status"`
	PaymentStatus             PaymentStatus   `db:"payment_status" json:"payment_status"`
	PaymentMethod             *string         `db:"payment_method" json:"payment_method,omitempty"`
	PaymentTransactionID      *string         `db:"payment_transaction_id" json:"payment_transaction_id,omitempty"`
	PaymentResponse           *string         `db:"payment_response" json:"-"`
	PaidAt                    *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	PaymentError              *string         `db:"payment_error" json:"payment_error,omitempty"`
	VerifyEnrollmentRequestID *string         `db:"verify_enrollment_request_id" json:"-"`
	IdempotencyKey            *string         `db:"idempotency_key" json:"-"`
	CreatedAt                 time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt                 time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem snapshots product name and price at order time
type OrderItem struct {
	ID           int64           `db:"id" json:"id"`
	OrderID      int64           `db:"order_id" json:"order_id"`
	ProductID    int64           `db:"product_id" json:"product_id"`
	ProductName  string          `db:"product_name" json:"product_name"`
	Price        decimal.Decimal `db:"price" json:"price"`
	Quantity     int             `db:"quantity" json:"quantity"`
	Subtotal     decimal.Decimal `db:"subtotal" json:"subtotal"`
	VariantID    *int64          `db:"variant_id" json:"variant_id,omitempty"`
	VariantName  *string         `db:"variant_name" json:"variant_name,omitempty"`
	RestaurantID int64           `db:"restaurant_id" json:"restaurant_id"`
}

// OrderRestaurant is the per-kitchen aggregate of an order
type OrderRestaurant struct {
	OrderID        int64           `db:"order_id" json:"order_id"`
	RestaurantID   int64           `db:"restaurant_id" json:"restaurant_id"`
	RestaurantName string          `db:"restaurant_name" json:"restaurant_name"`
	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	ItemCount      int             `db:"item_count" json:"item_count"`
}

// Coupon discount types
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

// Coupon is a redeemable discount code
type Coupon struct {
	ID            int64            `db:"id" json:"id"`
	Code          string           `db:"code" json:"code"`
	DiscountType  string           `db:"discount_type" json:"discount_type"`
	DiscountValue decimal.Decimal  `db:"discount_value" json:"discount_value"`
	MinimumAmount decimal.Decimal  `db:"minimum_amount" json:"minimum_amount"`
	MaxDiscount   *decimal.Decimal `db:"max_discount" json:"max_discount,omitempty"`
	UsageLimit    *int             `db:"usage_limit" json:"usage_limit,omitempty"`
	UsedCount     int              `db:"used_count" json:"used_count"`
	ValidFrom     time.Time        `db:"valid_from" json:"valid_from"`
	ValidUntil    *time.Time       `db:"valid_until" json:"valid_until,omitempty"`
	IsActive      bool             `db:"is_active" json:"is_active"`
}

// CouponUsage is the audit row written for every redemption
type CouponUsage struct {
	ID             int64           `db:"id" json:"id"`
	CouponID       int64           `db:"coupon_id" json:"coupon_id"`
	CustomerID     int64           `db:"customer_id" json:"customer_id"`
	OrderID        int64           `db:"order_id" json:"order_id"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
