package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"food-order-service/internal/models"
)

// GetCouponByCode looks a coupon up case-insensitively. It returns nil, nil
// for an unknown code so the caller can reject it with a domain reason.
func (t *Tx) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := t.tx.GetContext(ctx, &coupon, `
		SELECT id, code, discount_type, discount_value, minimum_amount, max_discount,
			usage_limit, used_count, valid_from, valid_until, is_active
		FROM coupons WHERE UPPER(code) = UPPER($1)`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// RedeemCoupon increments used_count only while the usage limit allows it.
// It reports false when a concurrent checkout took the last use.
func (t *Tx) RedeemCoupon(ctx context.Context, couponID int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE coupons SET used_count = used_count + 1
		WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`, couponID)
	if err != nil {
		return false, fmt.Errorf("failed to redeem coupon: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// InsertCouponUsage records one redemption
func (t *Tx) InsertCouponUsage(ctx context.Context, usage *models.CouponUsage) error {
	query := `
		INSERT INTO coupon_usages (coupon_id, customer_id, order_id, discount_amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return t.tx.QueryRowxContext(ctx, query,
		usage.CouponID, usage.CustomerID, usage.OrderID, usage.DiscountAmount,
	).Scan(&usage.ID, &usage.CreatedAt)
}
