// Package coupon computes coupon discounts. It performs no I/O; usage-limit
// accounting is done by the store with a guarded update.
package coupon

import (
	"strings"
	"time"

	"food-order-service/internal/models"

	"github.com/shopspring/decimal"
)

// Reason identifies why a coupon was rejected
type Reason string

const (
	NotFound          Reason = "NotFound"
	NotYetValid       Reason = "NotYetValid"
	Expired           Reason = "Expired"
	UsageLimitReached Reason = "UsageLimitReached"
	MinimumNotMet     Reason = "MinimumNotMet"
)

// Error is returned for every coupon rule violation
type Error struct {
	Reason Reason
	Code   string
}

func (e *Error) Error() string {
	switch e.Reason {
	case NotFound:
		return "coupon " + e.Code + " not found"
	case NotYetValid:
		return "coupon " + e.Code + " is not valid yet"
	case Expired:
		return "coupon " + e.Code + " has expired"
	case UsageLimitReached:
		return "coupon " + e.Code + " usage limit reached"
	case MinimumNotMet:
		return "order total does not meet coupon " + e.Code + " minimum"
	}
	return "coupon " + e.Code + " rejected"
}

// Reject builds an *Error for code
func Reject(code string, reason Reason) error {
	return &Error{Reason: reason, Code: NormalizeCode(code)}
}

// NormalizeCode trims and upper-cases a user supplied code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

var hundred = decimal.NewFromInt(100)

// Evaluate validates c against subtotal at now and returns the discount.
// A nil or inactive coupon is NotFound. The result is rounded to cents and
// clamped to [0, subtotal].
func Evaluate(c *models.Coupon, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if c == nil || !c.IsActive {
		code := ""
		if c != nil {
			code = c.Code
		}
		return decimal.Zero, Reject(code, NotFound)
	}
	if now.Before(c.ValidFrom) {
		return decimal.Zero, Reject(c.Code, NotYetValid)
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return decimal.Zero, Reject(c.Code, Expired)
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return decimal.Zero, Reject(c.Code, UsageLimitReached)
	}
	if subtotal.LessThan(c.MinimumAmount) {
		return decimal.Zero, Reject(c.Code, MinimumNotMet)
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case models.DiscountTypePercentage:
		discount = subtotal.Mul(c.DiscountValue).Div(hundred)
		if c.MaxDiscount != nil && discount.GreaterThan(*c.MaxDiscount) {
			discount = *c.MaxDiscount
		}
	case models.DiscountTypeFixed:
		discount = c.DiscountValue
	default:
		return decimal.Zero, Reject(c.Code, NotFound)
	}

	return Clamp(discount.Round(2), subtotal), nil
}

// Clamp bounds d to [0, max]
func Clamp(d, max decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(max) {
		return max
	}
	return d
}

// Allocate splits discount across parts proportionally to their share of the
// sum, rounding to cents. The last part absorbs the rounding remainder and
// every share is clamped to its part.
func Allocate(discount decimal.Decimal, parts []decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(parts))
	if len(parts) == 0 {
		return shares
	}
	total := decimal.Sum(decimal.Zero, parts...)
	if total.IsZero() || discount.IsZero() {
		for i := range shares {
			shares[i] = decimal.Zero
		}
		return shares
	}

	remaining := discount
	for i, p := range parts {
		if i == len(parts)-1 {
			shares[i] = Clamp(remaining, p)
			break
		}
		share := Clamp(discount.Mul(p).Div(total).Round(2), p)
		if share.GreaterThan(remaining) {
			share = remaining
		}
		shares[i] = share
		remaining = remaining.Sub(share)
	}
	return shares
}
