package coupon

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFlat       DiscountType = "FLAT"
)

type Coupon struct {
	ID             int64           `json:"id"`
	Code           string          `json:"code"`
	DiscountType   DiscountType    `json:"discount_type"`
	Value          decimal.Decimal `json:"value"`
	IsActive       bool            `json:"is_active"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
	UsageLimit     *int            `json:"usage_limit,omitempty"`
	OneTimePerUser bool            `json:"one_time_per_user"`
	UsedCount      int             `json:"used_count"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Application is the outcome of validating or applying a coupon to a cart.
type Application struct {
	CouponID int64           `json:"coupon_id"`
	Code     string          `json:"code"`
	Discount decimal.Decimal `json:"discount"`
}

// Discount is the amount taken off cartTotal. It never exceeds cartTotal.
func (c *Coupon) Discount(cartTotal decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		d = cartTotal.Mul(c.Value).Div(decimal.NewFromInt(100)).Round(2)
	case DiscountFlat:
		d = c.Value
	default:
		return decimal.Zero
	}
	if d.GreaterThan(cartTotal) {
		return cartTotal
	}
	return d
}
