package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

type ChargeType string

const (
	ChargeFree          ChargeType = "FREE"
	ChargeFlat          ChargeType = "FLAT"
	ChargeBasePlusPerKm ChargeType = "BASE_PLUS_PER_KM"
)

func (c ChargeType) Valid() bool {
	switch c {
	case ChargeFree, ChargeFlat, ChargeBasePlusPerKm:
		return true
	}
	return false
}

// Rule is a delivery pricing band for one restaurant. A nil MaxOrder or
// MaxDistance is unbounded.
type Rule struct {
	ID           int64            `json:"id"`
	RestaurantID int64            `json:"restaurant_id"`
	MinOrder     decimal.Decimal  `json:"min_order"`
	MaxOrder     *decimal.Decimal `json:"max_order,omitempty"`
	MinDistance  float64          `json:"min_distance"`
	MaxDistance  *float64         `json:"max_distance,omitempty"`
	ChargeType   ChargeType       `json:"charge_type"`
	ChargeAmount decimal.Decimal  `json:"charge_amount"`
	BaseDistance float64          `json:"base_distance"`
	PerKmCharge  decimal.Decimal  `json:"per_km_charge"`
	IsActive     bool             `json:"is_active"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Quote is the delivery charge for a cart plus the rule that produced it.
// Rule is nil when nothing matched and the charge fell back to zero.
type Quote struct {
	DeliveryCharge decimal.Decimal `json:"delivery_charge"`
	DistanceKm     float64         `json:"distance_km"`
	Rule           *Rule           `json:"rule,omitempty"`
}
