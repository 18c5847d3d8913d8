package pricing

import "snapkart-be/internal/apperr"

var (
	ErrRuleNotFound       = apperr.NotFound("pricing rule not found")
	ErrNegativeCartTotal  = apperr.Validation("cart total must not be negative")
	ErrNegativeDistance   = apperr.Validation("distance must not be negative")
	ErrInvalidChargeType  = apperr.Validation("charge type must be FREE, FLAT or BASE_PLUS_PER_KM")
	ErrInvalidOrderRange  = apperr.Validation("max order must not be below min order")
	ErrInvalidDistRange   = apperr.Validation("max distance must not be below min distance")
	ErrNegativeRuleAmount = apperr.Validation("rule amounts must not be negative")
)
