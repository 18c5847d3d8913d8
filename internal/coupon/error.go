package coupon

import "snapkart-be/internal/apperr"

var (
	ErrInvalidCode        = apperr.Validation("invalid coupon code")
	ErrInactive           = apperr.Validation("coupon is inactive")
	ErrExpired            = apperr.Validation("coupon expired")
	ErrUsageLimitReached  = apperr.Validation("coupon usage limit reached")
	ErrAlreadyUsed        = apperr.Conflict("coupon already used")
	ErrCodeExists         = apperr.Conflict("coupon code already exists")
	ErrInvalidCouponInput = apperr.Validation("coupon value must be positive and percentages at most 100")
)
