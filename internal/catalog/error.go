package catalog

import "snapkart-be/internal/apperr"

var (
	ErrRestaurantNotFound = apperr.NotFound("restaurant not found")
	ErrRestaurantInactive = apperr.Validation("restaurant is not accepting orders")
	ErrEmptyCart          = apperr.Validation("cart is empty")
)
