package order

import (
	"fmt"

	"snapkart-be/internal/apperr"
)

var (
	ErrOrderNotFound        = apperr.NotFound("order not found")
	ErrNotOrderOwner        = apperr.Forbidden("order belongs to another user")
	ErrNotAssignedAgent     = apperr.Forbidden("order is assigned to another agent")
	ErrCancelNotAllowed     = apperr.Forbidden("order can no longer be cancelled by the customer")
	ErrInvalidRefundAmount  = apperr.Validation("refund amount must be positive and not exceed the order total")
	ErrInvalidRestaurant    = apperr.Validation("restaurant_id is required")
	ErrInvalidItem          = apperr.Validation("every item needs a product_id and a positive quantity")
	ErrInvalidPaymentMethod = apperr.Validation("payment_method must be ONLINE or COD")
	ErrStaleOrder           = apperr.Conflict("order changed concurrently, reload and retry")
)

// transitionError is returned when an order is not in the source state a
// transition requires.
func transitionError(id int64, current, to Status) error {
	return apperr.Conflict(fmt.Sprintf("order %d is %s, cannot move to %s", id, current, to))
}
