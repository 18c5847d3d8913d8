package payment

import "snapkart-be/internal/apperr"

var (
	ErrPaymentNotFound  = apperr.NotFound("payment not found")
	ErrInvalidSignature = apperr.New(apperr.KindInvalidSignature, "invalid webhook signature")
	ErrMalformedPayload = apperr.Validation("malformed webhook payload")
	ErrNotRefundable    = apperr.Conflict("only a paid payment can be refunded")
	ErrInvalidAmount    = apperr.Validation("amount must be positive and not exceed the paid amount")
	ErrStalePayment     = apperr.Conflict("payment changed concurrently")
)
