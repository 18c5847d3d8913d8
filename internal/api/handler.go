// Package api maps the engine's operations onto JSON over HTTP.
package api

import (
	"context"
	"net/http"

	"snapkart-be/internal/auth"
	"snapkart-be/internal/coupon"
	"snapkart-be/internal/dispatch"
	"snapkart-be/internal/order"
	"snapkart-be/internal/payment"
	"snapkart-be/internal/pricing"
)

type Handler struct {
	Orders   order.Service
	Coupons  coupon.Service
	Pricing  pricing.Service
	Agents   dispatch.Service
	Payments payment.Reconciler
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/checkout/quote", h.QuoteCheckout)
	mux.HandleFunc("POST /v1/orders", h.PlaceOrder)
	mux.HandleFunc("GET /v1/orders/{id}", h.GetOrder)
	mux.HandleFunc("GET /v1/orders/{id}/history", h.OrderHistory)
	mux.HandleFunc("POST /v1/orders/{id}/cancel", h.CancelOrder)
	mux.HandleFunc("POST /v1/orders/{id}/dispatch", h.DispatchOrder)
	mux.HandleFunc("POST /v1/orders/{id}/deliver", h.DeliverOrder)

	mux.HandleFunc("POST /v1/coupons/validate", h.ValidateCoupon)

	mux.HandleFunc("GET /v1/payments/{id}", h.GetPayment)
	mux.HandleFunc("POST /v1/payments/{id}/refund", h.RefundPayment)
	mux.HandleFunc("POST /v1/payments/{id}/verify", h.VerifyPayment)

	mux.HandleFunc("PUT /v1/agents/{id}/location", h.UpdateAgentLocation)
	mux.HandleFunc("GET /v1/agents/{id}/location", h.GetAgentLocation)
	mux.HandleFunc("PUT /v1/agents/{id}/availability", h.SetAgentAvailability)
	mux.HandleFunc("GET /v1/agents/{id}/load", h.GetAgentLoad)

	mux.HandleFunc("POST /v1/admin/agents", h.RegisterAgent)
	mux.HandleFunc("POST /v1/admin/coupons", h.CreateCoupon)
	mux.HandleFunc("POST /v1/admin/pricing-rules", h.CreatePricingRule)
	mux.HandleFunc("POST /v1/admin/pricing-rules/{id}/deactivate", h.DeactivatePricingRule)
}

// caller returns the authenticated identity of the request.
func caller(ctx context.Context) (auth.Identity, error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return auth.Identity{}, auth.ErrUnauthenticated
	}
	return id, nil
}

// agentSelf allows an admin, or the delivery agent agentID itself.
func agentSelf(ctx context.Context, agentID int64) error {
	id, err := caller(ctx)
	if err != nil {
		return err
	}
	if id.Role == auth.RoleAdmin || (id.Role == auth.RoleDeliveryAgent && id.ID == agentID) {
		return nil
	}
	return auth.ErrForbiddenRole
}
