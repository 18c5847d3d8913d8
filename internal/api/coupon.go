package api

import (
	"net/http"

	"snapkart-be/internal/apperr"
	"snapkart-be/internal/auth"
	"snapkart-be/internal/coupon"
	"snapkart-be/internal/transport"

	"github.com/shopspring/decimal"
)

type validateCouponRequest struct {
	Code      string          `json:"code"`
	CartTotal decimal.Decimal `json:"cart_total"`
}

// ValidateCoupon previews a coupon against a cart total without consuming it.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := auth.Require(ctx, auth.RoleUser)
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}

	var req validateCouponRequest
	if err := transport.DecodeJSON(r, &req); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	if req.CartTotal.IsNegative() {
		transport.WriteError(ctx, w, apperr.Validation("cart_total must not be negative"))
		return
	}

	app, err := h.Coupons.Preview(ctx, req.Code, id.ID, req.CartTotal)
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, err := auth.Require(ctx, auth.RoleAdmin); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}

	var c coupon.Coupon
	if err := transport.DecodeJSON(r, &c); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}

	if err := h.Coupons.Create(ctx, &c); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	transport.WriteJSON(w, http.StatusCreated, c)
}
