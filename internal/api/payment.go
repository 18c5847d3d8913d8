package api

import (
	"context"
	"net/http"

	"snapkart-be/internal/apperr"
	"snapkart-be/internal/auth"
	"snapkart-be/internal/payment"
	"snapkart-be/internal/transport"

	"github.com/shopspring/decimal"
)

type refundRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, err := auth.Require(ctx, auth.RoleAdmin); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	paymentID, err := transport.PathID(r, "id")
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}

	p, err := h.Payments.Get(ctx, paymentID)
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, p)
}

// RefundPayment refunds a paid payment. An omitted amount refunds it in full.
func (h *Handler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, err := auth.Require(ctx, auth.RoleAdmin); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	paymentID, err := transport.PathID(r, "id")
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}

	var req refundRequest
	if r.ContentLength != 0 {
		if err := transport.DecodeJSON(r, &req); err != nil {
			transport.WriteError(ctx, w, err)
			return
		}
	}

	p, err := h.Payments.ProcessRefund(ctx, paymentID, req.Amount)
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, p)
}

// ownsPayment checks that caller may see the order paymentID pays for.
func (h *Handler) ownsPayment(ctx context.Context, caller auth.Identity, paymentID int64) error {
	p, err := h.Payments.Get(ctx, paymentID)
	if err != nil {
		return err
	}
	if p.ReferenceType != payment.ReferenceOrder {
		return apperr.Forbidden("payment does not belong to one of your orders")
	}
	_, err = h.Orders.Get(ctx, caller, p.ReferenceID)
	return err
}

// VerifyPayment rechecks a payment with the gateway. Customers may only
// verify payments of their own orders.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller, err := auth.Require(ctx, auth.RoleAdmin, auth.RoleUser)
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	paymentID, err := transport.PathID(r, "id")
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	if caller.Role == auth.RoleUser {
		if err := h.ownsPayment(ctx, caller, paymentID); err != nil {
			transport.WriteError(ctx, w, err)
			return
		}
	}

	res, err := h.Payments.VerifyPayment(ctx, paymentID)
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, res)
}
