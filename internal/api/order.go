package api

import (
	"net/http"

	"snapkart-be/internal/order"
	"snapkart-be/internal/transport"
)

func (h *Handler) QuoteCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := caller(ctx)
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}

	var in order.CheckoutInput
	if err := transport.DecodeJSON(r, &in); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}

	q, err := h.Orders.Quote(ctx, id, in)
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, q)
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := caller(ctx)
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}

	var in order.CheckoutInput
	if err := transport.DecodeJSON(r, &in); err != nil {
		transport.WriteError(ctx, w, err)
		return
	}

	p, err := h.Orders.Place(ctx, id, in)
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	transport.WriteJSON(w, http.StatusCreated, p)
}

// orderAction covers the order endpoints that take only the path id.
func (h *Handler) orderAction(w http.ResponseWriter, r *http.Request, status int, fn func(*http.Request, int64) (any, error)) {
	ctx := r.Context()

	orderID, err := transport.PathID(r, "id")
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}

	out, err := fn(r, orderID)
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}
	transport.WriteJSON(w, status, out)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, http.StatusOK, func(r *http.Request, orderID int64) (any, error) {
		id, err := caller(r.Context())
		if err != nil {
			return nil, err
		}
		return h.Orders.Get(r.Context(), id, orderID)
	})
}

func (h *Handler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, http.StatusOK, func(r *http.Request, orderID int64) (any, error) {
		id, err := caller(r.Context())
		if err != nil {
			return nil, err
		}
		entries, err := h.Orders.History(r.Context(), id, orderID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"history": entries}, nil
	})
}

func (h *Handler) DispatchOrder(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, http.StatusOK, func(r *http.Request, orderID int64) (any, error) {
		id, err := caller(r.Context())
		if err != nil {
			return nil, err
		}
		return h.Orders.Dispatch(r.Context(), id, orderID)
	})
}

func (h *Handler) DeliverOrder(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, http.StatusOK, func(r *http.Request, orderID int64) (any, error) {
		id, err := caller(r.Context())
		if err != nil {
			return nil, err
		}
		return h.Orders.Deliver(r.Context(), id, orderID)
	})
}

// CancelOrder accepts an optional {"refund_amount": "..."} body.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, http.StatusOK, func(r *http.Request, orderID int64) (any, error) {
		id, err := caller(r.Context())
		if err != nil {
			return nil, err
		}

		var in order.CancelInput
		if r.ContentLength != 0 {
			if err := transport.DecodeJSON(r, &in); err != nil {
				return nil, err
			}
		}
		return h.Orders.Cancel(r.Context(), id, orderID, in)
	})
}
