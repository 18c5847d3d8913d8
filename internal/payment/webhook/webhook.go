// Package webhook exposes the payment gateway callback endpoint.
package webhook

import (
	"context"
	"io"
	"net/http"

	"snapkart-be/internal/apperr"
	"snapkart-be/internal/logger"
	"snapkart-be/internal/payment"
	"snapkart-be/internal/transport"

	"go.uber.org/zap"
)

const (
	SignatureHeader = "x-webhook-signature"
	maxBodyBytes    = 64 << 10
)

type Processor interface {
	HandleWebhook(ctx context.Context, rawBody []byte, signature string) (*payment.WebhookResult, error)
}

type Handler struct {
	processor Processor
}

func NewWebhookHandler(processor Processor) *Handler {
	return &Handler{processor: processor}
}

// PaymentWebhookHandler hands the raw body to the reconciler untouched; the
// signature covers the exact bytes the gateway sent.
func (h *Handler) PaymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx).With(zap.String("layer", "webhook"))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		log.Warn("failed to read webhook body", zap.Error(err))
		transport.WriteError(ctx, w, apperr.Validation("failed to read body"))
		return
	}
	defer r.Body.Close()

	res, err := h.processor.HandleWebhook(ctx, body, r.Header.Get(SignatureHeader))
	if err != nil {
		transport.WriteError(ctx, w, err)
		return
	}

	transport.WriteJSON(w, http.StatusOK, res)
}
