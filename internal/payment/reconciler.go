package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"snapkart-be/internal/apperr"
	"snapkart-be/internal/auth"
	"snapkart-be/internal/config"
	"snapkart-be/internal/db"
	"snapkart-be/internal/logger"
	"snapkart-be/internal/metrics"
	"snapkart-be/internal/notification"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const Provider = "CASHFREE"

// OrderTransitions is the slice of the order state machine a captured or
// refunded payment drives.
type OrderTransitions interface {
	ConfirmPaid(ctx context.Context, q db.DBTX, orderID int64) error
	RecordRefund(ctx context.Context, q db.DBTX, orderID int64, amount decimal.Decimal) error
}

// BookingConfirmer confirms a paid table booking and returns the admin
// notification stored with it, or nil when there is nothing to announce.
type BookingConfirmer interface {
	ConfirmPaidTx(ctx context.Context, q db.DBTX, bookingID int64) (*notification.Notification, error)
}

type Reconciler interface {
	CreateSession(ctx context.Context, ref ReferenceType, refID int64, amount decimal.Decimal) (*Payment, error)
	HandleWebhook(ctx context.Context, rawBody []byte, signature string) (*WebhookResult, error)
	ProcessRefund(ctx context.Context, paymentID int64, amount decimal.Decimal) (*Payment, error)
	RefundOrderTx(ctx context.Context, q db.DBTX, orderID int64, amount decimal.Decimal) (*Payment, error)
	VerifyPayment(ctx context.Context, paymentID int64) (*WebhookResult, error)
	Get(ctx context.Context, paymentID int64) (*Payment, error)
}

type ReconcilerDeps struct {
	DB            *sql.DB
	Repo          Repository
	Gateway       Gateway
	Orders        OrderTransitions
	Bookings      BookingConfirmer
	Notifications notification.Repository
	Notifier      notification.Publisher
	Config        config.GatewayConfig
}

type reconciler struct {
	ReconcilerDeps
}

func NewReconciler(deps ReconcilerDeps) Reconciler {
	if deps.Notifier == nil {
		deps.Notifier = notification.NopPublisher{}
	}
	if deps.Notifications == nil {
		deps.Notifications = notification.NewRepository()
	}
	if deps.Config.Timeout <= 0 {
		deps.Config.Timeout = 15 * time.Second
	}
	if deps.Config.RefundTimeout <= 0 {
		deps.Config.RefundTimeout = deps.Config.Timeout
	}
	return &reconciler{ReconcilerDeps: deps}
}

func (r *reconciler) Get(ctx context.Context, paymentID int64) (*Payment, error) {
	return r.Repo.Get(ctx, r.DB, paymentID, false)
}

func customerID(ctx context.Context, ref ReferenceType, refID int64) string {
	if id, ok := auth.FromContext(ctx); ok && id.ID != 0 {
		return fmt.Sprintf("user_%d", id.ID)
	}
	return fmt.Sprintf("%s_%d", ref, refID)
}

// CreateSession stores a PENDING payment and opens a gateway session for it.
// A gateway failure marks the payment FAILED and leaves the reference as is.
func (r *reconciler) CreateSession(ctx context.Context, ref ReferenceType, refID int64, amount decimal.Decimal) (*Payment, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateSession"),
		zap.String("reference_type", string(ref)),
		zap.Int64("reference_id", refID),
	)

	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	p := &Payment{ReferenceType: ref, ReferenceID: refID, Amount: amount, Status: StatusPending}
	if err := r.Repo.Create(ctx, r.DB, p); err != nil {
		return nil, err
	}
	p.GatewayOrderID = GatewayOrderID(p.ID)

	gctx, cancel := context.WithTimeout(ctx, r.Config.Timeout)
	defer cancel()

	sess, err := r.Gateway.CreateSession(gctx, SessionRequest{
		GatewayOrderID: p.GatewayOrderID,
		Amount:         amount,
		CustomerID:     customerID(ctx, ref, refID),
		ReturnURL:      r.Config.ReturnURL,
	})
	if err != nil {
		log.Error("gateway session failed", zap.Int64("payment_id", p.ID), zap.Error(err))
		if mErr := r.Repo.MarkFailed(ctx, r.DB, p.ID); mErr != nil {
			log.Warn("failed to mark payment failed", zap.Error(mErr))
		}
		return nil, apperr.External("payment gateway unavailable", err)
	}

	if err := r.Repo.SetSession(ctx, r.DB, p.ID, p.GatewayOrderID, sess.SessionID, sess.RedirectURL); err != nil {
		return nil, err
	}
	p.GatewaySessionID = sess.SessionID
	p.RedirectURL = sess.RedirectURL

	log.Info("payment session created", zap.Int64("payment_id", p.ID), zap.String("gateway_order_id", p.GatewayOrderID))
	return p, nil
}

// HandleWebhook verifies the signature over the raw body before anything is
// parsed or written. A body already applied is acknowledged without side
// effects.
func (r *reconciler) HandleWebhook(ctx context.Context, rawBody []byte, signature string) (*WebhookResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "HandleWebhook"),
	)

	if !VerifySignature(rawBody, signature, r.Config.WebhookSecret) {
		metrics.Inc(metrics.WebhookInvalidSignature)
		log.Warn("webhook rejected: invalid signature")
		return nil, ErrInvalidSignature
	}

	var payload WebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		log.Warn("webhook rejected: malformed body", zap.Error(err))
		return nil, ErrMalformedPayload
	}
	paymentID, err := ParseGatewayOrderID(payload.Data.OrderID)
	if err != nil {
		log.Warn("webhook rejected: unknown order reference", zap.Error(err))
		return nil, ErrMalformedPayload
	}

	log = log.With(
		zap.Int64("payment_id", paymentID),
		zap.String("event_status", payload.Data.OrderStatus),
	)

	evt := &WebhookEvent{
		Provider:       Provider,
		Digest:         Digest(rawBody),
		GatewayOrderID: payload.Data.OrderID,
		EventStatus:    payload.Data.OrderStatus,
		SignatureValid: true,
		Payload:        json.RawMessage(rawBody),
	}
	if err := r.Repo.SaveWebhook(ctx, r.DB, evt); err != nil {
		return nil, err
	}
	if evt.Processed {
		metrics.Inc(metrics.WebhookDuplicate)
		log.Info("duplicate webhook ignored", zap.Int64("webhook_id", evt.ID))
		return &WebhookResult{Outcome: OutcomeAlreadyProcessed, PaymentID: paymentID}, nil
	}

	var res *WebhookResult
	switch Status(payload.Data.OrderStatus) {
	case StatusPaid:
		res, err = r.applyPaid(ctx, paymentID)
	case StatusFailed:
		res, err = r.applyFailed(ctx, paymentID)
	default:
		metrics.Inc(metrics.WebhookIgnored)
		res = &WebhookResult{Outcome: OutcomeIgnored, PaymentID: paymentID}
	}

	if err != nil {
		log.Error("webhook processing failed", zap.Int64("webhook_id", evt.ID), zap.Error(err))
		if mErr := r.Repo.MarkWebhookFailed(ctx, r.DB, evt.ID, err.Error()); mErr != nil {
			log.Warn("failed to record webhook failure", zap.Error(mErr))
		}
		return nil, err
	}
	if err := r.Repo.MarkWebhookProcessed(ctx, r.DB, evt.ID); err != nil {
		log.Warn("failed to mark webhook processed", zap.Error(err))
	}

	metrics.Inc(metrics.WebhookProcessed)
	log.Info("webhook handled", zap.String("outcome", string(res.Outcome)))
	return res, nil
}

// applyPaid marks the payment PAID and confirms what it pays for, all in one
// serializable transaction. A payment already PAID or REFUNDED is left alone.
// When the reference can no longer be confirmed the payment is still
// recorded and a PAYMENT_ORPHANED admin notification is stored with it.
func (r *reconciler) applyPaid(ctx context.Context, paymentID int64) (*WebhookResult, error) {
	log := logger.FromCtx(ctx).With(zap.String("layer", "reconciler"), zap.Int64("payment_id", paymentID))

	res := &WebhookResult{PaymentID: paymentID}
	var note *notification.Notification

	err := db.WithTx(ctx, r.DB, db.Serializable, func(tx *sql.Tx) error {
		p, err := r.Repo.Get(ctx, tx, paymentID, true)
		if err != nil {
			return err
		}
		if p.Status == StatusPaid || p.Status == StatusRefunded {
			res.Outcome = OutcomeAlreadyProcessed
			res.Status = p.Status
			return nil
		}

		if err := r.Repo.MarkPaid(ctx, tx, p.ID); err != nil {
			return err
		}

		switch p.ReferenceType {
		case ReferenceOrder:
			err = r.Orders.ConfirmPaid(ctx, tx, p.ReferenceID)
		case ReferenceBooking:
			note, err = r.Bookings.ConfirmPaidTx(ctx, tx, p.ReferenceID)
		}
		if errors.Is(err, apperr.ErrConflict) {
			// money moved regardless; the payment row stays the source of truth
			log.Warn("paid reference could not be confirmed",
				zap.String("reference_type", string(p.ReferenceType)),
				zap.Int64("reference_id", p.ReferenceID),
				zap.Error(err),
			)
			note, err = r.flagOrphaned(ctx, tx, p, err)
		}
		if err != nil {
			return err
		}

		res.Outcome = OutcomeProcessed
		res.Status = StatusPaid
		return nil
	})
	if err != nil {
		return nil, err
	}

	if note != nil {
		if err := r.Notifier.Publish(ctx, note); err != nil {
			log.Warn("admin notification not delivered", zap.Int64("notification_id", note.ID), zap.Error(err))
		}
	}
	return res, nil
}

// flagOrphaned stores the admin notification for a captured payment that
// needs a manual refund.
func (r *reconciler) flagOrphaned(ctx context.Context, q db.DBTX, p *Payment, cause error) (*notification.Notification, error) {
	n := &notification.Notification{
		Kind:  notification.KindPaymentOrphaned,
		Title: "Payment needs manual refund",
		Message: fmt.Sprintf("Payment #%d of %s for %s #%d was captured but could not be applied: %v",
			p.ID, p.Amount.StringFixed(2), p.ReferenceType, p.ReferenceID, cause),
		ReferenceType: "PAYMENT",
		ReferenceID:   p.ID,
	}
	if err := r.Notifications.Insert(ctx, q, n); err != nil {
		return nil, err
	}
	metrics.Inc(metrics.PaymentOrphaned)
	return n, nil
}

// applyFailed only ever moves PENDING to FAILED.
func (r *reconciler) applyFailed(ctx context.Context, paymentID int64) (*WebhookResult, error) {
	res := &WebhookResult{PaymentID: paymentID}

	err := db.WithTx(ctx, r.DB, db.ReadCommitted, func(tx *sql.Tx) error {
		p, err := r.Repo.Get(ctx, tx, paymentID, true)
		if err != nil {
			return err
		}
		res.Status = p.Status

		switch p.Status {
		case StatusFailed:
			res.Outcome = OutcomeAlreadyProcessed
			return nil
		case StatusPaid, StatusRefunded:
			res.Outcome = OutcomeIgnored
			return nil
		}

		if err := r.Repo.MarkFailed(ctx, tx, p.ID); err != nil {
			return err
		}
		res.Outcome = OutcomeProcessed
		res.Status = StatusFailed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// refundAmount resolves a zero amount to the full payment and bounds the rest.
func refundAmount(p *Payment, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsZero() {
		amount = p.Amount
	}
	if !amount.IsPositive() || amount.GreaterThan(p.Amount) {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}

// sendRefund asks the gateway to refund p. The refund id is derived from the
// payment so a retry after a lost commit is deduplicated by the gateway.
func (r *reconciler) sendRefund(ctx context.Context, log *zap.Logger, p *Payment, amount decimal.Decimal) (*RefundResult, error) {
	gatewayOrderID := p.GatewayOrderID
	if gatewayOrderID == "" {
		gatewayOrderID = GatewayOrderID(p.ID)
	}

	gctx, cancel := context.WithTimeout(ctx, r.Config.RefundTimeout)
	defer cancel()

	refund, err := r.Gateway.Refund(gctx, gatewayOrderID, RefundID(p.ID), amount)
	if err != nil {
		metrics.Inc(metrics.RefundFailed)
		log.Error("gateway refund failed", zap.Error(err))
		return nil, apperr.External("refund failed at payment gateway", err)
	}
	return refund, nil
}

// recordRefund marks p REFUNDED in q and, for orders, records the refund on
// the order.
func (r *reconciler) recordRefund(ctx context.Context, q db.DBTX, p *Payment, amount decimal.Decimal) error {
	if err := r.Repo.MarkRefunded(ctx, q, p.ID, amount); err != nil {
		return err
	}
	if p.ReferenceType == ReferenceOrder {
		if err := r.Orders.RecordRefund(ctx, q, p.ReferenceID, amount); err != nil {
			return err
		}
	}
	p.Status = StatusRefunded
	p.RefundAmount = &amount
	return nil
}

// ProcessRefund refunds amount of a PAID payment; a zero amount refunds it
// in full. The gateway is called first and the payment and order are only
// updated once it succeeds. Repeating the call on a REFUNDED payment returns
// it unchanged.
func (r *reconciler) ProcessRefund(ctx context.Context, paymentID int64, amount decimal.Decimal) (*Payment, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ProcessRefund"),
		zap.Int64("payment_id", paymentID),
	)

	p, err := r.Repo.Get(ctx, r.DB, paymentID, false)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case StatusRefunded:
		log.Info("payment already refunded")
		return p, nil
	case StatusPaid:
	default:
		return nil, ErrNotRefundable
	}

	amount, err = refundAmount(p, amount)
	if err != nil {
		return nil, err
	}

	refund, err := r.sendRefund(ctx, log, p, amount)
	if err != nil {
		return nil, err
	}

	err = db.WithTx(ctx, r.DB, db.ReadCommitted, func(tx *sql.Tx) error {
		locked, err := r.Repo.Get(ctx, tx, p.ID, true)
		if err != nil {
			return err
		}
		if locked.Status == StatusRefunded {
			p = locked
			return nil
		}
		return r.recordRefund(ctx, tx, p, amount)
	})
	if err != nil {
		log.Error("refund sent but not recorded", zap.String("refund_id", refund.RefundID), zap.Error(err))
		return nil, err
	}

	metrics.Inc(metrics.RefundSucceeded)
	log.Info("payment refunded",
		zap.String("refund_id", refund.RefundID),
		zap.String("amount", amount.String()),
	)
	return p, nil
}

// RefundOrderTx refunds the settled payment of an order inside the caller's
// transaction q, which must already hold the order row lock. The payment row
// is locked in q for the gateway call and the refund is recorded in q, so it
// commits or rolls back with whatever the caller does to the order next.
// A payment already REFUNDED is returned unchanged.
func (r *reconciler) RefundOrderTx(ctx context.Context, q db.DBTX, orderID int64, amount decimal.Decimal) (*Payment, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "RefundOrderTx"),
		zap.Int64("order_id", orderID),
	)

	settled, err := r.Repo.LatestSettledByReference(ctx, q, ReferenceOrder, orderID)
	if err != nil {
		return nil, err
	}
	p, err := r.Repo.Get(ctx, q, settled.ID, true)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.Int64("payment_id", p.ID))

	switch p.Status {
	case StatusRefunded:
		log.Info("payment already refunded")
		return p, nil
	case StatusPaid:
	default:
		return nil, ErrNotRefundable
	}

	amount, err = refundAmount(p, amount)
	if err != nil {
		return nil, err
	}

	refund, err := r.sendRefund(ctx, log, p, amount)
	if err != nil {
		return nil, err
	}
	if err := r.recordRefund(ctx, q, p, amount); err != nil {
		log.Error("refund sent but not recorded", zap.String("refund_id", refund.RefundID), zap.Error(err))
		return nil, err
	}

	metrics.Inc(metrics.RefundSucceeded)
	log.Info("order payment refunded",
		zap.String("refund_id", refund.RefundID),
		zap.String("amount", amount.String()),
	)
	return p, nil
}

// VerifyPayment asks the gateway for the payment's status and applies it the
// way a webhook would. It recovers payments whose webhook never arrived.
func (r *reconciler) VerifyPayment(ctx context.Context, paymentID int64) (*WebhookResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "VerifyPayment"),
		zap.Int64("payment_id", paymentID),
	)

	p, err := r.Repo.Get(ctx, r.DB, paymentID, false)
	if err != nil {
		return nil, err
	}
	if p.GatewayOrderID == "" {
		return nil, apperr.Conflict("payment has no gateway session")
	}

	gctx, cancel := context.WithTimeout(ctx, r.Config.Timeout)
	defer cancel()

	gwo, err := r.Gateway.FetchStatus(gctx, p.GatewayOrderID)
	if err != nil {
		log.Error("gateway status lookup failed", zap.Error(err))
		return nil, apperr.External("payment gateway unavailable", err)
	}

	log.Info("gateway status fetched", zap.String("gateway_status", gwo.OrderStatus))
	switch gwo.OrderStatus {
	case "PAID":
		return r.applyPaid(ctx, p.ID)
	case "EXPIRED", "TERMINATED", "FAILED":
		return r.applyFailed(ctx, p.ID)
	}
	return &WebhookResult{Outcome: OutcomeIgnored, PaymentID: p.ID, Status: p.Status}, nil
}
