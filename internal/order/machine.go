package order

import (
	"context"
	"errors"

	"snapkart-be/internal/apperr"
	"snapkart-be/internal/auth"
	"snapkart-be/internal/db"
	"snapkart-be/internal/logger"
	"snapkart-be/internal/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Machine applies lifecycle transitions inside a caller-owned transaction.
// Every transition checks the edge, writes with a status precondition and
// appends a history row.
type Machine struct {
	repo Repository
}

func NewMachine(repo Repository) *Machine {
	return &Machine{repo: repo}
}

// Transition moves o along ch. o must have been read FOR UPDATE in q.
func (m *Machine) Transition(ctx context.Context, q db.DBTX, o *Order, ch Change, actor auth.Identity) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "machine"),
		zap.Int64("order_id", o.ID),
		zap.String("from", string(ch.From)),
		zap.String("to", string(ch.To)),
	)

	ch.OrderID = o.ID
	if o.Status != ch.From || !CanTransition(ch.From, ch.To) {
		metrics.Inc(metrics.OrderTransitionConflict)
		log.Info("transition rejected", zap.String("current", string(o.Status)))
		return transitionError(o.ID, o.Status, ch.To)
	}

	if err := m.repo.Apply(ctx, q, ch); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			metrics.Inc(metrics.OrderTransitionConflict)
		}
		return err
	}

	from := ch.From
	entry := &HistoryEntry{OrderID: o.ID, From: &from, To: ch.To, ActorRole: actor.Role}
	if actor.ID != 0 {
		id := actor.ID
		entry.ActorID = &id
	}
	if err := m.repo.AppendHistory(ctx, q, entry); err != nil {
		return err
	}

	o.Status = ch.To
	if ch.PaymentStatus != nil {
		o.PaymentStatus = *ch.PaymentStatus
	}
	if ch.AgentID != nil {
		o.DeliveryAgentID = ch.AgentID
	}
	if ch.AgentCommission != nil {
		o.AgentCommission = ch.AgentCommission
	}
	if ch.CancelledBy != nil {
		o.CancelledBy = ch.CancelledBy
	}
	if ch.RefundAmount != nil {
		o.RefundAmount = ch.RefundAmount
	}
	if ch.RefundStatus != nil {
		o.RefundStatus = ch.RefundStatus
	}

	metrics.Inc(metrics.OrderTransitions)
	log.Info("order transitioned", zap.String("actor_role", string(actor.Role)))
	return nil
}

// confirmOrder moves a locked PENDING order to CONFIRMED. Online orders are
// only confirmed by a captured payment, so they become PAID as well.
func (m *Machine) confirmOrder(ctx context.Context, q db.DBTX, o *Order, actor auth.Identity) error {
	ch := Change{From: StatusPending, To: StatusConfirmed}
	if o.PaymentMethod == PaymentOnline {
		paid := PaymentPaid
		ch.PaymentStatus = &paid
	}
	return m.Transition(ctx, q, o, ch, actor)
}

// Confirm locks the order and confirms it.
func (m *Machine) Confirm(ctx context.Context, q db.DBTX, orderID int64, actor auth.Identity) (*Order, error) {
	o, err := m.repo.Get(ctx, q, orderID, true)
	if err != nil {
		return nil, err
	}
	if err := m.confirmOrder(ctx, q, o, actor); err != nil {
		return nil, err
	}
	return o, nil
}

// ConfirmPaid is the payment-driven confirm.
func (m *Machine) ConfirmPaid(ctx context.Context, q db.DBTX, orderID int64) error {
	_, err := m.Confirm(ctx, q, orderID, auth.System)
	return err
}

// RecordRefund stores a completed refund on the order.
func (m *Machine) RecordRefund(ctx context.Context, q db.DBTX, orderID int64, amount decimal.Decimal) error {
	return m.repo.RecordRefund(ctx, q, orderID, amount)
}
