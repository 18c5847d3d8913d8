// Package order owns the order lifecycle: checkout, the state machine and
// the transitions callers drive through it.
package order

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"snapkart-be/internal/apperr"
	"snapkart-be/internal/auth"
	"snapkart-be/internal/catalog"
	"snapkart-be/internal/coupon"
	"snapkart-be/internal/db"
	"snapkart-be/internal/dispatch"
	"snapkart-be/internal/geo"
	"snapkart-be/internal/logger"
	"snapkart-be/internal/metrics"
	"snapkart-be/internal/payment"
	"snapkart-be/internal/pricing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Service interface {
	Quote(ctx context.Context, caller auth.Identity, in CheckoutInput) (*Quote, error)
	Place(ctx context.Context, caller auth.Identity, in CheckoutInput) (*Placement, error)
	Get(ctx context.Context, caller auth.Identity, orderID int64) (*Order, error)
	History(ctx context.Context, caller auth.Identity, orderID int64) ([]HistoryEntry, error)
	Dispatch(ctx context.Context, caller auth.Identity, orderID int64) (*Order, error)
	Deliver(ctx context.Context, caller auth.Identity, orderID int64) (*Order, error)
	Cancel(ctx context.Context, caller auth.Identity, orderID int64, in CancelInput) (*Order, error)
}

type Pricer interface {
	QuoteTx(ctx context.Context, q db.DBTX, restaurantID int64, cartTotal decimal.Decimal, distanceKm float64) (*pricing.Quote, error)
}

type Coupons interface {
	Preview(ctx context.Context, code string, userID int64, cartTotal decimal.Decimal) (*coupon.Application, error)
	ApplyTx(ctx context.Context, q db.DBTX, code string, userID int64, cartTotal decimal.Decimal) (*coupon.Application, error)
	AttachOrderTx(ctx context.Context, q db.DBTX, couponID, userID, orderID int64) error
	ReleaseTx(ctx context.Context, q db.DBTX, couponID, userID int64) error
}

type Payments interface {
	CreateSession(ctx context.Context, ref payment.ReferenceType, refID int64, amount decimal.Decimal) (*payment.Payment, error)
	RefundOrderTx(ctx context.Context, q db.DBTX, orderID int64, amount decimal.Decimal) (*payment.Payment, error)
}

type AgentLookup interface {
	Get(ctx context.Context, q db.DBTX, id int64) (*dispatch.Agent, error)
}

type Dependencies struct {
	DB        *sql.DB
	Repo      Repository
	Machine   *Machine
	Catalog   catalog.Repository
	Distance  geo.DistanceProvider
	Pricing   Pricer
	Coupons   Coupons
	Allocator dispatch.Allocator
	Agents    AgentLookup
	Payments  Payments
}

type service struct {
	Dependencies
}

func NewService(deps Dependencies) Service {
	if deps.Machine == nil {
		deps.Machine = NewMachine(deps.Repo)
	}
	if deps.Distance == nil {
		deps.Distance = geo.Haversine{}
	}
	return &service{Dependencies: deps}
}

func actorID(caller auth.Identity) *int64 {
	if caller.ID == 0 {
		return nil
	}
	id := caller.ID
	return &id
}

// price builds the full checkout quote against q. With apply set the coupon
// is consumed in q; otherwise it is only previewed.
func (s *service) price(ctx context.Context, q db.DBTX, userID int64, in CheckoutInput, apply bool) (*Quote, *coupon.Application, error) {
	rest, err := s.Catalog.GetRestaurant(ctx, q, in.RestaurantID)
	if err != nil {
		return nil, nil, err
	}
	if !rest.IsActive {
		return nil, nil, catalog.ErrRestaurantInactive
	}

	distance, err := s.Distance.DistanceKm(rest.Lat, rest.Lng, in.DeliveryLat, in.DeliveryLng)
	if err != nil {
		return nil, nil, err
	}

	items, err := s.Catalog.Snapshot(ctx, q, rest.ID, in.Items)
	if err != nil {
		return nil, nil, err
	}
	subtotal := catalog.Subtotal(items)

	pq, err := s.Pricing.QuoteTx(ctx, q, rest.ID, subtotal, distance)
	if err != nil {
		return nil, nil, err
	}

	quote := &Quote{
		Items:          items,
		Subtotal:       subtotal,
		DeliveryCharge: pq.DeliveryCharge,
		Discount:       decimal.Zero,
		DistanceKm:     distance,
	}

	var app *coupon.Application
	if code := strings.TrimSpace(in.CouponCode); code != "" {
		if apply {
			app, err = s.Coupons.ApplyTx(ctx, q, code, userID, subtotal)
		} else {
			app, err = s.Coupons.Preview(ctx, code, userID, subtotal)
		}
		if err != nil {
			metrics.Inc(metrics.CouponRejected)
			return nil, nil, err
		}
		quote.Discount = app.Discount
		quote.CouponCode = app.Code
	}

	quote.FinalAmount = subtotal.Add(quote.DeliveryCharge).Sub(quote.Discount)
	if quote.FinalAmount.IsNegative() {
		quote.FinalAmount = decimal.Zero
	}
	return quote, app, nil
}

func (s *service) Quote(ctx context.Context, caller auth.Identity, in CheckoutInput) (*Quote, error) {
	if caller.Role != auth.RoleUser {
		return nil, auth.ErrForbiddenRole
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	quote, _, err := s.price(ctx, s.DB, caller.ID, in, false)
	return quote, err
}

// Place creates the order in one serializable transaction that snapshots
// prices and consumes the coupon. Cash orders are confirmed in the same
// transaction; online orders open a gateway session after commit and are
// cancelled again when the session cannot be opened.
func (s *service) Place(ctx context.Context, caller auth.Identity, in CheckoutInput) (*Placement, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "PlaceOrder"),
		zap.Int64("user_id", caller.ID),
		zap.Int64("restaurant_id", in.RestaurantID),
	)

	if caller.Role != auth.RoleUser {
		return nil, auth.ErrForbiddenRole
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = PaymentOnline
	}

	var o *Order
	err := db.WithTx(ctx, s.DB, db.Serializable, func(tx *sql.Tx) error {
		quote, app, err := s.price(ctx, tx, caller.ID, in, true)
		if err != nil {
			return err
		}

		o = &Order{
			UserID:         caller.ID,
			RestaurantID:   in.RestaurantID,
			Items:          quote.Items,
			Subtotal:       quote.Subtotal,
			DeliveryCharge: quote.DeliveryCharge,
			Discount:       quote.Discount,
			FinalAmount:    quote.FinalAmount,
			DistanceKm:     quote.DistanceKm,
			DeliveryLat:    in.DeliveryLat,
			DeliveryLng:    in.DeliveryLng,
			Status:         StatusPending,
			PaymentMethod:  in.PaymentMethod,
			PaymentStatus:  PaymentPending,
		}
		if app != nil {
			o.CouponID = &app.CouponID
		}

		if err := s.Repo.Create(ctx, tx, o); err != nil {
			return err
		}
		if app != nil {
			if err := s.Coupons.AttachOrderTx(ctx, tx, app.CouponID, caller.ID, o.ID); err != nil {
				return err
			}
		}
		if err := s.Repo.AppendHistory(ctx, tx, &HistoryEntry{
			OrderID: o.ID, To: StatusPending, ActorRole: caller.Role, ActorID: actorID(caller),
		}); err != nil {
			return err
		}

		if o.PaymentMethod == PaymentCOD {
			return s.Machine.confirmOrder(ctx, tx, o, auth.System)
		}
		return nil
	})
	if err != nil {
		log.Warn("order placement failed", zap.Error(err))
		return nil, err
	}

	metrics.Inc(metrics.OrdersPlaced)
	if o.CouponID != nil {
		metrics.Inc(metrics.CouponApplied)
	}
	log.Info("order placed",
		zap.Int64("order_id", o.ID),
		zap.String("status", string(o.Status)),
		zap.String("final_amount", o.FinalAmount.String()),
	)

	placement := &Placement{Order: o}
	if o.PaymentMethod != PaymentOnline {
		return placement, nil
	}

	p, err := s.Payments.CreateSession(ctx, payment.ReferenceOrder, o.ID, o.FinalAmount)
	if err != nil {
		log.Error("payment session failed, cancelling order", zap.Int64("order_id", o.ID), zap.Error(err))
		if aErr := s.abandon(ctx, o.ID); aErr != nil {
			log.Error("order left pending after session failure", zap.Int64("order_id", o.ID), zap.Error(aErr))
		}
		return nil, err
	}
	placement.PaymentID = &p.ID
	placement.SessionID = p.GatewaySessionID
	placement.RedirectURL = p.RedirectURL
	return placement, nil
}

// abandon cancels an online order whose payment session never opened and
// gives its coupon usage back. An order that moved on meanwhile is left alone.
func (s *service) abandon(ctx context.Context, orderID int64) error {
	return db.WithTx(ctx, s.DB, db.Serializable, func(tx *sql.Tx) error {
		o, err := s.Repo.Get(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		if o.Status != StatusPending || o.PaymentStatus == PaymentPaid {
			return nil
		}

		role := auth.RoleSystem
		ch := Change{From: StatusPending, To: StatusCancelled, CancelledBy: &role}
		if err := s.Machine.Transition(ctx, tx, o, ch, auth.System); err != nil {
			return err
		}
		if o.CouponID != nil {
			return s.Coupons.ReleaseTx(ctx, tx, *o.CouponID, o.UserID)
		}
		return nil
	})
}

func canView(caller auth.Identity, o *Order) error {
	switch caller.Role {
	case auth.RoleAdmin, auth.RoleSystem:
		return nil
	case auth.RoleUser:
		if o.UserID == caller.ID {
			return nil
		}
		return ErrNotOrderOwner
	case auth.RoleDeliveryAgent:
		if o.DeliveryAgentID != nil && *o.DeliveryAgentID == caller.ID {
			return nil
		}
		return ErrNotAssignedAgent
	}
	return auth.ErrForbiddenRole
}

func (s *service) Get(ctx context.Context, caller auth.Identity, orderID int64) (*Order, error) {
	o, err := s.Repo.Get(ctx, s.DB, orderID, false)
	if err != nil {
		return nil, err
	}
	if err := canView(caller, o); err != nil {
		return nil, err
	}
	if o.Items, err = s.Repo.Items(ctx, s.DB, orderID); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *service) History(ctx context.Context, caller auth.Identity, orderID int64) ([]HistoryEntry, error) {
	o, err := s.Repo.Get(ctx, s.DB, orderID, false)
	if err != nil {
		return nil, err
	}
	if err := canView(caller, o); err != nil {
		return nil, err
	}
	return s.Repo.History(ctx, s.DB, orderID)
}

// Dispatch binds an agent and moves the order out for delivery. Candidate
// scan, load count and bind share one serializable transaction; when no
// agent has capacity the order stays CONFIRMED.
func (s *service) Dispatch(ctx context.Context, caller auth.Identity, orderID int64) (*Order, error) {
	if caller.Role != auth.RoleAdmin && caller.Role != auth.RoleSystem {
		return nil, auth.ErrForbiddenRole
	}

	var o *Order
	err := db.WithTx(ctx, s.DB, db.Serializable, func(tx *sql.Tx) error {
		var err error
		o, err = s.Repo.Get(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		if o.Status != StatusConfirmed {
			return transitionError(o.ID, o.Status, StatusOutForDelivery)
		}

		agent, err := s.Allocator.Allocate(ctx, tx)
		if err != nil {
			return err
		}

		return s.Machine.Transition(ctx, tx, o, Change{
			From:    StatusConfirmed,
			To:      StatusOutForDelivery,
			AgentID: &agent.ID,
		}, caller)
	})
	if err != nil {
		logger.FromCtx(ctx).Warn("dispatch failed",
			zap.String("layer", "service"),
			zap.String("method", "Dispatch"),
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return nil, err
	}
	return o, nil
}

// Deliver completes the order. Agents may only deliver orders bound to
// them. Cash orders are settled on delivery.
func (s *service) Deliver(ctx context.Context, caller auth.Identity, orderID int64) (*Order, error) {
	if caller.Role != auth.RoleAdmin && caller.Role != auth.RoleDeliveryAgent {
		return nil, auth.ErrForbiddenRole
	}

	var o *Order
	err := db.WithTx(ctx, s.DB, db.ReadCommitted, func(tx *sql.Tx) error {
		var err error
		o, err = s.Repo.Get(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		if caller.Role == auth.RoleDeliveryAgent &&
			(o.DeliveryAgentID == nil || *o.DeliveryAgentID != caller.ID) {
			return ErrNotAssignedAgent
		}
		if o.Status != StatusOutForDelivery || o.DeliveryAgentID == nil {
			return transitionError(o.ID, o.Status, StatusDelivered)
		}

		agent, err := s.Agents.Get(ctx, tx, *o.DeliveryAgentID)
		if err != nil {
			return err
		}
		commission := agent.Commission(o.FinalAmount)

		ch := Change{
			From:            StatusOutForDelivery,
			To:              StatusDelivered,
			AgentCommission: &commission,
			Delivered:       true,
		}
		if o.PaymentMethod == PaymentCOD {
			paid := PaymentPaid
			ch.PaymentStatus = &paid
		}
		return s.Machine.Transition(ctx, tx, o, ch, caller)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func authorizeCancel(caller auth.Identity, o *Order, in CancelInput) error {
	switch caller.Role {
	case auth.RoleAdmin, auth.RoleSystem:
		return nil
	case auth.RoleUser:
		if o.UserID != caller.ID {
			return ErrNotOrderOwner
		}
		if in.RefundAmount != nil {
			return apperr.Forbidden("only an admin can choose the refund amount")
		}
		if o.Status != StatusPending && o.Status != StatusConfirmed && !o.Status.IsTerminal() {
			return ErrCancelNotAllowed
		}
		return nil
	}
	return auth.ErrForbiddenRole
}

// Cancel cancels a non-terminal order in one serializable transaction that
// holds the order row lock throughout. A paid online order is refunded under
// that lock and nothing changes when the refund fails. Cash orders get the
// REFUNDED marker with a zero amount. Any coupon usage is released.
func (s *service) Cancel(ctx context.Context, caller auth.Identity, orderID int64, in CancelInput) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Cancel"),
		zap.Int64("order_id", orderID),
		zap.String("actor_role", string(caller.Role)),
	)

	var o *Order
	err := db.WithTx(ctx, s.DB, db.Serializable, func(tx *sql.Tx) error {
		locked, err := s.Repo.Get(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		if err := authorizeCancel(caller, locked, in); err != nil {
			return err
		}
		if locked.Status.IsTerminal() {
			return transitionError(locked.ID, locked.Status, StatusCancelled)
		}

		if locked.PaymentMethod == PaymentOnline && locked.PaymentStatus == PaymentPaid {
			if err := s.refundLocked(ctx, tx, locked, in); err != nil {
				log.Error("refund failed, order not cancelled", zap.Error(err))
				return err
			}
		}

		role := caller.Role
		ch := Change{From: locked.Status, To: StatusCancelled, CancelledBy: &role}
		if locked.PaymentMethod == PaymentCOD {
			refunded := PaymentRefunded
			zero := decimal.Zero
			ch.RefundStatus = &refunded
			ch.RefundAmount = &zero
		}
		if err := s.Machine.Transition(ctx, tx, locked, ch, caller); err != nil {
			return err
		}

		if locked.CouponID != nil {
			if err := s.Coupons.ReleaseTx(ctx, tx, *locked.CouponID, locked.UserID); err != nil {
				return err
			}
		}
		o = locked
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			log.Warn("cancellation lost a race", zap.Error(err))
		}
		return nil, err
	}
	return o, nil
}

// refundLocked refunds o's settled payment in tx and mirrors the refund the
// payment side recorded on the order row.
func (s *service) refundLocked(ctx context.Context, tx db.DBTX, o *Order, in CancelInput) error {
	amount := o.FinalAmount
	if in.RefundAmount != nil {
		amount = *in.RefundAmount
	}
	if !amount.IsPositive() || amount.GreaterThan(o.FinalAmount) {
		return ErrInvalidRefundAmount
	}

	p, err := s.Payments.RefundOrderTx(ctx, tx, o.ID, amount)
	if err != nil {
		return err
	}
	if p.RefundAmount != nil {
		amount = *p.RefundAmount
	}

	refunded := PaymentRefunded
	o.PaymentStatus = refunded
	o.RefundStatus = &refunded
	o.RefundAmount = &amount
	logger.FromCtx(ctx).Info("refund recorded before cancellation",
		zap.Int64("order_id", o.ID),
		zap.String("amount", amount.String()),
	)
	return nil
}
