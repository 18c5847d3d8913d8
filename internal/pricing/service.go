// Package pricing computes delivery charges from restaurant pricing rules.
package pricing

import (
	"context"
	"database/sql"

	"snapkart-be/internal/db"
	"snapkart-be/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Service interface {
	Quote(ctx context.Context, restaurantID int64, cartTotal decimal.Decimal, distanceKm float64) (*Quote, error)
	QuoteTx(ctx context.Context, q db.DBTX, restaurantID int64, cartTotal decimal.Decimal, distanceKm float64) (*Quote, error)
	CreateRule(ctx context.Context, rule *Rule) error
	DeactivateRule(ctx context.Context, id int64) error
}

type service struct {
	db   *sql.DB
	repo Repository
}

func NewService(conn *sql.DB, repo Repository) Service {
	return &service{db: conn, repo: repo}
}

func (s *service) Quote(ctx context.Context, restaurantID int64, cartTotal decimal.Decimal, distanceKm float64) (*Quote, error) {
	return s.QuoteTx(ctx, s.db, restaurantID, cartTotal, distanceKm)
}

// QuoteTx prices against the rules visible to q, so checkout can price
// inside its own transaction.
func (s *service) QuoteTx(ctx context.Context, q db.DBTX, restaurantID int64, cartTotal decimal.Decimal, distanceKm float64) (*Quote, error) {
	if cartTotal.IsNegative() {
		return nil, ErrNegativeCartTotal
	}
	if distanceKm < 0 {
		return nil, ErrNegativeDistance
	}

	rules, err := s.repo.ActiveRules(ctx, q, restaurantID)
	if err != nil {
		return nil, err
	}

	charge, rule := Compute(rules, cartTotal, distanceKm)

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Quote"),
		zap.Int64("restaurant_id", restaurantID),
	)
	if rule == nil {
		log.Debug("no pricing rule matched, delivery is free",
			zap.String("cart_total", cartTotal.String()),
			zap.Float64("distance_km", distanceKm),
		)
	} else {
		log.Debug("pricing rule matched",
			zap.Int64("rule_id", rule.ID),
			zap.String("charge", charge.String()),
		)
	}

	return &Quote{DeliveryCharge: charge, DistanceKm: distanceKm, Rule: rule}, nil
}

func (s *service) CreateRule(ctx context.Context, rule *Rule) error {
	if err := validateRule(rule); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, s.db, rule); err != nil {
		logger.FromCtx(ctx).Error("failed to create pricing rule",
			zap.String("layer", "service"),
			zap.String("method", "CreateRule"),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *service) DeactivateRule(ctx context.Context, id int64) error {
	return s.repo.Deactivate(ctx, s.db, id)
}

func validateRule(r *Rule) error {
	if !r.ChargeType.Valid() {
		return ErrInvalidChargeType
	}
	if r.MinOrder.IsNegative() || r.ChargeAmount.IsNegative() || r.PerKmCharge.IsNegative() ||
		r.MinDistance < 0 || r.BaseDistance < 0 {
		return ErrNegativeRuleAmount
	}
	if r.MaxOrder != nil && r.MaxOrder.LessThan(r.MinOrder) {
		return ErrInvalidOrderRange
	}
	if r.MaxDistance != nil && *r.MaxDistance < r.MinDistance {
		return ErrInvalidDistRange
	}
	return nil
}
