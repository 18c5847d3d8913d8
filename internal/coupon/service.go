// Package coupon validates coupon codes and applies them exactly once.
package coupon

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"snapkart-be/internal/db"
	"snapkart-be/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Service interface {
	Preview(ctx context.Context, code string, userID int64, cartTotal decimal.Decimal) (*Application, error)
	Apply(ctx context.Context, code string, userID int64, cartTotal decimal.Decimal) (*Application, error)
	ApplyTx(ctx context.Context, q db.DBTX, code string, userID int64, cartTotal decimal.Decimal) (*Application, error)
	AttachOrderTx(ctx context.Context, q db.DBTX, couponID, userID, orderID int64) error
	ReleaseTx(ctx context.Context, q db.DBTX, couponID, userID int64) error
	Create(ctx context.Context, c *Coupon) error
}

type service struct {
	db   *sql.DB
	repo Repository
	now  func() time.Time
}

func NewService(conn *sql.DB, repo Repository) Service {
	return &service{db: conn, repo: repo, now: time.Now}
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// validate checks the coupon in the fixed order: active, not expired, under
// its usage limit. Existence is checked by the lookup.
func (s *service) validate(c *Coupon) error {
	if !c.IsActive {
		return ErrInactive
	}
	if c.ExpiresAt != nil && !s.now().Before(*c.ExpiresAt) {
		return ErrExpired
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return ErrUsageLimitReached
	}
	return nil
}

func (s *service) Preview(ctx context.Context, code string, userID int64, cartTotal decimal.Decimal) (*Application, error) {
	c, err := s.repo.GetByCode(ctx, s.db, NormalizeCode(code), false)
	if err != nil {
		return nil, err
	}
	if err := s.validate(c); err != nil {
		return nil, err
	}
	if c.OneTimePerUser {
		used, err := s.repo.HasUsage(ctx, s.db, c.ID, userID)
		if err != nil {
			return nil, err
		}
		if used {
			return nil, ErrAlreadyUsed
		}
	}
	return &Application{CouponID: c.ID, Code: c.Code, Discount: c.Discount(cartTotal)}, nil
}

// Apply runs ApplyTx in its own serializable transaction.
func (s *service) Apply(ctx context.Context, code string, userID int64, cartTotal decimal.Decimal) (*Application, error) {
	var app *Application
	err := db.WithTx(ctx, s.db, db.Serializable, func(tx *sql.Tx) error {
		var err error
		app, err = s.ApplyTx(ctx, tx, code, userID, cartTotal)
		return err
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// ApplyTx locks the coupon row, validates it, increments used_count under
// the limit precondition and, for one-per-user coupons, records the usage.
// q must be a serializable transaction.
func (s *service) ApplyTx(ctx context.Context, q db.DBTX, code string, userID int64, cartTotal decimal.Decimal) (*Application, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ApplyCoupon"),
		zap.Int64("user_id", userID),
	)

	c, err := s.repo.GetByCode(ctx, q, NormalizeCode(code), true)
	if err != nil {
		return nil, err
	}
	if err := s.validate(c); err != nil {
		log.Info("coupon rejected", zap.String("code", c.Code), zap.Error(err))
		return nil, err
	}

	if c.OneTimePerUser {
		used, err := s.repo.HasUsage(ctx, q, c.ID, userID)
		if err != nil {
			return nil, err
		}
		if used {
			return nil, ErrAlreadyUsed
		}
	}

	ok, err := s.repo.IncrementUsage(ctx, q, c.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUsageLimitReached
	}

	if c.OneTimePerUser {
		if err := s.repo.InsertUsage(ctx, q, c.ID, userID); err != nil {
			log.Warn("coupon usage insert rejected", zap.Int64("coupon_id", c.ID), zap.Error(err))
			return nil, err
		}
	}

	discount := c.Discount(cartTotal)
	log.Info("coupon applied",
		zap.Int64("coupon_id", c.ID),
		zap.String("discount", discount.String()),
	)
	return &Application{CouponID: c.ID, Code: c.Code, Discount: discount}, nil
}

func (s *service) AttachOrderTx(ctx context.Context, q db.DBTX, couponID, userID, orderID int64) error {
	return s.repo.AttachOrder(ctx, q, couponID, userID, orderID)
}

func (s *service) ReleaseTx(ctx context.Context, q db.DBTX, couponID, userID int64) error {
	return s.repo.Release(ctx, q, couponID, userID)
}

func (s *service) Create(ctx context.Context, c *Coupon) error {
	c.Code = NormalizeCode(c.Code)
	if c.Code == "" {
		return ErrInvalidCode
	}
	if !c.Value.IsPositive() ||
		(c.DiscountType != DiscountPercentage && c.DiscountType != DiscountFlat) ||
		(c.DiscountType == DiscountPercentage && c.Value.GreaterThan(decimal.NewFromInt(100))) {
		return ErrInvalidCouponInput
	}
	if c.UsageLimit != nil && *c.UsageLimit < 0 {
		return ErrInvalidCouponInput
	}
	return s.repo.Create(ctx, s.db, c)
}
