package coupon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"snapkart-be/internal/db"
)

type Repository interface {
	GetByCode(ctx context.Context, q db.DBTX, code string, forUpdate bool) (*Coupon, error)
	HasUsage(ctx context.Context, q db.DBTX, couponID, userID int64) (bool, error)
	IncrementUsage(ctx context.Context, q db.DBTX, couponID int64) (bool, error)
	InsertUsage(ctx context.Context, q db.DBTX, couponID, userID int64) error
	AttachOrder(ctx context.Context, q db.DBTX, couponID, userID, orderID int64) error
	Release(ctx context.Context, q db.DBTX, couponID, userID int64) error
	Create(ctx context.Context, q db.DBTX, c *Coupon) error
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

const couponColumns = `
	id, code, discount_type, value, is_active, expires_at,
	usage_limit, one_time_per_user, used_count, created_at`

func (r *repository) GetByCode(ctx context.Context, q db.DBTX, code string, forUpdate bool) (*Coupon, error) {
	query := `SELECT` + couponColumns + ` FROM coupons WHERE code = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		c       Coupon
		expires sql.NullTime
		limit   sql.NullInt64
	)
	err := q.QueryRowContext(ctx, query, code).Scan(
		&c.ID, &c.Code, &c.DiscountType, &c.Value, &c.IsActive, &expires,
		&limit, &c.OneTimePerUser, &c.UsedCount, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	if expires.Valid {
		t := expires.Time
		c.ExpiresAt = &t
	}
	if limit.Valid {
		n := int(limit.Int64)
		c.UsageLimit = &n
	}
	return &c, nil
}

func (r *repository) HasUsage(ctx context.Context, q db.DBTX, couponID, userID int64) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2)
	`, couponID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check coupon usage: %w", err)
	}
	return exists, nil
}

// IncrementUsage bumps used_count unless the limit is already reached. It
// reports false when the precondition failed.
func (r *repository) IncrementUsage(ctx context.Context, q db.DBTX, couponID int64) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE coupons
		SET used_count = used_count + 1
		WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)
	`, couponID)
	if err != nil {
		return false, fmt.Errorf("increment coupon usage: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *repository) InsertUsage(ctx context.Context, q db.DBTX, couponID, userID int64) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO coupon_usages (coupon_id, user_id) VALUES ($1, $2)
	`, couponID, userID)
	if db.IsUniqueViolation(err) {
		return ErrAlreadyUsed
	}
	if err != nil {
		return fmt.Errorf("insert coupon usage: %w", err)
	}
	return nil
}

func (r *repository) AttachOrder(ctx context.Context, q db.DBTX, couponID, userID, orderID int64) error {
	_, err := q.ExecContext(ctx, `
		UPDATE coupon_usages SET order_id = $3 WHERE coupon_id = $1 AND user_id = $2
	`, couponID, userID, orderID)
	if err != nil {
		return fmt.Errorf("attach order to coupon usage: %w", err)
	}
	return nil
}

// Release undoes one application: the per-user usage row goes away and the
// running count drops by one.
func (r *repository) Release(ctx context.Context, q db.DBTX, couponID, userID int64) error {
	if _, err := q.ExecContext(ctx, `
		DELETE FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2
	`, couponID, userID); err != nil {
		return fmt.Errorf("delete coupon usage: %w", err)
	}
	if _, err := q.ExecContext(ctx, `
		UPDATE coupons SET used_count = used_count - 1 WHERE id = $1 AND used_count > 0
	`, couponID); err != nil {
		return fmt.Errorf("decrement coupon usage: %w", err)
	}
	return nil
}

func (r *repository) Create(ctx context.Context, q db.DBTX, c *Coupon) error {
	var limit sql.NullInt64
	if c.UsageLimit != nil {
		limit = sql.NullInt64{Int64: int64(*c.UsageLimit), Valid: true}
	}
	var expires sql.NullTime
	if c.ExpiresAt != nil {
		expires = sql.NullTime{Time: *c.ExpiresAt, Valid: true}
	}

	err := q.QueryRowContext(ctx, `
		INSERT INTO coupons (code, discount_type, value, is_active, expires_at, usage_limit, one_time_per_user)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, used_count, created_at
	`, c.Code, c.DiscountType, c.Value, c.IsActive, expires, limit, c.OneTimePerUser,
	).Scan(&c.ID, &c.UsedCount, &c.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrCodeExists
	}
	if err != nil {
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}
