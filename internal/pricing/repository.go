package pricing

import (
	"context"
	"database/sql"
	"fmt"

	"snapkart-be/internal/db"

	"github.com/shopspring/decimal"
)

type Repository interface {
	ActiveRules(ctx context.Context, q db.DBTX, restaurantID int64) ([]Rule, error)
	Create(ctx context.Context, q db.DBTX, rule *Rule) error
	Deactivate(ctx context.Context, q db.DBTX, id int64) error
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

func (r *repository) ActiveRules(ctx context.Context, q db.DBTX, restaurantID int64) ([]Rule, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, restaurant_id, min_order, max_order, min_distance, max_distance,
		       charge_type, charge_amount, base_distance, per_km_charge, is_active, created_at
		FROM delivery_pricing_rules
		WHERE restaurant_id = $1 AND is_active = TRUE
	`, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("query pricing rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var (
			rule    Rule
			maxOrd  decimal.NullDecimal
			maxDist sql.NullFloat64
		)
		if err := rows.Scan(
			&rule.ID, &rule.RestaurantID, &rule.MinOrder, &maxOrd, &rule.MinDistance, &maxDist,
			&rule.ChargeType, &rule.ChargeAmount, &rule.BaseDistance, &rule.PerKmCharge,
			&rule.IsActive, &rule.CreatedAt,
		); err != nil {
			return nil, err
		}
		if maxOrd.Valid {
			v := maxOrd.Decimal
			rule.MaxOrder = &v
		}
		if maxDist.Valid {
			v := maxDist.Float64
			rule.MaxDistance = &v
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *repository) Create(ctx context.Context, q db.DBTX, rule *Rule) error {
	var maxOrd decimal.NullDecimal
	if rule.MaxOrder != nil {
		maxOrd = decimal.NewNullDecimal(*rule.MaxOrder)
	}
	var maxDist sql.NullFloat64
	if rule.MaxDistance != nil {
		maxDist = sql.NullFloat64{Float64: *rule.MaxDistance, Valid: true}
	}

	err := q.QueryRowContext(ctx, `
		INSERT INTO delivery_pricing_rules (
			restaurant_id, min_order, max_order, min_distance, max_distance,
			charge_type, charge_amount, base_distance, per_km_charge
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, is_active, created_at
	`,
		rule.RestaurantID, rule.MinOrder, maxOrd, rule.MinDistance, maxDist,
		rule.ChargeType, rule.ChargeAmount, rule.BaseDistance, rule.PerKmCharge,
	).Scan(&rule.ID, &rule.IsActive, &rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert pricing rule: %w", err)
	}
	return nil
}

func (r *repository) Deactivate(ctx context.Context, q db.DBTX, id int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE delivery_pricing_rules SET is_active = FALSE WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate pricing rule: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrRuleNotFound
	}
	return nil
}
