package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"snapkart-be/internal/auth"
	"snapkart-be/internal/catalog"
	"snapkart-be/internal/db"

	"github.com/shopspring/decimal"
)

type Repository interface {
	Create(ctx context.Context, q db.DBTX, o *Order) error
	Get(ctx context.Context, q db.DBTX, id int64, forUpdate bool) (*Order, error)
	Items(ctx context.Context, q db.DBTX, orderID int64) ([]catalog.LineItem, error)
	Apply(ctx context.Context, q db.DBTX, ch Change) error
	RecordRefund(ctx context.Context, q db.DBTX, orderID int64, amount decimal.Decimal) error
	AppendHistory(ctx context.Context, q db.DBTX, e *HistoryEntry) error
	History(ctx context.Context, q db.DBTX, orderID int64) ([]HistoryEntry, error)
}

// Change is a single precondition-guarded write: the row is updated only
// while its status is still From.
type Change struct {
	OrderID         int64
	From            Status
	To              Status
	PaymentStatus   *PaymentStatus
	AgentID         *int64
	AgentCommission *decimal.Decimal
	CancelledBy     *auth.Role
	RefundAmount    *decimal.Decimal
	RefundStatus    *PaymentStatus
	Delivered       bool
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

const orderColumns = `
	id, user_id, restaurant_id, subtotal, delivery_charge, discount, final_amount,
	coupon_id, distance_km, delivery_lat, delivery_lng, status, payment_method,
	payment_status, delivery_agent_id, agent_commission, cancelled_by, cancelled_at,
	refund_amount, refund_status, delivered_at, created_at, updated_at`

func (r *repository) Create(ctx context.Context, q db.DBTX, o *Order) error {
	var couponID sql.NullInt64
	if o.CouponID != nil {
		couponID = sql.NullInt64{Int64: *o.CouponID, Valid: true}
	}

	err := q.QueryRowContext(ctx, `
		INSERT INTO orders (
			user_id, restaurant_id, subtotal, delivery_charge, discount, final_amount,
			coupon_id, distance_km, delivery_lat, delivery_lng, status, payment_method, payment_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`,
		o.UserID, o.RestaurantID, o.Subtotal, o.DeliveryCharge, o.Discount, o.FinalAmount,
		couponID, o.DistanceKm, o.DeliveryLat, o.DeliveryLng, o.Status, o.PaymentMethod, o.PaymentStatus,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range o.Items {
		extras, err := json.Marshal(it.Extras)
		if err != nil {
			return fmt.Errorf("encode extras: %w", err)
		}
		var variantID sql.NullInt64
		if it.VariantID != nil {
			variantID = sql.NullInt64{Int64: *it.VariantID, Valid: true}
		}
		var variantName sql.NullString
		if it.VariantName != nil {
			variantName = sql.NullString{String: *it.VariantName, Valid: true}
		}

		if _, err := q.ExecContext(ctx, `
			INSERT INTO order_items (
				order_id, product_id, product_name, variant_id, variant_name,
				extras, quantity, unit_price, line_total
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			o.ID, it.ProductID, it.ProductName, variantID, variantName,
			extras, it.Quantity, it.UnitPrice, it.LineTotal,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r *repository) Get(ctx context.Context, q db.DBTX, id int64, forUpdate bool) (*Order, error) {
	query := `SELECT` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		o            Order
		couponID     sql.NullInt64
		agentID      sql.NullInt64
		commission   decimal.NullDecimal
		cancelledBy  sql.NullString
		cancelledAt  sql.NullTime
		refundAmount decimal.NullDecimal
		refundStatus sql.NullString
		deliveredAt  sql.NullTime
	)
	err := q.QueryRowContext(ctx, query, id).Scan(
		&o.ID, &o.UserID, &o.RestaurantID, &o.Subtotal, &o.DeliveryCharge, &o.Discount, &o.FinalAmount,
		&couponID, &o.DistanceKm, &o.DeliveryLat, &o.DeliveryLng, &o.Status, &o.PaymentMethod,
		&o.PaymentStatus, &agentID, &commission, &cancelledBy, &cancelledAt,
		&refundAmount, &refundStatus, &deliveredAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}

	if couponID.Valid {
		o.CouponID = &couponID.Int64
	}
	if agentID.Valid {
		o.DeliveryAgentID = &agentID.Int64
	}
	if commission.Valid {
		o.AgentCommission = &commission.Decimal
	}
	if cancelledBy.Valid {
		role := auth.Role(cancelledBy.String)
		o.CancelledBy = &role
	}
	if cancelledAt.Valid {
		o.CancelledAt = &cancelledAt.Time
	}
	if refundAmount.Valid {
		o.RefundAmount = &refundAmount.Decimal
	}
	if refundStatus.Valid {
		st := PaymentStatus(refundStatus.String)
		o.RefundStatus = &st
	}
	if deliveredAt.Valid {
		o.DeliveredAt = &deliveredAt.Time
	}
	return &o, nil
}

func (r *repository) Items(ctx context.Context, q db.DBTX, orderID int64) ([]catalog.LineItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT product_id, product_name, variant_id, variant_name, extras, quantity, unit_price, line_total
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []catalog.LineItem
	for rows.Next() {
		var (
			it          catalog.LineItem
			variantID   sql.NullInt64
			variantName sql.NullString
			extras      []byte
		)
		if err := rows.Scan(
			&it.ProductID, &it.ProductName, &variantID, &variantName, &extras,
			&it.Quantity, &it.UnitPrice, &it.LineTotal,
		); err != nil {
			return nil, err
		}
		if variantID.Valid {
			it.VariantID = &variantID.Int64
		}
		if variantName.Valid {
			it.VariantName = &variantName.String
		}
		if len(extras) > 0 {
			if err := json.Unmarshal(extras, &it.Extras); err != nil {
				return nil, fmt.Errorf("decode extras: %w", err)
			}
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Apply writes ch guarded by status = ch.From. A lost precondition is
// reported as ErrStaleOrder.
func (r *repository) Apply(ctx context.Context, q db.DBTX, ch Change) error {
	sets := []string{"status = $1", "updated_at = now()"}
	args := []any{ch.To}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if ch.PaymentStatus != nil {
		add("payment_status", *ch.PaymentStatus)
	}
	if ch.AgentID != nil {
		add("delivery_agent_id", *ch.AgentID)
	}
	if ch.AgentCommission != nil {
		add("agent_commission", *ch.AgentCommission)
	}
	if ch.CancelledBy != nil {
		add("cancelled_by", *ch.CancelledBy)
		sets = append(sets, "cancelled_at = now()")
	}
	if ch.RefundAmount != nil {
		add("refund_amount", *ch.RefundAmount)
	}
	if ch.RefundStatus != nil {
		add("refund_status", *ch.RefundStatus)
	}
	if ch.Delivered {
		sets = append(sets, "delivered_at = now()")
	}

	args = append(args, ch.OrderID, ch.From)
	query := fmt.Sprintf(`UPDATE orders SET %s WHERE id = $%d AND status = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update order %d: %w", ch.OrderID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStaleOrder
	}
	return nil
}

// RecordRefund stores the refund outcome without touching the lifecycle
// status; cancellation moves the status separately.
func (r *repository) RecordRefund(ctx context.Context, q db.DBTX, orderID int64, amount decimal.Decimal) error {
	res, err := q.ExecContext(ctx, `
		UPDATE orders
		SET refund_amount = $2, refund_status = $3, payment_status = $3, updated_at = now()
		WHERE id = $1
	`, orderID, amount, PaymentRefunded)
	if err != nil {
		return fmt.Errorf("record refund on order %d: %w", orderID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *repository) AppendHistory(ctx context.Context, q db.DBTX, e *HistoryEntry) error {
	var from sql.NullString
	if e.From != nil {
		from = sql.NullString{String: string(*e.From), Valid: true}
	}
	var actorID sql.NullInt64
	if e.ActorID != nil {
		actorID = sql.NullInt64{Int64: *e.ActorID, Valid: true}
	}

	err := q.QueryRowContext(ctx, `
		INSERT INTO order_status_history (order_id, from_status, to_status, actor_role, actor_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, e.OrderID, from, e.To, e.ActorRole, actorID).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append order history: %w", err)
	}
	return nil
}

func (r *repository) History(ctx context.Context, q db.DBTX, orderID int64) ([]HistoryEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, from_status, to_status, actor_role, actor_id, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			e       HistoryEntry
			from    sql.NullString
			actorID sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &from, &e.To, &e.ActorRole, &actorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if from.Valid {
			st := Status(from.String)
			e.From = &st
		}
		if actorID.Valid {
			e.ActorID = &actorID.Int64
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
