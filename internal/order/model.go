package order

import (
	"time"

	"snapkart-be/internal/auth"
	"snapkart-be/internal/catalog"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending        Status = "PENDING"
	StatusConfirmed      Status = "CONFIRMED"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusDelivered      Status = "DELIVERED"
	StatusCancelled      Status = "CANCELLED"
)

type PaymentMethod string

const (
	PaymentOnline PaymentMethod = "ONLINE"
	PaymentCOD    PaymentMethod = "COD"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

type Order struct {
	ID              int64              `json:"id"`
	UserID          int64              `json:"user_id"`
	RestaurantID    int64              `json:"restaurant_id"`
	Items           []catalog.LineItem `json:"items,omitempty"`
	Subtotal        decimal.Decimal    `json:"subtotal"`
	DeliveryCharge  decimal.Decimal    `json:"delivery_charge"`
	Discount        decimal.Decimal    `json:"discount"`
	FinalAmount     decimal.Decimal    `json:"final_amount"`
	CouponID        *int64             `json:"coupon_id,omitempty"`
	DistanceKm      float64            `json:"distance_km"`
	DeliveryLat     float64            `json:"delivery_lat"`
	DeliveryLng     float64            `json:"delivery_lng"`
	Status          Status             `json:"status"`
	PaymentMethod   PaymentMethod      `json:"payment_method"`
	PaymentStatus   PaymentStatus      `json:"payment_status"`
	DeliveryAgentID *int64             `json:"delivery_agent_id,omitempty"`
	AgentCommission *decimal.Decimal   `json:"agent_commission,omitempty"`
	CancelledBy     *auth.Role         `json:"cancelled_by,omitempty"`
	CancelledAt     *time.Time         `json:"cancelled_at,omitempty"`
	RefundAmount    *decimal.Decimal   `json:"refund_amount,omitempty"`
	RefundStatus    *PaymentStatus     `json:"refund_status,omitempty"`
	DeliveredAt     *time.Time         `json:"delivered_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// HistoryEntry is one audited transition. From is nil for creation.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	From      *Status   `json:"from_status,omitempty"`
	To        Status    `json:"to_status"`
	ActorRole auth.Role `json:"actor_role"`
	ActorID   *int64    `json:"actor_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CheckoutInput is the typed checkout request shared by Quote and Place.
type CheckoutInput struct {
	RestaurantID  int64                 `json:"restaurant_id"`
	Items         []catalog.ItemRequest `json:"items"`
	DeliveryLat   float64               `json:"delivery_lat"`
	DeliveryLng   float64               `json:"delivery_lng"`
	CouponCode    string                `json:"coupon_code,omitempty"`
	PaymentMethod PaymentMethod         `json:"payment_method"`
}

func (in CheckoutInput) Validate() error {
	if in.RestaurantID <= 0 {
		return ErrInvalidRestaurant
	}
	if len(in.Items) == 0 {
		return catalog.ErrEmptyCart
	}
	for _, it := range in.Items {
		if it.ProductID <= 0 || it.Quantity <= 0 {
			return ErrInvalidItem
		}
	}
	if in.PaymentMethod != "" && in.PaymentMethod != PaymentOnline && in.PaymentMethod != PaymentCOD {
		return ErrInvalidPaymentMethod
	}
	return nil
}

// Quote is a priced cart that has not been persisted.
type Quote struct {
	Items          []catalog.LineItem `json:"items"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	DeliveryCharge decimal.Decimal    `json:"delivery_charge"`
	Discount       decimal.Decimal    `json:"discount"`
	FinalAmount    decimal.Decimal    `json:"final_amount"`
	DistanceKm     float64            `json:"distance_km"`
	CouponCode     string             `json:"coupon_code,omitempty"`
}

// Placement is the result of placing an order. Online orders carry the
// gateway session the client is redirected to.
type Placement struct {
	Order       *Order `json:"order"`
	PaymentID   *int64 `json:"payment_id,omitempty"`
	SessionID   string `json:"payment_session_id,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// CancelInput carries the optional partial refund amount.
type CancelInput struct {
	RefundAmount *decimal.Decimal `json:"refund_amount,omitempty"`
}
