package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

type SessionRequest struct {
	GatewayOrderID string
	Amount         decimal.Decimal
	CustomerID     string
	ReturnURL      string
}

type Session struct {
	SessionID   string
	RedirectURL string
}

type RefundResult struct {
	RefundID string
	Status   string
}

// GatewayOrder is the gateway's own view of a payment.
type GatewayOrder struct {
	OrderID     string
	OrderStatus string
	Amount      decimal.Decimal
}

type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	Refund(ctx context.Context, gatewayOrderID, refundID string, amount decimal.Decimal) (*RefundResult, error)
	FetchStatus(ctx context.Context, gatewayOrderID string) (*GatewayOrder, error)
}
