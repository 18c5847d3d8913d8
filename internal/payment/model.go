package payment

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ReferenceType string

const (
	ReferenceOrder   ReferenceType = "ORDER"
	ReferenceBooking ReferenceType = "BOOKING"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusPaid     Status = "PAID"
	StatusFailed   Status = "FAILED"
	StatusRefunded Status = "REFUNDED"
)

type Payment struct {
	ID               int64            `json:"id"`
	ReferenceType    ReferenceType    `json:"reference_type"`
	ReferenceID      int64            `json:"reference_id"`
	Amount           decimal.Decimal  `json:"amount"`
	Status           Status           `json:"status"`
	GatewayOrderID   string           `json:"gateway_order_id,omitempty"`
	GatewaySessionID string           `json:"payment_session_id,omitempty"`
	RedirectURL      string           `json:"redirect_url,omitempty"`
	RefundAmount     *decimal.Decimal `json:"refund_amount,omitempty"`
	PaidAt           *time.Time       `json:"paid_at,omitempty"`
	RefundedAt       *time.Time       `json:"refunded_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

const gatewayOrderPrefix = "SNAP_"

// GatewayOrderID is the reference the gateway knows a payment by.
func GatewayOrderID(paymentID int64) string {
	return gatewayOrderPrefix + strconv.FormatInt(paymentID, 10)
}

// RefundID is deterministic per payment so a retried refund is recognised
// by the gateway instead of paying out twice.
func RefundID(paymentID int64) string {
	return "REFUND_" + GatewayOrderID(paymentID)
}

// ParseGatewayOrderID extracts the payment id from "SNAP_<id>".
func ParseGatewayOrderID(ref string) (int64, error) {
	raw, ok := strings.CutPrefix(ref, gatewayOrderPrefix)
	if !ok {
		return 0, fmt.Errorf("unexpected gateway order id %q", ref)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("unexpected gateway order id %q", ref)
	}
	return id, nil
}

// WebhookPayload is the part of the gateway notification the engine reads.
type WebhookPayload struct {
	Type string `json:"type,omitempty"`
	Data struct {
		OrderID     string `json:"order_id"`
		OrderStatus string `json:"order_status"`
	} `json:"data"`
}

// WebhookEvent is one row of the webhook ledger.
type WebhookEvent struct {
	ID             int64
	Provider       string
	Digest         string
	GatewayOrderID string
	EventStatus    string
	SignatureValid bool
	Payload        json.RawMessage
	Processed      bool
}

type Outcome string

const (
	OutcomeProcessed        Outcome = "processed"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeIgnored          Outcome = "ignored"
)

type WebhookResult struct {
	Outcome   Outcome `json:"outcome"`
	PaymentID int64   `json:"payment_id,omitempty"`
	Status    Status  `json:"status,omitempty"`
}
