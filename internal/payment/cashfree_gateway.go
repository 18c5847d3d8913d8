package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"snapkart-be/internal/config"
	"snapkart-be/internal/logger"
	"snapkart-be/internal/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const currencyINR = "INR"

type cashfreeGateway struct {
	baseURL      string
	clientID     string
	clientSecret string
	apiVersion   string
	httpClient   *http.Client
}

// ----------------- Constructor -----------------

func NewCashfreeGateway(cfg config.GatewayConfig) Gateway {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		logger.L().Warn("payment gateway credentials are empty")
	}

	return &cashfreeGateway{
		baseURL:      cfg.BaseURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		apiVersion:   cfg.APIVersion,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type cashfreeError struct {
	StatusCode int
	Body       string
}

func (e *cashfreeError) Error() string {
	return fmt.Sprintf("cashfree returned %d: %s", e.StatusCode, e.Body)
}

func (c *cashfreeGateway) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode cashfree request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-client-id", c.clientID)
	req.Header.Set("x-client-secret", c.clientSecret)
	req.Header.Set("x-api-version", c.apiVersion)

	timer := metrics.StartTimer()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveGateway(timer)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read cashfree response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &cashfreeError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode cashfree response: %w", err)
	}
	return nil
}

func amountNumber(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// ----------------- CreateSession -----------------

func (c *cashfreeGateway) CreateSession(ctx context.Context, in SessionRequest) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("gateway", "cashfree"),
		zap.String("gateway_order_id", in.GatewayOrderID),
		zap.String("amount", in.Amount.StringFixed(2)),
	)

	body := map[string]any{
		"order_id":       in.GatewayOrderID,
		"order_amount":   amountNumber(in.Amount),
		"order_currency": currencyINR,
		"customer_details": map[string]any{
			"customer_id": in.CustomerID,
		},
	}
	if in.ReturnURL != "" {
		body["order_meta"] = map[string]any{"return_url": in.ReturnURL}
	}

	var res struct {
		OrderID          string `json:"order_id"`
		PaymentSessionID string `json:"payment_session_id"`
		PaymentLink      string `json:"payment_link"`
		OrderStatus      string `json:"order_status"`
	}
	if err := c.do(ctx, http.MethodPost, "/pg/orders", body, &res); err != nil {
		log.Error("cashfree create order failed", zap.Error(err))
		return nil, err
	}

	log.Info("cashfree order created",
		zap.String("session_id", res.PaymentSessionID),
		zap.String("status", res.OrderStatus),
	)
	return &Session{SessionID: res.PaymentSessionID, RedirectURL: res.PaymentLink}, nil
}

// ----------------- Refund -----------------

// Refund asks the gateway to refund amount. A 409 is accepted only when the
// refund stored under refundID is live and for the same amount, which is the
// retry of a refund that already went through.
func (c *cashfreeGateway) Refund(ctx context.Context, gatewayOrderID, refundID string, amount decimal.Decimal) (*RefundResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("gateway", "cashfree"),
		zap.String("gateway_order_id", gatewayOrderID),
		zap.String("refund_id", refundID),
	)

	body := map[string]any{
		"refund_amount": amountNumber(amount),
		"refund_id":     refundID,
		"refund_note":   "order cancelled",
	}

	var res cashfreeRefund
	err := c.do(ctx, http.MethodPost, refundsPath(gatewayOrderID), body, &res)
	var cfErr *cashfreeError
	if errors.As(err, &cfErr) && cfErr.StatusCode == http.StatusConflict {
		existing, lErr := c.existingRefund(ctx, gatewayOrderID, refundID, amount)
		if lErr != nil {
			log.Error("refund conflict not confirmed", zap.Error(lErr))
			return nil, fmt.Errorf("%w (%v)", err, lErr)
		}
		log.Info("refund already exists at gateway", zap.String("status", existing.RefundStatus))
		return &RefundResult{RefundID: existing.RefundID, Status: existing.RefundStatus}, nil
	}
	if err != nil {
		log.Error("cashfree refund failed", zap.Error(err))
		return nil, err
	}

	log.Info("cashfree refund accepted", zap.String("status", res.RefundStatus))
	return &RefundResult{RefundID: res.RefundID, Status: res.RefundStatus}, nil
}

type cashfreeRefund struct {
	RefundID     string          `json:"refund_id"`
	RefundStatus string          `json:"refund_status"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
}

func refundsPath(gatewayOrderID string) string {
	return "/pg/orders/" + url.PathEscape(gatewayOrderID) + "/refunds"
}

// existingRefund loads refundID and checks it is the refund being retried.
func (c *cashfreeGateway) existingRefund(ctx context.Context, gatewayOrderID, refundID string, amount decimal.Decimal) (*cashfreeRefund, error) {
	var res cashfreeRefund
	if err := c.do(ctx, http.MethodGet, refundsPath(gatewayOrderID)+"/"+url.PathEscape(refundID), nil, &res); err != nil {
		return nil, err
	}
	switch strings.ToUpper(res.RefundStatus) {
	case "CANCELLED", "FAILED":
		return nil, fmt.Errorf("existing refund %s is %s", refundID, res.RefundStatus)
	}
	if !res.RefundAmount.Equal(amount) {
		return nil, fmt.Errorf("existing refund %s is for %s, not %s",
			refundID, res.RefundAmount.StringFixed(2), amount.StringFixed(2))
	}
	if res.RefundID == "" {
		res.RefundID = refundID
	}
	return &res, nil
}

// ----------------- FetchStatus -----------------

func (c *cashfreeGateway) FetchStatus(ctx context.Context, gatewayOrderID string) (*GatewayOrder, error) {
	var res struct {
		OrderID     string          `json:"order_id"`
		OrderStatus string          `json:"order_status"`
		OrderAmount decimal.Decimal `json:"order_amount"`
	}
	if err := c.do(ctx, http.MethodGet, "/pg/orders/"+url.PathEscape(gatewayOrderID), nil, &res); err != nil {
		logger.FromCtx(ctx).Error("cashfree fetch order failed",
			zap.String("gateway_order_id", gatewayOrderID),
			zap.Error(err),
		)
		return nil, err
	}
	return &GatewayOrder{OrderID: res.OrderID, OrderStatus: res.OrderStatus, Amount: res.OrderAmount}, nil
}
