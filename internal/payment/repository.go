package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"snapkart-be/internal/db"

	"github.com/shopspring/decimal"
)

type Repository interface {
	Create(ctx context.Context, q db.DBTX, p *Payment) error
	SetSession(ctx context.Context, q db.DBTX, id int64, gatewayOrderID, sessionID, redirectURL string) error
	Get(ctx context.Context, q db.DBTX, id int64, forUpdate bool) (*Payment, error)
	LatestSettledByReference(ctx context.Context, q db.DBTX, ref ReferenceType, refID int64) (*Payment, error)
	MarkPaid(ctx context.Context, q db.DBTX, id int64) error
	MarkFailed(ctx context.Context, q db.DBTX, id int64) error
	MarkRefunded(ctx context.Context, q db.DBTX, id int64, amount decimal.Decimal) error

	SaveWebhook(ctx context.Context, q db.DBTX, evt *WebhookEvent) error
	MarkWebhookProcessed(ctx context.Context, q db.DBTX, webhookID int64) error
	MarkWebhookFailed(ctx context.Context, q db.DBTX, webhookID int64, reason string) error
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

const paymentColumns = `
	id, reference_type, reference_id, amount, status, gateway_order_id, gateway_session_id,
	redirect_url, refund_amount, paid_at, refunded_at, created_at, updated_at`

func scanPayment(sc interface{ Scan(...any) error }) (*Payment, error) {
	var (
		p          Payment
		gwOrderID  sql.NullString
		sessionID  sql.NullString
		redirect   sql.NullString
		refund     decimal.NullDecimal
		paidAt     sql.NullTime
		refundedAt sql.NullTime
	)
	if err := sc.Scan(
		&p.ID, &p.ReferenceType, &p.ReferenceID, &p.Amount, &p.Status, &gwOrderID, &sessionID,
		&redirect, &refund, &paidAt, &refundedAt, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.GatewayOrderID = gwOrderID.String
	p.GatewaySessionID = sessionID.String
	p.RedirectURL = redirect.String
	if refund.Valid {
		p.RefundAmount = &refund.Decimal
	}
	if paidAt.Valid {
		p.PaidAt = &paidAt.Time
	}
	if refundedAt.Valid {
		p.RefundedAt = &refundedAt.Time
	}
	return &p, nil
}

func (r *repository) Create(ctx context.Context, q db.DBTX, p *Payment) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO payments (reference_type, reference_id, amount, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, p.ReferenceType, p.ReferenceID, p.Amount, p.Status).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *repository) SetSession(ctx context.Context, q db.DBTX, id int64, gatewayOrderID, sessionID, redirectURL string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE payments
		SET gateway_order_id = $2, gateway_session_id = $3, redirect_url = $4, updated_at = now()
		WHERE id = $1
	`, id, gatewayOrderID, sessionID, redirectURL)
	if err != nil {
		return fmt.Errorf("store payment session: %w", err)
	}
	return nil
}

func (r *repository) Get(ctx context.Context, q db.DBTX, id int64, forUpdate bool) (*Payment, error) {
	query := `SELECT` + paymentColumns + ` FROM payments WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	p, err := scanPayment(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment %d: %w", id, err)
	}
	return p, nil
}

// LatestSettledByReference returns the newest PAID or REFUNDED payment for
// a reference.
func (r *repository) LatestSettledByReference(ctx context.Context, q db.DBTX, ref ReferenceType, refID int64) (*Payment, error) {
	p, err := scanPayment(q.QueryRowContext(ctx, `
		SELECT`+paymentColumns+`
		FROM payments
		WHERE reference_type = $1 AND reference_id = $2 AND status IN ('PAID', 'REFUNDED')
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, ref, refID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment for %s %d: %w", ref, refID, err)
	}
	return p, nil
}

// MarkPaid never touches a payment that is already PAID or REFUNDED.
func (r *repository) MarkPaid(ctx context.Context, q db.DBTX, id int64) error {
	return r.conditional(ctx, q, `
		UPDATE payments SET status = 'PAID', paid_at = now(), updated_at = now()
		WHERE id = $1 AND status IN ('PENDING', 'FAILED')
	`, id)
}

func (r *repository) MarkFailed(ctx context.Context, q db.DBTX, id int64) error {
	return r.conditional(ctx, q, `
		UPDATE payments SET status = 'FAILED', updated_at = now()
		WHERE id = $1 AND status = 'PENDING'
	`, id)
}

func (r *repository) MarkRefunded(ctx context.Context, q db.DBTX, id int64, amount decimal.Decimal) error {
	return r.conditional(ctx, q, `
		UPDATE payments SET status = 'REFUNDED', refund_amount = $2, refunded_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'PAID'
	`, id, amount)
}

func (r *repository) conditional(ctx context.Context, q db.DBTX, query string, args ...any) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStalePayment
	}
	return nil
}

// SaveWebhook records evt keyed by (provider, digest). A redelivery of the
// same body returns the existing row with Processed reflecting whether it
// was already applied.
func (r *repository) SaveWebhook(ctx context.Context, q db.DBTX, evt *WebhookEvent) error {
	const query = `
	INSERT INTO payment_webhooks (
		provider,
		digest,
		gateway_order_id,
		event_status,
		signature_valid,
		payload
	)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (provider, digest)
	DO UPDATE SET signature_valid = EXCLUDED.signature_valid
	RETURNING id, processed_at IS NOT NULL;
	`

	err := q.QueryRowContext(ctx, query,
		evt.Provider,
		evt.Digest,
		evt.GatewayOrderID,
		evt.EventStatus,
		evt.SignatureValid,
		[]byte(evt.Payload),
	).Scan(&evt.ID, &evt.Processed)
	if err != nil {
		return fmt.Errorf("save webhook: %w", err)
	}
	return nil
}

func (r *repository) MarkWebhookProcessed(ctx context.Context, q db.DBTX, webhookID int64) error {
	const query = `
	UPDATE payment_webhooks
	SET processed_at = now(), process_error = NULL
	WHERE id = $1;
	`
	_, err := q.ExecContext(ctx, query, webhookID)
	return err
}

func (r *repository) MarkWebhookFailed(ctx context.Context, q db.DBTX, webhookID int64, reason string) error {
	const query = `
	UPDATE payment_webhooks
	SET process_error = $2
	WHERE id = $1;
	`
	_, err := q.ExecContext(ctx, query, webhookID, reason)
	return err
}
