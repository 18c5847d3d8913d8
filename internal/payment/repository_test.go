package payment

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var paymentCols = []string{
	"id", "reference_type", "reference_id", "amount", "status", "gateway_order_id", "gateway_session_id",
	"redirect_url", "refund_amount", "paid_at", "refunded_at", "created_at", "updated_at",
}

func TestRepository_Get(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	now := time.Now()
	mock.ExpectQuery(`FROM payments WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(paymentCols).AddRow(
			42, "ORDER", 7, "250.00", "PAID", "SNAP_42", "session_abc",
			"https://pay.test/abc", nil, now, nil, now, now,
		))

	p, err := NewRepository().Get(context.Background(), conn, 42, true)

	require.NoError(t, err)
	assert.Equal(t, ReferenceOrder, p.ReferenceType)
	assert.Equal(t, StatusPaid, p.Status)
	assert.True(t, p.Amount.Equal(dec("250")))
	assert.Nil(t, p.RefundAmount)
	assert.NotNil(t, p.PaidAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetNotFound(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery(`FROM payments`).WillReturnRows(sqlmock.NewRows(paymentCols))

	_, err = NewRepository().Get(context.Background(), conn, 1, false)
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestRepository_MarkPaidPrecondition(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec(`UPDATE payments SET status = 'PAID'.*WHERE id = \$1 AND status IN \('PENDING', 'FAILED'\)`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewRepository().MarkPaid(context.Background(), conn, 42)
	assert.ErrorIs(t, err, ErrStalePayment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_MarkRefunded(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec(`UPDATE payments SET status = 'REFUNDED'`).
		WithArgs(int64(42), dec("100")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, NewRepository().MarkRefunded(context.Background(), conn, 42, dec("100")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SaveWebhook(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	body := []byte(`{"data":{"order_id":"SNAP_42","order_status":"PAID"}}`)
	evt := &WebhookEvent{
		Provider:       Provider,
		Digest:         Digest(body),
		GatewayOrderID: "SNAP_42",
		EventStatus:    "PAID",
		SignatureValid: true,
		Payload:        body,
	}

	mock.ExpectQuery(`INSERT INTO payment_webhooks .* ON CONFLICT \(provider, digest\)`).
		WithArgs("CASHFREE", evt.Digest, "SNAP_42", "PAID", true, body).
		WillReturnRows(sqlmock.NewRows([]string{"id", "processed"}).AddRow(5, true))

	require.NoError(t, NewRepository().SaveWebhook(context.Background(), conn, evt))
	assert.Equal(t, int64(5), evt.ID)
	assert.True(t, evt.Processed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
