package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"snapkart-be/internal/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) HandleWebhook(ctx context.Context, rawBody []byte, signature string) (*payment.WebhookResult, error) {
	args := m.Called(ctx, rawBody, signature)
	res, _ := args.Get(0).(*payment.WebhookResult)
	return res, args.Error(1)
}

func TestHandler_PaymentWebhookHandler(t *testing.T) {
	body := `{"data":{"order_id":"SNAP_42","order_status":"PAID"}}`

	t.Run("Success_Paid", func(t *testing.T) {
		p := new(MockProcessor)
		p.On("HandleWebhook", mock.Anything, []byte(body), "sig==").
			Return(&payment.WebhookResult{Outcome: payment.OutcomeProcessed, PaymentID: 42, Status: payment.StatusPaid}, nil)

		req := httptest.NewRequest(http.MethodPost, "/webhook/payment", strings.NewReader(body))
		req.Header.Set(SignatureHeader, "sig==")
		w := httptest.NewRecorder()

		NewWebhookHandler(p).PaymentWebhookHandler(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var res payment.WebhookResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, payment.OutcomeProcessed, res.Outcome)
		assert.Equal(t, int64(42), res.PaymentID)
		p.AssertExpectations(t)
	})

	t.Run("Duplicate_IsOK", func(t *testing.T) {
		p := new(MockProcessor)
		p.On("HandleWebhook", mock.Anything, mock.Anything, mock.Anything).
			Return(&payment.WebhookResult{Outcome: payment.OutcomeAlreadyProcessed, PaymentID: 42}, nil)

		req := httptest.NewRequest(http.MethodPost, "/webhook/payment", strings.NewReader(body))
		w := httptest.NewRecorder()

		NewWebhookHandler(p).PaymentWebhookHandler(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "already_processed")
	})

	t.Run("InvalidSignature_Unauthorized", func(t *testing.T) {
		p := new(MockProcessor)
		p.On("HandleWebhook", mock.Anything, mock.Anything, "").Return(nil, payment.ErrInvalidSignature)

		req := httptest.NewRequest(http.MethodPost, "/webhook/payment", strings.NewReader(body))
		w := httptest.NewRecorder()

		NewWebhookHandler(p).PaymentWebhookHandler(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"kind":"INVALID_SIGNATURE"`)
	})

	t.Run("MalformedPayload_BadRequest", func(t *testing.T) {
		p := new(MockProcessor)
		p.On("HandleWebhook", mock.Anything, mock.Anything, mock.Anything).Return(nil, payment.ErrMalformedPayload)

		req := httptest.NewRequest(http.MethodPost, "/webhook/payment", strings.NewReader(`{`))
		w := httptest.NewRecorder()

		NewWebhookHandler(p).PaymentWebhookHandler(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("ProcessingFailure_Internal", func(t *testing.T) {
		p := new(MockProcessor)
		p.On("HandleWebhook", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

		req := httptest.NewRequest(http.MethodPost, "/webhook/payment", strings.NewReader(body))
		w := httptest.NewRecorder()

		NewWebhookHandler(p).PaymentWebhookHandler(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "db down")
	})
}
