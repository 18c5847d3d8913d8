package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"data":{"order_id":"SNAP_1","order_status":"PAID"}}`)
	sig := Sign(body, "s3cret")

	assert.True(t, VerifySignature(body, sig, "s3cret"))
	assert.False(t, VerifySignature(body, sig, "other"))
	assert.False(t, VerifySignature(append(body, ' '), sig, "s3cret"))
	assert.False(t, VerifySignature(body, "", "s3cret"))
	assert.False(t, VerifySignature(body, Sign(body, ""), ""))
}

func TestDigest(t *testing.T) {
	a := Digest([]byte(`{"a":1}`))
	assert.Len(t, a, 64)
	assert.Equal(t, a, Digest([]byte(`{"a":1}`)))
	assert.NotEqual(t, a, Digest([]byte(`{"a": 1}`)))
}

func TestGatewayOrderID(t *testing.T) {
	assert.Equal(t, "SNAP_42", GatewayOrderID(42))
	assert.Equal(t, "REFUND_SNAP_42", RefundID(42))

	id, err := ParseGatewayOrderID("SNAP_42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "42", "SNAP_", "SNAP_x", "SNAP_-1", "SNAP_0"} {
		_, err := ParseGatewayOrderID(bad)
		assert.Error(t, err, bad)
	}
}
