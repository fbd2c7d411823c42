package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	secret := "s3cr3t"
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("order_1|pay_1"))
	valid := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, valid, Sign(secret, "order_1", "pay_1"))

	tests := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
		want      bool
	}{
		{"valid", "order_1", "pay_1", valid, true},
		{"empty signature", "order_1", "pay_1", "", false},
		{"garbage", "order_1", "pay_1", "not-a-signature", false},
		{"swapped ids", "pay_1", "order_1", valid, false},
		{"other payment", "order_1", "pay_2", valid, false},
		{"upper-cased hex", "order_1", "pay_1", hexUpper(valid), false},
		{"signed with another secret", "order_1", "pay_1", Sign("other", "order_1", "pay_1"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, VerifySignature(secret, tc.orderID, tc.paymentID, tc.signature))
		})
	}
}

func hexUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
