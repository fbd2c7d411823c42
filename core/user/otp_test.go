package user

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTPGenerator(t *testing.T) {
	g := newOTPGenerator("secret", 10*time.Minute)

	code, err := g.newCode()
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), code)

	otp := g.make("t@test.test", code)
	assert.NotContains(t, string(otp.CodeHash), code)

	expired := otp
	expired.ExpiresAt = time.Now().Add(-time.Second)

	otherEmail := otp
	otherEmail.Email = "x@test.test"

	tests := []struct {
		name    string
		otp     OTP
		code    string
		wantErr error
	}{
		{name: "wrong code", otp: otp, code: "abcdef", wantErr: ErrOTPInvalid},
		{name: "empty code", otp: otp, code: "", wantErr: ErrOTPInvalid},
		{name: "code sent to another email", otp: otherEmail, code: code, wantErr: ErrOTPInvalid},
		{name: "expired", otp: expired, code: code, wantErr: ErrOTPExpired},
		{name: "valid", otp: otp, code: code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, g.verify(tt.otp, tt.code))
		})
	}
}
