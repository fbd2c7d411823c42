package user

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core"
)

const otpDigits = 6

var (
	ErrOTPNotFound = errors.New("no verification code was requested for this email")
	ErrOTPInvalid  = errors.New("invalid verification code")
	ErrOTPExpired  = errors.New("verification code expired")
)

// OTP is a one-time verification code sent by email. Only its keyed hash is stored.
type OTP struct {
	Email     string
	CodeHash  []byte
	ExpiresAt time.Time
	CreatedAt time.Time
}

type otpGenerator struct {
	secretKey []byte
	ttl       time.Duration
	nowFunc   func() time.Time
}

func newOTPGenerator(secretKey string, ttl time.Duration) otpGenerator {
	return otpGenerator{secretKey: []byte(secretKey), ttl: ttl, nowFunc: time.Now}
}

// newCode returns a random zero-padded 6 digit code.
func (g otpGenerator) newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

func (g otpGenerator) hash(email, code string) []byte {
	h := hmac.New(sha256.New, g.secretKey)
	h.Write([]byte(email + "|" + code))
	return h.Sum(nil)
}

func (g otpGenerator) make(email, code string) OTP {
	now := g.nowFunc().UTC()
	return OTP{
		Email:     email,
		CodeHash:  g.hash(email, code),
		ExpiresAt: now.Add(g.ttl),
		CreatedAt: now,
	}
}

func (g otpGenerator) verify(otp OTP, code string) error {
	if !hmac.Equal(otp.CodeHash, g.hash(otp.Email, code)) {
		return ErrOTPInvalid
	}
	if g.nowFunc().After(otp.ExpiresAt) {
		return ErrOTPExpired
	}
	return nil
}

// RequestOTP generates a new code for email (replacing any previous one) and mails it.
func (svc *service) RequestOTP(ctx context.Context, email string) error {
	email = core.CleanString(email, true /* lower */)
	code, err := svc.otps.newCode()
	if err != nil {
		return errors.Wrap(err, "generating otp")
	}
	if err = svc.repo.SaveOTP(ctx, svc.otps.make(email, code)); err != nil {
		return errors.Wrap(err, "saving otp")
	}
	svc.mailSvc.SendMessages(mailBuilder{frontURL: svc.frontURL}.otp(email, code, svc.otps.ttl))
	return nil
}

// VerifyOTP checks code against the last code sent to email. A verified code cannot be reused.
func (svc *service) VerifyOTP(ctx context.Context, email, code string) error {
	email = core.CleanString(email, true /* lower */)
	otp, err := svc.repo.GetOTP(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrOTPNotFound {
			return core.NewFieldValidationError("email", ErrOTPNotFound)
		}
		return errors.Wrap(err, "getting otp")
	}
	if err = svc.otps.verify(otp, core.CleanString(code)); err != nil {
		return core.NewFieldValidationError("otp", err)
	}
	if err = svc.repo.DeleteOTP(ctx, email); err != nil {
		return errors.Wrap(err, "deleting otp")
	}
	return nil
}
