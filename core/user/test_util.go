package user

import (
	"context"

	"github.com/alumnet/alumnet/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service sending its emails synchronously.
func NewServiceMock(repo Repository, mailSvc core.EmailService, images core.ImageUploader, conf *core.Config) Service {
	svc := NewService(repo, mailSvc, images, conf).(*service)
	return &serviceMock{service: *svc}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.Active() {
		return ErrNotFound
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}

// MakePasswordResetToken returns a valid password reset token for usr.
func (svc *serviceMock) MakePasswordResetToken(usr User) string {
	return svc.tokens.makeToken(usr)
}
