package main

import (
	"context"
	"time"

	"github.com/alumnet/alumnet/core"
)

func (cmd *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	usr, err := cmd.usrRepo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err := cmd.usrRepo.UpdateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}
