package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/user"
)

// addUser updates or creates a user.User
func (cmd *commandLine) addUser(name, uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cmd.findUser(ctx, uname, email)
	exists := err == nil
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return err
	}

	now := time.Now().UTC()
	if !exists {
		if name = core.CleanString(name); name == "" {
			name = uname
		}
		usr = user.User{
			FirstName: name,
			Username:  uname,
			Email:     email,
			Roles:     []string{user.RoleStudent},
			CreatedAt: now,
		}
	}
	if isAdmin && !usr.IsAdmin() {
		usr.Roles = append(usr.Roles, user.RoleAdmin)
	}
	usr.SetActive(true)
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if exists {
		_, err = cmd.usrRepo.UpdateUser(ctx, usr)
	} else {
		_, err = cmd.usrRepo.CreateUser(ctx, usr)
	}
	return err
}

func (cmd *commandLine) findUser(ctx context.Context, uname, email string) (user.User, error) {
	for _, key := range []string{uname, email} {
		if key == "" {
			continue
		}
		usr, err := cmd.usrRepo.GetUserByUsernameOrEmail(ctx, key)
		if err == nil || errors.Cause(err) != user.ErrNotFound {
			return usr, err
		}
	}
	return user.User{}, user.ErrNotFound
}
