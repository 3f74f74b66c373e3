package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/user"
)

// addUser creates a user, or reactivates and sets the password of the matching one.
func (cli *commandLine) addUser(name, uname, email, pwd string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	var usr user.User
	var err error
	for _, key := range []string{uname, email} {
		if key == "" {
			continue
		}
		if usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: key}); err == nil {
			break
		} else if errors.Cause(err) != user.ErrNotFound {
			return err
		}
	}

	now := time.Now().UTC()
	if usr.ID == "" {
		usr = user.User{
			Username:  uname,
			Email:     email,
			CreatedAt: now,
		}
	}
	if name = core.CleanString(name); name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = usr.Username
		if usr.Name == "" {
			usr.Name = usr.Email
		}
	}
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	if usr, err = cli.usrRepo.UpdateOrCreateUser(ctx, usr); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %s saved\n", usr.ID)
	return nil
}
