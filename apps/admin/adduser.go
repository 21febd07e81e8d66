package main

import (
	"context"

	"github.com/taskora/taskora-go/core"
	"github.com/taskora/taskora-go/core/session"
)

// addUser creates an account and its profile, or resets the password of
// an existing account.
func (cli *commandLine) addUser(ctx context.Context, email, name, role, pwd string) error {
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)
	role = core.CleanString(role, true /* lower */)
	if name == "" {
		name = core.EmailLocalPart(email)
	}
	if role == "" {
		role = session.RoleStudent
	}

	ident, _, err := cli.store.SignUp(ctx, email, pwd, nil)
	if err != nil {
		if core.ErrorCode(err) != core.CodeEmailExists {
			return err
		}
		// account exists: treat as an update
		return cli.store.SetPassword(ctx, email, pwd)
	}

	_, err = cli.store.UpsertProfile(ctx, session.Profile{
		ID:    ident.ID,
		Email: email,
		Name:  name,
		Role:  role,
	})
	if err != nil {
		return err
	}
	return cli.store.SignOut(ctx)
}
