package main

import (
	"context"

	"github.com/taskora/taskora-go/core"
)

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	email = core.CleanString(email, true /* lower */)
	return cli.store.SetPassword(ctx, email, pwd)
}
