package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HotChalk/canvas-lms-sub000/core"
	"github.com/HotChalk/canvas-lms-sub000/core/account"
)

type removeAccountOptions struct {
	AccountID int64 `json:"account-id" validate:"required,min=1"`
}

func (cli *commandLine) removeAccountCommand() *cobra.Command {
	var opts removeAccountOptions
	cmd := &cobra.Command{
		Use:   "remove-account",
		Short: "Remove a root account and everything it owns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := core.Validate(opts, "invalid options"); err != nil {
				return err
			}
			if err := cli.confirm(fmt.Sprintf("Remove account %d and everything it owns?", opts.AccountID)); err != nil {
				return err
			}
			return cli.removeAccount(cmd.Context(), opts.AccountID)
		},
	}
	cmd.Flags().Int64Var(&opts.AccountID, "account-id", 0, "the root account to remove")
	return cmd
}

// removeAccount treats a missing account as already removed so that the
// command can be re-run after an interrupted removal.
func (cli *commandLine) removeAccount(ctx context.Context, id int64) error {
	remover, err := account.NewRemover(cli.store, cli.conf.Remover, cli.log)
	if err != nil {
		return err
	}
	err = remover.RemoveAccount(ctx, id)
	if account.IsNotFound(err) {
		cli.printf("account %d not found, nothing to remove\n", id)
		return nil
	}
	if err != nil {
		return err
	}
	cli.printf("account %d removed\n", id)
	return nil
}
