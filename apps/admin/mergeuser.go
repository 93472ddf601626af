package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HotChalk/canvas-lms-sub000/core"
	"github.com/HotChalk/canvas-lms-sub000/core/usermerge"
)

type mergeUserOptions struct {
	From int64 `json:"from" validate:"required,min=1,nefield=Into"`
	Into int64 `json:"into" validate:"required,min=1"`
}

func (cli *commandLine) mergeUserCommand() *cobra.Command {
	var opts mergeUserOptions
	cmd := &cobra.Command{
		Use:   "merge-user",
		Short: "Move everything a user owns to another user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := core.Validate(opts, "invalid options"); err != nil {
				return err
			}
			if err := cli.confirm(fmt.Sprintf("Merge user %d into user %d?", opts.From, opts.Into)); err != nil {
				return err
			}
			merger, err := usermerge.NewMerger(cli.store, cli.log)
			if err != nil {
				return err
			}
			if err := merger.MergeUsers(cmd.Context(), opts.From, opts.Into); err != nil {
				return err
			}
			cli.printf("user %d merged into user %d\n", opts.From, opts.Into)
			return nil
		},
	}
	cmd.Flags().Int64Var(&opts.From, "from", 0, "the user merged away")
	cmd.Flags().Int64Var(&opts.Into, "into", 0, "the user that receives the records")
	return cmd
}
