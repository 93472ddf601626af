package main

import (
	"github.com/spf13/cobra"

	"github.com/HotChalk/canvas-lms-sub000/storage/database"
)

var migrateFunc = database.Migrate // mockable

func (cli *commandLine) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:                "migrate <command> [args]",
		Short:              "Run a goose command over the embedded migrations",
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				return errHelp
			}
			return migrateFunc(cli.db, args[0], args[1:]...)
		},
	}
}
