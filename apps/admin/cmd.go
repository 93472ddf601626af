package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/HotChalk/canvas-lms-sub000/core"
	"github.com/HotChalk/canvas-lms-sub000/core/graph"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errHelp           = errors.New("help provided")
	errAborted        = errors.New("aborted")
	errNotInteractive = errors.New("stdin is not a terminal, pass --yes to confirm")
)

type commandLine struct {
	db    *sql.DB
	store graph.Store
	conf  *core.Config
	log   *zap.Logger
	in    io.Reader
	out   io.Writer

	assumeYes bool
}

func (cli *commandLine) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "admin",
		Short:         "Canvas data maintenance",
		Long:          "Removes root accounts, splits courses by section, merges users and migrates the database.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	cmd.PersistentFlags().BoolVarP(&cli.assumeYes, "yes", "y", false, "do not ask for confirmation")

	cmd.AddCommand(cli.removeAccountCommand())
	cmd.AddCommand(cli.splitCourseCommand())
	cmd.AddCommand(cli.splitAccountCommand())
	cmd.AddCommand(cli.mergeUserCommand())
	cmd.AddCommand(cli.migrateCommand())
	return cmd
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	cli.assumeYes = false
	cmd := cli.rootCommand()
	cmd.SetArgs(args[1:])
	cmd.SetIn(cli.in)
	cmd.SetOut(cli.out)
	cmd.SetErr(cli.out)
	return cmd.ExecuteContext(ctx)
}

// confirm asks before a destructive command unless --yes was given. Without
// a terminal there is nobody to ask, so the command is refused.
func (cli *commandLine) confirm(prompt string) error {
	if cli.assumeYes {
		return nil
	}
	if !isTerminalFunc(int(os.Stdin.Fd())) {
		return errNotInteractive
	}
	fmt.Fprintf(cli.out, "%s [y/N]: ", prompt)
	answer, _ := bufio.NewReader(cli.in).ReadString('\n')
	switch core.CleanString(answer, true /* lower */) {
	case "y", "yes":
		return nil
	}
	return errAborted
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	fmt.Fprintf(cli.out, format, args...)
}
