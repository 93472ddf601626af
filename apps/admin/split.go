package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HotChalk/canvas-lms-sub000/core"
	"github.com/HotChalk/canvas-lms-sub000/core/graph"
	"github.com/HotChalk/canvas-lms-sub000/core/section"
	"github.com/HotChalk/canvas-lms-sub000/services/coursecopy"
)

type (
	splitCourseOptions struct {
		CourseID int64 `json:"course-id" validate:"required,min=1"`
		UserID   int64 `json:"user-id" validate:"required,min=1"`
		Delete   bool  `json:"delete"`
	}

	splitAccountOptions struct {
		AccountID int64 `json:"account-id" validate:"required,min=1"`
		UserID    int64 `json:"user-id" validate:"required,min=1"`
		Delete    bool  `json:"delete"`
	}
)

// splitter wires the course copier selected by the configured copy mode.
func (cli *commandLine) splitter() (*section.Splitter, error) {
	var runner coursecopy.Runner
	switch cli.conf.Splitter.CopyMode {
	case core.CopyQueue:
		runner = coursecopy.NewQueueRunner(cli.store)
	default:
		runner = coursecopy.NewInlineRunner(cli.store, cli.log)
	}
	copier, err := coursecopy.NewCopier(runner, cli.conf.Splitter.CopyPollInterval, cli.conf.Splitter.CopyTimeout, cli.log)
	if err != nil {
		return nil, err
	}
	return section.NewSplitter(cli.store, copier, cli.log)
}

func (cli *commandLine) printCourses(courses []graph.Record) {
	for _, c := range courses {
		cli.printf("created course %d %q\n", c.ID, c.String("name"))
	}
}

func (cli *commandLine) splitCourseCommand() *cobra.Command {
	var opts splitCourseOptions
	cmd := &cobra.Command{
		Use:   "split-course",
		Short: "Split a course into one course per active section",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := core.Validate(opts, "invalid options"); err != nil {
				return err
			}
			if err := cli.confirm(fmt.Sprintf("Split course %d by section?", opts.CourseID)); err != nil {
				return err
			}
			splitter, err := cli.splitter()
			if err != nil {
				return err
			}
			created, err := splitter.SplitCourse(cmd.Context(), opts.CourseID, opts.UserID, opts.Delete)
			cli.printCourses(created)
			if err == nil && len(created) == 0 {
				cli.printf("course %d has at most one active section, nothing to split\n", opts.CourseID)
			}
			return err
		},
	}
	cmd.Flags().Int64Var(&opts.CourseID, "course-id", 0, "the course to split")
	cmd.Flags().Int64Var(&opts.UserID, "user-id", 0, "the user the copies are made for")
	cmd.Flags().BoolVar(&opts.Delete, "delete", false, "delete the original course afterwards")
	return cmd
}

func (cli *commandLine) splitAccountCommand() *cobra.Command {
	var opts splitAccountOptions
	cmd := &cobra.Command{
		Use:   "split-account",
		Short: "Split every course of an account by section",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := core.Validate(opts, "invalid options"); err != nil {
				return err
			}
			if err := cli.confirm(fmt.Sprintf("Split every course of account %d by section?", opts.AccountID)); err != nil {
				return err
			}
			splitter, err := cli.splitter()
			if err != nil {
				return err
			}
			created, err := splitter.SplitAccount(cmd.Context(), opts.AccountID, opts.UserID, opts.Delete)
			cli.printCourses(created)
			return err
		},
	}
	cmd.Flags().Int64Var(&opts.AccountID, "account-id", 0, "the account whose courses are split")
	cmd.Flags().Int64Var(&opts.UserID, "user-id", 0, "the user the copies are made for")
	cmd.Flags().BoolVar(&opts.Delete, "delete", false, "delete the original courses afterwards")
	return cmd
}
