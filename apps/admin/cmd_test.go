package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HotChalk/canvas-lms-sub000/core"
	"github.com/HotChalk/canvas-lms-sub000/core/account"
	"github.com/HotChalk/canvas-lms-sub000/core/graph"
	"github.com/HotChalk/canvas-lms-sub000/core/lms"
	"github.com/HotChalk/canvas-lms-sub000/tests"
)

func setup(t *testing.T) (*commandLine, *testutil.Fixtures, *bytes.Buffer) {
	db := testutil.NewDB()
	out := new(bytes.Buffer)
	cli := &commandLine{
		store: db,
		conf: &core.Config{
			Remover: core.RemoverConfig{MaxPasses: 5, ProtectedAccountIDs: []int64{1}},
			Splitter: core.SplitterConfig{
				CopyMode:         core.CopyInline,
				CopyPollInterval: time.Millisecond,
				CopyTimeout:      time.Second,
			},
		},
		log: zap.NewNop(),
		in:  strings.NewReader(""),
		out: out,
	}
	isTerminalFunc = func(int) bool { return false }
	return cli, testutil.NewFixtures(t, db), out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		if errors.Cause(err) != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err == nil || !strings.Contains(err.Error(), tt.wantErrStr) {
			t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
		}
	case err != nil:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func Test_commandLine_run(t *testing.T) {
	cli, _, out := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErrStr: `unknown command "lol"`},
		{name: "unknown flag", args: []string{"remove-account", "--lol"}, wantErrStr: "unknown flag: --lol"},
		{name: "extra args", args: []string{"merge-user", "lol"}, wantErrStr: "unknown command"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(context.Background(), args))
		})
	}
	assert.Contains(t, out.String(), "remove-account")
}

func Test_commandLine_confirm(t *testing.T) {
	cli, f, _ := setup(t)
	f.RootAccount("Default")
	doomed := f.RootAccount("Doomed")
	id := strconv.FormatInt(doomed.ID, 10)

	type extra struct {
		terminal bool
		answer   string
	}
	tests := []cliTest{
		{name: "no terminal", args: []string{"remove-account", "--account-id", id}, wantErr: errNotInteractive},
		{name: "declined", args: []string{"remove-account", "--account-id", id}, extra: extra{terminal: true, answer: "n\n"}, wantErr: errAborted},
		{name: "empty answer", args: []string{"remove-account", "--account-id", id}, extra: extra{terminal: true}, wantErr: errAborted},
		{name: "confirmed", args: []string{"remove-account", "--account-id", id}, extra: extra{terminal: true, answer: " Yes\n"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		e, _ := tt.extra.(extra)
		isTerminalFunc = func(int) bool { return e.terminal }
		cli.in = strings.NewReader(e.answer)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(context.Background(), args)
			tt.check(t, err)
			_, exists := f.Reload(doomed)
			assert.Equal(t, err != nil, exists)
		})
	}
}

func Test_commandLine_removeAccount(t *testing.T) {
	cli, f, out := setup(t)
	f.RootAccount("Default")
	root := f.RootAccount("Doomed")
	sub := f.SubAccount(root, "Doomed sub")
	course := f.Course(sub, "Bio")
	f.Enroll(f.User("ann"), f.Section(course, "S1"), testutil.Student, lms.StateActive)

	tests := []cliTest{
		{name: "no account", args: []string{"remove-account", "--yes"}, wantErrStr: "account-id is required"},
		{name: "protected", args: []string{"remove-account", "--yes", "--account-id", "1"}, wantErrStr: "account 1 is protected"},
		{name: "sub-account", args: []string{"remove-account", "-y", "--account-id", strconv.FormatInt(sub.ID, 10)}, wantErrStr: account.ReasonNotRoot},
		{name: "remove", args: []string{"remove-account", "-y", "--account-id", strconv.FormatInt(root.ID, 10)}},
		{name: "already removed", args: []string{"remove-account", "-y", "--account-id", strconv.FormatInt(root.ID, 10)}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(context.Background(), args))
		})
	}

	assert.Contains(t, out.String(), fmt.Sprintf("account %d removed", root.ID))
	assert.Contains(t, out.String(), fmt.Sprintf("account %d not found, nothing to remove", root.ID))
	assert.Len(t, f.Select(lms.Account), 1)
	assert.Empty(t, f.Select(lms.Course))
}

func Test_commandLine_splitCourse(t *testing.T) {
	cli, f, out := setup(t)
	teacher := f.User("teacher")
	course := f.Course(f.RootAccount("A"), "Bio")
	for _, name := range []string{"S1", "S2"} {
		f.Enroll(f.User("student "+name), f.Section(course, name), testutil.Student, lms.StateActive)
	}
	lonely := f.Course(f.RootAccount("B"), "Chem")
	f.Section(lonely, "only")

	courseID, userID := strconv.FormatInt(course.ID, 10), strconv.FormatInt(teacher.ID, 10)
	tests := []cliTest{
		{name: "no user", args: []string{"split-course", "-y", "--course-id", courseID}, wantErrStr: "user-id is required"},
		{name: "single section", args: []string{"split-course", "-y", "--course-id", strconv.FormatInt(lonely.ID, 10), "--user-id", userID}},
		{name: "split", args: []string{"split-course", "-y", "--course-id", courseID, "--user-id", userID, "--delete"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(context.Background(), args))
		})
	}

	assert.Contains(t, out.String(), "nothing to split")
	assert.Equal(t, 2, strings.Count(out.String(), "created course"))
	got, ok := f.Reload(course)
	require.True(t, ok)
	assert.Equal(t, lms.StateDeleted, got.State())
}

func Test_commandLine_splitAccount(t *testing.T) {
	cli, f, out := setup(t)
	cli.conf.Splitter.CopyMode = core.CopyQueue
	cli.conf.Splitter.CopyTimeout = 20 * time.Millisecond
	teacher := f.User("teacher")
	acc := f.RootAccount("A")
	course := f.Course(acc, "Bio")
	f.Section(course, "S1")
	f.Section(course, "S2")

	args := []string{"admin", "split-account", "-y", "--account-id", strconv.FormatInt(acc.ID, 10), "--user-id", strconv.FormatInt(teacher.ID, 10)}
	err := cli.run(context.Background(), args)
	assert.Error(t, err, "queued copies are never picked up without a worker")
	assert.Empty(t, out.String())
	assert.Len(t, f.Select(lms.ContentMigration), 1)
}

func Test_commandLine_mergeUser(t *testing.T) {
	cli, f, out := setup(t)
	from, into := f.User("from"), f.User("into")
	f.Channel(from, "ann@example.com", lms.StateActive)
	fromID, intoID := strconv.FormatInt(from.ID, 10), strconv.FormatInt(into.ID, 10)

	tests := []cliTest{
		{name: "same user", args: []string{"merge-user", "-y", "--from", fromID, "--into", fromID}, wantErrStr: "invalid options"},
		{name: "no target", args: []string{"merge-user", "-y", "--from", fromID}, wantErrStr: "into is required"},
		{name: "merge", args: []string{"merge-user", "-y", "--from", fromID, "--into", intoID}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(context.Background(), args))
		})
	}

	assert.Contains(t, out.String(), fmt.Sprintf("user %d merged into user %d", from.ID, into.ID))
	assert.Len(t, f.Select(lms.CommunicationChannel, graph.Eq("user_id", into.ID)), 1)
	got, _ := f.Reload(from)
	assert.Equal(t, lms.StateDeleted, got.State())
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	migrateFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course_flags", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(context.Background(), args))
		})
	}
}
