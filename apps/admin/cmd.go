package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/tmatias/aigrader/core"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

// syncService is the slice of the sync service the CLI uses.
type syncService interface {
	SyncAll(ctx context.Context) error
	SyncCourseAssignments(ctx context.Context, courseID int64) error
}

type commandLine struct {
	conf   *core.Config
	db     *sql.DB
	lmsSvc syncService
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run DB migrations (goose commands)")
	fmt.Println("  sync [-course ID] - sync Canvas data; all available courses unless -course is given")
	fmt.Println("  settoken - set the Canvas API token. The token will be prompted next.")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	syncCmd := flag.NewFlagSet("sync", flag.ExitOnError)
	syncCourseID := syncCmd.Int64("course", 0, "Sync a single course's assignments instead of everything.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "sync":
		if err := syncCmd.Parse(args[2:]); err != nil {
			return err
		}
		ctx := context.Background()
		if *syncCourseID != 0 {
			return cli.lmsSvc.SyncCourseAssignments(ctx, *syncCourseID)
		}
		return cli.lmsSvc.SyncAll(ctx)
	case "settoken":
		fmt.Print("Enter Canvas API token:")
		token, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(token) == 0 {
			cli.printUsage()
			return errHelp
		}
		return cli.setToken(string(token))
	default:
		cli.printUsage()
		return errHelp
	}
}
