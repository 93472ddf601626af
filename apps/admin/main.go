package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/HotChalk/canvas-lms-sub000/core"
	"github.com/HotChalk/canvas-lms-sub000/core/lms"
	"github.com/HotChalk/canvas-lms-sub000/services/logger"
	"github.com/HotChalk/canvas-lms-sub000/storage/database"
	"github.com/HotChalk/canvas-lms-sub000/storage/database/sqlx"
)

func main() {
	conf, err := core.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
	logger, err := logsvc.New(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	db, err := setUpDB(ctx, conf)
	errAndDie(logger, err)

	// start CLI
	cli := commandLine{
		db:    db,
		store: sqlxstore.New(db, lms.Schema()),
		conf:  conf,
		log:   logger,
		in:    os.Stdin,
		out:   os.Stdout,
	}
	err = cli.run(ctx, os.Args)
	stop()
	_ = db.Close()
	_ = logger.Sync()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func setUpDB(ctx context.Context, conf *core.Config) (*sql.DB, error) {
	if conf.Env == "DEV" {
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}
	}
	return database.Open(ctx, conf)
}

func errAndDie(logger *zap.Logger, err error) {
	if err != nil {
		logger.Fatal("admin failed to start", zap.Error(err))
	}
}
