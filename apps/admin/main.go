package main

import (
	"log"
	"os"

	"github.com/tmatias/aigrader/core"
	"github.com/tmatias/aigrader/core/lms"
	canvassvc "github.com/tmatias/aigrader/services/canvas"
	logsvc "github.com/tmatias/aigrader/services/logger"
	"github.com/tmatias/aigrader/storage/database"
	dbrepos "github.com/tmatias/aigrader/storage/database/repos"
	filestore "github.com/tmatias/aigrader/storage/files"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	// start CLI
	cli := commandLine{
		conf: conf,
		db:   db.DB,
		lmsSvc: lms.NewService(
			dbrepos.NewRepository(db),
			canvassvc.NewService(conf),
			filestore.NewStore(),
			logsvc.NewConsoleLogger(logger),
			conf,
		),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
