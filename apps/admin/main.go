package main

import (
	"context"
	"log"
	"os"

	"github.com/taskora/taskora-go/core"
	emailsvc "github.com/taskora/taskora-go/services/email"
	logsvc "github.com/taskora/taskora-go/services/logger"
	"github.com/taskora/taskora-go/storage/database"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.LoadConfig()
	errAndDie(err)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(database.Ping(db))

	svcLog := logsvc.NewStdLogger(logger)
	svcLog.Enable(conf.Debug)
	mailer := emailsvc.NewConsoleService(conf)

	// start CLI
	cli := commandLine{
		db:    db,
		store: database.NewRepository(db, conf, mailer, svcLog),
	}
	if err := cli.run(context.Background(), os.Args); err != nil {
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
