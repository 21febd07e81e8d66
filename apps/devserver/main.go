package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/taskora/taskora-go/core"
	emailsvc "github.com/taskora/taskora-go/services/email"
	logsvc "github.com/taskora/taskora-go/services/logger"
	"github.com/taskora/taskora-go/storage/database"
	dummydb "github.com/taskora/taskora-go/storage/database/dummy"
)

func main() {
	inMem := flag.Bool("in-mem", false, "serve from an in-memory backend instead of Postgres")
	flag.Parse()

	conf, err := core.LoadConfig()
	errAndDie(err)

	std := log.New(os.Stdout, "DEVSERVER : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	svcLog := logsvc.NewStdLogger(std)
	svcLog.Enable(conf.Debug)
	mailer := emailsvc.NewConsoleService(conf)

	var store devStore
	if *inMem {
		store = dummydb.New()
	} else {
		db, err := database.Open(conf)
		errAndDie(err)
		defer db.Close()
		errAndDie(database.Ping(db))
		errAndDie(database.Migrate(context.Background(), db))
		store = database.NewRepository(db, conf, mailer, svcLog)
	}

	app := NewServer(&Options{
		Addr:  conf.Server.Host + ":" + conf.Server.Port,
		Conf:  conf,
		Store: store,
	})
	app.Start()
}

func errAndDie(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
