package main

import (
	"fmt"
	"log"
	"os"

	"github.com/alumnet/alumnet/core"
	logsvc "github.com/alumnet/alumnet/services/logger"
	"github.com/alumnet/alumnet/storage/database"
	sqlxrepos "github.com/alumnet/alumnet/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	local, err := logsvc.NewLocalLogger(conf)
	if err != nil {
		log.Fatalf("building local logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(local.Named("ADMIN"), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	if err = database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// start CLI
	cmd := commandLine{
		db:      db.DB,
		usrRepo: sqlxrepos.NewUserRepository(db),
		out:     os.Stdout,
	}
	err = cmd.run(os.Args)
	_ = db.Close()
	_ = logger.Sync()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
