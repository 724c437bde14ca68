package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/dmitrijs2005/skyhaul/internal/admin/cli"
	"github.com/dmitrijs2005/skyhaul/internal/server/config"
	"github.com/dmitrijs2005/skyhaul/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/skyhaul/internal/server/tokenstore"
)

func main() {

	ctx := context.Background()

	// server flags come first; the remaining words form the command
	fs := flag.NewFlagSet("skyhaul-admin", flag.ExitOnError)
	dsn := fs.String("d", "", "database DSN (defaults to the server configuration)")
	_ = fs.Parse(os.Args[1:])

	cfg := config.Load(nil)
	if *dsn != "" {
		cfg.DatabaseDSN = *dsn
	}

	db, rm, err := repomanager.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close()

	store := tokenstore.New(db, rm, tokenstore.WithTxOptions(cfg.TxOptions()))
	app := cli.NewApp(store, os.Stdout, cfg.RetentionExpiredDays, cfg.RetentionDeactivatedDays)

	if err := app.Run(ctx, fs.Args(), os.Stdin); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}
