package main

import (
	"b2bcart/internal/app"
	"b2bcart/internal/database/psql"
	"b2bcart/pkg/config"
	"b2bcart/pkg/lib/logger"
	"b2bcart/pkg/lib/logger/sl"
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.SetupLogger(cfg.HTTP.Env)
	if err != nil {
		panic(err)
	}

	taxRate, err := cfg.TaxRate()
	if err != nil {
		panic(err)
	}

	storage, err := psql.New(log, cfg.ConnectionString())
	if err != nil {
		log.Error("Cannot connect to database", sl.Err(err))
		os.Exit(1)
	}

	application := app.New(log, cfg, taxRate, storage)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return application.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Application stopped with error", sl.Err(err))
	}

	log.Info("Closing database")
	if err := storage.Close(); err != nil {
		log.Error("Cannot close database", sl.Err(err))
	}
}
