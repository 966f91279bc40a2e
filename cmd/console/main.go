package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"user-ledger/internal/app"
	"user-ledger/internal/config"
	"user-ledger/internal/console"
	"user-ledger/internal/repository"
	"user-ledger/internal/service"
)

func main() {
	flags := config.Flags("ledger")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ledger [flags] [store-location]\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	logger, err := app.NewLogger(os.Stderr, cfg.Log.Level)
	if err != nil {
		logger.Warnf("log level: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer store.Close()

	registry, err := service.LoadRegistry(ctx, store, logger, service.WithBootstrapPassword(cfg.Auth.BootstrapPassword))
	if err != nil {
		logger.Fatalf("load registry: %v", err)
	}

	shell := console.New(registry, store, os.Stdin, os.Stdout, logger)
	done := make(chan error, 1)
	go func() {
		done <- shell.Run(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Warnf("console: %v", err)
		}
	case <-ctx.Done():
		logger.Info("interrupted")
	}

	ok := shell.TryLocked(3*time.Second, func(reg *service.Registry) {
		save(store, reg, logger)
	})
	if !ok {
		logger.Warn("command still running, registry not saved")
	}
}

func save(store repository.UserStore, reg *service.Registry, logger logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := service.SaveRegistry(ctx, store, reg); err != nil {
		logger.Warnf("save registry: %v", err)
		return
	}
	logger.Infof("saved %d users", reg.Len())
}
