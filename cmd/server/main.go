package main

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"user-ledger/internal/app"
	"user-ledger/internal/config"
	apphttp "user-ledger/internal/http"
	"user-ledger/internal/service"
)

func main() {
	flags := config.Flags("ledger-server")
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

	secret := []byte(cfg.Auth.JWTSecret)
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Warn("auth jwt secret not set, using a random one; tokens will not survive a restart")
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logger.Fatalf("generate jwt secret: %v", err)
		}
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

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		registry,
		secret,
		time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute,
		logger,
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("http server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	err = handler.Locked(func(reg *service.Registry) error {
		return service.SaveRegistry(shutdownCtx, store, reg)
	})
	if err != nil {
		logger.Warnf("save registry: %v", err)
	} else {
		logger.Infof("saved %d users", registry.Len())
	}

	logger.Info("bye")
}
