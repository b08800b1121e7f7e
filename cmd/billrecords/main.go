package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"billrecords/internal/backend"
	"billrecords/internal/cli"
	"billrecords/internal/config"
	apphttp "billrecords/internal/http"
	"billrecords/internal/ledger"
	applog "billrecords/internal/log"
	"billrecords/internal/metrics"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig((*config.Config).Validate)
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	rec := metrics.New()

	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentStorage)).CreateBackend(ctx, backend.Config{
		Type:         backend.BackendType(cfg.DataBackend),
		SQLiteDBPath: cfg.SQLiteDBPath,
		SeedFile:     cfg.SeedFile,
		StorageKey:   cfg.StorageKey,
		AMQPURL:      cfg.AMQPURL,
		AMQPExchange: cfg.AMQPExchange,
		AMQPQueue:    cfg.AMQPQueue,
	})
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	}()

	led, err := ledger.Open(ctx, res.Store, cfg.Users, ledger.Options{
		Key:      cfg.StorageKey,
		Notifier: res.Notifier,
		Metrics:  rec,
		Logger:   logger.WithComponent(applog.ComponentLedger),
	})
	if err != nil {
		logger.Error("Failed to load ledger", applog.FieldError, err)
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, led, apphttp.Options{
		Logger:  logger,
		Metrics: rec,
		Checks:  map[string]apphttp.ReadyCheck{"storage": res.Ready},
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", applog.FieldError, err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting billrecords server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"users", len(cfg.Users),
			"change_events", res.Notifier != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", applog.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}
