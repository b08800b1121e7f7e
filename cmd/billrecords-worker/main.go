package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"billrecords/internal/amqp"
	"billrecords/internal/cli"
	"billrecords/internal/config"
	applog "billrecords/internal/log"
	"billrecords/internal/metrics"
	"billrecords/internal/sheets"
	gsheet "billrecords/internal/sheets/google"
	"billrecords/internal/storage"
	"billrecords/internal/worker"
)

// metricsAddr serves the worker's /metrics; the web server owns PORT.
const metricsAddr = ":9091"

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig((*config.Config).Validate, (*config.Config).ValidateWorker)
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)

	logger.Info("Starting billrecords-worker")

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	store, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite store", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, nothing to export")
		return
	}

	var writer sheets.SnapshotWriter
	writer, err = gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	rec := metrics.New()
	metricsSrv := &http.Server{
		Addr:              metricsAddr,
		Handler:           rec.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Metrics server stopped", applog.FieldError, err)
		}
	}()

	exporter := worker.NewExportWorker(store, cfg.StorageKey, writer, rec, logger)
	if err := exporter.Run(ctx, amqpClient, cfg.SyncSchedule); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server shutdown error", applog.FieldError, err)
	}
	logger.Info("Worker shutdown complete")
}
