package main

import (
	"context"
	"errors"
	"os"
	"time"

	"carteira/internal/amqp"
	"carteira/internal/cli"
	gsheet "carteira/internal/sheets/google"
	"carteira/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	store := cli.InitStore(ctx, logger, cfg)
	defer store.Store.Close()

	sheetsClient, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exporter := worker.NewExportWorker(store.Store, sheetsClient, logger)

	// Blocks until the shutdown signal cancels ctx.
	if err := amqpClient.ConsumeLedgerEvents(ctx, exporter.HandleLedgerEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		amqpClient.Close()
		store.Store.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("ledger-worker stopped")
}
