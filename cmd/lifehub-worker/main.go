package main

import (
	"context"
	"os"

	"golang.org/x/sync/errgroup"

	"lifehub/internal/amqp"
	"lifehub/internal/cli"
	"lifehub/internal/config"
	applog "lifehub/internal/log"
	gsheet "lifehub/internal/sheets/google"
	"lifehub/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig((*config.Config).ValidateWorker)
	if err != nil {
		applog.New(applog.DefaultConfig()).Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg).WithComponent(applog.ComponentWorker)
	logger.Info("Starting lifehub-worker")

	ctx, cancel := cli.SignalContext(context.Background(), logger.Logger)
	defer cancel()

	sheetsClient, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, amqp.WithLogger(logger.Logger))
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exporter := worker.NewExportWorker(sheetsClient, cfg.ExportConcurrency, logger.Logger)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return exporter.Run(egCtx, amqpClient)
	})
	eg.Go(func() error {
		<-egCtx.Done()
		stats := exporter.Stats()
		logger.Info("Shutting down worker",
			"exported", stats.Exported,
			"skipped", stats.Skipped,
			"failed", stats.Failed)
		return nil
	})

	if err := eg.Wait(); err != nil {
		logger.Error("Message consumption failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
