package main

import (
	"context"
	"errors"
	"os"
	"time"

	"huishoudboek/internal/amqp"
	"huishoudboek/internal/backend"
	"huishoudboek/internal/cli"
	applog "huishoudboek/internal/log"
	"huishoudboek/internal/services"
	"huishoudboek/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting export worker")

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitRepository(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	appender, err := backend.New(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize export backend", "error", err, "backend", cfg.ExportBackend)
		os.Exit(1)
	}
	logger.Info("Export backend initialized", "backend", cfg.ExportBackend)

	processor := services.NewExportProcessor(repo, appender, services.ExportProcessorConfig{
		PollInterval: cfg.ExportInterval,
		BatchSize:    cfg.ExportBatchSize,
		MaxRetries:   cfg.ExportMaxRetries,
	})
	exportWorker := worker.NewExportWorker(processor)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := processor.Stop(shutdownCtx); err != nil {
			logger.Error("Processor shutdown error", "error", err)
		}
	})

	// Catch up on anything left pending while the worker was down.
	exportWorker.StartupExportCheck(ctx)

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start export processor", "error", err)
		os.Exit(1)
	}

	// AMQP consumption is optional. The poll loop above already covers
	// exports end to end; messages just reduce latency.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		go func() {
			err := amqpClient.ConsumeExpenseExport(ctx, func(msg *amqp.ExpenseExportMessage) error {
				return exportWorker.HandleExportMessage(ctx, msg)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
		logger.Info("Consuming export messages", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled, relying on the poll loop only")
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
