package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"huishoudboek/internal/amqp"
	"huishoudboek/internal/auth"
	"huishoudboek/internal/cli"
	apphttp "huishoudboek/internal/http"
	applog "huishoudboek/internal/log"
	"huishoudboek/internal/services"
	"huishoudboek/internal/vision"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitRepository(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// AMQP is optional. Without it expenses stay queued in the database
	// and the worker's poll loop picks them up.
	var publisher services.ExportPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled, exports rely on the worker poll loop")
	}

	srv := apphttp.NewServer(apphttp.Deps{
		Config:   cfg,
		Expenses: services.NewExpenseService(repo, publisher),
		Overview: services.NewOverviewService(repo),
		Settings: services.NewSettingsService(repo),
		Scanner:  vision.NewClient(cfg),
		Auth:     auth.NewService(cfg.JWTSecret, 0),
		Repo:     repo,
	})
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	if cfg.SetupRequired() {
		logger.Warn("Receipt scanning not configured", "issues", cfg.SetupIssues())
	}

	logger.Info("Starting server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
