package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/emailengineer/email-extractor/internal/config"
	"github.com/emailengineer/email-extractor/internal/crawler"
	"github.com/emailengineer/email-extractor/internal/fetch"
	"github.com/emailengineer/email-extractor/internal/health"
	"github.com/emailengineer/email-extractor/internal/runner"
	"github.com/emailengineer/email-extractor/internal/storage"
	"github.com/emailengineer/email-extractor/internal/worker"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setLogLevel(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	db, err := storage.New(ctx, cfg.DSN(), &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	healthServer := health.New(db, cfg.HealthPort)

	go func() {
		logger.Info().Int("port", cfg.HealthPort).Msg("Starting health server")

		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Health server error")
		}
	}()

	fetcher := fetch.New(time.Duration(cfg.Timeout)*time.Second, &logger)
	dc := crawler.New(fetcher, db, &logger, cfg.MaxDepth)
	sr := runner.New(db, dc, &logger, cfg.MaxConcurrent)
	loop := worker.New(db, sr, &logger, cfg.WorkerID, time.Duration(cfg.PollInterval)*time.Second)

	healthServer.SetReady(true)

	logger.Info().Str("worker_id", cfg.WorkerID).Msg("Starting worker loop")
	loop.Run(ctx)
	logger.Info().Msg("Worker loop stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
