package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"murrasil/internal/api"
	"murrasil/internal/config"
	"murrasil/internal/enrich"
	"murrasil/internal/fetcher"
	"murrasil/internal/pipeline"
	"murrasil/internal/publisher"
	"murrasil/internal/scheduler"
	"murrasil/internal/storage"
	"murrasil/internal/writer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := store.SeedDefaultSources(ctx); err != nil {
		log.Error("seed default sources", "error", err)
		os.Exit(1)
	}

	enricher := enrich.NewClient(cfg.GeminiAPIKey)
	articleWriter := writer.NewClient(cfg.OpenAIAPIKey, writer.WithBaseURL(cfg.OpenAIBaseURL))

	pipe := pipeline.New(
		store,
		fetcher.New(http.DefaultClient),
		enricher,
		log,
		time.Duration(cfg.PacingSeconds)*time.Second,
	)

	var pub api.Publisher
	if cfg.TelegramBotToken != "" && cfg.TelegramChannelID != 0 {
		tg, err := publisher.New(cfg.TelegramBotToken, cfg.TelegramChannelID, log)
		if err != nil {
			log.Error("create telegram publisher", "error", err)
			os.Exit(1)
		}
		pub = tg
		log.Info("telegram publishing enabled", "channel", cfg.TelegramChannelID)
	}

	sched := scheduler.New(store, pipe, log, time.Duration(cfg.FetchIntervalMinutes)*time.Minute)
	go sched.Run(ctx)

	srv := api.New(store, pipe, articleWriter, pub, cfg, log)
	if err := srv.Serve(ctx); err != nil && err != http.ErrServerClosed {
		log.Error("http server", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
