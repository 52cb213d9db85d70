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

	"golang.org/x/sync/errgroup"

	"freopen_bot/internal/bot"
	"freopen_bot/internal/config"
	"freopen_bot/internal/dispatch"
	"freopen_bot/internal/fetcher"
	"freopen_bot/internal/overlay"
	"freopen_bot/internal/scheduler"
	"freopen_bot/internal/storage"
	"freopen_bot/internal/telegram"
	"freopen_bot/internal/updates"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				log.Error("create data directory", "path", dir, "error", err)
				os.Exit(1)
			}
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(ctx, cfg.DatabaseURL, cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	channel, err := telegram.New(cfg.TelegramBotToken, log)
	if err != nil {
		log.Error("create telegram channel", "error", err)
		_ = store.Close()
		os.Exit(1)
	}

	feeds := fetcher.New(http.DefaultClient)
	b := bot.New(channel, store, feeds, overlay.New(cfg.AssetsDir), cfg.OverlayTemplate, channel.Username(), log)
	dispatcher := dispatch.New(b, cfg.DispatchConcurrency, log)
	poller := updates.New(channel, store, dispatcher, updates.Options{
		PollTimeout:   cfg.PollTimeout,
		AwaitDispatch: cfg.AwaitDispatch,
	}, log)
	sched := scheduler.New(store, feeds, channel, log, cfg.FeedInterval, cfg.FeedConcurrency)

	log.Info("starting bot")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return poller.Run(gctx)
	})
	g.Go(func() error {
		sched.Run(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("bot stopped", "error", err)
		_ = store.Close()
		os.Exit(1)
	}

	log.Info("bot stopped")
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
