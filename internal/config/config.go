// Package config handles application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken    string
	DatabasePath        string
	DatabaseURL         string
	LogLevel            string
	PollTimeout         time.Duration
	FeedInterval        time.Duration
	DispatchConcurrency int
	FeedConcurrency     int
	AwaitDispatch       bool
	AssetsDir           string
	OverlayTemplate     string
}

// The HTTP client gives up after 90s, so the server-side wait must end sooner.
const maxPollTimeout = 80 * time.Second

// LoadDotEnv loads variables from the given .env files into the process
// environment. Variables that are already set win. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	cfg := &Config{
		TelegramBotToken: token,
		DatabasePath:     envOr("DATABASE_PATH", "./data/bot.db"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		AssetsDir:        envOr("ASSETS_DIR", "assets"),
		OverlayTemplate:  envOr("OVERLAY_TEMPLATE", "foxify"),
	}

	var err error
	if cfg.PollTimeout, err = durationEnv("POLL_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.PollTimeout < time.Second || cfg.PollTimeout > maxPollTimeout {
		return nil, fmt.Errorf("POLL_TIMEOUT must be between 1s and %s", maxPollTimeout)
	}

	if cfg.FeedInterval, err = durationEnv("FEED_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.FeedInterval < time.Second {
		return nil, fmt.Errorf("FEED_INTERVAL must be at least 1s")
	}

	if cfg.DispatchConcurrency, err = positiveIntEnv("DISPATCH_CONCURRENCY", 16); err != nil {
		return nil, err
	}
	if cfg.FeedConcurrency, err = positiveIntEnv("FEED_CONCURRENCY", 10); err != nil {
		return nil, err
	}

	if raw := os.Getenv("AWAIT_DISPATCH"); raw != "" {
		cfg.AwaitDispatch, err = strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid AWAIT_DISPATCH %q: %w", raw, err)
		}
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	// Bare numbers are seconds.
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func positiveIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return n, nil
}
