package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var allKeys = []string{
	"TELEGRAM_BOT_TOKEN", "DATABASE_PATH", "DATABASE_URL", "LOG_LEVEL",
	"POLL_TIMEOUT", "FEED_INTERVAL", "DISPATCH_CONCURRENCY", "FEED_CONCURRENCY",
	"AWAIT_DISPATCH", "ASSETS_DIR", "OVERLAY_TEMPLATE",
}

func defaults(token string) *Config {
	return &Config{
		TelegramBotToken:    token,
		DatabasePath:        "./data/bot.db",
		LogLevel:            "info",
		PollTimeout:         60 * time.Second,
		FeedInterval:        10 * time.Minute,
		DispatchConcurrency: 16,
		FeedConcurrency:     10,
		AssetsDir:           "assets",
		OverlayTemplate:     "foxify",
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    *Config
		wantErr bool
	}{
		{
			name:    "missing token",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name: "token only, defaults applied",
			env:  map[string]string{"TELEGRAM_BOT_TOKEN": "test-token"},
			want: defaults("test-token"),
		},
		{
			name: "all values set",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN":   "tok",
				"DATABASE_PATH":        "/tmp/bot.db",
				"DATABASE_URL":         "postgres://localhost/bot",
				"LOG_LEVEL":            "debug",
				"POLL_TIMEOUT":         "30s",
				"FEED_INTERVAL":        "5m",
				"DISPATCH_CONCURRENCY": "4",
				"FEED_CONCURRENCY":     "2",
				"AWAIT_DISPATCH":       "true",
				"ASSETS_DIR":           "/srv/assets",
				"OVERLAY_TEMPLATE":     "bunny",
			},
			want: &Config{
				TelegramBotToken:    "tok",
				DatabasePath:        "/tmp/bot.db",
				DatabaseURL:         "postgres://localhost/bot",
				LogLevel:            "debug",
				PollTimeout:         30 * time.Second,
				FeedInterval:        5 * time.Minute,
				DispatchConcurrency: 4,
				FeedConcurrency:     2,
				AwaitDispatch:       true,
				AssetsDir:           "/srv/assets",
				OverlayTemplate:     "bunny",
			},
		},
		{
			name: "bare seconds",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"POLL_TIMEOUT":       "45",
				"FEED_INTERVAL":      "600",
			},
			want: func() *Config {
				c := defaults("tok")
				c.PollTimeout = 45 * time.Second
				c.FeedInterval = 600 * time.Second
				return c
			}(),
		},
		{
			name: "poll timeout above client timeout",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"POLL_TIMEOUT":       "120s",
			},
			wantErr: true,
		},
		{
			name: "invalid feed interval",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"FEED_INTERVAL":      "soon",
			},
			wantErr: true,
		},
		{
			name: "zero concurrency",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN":   "tok",
				"DISPATCH_CONCURRENCY": "0",
			},
			wantErr: true,
		},
		{
			name: "invalid await flag",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"AWAIT_DISPATCH":     "maybe",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range allKeys {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("OVERLAY_TEMPLATE=from-file\nLOG_LEVEL=warn\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("OVERLAY_TEMPLATE", "")
	t.Setenv("LOG_LEVEL", "")
	// godotenv does not override variables that are already set, and
	// t.Setenv("") counts as set, so unset them for the duration of the test.
	for _, key := range []string{"OVERLAY_TEMPLATE", "LOG_LEVEL"} {
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unsetenv: %v", err)
		}
	}

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	got := map[string]string{
		"OVERLAY_TEMPLATE": os.Getenv("OVERLAY_TEMPLATE"),
		"LOG_LEVEL":        os.Getenv("LOG_LEVEL"),
	}
	want := map[string]string{"OVERLAY_TEMPLATE": "from-file", "LOG_LEVEL": "warn"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("env mismatch (-want +got):\n%s", diff)
	}
}
