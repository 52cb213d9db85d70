package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"freopen_bot/internal/model"
	"freopen_bot/migrations"
)

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// from splitting across pooled connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db, migrations.DialectSQLite); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// AddSubscription inserts a subscription or resets the cursor of an existing one.
func (s *SQLite) AddSubscription(ctx context.Context, chatID int64, url string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (chat_id, url, last_entry) VALUES (?, ?, '')
		 ON CONFLICT (chat_id, url) DO UPDATE SET last_entry = excluded.last_entry`,
		chatID, url,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// RemoveSubscription deletes a subscription of the given chat.
func (s *SQLite) RemoveSubscription(ctx context.Context, chatID int64, url string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE chat_id = ? AND url = ?`, chatID, url,
	)
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListSubscriptions returns the subscriptions of one chat ordered by URL.
func (s *SQLite) ListSubscriptions(ctx context.Context, chatID int64) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, url, last_entry FROM subscriptions WHERE chat_id = ? ORDER BY url`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSubscriptions(rows)
}

// ListAllSubscriptions returns every subscription of every chat.
func (s *SQLite) ListAllSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, url, last_entry FROM subscriptions ORDER BY chat_id, url`,
	)
	if err != nil {
		return nil, fmt.Errorf("query all subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSubscriptions(rows)
}

// GetCursor returns the last delivered entry of a subscription.
func (s *SQLite) GetCursor(ctx context.Context, chatID int64, url string) (string, error) {
	var cursor string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_entry FROM subscriptions WHERE chat_id = ? AND url = ?`, chatID, url,
	).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get cursor: %w", err)
	}
	return cursor, nil
}

// SetCursor advances the cursor of an existing subscription.
func (s *SQLite) SetCursor(ctx context.Context, chatID int64, url, cursor string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET last_entry = ? WHERE chat_id = ? AND url = ?`,
		cursor, chatID, url,
	)
	if err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// LoadOffset returns the saved update offset, or 0 if none was saved.
func (s *SQLite) LoadOffset(ctx context.Context) (int64, error) {
	var offset int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM offsets WHERE name = ?`, updateOffsetKey,
	).Scan(&offset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load offset: %w", err)
	}
	return offset, nil
}

// SaveOffset persists the update offset unless a larger one is already stored.
func (s *SQLite) SaveOffset(ctx context.Context, offset int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO offsets (name, value) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET value = excluded.value
		 WHERE excluded.value > offsets.value`,
		updateOffsetKey, offset,
	)
	if err != nil {
		return fmt.Errorf("save offset: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSubscription(row scannable) (model.Subscription, error) {
	var sub model.Subscription
	if err := row.Scan(&sub.ChatID, &sub.URL, &sub.LastEntry); err != nil {
		return sub, fmt.Errorf("scan subscription: %w", err)
	}
	return sub, nil
}

func scanSubscriptions(rows *sql.Rows) ([]model.Subscription, error) {
	var subs []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
