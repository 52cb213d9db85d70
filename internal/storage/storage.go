// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"

	"freopen_bot/internal/model"
)

// ErrNotFound is returned when the requested subscription does not exist.
var ErrNotFound = errors.New("not found")

// updateOffsetKey names the inbound update offset row in the offsets table.
const updateOffsetKey = "updates"

// Storage is the interface for all persistence operations.
type Storage interface {
	// AddSubscription adds a feed to a chat. Adding a URL the chat already
	// follows replaces it and resets its cursor.
	AddSubscription(ctx context.Context, chatID int64, url string) error
	// RemoveSubscription reports whether the subscription existed.
	RemoveSubscription(ctx context.Context, chatID int64, url string) (bool, error)
	ListSubscriptions(ctx context.Context, chatID int64) ([]model.Subscription, error)
	// ListAllSubscriptions returns a snapshot of every subscription.
	ListAllSubscriptions(ctx context.Context) ([]model.Subscription, error)

	GetCursor(ctx context.Context, chatID int64, url string) (string, error)
	// SetCursor returns ErrNotFound if the subscription was removed.
	SetCursor(ctx context.Context, chatID int64, url, cursor string) error

	LoadOffset(ctx context.Context) (int64, error)
	// SaveOffset never lowers a previously saved offset.
	SaveOffset(ctx context.Context, offset int64) error

	Close() error
}

// Open returns a Postgres store when databaseURL is set and a SQLite store at
// sqlitePath otherwise.
func Open(ctx context.Context, databaseURL, sqlitePath string) (Storage, error) {
	if databaseURL != "" {
		return NewPostgres(ctx, databaseURL)
	}
	return NewSQLite(sqlitePath)
}
