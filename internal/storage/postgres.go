package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations.

	"freopen_bot/internal/model"
	"freopen_bot/migrations"
)

// Postgres implements Storage backed by a PostgreSQL database.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and runs pending migrations.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if err := migratePostgres(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func migratePostgres(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := migrations.Run(db, migrations.DialectPostgres); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// AddSubscription inserts a subscription or resets the cursor of an existing one.
func (p *Postgres) AddSubscription(ctx context.Context, chatID int64, url string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO subscriptions (chat_id, url, last_entry) VALUES ($1, $2, '')
		 ON CONFLICT (chat_id, url) DO UPDATE SET last_entry = excluded.last_entry`,
		chatID, url,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// RemoveSubscription deletes a subscription of the given chat.
func (p *Postgres) RemoveSubscription(ctx context.Context, chatID int64, url string) (bool, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM subscriptions WHERE chat_id = $1 AND url = $2`, chatID, url,
	)
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListSubscriptions returns the subscriptions of one chat ordered by URL.
func (p *Postgres) ListSubscriptions(ctx context.Context, chatID int64) ([]model.Subscription, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT chat_id, url, last_entry FROM subscriptions WHERE chat_id = $1 ORDER BY url`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	return collectSubscriptions(rows)
}

// ListAllSubscriptions returns every subscription of every chat.
func (p *Postgres) ListAllSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT chat_id, url, last_entry FROM subscriptions ORDER BY chat_id, url`,
	)
	if err != nil {
		return nil, fmt.Errorf("query all subscriptions: %w", err)
	}
	return collectSubscriptions(rows)
}

// GetCursor returns the last delivered entry of a subscription.
func (p *Postgres) GetCursor(ctx context.Context, chatID int64, url string) (string, error) {
	var cursor string
	err := p.pool.QueryRow(ctx,
		`SELECT last_entry FROM subscriptions WHERE chat_id = $1 AND url = $2`, chatID, url,
	).Scan(&cursor)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get cursor: %w", err)
	}
	return cursor, nil
}

// SetCursor advances the cursor of an existing subscription.
func (p *Postgres) SetCursor(ctx context.Context, chatID int64, url, cursor string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE subscriptions SET last_entry = $1 WHERE chat_id = $2 AND url = $3`,
		cursor, chatID, url,
	)
	if err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LoadOffset returns the saved update offset, or 0 if none was saved.
func (p *Postgres) LoadOffset(ctx context.Context) (int64, error) {
	var offset int64
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM offsets WHERE name = $1`, updateOffsetKey,
	).Scan(&offset)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load offset: %w", err)
	}
	return offset, nil
}

// SaveOffset persists the update offset unless a larger one is already stored.
func (p *Postgres) SaveOffset(ctx context.Context, offset int64) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO offsets (name, value) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET value = excluded.value
		 WHERE excluded.value > offsets.value`,
		updateOffsetKey, offset,
	)
	if err != nil {
		return fmt.Errorf("save offset: %w", err)
	}
	return nil
}

func collectSubscriptions(rows pgx.Rows) ([]model.Subscription, error) {
	defer rows.Close()
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
