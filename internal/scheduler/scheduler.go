package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"freopen_bot/internal/bot"
	"freopen_bot/internal/model"
	"freopen_bot/internal/storage"
)

// Sender is the interface for delivering feed entries to a chat.
type Sender interface {
	Deliver(ctx context.Context, chatID int64, text string, replyTo int64) error
}

// FeedFetcher returns the entries of a feed, newest first.
type FeedFetcher interface {
	Entries(ctx context.Context, url string) ([]model.FeedEntry, error)
}

// Store is the subset of storage the scheduler needs.
type Store interface {
	ListAllSubscriptions(ctx context.Context) ([]model.Subscription, error)
	SetCursor(ctx context.Context, chatID int64, url, cursor string) error
}

// Deliveries per second across all chats. The Bot API caps a bot at 30.
const sendsPerSecond = 20

// Scheduler periodically checks subscribed feeds and delivers new entries.
type Scheduler struct {
	store       Store
	fetcher     FeedFetcher
	sender      Sender
	log         *slog.Logger
	tick        time.Duration
	concurrency int
	limiter     *rate.Limiter
}

// New creates a Scheduler checking every interval with up to concurrency
// subscriptions processed at once.
func New(store Store, fetcher FeedFetcher, sender Sender, log *slog.Logger, interval time.Duration, concurrency int) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{
		store:       store,
		fetcher:     fetcher,
		sender:      sender,
		log:         log,
		tick:        interval,
		concurrency: concurrency,
		limiter:     rate.NewLimiter(rate.Limit(sendsPerSecond), 1),
	}
}

// SetTickInterval overrides the check interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// SetRateLimit overrides the delivery rate.
func (s *Scheduler) SetRateLimit(l rate.Limit) {
	s.limiter.SetLimit(l)
}

// Run checks all subscriptions immediately and then on every tick, blocking
// until ctx is cancelled. A check that overruns the interval drops ticks.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("scheduler started", "interval", s.tick, "concurrency", s.concurrency)
	s.checkAll(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.checkAll(ctx)
		}
	}
}

// Delta returns the entries newer than cursor, newest first. When the cursor
// is empty or no longer in the window, every entry is new.
func Delta(entries []model.FeedEntry, cursor string) []model.FeedEntry {
	if cursor == "" {
		return entries
	}
	for i, e := range entries {
		if e.ID == cursor {
			return entries[:i]
		}
	}
	return entries
}

func (s *Scheduler) checkAll(ctx context.Context) {
	subs, err := s.store.ListAllSubscriptions(ctx)
	if err != nil {
		s.log.Error("list subscriptions", "error", err)
		return
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, sub := range subs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			s.processSubscription(ctx, sub)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) processSubscription(ctx context.Context, sub model.Subscription) {
	log := s.log.With("chat_id", sub.ChatID, "url", sub.URL)
	log.Debug("checking feed", "cursor", sub.LastEntry)

	entries, err := s.fetcher.Entries(ctx, sub.URL)
	if err != nil {
		log.Error("fetch feed", "error", err)
		return
	}

	fresh := Delta(entries, sub.LastEntry)
	if len(fresh) == 0 {
		return
	}

	for i := len(fresh) - 1; i >= 0; i-- {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		if err := s.sender.Deliver(ctx, sub.ChatID, bot.FormatEntry(fresh[i]), 0); err != nil {
			log.Error("deliver entry", "entry", fresh[i].ID, "error", err)
			return
		}
	}

	newest := fresh[0].ID
	if err := s.store.SetCursor(ctx, sub.ChatID, sub.URL, newest); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Debug("subscription removed during check")
			return
		}
		log.Error("set cursor", "cursor", newest, "error", err)
		return
	}
	log.Info("delivered entries", "count", len(fresh), "cursor", newest)
}
