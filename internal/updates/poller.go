// Package updates consumes inbound updates with a getUpdates long-poll loop.
package updates

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"freopen_bot/internal/dispatch"
	"freopen_bot/internal/model"
	"freopen_bot/internal/telegram"
)

// Remote fetches batches of updates.
type Remote interface {
	FetchUpdates(ctx context.Context, req telegram.FetchRequest) ([]model.Update, error)
}

// OffsetStore persists the update offset between runs.
type OffsetStore interface {
	LoadOffset(ctx context.Context) (int64, error)
	SaveOffset(ctx context.Context, offset int64) error
}

// Submitter processes one batch of updates.
type Submitter interface {
	Submit(ctx context.Context, batch []model.Update) dispatch.Result
}

// Options configure a Poller. Zero fields take defaults.
type Options struct {
	// PollTimeout is how long the server may hold a fetch open. Default 60s.
	PollTimeout time.Duration
	// Limit caps the number of updates per fetch. Default 100.
	Limit int
	// AllowedUpdates filters the update kinds returned. Default message and channel_post.
	AllowedUpdates []string
	// AwaitDispatch makes the poller wait for a batch to be fully handled
	// before fetching the next one.
	AwaitDispatch bool
	// FlushTimeout bounds the final offset flush at shutdown. Default 10s.
	FlushTimeout time.Duration
	// Backoff returns a fresh retry schedule for failed fetches.
	Backoff func() retry.Backoff
}

// Poller owns the update offset: it is the only writer, it never has two
// fetches outstanding, and it advances the offset before handing a batch off.
type Poller struct {
	remote     Remote
	store      OffsetStore
	dispatcher Submitter
	opts       Options
	log        *slog.Logger

	offset   atomic.Int64
	inflight sync.WaitGroup
}

// New creates a Poller.
func New(remote Remote, store OffsetStore, dispatcher Submitter, opts Options, log *slog.Logger) *Poller {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 60 * time.Second
	}
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	if len(opts.AllowedUpdates) == 0 {
		opts.AllowedUpdates = []string{telegram.UpdateMessage, telegram.UpdateChannelPost}
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = 10 * time.Second
	}
	if opts.Backoff == nil {
		opts.Backoff = DefaultBackoff
	}
	return &Poller{
		remote:     remote,
		store:      store,
		dispatcher: dispatcher,
		opts:       opts,
		log:        log,
	}
}

// DefaultBackoff grows from 500ms to at most 30s with 10% jitter.
func DefaultBackoff() retry.Backoff {
	b := retry.NewExponential(500 * time.Millisecond)
	b = retry.WithJitterPercent(10, b)
	return retry.WithCappedDuration(30*time.Second, b)
}

// NextOffset returns the offset that acknowledges every update in batch.
// Update ids may have gaps, so it is one past the largest id, and it never
// moves backwards.
func NextOffset(current int64, batch []model.Update) int64 {
	next := current
	for _, u := range batch {
		if u.ID+1 > next {
			next = u.ID + 1
		}
	}
	return next
}

// Offset returns the offset the next fetch will use.
func (p *Poller) Offset() int64 {
	return p.offset.Load()
}

// Run polls until ctx is cancelled. On cancellation it flushes the offset to
// the platform and the store, waits for dispatched batches to finish, and
// returns nil. It returns an error only if the stored offset cannot be read.
func (p *Poller) Run(ctx context.Context) error {
	offset, err := p.store.LoadOffset(ctx)
	if err != nil {
		return fmt.Errorf("load offset: %w", err)
	}
	p.offset.Store(offset)
	p.log.Info("polling updates", "offset", offset, "await_dispatch", p.opts.AwaitDispatch)

	backoff := p.opts.Backoff()
	for {
		batch, err := p.fetch(ctx)
		if ctx.Err() != nil {
			return p.shutdown(ctx)
		}
		if err != nil {
			delay, _ := backoff.Next()
			p.log.Error("fetch updates", "offset", p.Offset(), "retry_in", delay, "error", err)
			select {
			case <-ctx.Done():
				return p.shutdown(ctx)
			case <-time.After(delay):
			}
			continue
		}
		backoff = p.opts.Backoff()

		next := NextOffset(p.Offset(), batch)
		p.offset.Store(next)
		if len(batch) == 0 {
			continue
		}
		p.log.Debug("received updates", "count", len(batch), "next_offset", next)
		p.dispatch(ctx, batch)
	}
}

// fetch races one long-poll against cancellation of ctx.
func (p *Poller) fetch(ctx context.Context) ([]model.Update, error) {
	type result struct {
		batch []model.Update
		err   error
	}
	req := telegram.FetchRequest{
		Offset:         p.Offset(),
		Limit:          p.opts.Limit,
		Timeout:        p.opts.PollTimeout,
		AllowedUpdates: p.opts.AllowedUpdates,
	}

	done := make(chan result, 1)
	go func() {
		batch, err := p.remote.FetchUpdates(ctx, req)
		done <- result{batch: batch, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.batch, r.err
	}
}

// dispatch hands a batch to the dispatcher. Handlers get a context that is
// not cancelled at shutdown so in-flight work can finish.
func (p *Poller) dispatch(ctx context.Context, batch []model.Update) {
	dctx := context.WithoutCancel(ctx)
	if p.opts.AwaitDispatch {
		p.report(p.dispatcher.Submit(dctx, batch))
		return
	}
	p.inflight.Go(func() {
		p.report(p.dispatcher.Submit(dctx, batch))
	})
}

func (p *Poller) report(res dispatch.Result) {
	if res.Failed > 0 {
		p.log.Warn("batch finished with failures", "handled", res.Handled, "failed", res.Failed)
		return
	}
	p.log.Debug("batch finished", "handled", res.Handled)
}

func (p *Poller) shutdown(ctx context.Context) error {
	offset := p.Offset()
	p.log.Info("shutdown signal received, flushing offset", "offset", offset)

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.FlushTimeout)
	defer cancel()

	// A zero-timeout fetch acknowledges everything below offset without
	// waiting for, or consuming, anything new.
	_, err := p.remote.FetchUpdates(fctx, telegram.FetchRequest{
		Offset:         offset,
		Limit:          1,
		AllowedUpdates: p.opts.AllowedUpdates,
	})
	if err != nil {
		p.log.Error("flush offset", "offset", offset, "error", err)
	}
	if err := p.store.SaveOffset(fctx, offset); err != nil {
		p.log.Error("save offset", "offset", offset, "error", err)
	}

	p.inflight.Wait()
	p.log.Info("update poller stopped", "offset", offset)
	return nil
}
