// Package dispatch runs one failure-isolated task per inbound update.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"freopen_bot/internal/model"
)

// Handler processes a single update.
type Handler interface {
	Handle(ctx context.Context, u model.Update) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, u model.Update) error

// Handle calls f(ctx, u).
func (f HandlerFunc) Handle(ctx context.Context, u model.Update) error {
	return f(ctx, u)
}

// Result counts the outcome of one submitted batch.
type Result struct {
	Handled int
	Failed  int
}

// Dispatcher fans a batch of updates out to a Handler.
type Dispatcher struct {
	handler Handler
	limit   int
	log     *slog.Logger
}

// New creates a Dispatcher running at most limit handlers at once.
// A limit below 1 means no limit.
func New(handler Handler, limit int, log *slog.Logger) *Dispatcher {
	return &Dispatcher{handler: handler, limit: limit, log: log}
}

// Submit runs the handler for every update and returns once all of them have
// finished. A failing or panicking handler is logged and counted; it never
// affects the other updates of the batch.
func (d *Dispatcher) Submit(ctx context.Context, batch []model.Update) Result {
	var g errgroup.Group
	if d.limit > 0 {
		g.SetLimit(d.limit)
	}

	var failed atomic.Int64
	for _, u := range batch {
		g.Go(func() error {
			if err := d.handle(ctx, u); err != nil {
				failed.Add(1)
				d.log.Error("handle update", "update_id", u.ID, "kind", u.Kind, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Failed: int(failed.Load())}
	res.Handled = len(batch) - res.Failed
	return res
}

func (d *Dispatcher) handle(ctx context.Context, u model.Update) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Debug("handler panic", "update_id", u.ID, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d.handler.Handle(ctx, u)
}
