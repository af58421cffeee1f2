// Package dispatch fans the upstream event stream out to tracking sessions.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/blurber/internal/adapters/mq/queue"
	"github.com/okian/blurber/internal/domain/dedupe"
	"github.com/okian/blurber/internal/domain/model"
	"github.com/okian/blurber/internal/domain/registry"
	"github.com/okian/blurber/pkg/logger"
	"github.com/okian/blurber/pkg/metrics"
)

// Feed is an ordered source of decoded events. Events is closed when the
// feed ends; Err then reports why, or nil for a clean end.
type Feed interface {
	Events() <-chan model.Event
	Err() error
}

// Router finds the session inbox for a character.
type Router interface {
	Lookup(id model.EntityID) (registry.Inbox, bool)
}

// Delivery outcomes recorded in metrics.
const (
	outcomeDelivered    = "delivered"
	outcomeClosed       = "closed"
	outcomeBackpressure = "backpressure"
	outcomeCancelled    = "cancelled"
)

// Dispatcher consumes one feed and routes each event to the sessions of the
// characters it involves.
type Dispatcher struct {
	router  Router
	deduper dedupe.Deduper
	logger  logger.Logger
}

// New creates a dispatcher routing through r.
func New(r Router, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		router: r,
		logger: logger.Get().Named("dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run consumes feed until it ends or ctx is cancelled. Events are handled
// one at a time in feed order. It returns nil when the feed closes cleanly,
// the context error on cancellation, and an error wrapping
// ErrFeedDisconnected when the feed fails.
func (d *Dispatcher) Run(ctx context.Context, feed Feed) error {
	events := feed.Events()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("dispatch: %w", ctx.Err())
		case e, ok := <-events:
			if !ok {
				if err := feed.Err(); err != nil {
					metrics.RecordFeedError()
					return fmt.Errorf("%w: %w", ErrFeedDisconnected, err)
				}
				d.logger.Info(ctx, "feed closed")
				return nil
			}
			d.Dispatch(ctx, e)
		}
	}
}

// Dispatch routes a single event and returns the number of sessions it
// reached.
func (d *Dispatcher) Dispatch(ctx context.Context, e model.Event) int {
	start := time.Now()
	defer func() {
		metrics.RecordDispatchLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()
	metrics.RecordFeedEvent(string(e.Kind()))

	fp := model.Fingerprint(e)
	if d.deduper != nil && d.deduper.SeenAndRecord(ctx, fp) {
		metrics.RecordEventDuplicate()
		return 0
	}

	delivered, routed, stalled := 0, 0, 0
	for _, id := range model.Participants(e) {
		in, ok := d.router.Lookup(id)
		if !ok {
			continue
		}
		routed++
		switch d.deliver(ctx, id, in, e) {
		case outcomeDelivered:
			delivered++
		case outcomeBackpressure:
			stalled++
		}
	}
	if routed == 0 {
		metrics.RecordEventUnrouted()
	}
	// Nobody saw the event, so a repeat from the feed may still get through.
	if d.deduper != nil && stalled > 0 && stalled == routed {
		d.deduper.Unrecord(ctx, fp)
	}
	return delivered
}

func (d *Dispatcher) deliver(ctx context.Context, id model.EntityID, in registry.Inbox, e model.Event) string {
	err := in.Deliver(ctx, e)
	switch {
	case err == nil:
		metrics.RecordDelivery(outcomeDelivered)
		return outcomeDelivered
	case errors.Is(err, queue.ErrClosed):
		// The session is tearing down; treat it as already gone.
		metrics.RecordDelivery(outcomeClosed)
		return outcomeClosed
	case errors.Is(err, queue.ErrTimeout):
		metrics.RecordDelivery(outcomeBackpressure)
		metrics.RecordErrorByComponent("dispatch", "session_backpressure")
		d.logger.Warn(ctx, "session inbox full, event not delivered",
			logger.String("character_id", id.String()),
			logger.String("kind", string(e.Kind())),
		)
		return outcomeBackpressure
	default:
		metrics.RecordDelivery(outcomeCancelled)
		d.logger.Debug(ctx, "delivery aborted", logger.String("character_id", id.String()), logger.Error(err))
		return outcomeCancelled
	}
}
