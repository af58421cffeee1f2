// Package queue provides the bounded per-session inbox events are delivered
// through.
//
// The events channel is never closed. Closing an inbox closes its done
// channel instead, which wakes both a blocked sender and the consumer, so a
// late Deliver racing a teardown returns ErrClosed rather than panicking.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/blurber/internal/domain/model"
	"github.com/okian/blurber/pkg/metrics"
)

// Default inbox configuration constants.
const (
	defaultCapacity    = 1000
	defaultSendTimeout = 250 * time.Millisecond
)

// Inbox is a bounded FIFO of events for a single consumer.
type Inbox struct {
	events      chan model.Event
	done        chan struct{}
	once        sync.Once
	capacity    int
	sendTimeout time.Duration
}

// NewInbox creates an inbox with configuration options.
func NewInbox(opts ...Option) *Inbox {
	q := &Inbox{
		capacity:    defaultCapacity,
		sendTimeout: defaultSendTimeout,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan model.Event, q.capacity)
	q.done = make(chan struct{})
	return q
}

// Deliver enqueues e. It returns at once when there is room, otherwise it
// waits up to the send timeout. ErrClosed is returned once the inbox has
// been closed; ErrTimeout when the consumer did not make room in time.
func (q *Inbox) Deliver(ctx context.Context, e model.Event) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case q.events <- e:
		metrics.ObserveInboxDepth(len(q.events))
		return nil
	default:
	}

	timer := time.NewTimer(q.sendTimeout)
	defer timer.Stop()

	select {
	case q.events <- e:
		metrics.ObserveInboxDepth(len(q.events))
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("deliver: %w", ctx.Err())
	case <-timer.C:
		return ErrTimeout
	}
}

// Events returns the receive side of the inbox.
func (q *Inbox) Events() <-chan model.Event { return q.events }

// Done is closed when the inbox is closed.
func (q *Inbox) Done() <-chan struct{} { return q.done }

// Len returns the current number of queued events.
func (q *Inbox) Len() int { return len(q.events) }

// Close marks the inbox closed. It is idempotent.
func (q *Inbox) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}
