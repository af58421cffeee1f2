// Package worker delivers session notices on a pool of goroutines so a slow
// notifier never holds up the session that raised the notice.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/blurber/internal/domain/model"
	"github.com/okian/blurber/pkg/logger"
	"github.com/okian/blurber/pkg/metrics"
)

// Default pool configuration constants.
const (
	defaultWorkers   = 4
	defaultQueueSize = 256
	defaultTimeout   = 30 * time.Second
)

// Delivery outcomes recorded in metrics.
const (
	outcomeDelivered   = "delivered"
	outcomeUndelivered = "undelivered"
	outcomeDropped     = "dropped"
)

// Notifier is what the pool delivers to.
type Notifier interface {
	Notify(ctx context.Context, n model.Notice) error
}

// Pool queues notices and hands them to the wrapped notifier from a fixed
// number of workers. It is itself a Notifier.
type Pool struct {
	next      Notifier
	workers   int
	queueSize int
	timeout   time.Duration
	logger    logger.Logger

	jobs chan model.Notice
	wg   sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewPool creates a pool delivering to next. Call Start before Notify.
func NewPool(next Notifier, opts ...Option) *Pool {
	p := &Pool{
		next:      next,
		workers:   defaultWorkers,
		queueSize: defaultQueueSize,
		timeout:   defaultTimeout,
		logger:    logger.Get().Named("notify-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.jobs = make(chan model.Notice, p.queueSize)
	return p
}

// Start launches the workers. Workers stop when ctx ends or the pool is
// shut down and its queue drained.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, p.logger.Named("worker-"+strconv.Itoa(i)))
	}
	metrics.UpdateWorkerActiveCount(p.workers)
}

// Notify queues n without blocking. It fails when the queue is full or the
// pool has been shut down.
func (p *Pool) Notify(ctx context.Context, n model.Notice) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.jobs <- n:
		metrics.UpdateWorkerQueueDepth(len(p.jobs))
		return nil
	default:
		metrics.RecordNotification(string(n.Kind), outcomeDropped)
		p.logger.Warn(ctx, "notice queue full", logger.String("kind", string(n.Kind)), logger.String("session_id", n.SessionID))
		return ErrQueueFull
	}
}

// Shutdown stops accepting notices and waits for the queued ones to be
// delivered.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		metrics.UpdateWorkerActiveCount(0)
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "notice pool shutdown timed out", logger.Int("pending", len(p.jobs)))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (p *Pool) run(ctx context.Context, log logger.Logger) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-p.jobs:
			if !ok {
				return
			}
			p.deliver(ctx, log, n)
		}
	}
}

func (p *Pool) deliver(ctx context.Context, log logger.Logger, n model.Notice) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
		metrics.UpdateWorkerQueueDepth(len(p.jobs))
	}()

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.next.Notify(dctx, n); err != nil {
		metrics.RecordNotification(string(n.Kind), outcomeUndelivered)
		metrics.RecordErrorByComponent("worker", "notify_failed")
		log.Error(ctx, "notice delivery failed",
			logger.String("kind", string(n.Kind)),
			logger.String("session_id", n.SessionID),
			logger.Error(err),
		)
		return
	}
	metrics.RecordNotification(string(n.Kind), outcomeDelivered)
}
