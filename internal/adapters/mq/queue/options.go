package queue

import "time"

// Option applies a configuration option to the Inbox.
type Option func(*Inbox)

// WithCapacity sets the number of events the inbox buffers before Deliver
// starts to block.
func WithCapacity(capacity int) Option {
	return func(q *Inbox) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithSendTimeout bounds how long Deliver waits for room in a full inbox.
func WithSendTimeout(d time.Duration) Option {
	return func(q *Inbox) {
		if d > 0 {
			q.sendTimeout = d
		}
	}
}
