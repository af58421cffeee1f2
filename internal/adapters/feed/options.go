package feed

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/blurber/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithServiceID sets the service id appended to the streaming URL.
func WithServiceID(id string) Option {
	return func(c *Client) {
		c.serviceID = id
	}
}

// WithSubscribeAll subscribes to every character instead of only tracked
// ones.
func WithSubscribeAll(on bool) Option {
	return func(c *Client) {
		c.subscribeAll = on
	}
}

// WithEventNames overrides the subscribed event kinds.
func WithEventNames(names ...string) Option {
	return func(c *Client) {
		if len(names) > 0 {
			c.eventNames = names
		}
	}
}

// WithPingInterval sets the keepalive ping interval.
func WithPingInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pingInterval = d
		}
	}
}

// WithBufferSize sets how many decoded events may wait for the consumer.
func WithBufferSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithDialer sets the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
