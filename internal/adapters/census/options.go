package census

import (
	"time"

	"github.com/okian/blurber/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithServiceID sets the service id sent with every request.
func WithServiceID(id string) Option {
	return func(c *Client) {
		if id != "" {
			c.serviceID = id
		}
	}
}

// WithRateLimit caps requests per second. Values <= 0 disable pacing.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		c.ratePerSecond = perSecond
	}
}

// WithCache sets the size and lifetime of the name resolution cache.
func WithCache(size int, ttl time.Duration) Option {
	return func(c *Client) {
		if size > 0 {
			c.cacheSize = size
		}
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithRetries sets how often a failed request is retried.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithRetryWait sets the backoff bounds between retries.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(c *Client) {
		if minWait > 0 && maxWait >= minWait {
			c.retryWaitMin = minWait
			c.retryWaitMax = maxWait
		}
	}
}

// WithTimeout sets the overall timeout of a request including retries.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
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
