package dispatch

import (
	"github.com/okian/blurber/internal/domain/dedupe"
	"github.com/okian/blurber/pkg/logger"
)

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithDeduper drops events whose fingerprint was seen recently.
func WithDeduper(d dedupe.Deduper) Option {
	return func(dp *Dispatcher) {
		dp.deduper = d
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(dp *Dispatcher) {
		if l != nil {
			dp.logger = l
		}
	}
}
