package dispatch

import "errors"

// ErrFeedDisconnected wraps the cause when the upstream feed fails.
var ErrFeedDisconnected = errors.New("upstream feed disconnected")
