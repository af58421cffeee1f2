package feed

import "errors"

// Sentinel kinds for feed errors.
var (
	ErrMalformedPayload = errors.New("malformed event payload")
	ErrNotConnected     = errors.New("feed not connected")
	ErrAlreadyRunning   = errors.New("feed already running")
)
