package queue

import "errors"

// Sentinel kinds for delivery errors.
var (
	ErrClosed  = errors.New("inbox closed")
	ErrTimeout = errors.New("inbox full: send timed out")
)
