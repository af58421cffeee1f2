package worker

import "errors"

var (
	// ErrQueueFull is returned by Notify when no worker can take the notice.
	ErrQueueFull = errors.New("notice queue full")
	// ErrClosed is returned by Notify after Shutdown.
	ErrClosed = errors.New("notice pool closed")
)
