package registry

import "errors"

// Sentinel errors for registry lookups.
var (
	ErrAlreadyTracked = errors.New("character already tracked")
	ErrNotTracked     = errors.New("character not tracked")
)
