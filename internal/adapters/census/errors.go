package census

import "errors"

// Sentinel kinds for directory errors.
var (
	ErrNotFound    = errors.New("character not found")
	ErrInvalidName = errors.New("invalid character name")
	ErrUpstream    = errors.New("census request failed")
)
