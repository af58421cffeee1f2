package repository

import "errors"

// Sentinel kinds for history errors.
var (
	ErrNotFound     = errors.New("character not found")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
)
