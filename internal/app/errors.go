package service

import "errors"

// ErrStopped is returned by Track once Stop has been called.
var ErrStopped = errors.New("service stopped")
