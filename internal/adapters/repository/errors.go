package repository

import "errors"

// Sentinel kinds for store errors.
var (
	// ErrStoreUnavailable wraps every failure to reach or query the store.
	ErrStoreUnavailable = errors.New("interaction store unavailable")
	ErrUnknownDriver    = errors.New("unknown database driver")
)
