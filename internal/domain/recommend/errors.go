package recommend

import "errors"

// Sentinel kinds for recommendation errors.
var (
	// ErrScoringUnavailable means the ad catalog could not be loaded.
	ErrScoringUnavailable = errors.New("scoring unavailable")
)
