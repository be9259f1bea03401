package testevents

import "time"

// HTTP status code constants.
const (
	StatusOK                  = 200
	StatusUnprocessableEntity = 422
	StatusServiceUnavailable  = 503
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	ProcessingDelay      = 2 * time.Second
	PercentageMultiplier = 100
	progressInterval     = time.Second
)

// Submission results.
const (
	resultQueued      = "queued"
	resultBuffered    = "buffered"
	resultFile        = "file"
	resultUnavailable = "unavailable"
	resultRejected    = "rejected"
	resultFailed      = "failed"
)
