package sink

import "errors"

// Sentinel kinds for event sink errors.
var (
	ErrQueuePublishFailed = errors.New("queue publish failed")
	ErrBufferAppendFailed = errors.New("buffer append failed")
	ErrFileWriteFailed    = errors.New("fallback file write failed")
	// ErrEventLost means every tier failed and the event was not recorded anywhere.
	ErrEventLost = errors.New("event lost")
)
