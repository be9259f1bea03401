package sink

// Outcome reports where an event ended up.
type Outcome int

// Outcomes of Chain.Record.
const (
	// Queued means the message queue acknowledged the event.
	Queued Outcome = iota
	// BufferedFallback means the event was appended to the buffer store.
	BufferedFallback
	// PersistedFallback means the event was written to the local file and
	// the chain is configured to report that as success.
	PersistedFallback
	// Unavailable means no delivery tier accepted the event. The event may
	// still have been written to the local file.
	Unavailable
)

// String returns the metric/log label of the outcome.
func (o Outcome) String() string {
	switch o {
	case Queued:
		return "queued"
	case BufferedFallback:
		return "buffered_fallback"
	case PersistedFallback:
		return "persisted_fallback"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Accepted reports whether the caller should treat the event as recorded.
func (o Outcome) Accepted() bool { return o != Unavailable }
