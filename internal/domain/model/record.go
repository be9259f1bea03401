package model

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// Record is the wire form of an event shared by the queue, the buffer and
// the fallback file. Timestamp is epoch seconds.
type Record struct {
	UserID    *int64    `json:"user_id"`
	AdID      int64     `json:"ad_id"`
	EventType EventKind `json:"event_type"`
	TenantID  int64     `json:"tenant_id"`
	Timestamp int64     `json:"timestamp"`
}

// NewRecord converts an event to its wire form.
func NewRecord(e Event) Record { //nolint:gocritic // hugeParam: Event is passed by value across layers
	return Record{
		UserID:    e.UserID,
		AdID:      e.AdID,
		EventType: e.Kind,
		TenantID:  e.TenantID,
		Timestamp: e.OccurredAt.Unix(),
	}
}

// Event converts the wire form back into a domain event.
func (r Record) Event() Event {
	return Event{
		TenantID:   r.TenantID,
		AdID:       r.AdID,
		UserID:     r.UserID,
		Kind:       r.EventType,
		OccurredAt: time.Unix(r.Timestamp, 0).UTC(),
	}
}

// Marshal encodes the record as a single JSON object without a trailing newline.
func (r Record) Marshal() ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return b, nil
}
