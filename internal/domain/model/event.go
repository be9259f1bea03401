// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// EventKind names the interaction type. The set is open; only the two
// well-known kinds carry special weight in scoring and reports.
type EventKind string

// Well-known event kinds.
const (
	KindImpression EventKind = "impression"
	KindClick      EventKind = "click"
)

// Valid reports whether the kind is non-empty after trimming.
func (k EventKind) Valid() bool { return strings.TrimSpace(string(k)) != "" }

// Event is a single recorded interaction between a user and an ad.
type Event struct {
	ID         int64     // storage identifier, zero until persisted
	TenantID   int64     // owning tenant
	AdID       int64     // referenced ad
	UserID     *int64    // nil for anonymous interactions
	Kind       EventKind // impression, click, ...
	OccurredAt time.Time // when the interaction happened
	Data       []byte    // opaque auxiliary payload (JSON)
}

// Anonymous reports whether the event carries no user.
func (e Event) Anonymous() bool { return e.UserID == nil }
