package model

import (
	"errors"
	"time"

	json "github.com/goccy/go-json"
)

// ErrAdNotFound is returned when an ad does not exist for the requesting tenant.
var ErrAdNotFound = errors.New("ad not found")

// Ad is a candidate for recommendation.
type Ad struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Tags      []string  `json:"tags"`
	// Audience is the raw target audience document. Tags are derived from
	// its "interests" member.
	Audience json.RawMessage `json:"target_audience,omitempty"`
}

// Active reports whether at falls inside the ad's window. Zero bounds are open.
func (a Ad) Active(at time.Time) bool {
	if !a.StartTime.IsZero() && at.Before(a.StartTime) {
		return false
	}
	if !a.EndTime.IsZero() && at.After(a.EndTime) {
		return false
	}
	return true
}
