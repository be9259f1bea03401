package scoring

import (
	"time"

	"github.com/okian/adrec/internal/domain/model"
)

// Affinity weighting constants.
const (
	clickWeight   = 1.0
	defaultWeight = 0.5
	recencyFloor  = 0.1
	// RecencyWindow is the span over which an interaction decays to the floor.
	RecencyWindow = 60 * 24 * time.Hour
)

// Affinity is a user's normalized interest profile. Weights sum to 1.0
// or the map is empty.
type Affinity struct {
	Weights    map[string]float64
	Interacted map[int64]struct{}
}

// Empty reports whether no tag carries weight.
func (a Affinity) Empty() bool { return len(a.Weights) == 0 }

// HasInteracted reports whether the user touched adID.
func (a Affinity) HasInteracted(adID int64) bool {
	_, ok := a.Interacted[adID]
	return ok
}

// TagScore sums the affinity of every tag.
func (a Affinity) TagScore(tags []string) float64 {
	var s float64
	for _, t := range tags {
		s += a.Weights[t]
	}
	return s
}

// BaseWeight returns the kind weight of an interaction.
func BaseWeight(kind model.EventKind) float64 {
	if kind == model.KindClick {
		return clickWeight
	}
	return defaultWeight
}

// Recency returns the decay multiplier for an interaction that happened at
// occurredAt, evaluated at now. Future timestamps count as fresh.
func Recency(occurredAt, now time.Time) float64 {
	elapsed := now.Sub(occurredAt)
	if elapsed <= 0 {
		return 1.0
	}
	m := 1.0 - elapsed.Seconds()/RecencyWindow.Seconds()
	if m < recencyFloor {
		return recencyFloor
	}
	return m
}

// BuildAffinity builds the user's tag profile from their events. adTags maps
// ad id to that ad's interest tags; events referencing unknown ads add no
// weight but are still recorded as interacted.
func BuildAffinity(events []model.Event, adTags map[int64][]string, now time.Time) Affinity {
	aff := Affinity{
		Weights:    make(map[string]float64),
		Interacted: make(map[int64]struct{}, len(events)),
	}

	var total float64
	for i := range events {
		e := &events[i]
		aff.Interacted[e.AdID] = struct{}{}

		tags, ok := adTags[e.AdID]
		if !ok {
			continue
		}
		w := BaseWeight(e.Kind) * Recency(e.OccurredAt, now)
		for _, tag := range tags {
			aff.Weights[tag] += w
			total += w
		}
	}

	if total <= 0 {
		aff.Weights = map[string]float64{}
		return aff
	}
	for tag, w := range aff.Weights {
		aff.Weights[tag] = w / total
	}
	return aff
}
