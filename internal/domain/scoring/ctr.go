// Package scoring derives the signals the recommender ranks ads with:
// per-ad click-through rate and a per-user interest-tag affinity profile.
package scoring

import "github.com/okian/adrec/internal/domain/model"

// CTR maps ad id to clicks/impressions. Only ads with at least one
// impression are present.
type CTR map[int64]float64

// Of returns the click-through rate for adID, or 0 when the ad has no impressions.
func (c CTR) Of(adID int64) float64 { return c[adID] }

type tally struct {
	impressions int
	clicks      int
}

// ComputeCTR aggregates click-through rate per ad over events. Kinds other
// than impression and click are ignored. The result does not depend on
// event order.
func ComputeCTR(events []model.Event) CTR {
	counts := make(map[int64]*tally)
	for i := range events {
		e := &events[i]
		var t *tally
		switch e.Kind {
		case model.KindImpression, model.KindClick:
			t = counts[e.AdID]
			if t == nil {
				t = &tally{}
				counts[e.AdID] = t
			}
		default:
			continue
		}
		if e.Kind == model.KindClick {
			t.clicks++
		} else {
			t.impressions++
		}
	}

	out := make(CTR, len(counts))
	for id, t := range counts {
		if t.impressions == 0 {
			continue
		}
		out[id] = float64(t.clicks) / float64(t.impressions)
	}
	return out
}
