// Package report aggregates event history into tenant-facing summaries.
package report

import (
	"fmt"
	"math"

	"github.com/okian/adrec/internal/domain/model"
)

const dateLayout = "2006-01-02"

// ConversionReport summarizes impressions against clicks.
type ConversionReport struct {
	Impressions    int    `json:"impressions"`
	Clicks         int    `json:"clicks"`
	ConversionRate string `json:"conversion_rate"`
}

// DailyCounts maps an event kind to its count on one day.
type DailyCounts map[model.EventKind]int

// Conversion computes the click-through percentage over events, formatted
// with two decimals, e.g. "15.00%".
func Conversion(events []model.Event) ConversionReport {
	var r ConversionReport
	for i := range events {
		switch events[i].Kind {
		case model.KindImpression:
			r.Impressions++
		case model.KindClick:
			r.Clicks++
		}
	}

	rate := 0.0
	if r.Impressions > 0 {
		rate = math.Round(float64(r.Clicks)/float64(r.Impressions)*100*100) / 100
	}
	r.ConversionRate = fmt.Sprintf("%.2f%%", rate)
	return r
}

// Daily groups events by UTC calendar day and kind. Every day carries
// impression and click counts, zero when none occurred.
func Daily(events []model.Event) map[string]DailyCounts {
	out := make(map[string]DailyCounts)
	for i := range events {
		day := events[i].OccurredAt.UTC().Format(dateLayout)
		counts, ok := out[day]
		if !ok {
			counts = DailyCounts{model.KindImpression: 0, model.KindClick: 0}
			out[day] = counts
		}
		counts[events[i].Kind]++
	}
	return out
}
