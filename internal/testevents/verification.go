package testevents

import (
	"context"
	"fmt"

	"github.com/okian/adrec/pkg/logger"
)

// verifyResults checks the run's outcome: no hard failures while posting
// events, and well-formed recommendation lists.
func verifyResults(ctx context.Context, config *Config, responses []RecommendResponse, stats *Stats) error {
	log := logger.Get().Named("verify")
	log.Info(ctx, "verifying results")

	if stats.EventsRejected > 0 {
		return fmt.Errorf("%d events were rejected as invalid", stats.EventsRejected)
	}
	if stats.EventsSubmitted > 0 && stats.EventsFailed == stats.EventsSubmitted {
		return fmt.Errorf("all %d event submissions failed", stats.EventsSubmitted)
	}
	if stats.EventsUnavailable > 0 {
		log.Warn(ctx, "some events only reached the fallback file", logger.Int("count", stats.EventsUnavailable))
	}

	for _, r := range responses {
		if err := verifyRecommendation(r, config.Limit); err != nil {
			return err
		}
	}

	log.Info(ctx, "result verification completed")
	return nil
}

// verifyRecommendation checks the size bound and that no ad repeats.
func verifyRecommendation(r RecommendResponse, limit int) error {
	if limit > 0 && len(r.Recommendations) > limit {
		return fmt.Errorf("user %d: %d ads exceed limit %d", r.UserID, len(r.Recommendations), limit)
	}
	seen := make(map[int64]struct{}, len(r.Recommendations))
	for _, ad := range r.Recommendations {
		if _, dup := seen[ad.ID]; dup {
			return fmt.Errorf("user %d: ad %d recommended twice", r.UserID, ad.ID)
		}
		seen[ad.ID] = struct{}{}
	}
	return nil
}
