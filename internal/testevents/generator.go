package testevents

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/okian/adrec/pkg/logger"
)

// Event kinds sent by the generator.
const (
	kindImpression = "impression"
	kindClick      = "click"
)

// clickDelay is the gap between an impression and its click.
const clickDelay = 3 * time.Second

// generateEvents builds NumEvents impressions, each followed by a click with
// probability ClickRatio. Impressions are spread over the last day.
func generateEvents(ctx context.Context, config *Config, rng *rand.Rand, now time.Time, stats *Stats) ([]Event, error) {
	if config.NumEvents <= 0 {
		return nil, fmt.Errorf("events must be positive, got %d", config.NumEvents)
	}
	if len(config.Ads) == 0 {
		return nil, fmt.Errorf("no ad ids configured")
	}

	logger.Get().Info(ctx, "generating events", logger.Int("impressions", config.NumEvents))

	users := maxInt(config.Users, 1)
	tenants := maxInt(config.Tenants, 1)
	events := make([]Event, 0, config.NumEvents+int(float64(config.NumEvents)*config.ClickRatio)+1)

	for i := 0; i < config.NumEvents; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during event generation: %w", err)
		}

		var userID *int64
		if rng.Float64() >= config.AnonymousRatio {
			id := int64(rng.Intn(users) + 1)
			userID = &id
		}
		at := now.Add(-time.Duration(rng.Int63n(int64(24 * time.Hour))))
		impression := Event{
			UserID:    userID,
			AdID:      config.Ads[rng.Intn(len(config.Ads))],
			EventType: kindImpression,
			TenantID:  int64(rng.Intn(tenants) + 1),
			Timestamp: at.Unix(),
		}
		events = append(events, impression)

		if rng.Float64() < config.ClickRatio {
			click := impression
			click.EventType = kindClick
			click.Timestamp = at.Add(clickDelay).Unix()
			events = append(events, click)
		}
	}

	stats.EventsGenerated = len(events)
	logger.Get().Info(ctx, "generated events successfully", logger.Int("count", len(events)))
	return events, nil
}

// maxInt returns the maximum of two integers.
func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
