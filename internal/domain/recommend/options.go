package recommend

import (
	"math/rand"
	"time"

	"github.com/okian/adrec/pkg/logger"
)

// Option applies a configuration option to the Recommender.
type Option func(*Recommender)

// WithRand sets the random source used for sampling. Tests pass a seeded source.
func WithRand(rng *rand.Rand) Option {
	return func(r *Recommender) {
		if rng != nil {
			r.rng = rng
		}
	}
}

// WithClock sets the time source used for recency decay.
func WithClock(now func() time.Time) Option {
	return func(r *Recommender) {
		if now != nil {
			r.now = now
		}
	}
}

// WithDefaultTopN sets the count used when callers pass topN <= 0.
func WithDefaultTopN(n int) Option {
	return func(r *Recommender) {
		if n > 0 {
			r.defaultTopN = n
		}
	}
}

// WithCTRWeight sets the multiplier applied to an ad's CTR in personalized scores.
func WithCTRWeight(w float64) Option {
	return func(r *Recommender) {
		if w >= 0 {
			r.ctrWeight = w
		}
	}
}

// WithLogger sets a custom logger for the recommender.
func WithLogger(l logger.Logger) Option {
	return func(r *Recommender) {
		if l != nil {
			r.logger = l
		}
	}
}
