// Package recommend ranks and selects ads for a user by combining the user's
// tag affinity with each ad's click-through rate, falling back to a
// CTR-ranked random sample for users without history.
package recommend

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/adrec/internal/domain/model"
	"github.com/okian/adrec/internal/domain/scoring"
	"github.com/okian/adrec/pkg/logger"
	"github.com/okian/adrec/pkg/metrics"
)

// Default recommender configuration constants.
const (
	defaultTopN      = 5
	defaultCTRWeight = 0.5
)

// Path names how a recommendation was produced.
type Path string

// Recommendation paths.
const (
	PathPersonalized Path = "personalized"
	PathColdStart    Path = "cold_start"
	PathDegraded     Path = "degraded"
)

// Store is the read-only view of ads and interactions the recommender needs.
type Store interface {
	ListAds(ctx context.Context) ([]model.Ad, error)
	ListAllEvents(ctx context.Context) ([]model.Event, error)
	// ListEventsForUser returns the user's events, newest first.
	ListEventsForUser(ctx context.Context, userID int64) ([]model.Event, error)
}

// Recommendation is a ranked selection of ads.
type Recommendation struct {
	Ads  []model.Ad
	Path Path
}

// Recommender selects ads for users. It holds no per-request state; the
// random source is shared and guarded.
type Recommender struct {
	store       Store
	defaultTopN int
	ctrWeight   float64
	now         func() time.Time

	mu  sync.Mutex
	rng *rand.Rand

	logger logger.Logger
}

// New creates a Recommender over store.
func New(store Store, opts ...Option) *Recommender {
	r := &Recommender{
		store:       store,
		defaultTopN: defaultTopN,
		ctrWeight:   defaultCTRWeight,
		now:         time.Now,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // sampling, not security
		logger:      logger.Get().Named("recommend"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recommend returns up to topN ads for userID. topN <= 0 selects the default.
// Only a catalog failure is an error; event history failures degrade to a
// cold-start selection.
func (r *Recommender) Recommend(ctx context.Context, userID int64, topN int) (Recommendation, error) {
	start := time.Now()
	if topN <= 0 {
		topN = r.defaultTopN
	}

	ads, err := r.store.ListAds(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("recommend", "catalog_unavailable")
		return Recommendation{}, fmt.Errorf("%w: %w", ErrScoringUnavailable, err)
	}

	var all, mine []model.Event
	var allErr, mineErr error
	var g errgroup.Group
	g.Go(func() error {
		all, allErr = r.store.ListAllEvents(ctx)
		return allErr
	})
	g.Go(func() error {
		mine, mineErr = r.store.ListEventsForUser(ctx, userID)
		return mineErr
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Recommendation{}, err
	}

	var rec Recommendation
	switch {
	case allErr != nil || mineErr != nil:
		r.logger.Warn(ctx, "event history unavailable; serving cold start",
			logger.Int64("user_id", userID),
			logger.Any("all_events_error", allErr),
			logger.Any("user_events_error", mineErr),
		)
		ctr := scoring.ComputeCTR(all)
		if allErr != nil {
			ctr = scoring.CTR{}
		}
		rec = Recommendation{Ads: r.coldStart(ads, ctr, topN), Path: PathDegraded}
	case len(mine) == 0:
		rec = Recommendation{Ads: r.coldStart(ads, scoring.ComputeCTR(all), topN), Path: PathColdStart}
	default:
		rec = Recommendation{Ads: r.personalized(ads, all, mine, topN), Path: PathPersonalized}
	}

	metrics.RecordRecommendation(string(rec.Path), len(rec.Ads))
	metrics.RecordRecommendationLatency(string(rec.Path), float64(time.Since(start).Milliseconds()))
	r.logger.Debug(ctx, "recommendation served",
		logger.Int64("user_id", userID),
		logger.String("path", string(rec.Path)),
		logger.Int("count", len(rec.Ads)),
	)
	return rec, nil
}

// coldStart ranks by CTR and returns a uniform random sample of the catalog.
func (r *Recommender) coldStart(ads []model.Ad, ctr scoring.CTR, topN int) []model.Ad {
	return r.sample(rankByCTR(ads, ctr), topN)
}

func (r *Recommender) personalized(ads []model.Ad, all, mine []model.Event, topN int) []model.Ad {
	ctr := scoring.ComputeCTR(all)
	tags := make(map[int64][]string, len(ads))
	for i := range ads {
		tags[ads[i].ID] = ads[i].Tags
	}
	aff := scoring.BuildAffinity(mine, tags, r.now())

	type scored struct {
		ad    model.Ad
		score float64
	}
	candidates := make([]scored, 0, len(ads))
	for i := range ads {
		if aff.HasInteracted(ads[i].ID) {
			continue
		}
		s := aff.TagScore(ads[i].Tags) + r.ctrWeight*ctr.Of(ads[i].ID)
		candidates = append(candidates, scored{ad: ads[i], score: s})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	picked := make([]model.Ad, 0, topN)
	selected := make(map[int64]struct{}, topN)
	for _, c := range candidates {
		if len(picked) == topN || c.score <= 0 {
			break
		}
		picked = append(picked, c.ad)
		selected[c.ad.ID] = struct{}{}
	}

	short := topN - len(picked)
	if short <= 0 {
		return picked
	}

	ranked := rankByCTR(ads, ctr)
	var fresh, seen []model.Ad
	for i := range ranked {
		if _, ok := selected[ranked[i].ID]; ok {
			continue
		}
		if aff.HasInteracted(ranked[i].ID) {
			seen = append(seen, ranked[i])
		} else {
			fresh = append(fresh, ranked[i])
		}
	}

	fill := r.sample(fresh, short)
	picked = append(picked, fill...)
	if short -= len(fill); short > 0 {
		picked = append(picked, r.sample(seen, short)...)
	}
	return picked
}

// sample draws k ads uniformly without replacement using a partial shuffle.
func (r *Recommender) sample(ads []model.Ad, k int) []model.Ad {
	if k > len(ads) {
		k = len(ads)
	}
	if k <= 0 {
		return nil
	}
	pool := make([]model.Ad, len(ads))
	copy(pool, ads)

	r.mu.Lock()
	for i := 0; i < k; i++ {
		j := i + r.rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	r.mu.Unlock()
	return pool[:k]
}

// rankByCTR returns a copy of ads ordered by CTR descending; ties keep catalog order.
func rankByCTR(ads []model.Ad, ctr scoring.CTR) []model.Ad {
	out := make([]model.Ad, len(ads))
	copy(out, ads)
	sort.SliceStable(out, func(i, j int) bool { return ctr.Of(out[i].ID) > ctr.Of(out[j].ID) })
	return out
}
