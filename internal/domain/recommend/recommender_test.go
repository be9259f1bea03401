package recommend

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/okian/adrec/internal/domain/model"
	"github.com/okian/adrec/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeStore struct {
	ads     []model.Ad
	all     []model.Event
	byUser  map[int64][]model.Event
	adsErr  error
	allErr  error
	userErr error
	onRead  func()
}

func (f *fakeStore) ListAds(context.Context) ([]model.Ad, error) {
	if f.adsErr != nil {
		return nil, f.adsErr
	}
	return f.ads, nil
}

func (f *fakeStore) ListAllEvents(context.Context) ([]model.Event, error) {
	if f.onRead != nil {
		f.onRead()
	}
	if f.allErr != nil {
		return nil, f.allErr
	}
	return f.all, nil
}

func (f *fakeStore) ListEventsForUser(_ context.Context, userID int64) ([]model.Event, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.byUser[userID], nil
}

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func uid(v int64) *int64 { return &v }

func catalog() []model.Ad {
	return []model.Ad{
		{ID: 1, Name: "running shoes", Tags: []string{"sports"}},
		{ID: 2, Name: "tent", Tags: []string{"sports", "outdoor"}},
		{ID: 3, Name: "laptop", Tags: []string{"tech"}},
		{ID: 4, Name: "phone", Tags: []string{"tech"}},
		{ID: 5, Name: "novel", Tags: []string{"books"}},
		{ID: 6, Name: "plain"},
	}
}

func newTestRecommender(store Store) *Recommender {
	return New(store,
		WithRand(rand.New(rand.NewSource(1))),
		WithClock(func() time.Time { return now }),
	)
}

func ids(ads []model.Ad) []int64 {
	out := make([]int64, len(ads))
	for i := range ads {
		out[i] = ads[i].ID
	}
	return out
}

func TestRecommendPersonalized(t *testing.T) {
	if err := logger.Init(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	Convey("Given a user who clicked a sports ad", t, func() {
		store := &fakeStore{
			ads: catalog(),
			all: []model.Event{
				{AdID: 3, Kind: model.KindImpression},
				{AdID: 3, Kind: model.KindClick},
			},
			byUser: map[int64][]model.Event{
				42: {{AdID: 1, UserID: uid(42), Kind: model.KindClick, OccurredAt: now}},
			},
		}
		r := newTestRecommender(store)

		Convey("When asking for two ads", func() {
			rec, err := r.Recommend(ctx, 42, 2)
			So(err, ShouldBeNil)

			Convey("Then the sports ad ranks first and the clicked ad is excluded", func() {
				So(rec.Path, ShouldEqual, PathPersonalized)
				So(ids(rec.Ads), ShouldResemble, []int64{2, 3})
			})
		})

		Convey("When asking for more ads than score positively", func() {
			rec, err := r.Recommend(ctx, 42, 5)
			So(err, ShouldBeNil)

			Convey("Then the rest is filled without repeating or using the clicked ad", func() {
				got := ids(rec.Ads)
				So(len(got), ShouldEqual, 5)
				So(got[0], ShouldEqual, 2)
				So(got[1], ShouldEqual, 3)
				So(got, ShouldNotContain, int64(1))
				seen := map[int64]bool{}
				for _, id := range got {
					So(seen[id], ShouldBeFalse)
					seen[id] = true
				}
			})
		})

		Convey("When asking for the whole catalog", func() {
			rec, err := r.Recommend(ctx, 42, 10)
			So(err, ShouldBeNil)

			Convey("Then the interacted ad is used only as the last resort", func() {
				got := ids(rec.Ads)
				So(len(got), ShouldEqual, 6)
				So(got[5], ShouldEqual, 1)
			})
		})

		Convey("When topN is not positive", func() {
			rec, err := r.Recommend(ctx, 42, 0)
			So(err, ShouldBeNil)

			Convey("Then the default of five is used", func() {
				So(len(rec.Ads), ShouldEqual, 5)
			})
		})
	})
}

func TestRecommendColdStart(t *testing.T) {
	if err := logger.Init(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	Convey("Given a user without history", t, func() {
		store := &fakeStore{ads: catalog(), byUser: map[int64][]model.Event{}}
		r := newTestRecommender(store)

		rec, err := r.Recommend(ctx, 7, 3)
		So(err, ShouldBeNil)

		Convey("Then a cold-start sample of distinct catalog ads is returned", func() {
			So(rec.Path, ShouldEqual, PathColdStart)
			So(len(rec.Ads), ShouldEqual, 3)
			So(rec.Ads[0].ID, ShouldNotEqual, rec.Ads[1].ID)
			So(rec.Ads[1].ID, ShouldNotEqual, rec.Ads[2].ID)
			So(rec.Ads[0].ID, ShouldNotEqual, rec.Ads[2].ID)
		})
	})

	Convey("Given a catalog smaller than topN", t, func() {
		store := &fakeStore{ads: catalog()[:2]}
		rec, err := newTestRecommender(store).Recommend(ctx, 7, 10)
		So(err, ShouldBeNil)
		So(len(rec.Ads), ShouldEqual, 2)
	})

	Convey("Given an empty catalog", t, func() {
		rec, err := newTestRecommender(&fakeStore{}).Recommend(ctx, 7, 5)
		So(err, ShouldBeNil)
		So(rec.Ads, ShouldBeEmpty)
	})

	Convey("Given the same seed", t, func() {
		store := &fakeStore{ads: catalog()}
		a, _ := newTestRecommender(store).Recommend(ctx, 7, 3)
		b, _ := newTestRecommender(store).Recommend(ctx, 7, 3)

		Convey("Then the sample is reproducible", func() {
			So(ids(a.Ads), ShouldResemble, ids(b.Ads))
		})
	})
}

func TestRecommendFailures(t *testing.T) {
	if err := logger.Init(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	boom := errors.New("connection refused")

	Convey("Given the catalog cannot be loaded", t, func() {
		_, err := newTestRecommender(&fakeStore{adsErr: boom}).Recommend(ctx, 1, 5)

		Convey("Then scoring is unavailable", func() {
			So(errors.Is(err, ErrScoringUnavailable), ShouldBeTrue)
			So(errors.Is(err, boom), ShouldBeTrue)
		})
	})

	Convey("Given the user's events cannot be loaded", t, func() {
		store := &fakeStore{ads: catalog(), userErr: boom}
		rec, err := newTestRecommender(store).Recommend(ctx, 1, 4)

		Convey("Then a degraded cold-start result is returned", func() {
			So(err, ShouldBeNil)
			So(rec.Path, ShouldEqual, PathDegraded)
			So(len(rec.Ads), ShouldEqual, 4)
		})
	})

	Convey("Given the global events cannot be loaded", t, func() {
		store := &fakeStore{
			ads:    catalog(),
			allErr: boom,
			byUser: map[int64][]model.Event{1: {{AdID: 1, Kind: model.KindClick, OccurredAt: now}}},
		}
		rec, err := newTestRecommender(store).Recommend(ctx, 1, 2)

		Convey("Then the result degrades instead of failing", func() {
			So(err, ShouldBeNil)
			So(rec.Path, ShouldEqual, PathDegraded)
			So(len(rec.Ads), ShouldEqual, 2)
		})
	})

	Convey("Given the caller cancels during the store reads", t, func() {
		cctx, cancel := context.WithCancel(ctx)
		store := &fakeStore{ads: catalog(), onRead: cancel}
		_, err := newTestRecommender(store).Recommend(cctx, 1, 2)

		Convey("Then the context error is returned", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}
