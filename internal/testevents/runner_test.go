package testevents

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/adrec/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeService mimics the ad service endpoints used by a run.
type fakeService struct {
	posted   atomic.Int64
	rejectAd atomic.Int64
	degraded atomic.Bool
	healthy  bool
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		if !f.healthy {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok", KafkaStatus: "connected", RedisStatus: "disconnected"})
	})
	mux.HandleFunc("/log-event", func(w http.ResponseWriter, r *http.Request) {
		var e Event
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.posted.Add(1)
		switch {
		case e.AdID == f.rejectAd.Load():
			w.WriteHeader(http.StatusUnprocessableEntity)
		case f.degraded.Load():
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			_ = json.NewEncoder(w).Encode(LogEventResponse{Message: "Event logged to buffer (fallback) successfully", Event: e})
		}
	})
	mux.HandleFunc("/recommend", func(w http.ResponseWriter, r *http.Request) {
		userID, _ := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
		_ = json.NewEncoder(w).Encode(RecommendResponse{
			UserID:          userID,
			Recommendations: []Ad{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}},
		})
	})
	return mux
}

func TestSubmitAndFetch(t *testing.T) {
	if err := logger.Init(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	Convey("Given a running service", t, func() {
		fake := &fakeService{healthy: true}
		fake.rejectAd.Store(-1)
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		config := &Config{BaseURL: srv.URL + "/", Workers: 4, Timeout: 5 * time.Second, Users: 5, Limit: 2, Recommendations: 6}
		events := []Event{
			{AdID: 1, EventType: kindImpression, TenantID: 1},
			{AdID: 2, EventType: kindImpression, TenantID: 1},
			{AdID: 3, EventType: kindClick, TenantID: 2},
		}

		Convey("When the health check runs", func() {
			So(checkServiceHealth(ctx, config), ShouldBeNil)
		})

		Convey("When events are accepted by the buffer tier", func() {
			stats := &Stats{}
			So(submitEvents(ctx, config, events, stats), ShouldBeNil)

			Convey("Then every event is counted as buffered", func() {
				So(fake.posted.Load(), ShouldEqual, 3)
				So(stats.EventsSubmitted, ShouldEqual, 3)
				So(stats.EventsBuffered, ShouldEqual, 3)
				So(stats.EventsQueued, ShouldEqual, 0)
			})
		})

		Convey("When the service is degraded and rejects one ad", func() {
			fake.degraded.Store(true)
			fake.rejectAd.Store(2)
			stats := &Stats{}
			So(submitEvents(ctx, config, events, stats), ShouldBeNil)

			Convey("Then outcomes are split by status code", func() {
				So(stats.EventsUnavailable, ShouldEqual, 2)
				So(stats.EventsRejected, ShouldEqual, 1)
				So(verifyResults(ctx, config, nil, stats), ShouldNotBeNil)
			})
		})

		Convey("When recommendations are fetched", func() {
			stats := &Stats{}
			responses, err := fetchRecommendations(ctx, config, newTestRand(), stats)
			So(err, ShouldBeNil)

			Convey("Then every request succeeds and verifies", func() {
				So(len(responses), ShouldEqual, 6)
				So(stats.RecommendationsFetched, ShouldEqual, 6)
				So(stats.AdsRecommended, ShouldEqual, 12)
				So(verifyResults(ctx, config, responses, stats), ShouldBeNil)
			})
		})
	})

	Convey("Given an unhealthy service", t, func() {
		fake := &fakeService{}
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		err := checkServiceHealth(ctx, &Config{BaseURL: srv.URL, Timeout: time.Second})
		So(err, ShouldNotBeNil)
	})
}

func TestSaveEventsToFile(t *testing.T) {
	if err := logger.Init(); err != nil {
		t.Fatal(err)
	}

	Convey("Given generated events", t, func() {
		path := filepath.Join(t.TempDir(), "out", "events.json")
		config := &Config{OutputFile: path}

		So(saveEventsToFile(context.Background(), config, "run", nil), ShouldNotBeNil)
		So(saveEventsToFile(context.Background(), config, "run", []Event{{AdID: 4, EventType: kindClick, TenantID: 1}}), ShouldBeNil)

		data, err := os.ReadFile(path)
		So(err, ShouldBeNil)
		var got []Event
		So(json.Unmarshal(data, &got), ShouldBeNil)
		So(len(got), ShouldEqual, 1)
		So(got[0].AdID, ShouldEqual, 4)
		So(got[0].UserID, ShouldBeNil)
	})
}
