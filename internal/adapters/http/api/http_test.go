package api_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/okian/adrec/internal/adapters/http/api"
	"github.com/okian/adrec/internal/domain/model"
	"github.com/okian/adrec/internal/domain/recommend"
	"github.com/okian/adrec/internal/domain/report"
	"github.com/okian/adrec/internal/domain/sink"
	"github.com/okian/adrec/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDependencies struct {
	ads        []model.Ad
	recErr     error
	gotUser    int64
	gotLimit   int
	outcome    sink.Outcome
	logErr     error
	logged     []model.Event
	health     sink.Health
	conversion report.ConversionReport
	gotTenant  *int64
	managed    []model.Ad
	adErr      error
}

func (m *mockDependencies) Recommend(_ context.Context, userID int64, limit int) (recommend.Recommendation, error) {
	m.gotUser, m.gotLimit = userID, limit
	if m.recErr != nil {
		return recommend.Recommendation{}, m.recErr
	}
	return recommend.Recommendation{Ads: m.ads, Path: recommend.PathColdStart}, nil
}

func (m *mockDependencies) LogEvent(_ context.Context, e model.Event) (sink.Outcome, error) {
	m.logged = append(m.logged, e)
	return m.outcome, m.logErr
}

func (m *mockDependencies) Health(context.Context) sink.Health { return m.health }

func (m *mockDependencies) Conversions(_ context.Context, tenantID *int64) (report.ConversionReport, error) {
	m.gotTenant = tenantID
	return m.conversion, nil
}

func (m *mockDependencies) DailyEvents(_ context.Context, tenantID *int64) (map[string]report.DailyCounts, error) {
	m.gotTenant = tenantID
	return map[string]report.DailyCounts{"2024-04-01": {model.KindClick: 2}}, nil
}

func (m *mockDependencies) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

// captureLogger keeps error-level lines for assertions.
type captureLogger struct {
	errors []string
}

func (c *captureLogger) Info(context.Context, string, ...logger.Field)  {}
func (c *captureLogger) Debug(context.Context, string, ...logger.Field) {}
func (c *captureLogger) Warn(context.Context, string, ...logger.Field)  {}
func (c *captureLogger) Fatal(context.Context, string, ...logger.Field) {}
func (c *captureLogger) Named(string) logger.Logger                     { return c }

func (c *captureLogger) Error(_ context.Context, msg string, fields ...logger.Field) {
	line := msg
	for _, f := range fields {
		line += fmt.Sprintf(" %s=%v", f.Key, f.Value)
	}
	c.errors = append(c.errors, line)
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestRecommendEndpoint(t *testing.T) {
	_ = logger.Init()

	Convey("Given an API server", t, func() {
		deps := &mockDependencies{ads: []model.Ad{{ID: 1, Name: "shoes", Tags: []string{"sports"}}}}
		router := api.NewServer(deps, api.WithRecommendationLimits(5, 10)).Router()

		Convey("When a valid user asks without a limit", func() {
			w := serve(router, http.MethodGet, "/recommend?user_id=42", "")

			Convey("Then the default limit is used and ads are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.gotUser, ShouldEqual, 42)
				So(deps.gotLimit, ShouldEqual, 5)
				body := decode(w)
				So(body["user_id"], ShouldEqual, 42)
				So(len(body["recommendations"].([]interface{})), ShouldEqual, 1)
			})
		})

		Convey("When a limit is given", func() {
			w := serve(router, http.MethodGet, "/recommend?user_id=1&limit=3", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.gotLimit, ShouldEqual, 3)
		})

		Convey("When the request is malformed", func() {
			cases := []string{
				"/recommend",
				"/recommend?user_id=abc",
				"/recommend?user_id=1&limit=0",
				"/recommend?user_id=1&limit=11",
				"/recommend?user_id=1&limit=x",
			}

			Convey("Then each is rejected with 400", func() {
				for _, target := range cases {
					So(serve(router, http.MethodGet, target, "").Code, ShouldEqual, http.StatusBadRequest)
				}
			})
		})

		Convey("When the catalog cannot be loaded", func() {
			deps.recErr = errors.New("db down")
			w := serve(router, http.MethodGet, "/recommend?user_id=1", "")

			Convey("Then a generic 500 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(w.Body.String(), ShouldNotContainSubstring, "db down")
			})
		})

		Convey("When the catalog fails behind a logging server", func() {
			deps.recErr = errors.New("db down")
			logs := &captureLogger{}
			logged := api.NewServer(deps, api.WithLogger(logs)).Router()
			w := serve(logged, http.MethodGet, "/recommend?user_id=9", "")

			Convey("Then the cause is logged but not returned", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(len(logs.errors), ShouldEqual, 1)
				So(logs.errors[0], ShouldContainSubstring, "api.recommend: internal error: db down")
				So(logs.errors[0], ShouldContainSubstring, "user_id=9")
			})
		})

		Convey("When the recommender returns no ads", func() {
			deps.ads = nil
			w := serve(router, http.MethodGet, "/recommend?user_id=1", "")

			Convey("Then recommendations is an empty list", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"recommendations":[]`)
			})
		})
	})
}

func TestLogEventEndpoint(t *testing.T) {
	_ = logger.Init()

	Convey("Given an API server", t, func() {
		deps := &mockDependencies{outcome: sink.Queued}
		router := api.NewServer(deps).Router()

		Convey("When a complete event is posted", func() {
			w := serve(router, http.MethodPost, "/log-event",
				`{"user_id":7,"ad_id":3,"event_type":"click","tenant_id":1,"timestamp":1700000000}`)

			Convey("Then it is accepted and echoed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["message"], ShouldEqual, "Event logged to queue successfully")
				event := body["event"].(map[string]interface{})
				So(event["ad_id"], ShouldEqual, 3)
				So(event["timestamp"], ShouldEqual, 1700000000)
				So(len(deps.logged), ShouldEqual, 1)
				So(*deps.logged[0].UserID, ShouldEqual, 7)
				So(deps.logged[0].Kind, ShouldEqual, model.KindClick)
			})
		})

		Convey("When the timestamp and user are omitted", func() {
			w := serve(router, http.MethodPost, "/log-event", `{"ad_id":3,"event_type":"impression","tenant_id":1}`)

			Convey("Then the event is anonymous and stamped with the current time", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.logged[0].Anonymous(), ShouldBeTrue)
				So(deps.logged[0].OccurredAt.IsZero(), ShouldBeFalse)
			})
		})

		Convey("When the buffer took the event", func() {
			deps.outcome = sink.BufferedFallback
			w := serve(router, http.MethodPost, "/log-event", `{"ad_id":3,"event_type":"click","tenant_id":1}`)

			Convey("Then the message names the fallback", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["message"], ShouldEqual, "Event logged to buffer (fallback) successfully")
			})
		})

		Convey("When no tier accepted the event", func() {
			deps.outcome = sink.Unavailable
			w := serve(router, http.MethodPost, "/log-event", `{"ad_id":3,"event_type":"click","tenant_id":1}`)

			Convey("Then 503 is returned with a detail", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				body := decode(w)
				So(body["detail"], ShouldNotBeEmpty)
				So(body["code"], ShouldEqual, "unavailable")
			})
		})

		Convey("When the event was lost", func() {
			deps.outcome = sink.Unavailable
			deps.logErr = fmt.Errorf("%w: %w", sink.ErrEventLost, errors.New("disk full"))
			w := serve(router, http.MethodPost, "/log-event", `{"ad_id":3,"event_type":"click","tenant_id":1}`)

			Convey("Then the 503 is marked as lost without leaking the cause", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(decode(w)["code"], ShouldEqual, "event_lost")
				So(w.Body.String(), ShouldNotContainSubstring, "disk full")
			})
		})

		Convey("When required fields are missing", func() {
			w := serve(router, http.MethodPost, "/log-event", `{"user_id":1}`)

			Convey("Then 422 lists every missing field", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(len(decode(w)["detail"].([]interface{})), ShouldEqual, 3)
				So(w.Body.String(), ShouldContainSubstring, "ad_id")
				So(w.Body.String(), ShouldContainSubstring, "event_type")
				So(w.Body.String(), ShouldContainSubstring, "tenant_id")
				So(deps.logged, ShouldBeEmpty)
			})
		})

		Convey("When event_type is blank", func() {
			w := serve(router, http.MethodPost, "/log-event", `{"ad_id":3,"event_type":"  ","tenant_id":1}`)
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
		})

		Convey("When a field has the wrong type", func() {
			w := serve(router, http.MethodPost, "/log-event", `{"ad_id":"three","event_type":"click","tenant_id":1}`)
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
		})

		Convey("When the body is not JSON", func() {
			w := serve(router, http.MethodPost, "/log-event", `{not json`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(deps.logged, ShouldBeEmpty)
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	_ = logger.Init()

	Convey("Given an API server", t, func() {
		deps := &mockDependencies{
			health:     sink.Health{Queue: true},
			conversion: report.ConversionReport{Impressions: 20, Clicks: 3, ConversionRate: "15.00%"},
		}
		router := api.NewServer(deps).Router()

		Convey("When checking health", func() {
			body := decode(serve(router, http.MethodGet, "/health", ""))

			Convey("Then each tier reports its status", func() {
				So(body["status"], ShouldEqual, "ok")
				So(body["kafka_status"], ShouldEqual, "connected")
				So(body["redis_status"], ShouldEqual, "disconnected")
			})
		})

		Convey("When scraping metrics", func() {
			_ = serve(router, http.MethodGet, "/health", "")
			w := serve(router, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "adrec_")
		})

		Convey("When reading stats", func() {
			w := serve(router, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["started"], ShouldEqual, true)
			So(body, ShouldContainKey, "apiUptimeSeconds")
		})

		Convey("When requesting conversions for a tenant", func() {
			w := serve(router, http.MethodGet, "/reports/conversions?tenant_id=4", "")

			Convey("Then the filter is passed through", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(*deps.gotTenant, ShouldEqual, 4)
				body := decode(w)
				So(body["conversion_rate"], ShouldEqual, "15.00%")
				So(body["impressions"], ShouldEqual, 20)
			})
		})

		Convey("When requesting daily events for all tenants", func() {
			w := serve(router, http.MethodGet, "/reports/events", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.gotTenant, ShouldBeNil)
			So(w.Body.String(), ShouldContainSubstring, `"2024-04-01"`)
		})

		Convey("When tenant_id is invalid", func() {
			w := serve(router, http.MethodGet, "/reports/events?tenant_id=x", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a route does not exist", func() {
			w := serve(router, http.MethodGet, "/unknown", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}
