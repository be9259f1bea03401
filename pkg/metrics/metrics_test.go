package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithPrometheusRegistry(registry),
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
			)

			Convey("Then metrics are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.sinkOutcomes.WithLabelValues("queued").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var names []string
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_sink_outcomes_total")
			})
		})

		Convey("When two managers share a registry", func() {
			registry := prometheus.NewRegistry()
			_ = NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording sink outcomes", func() {
			before := testutil.ToFloat64(globalManager.sinkOutcomes.WithLabelValues("buffered_fallback"))
			RecordSinkOutcome("buffered_fallback")
			RecordSinkOutcome("buffered_fallback")

			Convey("Then the counter increases", func() {
				after := testutil.ToFloat64(globalManager.sinkOutcomes.WithLabelValues("buffered_fallback"))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When recording recommendations", func() {
			before := testutil.ToFloat64(globalManager.adsRecommended)
			RecordRecommendation("cold_start", 5)
			RecordRecommendationLatency("cold_start", 3)

			Convey("Then returned ads are summed", func() {
				So(testutil.ToFloat64(globalManager.adsRecommended)-before, ShouldEqual, 5)
			})
		})

		Convey("When updating dependency status", func() {
			UpdateDependencyStatus("redis", true)
			So(testutil.ToFloat64(globalManager.dependencyUp.WithLabelValues("redis")), ShouldEqual, 1)
			UpdateDependencyStatus("redis", false)
			So(testutil.ToFloat64(globalManager.dependencyUp.WithLabelValues("redis")), ShouldEqual, 0)
		})

		Convey("When recording the remaining families", func() {
			So(func() {
				RecordSinkLatency("queued", 1)
				RecordSinkStageFailure("queue")
				RecordPublishLatency("kafka", 2)
				RecordPublishError("kafka")
				RecordStoreQueryLatency("list_ads", 4)
				RecordStoreError("list_ads")
				RecordHTTPRequest("/recommend", "GET", "200")
				RecordHTTPRequestDuration("/recommend", "GET", "200", 12)
				UpdateQueueSize(1)
				UpdateQueueCapacity(10)
				UpdateQueueUtilization(0.1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(0)
				UpdateWorkerActiveCount(2)
				UpdateWorkerMessagesPerSecond(3)
				RecordWorkerProcessingLatency(1)
				RecordWorkerError()
				RecordEventPersisted()
				RecordErrorByComponent("sink", "queue")
				RecordErrorByType("server_error", "high")
				RecordErrorByEndpoint("/log-event", "POST", "server_error")
				RecordErrorLatency("http", "server_error", 5)
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(8)
				RecordSystemGCPauseTime(0.5)
			}, ShouldNotPanic)
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
