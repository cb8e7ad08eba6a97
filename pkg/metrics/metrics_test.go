package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

// value reads the current value of a counter or gauge.
func value(c prometheus.Metric) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return -1
	}
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return m.Gauge.GetValue()
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "pitwall")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithRunBuckets([]float64{1, 10, 100}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options are applied", func() {
				So(manager.namespace, ShouldEqual, "test-namespace")
				So(manager.subsystem, ShouldEqual, "test-subsystem")
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
				So(manager.runBuckets, ShouldResemble, []float64{1.0, 10.0, 100.0})
				So(manager.customLabels["env"], ShouldEqual, "test")
			})
		})

		Convey("When empty values are passed", func() {
			manager := NewManager(
				WithNamespace(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "pitwall")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording provider traffic", func() {
			before := value(globalManager.providerRequests.WithLabelValues("openf1", "meetings", "ok"))
			RecordProviderRequest("openf1", "meetings", "ok")
			RecordProviderLatency("openf1", "meetings", 0.2)
			RecordProviderRetry("openf1", "rate_limit")

			Convey("Then the counter moves", func() {
				after := value(globalManager.providerRequests.WithLabelValues("openf1", "meetings", "ok"))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When recording cache lookups", func() {
			hits := value(globalManager.cacheLookups.WithLabelValues("hit"))
			RecordCacheHit()
			RecordCacheMiss()
			RecordCacheWriteError()

			Convey("Then hits are counted separately", func() {
				So(value(globalManager.cacheLookups.WithLabelValues("hit"))-hits, ShouldEqual, 1)
			})
		})

		Convey("When recording selection outcomes", func() {
			UpdateCandidateMAE("ridge", 1.25)
			UpdateTrainingRows("race", 120)
			UpdateStoredRuns(3)

			Convey("Then gauges hold the last value", func() {
				So(value(globalManager.candidateMAE.WithLabelValues("ridge")), ShouldEqual, 1.25)
				So(value(globalManager.trainingRows.WithLabelValues("race")), ShouldEqual, 120)
				So(value(globalManager.storedRuns), ShouldEqual, 3)
			})

			Convey("And the remaining helpers do not panic", func() {
				So(func() {
					RecordRoundProcessed("race", "included")
					RecordCandidateFailure("gbt_hist", "walk_forward")
					RecordModelSelected("ridge")
					RecordFitDuration("ridge", 0.01)
					RecordPrediction("race", "ok")
					RecordPredictionDuration(1.5)
					RecordHTTPRequest("/predictions", "POST", "200")
					RecordHTTPRequestDuration("/predictions", "POST", "200", 0.012)
					RecordErrorByComponent("dataset", "upstream")
					RecordJobEnqueued("accepted")
					UpdateQueueDepth(1)
					UpdateQueueCapacity(64)
					RecordJobProcessed("done")
					RecordJobWait(0.5)
					UpdateWorkersActive(2)
					RecordDuplicateSubmission()
				}, ShouldNotPanic)
			})
		})

		Convey("Then the custom registry is exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
