package metrics

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGlobalRefreshInterval(t *testing.T) {
	Convey("Given the global manager", t, func() {
		original := RefreshInterval()
		Reset(func() { globalManager.refreshInterval = original })

		Convey("Then it should start at the default interval", func() {
			So(original, ShouldEqual, defaultRefreshInterval)
		})

		Convey("When the interval is configured", func() {
			SetRefreshInterval(250 * time.Millisecond)

			Convey("Then samplers should read the new value", func() {
				So(RefreshInterval(), ShouldEqual, 250*time.Millisecond)
			})

			Convey("And a non-positive value should be ignored", func() {
				SetRefreshInterval(0)
				So(RefreshInterval(), ShouldEqual, 250*time.Millisecond)
			})
		})
	})
}

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating a manager with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithMetricPrefix("prefix"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(5*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options should be applied", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "test_namespace")
				So(manager.subsystem, ShouldEqual, "test_subsystem")
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
				So(manager.RefreshInterval(), ShouldEqual, 5*time.Second)
			})

			Convey("And metric names should carry namespace, subsystem and prefix", func() {
				manager.popupsShown.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				found := false
				for _, f := range families {
					if f.GetName() == "test_namespace_test_subsystem_prefix_popups_shown_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When passing empty or invalid values", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithRefreshInterval(-time.Second),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults should be kept", func() {
				So(manager.namespace, ShouldEqual, "lingoquest")
				So(manager.subsystem, ShouldEqual, "achievements")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
				So(manager.refreshInterval, ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording detection cycles", func() {
			before := testutil.ToFloat64(globalManager.detectionCycles.WithLabelValues(OutcomeDetected))
			RecordDetectionCycle(OutcomeDetected, 12)
			RecordDetectionCycle(OutcomeDetected, 8)

			Convey("Then the outcome counter should advance", func() {
				after := testutil.ToFloat64(globalManager.detectionCycles.WithLabelValues(OutcomeDetected))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When recording detected achievements", func() {
			before := testutil.ToFloat64(globalManager.achievementsDetected)
			RecordAchievementsDetected(3)
			RecordAchievementsDetected(0)
			RecordAchievementsDetected(-1)

			Convey("Then only positive counts should be added", func() {
				So(testutil.ToFloat64(globalManager.achievementsDetected)-before, ShouldEqual, 3)
			})
		})

		Convey("When updating gauges", func() {
			UpdateKnownSetSize(7)
			UpdateUnseenCount(2)
			UpdateSchedulerState(1)
			UpdateQueueSize("pending", 4)
			UpdateQueueCapacity("pending", 64)

			Convey("Then they should hold the latest value", func() {
				So(testutil.ToFloat64(globalManager.knownSetSize), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.unseenCount), ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.schedulerState), ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.queueSize.WithLabelValues("pending")), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.queueCapacity.WithLabelValues("pending")), ShouldEqual, 64)
			})
		})

		Convey("When recording enrichment, queue and http metrics", func() {
			So(func() {
				RecordEnrichmentLatency(15)
				RecordEnrichmentFailure()
				RecordEnrichmentDropped()
				UpdateWorkerActiveCount(4)
				RecordPopupShown()
				RecordQueueEnqueue("jobs")
				RecordQueueDequeue("jobs")
				RecordQueueEnqueueError("jobs", "queue_full")
				RecordHTTPRequest("check", "POST", "202")
				RecordHTTPRequestDuration("check", "POST", "202", 1.5)
				RecordErrorByComponent("worker", "fetch_failed")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent recorders", t, func() {
		before := testutil.ToFloat64(globalManager.popupsShown)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					RecordPopupShown()
				}
			}()
		}
		wg.Wait()

		Convey("Then every increment should be counted", func() {
			So(testutil.ToFloat64(globalManager.popupsShown)-before, ShouldEqual, 1000)
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the custom registry", t, func() {
		RecordPopupShown()
		families, err := GetRegistry().Gather()

		Convey("Then it should expose lingoquest metrics only", func() {
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
			for _, f := range families {
				So(strings.HasPrefix(f.GetName(), "lingoquest_achievements_"), ShouldBeTrue)
			}
		})
	})
}
