package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "fightlog")
				So(manager.subsystem, ShouldEqual, "engine")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metric names should use them", func() {
				manager.encountersStarted.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_namespace_test_subsystem_encounters_started_total")
			})
		})

		Convey("When options carry empty values", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithNamespace(""), WithSubsystem(""), WithHistogramBuckets(nil), WithPrometheusRegistry(registry))

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "fightlog")
				So(manager.subsystem, ShouldEqual, "engine")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording engine metrics", func() {
			before := testutil.ToFloat64(globalManager.encountersFinished.WithLabelValues("Killed"))
			buffered := testutil.ToFloat64(globalManager.eventsBuffered)
			RecordEventBuffered()
			RecordEncounterStarted()
			RecordEncounterFinished("Killed")
			RecordEncounterDiscarded("not_adversary")
			RecordEventHandled("hit")
			RecordEventDropped("unresolved")
			UpdatePendingEvents(3)
			UpdateActiveEncounters(2)
			UpdateActiveRaids(1)
			RecordRaidFinished("Killed")
			RecordHandleLatency(50 * time.Microsecond)

			Convey("Then counters and gauges should reflect them", func() {
				So(testutil.ToFloat64(globalManager.encountersFinished.WithLabelValues("Killed")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.eventsPending), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.eventsBuffered), ShouldEqual, buffered+1)
				So(testutil.ToFloat64(globalManager.encountersActive), ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.raidsActive), ShouldEqual, 1)
			})
		})

		Convey("When recording queue and store metrics", func() {
			So(func() {
				UpdateQueueCapacity(100)
				UpdateQueueSize(10)
				UpdateQueueUtilization(0.1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError("queue_full")
				RecordRecordStored("memory")
				RecordStoreError("sqlite")
				RecordHTTPRequest("events", "POST", "202")
				RecordHTTPRequestDuration("events", "POST", "202", 1.5)
				RecordErrorByComponent("queue", "closed")
				UpdateSystemMemoryUsage(4096)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.25)
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 10)
			So(testutil.ToFloat64(globalManager.systemGoroutineCount), ShouldEqual, 12)
		})

		Convey("Then the registry should be exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent recorders", t, func() {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					RecordEventHandled("heal")
					RecordQueueEnqueue()
				}
			}()
		}
		wg.Wait()

		Convey("Then nothing should race or panic", func() {
			So(testutil.ToFloat64(globalManager.eventsHandled.WithLabelValues("heal")), ShouldBeGreaterThanOrEqualTo, 1000)
		})
	})
}
