package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			manager := NewManager()

			Convey("Then it owns a fresh registry", func() {
				So(manager, ShouldNotBeNil)
				So(manager.registry, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "walletmatch")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithCustomLabels(map[string]string{"run_id": "r-1"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options are applied", func() {
				So(manager.registry, ShouldEqual, registry)
				So(manager.namespace, ShouldEqual, "test_namespace")
				So(manager.subsystem, ShouldEqual, "test_subsystem")
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
				So(manager.constLabels["run_id"], ShouldEqual, "r-1")
			})
		})

		Convey("When empty option values are given", func() {
			manager := NewManager(WithNamespace(""), WithSubsystem(""), WithHistogramBuckets(nil), WithPrometheusRegistry(nil))

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "walletmatch")
				So(manager.subsystem, ShouldEqual, "inference")
				So(manager.histogramBuckets, ShouldResemble, prometheus.ExponentialBuckets(0.1, 4, 10))
				So(manager.registry, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given a freshly initialized global manager", t, func() {
		Init(WithCustomLabels(map[string]string{"run_id": "test"}))
		m := globalManager

		Convey("When recording inference metrics", func() {
			UpdateProfilesLoaded(12)
			UpdateAnchors(10)
			RecordPairScored(98.75)
			RecordPairScored(12)
			RecordPairsSkipped(3)
			RecordRowCompleted(4)
			UpdateInferenceDuration(1.5)

			Convey("Then the values are visible", func() {
				So(testutil.ToFloat64(m.profilesLoaded), ShouldEqual, 12)
				So(testutil.ToFloat64(m.anchors), ShouldEqual, 10)
				So(testutil.ToFloat64(m.pairsScored), ShouldEqual, 2)
				So(testutil.ToFloat64(m.pairsSkipped), ShouldEqual, 3)
				So(testutil.ToFloat64(m.rowsCompleted), ShouldEqual, 1)
				So(testutil.ToFloat64(m.inferenceDuration), ShouldEqual, 1.5)
			})
		})

		Convey("When recording row latencies in milliseconds", func() {
			RecordRowCompleted(4)
			RecordRowCompleted(900)

			Convey("Then they land in finite buckets", func() {
				families, err := m.registry.Gather()
				So(err, ShouldBeNil)

				var buckets map[float64]uint64
				for _, mf := range families {
					if mf.GetName() != "walletmatch_inference_row_latency_milliseconds" {
						continue
					}
					buckets = make(map[float64]uint64)
					for _, b := range mf.GetMetric()[0].GetHistogram().GetBucket() {
						buckets[b.GetUpperBound()] = b.GetCumulativeCount()
					}
				}
				bounds := prometheus.ExponentialBuckets(0.1, 4, 10)
				So(buckets, ShouldNotBeNil)
				So(buckets[bounds[2]], ShouldEqual, 0) // 1.6ms
				So(buckets[bounds[3]], ShouldEqual, 1) // 6.4ms
				So(buckets[bounds[7]], ShouldEqual, 2) // 1638.4ms
			})
		})

		Convey("When recording worker and queue metrics", func() {
			UpdateWorkerCount(4)
			RecordWorkerError()
			UpdateQueueCapacity(64)
			UpdateQueueSize(5)
			RecordQueueEnqueue()
			RecordQueueEnqueue()
			RecordQueueDequeue()

			Convey("Then the values are visible", func() {
				So(testutil.ToFloat64(m.workerCount), ShouldEqual, 4)
				So(testutil.ToFloat64(m.workerErrors), ShouldEqual, 1)
				So(testutil.ToFloat64(m.queueCapacity), ShouldEqual, 64)
				So(testutil.ToFloat64(m.queueSize), ShouldEqual, 5)
				So(testutil.ToFloat64(m.queueEnqueued), ShouldEqual, 2)
				So(testutil.ToFloat64(m.queueDequeued), ShouldEqual, 1)
			})
		})

		Convey("When recording table, output and error metrics", func() {
			UpdateScoreTableSize(7)
			RecordStoreInsertLatency(3)
			RecordOutputWritten(2048, 12)
			RecordErrorByComponent("dataset", "structural")

			Convey("Then the values are visible", func() {
				So(testutil.ToFloat64(m.scoreTableSize), ShouldEqual, 7)
				So(testutil.ToFloat64(m.outputBytes), ShouldEqual, 2048)
				So(testutil.ToFloat64(m.outputDurationMs), ShouldEqual, 12)
				So(testutil.ToFloat64(m.errorsByComponent.WithLabelValues("dataset", "structural")), ShouldEqual, 1)
			})
		})
	})
}

func TestWriteTextfile(t *testing.T) {
	Convey("Given recorded metrics", t, func() {
		Init(WithCustomLabels(map[string]string{"run_id": "abc"}))
		RecordPairScored(50)

		Convey("When writing them to a textfile", func() {
			path := filepath.Join(t.TempDir(), "walletmatch.prom")
			err := WriteTextfile(path)

			Convey("Then the file holds the exposition format with run labels", func() {
				So(err, ShouldBeNil)
				data, readErr := os.ReadFile(path)
				So(readErr, ShouldBeNil)
				text := string(data)
				So(text, ShouldContainSubstring, "walletmatch_inference_pairs_scored_total")
				So(text, ShouldContainSubstring, `run_id="abc"`)
			})
		})

		Convey("When the target directory does not exist", func() {
			err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "m.prom"))

			Convey("Then an export error is returned", func() {
				So(err, ShouldNotBeNil)
				So(strings.Contains(err.Error(), ErrExportFailed.Error()), ShouldBeTrue)
			})
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent recording", t, func() {
		Init()
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					RecordPairScored(float64(j))
				}
			}()
		}
		wg.Wait()

		Convey("Then no increment is lost", func() {
			So(testutil.ToFloat64(globalManager.pairsScored), ShouldEqual, 1000)
		})
	})
}
