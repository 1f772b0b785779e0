// Package metrics provides Prometheus metrics for the wallet matching run.
//
// The tool is a batch job, so nothing is served over HTTP: the registry is
// written once at the end of a run in the node-exporter textfile format.
package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every metric of a run.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         *prometheus.Registry

	// Dataset
	profilesLoaded prometheus.Gauge
	anchors        prometheus.Gauge

	// Inference
	pairsScored       prometheus.Counter
	pairsSkipped      prometheus.Counter
	pairScore         prometheus.Histogram
	rowsCompleted     prometheus.Counter
	rowLatency        prometheus.Histogram
	inferenceDuration prometheus.Gauge

	// Worker pool and row queue
	workerCount   prometheus.Gauge
	workerErrors  prometheus.Counter
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueEnqueued prometheus.Counter
	queueDequeued prometheus.Counter

	// Score table
	scoreTableSize     prometheus.Gauge
	storeInsertLatency prometheus.Histogram

	// Output artifact
	outputBytes      prometheus.Gauge
	outputDurationMs prometheus.Gauge

	errorsByComponent *prometheus.CounterVec
}

// rowLatencyBuckets spans 0.1ms to about 26s, in milliseconds.
var rowLatencyBuckets = prometheus.ExponentialBuckets(0.1, 4, 10) //nolint:gochecknoglobals // bucket layout shared by every manager

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager()
}

// Init replaces the global manager, typically to attach run labels.
func Init(opts ...Option) {
	globalManager = NewManager(opts...)
}

// NewManager creates a manager on its own registry unless one is supplied.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "walletmatch",
		subsystem:        "inference",
		histogramBuckets: rowLatencyBuckets,
		constLabels:      map[string]string{},
	}

	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     buckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.profilesLoaded = auto.NewGauge(m.gaugeOpts("profiles_loaded", "Number of distinct profiles in the input document"))
	m.anchors = auto.NewGauge(m.gaugeOpts("anchors", "Number of profiles used as the outer side of the enumeration"))

	m.pairsScored = auto.NewCounter(m.counterOpts("pairs_scored_total", "Pairs scored by the matcher"))
	m.pairsSkipped = auto.NewCounter(m.counterOpts("pairs_skipped_total", "Pairs skipped because the pair key or its reverse was already scored"))
	m.pairScore = auto.NewHistogram(m.histogramOpts("pair_score", "Distribution of matching scores",
		prometheus.LinearBuckets(10, 10, 10)))
	m.rowsCompleted = auto.NewCounter(m.counterOpts("rows_completed_total", "Anchor rows fully scored"))
	m.rowLatency = auto.NewHistogram(m.histogramOpts("row_latency_milliseconds", "Time to score one anchor row", m.histogramBuckets))
	m.inferenceDuration = auto.NewGauge(m.gaugeOpts("inference_duration_seconds", "Wall time of the pairwise enumeration"))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Row workers in use"))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Rows that failed in a worker"))
	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Row jobs waiting in the queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Capacity of the row queue"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Row jobs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Row jobs handed to workers"))

	m.scoreTableSize = auto.NewGauge(m.gaugeOpts("score_table_size", "Pairs held in the ranked score table"))
	m.storeInsertLatency = auto.NewHistogram(m.histogramOpts("store_insert_latency_microseconds", "Score table insert latency",
		prometheus.ExponentialBuckets(1, 4, 8)))

	m.outputBytes = auto.NewGauge(m.gaugeOpts("output_bytes", "Size of the written score file"))
	m.outputDurationMs = auto.NewGauge(m.gaugeOpts("output_write_milliseconds", "Time to write the score file"))

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_total", "Errors by component and type"),
		[]string{"component", "error_type"})
}

// UpdateProfilesLoaded sets the number of loaded profiles.
func UpdateProfilesLoaded(n int) { globalManager.profilesLoaded.Set(float64(n)) }

// UpdateAnchors sets the number of anchors.
func UpdateAnchors(n int) { globalManager.anchors.Set(float64(n)) }

// RecordPairScored counts a scored pair and observes its score.
func RecordPairScored(score float64) {
	globalManager.pairsScored.Inc()
	globalManager.pairScore.Observe(score)
}

// RecordPairsSkipped counts pairs skipped by the symmetric dedup.
func RecordPairsSkipped(n int) { globalManager.pairsSkipped.Add(float64(n)) }

// RecordRowCompleted counts a finished row and its latency in milliseconds.
func RecordRowCompleted(latencyMs float64) {
	globalManager.rowsCompleted.Inc()
	globalManager.rowLatency.Observe(latencyMs)
}

// UpdateInferenceDuration sets the enumeration wall time.
func UpdateInferenceDuration(seconds float64) { globalManager.inferenceDuration.Set(seconds) }

// UpdateWorkerCount sets the number of row workers.
func UpdateWorkerCount(n int) { globalManager.workerCount.Set(float64(n)) }

// RecordWorkerError counts a failed row.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// UpdateQueueSize sets the number of waiting row jobs.
func UpdateQueueSize(n int) { globalManager.queueSize.Set(float64(n)) }

// UpdateQueueCapacity sets the row queue capacity.
func UpdateQueueCapacity(n int) { globalManager.queueCapacity.Set(float64(n)) }

// RecordQueueEnqueue counts an enqueued row job.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue counts a dequeued row job.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// UpdateScoreTableSize sets the score table size.
func UpdateScoreTableSize(n int) { globalManager.scoreTableSize.Set(float64(n)) }

// RecordStoreInsertLatency observes one score table insert in microseconds.
func RecordStoreInsertLatency(us float64) { globalManager.storeInsertLatency.Observe(us) }

// RecordOutputWritten records the artifact size and write time.
func RecordOutputWritten(bytes int, durationMs float64) {
	globalManager.outputBytes.Set(float64(bytes))
	globalManager.outputDurationMs.Set(durationMs)
}

// RecordErrorByComponent counts an error by component and type.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// WriteTextfile writes every metric of the global registry to path in the
// text exposition format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, globalManager.registry); err != nil {
		return errors.Wrapf(ErrExportFailed, "%s: %v", path, err)
	}
	return nil
}
