// Package metrics provides pipeline metrics for observability
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains Prometheus metrics for the inference and
// processing stages. All methods are no-ops on a nil receiver, so callers
// need not check whether metrics are enabled.
type PipelineMetrics struct {
	registry *prometheus.Registry

	runInfo              *prometheus.GaugeVec
	filesProcessedTotal  *prometheus.CounterVec
	classifierDuration   prometheus.Histogram
	segmentsTotal        prometheus.Counter
	recordsTotal         *prometheus.CounterVec
	stageDurationSeconds *prometheus.HistogramVec
	filesPending         prometheus.Gauge
}

// NewPipelineMetrics creates and registers new pipeline metrics
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *PipelineMetrics) initMetrics() {
	m.runInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "majorvocal_run_info",
			Help: "Identifier of the current pipeline run, always 1",
		},
		[]string{"run_id"},
	)

	m.filesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "majorvocal_files_processed_total",
			Help: "Total number of recordings handled by the inference stage",
		},
		[]string{"status"}, // success, cached, error
	)

	m.classifierDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "majorvocal_classifier_duration_seconds",
			Help:    "Time taken by one classifier invocation",
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount12), // 100ms to ~200s
		},
	)

	m.segmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "majorvocal_segments_total",
			Help: "Total number of classifier segments kept after the confidence filter",
		},
	)

	m.recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "majorvocal_records_total",
			Help: "Total number of records seen by the processing stage",
		},
		[]string{"kind"}, // recording, positive, null
	)

	m.stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "majorvocal_stage_duration_seconds",
			Help:    "Time taken by each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12), // 10ms to ~40s
		},
		[]string{"stage"},
	)

	m.filesPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "majorvocal_files_pending",
			Help: "Recordings queued for classification and not yet finished",
		},
	)
}

// Describe implements the Collector interface
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.runInfo.Describe(ch)
	m.filesProcessedTotal.Describe(ch)
	m.classifierDuration.Describe(ch)
	m.segmentsTotal.Describe(ch)
	m.recordsTotal.Describe(ch)
	m.stageDurationSeconds.Describe(ch)
	m.filesPending.Describe(ch)
}

// Collect implements the Collector interface
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.runInfo.Collect(ch)
	m.filesProcessedTotal.Collect(ch)
	m.classifierDuration.Collect(ch)
	m.segmentsTotal.Collect(ch)
	m.recordsTotal.Collect(ch)
	m.stageDurationSeconds.Collect(ch)
	m.filesPending.Collect(ch)
}

// SetRunID publishes the run identifier.
func (m *PipelineMetrics) SetRunID(runID string) {
	if m == nil {
		return
	}
	m.runInfo.Reset()
	m.runInfo.WithLabelValues(runID).Set(1)
}

// RecordFile records the outcome of one recording.
func (m *PipelineMetrics) RecordFile(status string) {
	if m == nil {
		return
	}
	m.filesProcessedTotal.WithLabelValues(status).Inc()
}

// RecordClassifierDuration records the duration of one classifier run.
func (m *PipelineMetrics) RecordClassifierDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.classifierDuration.Observe(d.Seconds())
}

// AddSegments adds kept classifier segments.
func (m *PipelineMetrics) AddSegments(n int) {
	if m == nil {
		return
	}
	m.segmentsTotal.Add(float64(n))
}

// AddRecords adds records of the given kind.
func (m *PipelineMetrics) AddRecords(kind string, n int) {
	if m == nil {
		return
	}
	m.recordsTotal.WithLabelValues(kind).Add(float64(n))
}

// RecordStageDuration records the duration of a pipeline stage.
func (m *PipelineMetrics) RecordStageDuration(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDurationSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// SetPending sets the number of queued recordings.
func (m *PipelineMetrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.filesPending.Set(float64(n))
}
