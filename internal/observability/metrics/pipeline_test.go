package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFile(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewPipelineMetrics(registry)
	require.NoError(t, err)

	m.RecordFile(StatusSuccess)
	m.RecordFile(StatusSuccess)
	m.RecordFile(StatusCached)
	m.RecordFile(StatusError)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.filesProcessedTotal.WithLabelValues(StatusSuccess)), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.filesProcessedTotal.WithLabelValues(StatusCached)), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.filesProcessedTotal.WithLabelValues(StatusError)), 1e-9)
}

func TestCountersAndGauges(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewPipelineMetrics(registry)
	require.NoError(t, err)

	m.AddSegments(3)
	m.AddSegments(4)
	m.AddRecords(KindPositive, 5)
	m.AddRecords(KindNull, 2)
	m.SetPending(9)
	m.SetRunID("run-a")
	m.SetRunID("run-b")

	assert.InDelta(t, 7.0, testutil.ToFloat64(m.segmentsTotal), 1e-9)
	assert.InDelta(t, 5.0, testutil.ToFloat64(m.recordsTotal.WithLabelValues(KindPositive)), 1e-9)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.recordsTotal.WithLabelValues(KindNull)), 1e-9)
	assert.InDelta(t, 9.0, testutil.ToFloat64(m.filesPending), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(m.runInfo), "only the latest run id is published")
}

func TestHistograms(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewPipelineMetrics(registry)
	require.NoError(t, err)

	m.RecordClassifierDuration(1500 * time.Millisecond)
	m.RecordStageDuration(StageExtract, 20*time.Millisecond)
	m.RecordStageDuration(StageExtract, 40*time.Millisecond)

	families, err := registry.Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}

	classifier := byName["majorvocal_classifier_duration_seconds"]
	require.NotNil(t, classifier)
	h := classifier.GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(1), h.GetSampleCount())
	assert.InDelta(t, 1.5, h.GetSampleSum(), 1e-9)

	stage := byName["majorvocal_stage_duration_seconds"]
	require.NotNil(t, stage)
	require.Len(t, stage.GetMetric(), 1)
	assert.Equal(t, StageExtract, stage.GetMetric()[0].GetLabel()[0].GetValue())
	assert.Equal(t, uint64(2), stage.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestNilReceiverIsNoop(t *testing.T) {
	t.Parallel()

	var m *PipelineMetrics
	assert.NotPanics(t, func() {
		m.SetRunID("x")
		m.RecordFile(StatusSuccess)
		m.RecordClassifierDuration(time.Second)
		m.AddSegments(1)
		m.AddRecords(KindNull, 1)
		m.RecordStageDuration(StageWrite, time.Second)
		m.SetPending(1)
	})
}

func TestDuplicateRegistration(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewPipelineMetrics(registry)
	require.NoError(t, err)
	_, err = NewPipelineMetrics(registry)
	assert.Error(t, err)
}

func TestExposition(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewPipelineMetrics(registry)
	require.NoError(t, err)
	m.AddSegments(2)

	expected := `
# HELP majorvocal_segments_total Total number of classifier segments kept after the confidence filter
# TYPE majorvocal_segments_total counter
majorvocal_segments_total 2
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "majorvocal_segments_total"))
}
