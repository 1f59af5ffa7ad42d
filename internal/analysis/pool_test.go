package analysis

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilomr/majorvocal/internal/detection"
	"github.com/nilomr/majorvocal/internal/errors"
	"github.com/nilomr/majorvocal/internal/observability/metrics"
	"github.com/nilomr/majorvocal/internal/observation"
	"github.com/nilomr/majorvocal/internal/testutil"
)

func poolTasks(n int) []Task {
	base := time.Date(2020, 4, 1, 4, 0, 0, 0, time.UTC)
	tasks := make([]Task, n)
	for i := range tasks {
		start := base.Add(time.Duration(i) * time.Minute)
		tasks[i] = Task{
			Path:      fmt.Sprintf("/data/EX/2020EX26/%s.WAV", start.Format(detection.TimestampLayout)),
			Site:      "EX",
			PNum:      "2020EX26",
			Stem:      start.Format(detection.TimestampLayout),
			StartTime: start,
		}
	}
	return tasks
}

// segmentClassifier returns two segments per call, one of them below 0.8.
// Later files finish first to scramble completion order.
func segmentClassifier(calls *atomic.Int32, n int) Classifier {
	return ClassifierFunc(func(ctx context.Context, req ClassifierRequest) ([]detection.Segment, error) {
		calls.Add(1)
		var minute int
		_, _ = fmt.Sscanf(filepath.Base(req.Path), "20200401_04%02d00.WAV", &minute)
		time.Sleep(time.Duration(n-minute) * time.Millisecond)
		return []detection.Segment{
			{ScientificName: "Parus major", StartTime: 0, EndTime: 3, Confidence: 0.9},
			{ScientificName: "Parus major", StartTime: 3, EndTime: 6, Confidence: 0.5},
		}, nil
	})
}

func TestPoolKeepsSubmissionOrder(t *testing.T) {
	t.Parallel()

	const n = 20
	var calls atomic.Int32
	tasks := poolTasks(n)
	pool := NewPool(PoolConfig{Workers: 4, MinConfidence: 0.8}, segmentClassifier(&calls, n), nil, nil)

	result, err := pool.Run(context.Background(), tasks)
	require.NoError(t, err)

	assert.Equal(t, int32(n), calls.Load())
	assert.Equal(t, n, result.Classified)
	assert.Empty(t, result.Failures)
	require.Len(t, result.Recordings, n)
	for i, rec := range result.Recordings {
		assert.Equal(t, tasks[i].Stem, rec.Timestamp)
		assert.Equal(t, "2020EX26", rec.PNum)
		require.Len(t, rec.Segments, 1, "low-confidence segment is dropped")
	}
}

func TestPoolRecordsFailures(t *testing.T) {
	t.Parallel()

	tasks := poolTasks(5)
	classifier := ClassifierFunc(func(ctx context.Context, req ClassifierRequest) ([]detection.Segment, error) {
		if req.Path == tasks[1].Path || req.Path == tasks[3].Path {
			return nil, errors.Newf("classifier crashed").Category(errors.CategoryCommandExecution).Build()
		}
		return nil, nil
	})

	registry := prometheus.NewRegistry()
	m, err := metrics.NewPipelineMetrics(registry)
	require.NoError(t, err)

	result, err := NewPool(PoolConfig{Workers: 2}, classifier, m, nil).Run(context.Background(), tasks)
	require.NoError(t, err)

	require.Len(t, result.Recordings, 3)
	assert.Equal(t, tasks[0].Stem, result.Recordings[0].Timestamp)
	assert.Equal(t, tasks[2].Stem, result.Recordings[1].Timestamp)
	assert.Equal(t, tasks[4].Stem, result.Recordings[2].Timestamp)
	assert.Empty(t, result.Recordings[0].Segments)

	require.Len(t, result.Failures, 2)
	assert.Equal(t, observation.Failure{Path: tasks[1].Path, PNum: "2020EX26", Error: "classifier crashed"}, result.Failures[0])
	assert.Equal(t, tasks[3].Path, result.Failures[1].Path)

	series, err := promtest.GatherAndCount(registry, "majorvocal_files_processed_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series, "one series per status")
	assert.InDelta(t, 0, gaugeValue(t, registry, "majorvocal_files_pending"), 0)
}

// gaugeValue reads an unlabelled gauge from registry.
func gaugeValue(t *testing.T, registry *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			require.Len(t, f.GetMetric(), 1)
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestPoolRecoversClassifierPanic(t *testing.T) {
	t.Parallel()

	tasks := poolTasks(3)
	classifier := ClassifierFunc(func(ctx context.Context, req ClassifierRequest) ([]detection.Segment, error) {
		if req.Path == tasks[1].Path {
			panic("index out of range")
		}
		return nil, nil
	})

	result, err := NewPool(PoolConfig{Workers: 2}, classifier, nil, nil).Run(context.Background(), tasks)
	require.NoError(t, err)
	assert.Len(t, result.Recordings, 2)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, tasks[1].Path, result.Failures[0].Path)
	assert.Contains(t, result.Failures[0].Error, "classifier panicked: index out of range")
}

func TestPoolResumesFromCache(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tasks := poolTasks(3)

	cached := detection.RawRecording{
		Timestamp: tasks[1].Stem,
		PNum:      tasks[1].PNum,
		Segments:  []detection.Segment{{ScientificName: "Parus major", EndTime: 3, Confidence: 0.99}},
	}
	require.NoError(t, observation.SaveRecording(CachePath(dir, tasks[1]), cached))

	var calls atomic.Int32
	cfg := PoolConfig{Workers: 2, JSONDir: dir, Resume: true}
	result, err := NewPool(cfg, segmentClassifier(&calls, 3), nil, nil).Run(context.Background(), tasks)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, result.Cached)
	assert.Equal(t, 2, result.Classified)
	assert.Equal(t, cached, result.Recordings[1])

	// Classified files are cached for the next run.
	for _, task := range []Task{tasks[0], tasks[2]} {
		rec, err := observation.LoadRecording(CachePath(dir, task))
		require.NoError(t, err)
		assert.Equal(t, task.Stem, rec.Timestamp)
		assert.Len(t, rec.Segments, 2)
	}

	again, err := NewPool(cfg, segmentClassifier(&calls, 3), nil, nil).Run(context.Background(), tasks)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "second run is served from the cache")
	assert.Equal(t, 3, again.Cached)
}

func TestPoolIgnoresCacheWithoutResume(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tasks := poolTasks(1)
	require.NoError(t, observation.SaveRecording(CachePath(dir, tasks[0]), detection.RawRecording{
		Timestamp: tasks[0].Stem,
		PNum:      tasks[0].PNum,
	}))

	var calls atomic.Int32
	result, err := NewPool(PoolConfig{JSONDir: dir}, segmentClassifier(&calls, 1), nil, nil).Run(context.Background(), tasks)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, result.Cached)
}

func TestPoolProbeRejectsInvalidAudio(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	touch(t, root, "EX/2020EX26/20200401_050000.WAV")
	tasks, err := Scan(root, []string{"2020EX26"}, []string{".wav"}, nil, nil)
	require.NoError(t, err)

	var calls atomic.Int32
	result, err := NewPool(PoolConfig{Probe: true}, segmentClassifier(&calls, 1), nil, nil).Run(context.Background(), tasks)
	require.NoError(t, err)
	assert.Equal(t, int32(0), calls.Load(), "empty file never reaches the classifier")
	require.Len(t, result.Failures, 1)
	assert.Empty(t, result.Recordings)
}

func TestPoolCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	classifier := ClassifierFunc(func(ctx context.Context, req ClassifierRequest) ([]detection.Segment, error) {
		if calls.Add(1) == 2 {
			cancel()
		}
		<-ctx.Done()
		return nil, ctx.Err()
	})

	err := testutil.Within(t, testutil.DefaultTestTimeout, func() error {
		_, err := NewPool(PoolConfig{Workers: 2}, classifier, nil, nil).Run(ctx, poolTasks(50))
		return err
	})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
	assert.Less(t, calls.Load(), int32(50))
}

func TestPoolRateLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	pool := NewPool(PoolConfig{Workers: 4, RateLimit: 20}, segmentClassifier(&calls, 0), nil, nil)

	start := time.Now()
	result, err := pool.Run(context.Background(), poolTasks(5))
	require.NoError(t, err)
	assert.Len(t, result.Recordings, 5)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond, "five starts at 20/s span at least four intervals")
}

func TestPoolEmpty(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	result, err := NewPool(PoolConfig{}, segmentClassifier(&calls, 0), nil, nil).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Recordings)
	assert.Empty(t, result.Failures)
}
