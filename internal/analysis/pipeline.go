// Package analysis runs the two pipeline stages: inference, which classifies
// dawn recordings with an external classifier, and processing, which turns
// the classifier output into per-nest tables.
package analysis

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/nilomr/majorvocal/internal/aggregate"
	"github.com/nilomr/majorvocal/internal/breeding"
	"github.com/nilomr/majorvocal/internal/conf"
	"github.com/nilomr/majorvocal/internal/datastore"
	"github.com/nilomr/majorvocal/internal/detection"
	"github.com/nilomr/majorvocal/internal/errors"
	"github.com/nilomr/majorvocal/internal/logger"
	"github.com/nilomr/majorvocal/internal/observability/metrics"
	"github.com/nilomr/majorvocal/internal/observation"
	"github.com/nilomr/majorvocal/internal/suncalc"
)

// Pipeline holds the collaborators shared by both stages. Only Settings is
// required.
type Pipeline struct {
	Settings   *conf.Settings
	Classifier Classifier               // defaults to a CommandClassifier built from Settings
	Store      datastore.Interface      // open store, or nil to skip persistence
	Metrics    *metrics.PipelineMetrics // nil disables metrics
	Logger     logger.Logger            // defaults to the "analysis" module logger
	Progress   io.Writer                // progress bar output, nil for none
	Probe      bool                     // validate audio headers before classifying
}

// InferSummary reports the outcome of an inference run.
type InferSummary struct {
	RunID      string
	Eligible   int // nests with vocalisations in the breeding table
	Scanned    int // recordings found before the window filter
	Files      int // recordings submitted to the classifier
	Classified int
	Cached     int
	Failures   int
}

// ProcessSummary reports the outcome of a processing run.
type ProcessSummary struct {
	RunID      string
	Recordings int // raw recordings decoded
	Records    int // normalized detection records
	Positive   int // records with a detection
	Days       int // rows in daily_counts.csv
	Nests      int // nests in the lay-window subset
}

func (p *Pipeline) logger() logger.Logger {
	if p.Logger == nil {
		p.Logger = logger.Global().Module("analysis")
	}
	return p.Logger
}

// startRun opens a datastore run when a store is configured, and otherwise
// only allocates an id.
func (p *Pipeline) startRun(ctx context.Context, stage string) (*datastore.Run, error) {
	if p.Store == nil {
		return &datastore.Run{ID: uuid.NewString(), Stage: stage, Species: p.Settings.Species.Target, StartedAt: time.Now().UTC()}, nil
	}
	return p.Store.StartRun(ctx, stage, p.Settings.Species.Target)
}

func (p *Pipeline) finishRun(ctx context.Context, run *datastore.Run) error {
	if p.Store == nil {
		return nil
	}
	return p.Store.FinishRun(ctx, run)
}

// Infer scans the data directory, classifies every recording of an eligible
// nest inside the dawn window and writes detections.json and failures.json.
func (p *Pipeline) Infer(ctx context.Context) (*InferSummary, error) {
	s := p.Settings
	log := p.logger()

	if err := conf.EnsureLayout(s); err != nil {
		return nil, err
	}

	scanStart := time.Now()
	table, err := breeding.Load(s.BreedingFile())
	if err != nil {
		return nil, err
	}
	eligible := table.Eligible()

	loc, err := time.LoadLocation(s.Analysis.Window.Timezone)
	if err != nil {
		return nil, errors.New(err).
			Component("analysis").
			Category(errors.CategoryConfiguration).
			Context("operation", "load_timezone").
			Context("timezone", s.Analysis.Window.Timezone).
			Build()
	}

	scanned, err := Scan(s.Paths.Data, eligible, s.Analysis.Extensions, loc, log)
	if err != nil {
		return nil, err
	}

	var sc *suncalc.SunCalc
	if s.Analysis.Window.Mode == conf.WindowModeSunrise {
		sc = suncalc.NewSunCalc(s.Analysis.Latitude, s.Analysis.Longitude, loc)
	}
	tasks, err := FilterWindow(scanned, s.Analysis.Window, sc)
	if err != nil {
		return nil, err
	}
	tasks = Limit(tasks, s.Analysis.Limit)
	p.Metrics.RecordStageDuration(metrics.StageScan, time.Since(scanStart))

	run, err := p.startRun(ctx, "infer")
	if err != nil {
		return nil, err
	}
	p.Metrics.SetRunID(run.ID)
	log = log.With(logger.String("run_id", run.ID))

	log.Info("starting inference",
		logger.Int("eligible_nests", len(eligible)),
		logger.Int("scanned", len(scanned)),
		logger.Int("files", len(tasks)),
		logger.String("window_mode", s.Analysis.Window.Mode),
		logger.Int("workers", s.Analysis.Threads))

	classifier := p.Classifier
	if classifier == nil {
		cc, err := NewCommandClassifier(s.Analysis.Classifier)
		if err != nil {
			return nil, err
		}
		classifier = cc
	}

	bar := newProgressBar(ctx, p.Progress, "classifying", len(tasks))
	cfg := PoolConfig{
		Workers:       s.Analysis.Threads,
		Latitude:      s.Analysis.Latitude,
		Longitude:     s.Analysis.Longitude,
		MinConfidence: s.Analysis.MinConfidence,
		JSONDir:       s.PerFileJSONDir(),
		Resume:        s.Analysis.Resume,
		RateLimit:     s.Analysis.RateLimit,
		Probe:         p.Probe,
	}
	if bar != nil {
		cfg.Observer = bar
	}

	inferStart := time.Now()
	result, err := NewPool(cfg, classifier, p.Metrics, log).Run(ctx, tasks)
	bar.Done()
	p.Metrics.RecordStageDuration(metrics.StageInfer, time.Since(inferStart))
	if err != nil {
		return nil, err
	}

	writeStart := time.Now()
	if err := observation.SaveRecordings(observation.DetectionsFile(s), result.Recordings); err != nil {
		return nil, err
	}
	if err := observation.SaveFailures(observation.FailuresFile(s), result.Failures); err != nil {
		return nil, err
	}
	p.Metrics.RecordStageDuration(metrics.StageWrite, time.Since(writeStart))

	run.Files = len(tasks)
	run.Failures = len(result.Failures)
	run.Records = len(result.Recordings)
	if err := p.finishRun(ctx, run); err != nil {
		return nil, err
	}

	summary := &InferSummary{
		RunID:      run.ID,
		Eligible:   len(eligible),
		Scanned:    len(scanned),
		Files:      len(tasks),
		Classified: result.Classified,
		Cached:     result.Cached,
		Failures:   len(result.Failures),
	}
	log.Info("inference completed",
		logger.Int("classified", summary.Classified),
		logger.Int("cached", summary.Cached),
		logger.Int("failures", summary.Failures),
		logger.Duration("duration", time.Since(inferStart)))
	if summary.Failures > 0 {
		log.Warn("some recordings failed, see failures file",
			logger.Int("failures", summary.Failures),
			logger.String("path", observation.FailuresFile(s)))
	}
	return summary, nil
}

// Process reads detections.json, extracts and normalizes the target
// species, aggregates the records against the breeding table and writes the
// derived CSV tables. The records are also persisted when a store is set.
func (p *Pipeline) Process(ctx context.Context) (*ProcessSummary, error) {
	s := p.Settings
	log := p.logger()

	if err := conf.EnsureLayout(s); err != nil {
		return nil, err
	}

	decodeStart := time.Now()
	recordings, err := observation.LoadRecordings(observation.DetectionsFile(s))
	if err != nil {
		return nil, err
	}
	p.Metrics.RecordStageDuration(metrics.StageDecode, time.Since(decodeStart))
	p.Metrics.AddRecords(metrics.KindRecording, len(recordings))

	extractStart := time.Now()
	var opts []detection.Option
	bar := newProgressBar(ctx, p.Progress, "extracting", len(recordings))
	if bar != nil {
		opts = append(opts, detection.WithProgress(bar))
	}
	detections := detection.Extract(recordings, s.Species.Target, opts...)
	bar.Done()
	p.Metrics.RecordStageDuration(metrics.StageExtract, time.Since(extractStart))

	normalizeStart := time.Now()
	records, err := detection.Normalize(detections)
	if err != nil {
		return nil, err
	}
	p.Metrics.RecordStageDuration(metrics.StageNormalize, time.Since(normalizeStart))

	positive := 0
	for i := range records {
		positive += records[i].Count()
	}
	p.Metrics.AddRecords(metrics.KindPositive, positive)
	p.Metrics.AddRecords(metrics.KindNull, len(records)-positive)

	if err := ctx.Err(); err != nil {
		return nil, cancelledError(err, "process")
	}

	aggregateStart := time.Now()
	table, err := breeding.Load(s.BreedingFile())
	if err != nil {
		return nil, err
	}
	result := aggregate.Run(records, table, s.Breeding.Window)
	p.Metrics.RecordStageDuration(metrics.StageAggregate, time.Since(aggregateStart))

	writeStart := time.Now()
	if err := observation.SaveTables(s, records, table, result); err != nil {
		return nil, err
	}
	p.Metrics.RecordStageDuration(metrics.StageWrite, time.Since(writeStart))

	run, err := p.startRun(ctx, "process")
	if err != nil {
		return nil, err
	}
	p.Metrics.SetRunID(run.ID)
	log = log.With(logger.String("run_id", run.ID))

	if p.Store != nil {
		persistStart := time.Now()
		if err := p.Store.SaveDetections(ctx, run.ID, records); err != nil {
			return nil, err
		}
		if err := p.Store.SaveDailyCounts(ctx, run.ID, result.Days); err != nil {
			return nil, err
		}
		p.Metrics.RecordStageDuration(metrics.StagePersist, time.Since(persistStart))
	}

	run.Files = len(recordings)
	run.Records = len(records)
	if err := p.finishRun(ctx, run); err != nil {
		return nil, err
	}

	summary := &ProcessSummary{
		RunID:      run.ID,
		Recordings: len(recordings),
		Records:    len(records),
		Positive:   positive,
		Days:       len(result.Days),
		Nests:      len(result.LayWindow),
	}
	log.Info("processing completed",
		logger.Int("recordings", summary.Recordings),
		logger.Int("records", summary.Records),
		logger.Int("positive", summary.Positive),
		logger.Int("days", summary.Days),
		logger.Int("lay_window_nests", summary.Nests),
		logger.Duration("duration", time.Since(decodeStart)))
	return summary, nil
}

func cancelledError(err error, operation string) error {
	return errors.New(fmt.Errorf("%s cancelled: %w", operation, err)).
		Component("analysis").
		Category(errors.CategoryCancellation).
		Priority(errors.PriorityLow).
		Context("operation", operation).
		Build()
}
