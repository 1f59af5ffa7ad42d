package analysis

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nilomr/majorvocal/internal/detection"
	"github.com/nilomr/majorvocal/internal/errors"
	"github.com/nilomr/majorvocal/internal/logger"
	"github.com/nilomr/majorvocal/internal/myaudio"
	"github.com/nilomr/majorvocal/internal/observability/metrics"
	"github.com/nilomr/majorvocal/internal/observation"
)

// PoolConfig configures a Pool.
type PoolConfig struct {
	Workers       int           // concurrent classifier runs, at least 1
	Latitude      float64       // passed to the classifier
	Longitude     float64       // passed to the classifier
	MinConfidence float64       // segments below this are dropped
	JSONDir       string        // per-file JSON cache, <JSONDir>/<pnum>/<stem>.json
	Resume        bool          // reuse cached per-file JSON
	RateLimit     float64       // classifier starts per second, 0 for no limit
	Probe         bool          // validate audio headers before classifying
	Observer      detection.Observer
}

// PoolResult is the outcome of a pool run. Recordings and Failures keep the
// order in which tasks were submitted.
type PoolResult struct {
	Recordings []detection.RawRecording
	Failures   []observation.Failure
	Classified int // recordings produced by the classifier in this run
	Cached     int // recordings loaded from the per-file cache
}

// Pool classifies tasks with a fixed number of workers fed from a bounded
// channel.
type Pool struct {
	cfg        PoolConfig
	classifier Classifier
	limiter    *rate.Limiter
	metrics    *metrics.PipelineMetrics
	log        logger.Logger
}

// NewPool returns a pool running classifier. m may be nil.
func NewPool(cfg PoolConfig, classifier Classifier, m *metrics.PipelineMetrics, log logger.Logger) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	p := &Pool{cfg: cfg, classifier: classifier, metrics: m, log: log}
	if cfg.RateLimit > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return p
}

type indexedTask struct {
	index int
	task  Task
}

type taskOutcome struct {
	index     int
	recording detection.RawRecording
	cached    bool
	err       error
}

// Run classifies tasks. A failing task is recorded in PoolResult.Failures and
// does not stop the others. Run returns an error only when ctx is cancelled,
// in which case the partial result is discarded.
func (p *Pool) Run(ctx context.Context, tasks []Task) (*PoolResult, error) {
	g, gctx := errgroup.WithContext(ctx)
	taskCh := make(chan indexedTask, 2*p.cfg.Workers)
	results := make(chan taskOutcome, 2*p.cfg.Workers)

	g.Go(func() error {
		defer close(taskCh)
		for i, t := range tasks {
			if p.limiter != nil {
				if err := p.limiter.Wait(gctx); err != nil {
					return err
				}
			}
			select {
			case taskCh <- indexedTask{index: i, task: t}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for range p.cfg.Workers {
		g.Go(func() error {
			for it := range taskCh {
				rec, cached, err := p.safeProcess(gctx, it.task)
				select {
				case results <- taskOutcome{index: it.index, recording: rec, cached: cached, err: err}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- g.Wait()
		close(results)
	}()

	outcomes := make([]*taskOutcome, len(tasks))
	done := 0
	p.metrics.SetPending(len(tasks))
	for out := range results {
		outcomes[out.index] = &out
		done++
		p.metrics.SetPending(len(tasks) - done)
		if p.cfg.Observer != nil {
			p.cfg.Observer.Increment()
		}
	}

	if err := <-waitErr; err != nil {
		return nil, errors.New(err).
			Component("analysis").
			Category(errors.CategoryCancellation).
			Priority(errors.PriorityLow).
			Context("operation", "classify_pool").
			Context("completed", done).
			Context("total", len(tasks)).
			Build()
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.New(err).
			Component("analysis").
			Category(errors.CategoryCancellation).
			Priority(errors.PriorityLow).
			Context("operation", "classify_pool").
			Build()
	}

	return p.collect(tasks, outcomes), nil
}

// collect assembles outcomes in submission order.
func (p *Pool) collect(tasks []Task, outcomes []*taskOutcome) *PoolResult {
	res := &PoolResult{Recordings: make([]detection.RawRecording, 0, len(tasks))}
	for i, out := range outcomes {
		switch {
		case out == nil:
			res.Failures = append(res.Failures, observation.Failure{
				Path:  tasks[i].Path,
				PNum:  tasks[i].PNum,
				Error: "not processed",
			})
		case out.err != nil:
			p.metrics.RecordFile(metrics.StatusError)
			p.log.Warn("recording failed",
				logger.String("path", tasks[i].Path),
				logger.String("pnum", tasks[i].PNum),
				logger.Error(out.err))
			res.Failures = append(res.Failures, observation.Failure{
				Path:  tasks[i].Path,
				PNum:  tasks[i].PNum,
				Error: out.err.Error(),
			})
		default:
			if out.cached {
				p.metrics.RecordFile(metrics.StatusCached)
				res.Cached++
			} else {
				p.metrics.RecordFile(metrics.StatusSuccess)
				res.Classified++
			}
			res.Recordings = append(res.Recordings, out.recording)
		}
	}
	return res
}

// CachePath returns the per-file JSON path of t under dir.
func CachePath(dir string, t Task) string {
	return filepath.Join(dir, t.PNum, t.Stem+".json")
}

// safeProcess runs process and turns a panic into a task failure.
func (p *Pool) safeProcess(ctx context.Context, t Task) (rec detection.RawRecording, cached bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("classifier panicked: %v", r).
				Component("analysis").
				Category(errors.CategoryWorker).
				Context("path", t.Path).
				Build()
		}
	}()
	return p.process(ctx, t)
}

// process classifies one task, or loads it from the per-file cache.
func (p *Pool) process(ctx context.Context, t Task) (detection.RawRecording, bool, error) {
	cachePath := CachePath(p.cfg.JSONDir, t)

	if p.cfg.Resume && p.cfg.JSONDir != "" {
		rec, err := observation.LoadRecording(cachePath)
		switch {
		case err == nil && rec.Timestamp == t.Stem && rec.PNum == t.PNum:
			p.log.Debug("loaded cached recording", logger.String("path", cachePath))
			return rec, true, nil
		case err == nil:
			p.log.Warn("cached recording does not match its file, reclassifying",
				logger.String("path", cachePath),
				logger.String("cached_timestamp", rec.Timestamp),
				logger.String("cached_pnum", rec.PNum))
		case !errors.Is(err, fs.ErrNotExist):
			p.log.Warn("ignoring unreadable cached recording",
				logger.String("path", cachePath),
				logger.Error(err))
		}
	}

	if p.cfg.Probe {
		if _, err := myaudio.ProbeFile(t.Path); err != nil {
			return detection.RawRecording{}, false, err
		}
	}

	req := ClassifierRequest{
		Path:          t.Path,
		Latitude:      p.cfg.Latitude,
		Longitude:     p.cfg.Longitude,
		Date:          t.StartTime.Format(time.DateOnly),
		MinConfidence: p.cfg.MinConfidence,
	}
	_, req.Week = t.StartTime.ISOWeek()

	start := time.Now()
	segments, err := p.classifier.Classify(ctx, req)
	p.metrics.RecordClassifierDuration(time.Since(start))
	if err != nil {
		return detection.RawRecording{}, false, err
	}

	segments = filterConfidence(segments, p.cfg.MinConfidence)
	p.metrics.AddSegments(len(segments))
	rec := detection.RawRecording{Timestamp: t.Stem, PNum: t.PNum, Segments: segments}

	if p.cfg.JSONDir != "" {
		if err := observation.SaveRecording(cachePath, rec); err != nil {
			return detection.RawRecording{}, false, fmt.Errorf("failed to save per-file result: %w", err)
		}
	}

	p.log.Debug("classified recording",
		logger.String("path", t.Path),
		logger.Int("segments", len(segments)),
		logger.Duration("duration", time.Since(start)))
	return rec, false, nil
}
