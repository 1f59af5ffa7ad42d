package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/nilomr/majorvocal/internal/conf"
	"github.com/nilomr/majorvocal/internal/detection"
	"github.com/nilomr/majorvocal/internal/errors"
	"github.com/nilomr/majorvocal/internal/logger"
	"github.com/nilomr/majorvocal/internal/suncalc"
)

// Task is one recording queued for classification.
type Task struct {
	Path      string    // absolute or project-relative audio path
	Site      string    // first directory level under the data root
	PNum      string    // nest box folder name
	Stem      string    // file name without extension, YYYYMMDD_HHMMSS
	StartTime time.Time // parsed stem, in the recorder's zone
}

// Clock returns the HHMMSS part of the stem.
func (t Task) Clock() string {
	_, clock, _ := strings.Cut(t.Stem, "_")
	return clock
}

// Date returns the YYYYMMDD part of the stem.
func (t Task) Date() string {
	date, _, _ := strings.Cut(t.Stem, "_")
	return date
}

// Scan lists the recordings of eligible nests under dataDir, laid out as
// <site>/<pnum>/<stem><ext>. Folders whose name is not in eligible are
// ignored. Only files with one of extensions (lower case, with the dot) and a
// stem that parses as a recording timestamp are returned. The result is
// ordered by site, pnum and file name.
func Scan(dataDir string, eligible, extensions []string, loc *time.Location, log logger.Logger) ([]Task, error) {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.NewDiscardLogger()
	}

	sites, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, scanError(fmt.Errorf("failed to read data directory: %w", err), dataDir)
	}

	var tasks []Task
	for _, site := range sites {
		if !site.IsDir() {
			continue
		}
		siteDir := filepath.Join(dataDir, site.Name())
		nests, err := os.ReadDir(siteDir)
		if err != nil {
			return nil, scanError(fmt.Errorf("failed to read site directory: %w", err), siteDir)
		}

		for _, nest := range nests {
			if !nest.IsDir() || !slices.Contains(eligible, nest.Name()) {
				continue
			}
			nestTasks, err := scanNest(filepath.Join(siteDir, nest.Name()), site.Name(), nest.Name(), extensions, loc, log)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, nestTasks...)
		}
	}

	log.Debug("scanned recordings",
		logger.String("data_dir", dataDir),
		logger.Int("eligible_nests", len(eligible)),
		logger.Int("files", len(tasks)))
	return tasks, nil
}

func scanNest(dir, site, pnum string, extensions []string, loc *time.Location, log logger.Logger) ([]Task, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, scanError(fmt.Errorf("failed to read nest directory: %w", err), dir)
	}

	var tasks []Task
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if !slices.Contains(extensions, strings.ToLower(ext)) {
			continue
		}
		stem := strings.TrimSuffix(name, ext)
		start, err := time.ParseInLocation(detection.TimestampLayout, stem, loc)
		if err != nil {
			log.Debug("skipping file with unexpected name",
				logger.String("path", filepath.Join(dir, name)),
				logger.Error(err))
			continue
		}
		tasks = append(tasks, Task{
			Path:      filepath.Join(dir, name),
			Site:      site,
			PNum:      pnum,
			Stem:      stem,
			StartTime: start,
		})
	}
	return tasks, nil
}

// FilterWindow keeps the tasks inside the dawn window described by w.
// In fixed mode a task is kept when Start < HHMMSS < End, compared as
// strings. In sunrise mode it is kept when its start lies within
// [sunrise-Before, sunrise+After] at the location of sc.
func FilterWindow(tasks []Task, w conf.WindowSettings, sc *suncalc.SunCalc) ([]Task, error) {
	kept := make([]Task, 0, len(tasks))
	switch w.Mode {
	case conf.WindowModeFixed:
		for _, t := range tasks {
			clock := t.Clock()
			if w.Start < clock && clock < w.End {
				kept = append(kept, t)
			}
		}
	case conf.WindowModeSunrise:
		if sc == nil {
			return nil, errors.Newf("sunrise window requires a sun calculator").
				Component("analysis").
				Category(errors.CategoryConfiguration).
				Context("operation", "filter_window").
				Build()
		}
		for _, t := range tasks {
			ok, err := sc.InDawnWindow(t.StartTime, w.Before, w.After)
			if err != nil {
				return nil, errors.New(err).
					Component("analysis").
					Category(errors.CategoryProcessing).
					Context("operation", "filter_window").
					Context("stem", t.Stem).
					Build()
			}
			if ok {
				kept = append(kept, t)
			}
		}
	default:
		return nil, errors.Newf("unknown window mode %q", w.Mode).
			Component("analysis").
			Category(errors.CategoryConfiguration).
			Context("operation", "filter_window").
			Build()
	}
	return kept, nil
}

// Limit caps tasks at n. A non-positive n keeps everything.
func Limit(tasks []Task, n int) []Task {
	if n <= 0 || n >= len(tasks) {
		return tasks
	}
	return tasks[:n]
}

func scanError(err error, path string) error {
	return errors.New(err).
		Component("analysis").
		Category(errors.CategoryFileIO).
		Context("operation", "scan").
		Context("directory", path).
		Build()
}
