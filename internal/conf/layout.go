package conf

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/nilomr/majorvocal/internal/errors"
)

// Derived artifact names.
const (
	DetectionsFileName    = "detections.json"
	FailuresFileName      = "failures.json"
	AllDetectionsFileName = "all_detections.csv"
	DailyCountsFileName   = "daily_counts.csv"
	PeakDaysFileName      = "peak_days.csv"
	SamplingFileName      = "sampling.csv"
	LayWindowFileName     = "lay_window.csv"
	SongActivityFileName  = "song_activity.csv"
	perFileJSONDir        = "json"
)

// GetDefaultConfigPaths returns the directories searched for config.yaml,
// most specific first.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "majorvocal"))
	}
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/majorvocal")
	}
	return paths
}

// normalize resolves relative paths against the project root and fills
// values derived from other settings.
func (s *Settings) normalize() {
	if s.Paths.Project == "" {
		s.Paths.Project = "."
	}
	s.Paths.Data = s.resolve(s.Paths.Data)
	s.Paths.Metadata = s.resolve(s.Paths.Metadata)
	s.Paths.Derived = s.resolve(s.Paths.Derived)
	s.Paths.Logs = s.resolve(s.Paths.Logs)

	if s.Analysis.Threads <= 0 {
		s.Analysis.Threads = DefaultThreads
	}
	s.Analysis.Threads = min(s.Analysis.Threads, runtime.NumCPU())

	for i, ext := range s.Analysis.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		s.Analysis.Extensions[i] = ext
	}

	if s.Output.SQLite.Path != "" && !filepath.IsAbs(s.Output.SQLite.Path) {
		s.Output.SQLite.Path = filepath.Join(s.Paths.Derived, s.Output.SQLite.Path)
	}

	if s.Logging.FileOutput != nil && s.Logging.FileOutput.Path == "" {
		s.Logging.FileOutput.Path = filepath.Join(s.Paths.Logs, "{date}.log")
	}
}

func (s *Settings) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.Paths.Project, path)
}

// BreedingFile returns the breeding metadata CSV path.
func (s *Settings) BreedingFile() string {
	return filepath.Join(s.Paths.Metadata, s.Breeding.File)
}

// DerivedFile returns the path of a named artifact in the derived directory.
func (s *Settings) DerivedFile(name string) string {
	return filepath.Join(s.Paths.Derived, name)
}

// PerFileJSONDir returns the directory holding one classifier JSON per recording.
func (s *Settings) PerFileJSONDir() string {
	return filepath.Join(s.Paths.Derived, perFileJSONDir)
}

// EnsureLayout creates the project directories. It is idempotent and safe to
// call before every stage.
func EnsureLayout(s *Settings) error {
	dirs := []string{
		s.Paths.Data,
		s.Paths.Metadata,
		s.Paths.Derived,
		s.PerFileJSONDir(),
		s.Paths.Logs,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component("conf").
				Category(errors.CategoryFileIO).
				Context("operation", "ensure_layout").
				Context("directory", dir).
				Build()
		}
	}
	return nil
}
