package observation

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/nilomr/majorvocal/internal/conf"
	"github.com/nilomr/majorvocal/internal/detection"
	"github.com/nilomr/majorvocal/internal/errors"
)

// Failure records a recording the inference stage could not classify.
type Failure struct {
	Path  string `json:"path"`
	PNum  string `json:"pnum"`
	Error string `json:"error"`
}

// WriteRecordings encodes recordings as a JSON array of
// [timestamp, pnum, segments] tuples.
func WriteRecordings(w io.Writer, recordings []detection.RawRecording) error {
	if recordings == nil {
		recordings = []detection.RawRecording{}
	}
	return json.NewEncoder(w).Encode(recordings)
}

// WriteFailures encodes failures as a JSON array.
func WriteFailures(w io.Writer, failures []Failure) error {
	if failures == nil {
		failures = []Failure{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(failures)
}

// SaveRecordings atomically writes recordings to path.
func SaveRecordings(path string, recordings []detection.RawRecording) error {
	return saveFile(path, func(w io.Writer) error { return WriteRecordings(w, recordings) })
}

// SaveRecording atomically writes a single recording tuple to path.
func SaveRecording(path string, recording detection.RawRecording) error {
	return saveFile(path, func(w io.Writer) error { return json.NewEncoder(w).Encode(recording) })
}

// SaveFailures atomically writes failures to path.
func SaveFailures(path string, failures []Failure) error {
	return saveFile(path, func(w io.Writer) error { return WriteFailures(w, failures) })
}

// LoadRecordings reads and validates a detections file.
func LoadRecordings(path string) ([]detection.RawRecording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open detections: %w", err)).
			Component("observation").
			Category(errors.CategoryFileIO).
			Context("operation", "load_recordings").
			Context("file_path", path).
			Build()
	}
	defer f.Close()

	return detection.DecodeRecordings(f)
}

// LoadRecording reads one per-file recording tuple.
func LoadRecording(path string) (detection.RawRecording, error) {
	f, err := os.Open(path)
	if err != nil {
		return detection.RawRecording{}, err
	}
	defer f.Close()

	return detection.DecodeRecording(f)
}

// DetectionsFile returns the path of detections.json for settings.
func DetectionsFile(settings *conf.Settings) string {
	return settings.DerivedFile(conf.DetectionsFileName)
}

// FailuresFile returns the path of failures.json for settings.
func FailuresFile(settings *conf.Settings) string {
	return settings.DerivedFile(conf.FailuresFileName)
}
