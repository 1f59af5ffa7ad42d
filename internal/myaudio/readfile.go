// Package myaudio inspects recordings before they are handed to the classifier.
package myaudio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nilomr/majorvocal/internal/errors"
)

// AudioInfo describes the stream of a recording.
type AudioInfo struct {
	SampleRate   int
	TotalSamples int // samples per channel
	NumChannels  int
	BitDepth     int
	Duration     time.Duration
}

// ProbeFile opens path and validates its header. WAV and FLAC are supported;
// the format is chosen by extension, case-insensitively. Files without audio
// data are rejected.
func ProbeFile(path string) (AudioInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return AudioInfo{}, probeError(err, path, errors.CategoryFileIO)
	}
	defer file.Close()

	var info AudioInfo
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		info, err = readWAVInfo(file)
	case ".flac":
		info, err = readFLACInfo(file)
	default:
		err = fmt.Errorf("unsupported audio format %q", ext)
	}
	if err != nil {
		return AudioInfo{}, probeError(err, path, errors.CategoryAudio)
	}

	if info.TotalSamples == 0 {
		return AudioInfo{}, probeError(ErrEmptyAudio, path, errors.CategoryAudio)
	}
	if info.Duration == 0 && info.SampleRate > 0 {
		info.Duration = time.Duration(info.TotalSamples) * time.Second / time.Duration(info.SampleRate)
	}
	return info, nil
}

// validateFormat accepts the PCM layouts field recorders produce and the
// classifier reads: 16, 24 or 32 bit, mono or stereo.
func validateFormat(bitDepth, channels int) error {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}
	if channels != 1 && channels != 2 {
		return fmt.Errorf("unsupported number of channels: %d", channels)
	}
	return nil
}

func probeError(err error, path string, category errors.ErrorCategory) error {
	var size int64
	if st, statErr := os.Stat(path); statErr == nil {
		size = st.Size()
	}
	return errors.New(fmt.Errorf("probe %s: %w", filepath.Base(path), err)).
		Component("myaudio").
		Category(category).
		FileContext(path, size).
		Context("operation", "probe_audio").
		Build()
}
