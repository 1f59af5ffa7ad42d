package myaudio

import (
	"github.com/nilomr/majorvocal/internal/errors"
)

// Error sentinel values for common myaudio errors
var (
	// ErrInvalidWAV is returned when a .wav file has no valid RIFF/WAVE header.
	ErrInvalidWAV = errors.NewStd("invalid WAV file format")

	// ErrEmptyAudio is returned for a recording with a valid header and no samples.
	ErrEmptyAudio = errors.NewStd("recording contains no audio data")
)
