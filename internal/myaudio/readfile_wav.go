package myaudio

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

func readWAVInfo(file *os.File) (AudioInfo, error) {
	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()

	if !decoder.IsValidFile() {
		return AudioInfo{}, ErrInvalidWAV
	}

	if err := validateFormat(int(decoder.BitDepth), int(decoder.NumChans)); err != nil {
		return AudioInfo{}, err
	}

	duration, err := decoder.Duration()
	if err != nil {
		return AudioInfo{}, fmt.Errorf("reading WAV duration: %w", err)
	}

	bytesPerFrame := int64(decoder.BitDepth/8) * int64(decoder.NumChans)
	totalSamples := decoder.PCMLen() / bytesPerFrame

	return AudioInfo{
		SampleRate:   int(decoder.SampleRate),
		TotalSamples: int(totalSamples),
		NumChannels:  int(decoder.NumChans),
		BitDepth:     int(decoder.BitDepth),
		Duration:     duration,
	}, nil
}
