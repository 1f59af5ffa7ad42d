package myaudio

import (
	"os"

	"github.com/tphakala/flac"
)

// readFLACInfo reads the STREAMINFO block. The encoder may leave the total
// sample count at zero when it is unknown; such files probe as empty.
func readFLACInfo(file *os.File) (AudioInfo, error) {
	decoder, err := flac.NewDecoder(file)
	if err != nil {
		return AudioInfo{}, err
	}

	if err := validateFormat(decoder.BitsPerSample, decoder.NChannels); err != nil {
		return AudioInfo{}, err
	}

	return AudioInfo{
		SampleRate:   decoder.SampleRate,
		TotalSamples: int(decoder.TotalSamples),
		NumChannels:  decoder.NChannels,
		BitDepth:     decoder.BitsPerSample,
	}, nil
}
