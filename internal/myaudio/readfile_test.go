package myaudio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilomr/majorvocal/internal/errors"
)

// writeTestWAV writes a mono 16-bit WAV with the given number of samples.
func writeTestWAV(t *testing.T, path string, sampleRate, samples int) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	data := make([]int, samples)
	for i := range data {
		data[i] = (i % 200) - 100
	}
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func TestProbeWAV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "20200401_050000.WAV")
	writeTestWAV(t, path, 48000, 96000)

	info, err := ProbeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 48000, info.SampleRate)
	assert.Equal(t, 1, info.NumChannels)
	assert.Equal(t, 16, info.BitDepth)
	assert.Equal(t, 96000, info.TotalSamples)
	assert.InDelta(t, float64(2*time.Second), float64(info.Duration), float64(10*time.Millisecond))
}

func TestProbeRejects(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.wav")
	writeTestWAV(t, empty, 48000, 0)

	garbage := filepath.Join(dir, "garbage.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("not a riff header at all"), 0o600))

	fakeFLAC := filepath.Join(dir, "fake.flac")
	require.NoError(t, os.WriteFile(fakeFLAC, []byte("RIFF0000WAVE"), 0o600))

	mp3 := filepath.Join(dir, "clip.mp3")
	require.NoError(t, os.WriteFile(mp3, []byte("ID3"), 0o600))

	tests := []struct {
		name     string
		path     string
		category errors.ErrorCategory
		sentinel error
	}{
		{name: "empty wav", path: empty, category: errors.CategoryAudio, sentinel: ErrEmptyAudio},
		{name: "invalid wav", path: garbage, category: errors.CategoryAudio, sentinel: ErrInvalidWAV},
		{name: "invalid flac", path: fakeFLAC, category: errors.CategoryAudio},
		{name: "unsupported extension", path: mp3, category: errors.CategoryAudio},
		{name: "missing file", path: filepath.Join(dir, "missing.wav"), category: errors.CategoryFileIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ProbeFile(tt.path)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, tt.category), "category of %v", err)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
		})
	}
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bitDepth, channels int
		wantErr            string
	}{
		{16, 1, ""},
		{24, 2, ""},
		{32, 1, ""},
		{8, 1, "unsupported bit depth: 8"},
		{16, 6, "unsupported number of channels: 6"},
	}

	for _, tt := range tests {
		err := validateFormat(tt.bitDepth, tt.channels)
		if tt.wantErr == "" {
			assert.NoError(t, err)
			continue
		}
		assert.EqualError(t, err, tt.wantErr)
	}
}
