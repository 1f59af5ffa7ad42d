package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greatTit = "Parus major"

func sampleRecordings() []RawRecording {
	return []RawRecording{
		{
			Timestamp: "20220101_000000",
			PNum:      "recording1",
			Segments: []Segment{
				{ScientificName: "Parus major", StartTime: 10, EndTime: 20, Confidence: 0.9},
				{ScientificName: "Parus minor", StartTime: 30, EndTime: 40, Confidence: 0.8},
			},
		},
		{
			Timestamp: "20220102_000000",
			PNum:      "recording2",
			Segments: []Segment{
				{ScientificName: "Parus major", StartTime: 5, EndTime: 15, Confidence: 0.7},
				{ScientificName: "Parus major", StartTime: 25, EndTime: 35, Confidence: 0.6},
				{ScientificName: "Parus minor", StartTime: 45, EndTime: 55, Confidence: 0.5},
			},
		},
	}
}

func TestExtractSingleMatch(t *testing.T) {
	t.Parallel()

	got := Extract(sampleRecordings()[:1], greatTit)

	want := []Detection{{
		Timestamp:  "20220101_000000",
		PNum:       "recording1",
		Date:       "20220101",
		StartTime:  Float(10),
		EndTime:    Float(20),
		Confidence: Float(0.9),
	}}
	assert.Equal(t, want, got)
}

func TestExtractPreservesOrder(t *testing.T) {
	t.Parallel()

	got := Extract(sampleRecordings(), greatTit)

	require.Len(t, got, 3)
	assert.Equal(t, "recording1", got[0].PNum)
	assert.Equal(t, "recording2", got[1].PNum)
	assert.InDelta(t, 5, *got[1].StartTime, 0)
	assert.Equal(t, "recording2", got[2].PNum)
	assert.InDelta(t, 25, *got[2].StartTime, 0)
	for _, d := range got {
		assert.False(t, d.IsNull())
	}
}

func TestExtractNullPlaceholder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		segments []Segment
	}{
		{"no matching species", []Segment{{ScientificName: "Cyanistes caeruleus", StartTime: 0, EndTime: 3, Confidence: 0.95}}},
		{"empty segment list", []Segment{}},
		{"nil segment list", nil},
		{"case differs", []Segment{{ScientificName: "parus major", StartTime: 0, EndTime: 3, Confidence: 0.95}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Extract([]RawRecording{{Timestamp: "20200401_043000", PNum: "20201EX66", Segments: tt.segments}}, greatTit)

			require.Len(t, got, 1)
			assert.True(t, got[0].IsNull())
			assert.Nil(t, got[0].StartTime)
			assert.Nil(t, got[0].EndTime)
			assert.Nil(t, got[0].Confidence)
			assert.Equal(t, "20200401", got[0].Date)
		})
	}
}

func TestExtractNullKeepsRecordingPosition(t *testing.T) {
	t.Parallel()

	recs := []RawRecording{
		{Timestamp: "20200401_040000", PNum: "20201EX1", Segments: []Segment{{ScientificName: greatTit, StartTime: 1, EndTime: 4, Confidence: 0.9}}},
		{Timestamp: "20200401_041000", PNum: "20201EX2"},
		{Timestamp: "20200401_042000", PNum: "20201EX3", Segments: []Segment{{ScientificName: greatTit, StartTime: 2, EndTime: 5, Confidence: 0.85}}},
	}

	got := Extract(recs, greatTit)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"20201EX1", "20201EX2", "20201EX3"}, []string{got[0].PNum, got[1].PNum, got[2].PNum})
	assert.True(t, got[1].IsNull())
}

func TestExtractProperties(t *testing.T) {
	t.Parallel()

	recs := append(sampleRecordings(),
		RawRecording{Timestamp: "20220103_050000", PNum: "recording3"},
		RawRecording{Timestamp: "20220104_050000", PNum: "recording4", Segments: []Segment{{ScientificName: "Sitta europaea", Confidence: 0.9}}},
	)

	got := Extract(recs, greatTit)
	assert.GreaterOrEqual(t, len(got), len(recs))

	nullsByPNum := map[string]int{}
	positivesByPNum := map[string]int{}
	for _, d := range got {
		if d.IsNull() {
			nullsByPNum[d.PNum]++
		} else {
			positivesByPNum[d.PNum]++
		}
	}
	for _, rec := range recs {
		if positivesByPNum[rec.PNum] > 0 {
			assert.Zero(t, nullsByPNum[rec.PNum], rec.PNum)
		} else {
			assert.Equal(t, 1, nullsByPNum[rec.PNum], rec.PNum)
		}
	}
}

func TestExtractDateWithoutUnderscore(t *testing.T) {
	t.Parallel()

	got := Extract([]RawRecording{{Timestamp: "20220101", PNum: "recording1"}}, greatTit)
	require.Len(t, got, 1)
	assert.Equal(t, "20220101", got[0].Date)
}

type countingObserver struct{ n int }

func (c *countingObserver) Increment() { c.n++ }

func TestExtractProgressDoesNotChangeOutput(t *testing.T) {
	t.Parallel()

	obs := &countingObserver{}
	with := Extract(sampleRecordings(), greatTit, WithProgress(obs))
	without := Extract(sampleRecordings(), greatTit)

	assert.Equal(t, without, with)
	assert.Equal(t, 2, obs.n)
}
