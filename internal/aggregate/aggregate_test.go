package aggregate

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilomr/majorvocal/internal/breeding"
	"github.com/nilomr/majorvocal/internal/conf"
	"github.com/nilomr/majorvocal/internal/detection"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// rec builds a normalized record. A negative confidence gives a null record.
func rec(t *testing.T, pnum, timestamp string, confidence float64) detection.NormalizedDetection {
	t.Helper()
	d := detection.Detection{Timestamp: timestamp, PNum: pnum, Date: timestamp[:8]}
	if confidence >= 0 {
		d.StartTime = detection.Float(0)
		d.EndTime = detection.Float(3)
		d.Confidence = detection.Float(confidence)
	}
	out, err := detection.Normalize([]detection.Detection{d})
	require.NoError(t, err)
	return out[0]
}

func ptr[T any](v T) *T { return &v }

func brood(t *testing.T, csv string) *breeding.Table {
	t.Helper()
	table, err := breeding.Read(strings.NewReader(csv))
	require.NoError(t, err)
	return table
}

func TestDailyCounts(t *testing.T) {
	t.Parallel()

	records := []detection.NormalizedDetection{
		rec(t, "2020EX66", "20200402_050000", 0.9),
		rec(t, "2020EX26", "20200401_050000", 0.9),
		rec(t, "2020EX26", "20200401_050000", 0.85),
		rec(t, "2020EX26", "20200402_040000", -1),
		rec(t, "2020EX26", "20200401_060000", 0.95),
	}

	got := DailyCounts(records)
	want := []DailyCount{
		{PNum: "2020EX26", Date: day(2020, 4, 1), Count: 3},
		{PNum: "2020EX26", Date: day(2020, 4, 2), Count: 0},
		{PNum: "2020EX66", Date: day(2020, 4, 2), Count: 1},
	}
	assert.Equal(t, want, got)
}

func TestJoinBrood(t *testing.T) {
	t.Parallel()

	table := brood(t, "pnum,lay_date,n_vocalisations\n2020EX26,2020-04-05,10\n2020SW4,,3\n")
	counts := []DailyCount{
		{PNum: "2020EX26", Date: day(2020, 3, 30), Count: 2},
		{PNum: "2020EX26", Date: day(2020, 4, 7), Count: 1},
		{PNum: "2020SW4", Date: day(2020, 4, 1), Count: 4},
		{PNum: "2020XX99", Date: day(2020, 4, 1), Count: 4},
	}

	got := JoinBrood(counts, table)
	require.Len(t, got, 3, "unknown nests are dropped")
	assert.Equal(t, ptr(-6), got[0].DaysFromLay, "crosses a month boundary")
	assert.Equal(t, ptr(2), got[1].DaysFromLay)
	assert.Equal(t, ptr(day(2020, 4, 5)), got[0].LayDate)
	assert.Equal(t, "2020EX26", got[0].Attempt.PNum)

	assert.Equal(t, "2020SW4", got[2].PNum)
	assert.Nil(t, got[2].LayDate, "missing lay date keeps the row")
	assert.Nil(t, got[2].DaysFromLay)
}

func TestMissingLayDateReachesTables(t *testing.T) {
	t.Parallel()

	table := brood(t, "pnum,lay_date,n_vocalisations\n20201EX66,,12\n")
	records := []detection.NormalizedDetection{rec(t, "20201EX66", "20200401_050000", 0.9)}

	got := Run(records, table, conf.LayWindow{MinFirst: -100, MaxFirst: 100, MinLast: -100, MaxLast: 100})
	require.Len(t, got.Days, 1)
	assert.Equal(t, 1, got.Days[0].Count)
	assert.Equal(t, day(2020, 4, 1), got.Days[0].DateFirst)

	require.Len(t, got.Peaks, 1)
	assert.Nil(t, got.Peaks[0].LayDate)
	assert.Nil(t, got.Peaks[0].DaysFromLay)

	assert.Equal(t, []Sampling{{PNum: "20201EX66", Count: 1, NVocalisations: ptr(12)}}, got.Sampling)
	assert.Empty(t, got.LayWindow, "no lay date never matches the window")
}

func TestDaysBetweenIgnoresClockTime(t *testing.T) {
	t.Parallel()

	a := time.Date(2020, 4, 1, 23, 0, 0, 0, time.UTC)
	b := time.Date(2020, 4, 2, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, daysBetween(a, b))
	assert.Equal(t, -1, daysBetween(b, a))
	assert.Equal(t, 0, daysBetween(a, a))
}

func TestEnsureDateRange(t *testing.T) {
	t.Parallel()

	days := []Day{
		{DailyCount: DailyCount{PNum: "A", Date: day(2020, 4, 3)}},
		{DailyCount: DailyCount{PNum: "A", Date: day(2020, 4, 1)}},
		{DailyCount: DailyCount{PNum: "B", Date: day(2020, 4, 9)}},
	}

	got := EnsureDateRange(days)
	require.Len(t, got, 3)
	for _, d := range got[:2] {
		assert.Equal(t, day(2020, 4, 1), d.DateFirst)
		assert.Equal(t, day(2020, 4, 3), d.DateLast)
	}
	assert.Equal(t, day(2020, 4, 9), got[2].DateFirst)
	assert.Equal(t, day(2020, 4, 9), got[2].DateLast)
}

func TestPeakDaysTakesFirstMaximum(t *testing.T) {
	t.Parallel()

	lay := ptr(day(2020, 4, 5))
	days := []Day{
		{DailyCount: DailyCount{PNum: "A", Date: day(2020, 4, 1), Count: 2}, LayDate: lay, DaysFromLay: ptr(-4)},
		{DailyCount: DailyCount{PNum: "A", Date: day(2020, 4, 2), Count: 7}, LayDate: lay, DaysFromLay: ptr(-3)},
		{DailyCount: DailyCount{PNum: "A", Date: day(2020, 4, 3), Count: 7}, LayDate: lay, DaysFromLay: ptr(-2)},
		{DailyCount: DailyCount{PNum: "B", Date: day(2020, 4, 1), Count: 0}, LayDate: lay, DaysFromLay: ptr(-4)},
	}

	got := PeakDays(days)
	require.Len(t, got, 2)
	assert.Equal(t, Peak{PNum: "A", Date: day(2020, 4, 2), Count: 7, LayDate: lay, DaysFromLay: ptr(-3)}, got[0])
	assert.Equal(t, "B", got[1].PNum)
	assert.Equal(t, 0, got[1].Count)
}

func TestSamplingSummary(t *testing.T) {
	t.Parallel()

	n := 12
	attempt := breeding.Attempt{PNum: "A", NVocalisations: &n}
	days := []Day{
		{DailyCount: DailyCount{PNum: "A", Count: 2}, Attempt: attempt},
		{DailyCount: DailyCount{PNum: "A", Count: 5}, Attempt: attempt},
		{DailyCount: DailyCount{PNum: "B", Count: 1}},
	}

	got := SamplingSummary(days)
	require.Len(t, got, 2)
	assert.Equal(t, 7, got[0].Count)
	require.NotNil(t, got[0].NVocalisations)
	assert.Equal(t, 12, *got[0].NVocalisations)
	assert.Equal(t, 1, got[1].Count)
	assert.Nil(t, got[1].NVocalisations)
}

func TestLayWindowSubset(t *testing.T) {
	t.Parallel()

	window := conf.LayWindow{MinFirst: -10, MaxFirst: -3, MinLast: 1, MaxLast: 10}
	mk := func(pnum string, dfl ...int) []Day {
		out := make([]Day, 0, len(dfl))
		for _, d := range dfl {
			out = append(out, Day{DailyCount: DailyCount{PNum: pnum}, DaysFromLay: ptr(d)})
		}
		return out
	}

	var days []Day
	days = append(days, mk("inside", -5, -4, 0, 2)...)
	days = append(days, mk("edges", -10, 10)...)
	days = append(days, mk("starts late", -2, 3)...)
	days = append(days, mk("ends early", -6, 0)...)
	days = append(days, mk("starts early", -11, 5)...)
	days = append(days, mk("ends late", -4, 11)...)
	days = append(days, Day{DailyCount: DailyCount{PNum: "no lay date"}})

	got := LayWindowSubset(days, window)
	assert.Equal(t, []LayWindowNest{
		{PNum: "inside", Days: 4, FirstDay: -5, LastDay: 2},
		{PNum: "edges", Days: 2, FirstDay: -10, LastDay: 10},
	}, got)
}

func TestSongActivity(t *testing.T) {
	t.Parallel()

	var records []detection.NormalizedDetection
	add := func(timestamp string, n int) {
		for range n {
			records = append(records, rec(t, "2020EX26", timestamp, 0.9))
		}
	}
	add("20200401_050000", 1)
	add("20200402_050000", 3)
	add("20200405_050000", 5)
	add("20200406_050000", 1)
	add("20200407_050000", 2)
	add("20200408_050000", 8)
	add("20210401_050000", 4)
	records = append(records, rec(t, "2020EX26", "20200403_050000", -1))

	got := SongActivity(records)
	require.Len(t, got, 11, "null records are not counted")

	assert.Equal(t, 2020, got[0].Year)
	assert.Equal(t, 92, got[0].DayOfYear, "2020 has no count in the window of day 91")
	assert.InDelta(t, 1.0, got[0].RollingMean, 1e-9)
	assert.InDelta(t, 2.0, got[1].RollingMean, 1e-9)
	assert.InDelta(t, 3.0, got[2].RollingMean, 1e-9)
	assert.InDelta(t, 2.5, got[3].RollingMean, 1e-9)
	assert.InDelta(t, 12.0/5, got[4].RollingMean, 1e-9)
	assert.InDelta(t, 19.0/5, got[5].RollingMean, 1e-9, "window slides past the first day")

	assert.Equal(t, Activity{Year: 2021, DayOfYear: 91, Count: ptr(4), RollingMean: 4}, got[6])
	assert.Equal(t, Activity{Year: 2021, DayOfYear: 92, RollingMean: 4}, got[7],
		"days observed only in another year carry the mean without a count")
	assert.Equal(t, 97, got[10].DayOfYear, "the window leaves day 91 after five shared days")
}

func TestSongActivitySharesDayIndexAcrossYears(t *testing.T) {
	t.Parallel()

	var records []detection.NormalizedDetection
	for d := 1; d <= 11; d++ {
		records = append(records, rec(t, "2020EX26", fmt.Sprintf("202001%02d_050000", d), 0.9))
		if d%2 == 1 {
			for range d {
				records = append(records, rec(t, "2021EX26", fmt.Sprintf("202101%02d_050000", d), 0.9))
			}
		}
	}

	got := SongActivity(records)
	require.Len(t, got, 22)

	last := got[21]
	assert.Equal(t, 2021, last.Year)
	assert.Equal(t, 11, last.DayOfYear)
	assert.Equal(t, ptr(11), last.Count)
	assert.InDelta(t, 9.0, last.RollingMean, 1e-9, "days 7 to 11 of the shared index hold 7, 9 and 11")

	gap := got[20]
	assert.Equal(t, 10, gap.DayOfYear)
	assert.Nil(t, gap.Count)
	assert.InDelta(t, 8.0, gap.RollingMean, 1e-9)
}

func TestRun(t *testing.T) {
	t.Parallel()

	table := brood(t, "pnum,lay_date,n_vocalisations\n2020EX26,2020-04-05,10\n")
	records := []detection.NormalizedDetection{
		rec(t, "2020EX26", "20200330_050000", 0.9),
		rec(t, "2020EX26", "20200406_050000", 0.9),
		rec(t, "2020EX26", "20200406_060000", 0.9),
	}

	got := Run(records, table, conf.LayWindow{MinFirst: -10, MaxFirst: -3, MinLast: 1, MaxLast: 10})
	require.Len(t, got.Days, 2)
	require.Len(t, got.Peaks, 1)
	assert.Equal(t, ptr(1), got.Peaks[0].DaysFromLay)
	require.Len(t, got.Sampling, 1)
	assert.Equal(t, 3, got.Sampling[0].Count)
	require.Len(t, got.LayWindow, 1)
	assert.Equal(t, -6, got.LayWindow[0].FirstDay)
	assert.Len(t, got.SongActivity, 2)
}
