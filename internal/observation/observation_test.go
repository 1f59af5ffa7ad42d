package observation

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilomr/majorvocal/internal/aggregate"
	"github.com/nilomr/majorvocal/internal/breeding"
	"github.com/nilomr/majorvocal/internal/conf"
	"github.com/nilomr/majorvocal/internal/detection"
)

func readCsv(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func normalized(t *testing.T) []detection.NormalizedDetection {
	t.Helper()
	records, err := detection.Normalize([]detection.Detection{
		{
			Timestamp:  "20200401_050000",
			PNum:       "2020EX26",
			Date:       "20200401",
			StartTime:  detection.Float(1.5),
			EndTime:    detection.Float(4.5),
			Confidence: detection.Float(0.91),
		},
		{Timestamp: "20200402_050000", PNum: "2020EX26", Date: "20200402"},
	})
	require.NoError(t, err)
	return records
}

func TestWriteDetectionsCsv(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteDetectionsCsv(&buf, normalized(t)))

	rows := readCsv(t, buf.Bytes())
	require.Len(t, rows, 3)
	assert.Equal(t, []string{
		"timestamp", "pnum", "date", "start_time", "end_time", "confidence",
		"start_datetime", "end_datetime", "location", "year", "dayofyear", "count",
	}, rows[0])
	assert.Equal(t, []string{
		"20200401_050000", "2020EX26", "2020-04-01", "1.5", "4.5", "0.91",
		"2020-04-01 05:00:01.5", "2020-04-01 05:00:04.5", "EX26", "2020", "92", "1",
	}, rows[1])
	assert.Equal(t, []string{
		"20200402_050000", "2020EX26", "2020-04-02", "", "", "", "", "", "EX26", "", "", "0",
	}, rows[2], "null record leaves detection columns empty and counts zero")
}

func TestWriteDailyCountsCsv(t *testing.T) {
	t.Parallel()

	table, err := breeding.Read(strings.NewReader("year,pnum,lay_date,n_vocalisations\n2020,2020EX26,05/04/2020,10\n"))
	require.NoError(t, err)

	result := aggregate.Run(normalized(t), table, conf.LayWindow{})

	var buf bytes.Buffer
	require.NoError(t, WriteDailyCountsCsv(&buf, result.Days, table))

	rows := readCsv(t, buf.Bytes())
	require.Len(t, rows, 3)
	assert.Equal(t, []string{
		"pnum", "date", "count", "year", "lay_date", "n_vocalisations",
		"days_from_lay", "date_first", "date_last",
	}, rows[0])
	assert.Equal(t, []string{
		"2020EX26", "2020-04-01", "1", "2020", "2020-04-05", "10", "-4", "2020-04-01", "2020-04-02",
	}, rows[1])
	assert.Equal(t, "0", rows[2][2])
}

func TestWriteDailyCountsCsvMissingLayDate(t *testing.T) {
	t.Parallel()

	table, err := breeding.Read(strings.NewReader("pnum,lay_date,n_vocalisations\n2020EX26,,12\n"))
	require.NoError(t, err)

	result := aggregate.Run(normalized(t), table, conf.LayWindow{})

	var buf bytes.Buffer
	require.NoError(t, WriteDailyCountsCsv(&buf, result.Days, table))

	rows := readCsv(t, buf.Bytes())
	require.Len(t, rows, 3)
	assert.Equal(t, []string{
		"2020EX26", "2020-04-01", "1", "", "12", "", "2020-04-01", "2020-04-02",
	}, rows[1], "lay date and days from lay are empty")
}

func TestSmallTables(t *testing.T) {
	t.Parallel()

	lay := time.Date(2020, 4, 5, 0, 0, 0, 0, time.UTC)
	n := 4

	var peaks, sampling, window, activity bytes.Buffer
	dfl := -2
	require.NoError(t, WritePeakDaysCsv(&peaks, []aggregate.Peak{
		{PNum: "2020EX26", Date: lay.AddDate(0, 0, -2), Count: 9, LayDate: &lay, DaysFromLay: &dfl},
		{PNum: "2020SW4", Date: lay, Count: 1},
	}))
	require.NoError(t, WriteSamplingCsv(&sampling, []aggregate.Sampling{
		{PNum: "2020EX26", Count: 12, NVocalisations: &n},
		{PNum: "2020EX66", Count: 0},
	}))
	require.NoError(t, WriteLayWindowCsv(&window, []aggregate.LayWindowNest{
		{PNum: "2020EX26", Days: 8, FirstDay: -5, LastDay: 2},
	}))
	count := 3
	require.NoError(t, WriteSongActivityCsv(&activity, []aggregate.Activity{
		{Year: 2020, DayOfYear: 92, Count: &count, RollingMean: 2.5},
		{Year: 2020, DayOfYear: 93, RollingMean: 3},
	}))

	assert.Equal(t, "pnum,date,count,lay_date,days_from_lay\n2020EX26,2020-04-03,9,2020-04-05,-2\n2020SW4,2020-04-05,1,,\n", peaks.String())
	assert.Equal(t, "pnum,count,n_vocalisations\n2020EX26,12,4\n2020EX66,0,\n", sampling.String())
	assert.Equal(t, "pnum,days,first_day,last_day\n2020EX26,8,-5,2\n", window.String())
	assert.Equal(t, "year,dayofyear,count,rolling_mean\n2020,92,3,2.5\n2020,93,,3\n", activity.String())
}

func TestSaveTables(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Paths.Derived = t.TempDir()

	table, err := breeding.Read(strings.NewReader("pnum,lay_date,n_vocalisations\n2020EX26,2020-04-05,10\n"))
	require.NoError(t, err)
	records := normalized(t)

	require.NoError(t, SaveTables(settings, records, table, aggregate.Run(records, table, conf.LayWindow{})))

	for _, name := range []string{
		conf.AllDetectionsFileName,
		conf.DailyCountsFileName,
		conf.PeakDaysFileName,
		conf.SamplingFileName,
		conf.LayWindowFileName,
		conf.SongActivityFileName,
	} {
		_, err := os.Stat(filepath.Join(settings.Paths.Derived, name))
		assert.NoError(t, err, name)
	}
}

func TestRecordingsRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, conf.DetectionsFileName)
	want := []detection.RawRecording{
		{
			Timestamp: "20200401_050000",
			PNum:      "2020EX26",
			Segments: []detection.Segment{
				{ScientificName: "Parus major", CommonName: "Great Tit", StartTime: 0, EndTime: 3, Confidence: 0.9},
			},
		},
		{Timestamp: "20200401_053000", PNum: "2020EX26", Segments: []detection.Segment{}},
	}

	require.NoError(t, SaveRecordings(path, want))
	got, err := LoadRecordings(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	single := filepath.Join(dir, "20200401_050000.json")
	require.NoError(t, SaveRecording(single, want[0]))
	one, err := LoadRecording(single)
	require.NoError(t, err)
	assert.Equal(t, want[0], one)
}

func TestWriteEmptyJSON(t *testing.T) {
	t.Parallel()

	var recs, fails bytes.Buffer
	require.NoError(t, WriteRecordings(&recs, nil))
	require.NoError(t, WriteFailures(&fails, nil))
	assert.Equal(t, "[]\n", recs.String())
	assert.Equal(t, "[]\n", fails.String())
}

func TestSaveFailures(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), conf.FailuresFileName)
	require.NoError(t, SaveFailures(path, []Failure{
		{Path: "data/EX/2020EX26/20200401_050000.WAV", PNum: "2020EX26", Error: "classifier exited with status 1"},
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"pnum": "2020EX26"`)
	assert.Contains(t, string(data), `"error": "classifier exited with status 1"`)
}
