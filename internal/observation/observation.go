// Package observation writes the pipeline's derived tables to disk.
package observation

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nilomr/majorvocal/internal/aggregate"
	"github.com/nilomr/majorvocal/internal/breeding"
	"github.com/nilomr/majorvocal/internal/conf"
	"github.com/nilomr/majorvocal/internal/detection"
	"github.com/nilomr/majorvocal/internal/errors"
)

// Cell layouts. Missing values are written as empty cells.
const (
	DateLayout     = "2006-01-02"
	DatetimeLayout = "2006-01-02 15:04:05.999999999"
)

// DetectionsHeader is the column order of all_detections.csv.
var DetectionsHeader = []string{
	"timestamp", "pnum", "date", "start_time", "end_time", "confidence",
	"start_datetime", "end_datetime", "location", "year", "dayofyear", "count",
}

// WriteDetectionsCsv writes normalized detections in input order.
func WriteDetectionsCsv(w io.Writer, records []detection.NormalizedDetection) error {
	rows := make([][]string, 0, len(records))
	for i := range records {
		r := &records[i]
		rows = append(rows, []string{
			r.Timestamp,
			r.PNum,
			r.Date.Format(DateLayout),
			formatFloat(r.StartTime),
			formatFloat(r.EndTime),
			formatFloat(r.Confidence),
			formatDatetime(r.StartDatetime),
			formatDatetime(r.EndDatetime),
			r.Location,
			formatInt(r.Year),
			formatInt(r.DayOfYear),
			strconv.Itoa(r.Count()),
		})
	}
	return writeCsv(w, DetectionsHeader, rows)
}

// WriteDailyCountsCsv writes the joined daily counts. Breeding columns follow
// count in the order of the breeding table header.
func WriteDailyCountsCsv(w io.Writer, days []aggregate.Day, table *breeding.Table) error {
	header := make([]string, 0, len(table.Columns)+6)
	header = append(header, "pnum", "date", "count")
	header = append(header, table.Columns...)
	header = append(header, "days_from_lay", "date_first", "date_last")

	rows := make([][]string, 0, len(days))
	for _, d := range days {
		row := make([]string, 0, len(header))
		row = append(row, d.PNum, d.Date.Format(DateLayout), strconv.Itoa(d.Count))
		for col := range table.Columns {
			row = append(row, table.Value(d.Attempt, col))
		}
		row = append(row,
			formatInt(d.DaysFromLay),
			d.DateFirst.Format(DateLayout),
			d.DateLast.Format(DateLayout),
		)
		rows = append(rows, row)
	}
	return writeCsv(w, header, rows)
}

// WritePeakDaysCsv writes one peak day per nest.
func WritePeakDaysCsv(w io.Writer, peaks []aggregate.Peak) error {
	rows := make([][]string, 0, len(peaks))
	for _, p := range peaks {
		rows = append(rows, []string{
			p.PNum,
			p.Date.Format(DateLayout),
			strconv.Itoa(p.Count),
			formatDate(p.LayDate),
			formatInt(p.DaysFromLay),
		})
	}
	return writeCsv(w, []string{"pnum", "date", "count", "lay_date", "days_from_lay"}, rows)
}

// WriteSamplingCsv writes detection totals next to manual annotation counts.
func WriteSamplingCsv(w io.Writer, sampling []aggregate.Sampling) error {
	rows := make([][]string, 0, len(sampling))
	for _, s := range sampling {
		rows = append(rows, []string{s.PNum, strconv.Itoa(s.Count), formatInt(s.NVocalisations)})
	}
	return writeCsv(w, []string{"pnum", "count", "n_vocalisations"}, rows)
}

// WriteLayWindowCsv writes the nests recorded across their lay date.
func WriteLayWindowCsv(w io.Writer, nests []aggregate.LayWindowNest) error {
	rows := make([][]string, 0, len(nests))
	for _, n := range nests {
		rows = append(rows, []string{
			n.PNum,
			strconv.Itoa(n.Days),
			strconv.Itoa(n.FirstDay),
			strconv.Itoa(n.LastDay),
		})
	}
	return writeCsv(w, []string{"pnum", "days", "first_day", "last_day"}, rows)
}

// WriteSongActivityCsv writes detections per day of year with the rolling mean.
func WriteSongActivityCsv(w io.Writer, activity []aggregate.Activity) error {
	rows := make([][]string, 0, len(activity))
	for _, a := range activity {
		rows = append(rows, []string{
			strconv.Itoa(a.Year),
			strconv.Itoa(a.DayOfYear),
			formatInt(a.Count),
			strconv.FormatFloat(a.RollingMean, 'f', -1, 64),
		})
	}
	return writeCsv(w, []string{"year", "dayofyear", "count", "rolling_mean"}, rows)
}

// SaveTables writes every CSV table into the derived directory. Each file
// is replaced atomically.
func SaveTables(settings *conf.Settings, records []detection.NormalizedDetection, table *breeding.Table, result aggregate.Result) error {
	outputs := []struct {
		name  string
		write func(io.Writer) error
	}{
		{conf.AllDetectionsFileName, func(w io.Writer) error { return WriteDetectionsCsv(w, records) }},
		{conf.DailyCountsFileName, func(w io.Writer) error { return WriteDailyCountsCsv(w, result.Days, table) }},
		{conf.PeakDaysFileName, func(w io.Writer) error { return WritePeakDaysCsv(w, result.Peaks) }},
		{conf.SamplingFileName, func(w io.Writer) error { return WriteSamplingCsv(w, result.Sampling) }},
		{conf.LayWindowFileName, func(w io.Writer) error { return WriteLayWindowCsv(w, result.LayWindow) }},
		{conf.SongActivityFileName, func(w io.Writer) error { return WriteSongActivityCsv(w, result.SongActivity) }},
	}

	for _, out := range outputs {
		if err := saveFile(settings.DerivedFile(out.name), out.write); err != nil {
			return err
		}
	}
	return nil
}

func saveFile(path string, write func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return outputError(err, path)
	}
	if err := conf.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return outputError(err, path)
	}
	return nil
}

func outputError(err error, path string) error {
	return errors.New(fmt.Errorf("failed to write %s: %w", path, err)).
		Component("observation").
		Category(errors.CategoryFileIO).
		Context("operation", "write_output").
		Context("file_path", path).
		Build()
}

func writeCsv(w io.Writer, header []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header to CSV: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows to CSV: %w", err)
	}
	return nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}

func formatDatetime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DatetimeLayout)
}
