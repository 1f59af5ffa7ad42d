package detection

import (
	"fmt"
	"math"
	"time"

	"github.com/nilomr/majorvocal/internal/errors"
)

// Normalize derives calendar fields for every record. The first record with
// an unparsable timestamp or date fails the batch with ErrTimestampParse, and
// the first pnum shorter than five characters fails it with
// ErrMalformedIdentifier. On error no records are returned.
func Normalize(records []Detection) ([]NormalizedDetection, error) {
	out := make([]NormalizedDetection, 0, len(records))

	for i, rec := range records {
		n, err := normalizeOne(i, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}

	return out, nil
}

func normalizeOne(index int, rec Detection) (NormalizedDetection, error) {
	start, err := time.Parse(TimestampLayout, rec.Timestamp)
	if err != nil {
		return NormalizedDetection{}, recordError(ErrTimestampParse, errors.CategoryTimestampParse,
			index, rec.Timestamp, rec.PNum, fmt.Sprintf("timestamp does not match %s", TimestampLayout))
	}

	dateText := rec.Date
	if dateText == "" {
		dateText = rec.Timestamp[:len(DateLayout)]
	}
	date, err := time.Parse(DateLayout, dateText)
	if err != nil {
		return NormalizedDetection{}, recordError(ErrTimestampParse, errors.CategoryTimestampParse,
			index, rec.Timestamp, rec.PNum, fmt.Sprintf("date %q does not match %s", dateText, DateLayout))
	}

	location, ok := Location(rec.PNum)
	if !ok {
		return NormalizedDetection{}, recordError(ErrMalformedIdentifier, errors.CategoryMalformedIdentifier,
			index, rec.Timestamp, rec.PNum, fmt.Sprintf("pnum has fewer than %d characters", locationOffset))
	}

	n := NormalizedDetection{
		Timestamp:     rec.Timestamp,
		PNum:          rec.PNum,
		Date:          date,
		StartTime:     rec.StartTime,
		EndTime:       rec.EndTime,
		Confidence:    rec.Confidence,
		StartDatetime: addOffset(start, rec.StartTime),
		EndDatetime:   addOffset(start, rec.EndTime),
		Location:      location,
	}
	n.Year, n.DayOfYear = CalendarFeatures(n.StartDatetime)

	return n, nil
}

// Location returns the site code of a pnum: everything after its fifth
// character. A pnum of exactly five characters has an empty site code; a
// shorter one has none and ok is false.
func Location(pnum string) (location string, ok bool) {
	runes := []rune(pnum)
	if len(runes) < locationOffset {
		return "", false
	}
	return string(runes[locationOffset:]), true
}

// CalendarFeatures returns the year and day of year of t, or nils when t is nil.
func CalendarFeatures(t *time.Time) (year, dayOfYear *int) {
	if t == nil {
		return nil, nil
	}
	y, d := t.Year(), t.YearDay()
	return &y, &d
}

// addOffset adds a second offset to base, rounded to the nearest nanosecond.
// A nil offset yields a nil time.
func addOffset(base time.Time, seconds *float64) *time.Time {
	if seconds == nil {
		return nil
	}
	t := base.Add(time.Duration(math.Round(*seconds * float64(time.Second))))
	return &t
}
