// Package detection turns raw per-recording classifier output into
// per-species detection records aligned on calendar time.
//
// The package has two stages:
//
//   - Extract filters raw recordings to a single target species. It emits one
//     Detection per matching segment, or a single null Detection for a
//     recording with no match. Every recording contributes at least one
//     record, in input order.
//   - Normalize derives absolute start and end datetimes, a location code
//     and calendar features. It is all-or-nothing: one malformed timestamp
//     or identifier fails the whole batch.
//
// Raw recordings are read with DecodeRecordings, which validates the
// [timestamp, pnum, segments] tuple shape before anything else sees it.
package detection

import (
	"encoding/json"
	"time"
)

// Layouts of the recording timestamp and of its date prefix.
const (
	TimestampLayout = "20060102_150405"
	DateLayout      = "20060102"
)

// locationOffset is the number of leading pnum characters before the site code.
const locationOffset = 5

// Segment is one classifier claim within a recording.
type Segment struct {
	ScientificName string  `json:"scientific_name"`
	CommonName     string  `json:"common_name,omitempty"`
	StartTime      float64 `json:"start_time"` // seconds from recording start
	EndTime        float64 `json:"end_time"`   // seconds from recording start
	Confidence     float64 `json:"confidence"` // 0..1
}

// RawRecording is the classifier output for one audio file. On disk it is a
// three element JSON array: [timestamp, pnum, segments].
type RawRecording struct {
	Timestamp string    // YYYYMMDD_HHMMSS, the recording start
	PNum      string    // breeding attempt identifier
	Segments  []Segment // in classifier order
}

// MarshalJSON encodes the recording as a [timestamp, pnum, segments] tuple.
func (r RawRecording) MarshalJSON() ([]byte, error) {
	segments := r.Segments
	if segments == nil {
		segments = []Segment{}
	}
	return json.Marshal([3]any{r.Timestamp, r.PNum, segments})
}

// Detection is an extracted record. A null detection has StartTime, EndTime
// and Confidence all nil and stands for a recording without the species.
type Detection struct {
	Timestamp  string   `json:"timestamp"`
	PNum       string   `json:"pnum"`
	Date       string   `json:"date"`
	StartTime  *float64 `json:"start_time"`
	EndTime    *float64 `json:"end_time"`
	Confidence *float64 `json:"confidence"`
}

// IsNull reports whether d is a null placeholder.
func (d Detection) IsNull() bool {
	return d.Confidence == nil
}

// NormalizedDetection is a Detection with calendar-aligned fields.
type NormalizedDetection struct {
	Timestamp     string
	PNum          string
	Date          time.Time // calendar date of the recording, UTC midnight
	StartTime     *float64
	EndTime       *float64
	Confidence    *float64
	StartDatetime *time.Time
	EndDatetime   *time.Time
	Location      string
	Year          *int
	DayOfYear     *int
}

// Count is 1 for a positive detection and 0 for a null placeholder.
func (n NormalizedDetection) Count() int {
	if n.Confidence == nil {
		return 0
	}
	return 1
}

// Float returns a pointer to v, for building records by hand.
func Float(v float64) *float64 {
	return &v
}
