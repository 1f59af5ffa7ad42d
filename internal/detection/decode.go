package detection

import (
	"fmt"
	"io"

	"github.com/antonholmquist/jason"

	"github.com/nilomr/majorvocal/internal/errors"
)

// DecodeRecordings reads a JSON array of [timestamp, pnum, segments] tuples.
// Any element that does not have exactly that shape fails the whole read
// with ErrMalformedRecord.
func DecodeRecordings(r io.Reader) ([]RawRecording, error) {
	root, err := jason.NewValueFromReader(r)
	if err != nil {
		return nil, recordError(ErrMalformedRecord, errors.CategoryMalformedRecord, -1, "", "",
			fmt.Sprintf("input is not valid JSON: %v", err))
	}

	items, err := root.Array()
	if err != nil {
		return nil, recordError(ErrMalformedRecord, errors.CategoryMalformedRecord, -1, "", "",
			"input is not a JSON array of recordings")
	}

	recordings := make([]RawRecording, 0, len(items))
	for i, item := range items {
		rec, err := decodeTuple(item, i)
		if err != nil {
			return nil, err
		}
		recordings = append(recordings, rec)
	}
	return recordings, nil
}

// DecodeRecording reads a single [timestamp, pnum, segments] tuple, as
// stored in the per-file classifier cache.
func DecodeRecording(r io.Reader) (RawRecording, error) {
	v, err := jason.NewValueFromReader(r)
	if err != nil {
		return RawRecording{}, recordError(ErrMalformedRecord, errors.CategoryMalformedRecord, 0, "", "",
			fmt.Sprintf("input is not valid JSON: %v", err))
	}
	return decodeTuple(v, 0)
}

func decodeTuple(v *jason.Value, index int) (RawRecording, error) {
	fields, err := v.Array()
	if err != nil {
		return RawRecording{}, recordError(ErrMalformedRecord, errors.CategoryMalformedRecord, index, "", "",
			"recording is not an array")
	}
	if len(fields) != 3 {
		return RawRecording{}, recordError(ErrMalformedRecord, errors.CategoryMalformedRecord, index, "", "",
			fmt.Sprintf("recording has %d fields, want 3 (timestamp, pnum, segments)", len(fields)))
	}

	timestamp, err := fields[0].String()
	if err != nil {
		return RawRecording{}, recordError(ErrMalformedRecord, errors.CategoryMalformedRecord, index, "", "",
			"timestamp is not a string")
	}
	pnum, err := fields[1].String()
	if err != nil {
		return RawRecording{}, recordError(ErrMalformedRecord, errors.CategoryMalformedRecord, index, timestamp, "",
			"pnum is not a string")
	}
	items, err := fields[2].Array()
	if err != nil {
		return RawRecording{}, recordError(ErrMalformedRecord, errors.CategoryMalformedRecord, index, timestamp, pnum,
			"segments is not an array")
	}

	rec := RawRecording{
		Timestamp: timestamp,
		PNum:      pnum,
		Segments:  make([]Segment, 0, len(items)),
	}
	for j, item := range items {
		seg, constraint := decodeSegment(item)
		if constraint != "" {
			return RawRecording{}, recordError(ErrMalformedRecord, errors.CategoryMalformedRecord, index, timestamp, pnum,
				fmt.Sprintf("segment %d: %s", j, constraint))
		}
		rec.Segments = append(rec.Segments, seg)
	}
	return rec, nil
}

// decodeSegment returns the segment or a description of the violated constraint.
func decodeSegment(v *jason.Value) (Segment, string) {
	obj, err := v.Object()
	if err != nil {
		return Segment{}, "segment is not an object"
	}

	var seg Segment
	if seg.ScientificName, err = obj.GetString("scientific_name"); err != nil {
		return Segment{}, "scientific_name is missing or not a string"
	}
	if common, err := obj.GetString("common_name"); err == nil {
		seg.CommonName = common
	}
	if seg.StartTime, err = obj.GetFloat64("start_time"); err != nil {
		return Segment{}, "start_time is missing or not a number"
	}
	if seg.EndTime, err = obj.GetFloat64("end_time"); err != nil {
		return Segment{}, "end_time is missing or not a number"
	}
	if seg.Confidence, err = obj.GetFloat64("confidence"); err != nil {
		return Segment{}, "confidence is missing or not a number"
	}
	return seg, ""
}
