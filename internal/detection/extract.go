package detection

import "strings"

// Observer is notified once per processed recording. A progress bar from
// github.com/vbauerster/mpb satisfies it.
type Observer interface {
	Increment()
}

// Option configures Extract.
type Option func(*extractOptions)

type extractOptions struct {
	observer Observer
}

// WithProgress reports progress to o. It never changes the output.
func WithProgress(o Observer) Option {
	return func(opts *extractOptions) {
		opts.observer = o
	}
}

// Extract returns the detections of species in recordings. Matching is
// exact and case-sensitive on the scientific name. Recordings keep input
// order, and segments keep their order within a recording. A recording with
// no match, including one with no segments, yields one null Detection at
// its position.
func Extract(recordings []RawRecording, species string, opts ...Option) []Detection {
	var o extractOptions
	for _, opt := range opts {
		opt(&o)
	}

	out := make([]Detection, 0, len(recordings))
	for _, rec := range recordings {
		date := datePrefix(rec.Timestamp)
		matched := 0

		for _, seg := range rec.Segments {
			if seg.ScientificName != species {
				continue
			}
			out = append(out, Detection{
				Timestamp:  rec.Timestamp,
				PNum:       rec.PNum,
				Date:       date,
				StartTime:  Float(seg.StartTime),
				EndTime:    Float(seg.EndTime),
				Confidence: Float(seg.Confidence),
			})
			matched++
		}

		if matched == 0 {
			out = append(out, Detection{
				Timestamp: rec.Timestamp,
				PNum:      rec.PNum,
				Date:      date,
			})
		}

		if o.observer != nil {
			o.observer.Increment()
		}
	}

	return out
}

// datePrefix returns the timestamp up to the first underscore.
func datePrefix(timestamp string) string {
	date, _, _ := strings.Cut(timestamp, "_")
	return date
}
