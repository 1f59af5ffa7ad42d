package detection

import (
	"fmt"

	"github.com/nilomr/majorvocal/internal/errors"
)

// Sentinel errors. Every error returned by this package wraps exactly one of
// them, so callers can branch with errors.Is.
var (
	// ErrMalformedRecord means a raw recording is not a
	// [timestamp, pnum, segments] tuple or a segment is invalid.
	ErrMalformedRecord = errors.NewStd("malformed record")

	// ErrTimestampParse means a timestamp or date does not match its layout.
	ErrTimestampParse = errors.NewStd("timestamp parse error")

	// ErrMalformedIdentifier means a pnum is too short to carry a location code.
	ErrMalformedIdentifier = errors.NewStd("malformed identifier")
)

// recordError builds a batch-fatal error naming the offending record.
func recordError(sentinel error, category errors.ErrorCategory, index int, timestamp, pnum, constraint string) error {
	return errors.New(fmt.Errorf("%w: record %d (timestamp %q, pnum %q): %s",
		sentinel, index, timestamp, pnum, constraint)).
		Component("detection").
		Category(category).
		Priority(errors.PriorityHigh).
		Context("index", index).
		Context("timestamp", timestamp).
		Context("pnum", pnum).
		Context("constraint", constraint).
		Build()
}
