// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Status label values.
const (
	// StatusSuccess marks a recording that was classified.
	StatusSuccess = "success"
	// StatusCached marks a recording loaded from an earlier run's per-file JSON.
	StatusCached = "cached"
	// StatusError marks a recording that failed probing or classification.
	StatusError = "error"
)

// Stage label values.
const (
	StageScan      = "scan"
	StageInfer     = "infer"
	StageDecode    = "decode"
	StageExtract   = "extract"
	StageNormalize = "normalize"
	StageAggregate = "aggregate"
	StageWrite     = "write"
	StagePersist   = "persist"
)

// Record kind label values.
const (
	KindRecording = "recording"
	KindPositive  = "positive"
	KindNull      = "null"
)

// Histogram bucket constants.
const (
	// BucketStart100ms is the starting bucket for 100ms histograms (100ms to ~100s range).
	BucketStart100ms = 0.1
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)

// ShutdownTimeout bounds the graceful shutdown of the metrics endpoint.
const ShutdownTimeout = 5 * time.Second
