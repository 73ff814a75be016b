package config

import "time"

const (
	// DefaultMaxSegmentBytes is the store size that triggers rotation.
	DefaultMaxSegmentBytes uint64 = 1024 * 1024
	// DefaultMaxMessageBytes bounds a single record's payload.
	DefaultMaxMessageBytes uint64 = 1024 * 1024
	// DefaultRetention is the sealed-segment age cutoff for Truncate.
	DefaultRetention = 7 * 24 * time.Hour
	// DefaultHeartbeatTimeout is how long a group leader's lease survives
	// without renewal (§4.9).
	DefaultHeartbeatTimeout = 10 * time.Second
	// DefaultFlushStrategy forces after every append.
	DefaultFlushStrategy = "immediate"
	// DefaultLogEnvironment selects the human-readable console encoder.
	DefaultLogEnvironment = "development"
)

var defaultOptions = Options{
	DataDir:          DefaultDataDir(),
	MaxSegmentBytes:  DefaultMaxSegmentBytes,
	MaxMessageBytes:  DefaultMaxMessageBytes,
	Retention:        DefaultRetention,
	FlushStrategy:    DefaultFlushStrategy,
	HeartbeatTimeout: DefaultHeartbeatTimeout,
	LogEnvironment:   DefaultLogEnvironment,
}

// NewDefaultOptions returns the package default configuration.
func NewDefaultOptions() Options {
	return defaultOptions
}
