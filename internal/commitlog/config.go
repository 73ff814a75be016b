package commitlog

import (
	"time"

	"go.uber.org/zap"

	"github.com/stackwave/qlog/internal/flush"
)

// defaultMaxSegmentBytes is the store size at which a segment is sealed
// and a new active segment is rotated in (§4.5.2).
const defaultMaxSegmentBytes = 1024 * 1024

// defaultMaxMessageBytes bounds a single record's payload (§4.1).
const defaultMaxMessageBytes = 1024 * 1024

// defaultRetention is how long a sealed segment is kept once its newest
// write is older than this, measured from the store file's mtime (§4.5.4).
const defaultRetention = 7 * 24 * time.Hour

// Config configures one Log's on-disk layout and durability behavior.
type Config struct {
	// MaxSegmentBytes is the store size that triggers rotation.
	MaxSegmentBytes uint64
	// MaxMessageBytes bounds a single Append payload.
	MaxMessageBytes uint64
	// InitialOffset is the base offset assigned to a brand-new log with
	// no existing segments on disk.
	InitialOffset uint64
	// Retention is the age, measured from a sealed segment's last write,
	// after which Truncate may remove it. Zero means a cutoff of now -
	// every sealed segment is eligible immediately (§4.5.4). A negative
	// value disables the retention pass entirely.
	Retention time.Duration
	// FlushPolicy governs when the active segment forces data to disk.
	FlushPolicy flush.Policy
	// Logger receives structured events from the log and its segments.
	// A nil Logger falls back to a no-op logger.
	Logger *zap.Logger
}

// DefaultConfig returns a Config with the package defaults: 1MiB
// segments, 1MiB max message size, a 7-day retention window, and an
// immediate-force flush policy.
func DefaultConfig() Config {
	return Config{
		MaxSegmentBytes: defaultMaxSegmentBytes,
		MaxMessageBytes: defaultMaxMessageBytes,
		Retention:       defaultRetention,
		FlushPolicy:     flush.NewImmediate(false),
	}
}

func (c *Config) applyDefaults() {
	if c.MaxSegmentBytes == 0 {
		c.MaxSegmentBytes = defaultMaxSegmentBytes
	}
	if c.MaxMessageBytes == 0 {
		c.MaxMessageBytes = defaultMaxMessageBytes
	}
	if c.FlushPolicy.Strategy == 0 && c.FlushPolicy.Interval == 0 && c.FlushPolicy.MessageCount == 0 {
		c.FlushPolicy = flush.NewImmediate(false)
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}
