// Package config defines the process-level configuration surface (§6):
// data directory, segment sizing, flush policy, retention, and group
// lease timing. It follows the functional-options pattern and reads an
// optional YAML file resolved the same way the teacher resolved its
// PKI material - CONFIG_DIR, falling back to a dotfile in the user's
// home directory.
package config

import (
	"strings"
	"time"

	"github.com/stackwave/qlog/internal/flush"
)

// Options holds every tunable the core and its process wiring need.
type Options struct {
	// DataDir is where topic subdirectories (and their segments) live.
	DataDir string `yaml:"data_dir"`

	// MaxSegmentBytes is the store size that triggers segment rotation.
	MaxSegmentBytes uint64 `yaml:"max_segment_bytes"`
	// MaxMessageBytes bounds a single record's payload.
	MaxMessageBytes uint64 `yaml:"max_message_bytes"`
	// Retention is how long a sealed segment survives after its last
	// write before Truncate may remove it. Zero means every sealed
	// segment is immediately eligible; negative disables the pass.
	Retention time.Duration `yaml:"retention"`

	// FlushStrategy names one of: immediate, message-based, time-based,
	// hybrid, os-controlled.
	FlushStrategy string `yaml:"flush_strategy"`
	// FlushMessageCount is N for message-based and hybrid.
	FlushMessageCount uint64 `yaml:"flush_message_count"`
	// FlushInterval is Delta for time-based and hybrid.
	FlushInterval time.Duration `yaml:"flush_interval"`
	// ForceMetadata requests a full fsync rather than a data-only sync.
	ForceMetadata bool `yaml:"force_metadata"`

	// HeartbeatTimeout is how long a group leader's lease survives
	// without a renewing heartbeat before it is considered expired.
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout"`

	// LogEnvironment selects the zap logger profile: development or
	// production.
	LogEnvironment string `yaml:"log_environment"`
}

// OptionFunc mutates an Options during construction.
type OptionFunc func(*Options)

// New builds an Options starting from the package defaults and applies
// every OptionFunc in order.
func New(opts ...OptionFunc) Options {
	o := NewDefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithDataDir overrides the data directory.
func WithDataDir(dir string) OptionFunc {
	return func(o *Options) {
		dir = strings.TrimSpace(dir)
		if dir != "" {
			o.DataDir = dir
		}
	}
}

// WithMaxSegmentBytes overrides the rotation threshold.
func WithMaxSegmentBytes(size uint64) OptionFunc {
	return func(o *Options) {
		if size > 0 {
			o.MaxSegmentBytes = size
		}
	}
}

// WithMaxMessageBytes overrides the per-record payload bound.
func WithMaxMessageBytes(size uint64) OptionFunc {
	return func(o *Options) {
		if size > 0 {
			o.MaxMessageBytes = size
		}
	}
}

// WithRetention overrides the segment retention window. Zero means a
// cutoff of now (every sealed segment is immediately eligible);
// negative disables the retention pass entirely.
func WithRetention(d time.Duration) OptionFunc {
	return func(o *Options) {
		o.Retention = d
	}
}

// WithFlushPolicy overrides every flush-related field from an already
// validated flush.Policy.
func WithFlushPolicy(p flush.Policy) OptionFunc {
	return func(o *Options) {
		o.FlushStrategy = p.Strategy.String()
		o.FlushMessageCount = p.MessageCount
		o.FlushInterval = p.Interval
		o.ForceMetadata = p.ForceMetadata
	}
}

// WithHeartbeatTimeout overrides the group leader lease timeout.
func WithHeartbeatTimeout(d time.Duration) OptionFunc {
	return func(o *Options) {
		if d > 0 {
			o.HeartbeatTimeout = d
		}
	}
}

// WithLogEnvironment overrides the logger profile.
func WithLogEnvironment(env string) OptionFunc {
	return func(o *Options) {
		env = strings.TrimSpace(env)
		if env != "" {
			o.LogEnvironment = env
		}
	}
}

// FlushPolicy renders the YAML-facing flush fields into a flush.Policy.
func (o Options) FlushPolicy() flush.Policy {
	p := flush.Policy{
		MessageCount:     o.FlushMessageCount,
		Interval:         o.FlushInterval,
		ForceMetadata:    o.ForceMetadata,
		PageCacheEnabled: true,
	}
	switch o.FlushStrategy {
	case flush.MessageBased.String():
		p.Strategy = flush.MessageBased
	case flush.TimeBased.String():
		p.Strategy = flush.TimeBased
	case flush.Hybrid.String():
		p.Strategy = flush.Hybrid
	case flush.OsControlled.String():
		p.Strategy = flush.OsControlled
	default:
		p.Strategy = flush.Immediate
	}
	return p
}
