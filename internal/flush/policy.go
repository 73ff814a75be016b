// Package flush implements the FlushPolicy of §4.6: the strategies that
// decide when a Store forces buffered writes to stable storage, plus the
// background timer task that drives time-based forcing.
package flush

import (
	"time"

	"github.com/stackwave/qlog/internal/errs"
)

// Strategy names one of the five recognized forcing strategies.
type Strategy int

const (
	// Immediate forces after every append.
	Immediate Strategy = iota
	// MessageBased forces every N appends.
	MessageBased
	// TimeBased forces when Delta ms have elapsed since the last force.
	TimeBased
	// Hybrid forces on whichever of MessageBased/TimeBased fires first.
	Hybrid
	// OsControlled never forces; the OS page cache decides.
	OsControlled
)

func (s Strategy) String() string {
	switch s {
	case Immediate:
		return "immediate"
	case MessageBased:
		return "message-based"
	case TimeBased:
		return "time-based"
	case Hybrid:
		return "hybrid"
	case OsControlled:
		return "os-controlled"
	default:
		return "unknown"
	}
}

// backgroundTickCap bounds the background timer's wake interval (§4.6,
// §9): it wakes at min(Delta/4, 100ms).
const backgroundTickCap = 100 * time.Millisecond

// Policy configures when a Store forces data (and optionally metadata)
// to stable storage.
type Policy struct {
	Strategy Strategy

	// MessageCount is N for MessageBased and Hybrid.
	MessageCount uint64
	// Interval is Delta for TimeBased and Hybrid.
	Interval time.Duration

	// ForceMetadata requests fsync (inode metadata too) instead of
	// fdatasync semantics.
	ForceMetadata bool
	// PageCacheEnabled, when false, forces immediately after every
	// append regardless of Strategy.
	PageCacheEnabled bool
}

// NewImmediate returns the Immediate strategy policy: force on every write.
func NewImmediate(forceMetadata bool) Policy {
	return Policy{Strategy: Immediate, ForceMetadata: forceMetadata, PageCacheEnabled: true}
}

// Validate checks that a strategy's bounds are finite, per §4.6.
func (p Policy) Validate() error {
	switch p.Strategy {
	case MessageBased:
		if p.MessageCount == 0 {
			return errs.New(errs.IoError, "message-based flush policy requires a finite message count")
		}
	case TimeBased:
		if p.Interval <= 0 {
			return errs.New(errs.IoError, "time-based flush policy requires a finite interval")
		}
	case Hybrid:
		if p.MessageCount == 0 || p.Interval <= 0 {
			return errs.New(errs.IoError, "hybrid flush policy requires finite message count and interval")
		}
	case Immediate, OsControlled:
		// no bounds to validate
	default:
		return errs.New(errs.IoError, "unrecognized flush strategy")
	}
	return nil
}

// ForceOnAppend reports whether a force should happen synchronously,
// right after an append, given how many appends have accumulated since
// the last force. Immediate always forces; a disabled page cache forces
// regardless of the configured strategy, overriding non-Immediate
// strategies as §4.6 specifies.
func (p Policy) ForceOnAppend(appendsSinceForce uint64) bool {
	if p.Strategy == Immediate || !p.PageCacheEnabled {
		return true
	}
	switch p.Strategy {
	case MessageBased:
		return appendsSinceForce >= p.MessageCount
	case Hybrid:
		return appendsSinceForce >= p.MessageCount
	default:
		return false
	}
}

// UsesBackgroundTimer reports whether this policy needs the background
// timer task (TimeBased and Hybrid).
func (p Policy) UsesBackgroundTimer() bool {
	return p.Strategy == TimeBased || p.Strategy == Hybrid
}

// TickInterval returns the bounded wake interval for the background
// timer task: min(Delta/4, 100ms).
func (p Policy) TickInterval() time.Duration {
	quarter := p.Interval / 4
	if quarter <= 0 || quarter > backgroundTickCap {
		return backgroundTickCap
	}
	return quarter
}
