package flush

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Forcer is anything the background task can force to stable storage -
// implemented by store.Store's Flush method.
type Forcer interface {
	Flush(metadataAlso bool) error
}

// shutdownWait bounds how long Stop waits for the task goroutine to
// join before abandoning it (§5: "joins with a bounded wait (<= 1s),
// then is abandoned").
const shutdownWait = time.Second

// Task is the single background flush timer described in §4.6 and §9:
// one per active segment's store, woken at a bounded interval, forcing
// only when appends are outstanding and the policy's Interval has
// elapsed since the task's last force.
type Task struct {
	policy Policy
	forcer Forcer
	logger *zap.Logger

	pending atomic.Bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewTask builds a background task for a policy that uses a timer
// (TimeBased or Hybrid). Callers should not call NewTask for other
// strategies; Start is a no-op if the policy does not use a timer.
func NewTask(policy Policy, forcer Forcer, logger *zap.Logger) *Task {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Task{
		policy: policy,
		forcer: forcer,
		logger: logger.Named("flush-task"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// MarkPending records that an append has happened without a
// synchronous force, so the next tick knows to force.
func (t *Task) MarkPending() {
	t.pending.Store(true)
}

// Start launches the cooperative timer goroutine. It is a no-op for
// policies that do not use a background timer.
func (t *Task) Start() {
	if !t.policy.UsesBackgroundTimer() {
		close(t.doneCh)
		return
	}
	go t.run()
}

func (t *Task) run() {
	defer close(t.doneCh)
	ticker := time.NewTicker(t.policy.TickInterval())
	defer ticker.Stop()
	lastForce := time.Now()

	for {
		select {
		case <-t.stopCh:
			return
		case now := <-ticker.C:
			if now.Sub(lastForce) < t.policy.Interval {
				continue
			}
			if t.pending.CompareAndSwap(true, false) {
				if err := t.forcer.Flush(t.policy.ForceMetadata); err != nil {
					t.logger.Warn("background flush failed", zap.Error(err))
					t.pending.Store(true)
				} else {
					lastForce = now
				}
			}
		}
	}
}

// Stop signals the background goroutine to exit and waits up to
// shutdownWait for it to join, then returns regardless.
func (t *Task) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
	})
	select {
	case <-t.doneCh:
	case <-time.After(shutdownWait):
	}
}
