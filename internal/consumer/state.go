// Package consumer implements the broadcast consumption model of §4.8:
// every registered consumer id tracks its own read cursor over a
// topic's log, independent of every other consumer.
package consumer

import (
	"sync"

	"github.com/google/uuid"

	"github.com/stackwave/qlog/internal/commitlog"
	"github.com/stackwave/qlog/internal/errs"
	"github.com/stackwave/qlog/internal/record"
)

// NewID generates a random consumer id for callers that don't supply
// their own.
func NewID() string {
	return uuid.NewString()
}

// State tracks per-consumer-id read offsets for one topic.
type State struct {
	mu      sync.Mutex
	offsets map[string]uint64
}

// NewState returns an empty broadcast consumer state.
func NewState() *State {
	return &State{offsets: make(map[string]uint64)}
}

// Register adds consumerID with the given starting offset, leaving an
// already-registered consumer's cursor untouched.
func (s *State) Register(consumerID string, startOffset uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offsets[consumerID]; !ok {
		s.offsets[consumerID] = startOffset
	}
}

// Unregister drops consumerID's cursor entirely.
func (s *State) Unregister(consumerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.offsets, consumerID)
}

// Consume reads up to maxMessages records starting at the greater of
// startOffset and consumerID's cursor, then advances the cursor past
// whatever was read (§4.8). startOffset lets a caller skip ahead of its
// stored position; a startOffset behind the cursor is ignored, so the
// cursor never moves backwards.
// It returns fewer than maxMessages records, possibly zero, once the
// log is exhausted.
func (s *State) Consume(consumerID string, log *commitlog.Log, startOffset, maxMessages uint64) ([]*record.Record, error) {
	s.mu.Lock()
	cursor, ok := s.offsets[consumerID]
	s.mu.Unlock()
	if !ok {
		return nil, errs.New(errs.Conflict, "consumer is not registered: "+consumerID)
	}

	off := startOffset
	if cursor > off {
		off = cursor
	}

	var recs []*record.Record
	cur := off
	for uint64(len(recs)) < maxMessages {
		rec, err := log.Read(cur)
		if err != nil {
			return recs, err
		}
		if rec == nil {
			break
		}
		recs = append(recs, rec)
		cur++
	}

	s.mu.Lock()
	if s.offsets[consumerID] < cur {
		s.offsets[consumerID] = cur
	}
	s.mu.Unlock()
	return recs, nil
}

// Offset returns consumerID's current cursor, or ok=false if it is not
// registered (supplements §4.8 with a direct cursor inspection call).
func (s *State) Offset(consumerID string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	off, ok := s.offsets[consumerID]
	return off, ok
}
