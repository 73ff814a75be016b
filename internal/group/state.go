// Package group implements the exclusive consumption model of §4.9: the
// members of a consumer group share a single read cursor, and only the
// current lease holder may advance it. Leadership is granted on join
// and renewed by Heartbeat or Consume; a vacant or expired lease is up
// for grabs by the next member to call Join, Heartbeat or Consume.
package group

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stackwave/qlog/internal/commitlog"
	"github.com/stackwave/qlog/internal/errs"
	"github.com/stackwave/qlog/internal/record"
)

// NewMemberID generates a random group member id for callers that
// don't supply their own.
func NewMemberID() string {
	return uuid.NewString()
}

// State tracks one group's shared cursor and lease.
type State struct {
	mu sync.Mutex

	heartbeatTimeout time.Duration

	leaderID    string
	leaseExpiry time.Time
	offset      uint64
	members     map[string]bool
}

// NewState returns an empty group with no leader and no members.
func NewState(heartbeatTimeout time.Duration) *State {
	return &State{
		heartbeatTimeout: heartbeatTimeout,
		members:          make(map[string]bool),
	}
}

// Join adds memberID to the group and, if the lease is vacant or
// expired, grants it leadership. It reports whether memberID is now the
// leader.
func (g *State) Join(memberID string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members[memberID] = true
	return g.electLocked(memberID, now)
}

// Leave removes memberID from the group. If it held the lease, the
// lease is vacated immediately so another member may claim it.
func (g *State) Leave(memberID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.members, memberID)
	if g.leaderID == memberID {
		g.leaderID = ""
	}
}

// Heartbeat renews memberID's lease if it already holds it, or claims a
// vacant/expired lease on its behalf. It fails Conflict if another
// member currently holds a live lease.
func (g *State) Heartbeat(memberID string, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.members[memberID] {
		return errs.New(errs.Conflict, "heartbeat from unregistered member")
	}
	if g.electLocked(memberID, now) {
		return nil
	}
	return errs.New(errs.Conflict, "another member holds the group lease")
}

// electLocked grants memberID the lease if it already holds it, or if
// the current lease is vacant or expired. Callers must hold mu.
func (g *State) electLocked(memberID string, now time.Time) bool {
	if g.leaderID == memberID || g.leaderID == "" || now.After(g.leaseExpiry) {
		g.leaderID = memberID
		g.leaseExpiry = now.Add(g.heartbeatTimeout)
		return true
	}
	return false
}

// Consume elects memberID as leader if the lease is vacant or expired,
// then, only if memberID now holds the lease, reads up to maxMessages
// records forward from the shared cursor and advances it past what was
// read (§4.9 steps 2-4). A non-leader gets (nil, nil): the lease is
// simply held elsewhere, not a Conflict.
func (g *State) Consume(memberID string, log *commitlog.Log, now time.Time, maxMessages uint64) ([]*record.Record, error) {
	g.mu.Lock()
	g.members[memberID] = true
	if !g.electLocked(memberID, now) {
		g.mu.Unlock()
		return nil, nil
	}
	off := g.offset
	g.mu.Unlock()

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

	g.mu.Lock()
	if g.offset == off {
		g.offset = cur
	}
	g.mu.Unlock()
	return recs, nil
}

// Offset returns the group's current shared cursor.
func (g *State) Offset() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.offset
}

// Reset forces the group's shared cursor to offset, for operator-driven
// replay (supplements §4.9 with an explicit rewind/fast-forward call).
func (g *State) Reset(offset uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.offset = offset
}

// Leader returns the current lease holder, or "" if the lease is
// vacant or expired as of now.
func (g *State) Leader(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.leaderID == "" || now.After(g.leaseExpiry) {
		return ""
	}
	return g.leaderID
}
