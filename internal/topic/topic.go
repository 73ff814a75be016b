// Package topic provides the per-topic facade (§6) over a commitlog.Log
// plus its broadcast consumer state and its exclusive consumer groups.
package topic

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stackwave/qlog/internal/commitlog"
	"github.com/stackwave/qlog/internal/consumer"
	"github.com/stackwave/qlog/internal/group"
	"github.com/stackwave/qlog/internal/record"
)

// Topic owns one topic's log, its broadcast consumers, and its
// exclusive consumer groups.
type Topic struct {
	name string
	log  *commitlog.Log

	heartbeatTimeout time.Duration
	consumers        *consumer.State

	mu     sync.Mutex
	groups map[string]*group.State

	logger *zap.Logger
}

// Open opens (or recovers) the topic's log at dir and returns a ready
// Topic facade.
func Open(name, dir string, cfg commitlog.Config, heartbeatTimeout time.Duration, logger *zap.Logger) (*Topic, error) {
	log, err := commitlog.Open(dir, cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Topic{
		name:             name,
		log:              log,
		heartbeatTimeout: heartbeatTimeout,
		consumers:        consumer.NewState(),
		groups:           make(map[string]*group.State),
		logger:           logger.Named("topic").With(zap.String("topic", name)),
	}, nil
}

// Name returns the topic's name.
func (t *Topic) Name() string { return t.name }

// Publish appends payload to the topic's log and returns the assigned
// offset. requireDurability forces the write through immediately
// regardless of the topic's configured flush policy.
func (t *Topic) Publish(payload []byte, requireDurability bool) (uint64, error) {
	off, err := t.log.Append(payload)
	if err != nil {
		return 0, err
	}
	if requireDurability {
		if err := t.log.Flush(); err != nil {
			return off, err
		}
	}
	return off, nil
}

// Read returns the record stored at offset, or (nil, nil) if absent.
func (t *Topic) Read(offset uint64) (*record.Record, error) {
	return t.log.Read(offset)
}

// Stat summarizes the topic's log.
func (t *Topic) Stat() commitlog.Stat {
	return t.log.Stat()
}

// RegisterConsumer adds a broadcast consumer starting at startOffset
// and returns the id it was registered under. An empty consumerID gets
// a generated one, for callers that don't track their own identity.
func (t *Topic) RegisterConsumer(consumerID string, startOffset uint64) string {
	if consumerID == "" {
		consumerID = consumer.NewID()
	}
	t.consumers.Register(consumerID, startOffset)
	return consumerID
}

// UnregisterConsumer drops a broadcast consumer's cursor.
func (t *Topic) UnregisterConsumer(consumerID string) {
	t.consumers.Unregister(consumerID)
}

// ConsumeBroadcast reads up to maxMessages records starting at the
// greater of startOffset and consumerID's cursor, advancing the cursor
// past whatever was read.
func (t *Topic) ConsumeBroadcast(consumerID string, startOffset, maxMessages uint64) ([]*record.Record, error) {
	return t.consumers.Consume(consumerID, t.log, startOffset, maxMessages)
}

// ConsumerOffset returns a registered broadcast consumer's cursor.
func (t *Topic) ConsumerOffset(consumerID string) (uint64, bool) {
	return t.consumers.Offset(consumerID)
}

// groupState returns the named group's state, creating it on first use.
func (t *Topic) groupState(name string) *group.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.groups[name]
	if !ok {
		g = group.NewState(t.heartbeatTimeout)
		t.groups[name] = g
	}
	return g
}

// JoinGroup adds memberID to groupName, reporting the id it joined
// under and whether it now holds the group's exclusive lease. An empty
// memberID gets a generated one.
func (t *Topic) JoinGroup(groupName, memberID string) (string, bool) {
	if memberID == "" {
		memberID = group.NewMemberID()
	}
	return memberID, t.groupState(groupName).Join(memberID, time.Now())
}

// LeaveGroup removes memberID from groupName.
func (t *Topic) LeaveGroup(groupName, memberID string) {
	t.groupState(groupName).Leave(memberID)
}

// HeartbeatGroup renews or claims memberID's lease on groupName.
func (t *Topic) HeartbeatGroup(groupName, memberID string) error {
	return t.groupState(groupName).Heartbeat(memberID, time.Now())
}

// ConsumeGroup elects memberID leader of groupName if the lease is
// vacant or expired, then, only if it now holds the lease, reads up to
// maxMessages records forward from the group's shared cursor.
func (t *Topic) ConsumeGroup(groupName, memberID string, maxMessages uint64) ([]*record.Record, error) {
	return t.groupState(groupName).Consume(memberID, t.log, time.Now(), maxMessages)
}

// ResetGroup forces groupName's shared cursor to offset.
func (t *Topic) ResetGroup(groupName string, offset uint64) {
	t.groupState(groupName).Reset(offset)
}

// Truncate runs the topic log's retention pass as of now.
func (t *Topic) Truncate(now time.Time) error {
	return t.log.Truncate(now)
}

// Close flushes and closes the topic's log.
func (t *Topic) Close() error {
	return t.log.Close()
}
