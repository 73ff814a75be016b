package group

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stackwave/qlog/internal/commitlog"
)

func testLog(t *testing.T) *commitlog.Log {
	t.Helper()
	cfg := commitlog.DefaultConfig()
	cfg.MaxSegmentBytes = 1024
	l, err := commitlog.Open(t.TempDir(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestJoinGrantsLeaseToFirstMember(t *testing.T) {
	g := NewState(time.Second)
	now := time.Now()
	require.True(t, g.Join("a", now))
	require.False(t, g.Join("b", now))
	require.Equal(t, "a", g.Leader(now))
}

func TestLeaseExpiresAndIsReclaimed(t *testing.T) {
	g := NewState(10 * time.Millisecond)
	start := time.Now()
	require.True(t, g.Join("a", start))

	later := start.Add(20 * time.Millisecond)
	require.Equal(t, "", g.Leader(later))
	require.True(t, g.Join("b", later))
	require.Equal(t, "b", g.Leader(later))
}

func TestLeaveVacatesLease(t *testing.T) {
	g := NewState(time.Second)
	now := time.Now()
	g.Join("a", now)
	g.Leave("a")
	require.Equal(t, "", g.Leader(now))
	require.True(t, g.Join("b", now))
}

func TestHeartbeatRejectsNonLeader(t *testing.T) {
	g := NewState(time.Second)
	now := time.Now()
	g.Join("a", now)
	g.Join("b", now)
	require.Error(t, g.Heartbeat("b", now))
	require.NoError(t, g.Heartbeat("a", now))
}

func TestResetOverridesCursor(t *testing.T) {
	g := NewState(time.Second)
	g.Reset(42)
	require.Equal(t, uint64(42), g.Offset())
}

func TestConsumeElectsVacantLeaseAndReturnsBatch(t *testing.T) {
	l := testLog(t)
	for i := 0; i < 3; i++ {
		_, err := l.Append([]byte("x"))
		require.NoError(t, err)
	}

	g := NewState(time.Second)
	now := time.Now()

	recs, err := g.Consume("a", l, now, 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, "a", g.Leader(now))
	require.Equal(t, uint64(3), g.Offset())
}

func TestConsumeNonLeaderGetsEmptyResultNotError(t *testing.T) {
	l := testLog(t)
	_, err := l.Append([]byte("x"))
	require.NoError(t, err)

	g := NewState(time.Second)
	now := time.Now()
	require.True(t, g.Join("a", now))

	recs, err := g.Consume("b", l, now, 10)
	require.NoError(t, err)
	require.Empty(t, recs)
	require.Equal(t, "a", g.Leader(now))
}

func TestConsumeReclaimsExpiredLeaseFromInactiveLeader(t *testing.T) {
	l := testLog(t)
	for i := 0; i < 20; i++ {
		_, err := l.Append([]byte("x"))
		require.NoError(t, err)
	}

	g := NewState(10 * time.Second)
	start := time.Now()
	require.True(t, g.Join("a", start))

	first, err := g.Consume("a", l, start, 10)
	require.NoError(t, err)
	require.Len(t, first, 10)

	// a goes silent past the heartbeat timeout; b steals leadership by
	// calling Consume directly, without ever calling Join or Heartbeat
	later := start.Add(11 * time.Second)
	second, err := g.Consume("b", l, later, 10)
	require.NoError(t, err)
	require.Len(t, second, 10)
	require.Equal(t, uint64(10), second[0].Offset)
	require.Equal(t, "b", g.Leader(later))
}

func TestConsumeRenewsLeaseOnEverySuccessfulRead(t *testing.T) {
	l := testLog(t)
	for i := 0; i < 5; i++ {
		_, err := l.Append([]byte("x"))
		require.NoError(t, err)
	}

	g := NewState(10 * time.Second)
	start := time.Now()
	require.True(t, g.Join("a", start))

	// without a renewing consume, a's lease from Join would have expired
	later := start.Add(9 * time.Second)
	recs, err := g.Consume("a", l, later, 10)
	require.NoError(t, err)
	require.Len(t, recs, 5)

	// the lease renewed at `later` should still be live shortly after
	require.Equal(t, "a", g.Leader(later.Add(9*time.Second)))
}
