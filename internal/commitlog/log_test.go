package commitlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxSegmentBytes = 64
	return cfg
}

func TestLogAppendRead(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, testConfig())
	require.NoError(t, err)
	defer l.Close()

	off, err := l.Append([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), off)

	rec, err := l.Read(off)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), rec.Data)
}

func TestLogReadMissingOffset(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, testConfig())
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Append([]byte("hello"))
	require.NoError(t, err)

	rec, err := l.Read(99)
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestLogRejectsEmptyAndOversizedPayload(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.MaxMessageBytes = 4
	l, err := Open(dir, cfg)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Append(nil)
	require.Error(t, err)

	_, err = l.Append([]byte("too long"))
	require.Error(t, err)
}

func TestLogRotatesOnFullSegment(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, testConfig())
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 10; i++ {
		_, err := l.Append([]byte("0123456789"))
		require.NoError(t, err)
	}
	require.Greater(t, len(l.segments), 1)

	// every offset remains readable across the rotated segment boundary
	for i := uint64(0); i < 10; i++ {
		rec, err := l.Read(i)
		require.NoError(t, err)
		require.NotNil(t, rec)
		require.Equal(t, i, rec.Offset)
	}
}

func TestLogReopenRecoversSegments(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, testConfig())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := l.Append([]byte("0123456789"))
		require.NoError(t, err)
	}
	require.NoError(t, l.Close())

	l2, err := Open(dir, testConfig())
	require.NoError(t, err)
	defer l2.Close()

	require.Equal(t, uint64(10), l2.NextOffset())
	rec, err := l2.Read(3)
	require.NoError(t, err)
	require.Equal(t, []byte("0123456789"), rec.Data)
}

func TestLogClosedRejectsOperations(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, testConfig())
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = l.Append([]byte("x"))
	require.Error(t, err)

	// Close is idempotent
	require.NoError(t, l.Close())
}

func TestLogTruncateRetainsActiveSegment(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Retention = time.Millisecond
	l, err := Open(dir, cfg)
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 10; i++ {
		_, err := l.Append([]byte("0123456789"))
		require.NoError(t, err)
	}
	require.Greater(t, len(l.segments), 1)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, l.Truncate(time.Now()))
	require.Equal(t, 1, len(l.segments))
	require.Equal(t, l.active, l.segments[0])
}

func TestLogTruncateZeroRetentionPurgesSealedSegments(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Retention = 0
	l, err := Open(dir, cfg)
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 10; i++ {
		_, err := l.Append([]byte("0123456789"))
		require.NoError(t, err)
	}
	require.Greater(t, len(l.segments), 1)

	require.NoError(t, l.Truncate(time.Now()))
	require.Equal(t, 1, len(l.segments))
	require.Equal(t, l.active, l.segments[0])
}

func TestLogTruncateNegativeRetentionDisablesPass(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Retention = -1
	l, err := Open(dir, cfg)
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 10; i++ {
		_, err := l.Append([]byte("0123456789"))
		require.NoError(t, err)
	}
	segCount := len(l.segments)
	require.Greater(t, segCount, 1)

	require.NoError(t, l.Truncate(time.Now()))
	require.Equal(t, segCount, len(l.segments))
}

func TestLogRecoversLegacySegmentNaming(t *testing.T) {
	dir := t.TempDir()

	// simulate a pre-migration directory laid out with the historical
	// `segment-N` stem and `.log` store extension
	l, err := Open(dir, testConfig())
	require.NoError(t, err)
	_, err = l.Append([]byte("legacy-record"))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	storePath := filepath.Join(dir, "00000000000000000000.store")
	indexPath := filepath.Join(dir, "00000000000000000000.index")
	require.NoError(t, os.Rename(storePath, filepath.Join(dir, "segment-0.log")))
	require.NoError(t, os.Rename(indexPath, filepath.Join(dir, "segment-0.index")))

	l2, err := Open(dir, testConfig())
	require.NoError(t, err)
	defer l2.Close()

	rec, err := l2.Read(0)
	require.NoError(t, err)
	require.Equal(t, []byte("legacy-record"), rec.Data)

	// appends continue on the recovered legacy segment, assigning offsets
	// in sequence
	off, err := l2.Append([]byte("modern-record"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), off)
}
