package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stackwave/qlog/internal/flush"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	o, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, NewDefaultOptions(), o)
}

func TestLoadOverlaysFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_segment_bytes: 2048\nflush_strategy: message-based\nflush_message_count: 10\n"), 0644))

	o, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint64(2048), o.MaxSegmentBytes)
	require.Equal(t, "message-based", o.FlushStrategy)
	require.Equal(t, uint64(10), o.FlushMessageCount)
	// unset fields keep their defaults
	require.Equal(t, DefaultRetention, o.Retention)
}

func TestNewAppliesOptionFuncsOverDefaults(t *testing.T) {
	o := New(WithDataDir("/tmp/qlog-data"), WithMaxMessageBytes(4096))
	require.Equal(t, "/tmp/qlog-data", o.DataDir)
	require.Equal(t, uint64(4096), o.MaxMessageBytes)
	require.Equal(t, DefaultMaxSegmentBytes, o.MaxSegmentBytes)
}

func TestFlushPolicyTranslation(t *testing.T) {
	hybrid := flush.Policy{Strategy: flush.Hybrid, MessageCount: 5, Interval: time.Second}
	o := New(WithFlushPolicy(hybrid))
	p := o.FlushPolicy()
	require.Equal(t, flush.Hybrid, p.Strategy)
	require.Equal(t, uint64(5), p.MessageCount)
}
