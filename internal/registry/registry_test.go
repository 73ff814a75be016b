package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stackwave/qlog/internal/commitlog"
)

func testConfigFn(name string) commitlog.Config {
	cfg := commitlog.DefaultConfig()
	cfg.MaxSegmentBytes = 1024
	return cfg
}

func TestGetOrCreateReturnsSameTopic(t *testing.T) {
	r := New(t.TempDir(), testConfigFn, time.Second, nil)

	t1, err := r.GetOrCreate("orders")
	require.NoError(t, err)
	t2, err := r.GetOrCreate("orders")
	require.NoError(t, err)
	require.Same(t, t1, t2)
}

func TestGetOrCreateRejectsInvalidName(t *testing.T) {
	r := New(t.TempDir(), testConfigFn, time.Second, nil)
	_, err := r.GetOrCreate("invalid/topic name!")
	require.Error(t, err)
}

func TestGetWithoutCreate(t *testing.T) {
	r := New(t.TempDir(), testConfigFn, time.Second, nil)
	_, ok := r.Get("orders")
	require.False(t, ok)

	_, err := r.GetOrCreate("orders")
	require.NoError(t, err)
	_, ok = r.Get("orders")
	require.True(t, ok)
}

func TestCloseAll(t *testing.T) {
	r := New(t.TempDir(), testConfigFn, time.Second, nil)
	_, err := r.GetOrCreate("a")
	require.NoError(t, err)
	_, err = r.GetOrCreate("b")
	require.NoError(t, err)
	require.NoError(t, r.CloseAll())
}
