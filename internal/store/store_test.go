package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var write = []byte("hello world")

func TestStoreAppendRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "00000000000000000000.store")

	s, err := Open(path)
	require.NoError(t, err)

	var positions []uint64
	for i := 0; i < 3; i++ {
		pos, err := s.Append(write)
		require.NoError(t, err)
		positions = append(positions, pos)
	}
	require.Equal(t, []uint64{0, uint64(len(write)), uint64(2 * len(write))}, positions)

	for _, pos := range positions {
		data, err := s.Read(pos, uint32(len(write)))
		require.NoError(t, err)
		require.Equal(t, write, data)
	}

	// reopening the same file preserves size and content
	require.NoError(t, s.Close())
	s2, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, uint64(3*len(write)), s2.Size())
	data, err := s2.Read(0, uint32(len(write)))
	require.NoError(t, err)
	require.Equal(t, write, data)
}

func TestStoreReadShort(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "00000000000000000000.store"))
	require.NoError(t, err)

	_, err = s.Append(write)
	require.NoError(t, err)

	_, err = s.Read(0, uint32(len(write))+10)
	require.Error(t, err)
}

func TestStoreTruncate(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "00000000000000000000.store"))
	require.NoError(t, err)

	_, err = s.Append(write)
	require.NoError(t, err)
	_, err = s.Append(write)
	require.NoError(t, err)

	require.NoError(t, s.Truncate(uint64(len(write))))
	require.Equal(t, uint64(len(write)), s.Size())

	fi, err := os.Stat(s.Name())
	require.NoError(t, err)
	require.Equal(t, int64(len(write)), fi.Size())
}

func TestStoreClose(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "00000000000000000000.store"))
	require.NoError(t, err)

	_, err = s.Append(write)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Append(write)
	require.Error(t, err)
}
