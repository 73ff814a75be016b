package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSegmentAppendRead(t *testing.T) {
	dir := t.TempDir()
	s, err := Create(dir, 0, nil)
	require.NoError(t, err)

	rec, err := s.Append([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), rec.Offset)

	got, err := s.Read(0)
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), got.Data)

	_, ok := s.HighestOffset()
	require.True(t, ok)
	require.Equal(t, uint64(1), s.NextOffset())
}

func TestSegmentReadMissing(t *testing.T) {
	dir := t.TempDir()
	s, err := Create(dir, 0, nil)
	require.NoError(t, err)

	got, err := s.Read(5)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSegmentAppendAtOutOfOrder(t *testing.T) {
	dir := t.TempDir()
	s, err := Create(dir, 0, nil)
	require.NoError(t, err)

	_, err = s.AppendAt(0, []byte("first"))
	require.NoError(t, err)

	_, err = s.AppendAt(0, []byte("dup"))
	require.Error(t, err)
}

func TestSegmentIsFull(t *testing.T) {
	dir := t.TempDir()
	s, err := Create(dir, 0, nil)
	require.NoError(t, err)

	_, err = s.Append(make([]byte, 20))
	require.NoError(t, err)
	require.False(t, s.IsFull(64))

	_, err = s.Append(make([]byte, 20))
	require.NoError(t, err)
	require.True(t, s.IsFull(64))
}

func TestSegmentTailRecovery(t *testing.T) {
	dir := t.TempDir()
	s, err := Create(dir, 0, nil)
	require.NoError(t, err)

	_, err = s.Append([]byte("A"))
	require.NoError(t, err)
	_, err = s.Append([]byte("B"))
	require.NoError(t, err)
	storePath := filepath.Join(dir, FormatID(0)+".store")
	require.NoError(t, s.Close())

	fi, err := os.Stat(storePath)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(storePath, fi.Size()-4))

	s2, err := Open(storePath, filepath.Join(dir, FormatID(0)+".index"), FormatID(0), 0, nil)
	require.NoError(t, err)

	require.Equal(t, uint64(1), s2.NextOffset())
	rec, err := s2.Read(0)
	require.NoError(t, err)
	require.Equal(t, []byte("A"), rec.Data)

	missing, err := s2.Read(1)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestSegmentRemove(t *testing.T) {
	dir := t.TempDir()
	s, err := Create(dir, 0, nil)
	require.NoError(t, err)
	_, err = s.Append([]byte("x"))
	require.NoError(t, err)

	storePath := filepath.Join(dir, FormatID(0)+".store")
	indexPath := filepath.Join(dir, FormatID(0)+".index")
	require.NoError(t, s.Remove())

	_, err = os.Stat(storePath)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(indexPath)
	require.True(t, os.IsNotExist(err))
}
