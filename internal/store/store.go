// Package store implements the append-only byte file wrapper for one
// segment's record stream (§4.2). Appends are position-monotonic and
// serialized; reads are concurrent and see any position up to the last
// completed append.
package store

import (
	"os"
	"sync"

	"github.com/stackwave/qlog/internal/errs"
)

// Store wraps a single segment's `.store` file.
type Store struct {
	mu   sync.RWMutex
	file *os.File
	size uint64
}

// Open opens or creates the store file at path, recovering its current
// size from the filesystem.
func Open(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, errs.Wrap(errs.IoError, err, "open store file").WithPath(path)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.IoError, err, "stat store file").WithPath(path)
	}
	return &Store{file: f, size: uint64(fi.Size())}, nil
}

// Append writes recordBytes at end-of-file and returns the position it
// was written at. Concurrent appenders are serialized by this lock; the
// segment's own write-lock additionally serializes against readers that
// must not observe an in-flight write.
func (s *Store) Append(recordBytes []byte) (position uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.size
	n, err := s.file.Write(recordBytes)
	if err != nil {
		return 0, errs.Wrap(errs.IoError, err, "append to store").WithPath(s.file.Name())
	}
	s.size += uint64(n)
	return pos, nil
}

// Read returns exactly length bytes at position, failing Corrupt on a
// short read.
func (s *Store) Read(position uint64, length uint32) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf := make([]byte, length)
	n, err := s.file.ReadAt(buf, int64(position))
	if err != nil {
		return nil, errs.Wrap(errs.Corrupt, err, "short read from store").WithOffset(position)
	}
	if n != len(buf) {
		return nil, errs.New(errs.Corrupt, "short read from store").WithOffset(position)
	}
	return buf, nil
}

// Flush forces data to stable storage. metadataAlso requests fsync
// (inode metadata included); the Go standard library exposes no portable
// fdatasync, so both cases call the same full sync - a conservative
// superset of the fdatasync contract.
func (s *Store) Flush(metadataAlso bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Sync(); err != nil {
		return errs.Wrap(errs.IoError, err, "sync store file").WithPath(s.file.Name())
	}
	return nil
}

// Truncate shrinks the file to newSize. Used only during recovery of a
// torn tail.
func (s *Store) Truncate(newSize uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Truncate(int64(newSize)); err != nil {
		return errs.Wrap(errs.IoError, err, "truncate store file").WithPath(s.file.Name())
	}
	s.size = newSize
	return nil
}

// Size returns the current file size.
func (s *Store) Size() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Name returns the underlying file's path.
func (s *Store) Name() string {
	return s.file.Name()
}

// Close flushes and closes the underlying file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return errs.Wrap(errs.IoError, err, "sync store file before close").WithPath(s.file.Name())
	}
	if err := s.file.Close(); err != nil {
		return errs.Wrap(errs.IoError, err, "close store file").WithPath(s.file.Name())
	}
	return nil
}
