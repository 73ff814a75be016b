// Package index implements the memory-mapped, fixed-stride, append-only
// sparse index described in §4.3: a 24-byte-per-entry table mapping
// offset -> (store position, record length, checksum), searched by
// binary search and grown by unmap/truncate/remap.
package index

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/tysonmote/gommap"

	"github.com/stackwave/qlog/internal/errs"
)

var enc = binary.LittleEndian

// Stride is the fixed size of one index entry: offset(8) + position(8) +
// length(4) + checksum(4).
const Stride = 24

// growthPage is the page multiple the index file is rounded up to when
// it needs to grow (§4.3).
const growthPage = 4096

// Entry is one decoded index entry.
type Entry struct {
	Offset   uint64
	Position uint64
	Length   uint32
	Checksum uint32
}

// Index wraps one segment's `.index` file.
type Index struct {
	mu   sync.RWMutex
	file *os.File
	mmap gommap.MMap

	size     uint64 // bytes in use (entryCount * Stride)
	capacity uint64 // bytes currently mapped
}

// Open opens or creates the index file at path. An existing file whose
// size is not a multiple of Stride has its trailing partial bytes
// discarded immediately (§6: tail bytes are ignored and discarded).
func Open(path string) (*Index, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errs.Wrap(errs.IoError, err, "open index file").WithPath(path)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.IoError, err, "stat index file").WithPath(path)
	}

	size := (uint64(fi.Size()) / Stride) * Stride
	if uint64(fi.Size()) != size {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, errs.Wrap(errs.IoError, err, "discard partial trailing index entry").WithPath(path)
		}
	}

	idx := &Index{file: f, size: size}
	if size > 0 {
		if err := idx.mapRegion(size); err != nil {
			f.Close()
			return nil, err
		}
	}
	return idx, nil
}

// mapRegion truncates the file to capacity and (re)establishes the
// memory mapping over it. Callers must hold mu.
func (idx *Index) mapRegion(capacity uint64) error {
	if err := idx.file.Truncate(int64(capacity)); err != nil {
		return errs.Wrap(errs.IoError, err, "grow index file").WithPath(idx.file.Name())
	}
	m, err := gommap.Map(idx.file.Fd(), gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED)
	if err != nil {
		return errs.Wrap(errs.IoError, err, "mmap index file").WithPath(idx.file.Name())
	}
	idx.mmap = m
	idx.capacity = capacity
	return nil
}

// grow extends the mapping to hold at least minCapacity bytes, rounding
// up to a 4KiB page multiple. The old mapping is forced before being
// dropped (§4.3 edge case); this and all read paths that dereference the
// mapping are serialized by mu, so no reader ever observes the old
// mapping mid-grow.
func (idx *Index) grow(minCapacity uint64) error {
	if idx.mmap != nil {
		if err := idx.mmap.Sync(gommap.MS_SYNC); err != nil {
			return errs.Wrap(errs.IoError, err, "sync index mapping before grow").WithPath(idx.file.Name())
		}
		if err := idx.mmap.UnsafeUnmap(); err != nil {
			return errs.Wrap(errs.IoError, err, "unmap index before grow").WithPath(idx.file.Name())
		}
		idx.mmap = nil
	}
	newCapacity := ((minCapacity + growthPage - 1) / growthPage) * growthPage
	return idx.mapRegion(newCapacity)
}

// Append writes the next entry, extending the mapping when current
// capacity is exhausted.
func (idx *Index) Append(offset, position uint64, length, checksum uint32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.size+Stride > idx.capacity {
		if err := idx.grow(idx.size + Stride); err != nil {
			return err
		}
	}

	b := idx.mmap[idx.size : idx.size+Stride]
	enc.PutUint64(b[0:8], offset)
	enc.PutUint64(b[8:16], position)
	enc.PutUint32(b[16:20], length)
	enc.PutUint32(b[20:24], checksum)
	idx.size += Stride
	return nil
}

// decode reads the entry at byte offset pos in the mapping. Callers must
// hold mu (read or write).
func (idx *Index) decode(pos uint64) Entry {
	b := idx.mmap[pos : pos+Stride]
	return Entry{
		Offset:   enc.Uint64(b[0:8]),
		Position: enc.Uint64(b[8:16]),
		Length:   enc.Uint32(b[16:20]),
		Checksum: enc.Uint32(b[20:24]),
	}
}

// EntryCount returns the number of valid entries.
func (idx *Index) EntryCount() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.size / Stride
}

// Find binary-searches for the entry with the given absolute offset.
// Entries are stored in strictly increasing offset order (one per
// append), so this is O(log n).
func (idx *Index) Find(offset uint64) (Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	count := idx.size / Stride
	lo, hi := uint64(0), count
	for lo < hi {
		mid := lo + (hi-lo)/2
		e := idx.decode(mid * Stride)
		switch {
		case e.Offset == offset:
			return e, true
		case e.Offset < offset:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return Entry{}, false
}

// At returns the i-th entry (0-indexed), or false if out of range.
func (idx *Index) At(i uint64) (Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	count := idx.size / Stride
	if i >= count {
		return Entry{}, false
	}
	return idx.decode(i * Stride), true
}

// Last returns the final entry, or false if the index is empty.
func (idx *Index) Last() (Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	count := idx.size / Stride
	if count == 0 {
		return Entry{}, false
	}
	return idx.decode((count - 1) * Stride), true
}

// Truncate discards the last n entries. Used during tail recovery to
// drop an index entry that refers to a torn store record.
func (idx *Index) Truncate(n uint64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	drop := n * Stride
	if drop > idx.size {
		drop = idx.size
	}
	idx.size -= drop
	return nil
}

// Flush forces the mapping to stable storage.
func (idx *Index) Flush() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.mmap == nil {
		return nil
	}
	if err := idx.mmap.Sync(gommap.MS_SYNC); err != nil {
		return errs.Wrap(errs.IoError, err, "sync index mapping").WithPath(idx.file.Name())
	}
	return nil
}

// Name returns the underlying file's path.
func (idx *Index) Name() string {
	return idx.file.Name()
}

// Close flushes, unmaps, truncates the file to its logical size
// (dropping page padding), and closes the file.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.mmap != nil {
		if err := idx.mmap.Sync(gommap.MS_SYNC); err != nil {
			return errs.Wrap(errs.IoError, err, "sync index mapping before close").WithPath(idx.file.Name())
		}
		if err := idx.mmap.UnsafeUnmap(); err != nil {
			return errs.Wrap(errs.IoError, err, "unmap index before close").WithPath(idx.file.Name())
		}
		idx.mmap = nil
	}
	if err := idx.file.Truncate(int64(idx.size)); err != nil {
		idx.file.Close()
		return errs.Wrap(errs.IoError, err, "truncate index to logical size").WithPath(idx.file.Name())
	}
	if err := idx.file.Close(); err != nil {
		return errs.Wrap(errs.IoError, err, "close index file").WithPath(idx.file.Name())
	}
	return nil
}
