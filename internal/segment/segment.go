// Package segment coordinates one (store, index) pair holding the
// records of a contiguous offset range (§4.4): appends advance the
// segment's next offset, reads resolve through the index, and tail
// recovery repairs a torn last write discovered at open.
package segment

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/stackwave/qlog/internal/errs"
	"github.com/stackwave/qlog/internal/flush"
	"github.com/stackwave/qlog/internal/index"
	"github.com/stackwave/qlog/internal/record"
	"github.com/stackwave/qlog/internal/store"
)

// IDWidth is the number of digits in a segment-id: a zero-padded decimal
// rendering of the segment's start offset (§3).
const IDWidth = 20

// FormatID renders a start offset as a 20-digit zero-padded segment-id.
func FormatID(startOffset uint64) string {
	return fmt.Sprintf("%0*d", IDWidth, startOffset)
}

// Segment is a (store, index) pair for one contiguous offset range.
type Segment struct {
	mu sync.RWMutex

	id         string
	baseOffset uint64
	nextOffset uint64
	sealed     bool

	store *store.Store
	index *index.Index

	flushPolicy       flush.Policy
	appendsSinceForce uint64
	task              *flush.Task

	logger *zap.Logger
}

// Create opens a brand new, empty active segment named with the 20-digit
// format, rooted at baseOffset.
func Create(dir string, baseOffset uint64, logger *zap.Logger) (*Segment, error) {
	id := FormatID(baseOffset)
	return open(filepath.Join(dir, id+".store"), filepath.Join(dir, id+".index"), id, baseOffset, logger)
}

// Open recovers an existing segment from its store/index file paths,
// preserving whatever filenames it was discovered under (new segments
// use the 20-digit form; legacy segments keep `segment-N`).
func Open(storePath, indexPath, id string, baseOffset uint64, logger *zap.Logger) (*Segment, error) {
	return open(storePath, indexPath, id, baseOffset, logger)
}

func open(storePath, indexPath, id string, baseOffset uint64, logger *zap.Logger) (*Segment, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	st, err := store.Open(storePath)
	if err != nil {
		return nil, err
	}
	idx, err := index.Open(indexPath)
	if err != nil {
		st.Close()
		return nil, err
	}

	if err := recoverTail(st, idx, logger); err != nil {
		st.Close()
		idx.Close()
		return nil, err
	}

	nextOffset := baseOffset
	if last, ok := idx.Last(); ok {
		nextOffset = last.Offset + 1
	}

	return &Segment{
		id:          id,
		baseOffset:  baseOffset,
		nextOffset:  nextOffset,
		store:       st,
		index:       idx,
		flushPolicy: flush.NewImmediate(false),
		logger:      logger.Named("segment").With(zap.String("segment", id)),
	}, nil
}

// recoverTail discards any index entry whose record was torn (the store
// bytes it points to were never fully written), per §4.4. The store
// itself is not truncated - the dead bytes are left at end-of-file.
func recoverTail(st *store.Store, idx *index.Index, logger *zap.Logger) error {
	for {
		last, ok := idx.Last()
		if !ok {
			return nil
		}
		if last.Position+uint64(last.Length) <= st.Size() {
			return nil
		}
		logger.Warn("discarding torn tail index entry",
			zap.Uint64("offset", last.Offset), zap.Uint64("position", last.Position))
		if err := idx.Truncate(1); err != nil {
			return err
		}
	}
}

// Activate wires this segment up as the Log's active segment: it adopts
// the given flush policy and, if the policy needs one, starts the
// background force task.
func (s *Segment) Activate(policy flush.Policy, logger *zap.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushPolicy = policy
	if policy.UsesBackgroundTimer() {
		s.task = flush.NewTask(policy, s.store, logger)
		s.task.Start()
	}
}

// Deactivate stops this segment's background force task, if any. Called
// when the segment is sealed by rotation or the Log is closed.
func (s *Segment) Deactivate() {
	s.mu.Lock()
	task := s.task
	s.task = nil
	s.mu.Unlock()
	if task != nil {
		task.Stop()
	}
}

// Seal marks the segment read-only by convention; it remains readable.
func (s *Segment) Seal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed = true
}

// IsSealed reports whether Seal has been called.
func (s *Segment) IsSealed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sealed
}

// Append assigns the next offset, serializes payload as a Record, and
// appends it to the store and index.
func (s *Segment) Append(payload []byte) (*record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(s.nextOffset, payload)
}

// AppendAt appends payload at the caller-supplied offset, refusing any
// offset below the segment's current next offset.
func (s *Segment) AppendAt(offset uint64, payload []byte) (*record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset < s.nextOffset {
		return nil, errs.New(errs.OutOfOrder, "append_at offset is not strictly increasing").WithOffset(offset)
	}
	return s.appendLocked(offset, payload)
}

func (s *Segment) appendLocked(offset uint64, payload []byte) (*record.Record, error) {
	rec := record.New(payload)
	rec.Offset = offset
	wire := rec.Marshal()

	pos, err := s.store.Append(wire)
	if err != nil {
		return nil, err
	}
	if err := s.index.Append(offset, pos, uint32(len(wire)), rec.Checksum); err != nil {
		return nil, errs.Wrap(errs.IoError, err, "append index entry").WithOffset(offset)
	}

	s.appendsSinceForce++
	if s.flushPolicy.ForceOnAppend(s.appendsSinceForce) {
		if err := s.store.Flush(s.flushPolicy.ForceMetadata); err != nil {
			return nil, err
		}
		s.appendsSinceForce = 0
	} else if s.task != nil {
		s.task.MarkPending()
	}

	if offset+1 > s.nextOffset {
		s.nextOffset = offset + 1
	}
	return rec, nil
}

// Read resolves offset through the index and returns the stored record,
// or (nil, nil) if the offset is absent from this segment.
func (s *Segment) Read(offset uint64) (*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.index.Find(offset)
	if !ok {
		return nil, nil
	}
	raw, err := s.store.Read(e.Position, e.Length)
	if err != nil {
		return nil, err
	}
	return record.Unmarshal(offset, raw)
}

// IsFull reports whether the store has reached maxSize.
func (s *Segment) IsFull(maxSize uint64) bool {
	return s.store.Size() >= maxSize
}

// ID returns the segment's id string (its filename stem).
func (s *Segment) ID() string { return s.id }

// BaseOffset returns the segment's start offset.
func (s *Segment) BaseOffset() uint64 { return s.baseOffset }

// NextOffset returns the next offset this segment will assign.
func (s *Segment) NextOffset() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextOffset
}

// LowestOffset returns the lowest offset actually held, falling back to
// the segment's nominal start offset when it holds no records. Reading
// the first index entry (rather than trusting baseOffset blindly) keeps
// this correct for legacy segments whose assigned baseOffset is only a
// recovery-time guess (§4.5.1).
func (s *Segment) LowestOffset() uint64 {
	if e, ok := s.index.At(0); ok {
		return e.Offset
	}
	return s.baseOffset
}

// HighestOffset returns the highest offset held, or ok=false if the
// segment holds no records.
func (s *Segment) HighestOffset() (offset uint64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.index.Last(); ok {
		return e.Offset, true
	}
	return 0, false
}

// StoreSize returns the underlying store's byte size.
func (s *Segment) StoreSize() uint64 { return s.store.Size() }

// RecordCount returns the number of records held in this segment.
func (s *Segment) RecordCount() uint64 { return s.index.EntryCount() }

// Flush forces both the store and the index to stable storage.
func (s *Segment) Flush() error {
	if err := s.store.Flush(true); err != nil {
		return err
	}
	return s.index.Flush()
}

// Close stops any background task and closes the store and index.
func (s *Segment) Close() error {
	s.Deactivate()
	if err := s.store.Close(); err != nil {
		return err
	}
	return s.index.Close()
}

// Remove closes the segment and deletes its store and index files.
func (s *Segment) Remove() error {
	storePath, indexPath := s.store.Name(), s.index.Name()
	if err := s.Close(); err != nil {
		return err
	}
	if err := os.Remove(storePath); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.IoError, err, "remove store file").WithPath(storePath)
	}
	if err := os.Remove(indexPath); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.IoError, err, "remove index file").WithPath(indexPath)
	}
	return nil
}

// ModTime stats the store file and returns its os.FileInfo, whose
// ModTime the Log's retention pass compares against its cutoff.
func (s *Segment) ModTime() (os.FileInfo, error) {
	return os.Stat(s.store.Name())
}
