// Package commitlog implements the top-level Log controller (§4.5): a
// sequence of segments spanning a contiguous offset range, with
// recovery, rotation, retention, and binary-search reads built on top
// of package segment.
package commitlog

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stackwave/qlog/internal/errs"
	"github.com/stackwave/qlog/internal/record"
	"github.com/stackwave/qlog/internal/segment"
)

// legacyNamePattern matches the pre-migration segment filename stem
// `segment-<N>`, kept readable for backward compatibility (§4.5.1, §9)
// but never written by this implementation.
var legacyNamePattern = regexp.MustCompile(`^segment-(\d+)$`)

// Log owns an ordered set of segments for one topic partition.
type Log struct {
	mu sync.RWMutex

	dir    string
	cfg    Config
	logger *zap.Logger

	segments []*segment.Segment
	active   *segment.Segment
	closed   bool
}

// candidate is one segment discovered on disk during Open, before its
// store/index pair has actually been opened.
type candidate struct {
	id         string
	baseOffset uint64
	legacy     bool
	legacySeq  uint64
	storeExt   string
	indexExt   string
}

// Open recovers (or creates) the log rooted at dir.
func Open(dir string, cfg Config) (*Log, error) {
	cfg.applyDefaults()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.Wrap(errs.IoError, err, "create log directory").WithPath(dir)
	}

	l := &Log{
		dir:    dir,
		cfg:    cfg,
		logger: cfg.Logger.Named("commitlog").With(zap.String("dir", dir)),
	}
	if err := l.recover(); err != nil {
		return nil, err
	}
	return l, nil
}

// recover enumerates existing segment files, opens them oldest-first,
// and sets up the active (newest) segment. An empty directory gets one
// brand-new segment at InitialOffset (§4.5.1).
func (l *Log) recover() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return errs.Wrap(errs.IoError, err, "read log directory").WithPath(l.dir)
	}

	candidates := discoverCandidates(entries)
	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.legacy != cj.legacy {
			// legacy segments predate the current naming scheme and are
			// always older than any modern segment sharing a directory.
			return ci.legacy
		}
		if ci.legacy {
			return ci.legacySeq < cj.legacySeq
		}
		return ci.baseOffset < cj.baseOffset
	})

	var running uint64
	for _, c := range candidates {
		baseOffset := c.baseOffset
		if c.legacy {
			baseOffset = running
		}
		storePath := filepath.Join(l.dir, c.id+c.storeExt)
		indexPath := filepath.Join(l.dir, c.id+c.indexExt)

		seg, err := segment.Open(storePath, indexPath, c.id, baseOffset, l.logger)
		if err != nil {
			return err
		}
		l.segments = append(l.segments, seg)
		running = seg.NextOffset()
	}

	if len(l.segments) == 0 {
		seg, err := segment.Create(l.dir, l.cfg.InitialOffset, l.logger)
		if err != nil {
			return err
		}
		l.segments = append(l.segments, seg)
	}

	l.active = l.segments[len(l.segments)-1]
	l.active.Activate(l.cfg.FlushPolicy, l.logger)
	return nil
}

// discoverCandidates groups directory entries into segment candidates,
// recognizing both the modern 20-digit store extension and the legacy
// `segment-N` stem (store files carrying a `.log` extension in the
// historical layout).
func discoverCandidates(entries []os.DirEntry) []candidate {
	seen := make(map[string]bool)
	var out []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()

		var id, ext string
		switch {
		case strings.HasSuffix(name, ".store"):
			id, ext = strings.TrimSuffix(name, ".store"), ".store"
		case strings.HasSuffix(name, ".log"):
			id, ext = strings.TrimSuffix(name, ".log"), ".log"
		default:
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true

		if m := legacyNamePattern.FindStringSubmatch(id); m != nil {
			seq, _ := strconv.ParseUint(m[1], 10, 64)
			out = append(out, candidate{id: id, legacy: true, legacySeq: seq, storeExt: ext, indexExt: ".index"})
			continue
		}
		if off, err := strconv.ParseUint(id, 10, 64); err == nil {
			out = append(out, candidate{id: id, baseOffset: off, storeExt: ext, indexExt: ".index"})
		}
	}
	return out
}

// Append assigns the next offset in sequence and rotates to a new
// active segment if the current one is now full (§4.5.2).
func (l *Log) Append(payload []byte) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, errs.New(errs.Closed, "log is closed")
	}
	if err := l.validatePayload(payload); err != nil {
		return 0, err
	}

	rec, err := l.active.Append(payload)
	if err != nil {
		return 0, err
	}
	if err := l.maybeRotate(); err != nil {
		return 0, err
	}
	return rec.Offset, nil
}

// AppendAt appends payload at a caller-supplied offset, used by
// replay/restore paths that need to preserve original offsets. The
// offset must be at least the log's current next offset; anything lower
// fails OutOfOrder.
func (l *Log) AppendAt(offset uint64, payload []byte) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, errs.New(errs.Closed, "log is closed")
	}
	if err := l.validatePayload(payload); err != nil {
		return 0, err
	}

	rec, err := l.active.AppendAt(offset, payload)
	if err != nil {
		return 0, err
	}
	if err := l.maybeRotate(); err != nil {
		return 0, err
	}
	return rec.Offset, nil
}

func (l *Log) validatePayload(payload []byte) error {
	if len(payload) == 0 {
		return errs.New(errs.EmptyPayload, "record payload is empty")
	}
	if uint64(len(payload)) > l.cfg.MaxMessageBytes {
		return errs.New(errs.PayloadTooLarge, "record payload exceeds max_message_bytes")
	}
	return nil
}

// maybeRotate seals the active segment and opens a fresh one once the
// active segment's store has reached MaxSegmentBytes. Callers must hold
// mu.
func (l *Log) maybeRotate() error {
	if !l.active.IsFull(l.cfg.MaxSegmentBytes) {
		return nil
	}
	l.active.Deactivate()
	l.active.Seal()

	next, err := segment.Create(l.dir, l.active.NextOffset(), l.logger)
	if err != nil {
		return err
	}
	next.Activate(l.cfg.FlushPolicy, l.logger)
	l.segments = append(l.segments, next)
	l.active = next
	return nil
}

// Read resolves offset to its segment by binary search and returns the
// decoded record, or (nil, nil) if offset is absent from the log
// entirely (§4.5.3).
func (l *Log) Read(offset uint64) (*record.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, errs.New(errs.Closed, "log is closed")
	}

	seg := l.findSegment(offset)
	if seg == nil {
		return nil, nil
	}
	return seg.Read(offset)
}

// findSegment binary-searches the sorted segment set for the one whose
// range may contain offset. Callers must hold mu (read or write).
func (l *Log) findSegment(offset uint64) *segment.Segment {
	segs := l.segments
	i := sort.Search(len(segs), func(i int) bool {
		return segs[i].BaseOffset() > offset
	})
	if i == 0 {
		return nil
	}
	candidate := segs[i-1]
	if offset >= candidate.NextOffset() {
		return nil
	}
	return candidate
}

// NextOffset returns the offset that the next Append will assign.
func (l *Log) NextOffset() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active.NextOffset()
}

// LowestOffset returns the lowest offset held across all segments.
func (l *Log) LowestOffset() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.segments[0].LowestOffset()
}

// HighestOffset returns the highest offset held, or ok=false if the log
// holds no records at all.
func (l *Log) HighestOffset() (uint64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.segments) - 1; i >= 0; i-- {
		if off, ok := l.segments[i].HighestOffset(); ok {
			return off, true
		}
	}
	return 0, false
}

// Stat summarizes the log's current state.
type Stat struct {
	NextOffset   uint64
	RecordCount  uint64
	TotalSize    uint64
	SegmentCount int
	OldestOffset uint64
}

// Stat bundles the log's size and offset bookkeeping into one read
// (supplements §4.5 with a single diagnostic call).
func (l *Log) Stat() Stat {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st := Stat{
		NextOffset:   l.active.NextOffset(),
		SegmentCount: len(l.segments),
		OldestOffset: l.segments[0].LowestOffset(),
	}
	for _, s := range l.segments {
		st.RecordCount += s.RecordCount()
		st.TotalSize += s.StoreSize()
	}
	return st
}

// Truncate removes sealed segments whose most recent write is older
// than cfg.Retention, measured from the store file's mtime (§4.5.4). A
// retention of zero means a cutoff of now, purging every sealed segment
// immediately. A negative retention disables the pass entirely. The
// active segment is never removed, even if it qualifies by age.
func (l *Log) Truncate(now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errs.New(errs.Closed, "log is closed")
	}
	if l.cfg.Retention < 0 {
		return nil
	}

	var kept []*segment.Segment
	for _, s := range l.segments {
		if s == l.active {
			kept = append(kept, s)
			continue
		}
		fi, err := s.ModTime()
		if err != nil {
			return errs.Wrap(errs.IoError, err, "stat segment for retention")
		}
		if now.Sub(fi.ModTime()) <= l.cfg.Retention {
			kept = append(kept, s)
			continue
		}
		l.logger.Info("retiring expired segment", zap.String("segment", s.ID()))
		if err := s.Remove(); err != nil {
			return err
		}
	}
	l.segments = kept
	return nil
}

// Flush forces the active segment's buffered data to stable storage,
// regardless of its configured flush policy. Used to satisfy an
// explicit durability request on an individual publish (§6).
func (l *Log) Flush() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return errs.New(errs.Closed, "log is closed")
	}
	return l.active.Flush()
}

// Close flushes and closes every segment. Close is idempotent; once
// closed, Append, AppendAt, Read, Flush and Truncate return a Closed
// error. NextOffset, LowestOffset, HighestOffset and Stat have no error
// result and keep reporting the log's last in-memory state.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	var first error
	for _, s := range l.segments {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
