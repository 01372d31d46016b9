// Package store implements C1/C2/C4 of the storage engine design: the
// append-only segment writer and reader, and the directory of numbered
// segments (kvs_<N>.wal) that the engine replays and compacts.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	segmentPrefix = "kvs_"
	segmentSuffix = ".wal"
	newSuffix     = ".wal.new"
)

// Location names one record's position: which segment, its byte offset, and
// its encoded length.
type Location struct {
	Segment uint64
	Offset  int64
	Length  int64
}

// FileStore owns the directory of segment files: exactly one active
// (highest-numbered) segment receiving appends, and a reader held open for
// every segment including the active one, so the engine can read back
// records it just wrote. Grounded on original_source/project-3/src/kvs.rs's
// FileStore and the teacher's Log.setup() directory-scan bootstrap.
type FileStore struct {
	mu        sync.Mutex
	dir       string
	threshold int64
	active    uint64
	writer    *Writer
	readers   map[uint64]*Reader
	log       *zap.SugaredLogger
}

// Option configures Open.
type Option func(*FileStore)

// WithLogger injects a logger for rollover and rewrite-commit events. A nil
// logger (the default) is a no-op sink.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(fs *FileStore) {
		if l != nil {
			fs.log = l
		}
	}
}

// Open implements the open protocol of §4.3: create the directory if
// absent, enumerate kvs_<N>.wal files, and either bootstrap segment 0 or
// adopt the highest-numbered existing segment as active.
func Open(dir string, threshold int64, opts ...Option) (*FileStore, error) {
	if threshold <= 0 {
		threshold = SegmentThreshold
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %q: %w", dir, err)
	}

	nums, err := scanSegments(dir)
	if err != nil {
		return nil, err
	}

	fs := &FileStore{
		dir:       dir,
		threshold: threshold,
		readers:   make(map[uint64]*Reader),
		log:       zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(fs)
	}

	if len(nums) == 0 {
		if err := fs.createSegment(0); err != nil {
			return nil, err
		}
		r, err := fs.openReader(0)
		if err != nil {
			return nil, err
		}
		fs.readers[0] = r
		fs.active = 0
		if err := fs.openWriter(0); err != nil {
			return nil, err
		}
		return fs, nil
	}

	for _, n := range nums {
		r, err := fs.openReader(n)
		if err != nil {
			return nil, err
		}
		fs.readers[n] = r
	}
	fs.active = nums[len(nums)-1]
	if err := fs.openWriter(fs.active); err != nil {
		return nil, err
	}
	return fs, nil
}

func scanSegments(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}
	var nums []uint64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n, ok := parseSegmentName(e.Name())
		if !ok {
			continue
		}
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	return nums, nil
}

func parseSegmentName(name string) (uint64, bool) {
	if !strings.HasPrefix(name, segmentPrefix) || !strings.HasSuffix(name, segmentSuffix) {
		return 0, false
	}
	numStr := strings.TrimSuffix(strings.TrimPrefix(name, segmentPrefix), segmentSuffix)
	n, err := strconv.ParseUint(numStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func segmentPath(dir string, n uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%s%d%s", segmentPrefix, n, segmentSuffix))
}

func (fs *FileStore) createSegment(n uint64) error {
	f, err := os.OpenFile(segmentPath(fs.dir, n), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

func (fs *FileStore) openWriter(n uint64) error {
	f, err := os.OpenFile(segmentPath(fs.dir, n), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w, err := NewWriter(f, fs.threshold)
	if err != nil {
		return err
	}
	fs.writer = w
	return nil
}

func (fs *FileStore) openReader(n uint64) (*Reader, error) {
	f, err := os.OpenFile(segmentPath(fs.dir, n), os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	return NewReader(f)
}

// WriteRecord appends encoded to the active segment, rolling over first if
// the active segment is full. It flushes before returning, per §4.3.
func (fs *FileStore) WriteRecord(encoded []byte) (Location, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.writer.IsFull() {
		if err := fs.rolloverLocked(); err != nil {
			return Location{}, err
		}
	}

	offset, err := fs.writer.Write(encoded)
	if err != nil {
		return Location{}, err
	}
	if err := fs.writer.Flush(); err != nil {
		return Location{}, err
	}

	return Location{Segment: fs.active, Offset: offset, Length: int64(len(encoded))}, nil
}

// rolloverLocked increments the active segment number, creates its file,
// and opens a reader for it. Rollover only ever happens at WriteRecord
// boundaries, so records are never split across segments (§4.3).
func (fs *FileStore) rolloverLocked() error {
	next := fs.active + 1
	if err := fs.createSegment(next); err != nil {
		return err
	}
	if err := fs.openWriter(next); err != nil {
		return err
	}
	r, err := fs.openReader(next)
	if err != nil {
		return err
	}
	fs.readers[next] = r
	fs.active = next
	fs.log.Infow("segment rollover", "dir", fs.dir, "segment", next)
	return nil
}

// ReadRecord returns exactly loc.Length bytes at loc's coordinates.
func (fs *FileStore) ReadRecord(loc Location) ([]byte, error) {
	fs.mu.Lock()
	r, ok := fs.readers[loc.Segment]
	fs.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no reader for segment %d", loc.Segment)
	}
	return r.ReadAt(loc.Offset, loc.Length)
}

// SegmentNumbers returns every segment number on disk, ascending, including
// the active segment.
func (fs *FileStore) SegmentNumbers() []uint64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	nums := make([]uint64, 0, len(fs.readers))
	for n := range fs.readers {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	return nums
}

// ActiveSegment returns the number of the currently active (writable)
// segment; it is never a candidate for compaction.
func (fs *FileStore) ActiveSegment() uint64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.active
}

// OpenSegmentScanner opens a fresh, independent handle on segment n
// positioned at offset 0, for the engine to run its own command decoder
// over during replay or compaction. Independent from the shared Reader so
// concurrent scans never disturb the mmap-backed random-access view.
func (fs *FileStore) OpenSegmentScanner(n uint64) (*os.File, error) {
	return os.Open(segmentPath(fs.dir, n))
}

// Close flushes and closes the active writer and every open reader.
func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.writer.Close(); err != nil {
		return err
	}
	for _, r := range fs.readers {
		if err := r.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Rewriter accumulates the live records of one read-only segment into a
// sibling kvs_<N>.wal.new file, to be atomically committed over the
// original or discarded if the pass aborts (§4.4).
type Rewriter struct {
	fs      *FileStore
	segment uint64
	path    string
	writer  *Writer
	wrote   bool
}

// BeginRewrite opens a sibling file for compacting segment n. n must not be
// the active segment.
func (fs *FileStore) BeginRewrite(n uint64) (*Rewriter, error) {
	fs.mu.Lock()
	active := fs.active
	fs.mu.Unlock()
	if n == active {
		return nil, fmt.Errorf("cannot compact active segment %d", n)
	}

	path := filepath.Join(fs.dir, fmt.Sprintf("%s%d%s", segmentPrefix, n, newSuffix))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Rewriter{fs: fs, segment: n, path: path, writer: w}, nil
}

// Write appends encoded to the rewrite file, returning its new offset.
func (rw *Rewriter) Write(encoded []byte) (int64, error) {
	offset, err := rw.writer.Write(encoded)
	if err != nil {
		return 0, err
	}
	if err := rw.writer.Flush(); err != nil {
		return 0, err
	}
	rw.wrote = true
	return offset, nil
}

// Commit renames the rewrite file over the original segment (the atomic
// step §4.4 relies on for crash safety), swaps in a fresh reader, and
// reports whether the segment ended up empty (and was therefore deleted).
func (rw *Rewriter) Commit() (removedEmpty bool, err error) {
	if err := rw.writer.Close(); err != nil {
		return false, err
	}

	originalPath := segmentPath(rw.fs.dir, rw.segment)
	if !rw.wrote {
		if err := os.Remove(rw.path); err != nil {
			return false, err
		}
		if err := os.Remove(originalPath); err != nil && !os.IsNotExist(err) {
			return false, err
		}
		rw.fs.mu.Lock()
		if old, ok := rw.fs.readers[rw.segment]; ok {
			old.Close()
			delete(rw.fs.readers, rw.segment)
		}
		rw.fs.mu.Unlock()
		rw.fs.log.Infow("rewrite committed, segment emptied", "dir", rw.fs.dir, "segment", rw.segment)
		return true, nil
	}

	if err := os.Rename(rw.path, originalPath); err != nil {
		return false, err
	}

	newReader, err := rw.fs.openReader(rw.segment)
	if err != nil {
		return false, err
	}

	rw.fs.mu.Lock()
	if old, ok := rw.fs.readers[rw.segment]; ok {
		old.Close()
	}
	rw.fs.readers[rw.segment] = newReader
	rw.fs.mu.Unlock()
	rw.fs.log.Infow("rewrite committed", "dir", rw.fs.dir, "segment", rw.segment)
	return false, nil
}

// Abort discards the rewrite file, leaving the original segment untouched.
// Any I/O error during compaction takes this path (§7).
func (rw *Rewriter) Abort() error {
	_ = rw.writer.Close()
	return os.Remove(rw.path)
}
