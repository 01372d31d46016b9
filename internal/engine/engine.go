// Package engine implements the storage engine (C3/C5/C6 of the design):
// the command codec, the in-memory index, and the Engine itself — set,
// get, remove, replay-on-open, and compaction. This is the core the rest
// of the system (internal/protocol, internal/sled, cmd/...) is built
// around.
package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/loxp/kvs/internal/store"
)

// CompactThreshold is the default number of mutations between compaction
// passes (§4.4).
const CompactThreshold = 1000

// Engine is a persistent key/value store: set/get/remove backed by an
// append-only log of Commands, with an in-memory Index rebuilt by replay
// on open. Not concurrency-safe by design (§5) — callers that share an
// Engine across goroutines must serialize access themselves, as
// internal/protocol's server does with a single mutex.
type Engine struct {
	log   *zap.SugaredLogger
	dir   string
	store *store.FileStore
	index *Index

	segmentThreshold int64
	compactThreshold uint64
	mutationCount    uint64
}

// Option configures Open.
type Option func(*Engine)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithSegmentThreshold(n int64) Option {
	return func(e *Engine) { e.segmentThreshold = n }
}

func WithCompactThreshold(n uint64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.compactThreshold = n
		}
	}
}

// Open opens (or creates) the engine's data directory, checks the engine
// marker, replays the log to rebuild the index, and runs an opening
// compaction pass to amortize recovery cost (§4.4).
func Open(dir string, opts ...Option) (*Engine, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %q: %w", dir, err)
	}
	if err := CheckMarker(dir, EngineKvs); err != nil {
		return nil, err
	}

	e := &Engine{
		log:              zap.NewNop().Sugar(),
		dir:              dir,
		index:            NewIndex(),
		compactThreshold: CompactThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}

	threshold := e.segmentThreshold
	if threshold == 0 {
		threshold = store.SegmentThreshold
	}

	fs, err := store.Open(dir, threshold, store.WithLogger(e.log))
	if err != nil {
		return nil, fmt.Errorf("open file store: %w", err)
	}
	e.store = fs

	if err := e.replay(); err != nil {
		return nil, err
	}

	e.log.Infow("engine opened", "dir", dir, "keys", e.index.Len())

	if err := e.compact(); err != nil {
		e.log.Warnw("opening compaction pass failed", "err", err)
	}

	return e, nil
}

// replay rebuilds the index from every segment on disk, in ascending
// segment order (§4.4). A torn tail on the highest-numbered segment is
// tolerated; a malformed record anywhere else is fatal.
func (e *Engine) replay() error {
	segments := e.store.SegmentNumbers()
	if len(segments) == 0 {
		return nil
	}
	lastSegment := segments[len(segments)-1]

	for _, seg := range segments {
		f, err := e.store.OpenSegmentScanner(seg)
		if err != nil {
			return fmt.Errorf("open segment %d for replay: %w", seg, err)
		}
		err = e.replaySegment(seg, f, seg == lastSegment)
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) replaySegment(seg uint64, r io.Reader, isLastSegment bool) error {
	dec := NewDecoder(r)
	var prevOffset int64

	for {
		cmd, nextOffset, err := dec.Next()
		if err == nil {
			length := nextOffset - prevOffset
			switch cmd.Kind {
			case KindSet:
				e.index.Set(cmd.Key, Entry{Segment: seg, Offset: prevOffset, Length: length})
			case KindDel:
				e.index.Delete(cmd.Key)
			}
			prevOffset = nextOffset
			continue
		}

		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, ErrTornTail) {
			if isLastSegment {
				e.log.Warnw("ignoring torn tail at replay", "segment", seg, "offset", prevOffset)
				return nil
			}
			return fmt.Errorf("segment %d: %w (interior torn tail is fatal)", seg, err)
		}
		return fmt.Errorf("segment %d: replay decode error: %w", seg, err)
	}
}

// Set persists Set{key,value}, updates the index, and triggers compaction
// every CompactThreshold mutations (§4.4 "set").
func (e *Engine) Set(key, value string) error {
	encoded, err := Encode(NewSet(key, value))
	if err != nil {
		return err
	}
	loc, err := e.store.WriteRecord(encoded)
	if err != nil {
		return err
	}
	e.index.Set(key, Entry{Segment: loc.Segment, Offset: loc.Offset, Length: loc.Length})
	e.log.Debugw("set", "key", key, "segment", loc.Segment, "offset", loc.Offset)
	return e.bumpMutationCounter()
}

// Get returns the value at key, or ok=false if absent.
func (e *Engine) Get(key string) (string, bool, error) {
	entry, ok := e.index.Get(key)
	if !ok {
		return "", false, nil
	}

	raw, err := e.store.ReadRecord(store.Location{Segment: entry.Segment, Offset: entry.Offset, Length: entry.Length})
	if err != nil {
		return "", false, fmt.Errorf("read record for %q: %w", key, err)
	}

	dec := NewDecoder(bytes.NewReader(raw))
	cmd, _, err := dec.Next()
	if err != nil {
		return "", false, fmt.Errorf("%w: decode record for %q: %v", ErrCorrupt, key, err)
	}
	if cmd.Kind != KindSet || cmd.Key != key {
		return "", false, fmt.Errorf("%w: index points at non-matching record for %q", ErrCorrupt, key)
	}
	return cmd.Value, true, nil
}

// Remove deletes key, failing with ErrKeyNotFound if it is absent.
func (e *Engine) Remove(key string) error {
	if _, ok := e.index.Get(key); !ok {
		return ErrKeyNotFound
	}

	encoded, err := Encode(NewDel(key))
	if err != nil {
		return err
	}
	if _, err := e.store.WriteRecord(encoded); err != nil {
		return err
	}
	e.index.Delete(key)
	e.log.Debugw("remove", "key", key)
	return e.bumpMutationCounter()
}

// bumpMutationCounter increments the mutation counter and, if it reaches
// the compaction threshold, atomically resets it and runs compaction. The
// compare-and-swap ensures only one mutation triggers a pass per threshold
// even if the counter were raced (§9).
func (e *Engine) bumpMutationCounter() error {
	n := atomic.AddUint64(&e.mutationCount, 1)
	if n < e.compactThreshold {
		return nil
	}
	if !atomic.CompareAndSwapUint64(&e.mutationCount, n, 0) {
		return nil
	}
	return e.compact()
}

// Close flushes and closes every segment file.
func (e *Engine) Close() error {
	return e.store.Close()
}

func (e *Engine) Dir() string { return e.dir }
