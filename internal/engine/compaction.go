package engine

import (
	"errors"
	"fmt"
	"io"

	"github.com/loxp/kvs/internal/store"
)

// compact rewrites every read-only segment to contain only live records —
// those whose (segment, offset) coordinates are exactly what the index
// currently names for their key (§4.4). The active segment is never
// touched. Any I/O error aborts the current segment's rewrite and leaves
// it untouched (rename is the atomic commit point); compaction continues
// serving from the unchanged layout (§7).
func (e *Engine) compact() error {
	active := e.store.ActiveSegment()

	for _, seg := range e.store.SegmentNumbers() {
		if seg == active {
			continue
		}
		if err := e.compactSegment(seg); err != nil {
			e.log.Warnw("compaction of segment failed, leaving it unchanged", "segment", seg, "err", err)
		}
	}
	return nil
}

func (e *Engine) compactSegment(seg uint64) error {
	scanner, err := e.store.OpenSegmentScanner(seg)
	if err != nil {
		return fmt.Errorf("open segment %d for compaction: %w", seg, err)
	}
	defer scanner.Close()

	rw, err := e.store.BeginRewrite(seg)
	if err != nil {
		return fmt.Errorf("begin rewrite of segment %d: %w", seg, err)
	}

	// Buffer index updates until the rename commits: if the pass aborts
	// partway through, the original segment is untouched and the index
	// must still point at it, not at offsets in a file we're about to
	// delete.
	updates, err := e.copyLiveRecords(seg, scanner, rw)
	if err != nil {
		if abortErr := rw.Abort(); abortErr != nil {
			e.log.Warnw("abort of failed compaction also failed", "segment", seg, "err", abortErr)
		}
		return err
	}

	removed, err := rw.Commit()
	if err != nil {
		return fmt.Errorf("commit rewrite of segment %d: %w", seg, err)
	}
	for key, entry := range updates {
		e.index.Set(key, entry)
	}
	if removed {
		e.log.Infow("compaction removed empty segment", "segment", seg)
	}
	return nil
}

// copyLiveRecords decodes seg from offset 0 and copies every record whose
// coordinates the index still names into rw, returning the index updates
// (new offsets in the rewritten file) the caller should apply once the
// rewrite is committed. Dropping Dels and superseded Sets (and therefore
// all of them, once every reachable key has moved on) is what reclaims
// space.
func (e *Engine) copyLiveRecords(seg uint64, scanner io.Reader, rw *store.Rewriter) (map[string]Entry, error) {
	dec := NewDecoder(scanner)
	updates := make(map[string]Entry)
	var prevOffset int64

	for {
		cmd, nextOffset, err := dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrTornTail) {
				// A torn tail can only occur on the active segment, which is
				// never compacted; reaching EOF (clean or torn) here just
				// means we've copied everything live.
				return updates, nil
			}
			return nil, fmt.Errorf("segment %d: decode during compaction: %w", seg, err)
		}

		length := nextOffset - prevOffset
		offset := prevOffset
		prevOffset = nextOffset

		if cmd.Kind != KindSet {
			continue // Dels are always dead after replay; drop them.
		}

		entry, ok := e.index.Get(cmd.Key)
		if !ok || entry.Segment != seg || entry.Offset != offset || entry.Length != length {
			continue // superseded by a later Set or Del; drop it.
		}

		encoded, err := Encode(cmd)
		if err != nil {
			return nil, err
		}
		newOffset, err := rw.Write(encoded)
		if err != nil {
			return nil, fmt.Errorf("write live record during compaction of segment %d: %w", seg, err)
		}
		updates[cmd.Key] = Entry{Segment: seg, Offset: newOffset, Length: int64(len(encoded))}
	}
}
