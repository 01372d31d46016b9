package store

import (
	"fmt"
	"os"
	"sync"

	"github.com/tysonmote/gommap"
)

// Reader gives random access to a segment file via a memory-mapped view,
// the same mmap-for-fast-reads approach the teacher applies to its index
// file (internal/log/index.go), generalized here to arbitrary-length
// command records rather than a fixed-width entry table.
//
// A segment being actively appended to grows after the reader was opened;
// Reader remaps whenever the file's size has moved past what is currently
// mapped, so readers always see bytes a sibling Writer has flushed.
type Reader struct {
	mu     sync.Mutex
	file   *os.File
	mapped gommap.MMap
	size   int64
}

func NewReader(f *os.File) (*Reader, error) {
	r := &Reader{file: f}
	if err := r.remapLocked(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) remapLocked() error {
	fi, err := r.file.Stat()
	if err != nil {
		return err
	}
	if r.mapped != nil {
		if err := r.mapped.UnsafeUnmap(); err != nil {
			return err
		}
		r.mapped = nil
	}
	if fi.Size() == 0 {
		r.size = 0
		return nil
	}
	m, err := gommap.Map(r.file.Fd(), gommap.PROT_READ, gommap.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmap segment %s: %w", r.file.Name(), err)
	}
	r.mapped = m
	r.size = fi.Size()
	return nil
}

// ReadAt returns exactly length bytes starting at offset.
func (r *Reader) ReadAt(offset, length int64) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if offset < 0 || length < 0 {
		return nil, fmt.Errorf("invalid read range [%d,%d)", offset, offset+length)
	}
	if offset+length > r.size {
		if err := r.remapLocked(); err != nil {
			return nil, err
		}
	}
	if offset+length > r.size {
		return nil, fmt.Errorf("read range [%d,%d) exceeds segment size %d", offset, offset+length, r.size)
	}

	out := make([]byte, length)
	copy(out, r.mapped[offset:offset+length])
	return out, nil
}

// Decoder returns a stream over the full segment from offset 0. It reads
// the file directly (not the mmap view) so that it sees every byte written
// so far regardless of when the reader was last remapped. Replay and
// compaction do not use it; they scan through FileStore.OpenSegmentScanner.
func (r *Reader) Decoder() (*os.File, error) {
	f, err := os.Open(r.file.Name())
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mapped != nil {
		if err := r.mapped.UnsafeUnmap(); err != nil {
			return err
		}
		r.mapped = nil
	}
	return r.file.Close()
}

func (r *Reader) Name() string {
	return r.file.Name()
}
