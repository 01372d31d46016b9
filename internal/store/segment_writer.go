package store

import (
	"bufio"
	"os"
	"sync"
)

// SegmentThreshold is the default rollover size for the active segment (§4.2).
// Tests use smaller values to force rollovers deterministically.
const SegmentThreshold = 8 * 1024

// Writer wraps an append-mode file behind a buffered sink, tracking the
// absolute byte offset new writes will land at. Grounded on the teacher's
// store.go (*os.File + bufio.Writer + size counter).
type Writer struct {
	mu        sync.Mutex
	file      *os.File
	buf       *bufio.Writer
	pos       int64
	threshold int64
}

func NewWriter(f *os.File, threshold int64) (*Writer, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = SegmentThreshold
	}
	return &Writer{
		file:      f,
		buf:       bufio.NewWriter(f),
		pos:       fi.Size(),
		threshold: threshold,
	}, nil
}

// Write appends p, returning the offset it was written at.
func (w *Writer) Write(p []byte) (offset int64, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	offset = w.pos
	n, err := w.buf.Write(p)
	w.pos += int64(n)
	return offset, err
}

// Flush must be called before any reader of this segment reads bytes just
// written (§4.2).
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Flush()
}

func (w *Writer) Pos() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos
}

func (w *Writer) IsFull() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos >= w.threshold
}

func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	return w.file.Close()
}
