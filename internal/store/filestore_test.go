package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStoreWriteReadRoundTrip(t *testing.T) {
	fs, err := Open(t.TempDir(), 0)
	require.NoError(t, err)
	defer fs.Close()

	loc, err := fs.WriteRecord([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), loc.Segment)
	require.Equal(t, int64(0), loc.Offset)

	got, err := fs.ReadRecord(loc)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}

func TestFileStoreRollsOverWhenFull(t *testing.T) {
	fs, err := Open(t.TempDir(), 8)
	require.NoError(t, err)
	defer fs.Close()

	_, err = fs.WriteRecord([]byte("01234567")) // fills the 8 byte segment
	require.NoError(t, err)
	require.Equal(t, uint64(0), fs.ActiveSegment())

	loc, err := fs.WriteRecord([]byte("x"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), loc.Segment)
	require.Equal(t, uint64(1), fs.ActiveSegment())
	require.Equal(t, []uint64{0, 1}, fs.SegmentNumbers())
}

func TestFileStoreReopenAdoptsHighestSegmentAsActive(t *testing.T) {
	dir := t.TempDir()
	fs, err := Open(dir, 8)
	require.NoError(t, err)
	_, err = fs.WriteRecord([]byte("01234567"))
	require.NoError(t, err)
	_, err = fs.WriteRecord([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, fs.Close())

	reopened, err := Open(dir, 8)
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, uint64(1), reopened.ActiveSegment())
	require.Equal(t, []uint64{0, 1}, reopened.SegmentNumbers())
}

func TestRewriterCommitReplacesSegment(t *testing.T) {
	dir := t.TempDir()
	fs, err := Open(dir, 8)
	require.NoError(t, err)
	defer fs.Close()

	_, err = fs.WriteRecord([]byte("01234567"))
	require.NoError(t, err)
	_, err = fs.WriteRecord([]byte("active"))
	require.NoError(t, err)

	rw, err := fs.BeginRewrite(0)
	require.NoError(t, err)
	newOffset, err := rw.Write([]byte("kept"))
	require.NoError(t, err)
	require.Equal(t, int64(0), newOffset)

	removed, err := rw.Commit()
	require.NoError(t, err)
	require.False(t, removed)

	got, err := fs.ReadRecord(Location{Segment: 0, Offset: 0, Length: 4})
	require.NoError(t, err)
	require.Equal(t, []byte("kept"), got)
}

func TestRewriterCommitRemovesEmptySegment(t *testing.T) {
	dir := t.TempDir()
	fs, err := Open(dir, 8)
	require.NoError(t, err)
	defer fs.Close()

	_, err = fs.WriteRecord([]byte("01234567"))
	require.NoError(t, err)
	_, err = fs.WriteRecord([]byte("active"))
	require.NoError(t, err)

	rw, err := fs.BeginRewrite(0)
	require.NoError(t, err)
	removed, err := rw.Commit()
	require.NoError(t, err)
	require.True(t, removed)
}

func TestRewriterAbortLeavesOriginalUntouched(t *testing.T) {
	dir := t.TempDir()
	fs, err := Open(dir, 8)
	require.NoError(t, err)
	defer fs.Close()

	_, err = fs.WriteRecord([]byte("01234567"))
	require.NoError(t, err)
	_, err = fs.WriteRecord([]byte("active"))
	require.NoError(t, err)

	rw, err := fs.BeginRewrite(0)
	require.NoError(t, err)
	_, err = rw.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, rw.Abort())

	got, err := fs.ReadRecord(Location{Segment: 0, Offset: 0, Length: 8})
	require.NoError(t, err)
	require.Equal(t, []byte("01234567"), got)
}

func TestRewriterRefusesActiveSegment(t *testing.T) {
	fs, err := Open(t.TempDir(), 0)
	require.NoError(t, err)
	defer fs.Close()

	_, err = fs.BeginRewrite(fs.ActiveSegment())
	require.Error(t, err)
}
