package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndexSetGetDelete(t *testing.T) {
	idx := NewIndex()

	_, ok := idx.Get("a")
	require.False(t, ok)

	idx.Set("a", Entry{Segment: 0, Offset: 10, Length: 5})
	got, ok := idx.Get("a")
	require.True(t, ok)
	require.Equal(t, Entry{Segment: 0, Offset: 10, Length: 5}, got)

	idx.Set("a", Entry{Segment: 1, Offset: 0, Length: 5})
	got, ok = idx.Get("a")
	require.True(t, ok)
	require.Equal(t, uint64(1), got.Segment)

	require.Equal(t, 1, idx.Len())
	idx.Delete("a")
	_, ok = idx.Get("a")
	require.False(t, ok)
	require.Equal(t, 0, idx.Len())
}

func TestIndexSortedKeys(t *testing.T) {
	idx := NewIndex()
	idx.Set("banana", Entry{})
	idx.Set("apple", Entry{})
	idx.Set("cherry", Entry{})

	require.Equal(t, []string{"apple", "banana", "cherry"}, idx.SortedKeys())
}
