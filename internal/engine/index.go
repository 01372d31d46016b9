package engine

import "sort"

// Entry names one record's location: which segment, its byte offset, and its
// encoded length. (segment, offset) identity is what compaction uses to
// decide whether a record is still live (see §4.4).
type Entry struct {
	Segment uint64
	Offset  int64
	Length  int64
}

// Index is the in-memory map from key to the location of the last Set for
// that key not yet superseded by a later Set or Del. The teacher's index is
// a fixed-width mmap table; the original loxp/kvs project used a BTreeMap
// for the same purpose. We keep a plain map and sort keys on demand for the
// callers (compaction, tests) that want deterministic iteration order.
type Index struct {
	entries map[string]Entry
}

func NewIndex() *Index {
	return &Index{entries: make(map[string]Entry)}
}

func (idx *Index) Get(key string) (Entry, bool) {
	e, ok := idx.entries[key]
	return e, ok
}

func (idx *Index) Set(key string, e Entry) {
	idx.entries[key] = e
}

func (idx *Index) Delete(key string) {
	delete(idx.entries, key)
}

func (idx *Index) Len() int {
	return len(idx.entries)
}

// SortedKeys returns every indexed key in ascending order.
func (idx *Index) SortedKeys() []string {
	keys := make([]string, 0, len(idx.entries))
	for k := range idx.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
