package sled

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loxp/kvs/internal/engine"
)

func TestSledSetGetRemove(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir, nil)
	require.NoError(t, err)
	defer e.Close()

	_, ok, err := e.Get("missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, e.Set("a", "1"))
	value, ok, err := e.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", value)

	require.NoError(t, e.Remove("a"))
	require.ErrorIs(t, e.Remove("a"), engine.ErrKeyNotFound)
}

func TestSledRejectsEngineMismatch(t *testing.T) {
	dir := t.TempDir()

	e, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = engine.Open(dir)
	require.ErrorIs(t, err, engine.ErrInvalidStorageEngineType)
}

var _ engine.Store = (*Engine)(nil)
