package engine

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Command{
		NewSet("key", "value"),
		NewDel("key"),
	}
	for _, want := range cases {
		encoded, err := Encode(want)
		require.NoError(t, err)

		dec := NewDecoder(bytes.NewReader(encoded))
		got, offset, err := dec.Next()
		require.NoError(t, err)
		require.Equal(t, want, got)
		require.Equal(t, int64(len(encoded)), offset)

		_, _, err = dec.Next()
		require.Equal(t, io.EOF, err)
	}
}

func TestDecoderStreamsConcatenatedRecords(t *testing.T) {
	a, err := Encode(NewSet("a", "1"))
	require.NoError(t, err)
	b, err := Encode(NewDel("a"))
	require.NoError(t, err)

	dec := NewDecoder(bytes.NewReader(append(a, b...)))

	cmd1, off1, err := dec.Next()
	require.NoError(t, err)
	require.Equal(t, KindSet, cmd1.Kind)
	require.Equal(t, int64(len(a)), off1)

	cmd2, off2, err := dec.Next()
	require.NoError(t, err)
	require.Equal(t, KindDel, cmd2.Kind)
	require.Equal(t, int64(len(a)+len(b)), off2)

	_, _, err = dec.Next()
	require.Equal(t, io.EOF, err)
}

func TestDecoderReportsTornTail(t *testing.T) {
	encoded, err := Encode(NewSet("a", "1"))
	require.NoError(t, err)

	truncated := encoded[:len(encoded)-2]
	dec := NewDecoder(bytes.NewReader(truncated))

	_, _, err = dec.Next()
	require.ErrorIs(t, err, ErrTornTail)
}

func TestCommandValidateRejectsEmptyKey(t *testing.T) {
	_, err := Encode(Command{Kind: KindSet, Key: "", Value: "v"})
	require.ErrorIs(t, err, ErrMalformedRecord)
}

func TestCommandValidateRejectsEmptySetValue(t *testing.T) {
	_, err := Encode(Command{Kind: KindSet, Key: "k", Value: ""})
	require.ErrorIs(t, err, ErrMalformedRecord)
}
