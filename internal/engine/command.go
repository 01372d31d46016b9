package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Kind distinguishes the two command variants a record can hold.
type Kind string

const (
	KindSet Kind = "set"
	KindDel Kind = "del"
)

// Command is the tagged variant persisted to a segment: either a Set{Key,
// Value} or a Del{Key}. Both cases require a non-empty Key; Set additionally
// requires a non-empty Value.
type Command struct {
	Kind  Kind   `json:"type"`
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

func NewSet(key, value string) Command { return Command{Kind: KindSet, Key: key, Value: value} }

func NewDel(key string) Command { return Command{Kind: KindDel, Key: key} }

func (c Command) validate() error {
	if c.Key == "" {
		return fmt.Errorf("%w: empty key", ErrMalformedRecord)
	}
	switch c.Kind {
	case KindSet:
		if c.Value == "" {
			return fmt.Errorf("%w: set with empty value", ErrMalformedRecord)
		}
	case KindDel:
	default:
		return fmt.Errorf("%w: unknown command kind %q", ErrMalformedRecord, c.Kind)
	}
	return nil
}

// Encode produces the self-delimiting on-disk form of a command. Records are
// concatenated JSON objects; a streaming json.Decoder can recover each
// record's length without re-scanning the file (see Decoder.Next).
func Encode(c Command) ([]byte, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(c)
}

// Decoder streams Commands out of a segment, reporting the absolute byte
// offset at which the next record begins after each successful decode.
type Decoder struct {
	dec *json.Decoder
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: json.NewDecoder(r)}
}

// ErrTornTail marks an incomplete trailing record: bytes remain in the
// stream but do not form a complete command. Replay (§4.4) treats this as
// end-of-file when it occurs on the highest-numbered segment, and as a
// fatal error anywhere else.
var ErrTornTail = errors.New("torn tail: incomplete trailing record")

// Next decodes the next command and returns the absolute byte offset
// immediately following it. It returns io.EOF when the stream ends cleanly
// on a record boundary, ErrTornTail when it ends mid-record, and
// ErrMalformedRecord for any other decode failure.
func (d *Decoder) Next() (Command, int64, error) {
	var c Command
	err := d.dec.Decode(&c)
	switch {
	case err == nil:
		if verr := c.validate(); verr != nil {
			return Command{}, 0, verr
		}
		return c, d.dec.InputOffset(), nil
	case errors.Is(err, io.EOF):
		return Command{}, 0, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return Command{}, 0, ErrTornTail
	default:
		var syn *json.SyntaxError
		if errors.As(err, &syn) {
			return Command{}, 0, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		return Command{}, 0, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
}
