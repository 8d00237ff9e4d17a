// Package codec implements the tagged binary value format shared by both
// sides of the boundary.
//
// Every value starts with a one-byte type tag. Sizes and element counts use a
// variable length prefix, integers and floats are little-endian, and Float64
// payloads are aligned to 8 bytes relative to the start of the whole buffer:
//
//	tag   payload
//	┌───┬──────────────────────────────────────────────┐
//	│ 0 │                                              │ null
//	│ 1 │                                              │ true
//	│ 2 │                                              │ false
//	│ 3 │ int32 LE                                     │
//	│ 4 │ int64 LE                                     │
//	│ 6 │ pad to 8 │ float64 LE                        │
//	│ 7 │ size │ UTF-8 bytes                           │
//	│12 │ size │ value ...                             │ list
//	│13 │ size │ key value ...                         │ map
//	└───┴──────────────────────────────────────────────┘
//
//	size: n < 254 → 1 byte; n ≤ 0xFFFF → 254 + uint16 LE; else 255 + uint32 LE
//
// Tag numbers are fixed; other implementations depend on them.
package codec

import (
	"errors"
	"fmt"
)

const (
	TagNull    byte = 0
	TagTrue    byte = 1
	TagFalse   byte = 2
	TagInt32   byte = 3
	TagInt64   byte = 4
	TagFloat64 byte = 6
	TagText    byte = 7
	TagList    byte = 12
	TagMap     byte = 13
)

const (
	sizeMarker16 = 254
	sizeMarker32 = 255
)

// MaxDepth bounds list/map nesting on decode.
const MaxDepth = 512

var (
	// ErrCorruptMessage matches every decode failure caused by malformed bytes.
	ErrCorruptMessage = errors.New("codec: corrupt message")
	// ErrUnsupportedKey is returned when encoding a map keyed by a list or map.
	ErrUnsupportedKey = errors.New("codec: unsupported map key")
	ErrTooLarge       = errors.New("codec: value too large")
)

// CorruptError describes where and why decoding failed.
type CorruptError struct {
	Offset int
	Reason string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("codec: corrupt message at offset %d: %s", e.Offset, e.Reason)
}

func (e *CorruptError) Unwrap() error { return ErrCorruptMessage }

func corrupt(offset int, format string, args ...any) error {
	return &CorruptError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// Encode writes v into a new buffer.
func Encode(v Value) ([]byte, error) {
	enc := NewEncoder()
	if err := enc.Write(v); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

// EncodeSequence writes values back-to-back into one buffer.
func EncodeSequence(values ...Value) ([]byte, error) {
	enc := NewEncoder()
	for _, v := range values {
		if err := enc.Write(v); err != nil {
			return nil, err
		}
	}
	return enc.Bytes(), nil
}

// Decode reads one value from the start of data and reports how many bytes
// it consumed. Trailing bytes are left alone.
func Decode(data []byte) (Value, int, error) {
	dec := NewDecoder(data)
	v, err := dec.Next()
	if err != nil {
		return Value{}, 0, err
	}
	return v, dec.Offset(), nil
}

// DecodeAll reads back-to-back values until data is exhausted.
func DecodeAll(data []byte) ([]Value, error) {
	dec := NewDecoder(data)
	var out []Value
	for dec.More() {
		v, err := dec.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// alignPad is the number of zero bytes needed before a Float64 payload that
// would otherwise start at pos.
func alignPad(pos int) int {
	return (8 - pos%8) % 8
}
