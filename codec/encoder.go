package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encoder appends values to a growing buffer. Float64 alignment is computed
// against the start of that buffer, so a sequence written through one Encoder
// decodes correctly with one Decoder.
type Encoder struct {
	buf []byte
}

func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 64)}
}

// Write appends v. On error the buffer is left as it was before the call.
func (e *Encoder) Write(v Value) error {
	start := len(e.buf)
	if err := e.write(v); err != nil {
		e.buf = e.buf[:start]
		return err
	}
	return nil
}

// Bytes returns the encoded buffer. It aliases the Encoder's storage until the
// next Write or Reset.
func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) Len() int { return len(e.buf) }

func (e *Encoder) Reset() { e.buf = e.buf[:0] }

func (e *Encoder) write(v Value) error {
	switch v.kind {
	case KindNull:
		e.buf = append(e.buf, TagNull)
	case KindBool:
		if v.b {
			e.buf = append(e.buf, TagTrue)
		} else {
			e.buf = append(e.buf, TagFalse)
		}
	case KindInt32, KindInt64:
		// Canonical width: anything that fits goes out as Int32.
		if fitsInt32(v.i) {
			e.buf = append(e.buf, TagInt32)
			e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(int32(v.i)))
		} else {
			e.buf = append(e.buf, TagInt64)
			e.buf = binary.LittleEndian.AppendUint64(e.buf, uint64(v.i))
		}
	case KindFloat64:
		e.buf = append(e.buf, TagFloat64)
		for pad := alignPad(len(e.buf)); pad > 0; pad-- {
			e.buf = append(e.buf, 0)
		}
		e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(v.f))
	case KindText:
		e.buf = append(e.buf, TagText)
		if err := e.writeSize(len(v.s)); err != nil {
			return err
		}
		e.buf = append(e.buf, v.s...)
	case KindList:
		e.buf = append(e.buf, TagList)
		if err := e.writeSize(len(v.list)); err != nil {
			return err
		}
		for _, item := range v.list {
			if err := e.write(item); err != nil {
				return err
			}
		}
	case KindMap:
		e.buf = append(e.buf, TagMap)
		if err := e.writeSize(len(v.m)); err != nil {
			return err
		}
		for _, entry := range v.m {
			if !isKeyKind(entry.Key.kind) {
				return fmt.Errorf("%w: %s", ErrUnsupportedKey, entry.Key.kind)
			}
			if err := e.write(entry.Key); err != nil {
				return err
			}
			if err := e.write(entry.Value); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("codec: cannot encode %s", v.kind)
	}
	return nil
}

func (e *Encoder) writeSize(n int) error {
	switch {
	case n < sizeMarker16:
		e.buf = append(e.buf, byte(n))
	case n <= math.MaxUint16:
		e.buf = append(e.buf, sizeMarker16)
		e.buf = binary.LittleEndian.AppendUint16(e.buf, uint16(n))
	case uint64(n) <= math.MaxUint32:
		e.buf = append(e.buf, sizeMarker32)
		e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(n))
	default:
		return fmt.Errorf("%w: size %d", ErrTooLarge, n)
	}
	return nil
}
