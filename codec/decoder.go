package codec

import (
	"encoding/binary"
	"math"
)

// Decoder reads back-to-back values from a buffer. Decoded values never alias
// the input: text is copied out, so the caller may release the buffer as soon
// as decoding is done.
type Decoder struct {
	data []byte
	off  int
}

func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// More reports whether unread bytes remain.
func (d *Decoder) More() bool { return d.off < len(d.data) }

// Offset is the position of the next unread byte.
func (d *Decoder) Offset() int { return d.off }

// Next decodes the value at the current offset. On error the offset is not
// advanced.
func (d *Decoder) Next() (Value, error) {
	start := d.off
	v, err := d.read(0)
	if err != nil {
		d.off = start
		return Value{}, err
	}
	return v, nil
}

func (d *Decoder) remaining() int { return len(d.data) - d.off }

func (d *Decoder) read(depth int) (Value, error) {
	if depth > MaxDepth {
		return Value{}, corrupt(d.off, "nesting deeper than %d", MaxDepth)
	}
	if d.remaining() < 1 {
		return Value{}, corrupt(d.off, "missing type tag")
	}
	tag := d.data[d.off]
	d.off++

	switch tag {
	case TagNull:
		return Null(), nil
	case TagTrue:
		return Bool(true), nil
	case TagFalse:
		return Bool(false), nil
	case TagInt32:
		if d.remaining() < 4 {
			return Value{}, corrupt(d.off, "int32 needs 4 bytes, have %d", d.remaining())
		}
		n := int32(binary.LittleEndian.Uint32(d.data[d.off:]))
		d.off += 4
		return Int32(n), nil
	case TagInt64:
		if d.remaining() < 8 {
			return Value{}, corrupt(d.off, "int64 needs 8 bytes, have %d", d.remaining())
		}
		n := int64(binary.LittleEndian.Uint64(d.data[d.off:]))
		d.off += 8
		return Int64(n), nil
	case TagFloat64:
		pad := alignPad(d.off)
		if d.remaining() < pad+8 {
			return Value{}, corrupt(d.off, "float64 needs %d bytes, have %d", pad+8, d.remaining())
		}
		d.off += pad
		f := math.Float64frombits(binary.LittleEndian.Uint64(d.data[d.off:]))
		d.off += 8
		return Float64(f), nil
	case TagText:
		n, err := d.readSize()
		if err != nil {
			return Value{}, err
		}
		if d.remaining() < n {
			return Value{}, corrupt(d.off, "text of %d bytes overruns buffer (%d left)", n, d.remaining())
		}
		s := string(d.data[d.off : d.off+n])
		d.off += n
		return Text(s), nil
	case TagList:
		n, err := d.readSize()
		if err != nil {
			return Value{}, err
		}
		// Every element takes at least one byte.
		if d.remaining() < n {
			return Value{}, corrupt(d.off, "list of %d elements overruns buffer (%d bytes left)", n, d.remaining())
		}
		items := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			item, err := d.read(depth + 1)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return Value{kind: KindList, list: items}, nil
	case TagMap:
		n, err := d.readSize()
		if err != nil {
			return Value{}, err
		}
		if d.remaining()/2 < n {
			return Value{}, corrupt(d.off, "map of %d entries overruns buffer (%d bytes left)", n, d.remaining())
		}
		entries := make([]Entry, 0, n)
		for i := 0; i < n; i++ {
			key, err := d.read(depth + 1)
			if err != nil {
				return Value{}, err
			}
			val, err := d.read(depth + 1)
			if err != nil {
				return Value{}, err
			}
			// Entries with list or map keys are dropped, not rejected.
			if !isKeyKind(key.kind) {
				continue
			}
			entries = append(entries, Entry{Key: key, Value: val})
		}
		return Map(entries...), nil
	}
	return Value{}, corrupt(d.off-1, "unknown type tag %d", tag)
}

func (d *Decoder) readSize() (int, error) {
	if d.remaining() < 1 {
		return 0, corrupt(d.off, "missing size prefix")
	}
	marker := d.data[d.off]
	d.off++
	switch marker {
	case sizeMarker16:
		if d.remaining() < 2 {
			return 0, corrupt(d.off, "truncated 16-bit size")
		}
		n := binary.LittleEndian.Uint16(d.data[d.off:])
		d.off += 2
		return int(n), nil
	case sizeMarker32:
		if d.remaining() < 4 {
			return 0, corrupt(d.off, "truncated 32-bit size")
		}
		n := binary.LittleEndian.Uint32(d.data[d.off:])
		d.off += 4
		if uint64(n) > uint64(math.MaxInt) {
			return 0, corrupt(d.off, "size %d exceeds platform limit", n)
		}
		return int(n), nil
	}
	return int(marker), nil
}
