package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind byte

const (
	KindNull Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindFloat64
	KindText
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindText:
		return "text"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is the recursive tagged value carried across the boundary.
//
// The zero Value is Null. Values are immutable: constructors copy the slices
// they are given and accessors hand out copies.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    []Entry
}

// Entry is one key/value pair of a Map.
type Entry struct {
	Key   Value
	Value Value
}

func Null() Value { return Value{} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Int32(n int32) Value { return Value{kind: KindInt32, i: int64(n)} }

// Int64 builds a 64-bit integer. It is still written as Int32 on the wire
// when it fits; see Canonical.
func Int64(n int64) Value { return Value{kind: KindInt64, i: n} }

// Int builds the narrowest integer variant that holds n.
func Int(n int64) Value {
	if fitsInt32(n) {
		return Int32(int32(n))
	}
	return Int64(n)
}

func Float64(f float64) Value { return Value{kind: KindFloat64, f: f} }

func Text(s string) Value { return Value{kind: KindText, s: s} }

// List builds an ordered list.
func List(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// Map builds a map from entries in the given order. An entry whose key equals
// an earlier key replaces that earlier entry's value in place.
func Map(entries ...Entry) Value {
	m := make([]Entry, 0, len(entries))
	index := make(map[primitiveKey]int, len(entries))
	for _, e := range entries {
		if k, ok := keyOf(e.Key); ok {
			if at, seen := index[k]; seen {
				m[at].Value = e.Value
				continue
			}
			index[k] = len(m)
		}
		m = append(m, e)
	}
	return Value{kind: KindMap, m: m}
}

// TextMap is a convenience for the common map-with-text-keys case. Keys are
// emitted in the order given by keys.
func TextMap(keys []string, values map[string]Value) Value {
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, Entry{Key: Text(k), Value: values[k]})
	}
	return Map(entries...)
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer held by either integer variant.
func (v Value) AsInt() (int64, bool) {
	return v.i, v.kind == KindInt32 || v.kind == KindInt64
}

func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat64 }

func (v Value) AsText() (string, bool) { return v.s, v.kind == KindText }

// Len is the element count of a List or Map and the byte length of a Text.
func (v Value) Len() int {
	switch v.kind {
	case KindText:
		return len(v.s)
	case KindList:
		return len(v.list)
	case KindMap:
		return len(v.m)
	}
	return 0
}

// Index returns the i-th list element, or Null when out of range.
func (v Value) Index(i int) Value {
	if v.kind != KindList || i < 0 || i >= len(v.list) {
		return Value{}
	}
	return v.list[i]
}

func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	cp := make([]Value, len(v.list))
	copy(cp, v.list)
	return cp
}

func (v Value) Entries() []Entry {
	if v.kind != KindMap {
		return nil
	}
	cp := make([]Entry, len(v.m))
	copy(cp, v.m)
	return cp
}

// Get looks key up in a Map.
func (v Value) Get(key Value) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	for _, e := range v.m {
		if keyEqual(e.Key, key) {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Lookup is Get with a Text key.
func (v Value) Lookup(key string) (Value, bool) {
	return v.Get(Text(key))
}

// Canonical returns v with every Int64 that fits in 32 bits narrowed to
// Int32. This is what a decoder sees after an encode.
func (v Value) Canonical() Value {
	switch v.kind {
	case KindInt64:
		return Int(v.i)
	case KindList:
		out := make([]Value, len(v.list))
		for i, item := range v.list {
			out[i] = item.Canonical()
		}
		return Value{kind: KindList, list: out}
	case KindMap:
		out := make([]Entry, len(v.m))
		for i, e := range v.m {
			out[i] = Entry{Key: e.Key.Canonical(), Value: e.Value.Canonical()}
		}
		return Map(out...)
	}
	return v
}

// Equal reports structural equality. Variants must match exactly, floats
// compare by bit pattern so NaN equals itself, and map entry order is ignored.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt32, KindInt64:
		return a.i == b.i
	case KindFloat64:
		return math.Float64bits(a.f) == math.Float64bits(b.f)
	case KindText:
		return a.s == b.s
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		for _, e := range a.m {
			other, ok := b.Get(e.Key)
			if !ok || !Equal(e.Value, other) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) String() string {
	var sb strings.Builder
	v.format(&sb)
	return sb.String()
}

func (v Value) format(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case KindInt32, KindInt64:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat64:
		sb.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
	case KindText:
		sb.WriteString(strconv.Quote(v.s))
	case KindList:
		sb.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.format(sb)
		}
		sb.WriteByte(']')
	case KindMap:
		sb.WriteByte('{')
		for i, e := range v.m {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.Key.format(sb)
			sb.WriteString(": ")
			e.Value.format(sb)
		}
		sb.WriteByte('}')
	default:
		fmt.Fprintf(sb, "<%s>", v.kind)
	}
}

// isKeyKind reports whether k may be used as a Map key.
func isKeyKind(k Kind) bool {
	switch k {
	case KindNull, KindBool, KindInt32, KindInt64, KindFloat64, KindText:
		return true
	}
	return false
}

// primitiveKey is the comparable form of a map key after canonicalization.
type primitiveKey struct {
	kind Kind
	b    bool
	i    int64
	f    uint64
	s    string
}

func keyOf(v Value) (primitiveKey, bool) {
	if !isKeyKind(v.kind) {
		return primitiveKey{}, false
	}
	c := v.Canonical()
	return primitiveKey{kind: c.kind, b: c.b, i: c.i, f: math.Float64bits(c.f), s: c.s}, true
}

// keyEqual compares keys as they will appear after encoding, so Int64(1) and
// Int32(1) address the same entry.
func keyEqual(a, b Value) bool {
	return Equal(a.Canonical(), b.Canonical())
}

func fitsInt32(n int64) bool {
	return n >= math.MinInt32 && n <= math.MaxInt32
}
