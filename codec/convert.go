package codec

import (
	"fmt"
	"math"
	"reflect"
	"sort"
)

// FromAny converts plain Go data into a Value. It accepts nil, bools, every
// integer and float type, strings, slices and maps of those, and Values.
// Map keys from Go maps are sorted so the result encodes deterministically.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int32(t), nil
	case int64:
		return Int(t), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint:
		return fromUint(uint64(t))
	case uint64:
		return fromUint(t)
	case float32:
		return Float64(float64(t)), nil
	case float64:
		return Float64(t), nil
	case string:
		return Text(t), nil
	case []Value:
		return List(t...), nil
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			item, err := FromAny(rv.Index(i).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = item
		}
		return Value{kind: KindList, list: items}, nil
	case reflect.Map:
		entries := make([]Entry, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, err := FromAny(iter.Key().Interface())
			if err != nil {
				return Value{}, fmt.Errorf("map key: %w", err)
			}
			if !isKeyKind(key.kind) {
				return Value{}, fmt.Errorf("%w: %s", ErrUnsupportedKey, key.kind)
			}
			val, err := FromAny(iter.Value().Interface())
			if err != nil {
				return Value{}, fmt.Errorf("map value for %s: %w", key, err)
			}
			entries = append(entries, Entry{Key: key, Value: val})
		}
		sort.Slice(entries, func(i, j int) bool {
			return keyLess(entries[i].Key, entries[j].Key)
		})
		return Map(entries...), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return FromAny(rv.Elem().Interface())
	}
	return Value{}, fmt.Errorf("codec: cannot convert %T", x)
}

func fromUint(n uint64) (Value, error) {
	if n > math.MaxInt64 {
		return Value{}, fmt.Errorf("%w: %d does not fit int64", ErrTooLarge, n)
	}
	return Int(int64(n)), nil
}

// keyLess orders map keys by kind first, then by natural order within a kind.
func keyLess(a, b Value) bool {
	a, b = a.Canonical(), b.Canonical()
	ak, bk := a.kind, b.kind
	if ak == KindInt64 {
		ak = KindInt32
	}
	if bk == KindInt64 {
		bk = KindInt32
	}
	if ak != bk {
		return ak < bk
	}
	switch ak {
	case KindBool:
		return !a.b && b.b
	case KindInt32:
		return a.i < b.i
	case KindFloat64:
		return a.f < b.f
	case KindText:
		return a.s < b.s
	}
	return false
}

// Any converts v back into plain Go data: nil, bool, int64, float64, string,
// []any, and map[string]any when every key is Text or map[any]any otherwise.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt32, KindInt64:
		return v.i
	case KindFloat64:
		return v.f
	case KindText:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Any()
		}
		return out
	case KindMap:
		textKeys := true
		for _, e := range v.m {
			if e.Key.kind != KindText {
				textKeys = false
				break
			}
		}
		if textKeys {
			out := make(map[string]any, len(v.m))
			for _, e := range v.m {
				out[e.Key.s] = e.Value.Any()
			}
			return out
		}
		out := make(map[any]any, len(v.m))
		for _, e := range v.m {
			out[e.Key.Any()] = e.Value.Any()
		}
		return out
	}
	return nil
}
