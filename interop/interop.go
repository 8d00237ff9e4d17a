// Package interop converts between the bridge's wire encoding and common
// self-describing formats, so payloads can be written by hand, inspected, or
// handed to tools that do not speak the wire format.
//
// Conversion goes through plain Go data (codec.FromAny / Value.Any), so a
// round trip keeps values but not map entry order: text-keyed maps come back
// sorted by key.
package interop

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"native-binder/codec"
)

type Format string

const (
	JSON    Format = "json"
	YAML    Format = "yaml"
	CBOR    Format = "cbor"
	MsgPack Format = "msgpack"
)

var ErrUnknownFormat = errors.New("interop: unknown format")

// Formats lists the supported formats in display order.
func Formats() []Format {
	return []Format{JSON, YAML, CBOR, MsgPack}
}

// ParseFormat accepts a format name case-insensitively; "yml" and "mp" are
// accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "cbor":
		return CBOR, nil
	case "msgpack", "mp":
		return MsgPack, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownFormat, s)
}

// Binary reports whether the format is a binary encoding.
func (f Format) Binary() bool {
	return f == CBOR || f == MsgPack
}

var cborEncMode cbor.EncMode
var cborDecMode cbor.DecMode

func init() {
	var err error
	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("interop: CBOR encoder initialization failed: " + err.Error())
	}
	cborDecMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[any]any(nil)),
	}.DecMode()
	if err != nil {
		panic("interop: CBOR decoder initialization failed: " + err.Error())
	}
}

// ToValue parses data in the given format.
func ToValue(f Format, data []byte) (codec.Value, error) {
	var x any
	var err error
	switch f {
	case JSON:
		x, err = unmarshalJSON(data)
	case YAML:
		err = yaml.Unmarshal(data, &x)
	case CBOR:
		err = cborDecMode.Unmarshal(data, &x)
	case MsgPack:
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.SetMapDecoder(func(d *msgpack.Decoder) (any, error) {
			return d.DecodeUntypedMap()
		})
		err = dec.Decode(&x)
	default:
		return codec.Value{}, fmt.Errorf("%w %q", ErrUnknownFormat, f)
	}
	if err != nil {
		return codec.Value{}, fmt.Errorf("interop: parse %s: %w", f, err)
	}
	v, err := codec.FromAny(normalize(x))
	if err != nil {
		return codec.Value{}, fmt.Errorf("interop: %s: %w", f, err)
	}
	return v, nil
}

// FromValue renders v in the given format. JSON cannot represent maps with
// non-text keys and reports an error for them.
func FromValue(f Format, v codec.Value) ([]byte, error) {
	x := v.Any()
	var out []byte
	var err error
	switch f {
	case JSON:
		out, err = json.MarshalIndent(x, "", "  ")
		if err == nil {
			out = append(out, '\n')
		}
	case YAML:
		out, err = yaml.Marshal(x)
	case CBOR:
		out, err = cborEncMode.Marshal(x)
	case MsgPack:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetSortMapKeys(true)
		err = enc.Encode(x)
		out = buf.Bytes()
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, f)
	}
	if err != nil {
		return nil, fmt.Errorf("interop: render %s: %w", f, err)
	}
	return out, nil
}

// ToWire converts data in the given format to wire bytes.
func ToWire(f Format, data []byte) ([]byte, error) {
	v, err := ToValue(f, data)
	if err != nil {
		return nil, err
	}
	return codec.Encode(v)
}

// FromWire converts wire bytes to the given format.
func FromWire(f Format, wire []byte) ([]byte, error) {
	v, _, err := codec.Decode(wire)
	if err != nil {
		return nil, err
	}
	return FromValue(f, v)
}

// Diagnose renders wire bytes in CBOR diagnostic notation (RFC 8949 §8), a
// compact one-line form handy in logs.
func Diagnose(wire []byte) (string, error) {
	data, err := FromWire(CBOR, wire)
	if err != nil {
		return "", err
	}
	return cbor.Diagnose(data)
}

func unmarshalJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON value")
	}
	return x, nil
}

// normalize rewrites values the codec does not take directly: JSON numbers
// become int64 when integral, float64 otherwise, and byte strings become text.
func normalize(x any) any {
	switch t := x.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, _ := t.Float64()
		return f
	case []byte:
		return string(t)
	case []any:
		for i := range t {
			t[i] = normalize(t[i])
		}
		return t
	case map[string]any:
		for k, v := range t {
			t[k] = normalize(v)
		}
		return t
	case map[any]any:
		out := make(map[any]any, len(t))
		for k, v := range t {
			out[normalize(k)] = normalize(v)
		}
		return out
	}
	return x
}
