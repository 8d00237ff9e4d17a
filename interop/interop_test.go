package interop

import (
	"errors"
	"testing"

	"native-binder/codec"
)

func sample() codec.Value {
	return codec.Map(
		codec.Entry{Key: codec.Text("flag"), Value: codec.Bool(true)},
		codec.Entry{Key: codec.Text("level"), Value: codec.Float64(0.5)},
		codec.Entry{Key: codec.Text("name"), Value: codec.Text("battery")},
		codec.Entry{Key: codec.Text("big"), Value: codec.Int64(1 << 40)},
		codec.Entry{Key: codec.Text("items"), Value: codec.List(codec.Int32(1), codec.Null(), codec.Text("x"))},
	)
}

func TestRoundTripAllFormats(t *testing.T) {
	want := sample()
	wire, err := codec.Encode(want)
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range Formats() {
		data, err := FromWire(f, wire)
		if err != nil {
			t.Fatalf("%s: %v", f, err)
		}
		back, err := ToWire(f, data)
		if err != nil {
			t.Fatalf("%s: %v", f, err)
		}
		got, _, err := codec.Decode(back)
		if err != nil {
			t.Fatalf("%s: %v", f, err)
		}
		if !codec.Equal(got, want) {
			t.Errorf("%s: expect %s, got %s", f, want, got)
		}
	}
}

func TestJSONNumbers(t *testing.T) {
	v, err := ToValue(JSON, []byte(`{"i": 7, "f": 1.5, "big": 5000000000}`))
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		key  string
		want codec.Value
	}{
		{"i", codec.Int32(7)},
		{"f", codec.Float64(1.5)},
		{"big", codec.Int64(5000000000)},
	}
	for _, tc := range cases {
		got, ok := v.Lookup(tc.key)
		if !ok || !codec.Equal(got, tc.want) {
			t.Errorf("%s: expect %s, got %s", tc.key, tc.want, got)
		}
	}
}

func TestJSONTrailingData(t *testing.T) {
	if _, err := ToValue(JSON, []byte(`1 2`)); err == nil {
		t.Fatal("expect trailing data to be rejected")
	}
}

func TestYAMLNonTextKeys(t *testing.T) {
	v, err := ToValue(YAML, []byte("1: one\n2: two\n"))
	if err != nil {
		t.Fatal(err)
	}
	got, ok := v.Get(codec.Int32(2))
	if !ok || !codec.Equal(got, codec.Text("two")) {
		t.Fatalf("expect int key 2, got %s", v)
	}
	if _, err := FromValue(JSON, v); err == nil {
		t.Fatal("expect JSON to reject non-text keys")
	}
	if _, err := FromValue(CBOR, v); err != nil {
		t.Fatalf("CBOR should accept int keys: %v", err)
	}
}

func TestFromWireCorrupt(t *testing.T) {
	_, err := FromWire(JSON, []byte{codec.TagList, 3})
	if !errors.Is(err, codec.ErrCorruptMessage) {
		t.Fatalf("expect corrupt message, got %v", err)
	}
}

func TestDiagnose(t *testing.T) {
	wire, err := codec.Encode(codec.List(codec.Int32(1), codec.Text("a")))
	if err != nil {
		t.Fatal(err)
	}
	diag, err := Diagnose(wire)
	if err != nil {
		t.Fatal(err)
	}
	if diag != `[1, "a"]` {
		t.Fatalf("unexpected diagnostic notation %s", diag)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"JSON": JSON, "yml": YAML, "cbor": CBOR, " mp ": MsgPack} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("%q: expect %s, got %s (%v)", in, want, got, err)
		}
	}
	if _, err := ParseFormat("xml"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expect unknown format, got %v", err)
	}
	if !CBOR.Binary() || JSON.Binary() {
		t.Fatal("unexpected Binary classification")
	}
}
