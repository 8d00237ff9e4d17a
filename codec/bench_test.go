package codec

import "testing"

func benchValue() Value {
	return Map(
		Entry{Key: Text("id"), Value: Int(42)},
		Entry{Key: Text("level"), Value: Float64(0.87)},
		Entry{Key: Text("charging"), Value: Bool(true)},
		Entry{Key: Text("tags"), Value: List(Text("a"), Text("b"), Int64(1<<40))},
	)
}

func BenchmarkEncode(b *testing.B) {
	v := benchValue()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Encode(v); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecode(b *testing.B) {
	data, err := Encode(benchValue())
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := Decode(data); err != nil {
			b.Fatal(err)
		}
	}
}
