package boundary

import (
	"bytes"
	"errors"
	"sync"
	"testing"
)

// upper answers every request with its bytes upper-cased; an empty request
// gets an empty response.
type upper struct{}

func (upper) HandleIncoming(data []byte) []byte {
	return bytes.ToUpper(data)
}

func TestHeapAllocFree(t *testing.T) {
	h := NewHeap()
	a := h.Alloc(5)
	b := h.Alloc(0)
	if a == Absent || b == Absent || a == b {
		t.Fatalf("expect distinct present pointers, got %#x and %#x", a, b)
	}
	if a%heapAlign != 0 || b%heapAlign != 0 {
		t.Fatalf("expect aligned pointers, got %#x and %#x", a, b)
	}
	if h.Live() != 2 {
		t.Fatalf("expect 2 live buffers, got %d", h.Live())
	}

	if err := h.Write(a, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	got, err := h.Read(a, 5)
	if err != nil || string(got) != "hello" {
		t.Fatalf("expect hello, got %q (%v)", got, err)
	}
	if _, err := h.Read(a, 6); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expect out of bounds, got %v", err)
	}

	if err := h.Free(a); err != nil {
		t.Fatal(err)
	}
	if err := h.Free(b); err != nil {
		t.Fatal(err)
	}
	if h.Live() != 0 {
		t.Fatalf("expect no live buffers, got %d", h.Live())
	}
}

func TestHeapDoubleFree(t *testing.T) {
	h := NewHeap()
	p := h.Alloc(4)
	if err := h.Free(p); err != nil {
		t.Fatal(err)
	}
	if err := h.Free(p); !errors.Is(err, ErrDoubleFree) {
		t.Fatalf("expect double free, got %v", err)
	}
	if _, err := h.Read(p, 1); !errors.Is(err, ErrInvalidPointer) {
		t.Fatalf("expect read after free to fail, got %v", err)
	}
	if err := h.Free(Pointer(0xdead0)); !errors.Is(err, ErrInvalidPointer) {
		t.Fatalf("expect invalid pointer, got %v", err)
	}
	if err := h.Free(Absent); err != nil {
		t.Fatalf("free of absent pointer should be a no-op, got %v", err)
	}
}

func TestHeapFreedHistoryBounded(t *testing.T) {
	h := NewHeap()
	first := h.Alloc(1)
	h.Free(first)
	for i := 0; i < 3*freedHistory; i++ {
		h.Free(h.Alloc(1))
	}
	if len(h.freed) != freedHistory || len(h.ring) != freedHistory {
		t.Fatalf("expect %d remembered frees, got %d", freedHistory, len(h.freed))
	}
	last := h.Alloc(1)
	h.Free(last)
	if err := h.Free(last); !errors.Is(err, ErrDoubleFree) {
		t.Fatalf("expect recent double free detected, got %v", err)
	}
	if err := h.Free(first); !errors.Is(err, ErrInvalidPointer) {
		t.Fatalf("expect forgotten pointer to be invalid, got %v", err)
	}
	if h.Live() != 0 {
		t.Fatalf("expect no live buffers, got %d", h.Live())
	}
}

func TestCallWithoutPlatform(t *testing.T) {
	h := NewHeap()
	lib := NewNativeLibrary(h)
	req := h.Alloc(1)
	outLen := uint32(99)
	if out := lib.Call(req, 1, &outLen); out != Absent || outLen != 0 {
		t.Fatalf("expect absent response, got %#x len %d", out, outLen)
	}
	h.Free(req)

	if _, err := NewForwardTransport(lib, nil).RoundTrip([]byte("x")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expect unavailable, got %v", err)
	}
	if h.Live() != 0 {
		t.Fatalf("expect no leaked buffers, got %d", h.Live())
	}
}

func TestNilLibraryUnavailable(t *testing.T) {
	var fwd *ForwardTransport
	if _, err := fwd.RoundTrip([]byte("x")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expect unavailable, got %v", err)
	}
	if _, err := NewForwardTransport(nil, nil).RoundTrip([]byte("x")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expect unavailable, got %v", err)
	}
	if _, err := NewReverseTransport(nil).RoundTrip([]byte("x")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expect unavailable, got %v", err)
	}
}

func TestForwardRoundTrip(t *testing.T) {
	h := NewHeap()
	lib := NewNativeLibrary(h, WithPlatform(upper{}))
	tr := NewForwardTransport(lib, nil)

	resp, err := tr.RoundTrip([]byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != "HELLO" {
		t.Fatalf("expect HELLO, got %q", resp)
	}
	if h.Live() != 0 {
		t.Fatalf("expect every buffer freed, %d live", h.Live())
	}
}

func TestZeroLengthResponseAllocated(t *testing.T) {
	h := NewHeap()
	lib := NewNativeLibrary(h, WithPlatform(upper{}))

	req := h.Alloc(0)
	var outLen uint32
	out := lib.Call(req, 0, &outLen)
	if out == Absent {
		t.Fatal("expect an allocated buffer for an empty response")
	}
	if outLen != 0 {
		t.Fatalf("expect zero length, got %d", outLen)
	}
	if err := lib.Free(out); err != nil {
		t.Fatal(err)
	}
	if err := lib.Free(out); !errors.Is(err, ErrDoubleFree) {
		t.Fatalf("expect double free on second release, got %v", err)
	}
	h.Free(req)
	if h.Live() != 0 {
		t.Fatalf("expect no live buffers, got %d", h.Live())
	}
}

func TestForwardCallStorm(t *testing.T) {
	h := NewHeap()
	lib := NewNativeLibrary(h, WithPlatform(upper{}))
	tr := NewForwardTransport(lib, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := tr.RoundTrip([]byte("abc"))
			if err != nil {
				errs <- err
				return
			}
			if string(resp) != "ABC" {
				errs <- errors.New("unexpected response " + string(resp))
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if h.Live() != 0 {
		t.Fatalf("expect every buffer freed after the storm, %d live", h.Live())
	}
}

func TestReverseUnavailableWithoutCallback(t *testing.T) {
	h := NewHeap()
	lib := NewNativeLibrary(h)
	if _, err := NewReverseTransport(lib).RoundTrip([]byte("hi")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expect unavailable, got %v", err)
	}
	if h.Live() != 0 {
		t.Fatalf("expect nothing allocated, got %d live", h.Live())
	}
}

func TestReverseRoundTrip(t *testing.T) {
	h := NewHeap()
	lib := NewNativeLibrary(h)
	lib.RegisterCallback(ManagedEndpoint(h, upper{}))

	resp, err := NewReverseTransport(lib).RoundTrip([]byte("managed"))
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != "MANAGED" {
		t.Fatalf("expect MANAGED, got %q", resp)
	}
	if h.Live() != 0 {
		t.Fatalf("expect every buffer freed, %d live", h.Live())
	}

	lib.RegisterCallback(nil)
	if _, err := lib.CallManaged([]byte("again")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expect unavailable after unregistering, got %v", err)
	}
}

func TestManagedEndpointAbsentRequest(t *testing.T) {
	h := NewHeap()
	fn := ManagedEndpoint(h, upper{})
	outLen := uint32(7)
	if out := fn(Absent, 0, &outLen); out != Absent || outLen != 0 {
		t.Fatalf("expect absent, got %#x len %d", out, outLen)
	}
	if h.Live() != 0 {
		t.Fatalf("expect nothing allocated, got %d live", h.Live())
	}
}
