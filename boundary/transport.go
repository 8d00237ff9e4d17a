package boundary

import (
	"fmt"

	"go.uber.org/zap"
)

// Transport carries one encoded request across the boundary and returns the
// encoded response. Calls are synchronous: RoundTrip blocks until the other
// side has produced its answer.
type Transport interface {
	RoundTrip(req []byte) ([]byte, error)
}

// TransportFunc adapts a plain function to Transport.
type TransportFunc func(req []byte) ([]byte, error)

func (f TransportFunc) RoundTrip(req []byte) ([]byte, error) { return f(req) }

// ForwardTransport sends managed calls into a NativeLibrary.
//
// One round trip touches two buffers, each freed exactly once:
//
//	request:  allocated here → lent to Call → freed here right after Call returns
//	response: allocated by the library → copied here → returned to the library's Free
//
// Concurrent RoundTrips are safe; every call uses its own pair of buffers.
type ForwardTransport struct {
	lib    *NativeLibrary
	logger *zap.Logger
}

func NewForwardTransport(lib *NativeLibrary, logger *zap.Logger) *ForwardTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ForwardTransport{lib: lib, logger: logger}
}

func (t *ForwardTransport) RoundTrip(req []byte) ([]byte, error) {
	if t == nil || t.lib == nil {
		return nil, ErrUnavailable
	}
	heap := t.lib.Heap()

	// Step 1: copy the request into a buffer the library can read
	in := heap.Alloc(uint32(len(req)))
	if err := heap.Write(in, req); err != nil {
		heap.Free(in)
		return nil, fmt.Errorf("write request: %w", err)
	}

	// Step 2: blocking call; the request stays ours and is released right away
	var outLen uint32
	out := t.lib.Call(in, uint32(len(req)), &outLen)
	if err := heap.Free(in); err != nil {
		t.logger.Error("free request", zap.Error(err))
	}
	if out == Absent {
		return nil, ErrUnavailable
	}

	// Step 3: copy the response out, then hand its buffer back exactly once
	resp, err := heap.Read(out, outLen)
	if ferr := t.lib.Free(out); ferr != nil {
		t.logger.Error("free response", zap.Error(ferr))
		if err == nil {
			err = ferr
		}
	}
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return resp, nil
}

// ReverseTransport sends calls from the native side to managed handlers
// registered through NativeLibrary.RegisterCallback.
type ReverseTransport struct {
	lib *NativeLibrary
}

func NewReverseTransport(lib *NativeLibrary) *ReverseTransport {
	return &ReverseTransport{lib: lib}
}

func (t *ReverseTransport) RoundTrip(req []byte) ([]byte, error) {
	if t == nil || t.lib == nil {
		return nil, ErrUnavailable
	}
	return t.lib.CallManaged(req)
}
