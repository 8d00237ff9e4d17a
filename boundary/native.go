package boundary

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// CallFunc is the function shape used in both directions: it takes an owned
// request buffer and returns a response buffer whose length is stored in
// outLen. The callee allocates the response; the caller frees it. Returning
// Absent means nothing is bound on the callee side.
type CallFunc func(req Pointer, reqLen uint32, outLen *uint32) Pointer

// Dispatcher turns request bytes into response bytes. *dispatcher.Dispatcher
// satisfies it.
type Dispatcher interface {
	HandleIncoming(data []byte) []byte
}

// NativeLibrary is the native side of the boundary. Its Call and Free form the
// forward entry points the managed side links against; RegisterCallback and
// CallManaged carry calls the other way.
type NativeLibrary struct {
	heap   *Heap
	logger *zap.Logger

	mu       sync.RWMutex
	platform Dispatcher
	callback CallFunc
}

type LibraryOption func(*NativeLibrary)

// WithPlatform binds the dispatcher that serves forward calls.
func WithPlatform(d Dispatcher) LibraryOption {
	return func(l *NativeLibrary) { l.platform = d }
}

func WithLibraryLogger(logger *zap.Logger) LibraryOption {
	return func(l *NativeLibrary) { l.logger = logger }
}

func NewNativeLibrary(heap *Heap, opts ...LibraryOption) *NativeLibrary {
	l := &NativeLibrary{
		heap:   heap,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Heap returns the allocation space shared with the managed side.
func (l *NativeLibrary) Heap() *Heap {
	return l.heap
}

// Bind replaces the dispatcher serving forward calls. Passing nil unbinds it.
func (l *NativeLibrary) Bind(d Dispatcher) {
	l.mu.Lock()
	l.platform = d
	l.mu.Unlock()
}

// Call is the forward entry point. It reads the request, dispatches it on
// the platform side and returns a freshly allocated response. The request
// stays owned by the caller. Absent is returned, with outLen zero, when no
// dispatcher is bound or the request cannot be read.
func (l *NativeLibrary) Call(req Pointer, reqLen uint32, outLen *uint32) Pointer {
	*outLen = 0
	l.mu.RLock()
	platform := l.platform
	l.mu.RUnlock()
	if platform == nil || req == Absent {
		return Absent
	}

	in, err := l.heap.Read(req, reqLen)
	if err != nil {
		l.logger.Warn("read request", zap.Error(err))
		return Absent
	}
	return l.respond(platform.HandleIncoming(in), outLen)
}

// Free releases a buffer returned by Call.
func (l *NativeLibrary) Free(p Pointer) error {
	return l.heap.Free(p)
}

// RegisterCallback installs the managed entry point used by CallManaged.
// Registering nil removes it.
func (l *NativeLibrary) RegisterCallback(fn CallFunc) {
	l.mu.Lock()
	l.callback = fn
	l.mu.Unlock()
}

// CallManaged sends a request to the managed side through the registered
// callback. Without a callback it fails with ErrUnavailable before anything
// is allocated.
func (l *NativeLibrary) CallManaged(req []byte) ([]byte, error) {
	l.mu.RLock()
	callback := l.callback
	l.mu.RUnlock()
	if callback == nil {
		return nil, ErrUnavailable
	}

	in := l.heap.Alloc(uint32(len(req)))
	if err := l.heap.Write(in, req); err != nil {
		l.heap.Free(in)
		return nil, err
	}
	var outLen uint32
	out := callback(in, uint32(len(req)), &outLen)
	if err := l.heap.Free(in); err != nil {
		l.logger.Error("free reverse request", zap.Error(err))
	}
	if out == Absent {
		return nil, ErrUnavailable
	}

	resp, err := l.heap.Read(out, outLen)
	if ferr := l.heap.Free(out); ferr != nil && err == nil {
		err = ferr
	}
	if err != nil {
		return nil, fmt.Errorf("reverse response: %w", err)
	}
	return resp, nil
}

// respond copies data into a new heap buffer. An empty response still gets a
// real allocation so the caller always has something to free.
func (l *NativeLibrary) respond(data []byte, outLen *uint32) Pointer {
	p := l.heap.Alloc(uint32(len(data)))
	if err := l.heap.Write(p, data); err != nil {
		l.heap.Free(p)
		l.logger.Error("write response", zap.Error(err))
		return Absent
	}
	*outLen = uint32(len(data))
	return p
}

// ManagedEndpoint exposes a managed dispatcher as a CallFunc that native code
// can register with RegisterCallback. The response is allocated on heap and
// handed to the native caller, which copies and frees it.
func ManagedEndpoint(heap *Heap, d Dispatcher) CallFunc {
	return func(req Pointer, reqLen uint32, outLen *uint32) Pointer {
		*outLen = 0
		if d == nil || req == Absent {
			return Absent
		}
		in, err := heap.Read(req, reqLen)
		if err != nil {
			return Absent
		}
		resp := d.HandleIncoming(in)
		p := heap.Alloc(uint32(len(resp)))
		if err := heap.Write(p, resp); err != nil {
			heap.Free(p)
			return Absent
		}
		*outLen = uint32(len(resp))
		return p
	}
}
