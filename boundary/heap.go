// Package boundary moves encoded calls across the managed/native boundary.
//
// Both sides share one allocation space (Heap) and one function shape
// (CallFunc). Whoever allocates a buffer hands it across together with the
// duty to free it:
//
//	managed caller                         native library
//	──────────────                         ──────────────
//	req := heap.Alloc(n); write request
//	Call(req, n, &outLen) ───────────────→ read request, dispatch
//	                                       resp := heap.Alloc(m); write response
//	                     ←─────────────── return resp, outLen = m
//	heap.Free(req)
//	copy resp[:m]
//	Free(resp)            ───────────────→ heap.Free(resp)
//
// The reverse direction (native calling managed handlers) is the mirror image:
// the native side owns the request and the managed endpoint allocates the
// response, which the native side copies and frees immediately.
package boundary

import (
	"errors"
	"fmt"
	"sync"
)

// Pointer addresses a buffer in a Heap. The zero Pointer is Absent.
type Pointer uintptr

// Absent is the null pointer. A CallFunc returns it to signal that no binding
// is present on the other side.
const Absent Pointer = 0

var (
	ErrDoubleFree     = errors.New("boundary: double free")
	ErrInvalidPointer = errors.New("boundary: invalid pointer")
	ErrOutOfBounds    = errors.New("boundary: access out of bounds")
	ErrUnavailable    = errors.New("boundary: no binding present")
)

// freedHistory bounds how many released pointers are remembered for
// double-free detection. Older pointers report ErrInvalidPointer instead.
const freedHistory = 4096

// heapAlign keeps every buffer 8-byte aligned so encoded Float64 payloads
// land on aligned addresses, like malloc.
const heapAlign = 8

// Heap is a process-wide allocation space shared by both sides of the
// boundary. Addresses are never reused, so a stale pointer is always caught
// instead of silently aliasing a newer buffer. Only the most recent
// freedHistory frees are remembered as such.
type Heap struct {
	mu     sync.Mutex
	next   Pointer
	blocks map[Pointer][]byte
	freed  map[Pointer]struct{}
	ring   []Pointer // freed pointers, oldest at ringAt once full
	ringAt int
}

func NewHeap() *Heap {
	return &Heap{
		next:   heapAlign,
		blocks: make(map[Pointer][]byte),
		freed:  make(map[Pointer]struct{}),
	}
}

// Alloc reserves n bytes and returns their address. A zero-length request
// still yields a distinct, freeable pointer.
func (h *Heap) Alloc(n uint32) Pointer {
	h.mu.Lock()
	defer h.mu.Unlock()

	p := h.next
	size := uint64(n)
	if size == 0 {
		size = 1
	}
	h.next += Pointer((size + heapAlign - 1) &^ (heapAlign - 1))
	h.blocks[p] = make([]byte, n)
	return p
}

// Bytes returns the live buffer at p, limited to n bytes. The slice aliases
// the heap and is only valid until p is freed.
func (h *Heap) Bytes(p Pointer, n uint32) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, err := h.lookup(p)
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(len(b)) {
		return nil, fmt.Errorf("%w: %d bytes at %#x, buffer holds %d", ErrOutOfBounds, n, uintptr(p), len(b))
	}
	return b[:n:n], nil
}

// Write copies data into the buffer at p.
func (h *Heap) Write(p Pointer, data []byte) error {
	dst, err := h.Bytes(p, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}

// Read returns a copy of the first n bytes at p.
func (h *Heap) Read(p Pointer, n uint32) ([]byte, error) {
	src, err := h.Bytes(p, n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, src)
	return out, nil
}

// Free releases the buffer at p. Freeing Absent is a no-op, like free(NULL).
func (h *Heap) Free(p Pointer) error {
	if p == Absent {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.freed[p]; ok {
		return fmt.Errorf("%w at %#x", ErrDoubleFree, uintptr(p))
	}
	if _, err := h.lookup(p); err != nil {
		return err
	}
	delete(h.blocks, p)
	h.remember(p)
	return nil
}

func (h *Heap) remember(p Pointer) {
	if len(h.ring) < freedHistory {
		h.ring = append(h.ring, p)
	} else {
		delete(h.freed, h.ring[h.ringAt])
		h.ring[h.ringAt] = p
		h.ringAt = (h.ringAt + 1) % freedHistory
	}
	h.freed[p] = struct{}{}
}

// Live reports the number of allocated, not yet freed buffers.
func (h *Heap) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.blocks)
}

func (h *Heap) lookup(p Pointer) ([]byte, error) {
	if b, ok := h.blocks[p]; ok {
		return b, nil
	}
	if _, ok := h.freed[p]; ok {
		return nil, fmt.Errorf("%w %#x: already freed", ErrInvalidPointer, uintptr(p))
	}
	return nil, fmt.Errorf("%w %#x", ErrInvalidPointer, uintptr(p))
}
