package arraystore

import (
	"fmt"
	"unsafe"
)

// Backend decides where loaded arrays are materialised. It is chosen once
// when a store is opened and has no effect on shapes or values.
type Backend interface {
	Name() string

	// Alloc returns a zeroed buffer of n bytes.
	Alloc(n int) []byte
}

// HostBackend allocates ordinary Go heap memory.
type HostBackend struct{}

func (HostBackend) Name() string { return "host" }

func (HostBackend) Alloc(n int) []byte { return make([]byte, n) }

// AlignedBackend allocates buffers whose first element sits on an Alignment
// byte boundary, as required for DMA transfers to accelerators and for wide
// SIMD loads.
type AlignedBackend struct {
	Alignment int
}

func (AlignedBackend) Name() string { return "aligned" }

func (b AlignedBackend) Alloc(n int) []byte {
	align := b.Alignment
	if align <= 0 {
		align = 64
	}
	raw := make([]byte, n+align)
	off := 0
	if rem := int(uintptr(unsafe.Pointer(unsafe.SliceData(raw))) % uintptr(align)); rem != 0 {
		off = align - rem
	}
	return raw[off : off+n : off+n]
}

// BackendByName returns the backend registered under name ("host" or
// "aligned"). An empty name selects the host backend.
func BackendByName(name string) (Backend, error) {
	switch name {
	case "", "host":
		return HostBackend{}, nil
	case "aligned":
		return AlignedBackend{Alignment: 64}, nil
	default:
		return nil, fmt.Errorf("unknown array backend %q", name)
	}
}

// allocSlice returns a zeroed []T of length n backed by memory from b.
func allocSlice[T Element](b Backend, n int) []T {
	if n == 0 {
		return []T{}
	}
	var zero T
	buf := b.Alloc(n * int(unsafe.Sizeof(zero)))
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(buf))), n)
}
