package tensor

import "unsafe"

// uintptrOffset returns the byte offset of data's first element within
// slab, used by Arena.ResetTo to determine which previously allocated
// descriptors fall before a rewind mark.
func uintptrOffset(slab, data []byte) uintptr {
	if len(slab) == 0 || len(data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&data[0])) - uintptr(unsafe.Pointer(&slab[0]))
}

// asFloat32Slice reinterprets a byte slice backed by the arena as a float32
// view without copying. The arena guarantees 32-byte alignment for every
// data region, which satisfies float32 alignment on every supported
// architecture.
func asFloat32Slice(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)
}

// asInt32Slice reinterprets a byte slice as an int32 view without copying.
func asInt32Slice(b []byte) []int32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&b[0])), len(b)/4)
}
