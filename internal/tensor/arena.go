package tensor

import (
	"fmt"

	"github.com/BurgessTheGamer/Llamux/internal/llamuxerr"
)

// alignment is applied to every descriptor and data region the arena hands
// out, matching the 32-byte alignment spec §4.1 requires.
const alignment = 32

func alignUp(n int, a int) int {
	return (n + a - 1) &^ (a - 1)
}

// defaultObjectCapacity bounds the arena's object table. A forward pass that
// needs more live nodes than this is almost certainly a bug rather than a
// legitimate graph, so overflow is reported as ErrNodeLimit rather than
// silently growing.
const defaultObjectCapacity = 4096

// Arena is a caller-provided (or self-allocated) byte slab, bump-allocated
// in order into tensor descriptors and tensor data. It owns its slab iff it
// allocated it; a slab passed in by the caller is only ever borrowed.
//
// The bump cursor is monotonically non-decreasing within a forward pass.
// ResetTo rewinds it between passes; nothing may reference a descriptor
// allocated after the mark once reset.
type Arena struct {
	slab   []byte
	owned  bool
	cursor int

	objects   []*Tensor
	objectCap int
}

// New creates an arena over slab. If slab is nil, the arena allocates (and
// owns) size bytes itself; otherwise it borrows the caller's slab and size
// is ignored.
func New(slab []byte, size int) *Arena {
	owned := false
	if slab == nil {
		slab = make([]byte, size)
		owned = true
	}

	a := &Arena{
		slab:      slab,
		owned:     owned,
		objectCap: defaultObjectCapacity,
	}
	a.cursor = alignUp(0, alignment)
	return a
}

// Mark returns a snapshot of the arena's current allocation state, to be
// passed to ResetTo once the caller is done with everything allocated
// since.
func (a *Arena) Mark() int {
	return a.cursor
}

// ResetTo rewinds the bump cursor and the object-table count to an earlier
// mark. Callers must ensure no descriptor allocated after the mark remains
// reachable once this returns. Only objects whose data lives inside the
// arena's own slab are tracked by cursor position; objects wrapping
// borrowed bytes from outside the slab (bound model weights) are always
// kept, since they were never carved out of the bump region in the first
// place.
func (a *Arena) ResetTo(mark int) {
	kept := a.objects[:0]
	for _, o := range a.objects {
		if !a.owns(o.Data) || dataStart(a.slab, o.Data) < mark {
			kept = append(kept, o)
		}
	}
	a.objects = kept
	a.cursor = mark
}

// owns reports whether data is a sub-slice of a's own slab.
func (a *Arena) owns(data []byte) bool {
	if len(data) == 0 || len(a.slab) == 0 {
		return false
	}
	off := uintptrOffset(a.slab, data)
	return off < uintptr(len(a.slab))
}

func dataStart(slab []byte, data []byte) int {
	if len(data) == 0 {
		return len(slab)
	}
	return int(uintptrOffset(slab, data))
}

// AllocTensor reserves a tensor descriptor and, unless borrowed is
// non-nil, a data region for it. The returned tensor is a leaf with the
// given dtype and shape; callers that want a graph node instead populate
// Op/Src/Scale/Rope themselves after allocation.
func (a *Arena) AllocTensor(dtype DType, shape []int64, borrowed []byte) (*Tensor, error) {
	if len(a.objects) >= a.objectCap {
		return nil, llamuxerr.ErrNodeLimit
	}

	t := &Tensor{DType: dtype, NDims: len(shape)}
	for i, s := range shape {
		t.Shape[i] = s
	}
	t.Stride[0] = int64(dtype.ElementSize())
	if dtype.Quantized() {
		t.Stride[0] = int64(dtype.BlockBytes())
	}
	for i := 1; i < len(shape); i++ {
		t.Stride[i] = t.Stride[i-1] * t.Shape[i-1]
	}

	if borrowed != nil {
		t.Data = borrowed
	} else {
		n := int(t.ByteSize())
		need := alignUp(n, alignment)
		if a.cursor+need > len(a.slab) {
			return nil, fmt.Errorf("%w: need %d bytes, %d available", llamuxerr.ErrOutOfMemory, need, len(a.slab)-a.cursor)
		}
		t.Data = a.slab[a.cursor : a.cursor+n : a.cursor+need]
		a.cursor += need
	}

	a.objects = append(a.objects, t)
	return t, nil
}

// Destroy releases the owned slab, if any. Borrowed slabs are left to their
// owner.
func (a *Arena) Destroy() {
	if a.owned {
		a.slab = nil
	}
}

// Len reports how many bytes of the slab are currently in use.
func (a *Arena) Len() int { return a.cursor }

// Cap reports the total slab size.
func (a *Arena) Cap() int { return len(a.slab) }
