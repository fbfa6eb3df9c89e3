// Package kvcache implements the per-layer key/value cache the driver
// appends to on every forward step. An open question over per-layer
// versus single-slab storage is resolved here in favor of one slab per
// tensor (K and V each shaped [d, L*Cmax]), with a Slice accessor giving
// every caller the same per-layer view a per-layer cache would — grounded
// on kvcache/constructors.go and forward.go's cache-as-tensor-slice
// pattern, narrowed from a multi-sequence design down to a single active
// sequence, since this core only ever serves one generation at a time.
package kvcache

import (
	"fmt"

	"github.com/BurgessTheGamer/Llamux/internal/llamuxerr"
	"github.com/BurgessTheGamer/Llamux/internal/tensor"
)

// Cache holds the key and value slabs for every layer of one sequence.
type Cache struct {
	arena *tensor.Arena
	K     *tensor.Tensor
	V     *tensor.Tensor

	D     int64
	L     int64
	Cmax  int64
	NPast int64
}

// New allocates a cache with room for L layers of Cmax positions each, d
// elements wide.
func New(arena *tensor.Arena, d, l, cmax int64) (*Cache, error) {
	k, err := arena.AllocTensor(tensor.F32, []int64{d, l * cmax}, nil)
	if err != nil {
		return nil, fmt.Errorf("kvcache: alloc K: %w", err)
	}
	v, err := arena.AllocTensor(tensor.F32, []int64{d, l * cmax}, nil)
	if err != nil {
		return nil, fmt.Errorf("kvcache: alloc V: %w", err)
	}
	return &Cache{arena: arena, K: k, V: v, D: d, L: l, Cmax: cmax}, nil
}

// sliceOf returns the portion of t spanning positions [from, to) in the
// given layer, as a borrowed (non-owning) tensor view over the slab.
func (c *Cache) sliceOf(t *tensor.Tensor, layer int64, from, to int64) (*tensor.Tensor, error) {
	if layer < 0 || layer >= c.L {
		return nil, fmt.Errorf("%w: kvcache layer %d out of range", llamuxerr.ErrShapeMismatch, layer)
	}
	if from < 0 || to > c.Cmax || from > to {
		return nil, fmt.Errorf("%w: kvcache range [%d,%d) out of range", llamuxerr.ErrShapeMismatch, from, to)
	}
	rowBytes := c.D * int64(tensor.F32.ElementSize())
	base := layer*c.Cmax*rowBytes + from*rowBytes
	length := (to - from) * rowBytes
	view, err := c.arena.AllocTensor(tensor.F32, []int64{c.D, to - from}, t.Data[base:base+length])
	if err != nil {
		return nil, err
	}
	return view, nil
}

// SliceK returns layer's key cache over [from, to).
func (c *Cache) SliceK(layer int, from, to int64) (*tensor.Tensor, error) {
	return c.sliceOf(c.K, int64(layer), from, to)
}

// SliceV returns layer's value cache over [from, to).
func (c *Cache) SliceV(layer int, from, to int64) (*tensor.Tensor, error) {
	return c.sliceOf(c.V, int64(layer), from, to)
}

// Append writes k and v (each [d, T]) into layer's cache at
// [c.NPast, c.NPast+T). Callers must advance NPast themselves once every
// layer has appended for the step, since a single Cache instance is shared
// across all layers of one forward pass.
func (c *Cache) Append(layer int, k, v *tensor.Tensor) error {
	t := k.Shape[1]
	if c.NPast+t > c.Cmax {
		return fmt.Errorf("%w: kvcache n_past=%d + T=%d > Cmax=%d", llamuxerr.ErrContextOverflow, c.NPast, t, c.Cmax)
	}
	if err := c.writeInto(c.K, int64(layer), k); err != nil {
		return err
	}
	return c.writeInto(c.V, int64(layer), v)
}

func (c *Cache) writeInto(dst *tensor.Tensor, layer int64, src *tensor.Tensor) error {
	rowBytes := c.D * int64(tensor.F32.ElementSize())
	base := layer*c.Cmax*rowBytes + c.NPast*rowBytes
	n := src.ByteSize()
	if base+n > dst.ByteSize() {
		return fmt.Errorf("%w: kvcache write past slab end", llamuxerr.ErrContextOverflow)
	}
	copy(dst.Data[base:base+n], src.Data)
	return nil
}

// Advance moves NPast forward by t positions, once every layer of the
// current step has appended.
func (c *Cache) Advance(t int64) {
	c.NPast += t
}

// Reset clears the cache back to an empty sequence (NPast = 0). The
// underlying bytes are not zeroed — Append overwrites positions from NPast
// onward before Forward reads them through SliceK/SliceV, so stale bytes
// beyond the written prefix are not read.
func (c *Cache) Reset() {
	c.NPast = 0
}
