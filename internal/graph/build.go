// Package graph implements the minimal computation-graph builder and
// executor (spec components E and F): matrix multiplication (including
// mixed quantized x float), element-wise add/mul, RMS-norm, SwiGLU's silu,
// softmax, rotary embedding, and an embedding-gather, all dispatched from a
// post-order topological sort over tensor.Tensor nodes allocated in an
// arena. No node does any computation at construction time — Compute does
// all of it, once, per node.
package graph

import (
	"fmt"

	"github.com/BurgessTheGamer/Llamux/internal/llamuxerr"
	"github.com/BurgessTheGamer/Llamux/internal/tensor"
)

// node allocates a new f32 output tensor of the given shape, tagged with op
// and its sources, without computing anything yet.
func node(a *tensor.Arena, op tensor.Op, shape []int64, src0, src1 *tensor.Tensor) (*tensor.Tensor, error) {
	t, err := a.AllocTensor(tensor.F32, shape, nil)
	if err != nil {
		return nil, err
	}
	t.Op = op
	t.Src[0] = src0
	t.Src[1] = src1
	return t, nil
}

// Add builds an element-wise addition node. a and b must share a shape.
func Add(arena *tensor.Arena, a, b *tensor.Tensor) (*tensor.Tensor, error) {
	if !sameShape(a, b) {
		return nil, fmt.Errorf("%w: add %v vs %v", llamuxerr.ErrShapeMismatch, shapeOf(a), shapeOf(b))
	}
	return node(arena, tensor.OpAdd, shapeOf(a), a, b)
}

// Mul builds an element-wise multiplication node, used both for plain
// Hadamard products and for the "gain vector broadcast over rows" pattern
// rms_norm's caller uses (b may have NDims==1 with the matching leading
// extent; broadcast over remaining axes is handled in the kernel, not the
// shape contract, since spec does not require general broadcasting).
func Mul(arena *tensor.Arena, a, b *tensor.Tensor) (*tensor.Tensor, error) {
	if a.Shape[0] != b.Shape[0] {
		return nil, fmt.Errorf("%w: mul %v vs %v", llamuxerr.ErrShapeMismatch, shapeOf(a), shapeOf(b))
	}
	return node(arena, tensor.OpMul, shapeOf(a), a, b)
}

// MulMat builds result = A * Bᵀ: both operands share the contracting axis
// on dimension 0, and the result has shape [B.Shape[1], A.Shape[1]]. This
// is the single normative matmul convention this fixes; every
// attention/feed-forward/output-head op built on top of it inherits the
// convention by construction.
func MulMat(arena *tensor.Arena, a, b *tensor.Tensor) (*tensor.Tensor, error) {
	if a.Shape[0] != b.Shape[0] {
		return nil, fmt.Errorf("%w: mul_mat contracting axis %d vs %d", llamuxerr.ErrShapeMismatch, a.Shape[0], b.Shape[0])
	}
	out := []int64{b.Shape[1], a.Shape[1]}
	return node(arena, tensor.OpMulMat, out, a, b)
}

// GetRows gathers rows of E (shape [d, V]) at the i32 indices in idx,
// producing [d, len(idx)].
func GetRows(arena *tensor.Arena, e, idx *tensor.Tensor) (*tensor.Tensor, error) {
	if idx.DType != tensor.I32 {
		return nil, fmt.Errorf("%w: get_rows index dtype %s", llamuxerr.ErrShapeMismatch, idx.DType)
	}
	out := []int64{e.Shape[0], idx.NElements()}
	return node(arena, tensor.OpGetRows, out, e, idx)
}

// RMSNorm builds a per-row RMS normalization node with the given epsilon
// recorded as its scale parameter.
func RMSNorm(arena *tensor.Arena, x *tensor.Tensor, eps float32) (*tensor.Tensor, error) {
	t, err := node(arena, tensor.OpRMSNorm, shapeOf(x), x, nil)
	if err != nil {
		return nil, err
	}
	t.Scale = eps
	return t, nil
}

// Scale builds a scalar-multiply node.
func Scale(arena *tensor.Arena, x *tensor.Tensor, s float32) (*tensor.Tensor, error) {
	t, err := node(arena, tensor.OpScale, shapeOf(x), x, nil)
	if err != nil {
		return nil, err
	}
	t.Scale = s
	return t, nil
}

// SiLU builds a silu(x) = x*sigmoid(x) node.
func SiLU(arena *tensor.Arena, x *tensor.Tensor) (*tensor.Tensor, error) {
	return node(arena, tensor.OpSiLU, shapeOf(x), x, nil)
}

// SoftMax builds a softmax-along-contiguous-axis node.
func SoftMax(arena *tensor.Arena, x *tensor.Tensor) (*tensor.Tensor, error) {
	return node(arena, tensor.OpSoftMax, shapeOf(x), x, nil)
}

// Rope builds a rotary position embedding node. Only the interleaved
// layout (mode 0) is required by this core.
func Rope(arena *tensor.Arena, x *tensor.Tensor, nPast, nDims int64) (*tensor.Tensor, error) {
	return RopeWithPeriod(arena, x, nPast, nDims, 0)
}

// RopeWithPeriod builds a rotary position embedding node that repeats its
// nDims-lane rotation inside every period-wide chunk of the row, used when
// x still holds every attention head concatenated (period == headDim)
// rather than a single already-split head (period == 0, equivalent to Rope).
func RopeWithPeriod(arena *tensor.Arena, x *tensor.Tensor, nPast, nDims, period int64) (*tensor.Tensor, error) {
	t, err := node(arena, tensor.OpRope, shapeOf(x), x, nil)
	if err != nil {
		return nil, err
	}
	t.Rope = tensor.RopeParams{NPast: nPast, NDims: nDims, Mode: 0, Period: period}
	return t, nil
}

// CausalMask builds a node that -infs every score in x (shape [keyLen, T])
// belonging to a key position beyond its query column's own absolute
// position, so soft_max never attends forward. nPast is the absolute
// position of query column 0; column c attends to keys [0, nPast+c].
func CausalMask(arena *tensor.Arena, x *tensor.Tensor, nPast int64) (*tensor.Tensor, error) {
	t, err := node(arena, tensor.OpCausalMask, shapeOf(x), x, nil)
	if err != nil {
		return nil, err
	}
	t.NPast = nPast
	return t, nil
}

// Transpose builds a node that swaps the first two axes. The present
// kernel materializes a dense copy rather than a strided view, which spec
// §4.4 explicitly permits.
func Transpose(arena *tensor.Arena, x *tensor.Tensor) (*tensor.Tensor, error) {
	shape := shapeOf(x)
	if len(shape) < 2 {
		return nil, fmt.Errorf("%w: transpose needs >=2 dims, got %d", llamuxerr.ErrShapeMismatch, len(shape))
	}
	shape[0], shape[1] = shape[1], shape[0]
	return node(arena, tensor.OpTranspose, shape, x, nil)
}

func shapeOf(t *tensor.Tensor) []int64 {
	return append([]int64(nil), t.Shape[:t.NDims]...)
}

func sameShape(a, b *tensor.Tensor) bool {
	if a.NDims != b.NDims {
		return false
	}
	for i := 0; i < a.NDims; i++ {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	return true
}
