package tensor

// Op tags the operation that produces a Tensor. OpNone marks a leaf: a
// weight loaded from the model file, or an input supplied by the caller.
type Op int

const (
	OpNone Op = iota
	OpAdd
	OpMul
	OpMulMat
	OpGetRows
	OpRMSNorm
	OpScale
	OpSiLU
	OpSoftMax
	OpRope
	OpTranspose
	OpCausalMask
)

func (o Op) String() string {
	switch o {
	case OpNone:
		return "none"
	case OpAdd:
		return "add"
	case OpMul:
		return "mul"
	case OpMulMat:
		return "mul_mat"
	case OpGetRows:
		return "get_rows"
	case OpRMSNorm:
		return "rms_norm"
	case OpScale:
		return "scale"
	case OpSiLU:
		return "silu"
	case OpSoftMax:
		return "soft_max"
	case OpRope:
		return "rope"
	case OpTranspose:
		return "transpose"
	case OpCausalMask:
		return "causal_mask"
	default:
		return "unknown"
	}
}

// MaxDims is the largest rank a Tensor may have, per spec §3.
const MaxDims = 4

// RopeParams carries the scratch parameters a rope node needs at execution
// time: the position offset already consumed, the number of rotated lanes,
// the layout mode, and the repeat period. Only interleaved (mode 0) is
// required by this core. Period lets one rope node rotate a multi-head row
// (Q or K before the per-head split) by repeating the same NDims-lane
// rotation inside every Period-wide chunk of the row; Period == 0 means
// "the whole row is one chunk", which also covers the already-per-head
// case where a caller ropes a single [headDim, T] view directly.
type RopeParams struct {
	NPast  int64
	NDims  int64
	Mode   int
	Period int64
}

// Tensor is a semantic n-dimensional array (n <= MaxDims): either a leaf
// (Op == OpNone) whose Data is externally supplied, or a node awaiting
// evaluation by the graph executor. Shape and Stride are always populated
// even for unevaluated nodes, since every op determines its output shape at
// construction time -- only the bytes arrive later.
type Tensor struct {
	Name  string
	DType DType

	Shape  [MaxDims]int64
	Stride [MaxDims]int64
	NDims  int

	// Data is borrowed: either a slice into the arena's slab (leaf weights,
	// node outputs once computed) or into a caller-owned buffer.
	Data []byte

	Op     Op
	Src    [2]*Tensor
	Scale  float32
	Rope   RopeParams
	// NPast is the causal_mask node's query-position offset: column c of a
	// [keyLen, T] score matrix corresponds to absolute position NPast+c, and
	// every key row beyond that position is masked out before soft_max.
	NPast  int64
	Failed bool
}

// Leaf reports whether t is an input or weight rather than a node to
// compute.
func (t *Tensor) Leaf() bool { return t.Op == OpNone }

// NElements returns the product of the populated shape extents.
func (t *Tensor) NElements() int64 {
	n := int64(1)
	for i := 0; i < t.NDims; i++ {
		n *= t.Shape[i]
	}
	return n
}

// Rows returns the number of rows, i.e. the product of all extents beyond
// the contiguous axis (Shape[0]).
func (t *Tensor) Rows() int64 {
	n := int64(1)
	for i := 1; i < t.NDims; i++ {
		n *= t.Shape[i]
	}
	return n
}

// ByteSize returns the number of bytes the tensor's data region occupies,
// honoring quantized block granularity on the contiguous axis.
func (t *Tensor) ByteSize() int64 {
	if t.NDims == 0 {
		return 0
	}
	return t.DType.RowBytes(t.Shape[0]) * t.Rows()
}

// Float32Data returns the tensor's backing bytes viewed as a []float32,
// used by ops that operate directly on dequantized data.
func (t *Tensor) Float32Data() []float32 {
	return asFloat32Slice(t.Data)
}

// Int32Data views an I32 tensor's backing bytes as a []int32.
func (t *Tensor) Int32Data() []int32 {
	return asInt32Slice(t.Data)
}
