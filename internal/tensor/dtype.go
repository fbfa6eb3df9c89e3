// Package tensor implements the in-memory tensor model and the bump-allocated
// arena that backs it (spec components A and B): a semantic n-dimensional
// array description plus the linear allocator tensor descriptors and tensor
// data are carved out of. No computation lives here; see package graph for
// op dispatch.
package tensor

// DType enumerates the element types a Tensor may carry. Only F32, F16, Q4K
// and I32 are fully implemented; Q5K, Q6K and Q8K are recognized so the file
// parser and assembler can name them, but any attempt to dequantize one
// dispatches to an explicit Unsupported error rather than silently
// misinterpreting the bytes.
type DType int

const (
	F32 DType = iota
	F16
	Q4K
	Q5K
	Q6K
	Q8K
	I32
)

func (d DType) String() string {
	switch d {
	case F32:
		return "f32"
	case F16:
		return "f16"
	case Q4K:
		return "q4_K"
	case Q5K:
		return "q5_K"
	case Q6K:
		return "q6_K"
	case Q8K:
		return "q8_K"
	case I32:
		return "i32"
	default:
		return "unknown"
	}
}

// ElementSize returns the on-the-wire byte size of one scalar element for
// non-quantized dtypes. Quantized dtypes are not addressed per-element; use
// BlockSize and BlockBytes instead.
func (d DType) ElementSize() int {
	switch d {
	case F32, I32:
		return 4
	case F16:
		return 2
	default:
		return 0
	}
}

// Quantized reports whether a value of this dtype is stored as packed
// super-blocks rather than individually addressable scalars.
func (d DType) Quantized() bool {
	switch d {
	case Q4K, Q5K, Q6K, Q8K:
		return true
	default:
		return false
	}
}

// BlockSize is the number of logical elements covered by one quantized
// super-block (the "block granularity" of spec §3).
func (d DType) BlockSize() int {
	switch d {
	case Q4K, Q5K, Q6K, Q8K:
		return 256
	default:
		return 1
	}
}

// BlockBytes is the packed on-disk size of one quantized super-block.
func (d DType) BlockBytes() int {
	switch d {
	case Q4K:
		return 144
	case Q5K:
		return 176
	case Q6K:
		return 210
	case Q8K:
		return 292
	default:
		return 0
	}
}

// RowBytes returns the number of bytes occupied by a contiguous run of n
// elements of this dtype, honoring quantized block granularity.
func (d DType) RowBytes(n int64) int64 {
	if d.Quantized() {
		bs := int64(d.BlockSize())
		if bs == 0 {
			return 0
		}
		return (n / bs) * int64(d.BlockBytes())
	}
	return n * int64(d.ElementSize())
}
