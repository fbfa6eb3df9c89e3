package quant

import (
	"fmt"
	"math"

	"github.com/BurgessTheGamer/Llamux/internal/llamuxerr"
	"github.com/BurgessTheGamer/Llamux/internal/tensor"
)

// DequantizeRow decodes n elements of the given dtype from src into dst
// (which must have room for n float32 values), dispatching to the block
// decoder for quantized types and falling back to a straight copy for
// already-float data. Unsupported quantized variants (q5_K, q6_K, q8_K) are
// named here but routed to an explicit TODO path rather than silently
// misinterpreted, per this.
func DequantizeRow(dtype tensor.DType, src []byte, dst []float32, n int) error {
	switch dtype {
	case tensor.F32:
		copy(dst[:n], asFloat32(src)[:n])
		return nil
	case tensor.F16:
		dequantizeF16(src, dst[:n])
		return nil
	case tensor.Q4K:
		dequantizeQ4K(src[:tensor.Q4K.RowBytes(int64(n))], dst[:n])
		return nil
	case tensor.Q5K, tensor.Q6K, tensor.Q8K:
		// TODO: implement once a model exercising these variants is
		// available to validate against; for now this is a named,
		// explicit rejection rather than a silent misread.
		return fmt.Errorf("%w: dtype %s dequantization not implemented", llamuxerr.ErrUnsupported, dtype)
	default:
		return fmt.Errorf("%w: dtype %s", llamuxerr.ErrUnsupported, dtype)
	}
}

func dequantizeF16(src []byte, dst []float32) {
	for i := range dst {
		h := uint16(src[2*i]) | uint16(src[2*i+1])<<8
		dst[i] = HalfToFloat32(h)
	}
}

func asFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		bits := uint32(b[4*i]) | uint32(b[4*i+1])<<8 | uint32(b[4*i+2])<<16 | uint32(b[4*i+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}
