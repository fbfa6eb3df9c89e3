package graph

import (
	"fmt"

	"github.com/BurgessTheGamer/Llamux/internal/llamuxerr"
	"github.com/BurgessTheGamer/Llamux/internal/quant"
	"github.com/BurgessTheGamer/Llamux/internal/tensor"
)

// kernelMulMat computes result = A * Bᵀ: A has shape [k, m], B has shape
// [k, n], result has shape [n, m] (dimension 0 is the contiguous axis in
// every case). When A is quantized, one row of A is dequantized at a time
// into a scratch buffer and dotted against every column of B — this is the
// one place in the core where a quantized operand participates directly in
// compute, per this.
func kernelMulMat(n *tensor.Tensor) error {
	a, b := n.Src[0], n.Src[1]
	if a.Shape[0] != b.Shape[0] {
		return fmt.Errorf("%w: mul_mat contracting axis %d vs %d", llamuxerr.ErrShapeMismatch, a.Shape[0], b.Shape[0])
	}

	k := int(a.Shape[0])
	m := int(a.Shape[1])
	rows := int(b.Shape[1])

	bf := requireF32(b)
	if bf == nil {
		return fmt.Errorf("%w: mul_mat second operand must be f32", llamuxerr.ErrUnsupported)
	}
	of := n.Float32Data()

	rowBytes := int(a.DType.RowBytes(int64(k)))
	scratch := make([]float32, k)

	var err error
	withFPU(func() {
		for i := 0; i < m; i++ {
			maybeYield(i)

			var arow []float32
			if a.DType == tensor.F32 {
				arow = requireF32(a)[i*k : (i+1)*k]
			} else {
				start := i * rowBytes
				end := start + rowBytes
				if end > len(a.Data) {
					err = fmt.Errorf("%w: mul_mat row %d out of range", llamuxerr.ErrShapeMismatch, i)
					return
				}
				if dqErr := quant.DequantizeRow(a.DType, a.Data[start:end], scratch, k); dqErr != nil {
					err = dqErr
					return
				}
				arow = scratch
			}

			for j := 0; j < rows; j++ {
				brow := bf[j*k : (j+1)*k]
				var sum float32
				for l := 0; l < k; l++ {
					sum += arow[l] * brow[l]
				}
				of[i*rows+j] = sum
			}
		}
	})
	return err
}
