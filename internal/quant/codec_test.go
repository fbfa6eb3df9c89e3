package quant

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BurgessTheGamer/Llamux/internal/llamuxerr"
	"github.com/BurgessTheGamer/Llamux/internal/tensor"
)

func TestDequantizeRowF32(t *testing.T) {
	src := make([]byte, 8)
	bits := math.Float32bits(3.5)
	src[0] = byte(bits)
	src[1] = byte(bits >> 8)
	src[2] = byte(bits >> 16)
	src[3] = byte(bits >> 24)

	dst := make([]float32, 2)
	require.NoError(t, DequantizeRow(tensor.F32, src, dst, 2))
	require.InDelta(t, 3.5, dst[0], 1e-6)
}

func TestDequantizeRowF16(t *testing.T) {
	h := Float32ToHalf(1.5)
	src := []byte{byte(h), byte(h >> 8)}
	dst := make([]float32, 1)
	require.NoError(t, DequantizeRow(tensor.F16, src, dst, 1))
	require.InDelta(t, 1.5, dst[0], 1e-3)
}

func TestDequantizeRowUnsupported(t *testing.T) {
	dst := make([]float32, 1)
	err := DequantizeRow(tensor.Q6K, make([]byte, 210), dst, 1)
	require.ErrorIs(t, err, llamuxerr.ErrUnsupported)
}
