package quant

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildQ4KBlock assembles one synthetic 144-byte Q4_K block with constant
// d, dmin and per-pair scale/min, matching the concrete test vector in the
// spec's testable-properties section: d=1.0, dmin=0, scale[j]=6 for all
// eight pairs.
func buildQ4KBlock(d, dmin float32, scale, min [8]uint8, qs [128]byte) []byte {
	block := make([]byte, blockQ4KBytes)
	dh := Float32ToHalf(d)
	dminh := Float32ToHalf(dmin)
	block[0] = byte(dh)
	block[1] = byte(dh >> 8)
	block[2] = byte(dminh)
	block[3] = byte(dminh >> 8)

	// Pack scale[0..3]/min[0..3] into the low 6 bits of bytes 0..3/4..7,
	// and scale[4..7]/min[4..7] split across the remaining nibbles, the
	// inverse of unpackScalesMins.
	for p := 0; p < 4; p++ {
		block[4+p] = scale[p] & 0x3F
		block[8+p] = min[p] & 0x3F
	}
	for p := 4; p < 8; p++ {
		block[4+p-4] |= (scale[p] >> 4) << 6
		block[8+p-4] |= (min[p] >> 4) << 6
		block[8+p] = (scale[p] & 0x0F) | ((min[p] & 0x0F) << 4)
	}
	copy(block[16:144], qs[:])
	return block
}

func TestDequantizeQ4KVector(t *testing.T) {
	var scale, min [8]uint8
	for i := range scale {
		scale[i] = 6
	}
	var qs [128]byte
	qs[0] = 0x78

	block := buildQ4KBlock(1.0, 0, scale, min, qs)
	out := make([]float32, blockElements)
	dequantizeQ4K(block, out)

	require.InDelta(t, 0.0, out[0], 1e-4)
	require.InDelta(t, -6.0, out[1], 1e-4)
}

func TestDequantizeQ4KMultiBlock(t *testing.T) {
	var scale, min [8]uint8
	for i := range scale {
		scale[i] = 4
	}
	var qs [128]byte
	block := buildQ4KBlock(2.0, 1.0, scale, min, qs)
	src := append(append([]byte{}, block...), block...)

	out := make([]float32, 2*blockElements)
	dequantizeQ4K(src, out)

	require.Len(t, out, 2*blockElements)
	require.InDelta(t, out[0], out[blockElements], 1e-6)
}

func TestUnpackScalesMinsRoundTrip(t *testing.T) {
	var scale, min [8]uint8
	for i := range scale {
		scale[i] = uint8(i + 1)
		min[i] = uint8(7 - i)
	}
	var qs [128]byte
	block := buildQ4KBlock(1, 0, scale, min, qs)
	gotScale, gotMin := unpackScalesMins(block[4:16])
	require.Equal(t, scale, gotScale)
	require.Equal(t, min, gotMin)
}
