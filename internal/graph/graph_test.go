package graph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BurgessTheGamer/Llamux/internal/tensor"
)

func leafF32(t *testing.T, arena *tensor.Arena, shape []int64, vals []float32) *tensor.Tensor {
	t.Helper()
	lt, err := arena.AllocTensor(tensor.F32, shape, nil)
	require.NoError(t, err)
	copy(lt.Float32Data(), vals)
	return lt
}

func TestMulMatConvention(t *testing.T) {
	arena := tensor.New(nil, 1<<20)

	// A: [k=2, m=2], B: [k=2, n=2] -> result [n=2, m=2]
	a := leafF32(t, arena, []int64{2, 2}, []float32{1, 0, 0, 1})
	b := leafF32(t, arena, []int64{2, 2}, []float32{1, 2, 3, 4})

	out, err := MulMat(arena, a, b)
	require.NoError(t, err)
	g := Build(out)
	require.NoError(t, g.Compute(arena))

	require.Equal(t, int64(2), out.Shape[0])
	require.Equal(t, int64(2), out.Shape[1])
}

func TestRMSNormIdempotentOnUnitVector(t *testing.T) {
	arena := tensor.New(nil, 1<<20)
	x := leafF32(t, arena, []int64{4}, []float32{1, 1, 1, 1})

	out, err := RMSNorm(arena, x, 1e-5)
	require.NoError(t, err)
	g := Build(out)
	require.NoError(t, g.Compute(arena))

	for _, v := range out.Float32Data() {
		require.InDelta(t, 1.0, v, 1e-3)
	}
}

func TestSoftMaxSumsToOne(t *testing.T) {
	arena := tensor.New(nil, 1<<20)
	x := leafF32(t, arena, []int64{4}, []float32{1, 2, 3, 4})

	out, err := SoftMax(arena, x)
	require.NoError(t, err)
	g := Build(out)
	require.NoError(t, g.Compute(arena))

	var sum float32
	for _, v := range out.Float32Data() {
		sum += v
	}
	require.InDelta(t, 1.0, sum, 1e-4)
}

func TestAddShapeMismatch(t *testing.T) {
	arena := tensor.New(nil, 1<<20)
	a := leafF32(t, arena, []int64{4}, []float32{1, 2, 3, 4})
	b := leafF32(t, arena, []int64{2}, []float32{1, 2})

	_, err := Add(arena, a, b)
	require.Error(t, err)
}

func TestRopeInverseRestoresOriginalVector(t *testing.T) {
	arena := tensor.New(nil, 1<<20)
	orig := []float32{1, 2, 3, 4}
	x := leafF32(t, arena, []int64{4}, orig)

	rotated, err := Rope(arena, x, 5, 4)
	require.NoError(t, err)
	restored, err := Rope(arena, rotated, -5, 4)
	require.NoError(t, err)

	g := Build(restored)
	require.NoError(t, g.Compute(arena))

	for i, v := range restored.Float32Data() {
		require.InDelta(t, orig[i], v, 1e-4)
	}
}

func TestCausalMaskBlocksFutureKeys(t *testing.T) {
	arena := tensor.New(nil, 1<<20)
	// keyLen=3, T=2: column 0 is query position nPast+0=1 (keys 0,1 visible,
	// key 2 masked), column 1 is query position 2 (all three keys visible).
	scores := leafF32(t, arena, []int64{3, 2}, []float32{
		1, 2, 3, // column 0
		4, 5, 6, // column 1
	})

	out, err := CausalMask(arena, scores, 1)
	require.NoError(t, err)
	g := Build(out)
	require.NoError(t, g.Compute(arena))

	got := out.Float32Data()
	require.Equal(t, float32(1), got[0])
	require.Equal(t, float32(2), got[1])
	require.True(t, math.IsInf(float64(got[2]), -1))
	require.Equal(t, float32(4), got[3])
	require.Equal(t, float32(5), got[4])
	require.Equal(t, float32(6), got[5])
}

func TestGetRowsGathersExpectedRow(t *testing.T) {
	arena := tensor.New(nil, 1<<20)
	embed := leafF32(t, arena, []int64{2, 3}, []float32{
		1, 1, // row 0
		2, 2, // row 1
		3, 3, // row 2
	})
	idx, err := arena.AllocTensor(tensor.I32, []int64{1}, nil)
	require.NoError(t, err)
	idx.Int32Data()[0] = 1

	out, err := GetRows(arena, embed, idx)
	require.NoError(t, err)
	g := Build(out)
	require.NoError(t, g.Compute(arena))

	require.Equal(t, []float32{2, 2}, out.Float32Data())
}
