package kvcache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BurgessTheGamer/Llamux/internal/llamuxerr"
	"github.com/BurgessTheGamer/Llamux/internal/tensor"
)

func TestAppendAndAdvanceMonotonic(t *testing.T) {
	arena := tensor.New(nil, 1<<20)
	c, err := New(arena, 4, 2, 8)
	require.NoError(t, err)

	k, err := arena.AllocTensor(tensor.F32, []int64{4, 1}, nil)
	require.NoError(t, err)
	copy(k.Float32Data(), []float32{1, 2, 3, 4})
	v, err := arena.AllocTensor(tensor.F32, []int64{4, 1}, nil)
	require.NoError(t, err)
	copy(v.Float32Data(), []float32{5, 6, 7, 8})

	require.NoError(t, c.Append(0, k, v))
	c.Advance(1)
	require.Equal(t, int64(1), c.NPast)

	view, err := c.SliceK(0, 0, 1)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3, 4}, view.Float32Data())
}

func TestAppendRejectsOverflow(t *testing.T) {
	arena := tensor.New(nil, 1<<20)
	c, err := New(arena, 2, 1, 1)
	require.NoError(t, err)
	c.NPast = 1

	k, _ := arena.AllocTensor(tensor.F32, []int64{2, 1}, nil)
	v, _ := arena.AllocTensor(tensor.F32, []int64{2, 1}, nil)

	err = c.Append(0, k, v)
	require.ErrorIs(t, err, llamuxerr.ErrContextOverflow)
}

func TestResetClearsNPast(t *testing.T) {
	arena := tensor.New(nil, 1<<20)
	c, err := New(arena, 2, 1, 4)
	require.NoError(t, err)
	c.NPast = 3
	c.Reset()
	require.Equal(t, int64(0), c.NPast)
}

func TestSliceRejectsOutOfRangeLayer(t *testing.T) {
	arena := tensor.New(nil, 1<<20)
	c, err := New(arena, 2, 1, 4)
	require.NoError(t, err)
	_, err = c.SliceK(5, 0, 1)
	require.ErrorIs(t, err, llamuxerr.ErrShapeMismatch)
}
