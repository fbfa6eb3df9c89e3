package tensor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BurgessTheGamer/Llamux/internal/llamuxerr"
)

func TestAllocTensorAlignsDataRegion(t *testing.T) {
	a := New(nil, 1<<16)
	x, err := a.AllocTensor(F32, []int64{3}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(4), x.Stride[0])
	require.Equal(t, 0, a.Len()%alignment)
}

func TestAllocTensorBorrowedDataSkipsSlab(t *testing.T) {
	a := New(nil, 1<<10)
	before := a.Len()
	borrowed := make([]byte, 16)
	x, err := a.AllocTensor(F32, []int64{4}, borrowed)
	require.NoError(t, err)
	require.Same(t, &borrowed[0], &x.Data[0])
	require.Equal(t, before, a.Len())
}

func TestAllocTensorOutOfMemory(t *testing.T) {
	a := New(nil, 64)
	_, err := a.AllocTensor(F32, []int64{1000}, nil)
	require.ErrorIs(t, err, llamuxerr.ErrOutOfMemory)
}

func TestAllocTensorNodeLimit(t *testing.T) {
	a := New(nil, 1<<20)
	a.objectCap = 2
	_, err := a.AllocTensor(F32, []int64{1}, nil)
	require.NoError(t, err)
	_, err = a.AllocTensor(F32, []int64{1}, nil)
	require.NoError(t, err)
	_, err = a.AllocTensor(F32, []int64{1}, nil)
	require.ErrorIs(t, err, llamuxerr.ErrNodeLimit)
}

func TestMarkResetToRewindsCursorAndObjects(t *testing.T) {
	a := New(nil, 1<<16)
	_, err := a.AllocTensor(F32, []int64{8}, nil)
	require.NoError(t, err)

	mark := a.Mark()
	_, err = a.AllocTensor(F32, []int64{8}, nil)
	require.NoError(t, err)
	require.Len(t, a.objects, 2)

	a.ResetTo(mark)
	require.Equal(t, mark, a.Len())
	require.Len(t, a.objects, 1)
}

func TestResetToKeepsBorrowedWeightsAcrossRewind(t *testing.T) {
	a := New(nil, 1<<16)
	weight := make([]byte, 16)
	w, err := a.AllocTensor(F32, []int64{4}, weight)
	require.NoError(t, err)

	mark := a.Mark()
	_, err = a.AllocTensor(F32, []int64{8}, nil)
	require.NoError(t, err)
	a.ResetTo(mark)

	require.Contains(t, a.objects, w)
}

func TestNewOwnsSelfAllocatedSlab(t *testing.T) {
	a := New(nil, 128)
	require.True(t, a.owned)
	a.Destroy()
	require.Nil(t, a.slab)
}

func TestNewBorrowsCallerSlab(t *testing.T) {
	slab := make([]byte, 128)
	a := New(slab, 0)
	require.False(t, a.owned)
	a.Destroy()
	require.NotNil(t, slab)
}

func TestQuantizedDataRegionHonorsBlockGranularity(t *testing.T) {
	a := New(nil, 1<<16)
	x, err := a.AllocTensor(Q4K, []int64{256}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(144), x.Stride[0])
	require.Equal(t, int64(144), x.ByteSize())
}
