package gguf

import (
	"fmt"

	"github.com/BurgessTheGamer/Llamux/internal/llamuxerr"
)

// LoadTensorData copies each tensor's declared byte range out of fileBytes
// (the full file contents, or at least everything from the tensor-data
// region onward) into dest, at successive 32-byte-aligned offsets, and
// updates each TensorInfo's Data field to point at its copy.
//
// dest must be large enough to hold every tensor's bytes once aligned;
// callers size it from DataByteBudget, which includes alignment padding.
func (f *File) LoadTensorData(fileBytes []byte, dest []byte) error {
	base := f.DataRegionBase
	cursor := 0

	for _, t := range f.Tensors {
		size := int(tensorByteSize(t))
		start := base + t.DataOffset
		end := start + uint64(size)
		if end > uint64(len(fileBytes)) {
			return fmt.Errorf("%w: tensor %q range [%d,%d) exceeds file length %d",
				llamuxerr.ErrTruncated, t.Name, start, end, len(fileBytes))
		}

		need := alignUp(size, 32)
		if cursor+need > len(dest) {
			return fmt.Errorf("%w: tensor %q needs %d bytes, %d remain", llamuxerr.ErrOutOfMemory, t.Name, need, len(dest)-cursor)
		}

		n := copy(dest[cursor:cursor+size], fileBytes[start:end])
		t.Data = dest[cursor : cursor+n : cursor+need]
		cursor += need
	}

	return nil
}

func alignUp(n, a int) int {
	return (n + a - 1) &^ (a - 1)
}

// DataByteBudget returns the number of bytes a destination buffer needs to
// hold every tensor's data via LoadTensorData, including per-tensor 32-byte
// alignment padding. Callers size their arena's slab from this plus
// whatever scratch headroom their forward pass needs.
func (f *File) DataByteBudget() int64 {
	var total int64
	for _, t := range f.Tensors {
		total += int64(alignUp(int(tensorByteSize(t)), 32))
	}
	return total
}
