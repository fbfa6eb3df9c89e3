package gguf

import (
	"fmt"

	"github.com/BurgessTheGamer/Llamux/internal/llamuxerr"
)

// requiredArchitecture is the only model family this core's assembler
// knows how to bind tensors for.
const requiredArchitecture = "llama"

// Validate checks that the declared architecture is LLaMA-family, that
// layer/head counts are non-zero and mutually consistent, and that the
// summed byte size of every tensor in the directory does not exceed maxDataBytes
// (0 disables the budget check).
func (f *File) Validate(maxDataBytes int64) error {
	arch := f.KV.Architecture()
	if arch != requiredArchitecture {
		return fmt.Errorf("%w: architecture %q is not %q", llamuxerr.ErrUnsupported, arch, requiredArchitecture)
	}

	layers := f.KV.BlockCount()
	heads := f.KV.HeadCount()
	headsKV := f.KV.HeadCountKV()
	embed := f.KV.EmbeddingLength()

	if layers == 0 {
		return fmt.Errorf("%w: block_count is zero", llamuxerr.ErrBadFormat)
	}
	if heads == 0 {
		return fmt.Errorf("%w: head_count is zero", llamuxerr.ErrBadFormat)
	}
	if headsKV == 0 || headsKV > heads {
		return fmt.Errorf("%w: head_count_kv %d inconsistent with head_count %d", llamuxerr.ErrBadFormat, headsKV, heads)
	}
	if heads%headsKV != 0 {
		return fmt.Errorf("%w: head_count %d not a multiple of head_count_kv %d", llamuxerr.ErrBadFormat, heads, headsKV)
	}
	if embed == 0 || embed%heads != 0 {
		return fmt.Errorf("%w: embedding_length %d not divisible by head_count %d", llamuxerr.ErrBadFormat, embed, heads)
	}

	if maxDataBytes > 0 {
		var total uint64
		for _, t := range f.Tensors {
			total += tensorByteSize(t)
		}
		if int64(total) > maxDataBytes {
			return fmt.Errorf("%w: tensor data is %d bytes, budget is %d", llamuxerr.ErrOutOfMemory, total, maxDataBytes)
		}
	}

	return nil
}

func tensorByteSize(t *TensorInfo) uint64 {
	if len(t.Shape) == 0 {
		return 0
	}
	rows := uint64(1)
	for _, s := range t.Shape[1:] {
		rows *= s
	}
	return uint64(t.DType.RowBytes(int64(t.Shape[0]))) * rows
}
