package gguf

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BurgessTheGamer/Llamux/internal/llamuxerr"
	"github.com/BurgessTheGamer/Llamux/internal/tensor"
)

// buildMinimalFile writes a header plus one string metadata key plus one
// f32 tensor record, enough to exercise Decode end to end without a real
// model file.
func buildMinimalFile(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer

	write := func(v any) {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}
	writeString := func(s string) {
		write(uint64(len(s)))
		buf.WriteString(s)
	}

	write(Magic)
	write(uint32(3))
	write(uint64(1)) // tensor count
	write(uint64(1)) // metadata count

	writeString("general.architecture")
	write(uint32(TypeString))
	writeString("llama")

	writeString("token_embd.weight")
	write(uint32(1)) // n_dims
	write(uint64(4)) // shape[0]
	write(uint32(0)) // f32
	write(uint64(0)) // offset

	return buf.Bytes()
}

func TestDecodeRoundTrip(t *testing.T) {
	raw := buildMinimalFile(t)
	f, err := Decode(bytes.NewReader(raw))
	require.NoError(t, err)

	require.Equal(t, Magic, f.Header.Magic)
	require.Equal(t, "llama", f.KV.Architecture())
	require.Len(t, f.Tensors, 1)
	require.Equal(t, "token_embd.weight", f.Tensors[0].Name)
	require.Equal(t, tensor.F32, f.Tensors[0].DType)
}

func TestDecodeBadMagic(t *testing.T) {
	raw := buildMinimalFile(t)
	raw[0] = 0
	_, err := Decode(bytes.NewReader(raw))
	require.ErrorIs(t, err, llamuxerr.ErrBadFormat)
}

func TestDecodeTruncated(t *testing.T) {
	raw := buildMinimalFile(t)
	_, err := Decode(bytes.NewReader(raw[:len(raw)-4]))
	require.Error(t, err)
}

func TestClassifyTensor(t *testing.T) {
	role, layer := ClassifyTensor("blk.3.attn_q.weight")
	require.Equal(t, RoleAttnQ, role)
	require.Equal(t, 3, layer)

	role, layer = ClassifyTensor("token_embd.weight")
	require.Equal(t, RoleTokenEmbed, role)
	require.Equal(t, -1, layer)

	role, _ = ClassifyTensor("something.unexpected")
	require.Equal(t, RoleUnknown, role)
}

func TestKVHeadCountKVDefaultsToHeadCount(t *testing.T) {
	kv := KV{
		"general.architecture":        "llama",
		"llama.attention.head_count":  uint32(8),
	}
	require.Equal(t, uint64(8), kv.HeadCountKV())
}

func TestValidateRejectsZeroHeads(t *testing.T) {
	f := &File{KV: KV{"general.architecture": "llama", "llama.block_count": uint32(1)}}
	err := f.Validate(0)
	require.ErrorIs(t, err, llamuxerr.ErrBadFormat)
}
