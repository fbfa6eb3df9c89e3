// Package model assembles a flat list of named gguf tensors into the
// LLaMA-family transformer structure this names: an embedding table,
// per-block attention/feed-forward weights and norms, and an output head.
// Grounded on model/model.go's Model/Base split and fs/ggml/gguf_model.go's
// name-to-tensor binding, simplified down to direct lookups by exact name rather than a
// reflection-and-struct-tag binder — this core only ever assembles one
// architecture family, so binding generality across many architectures
// buys nothing here.
package model

import (
	"fmt"

	"github.com/BurgessTheGamer/Llamux/internal/gguf"
	"github.com/BurgessTheGamer/Llamux/internal/llamuxerr"
	"github.com/BurgessTheGamer/Llamux/internal/tensor"
	"github.com/BurgessTheGamer/Llamux/internal/tokenizer"
)

// requiredArchitecture is the only architecture family this core binds
// tensors for; Assemble rejects anything else.
const requiredArchitecture = "llama"

// Hyperparams are the per-model dimensions derived from gguf metadata, per
// this.
type Hyperparams struct {
	Name          string
	VocabSize     int64
	ContextLength int64
	EmbedDim      int64
	NumLayers     int64
	NumHeads      int64
	NumKVHeads    int64
	HeadDim       int64
	FFNDim        int64
	RopeDim       int64
	RopeTheta     float32
	RMSEps        float32
}

// Layer holds one transformer block's weights, bound by name by design
// §4.6's naming table.
type Layer struct {
	AttnNorm *tensor.Tensor
	Wq       *tensor.Tensor
	Wk       *tensor.Tensor
	Wv       *tensor.Tensor
	Wo       *tensor.Tensor
	FFNNorm  *tensor.Tensor
	Wgate    *tensor.Tensor
	Wup      *tensor.Tensor
	Wdown    *tensor.Tensor
}

// Model is the fully bound transformer: embedding, L layers, output norm,
// output head, and the vocabulary needed to tokenize/detokenize around it.
type Model struct {
	Hyperparams
	Embed      *tensor.Tensor
	OutputNorm *tensor.Tensor
	Output     *tensor.Tensor
	Layers     []Layer
	Vocab      *tokenizer.Vocabulary
}

// Assemble binds gg's tensor directory onto the transformer structure.
// gguf.ClassifyTensor is the single source of truth for which field a name
// binds to; Assemble never matches names itself. Missing per-layer tensors
// become zero-filled placeholders only when allowZeroFill is true;
// token_embd.weight absence is always fatal, and a missing output.weight
// reuses Embed (tied embeddings), per this and its Open Questions.
func Assemble(gg *gguf.File, arena *tensor.Arena, allowZeroFill bool) (*Model, error) {
	if gg.KV.Architecture() != requiredArchitecture {
		return nil, fmt.Errorf("%w: architecture %q", llamuxerr.ErrUnsupported, gg.KV.Architecture())
	}

	hp := Hyperparams{
		Name:          gg.KV.String("general.name", ""),
		ContextLength: int64(gg.KV.ContextLength()),
		EmbedDim:      int64(gg.KV.EmbeddingLength()),
		NumLayers:     int64(gg.KV.BlockCount()),
		NumHeads:      int64(gg.KV.HeadCount()),
		NumKVHeads:    int64(gg.KV.HeadCountKV()),
		FFNDim:        int64(gg.KV.FeedForwardLength()),
		RopeDim:       int64(gg.KV.RopeDimensionCount()),
		RopeTheta:     gg.KV.RopeFreqBase(),
		RMSEps:        gg.KV.LayerNormRMSEpsilon(),
	}
	if hp.NumHeads > 0 {
		hp.HeadDim = hp.EmbedDim / hp.NumHeads
	}

	m := &Model{Hyperparams: hp}
	m.Layers = make([]Layer, hp.NumLayers)

	var embedInfo *gguf.TensorInfo
	for _, info := range gg.Tensors {
		role, layer := gguf.ClassifyTensor(info.Name)

		if role == gguf.RoleTokenEmbed {
			embedInfo = info
			continue
		}
		if role == gguf.RoleOutputNorm || role == gguf.RoleOutput {
			t, err := bind(arena, info)
			if err != nil {
				return nil, err
			}
			if role == gguf.RoleOutputNorm {
				m.OutputNorm = t
			} else {
				m.Output = t
			}
			continue
		}

		dst := layerField(&m.Layers, layer, role)
		if dst == nil {
			continue
		}
		t, err := bind(arena, info)
		if err != nil {
			return nil, err
		}
		*dst = t
	}

	if embedInfo == nil {
		return nil, fmt.Errorf("%w: missing token_embd.weight", llamuxerr.ErrBadFormat)
	}
	embed, err := bind(arena, embedInfo)
	if err != nil {
		return nil, err
	}
	m.Embed = embed
	m.VocabSize = embed.Shape[1]

	if m.OutputNorm == nil && allowZeroFill {
		if m.OutputNorm, err = zeroFill(arena, []int64{hp.EmbedDim}); err != nil {
			return nil, err
		}
	}
	if m.Output == nil {
		m.Output = m.Embed
	}

	shapes := zeroFillShapes(hp)
	for l := range m.Layers {
		for _, role := range layerRoles {
			dst := layerField(&m.Layers, l, role)
			if *dst != nil {
				continue
			}
			if !allowZeroFill {
				return nil, fmt.Errorf("layer %d: %w: missing role %v", l, llamuxerr.ErrBadFormat, role)
			}
			t, err := zeroFill(arena, shapes[role])
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", l, err)
			}
			*dst = t
		}
	}

	vocab, err := tokenizer.LoadFromGGUF(gg.KV)
	if err != nil {
		return nil, err
	}
	m.Vocab = vocab

	return m, nil
}

// layerRoles lists every gguf.Role that binds into a per-block Layer field,
// the set layerField and zeroFillShapes both range over.
var layerRoles = []gguf.Role{
	gguf.RoleAttnNorm, gguf.RoleAttnQ, gguf.RoleAttnK, gguf.RoleAttnV,
	gguf.RoleAttnOutput, gguf.RoleFFNNorm, gguf.RoleFFNGate, gguf.RoleFFNUp,
	gguf.RoleFFNDown,
}

// layerField returns a pointer to the Layer field role binds to, or nil for
// a role that isn't a per-block tensor or a layer index out of range (a
// block count metadata/tensor-directory mismatch, ignored rather than
// rejected since gguf.ClassifyTensor already permits unknown names).
func layerField(layers *[]Layer, layer int, role gguf.Role) **tensor.Tensor {
	if layer < 0 || layer >= len(*layers) {
		return nil
	}
	l := &(*layers)[layer]
	switch role {
	case gguf.RoleAttnNorm:
		return &l.AttnNorm
	case gguf.RoleAttnQ:
		return &l.Wq
	case gguf.RoleAttnK:
		return &l.Wk
	case gguf.RoleAttnV:
		return &l.Wv
	case gguf.RoleAttnOutput:
		return &l.Wo
	case gguf.RoleFFNNorm:
		return &l.FFNNorm
	case gguf.RoleFFNGate:
		return &l.Wgate
	case gguf.RoleFFNUp:
		return &l.Wup
	case gguf.RoleFFNDown:
		return &l.Wdown
	default:
		return nil
	}
}

// zeroFillShapes gives each per-layer tensor role its real expected shape
// (the per-layer weight shapes) rather than a single uniform guess, so
// a bring-up model missing some tensors still produces an arena layout the
// rest of the graph's shape contracts (mul_mat's contracting-axis check
// above all) accept.
func zeroFillShapes(hp Hyperparams) map[gguf.Role][]int64 {
	kvDim := hp.NumKVHeads * hp.HeadDim
	return map[gguf.Role][]int64{
		gguf.RoleAttnNorm:   {hp.EmbedDim},
		gguf.RoleAttnQ:      {hp.EmbedDim, hp.EmbedDim},
		gguf.RoleAttnK:      {hp.EmbedDim, kvDim},
		gguf.RoleAttnV:      {hp.EmbedDim, kvDim},
		gguf.RoleAttnOutput: {hp.EmbedDim, hp.EmbedDim},
		gguf.RoleFFNNorm:    {hp.EmbedDim},
		gguf.RoleFFNGate:    {hp.EmbedDim, hp.FFNDim},
		gguf.RoleFFNUp:      {hp.EmbedDim, hp.FFNDim},
		gguf.RoleFFNDown:    {hp.FFNDim, hp.EmbedDim},
	}
}

// bind wraps the already-loaded bytes of a parsed tensor-info record into
// an arena-tracked descriptor borrowing those bytes, so the model's weights
// are never copied a second time.
func bind(arena *tensor.Arena, info *gguf.TensorInfo) (*tensor.Tensor, error) {
	shape := make([]int64, len(info.Shape))
	for i, s := range info.Shape {
		shape[i] = int64(s)
	}
	t, err := arena.AllocTensor(info.DType, shape, info.Data)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", info.Name, err)
	}
	t.Name = info.Name
	return t, nil
}

func zeroFill(arena *tensor.Arena, shape []int64) (*tensor.Tensor, error) {
	return arena.AllocTensor(tensor.F32, shape, nil)
}
