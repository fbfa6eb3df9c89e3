package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BurgessTheGamer/Llamux/internal/gguf"
	"github.com/BurgessTheGamer/Llamux/internal/model"
	"github.com/BurgessTheGamer/Llamux/internal/tensor"
	"github.com/BurgessTheGamer/Llamux/internal/tokenizer"
)

// tinyModel builds the smallest model that exercises every shape contract
// in Forward/block/attention: one layer, two heads, tied KV heads, a
// feed-forward width distinct from the embedding width so mulMatFeature's
// transposes are caught if ever swapped.
func tinyModel(t *testing.T, arena *tensor.Arena) *model.Model {
	t.Helper()

	const (
		embedDim  = 4
		vocabSize = 6
		ffnDim    = 8
		numHeads  = 2
		headDim   = embedDim / numHeads
	)

	weight := func(shape ...int64) *tensor.Tensor {
		tt, err := arena.AllocTensor(tensor.F32, shape, nil)
		require.NoError(t, err)
		data := tt.Float32Data()
		for i := range data {
			data[i] = 0.01 * float32(i%7+1)
		}
		return tt
	}

	vocab, err := tokenizer.LoadFromGGUF(gguf.KV{})
	require.NoError(t, err)

	m := &model.Model{
		Hyperparams: model.Hyperparams{
			VocabSize:  vocabSize,
			EmbedDim:   embedDim,
			NumLayers:  1,
			NumHeads:   numHeads,
			NumKVHeads: numHeads,
			HeadDim:    headDim,
			FFNDim:     ffnDim,
			RopeDim:    headDim,
			RMSEps:     1e-5,
		},
		Embed:      weight(embedDim, vocabSize),
		OutputNorm: weight(embedDim),
		Output:     weight(embedDim, vocabSize),
		Vocab:      vocab,
	}
	m.Layers = []model.Layer{{
		AttnNorm: weight(embedDim),
		Wq:       weight(embedDim, embedDim),
		Wk:       weight(embedDim, embedDim),
		Wv:       weight(embedDim, embedDim),
		Wo:       weight(embedDim, embedDim),
		FFNNorm:  weight(embedDim),
		Wgate:    weight(embedDim, ffnDim),
		Wup:      weight(embedDim, ffnDim),
		Wdown:    weight(ffnDim, embedDim),
	}}
	return m
}

func TestForwardProducesVocabSizedLogitsPerPosition(t *testing.T) {
	arena := tensor.New(nil, 1<<20)
	m := tinyModel(t, arena)
	s, err := NewState(m, arena, 16, nil)
	require.NoError(t, err)

	logits, err := s.Forward(context.Background(), []int32{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, logits, 3*int(m.VocabSize))
}

func TestForwardAdvancesCachePosition(t *testing.T) {
	arena := tensor.New(nil, 1<<20)
	m := tinyModel(t, arena)
	s, err := NewState(m, arena, 16, nil)
	require.NoError(t, err)

	_, err = s.Forward(context.Background(), []int32{1, 2})
	require.NoError(t, err)
	require.EqualValues(t, 2, s.Cache.NPast)

	_, err = s.Forward(context.Background(), []int32{3})
	require.NoError(t, err)
	require.EqualValues(t, 3, s.Cache.NPast)
}

func TestForwardRejectsCancelledContext(t *testing.T) {
	arena := tensor.New(nil, 1<<20)
	m := tinyModel(t, arena)
	s, err := NewState(m, arena, 16, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Forward(ctx, []int32{1})
	require.Error(t, err)
}
