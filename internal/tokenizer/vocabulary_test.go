package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BurgessTheGamer/Llamux/internal/gguf"
)

func TestLoadFromGGUFFallsBackWhenNoTokens(t *testing.T) {
	v, err := LoadFromGGUF(gguf.KV{})
	require.NoError(t, err)
	require.NotNil(t, v)
	require.Equal(t, int32(0), v.BOS)
	require.Greater(t, len(v.Tokens), 0)
}

func TestLoadFromGGUFRejectsEmptyTokenArray(t *testing.T) {
	kv := gguf.KV{"tokenizer.ggml.tokens": &gguf.Array{ElemType: gguf.TypeString}}
	_, err := LoadFromGGUF(kv)
	require.Error(t, err)
}

func TestTokenizeAlwaysPrependsBOS(t *testing.T) {
	v := fallbackVocabulary()
	ids := v.Tokenize("Hello")
	require.Equal(t, v.BOS, ids[0])
}

func TestDetokenizeSuppressesSpecials(t *testing.T) {
	v := fallbackVocabulary()
	out := v.Detokenize([]int32{v.BOS, v.UNK, v.EOS, v.PAD})
	require.Empty(t, out)
}

func TestTokenizeDetokenizeRoundTripOnKnownWord(t *testing.T) {
	v := fallbackVocabulary()
	ids := v.Tokenize("Hello World")
	text := v.Detokenize(ids)
	require.Equal(t, "Hello World", text)
}

func TestLongestMatchIsDeterministic(t *testing.T) {
	v := fallbackVocabulary()
	id1, n1 := v.longestMatch("Hello World")
	id2, n2 := v.longestMatch("Hello World")
	require.Equal(t, id1, id2)
	require.Equal(t, n1, n2)
}
