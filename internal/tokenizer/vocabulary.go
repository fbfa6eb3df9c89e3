// Package tokenizer implements the two tokenization modes this
// requires: a vocabulary-backed mode loaded from the model file's own
// metadata, and a tiny fallback mode for model files that carry none.
// Neither mode is a real BPE implementation — both are longest-match
// lookups over the loaded vocabulary, matching the driver's stated
// intent that a real BPE can be plugged in behind this interface later
// without touching the rest of the core.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/BurgessTheGamer/Llamux/internal/gguf"
	"github.com/BurgessTheGamer/Llamux/internal/llamuxerr"
)

// TokenType mirrors the gguf tokenizer.ggml.token_type array's values.
type TokenType int32

const (
	TokenNormal TokenType = iota + 1
	TokenUnknown
	TokenControl
	TokenUserDefined
	TokenUnused
	TokenByte
)

// Vocabulary is the loaded token table plus the special ids the driver
// needs to prepend/append/suppress during generation.
type Vocabulary struct {
	Tokens []string
	Scores []float32
	Types  []TokenType

	BOS int32
	EOS int32
	PAD int32
	UNK int32

	byToken map[string]int32
}

// LoadFromGGUF builds a Vocabulary from the tokenizer.ggml.* metadata keys,
// falling back to fallbackVocabulary when the model carries none (spec
// §4.8 mode (b)).
func LoadFromGGUF(kv gguf.KV) (*Vocabulary, error) {
	if _, ok := kv["tokenizer.ggml.tokens"]; !ok {
		return fallbackVocabulary(), nil
	}
	toks := kv.Strings("tokenizer.ggml.tokens")
	if len(toks) == 0 {
		return nil, fmt.Errorf("%w: tokenizer.ggml.tokens is empty or not a string array", llamuxerr.ErrBadFormat)
	}

	v := &Vocabulary{Tokens: toks}
	v.Scores = kv.Floats("tokenizer.ggml.scores")
	if raw := kv.Int32s("tokenizer.ggml.token_type"); len(raw) == len(toks) {
		v.Types = make([]TokenType, len(raw))
		for i, t := range raw {
			v.Types[i] = TokenType(t)
		}
	}

	v.BOS = kv.Int32Default("tokenizer.ggml.bos_token_id", 1)
	v.EOS = kv.Int32Default("tokenizer.ggml.eos_token_id", 2)
	v.PAD = kv.Int32Default("tokenizer.ggml.padding_token_id", 0)
	v.UNK = kv.Int32Default("tokenizer.ggml.unknown_token_id", 0)

	v.index()
	return v, nil
}

// fallbackVocabulary is the hand-curated word list this mode (b)
// describes: enough to exercise tokenize/detokenize round-trips and the
// generation loop when a model file carries no tokenizer metadata at all.
func fallbackVocabulary() *Vocabulary {
	words := []string{
		"<bos>", "<eos>", "<pad>", "<unk>",
		" the", " a", " is", " of", " and", " to", " in", " it",
		" hello", " world", " model", " prompt", " token",
		"Hello", "World",
		".", ",", "!", "?", " ",
	}
	v := &Vocabulary{
		Tokens: words,
		BOS:    0,
		EOS:    1,
		PAD:    2,
		UNK:    3,
	}
	v.index()
	return v
}

func (v *Vocabulary) index() {
	v.byToken = make(map[string]int32, len(v.Tokens))
	for i, t := range v.Tokens {
		v.byToken[t] = int32(i)
	}
}

// Tokenize performs a greedy longest-match lookup over the vocabulary
// against the input byte stream, emitting UNK on no match and always
// prepending BOS, per this.
func (v *Vocabulary) Tokenize(s string) []int32 {
	ids := []int32{v.BOS}
	for len(s) > 0 {
		id, n := v.longestMatch(s)
		ids = append(ids, id)
		if n == 0 {
			n = 1
		}
		s = s[n:]
	}
	return ids
}

// longestMatch scans the vocabulary for the longest token that prefixes s.
// Ties in length are broken by the lowest token id, so the result is
// deterministic regardless of map iteration order.
func (v *Vocabulary) longestMatch(s string) (int32, int) {
	best := int32(-1)
	bestLen := 0
	for tok, id := range v.byToken {
		if tok == "" {
			continue
		}
		if !strings.HasPrefix(s, tok) {
			continue
		}
		if len(tok) > bestLen || (len(tok) == bestLen && id < best) {
			best = id
			bestLen = len(tok)
		}
	}
	if best < 0 {
		return v.UNK, 1
	}
	return best, bestLen
}

// Detokenize concatenates the textual form of every id, suppressing BOS,
// EOS, PAD and UNK (the "specials" this says to suppress).
func (v *Vocabulary) Detokenize(ids []int32) string {
	var b strings.Builder
	for _, id := range ids {
		if id == v.BOS || id == v.EOS || id == v.PAD || id == v.UNK {
			continue
		}
		if id < 0 || int(id) >= len(v.Tokens) {
			continue
		}
		b.WriteString(v.Tokens[id])
	}
	return b.String()
}
