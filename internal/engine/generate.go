package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/BurgessTheGamer/Llamux/internal/llamuxerr"
)

// Stats is one generation's performance counter set (tokens generated,
// wall time, throughput); procfs.StatsSnapshot sums these across requests.
type Stats struct {
	PromptTokens    int
	GeneratedTokens int
	Duration        time.Duration
	ContextOverflow bool
}

// TokensPerSecond derives throughput from GeneratedTokens and Duration.
func (s Stats) TokensPerSecond() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.GeneratedTokens) / s.Duration.Seconds()
}

// Generate implements the generation loop: reset state, tokenize the prompt
// (BOS prepended by the tokenizer), evaluate it in one shot, then sample
// and evaluate one token at a time until EOS or maxTokens, detokenizing the
// collected ids at the end.
func (s *State) Generate(ctx context.Context, prompt string, maxTokens int) (string, Stats, error) {
	start := time.Now()
	s.Reset()

	ids := s.Model.Vocab.Tokenize(prompt)
	stats := Stats{PromptTokens: len(ids)}

	if s.Cache.Cmax > 0 && int64(len(ids)+maxTokens) > s.Cache.Cmax {
		stats.ContextOverflow = true
		return "", stats, fmt.Errorf("%w: n_past %d + max_tokens %d exceeds context %d", llamuxerr.ErrContextOverflow, len(ids), maxTokens, s.Cache.Cmax)
	}

	logits, err := s.Forward(ctx, ids)
	if err != nil {
		return "", stats, err
	}
	lastRow := lastLogitsRow(logits, s.Model.VocabSize)

	var generated []int32
	for i := 0; i < maxTokens; i++ {
		if err := ctx.Err(); err != nil {
			break
		}

		next := s.Sample(lastRow)
		if next == s.Model.Vocab.EOS {
			break
		}
		generated = append(generated, next)
		stats.GeneratedTokens++

		logits, err = s.Forward(ctx, []int32{next})
		if err != nil {
			return s.Model.Vocab.Detokenize(generated), stats, err
		}
		lastRow = lastLogitsRow(logits, s.Model.VocabSize)
	}

	stats.Duration = time.Since(start)
	return s.Model.Vocab.Detokenize(generated), stats, nil
}

// lastLogitsRow returns the final vocabSize-wide row of a possibly
// multi-position logits buffer (prompt evaluation produces one row per
// input position; only the last is ever sampled from).
func lastLogitsRow(logits []float32, vocabSize int64) []float32 {
	if vocabSize <= 0 || int64(len(logits)) <= vocabSize {
		return logits
	}
	return logits[int64(len(logits))-vocabSize:]
}
