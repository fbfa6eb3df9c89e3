// Package sampler turns a row of logits into a chosen token id: greedy
// argmax, or temperature scaling followed by top-k truncation, softmax, and
// top-p nucleus sampling, a standalone, directly testable function rather than a thin wrapper
// around a cgo backend that hides the actual sampling math.
package sampler

import (
	"math"
	"math/rand"
	"sort"
)

// Params are the generation-time sampling knobs this names.
type Params struct {
	Temperature float32
	TopK        int
	TopP        float32
}

// Sample chooses a token id from logits according to p. Temperature == 0
// always selects greedily, regardless of TopK/TopP, per the
// explicit "mandatory" wording.
func Sample(logits []float32, p Params, rng *rand.Rand) int32 {
	if len(logits) == 0 {
		return 0
	}
	if p.Temperature == 0 {
		return argmax(logits)
	}

	scaled := make([]float32, len(logits))
	for i, v := range logits {
		scaled[i] = v / p.Temperature
	}

	idx := make([]int, len(scaled))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return scaled[idx[i]] > scaled[idx[j]] })

	if p.TopK > 0 && p.TopK < len(idx) {
		idx = idx[:p.TopK]
	}

	probs := softmaxAt(scaled, idx)

	if p.TopP > 0 && p.TopP < 1 {
		idx, probs = nucleus(idx, probs, p.TopP)
	}

	return int32(idx[draw(probs, rng)])
}

func argmax(logits []float32) int32 {
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	return int32(best)
}

// softmaxAt computes softmax over scaled[idx[0]], scaled[idx[1]],... in
// that order, with the standard max-subtract stabilization.
func softmaxAt(scaled []float32, idx []int) []float32 {
	max := scaled[idx[0]]
	for _, i := range idx {
		if scaled[i] > max {
			max = scaled[i]
		}
	}
	out := make([]float32, len(idx))
	var sum float32
	for k, i := range idx {
		e := float32(math.Exp(float64(scaled[i] - max)))
		out[k] = e
		sum += e
	}
	if sum == 0 {
		uniform := 1 / float32(len(idx))
		for k := range out {
			out[k] = uniform
		}
		return out
	}
	for k := range out {
		out[k] /= sum
	}
	return out
}

// nucleus keeps the smallest prefix of idx (already sorted descending by
// probability) whose cumulative probability reaches topP, renormalizing the
// kept mass so draw still sees a valid distribution.
func nucleus(idx []int, probs []float32, topP float32) ([]int, []float32) {
	var cum float32
	cut := len(idx)
	for i, p := range probs {
		cum += p
		if cum >= topP {
			cut = i + 1
			break
		}
	}
	idx = idx[:cut]
	probs = probs[:cut]

	var sum float32
	for _, p := range probs {
		sum += p
	}
	if sum > 0 {
		for i := range probs {
			probs[i] /= sum
		}
	}
	return idx, probs
}

func draw(probs []float32, rng *rand.Rand) int {
	r := rng.Float32()
	var cum float32
	for i, p := range probs {
		cum += p
		if r <= cum {
			return i
		}
	}
	return len(probs) - 1
}
