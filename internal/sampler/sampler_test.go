package sampler

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSampleGreedyAtZeroTemperature(t *testing.T) {
	logits := []float32{0.1, 0.9, 0.3, -1.0}
	id := Sample(logits, Params{Temperature: 0}, rand.New(rand.NewSource(1)))
	require.Equal(t, int32(1), id)
}

func TestSampleEmptyLogits(t *testing.T) {
	id := Sample(nil, Params{}, rand.New(rand.NewSource(1)))
	require.Equal(t, int32(0), id)
}

func TestSampleTopKRestrictsToWinner(t *testing.T) {
	logits := []float32{10, 0, 0, 0}
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 20; i++ {
		id := Sample(logits, Params{Temperature: 1, TopK: 1}, rng)
		require.Equal(t, int32(0), id)
	}
}

func TestSoftmaxAtSumsToOne(t *testing.T) {
	idx := []int{0, 1, 2}
	probs := softmaxAt([]float32{1, 2, 3}, idx)
	var sum float32
	for _, p := range probs {
		sum += p
	}
	require.InDelta(t, 1.0, sum, 1e-5)
}

func TestNucleusRenormalizes(t *testing.T) {
	idx := []int{0, 1, 2}
	probs := []float32{0.5, 0.3, 0.2}
	keptIdx, keptProbs := nucleus(idx, probs, 0.7)
	require.Len(t, keptIdx, 2)
	var sum float32
	for _, p := range keptProbs {
		sum += p
	}
	require.InDelta(t, 1.0, sum, 1e-5)
}
