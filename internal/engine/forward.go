// Package engine drives the forward pass and generation loop
// and the single-slot mailbox handoff between producer and worker threads
// The engine loads once and serves requests through exactly one worker,
// guarded by a weight-1 semaphore rather than the N-parallel-sequence
// pool a multi-tenant server would need.
package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/BurgessTheGamer/Llamux/internal/graph"
	"github.com/BurgessTheGamer/Llamux/internal/kvcache"
	"github.com/BurgessTheGamer/Llamux/internal/model"
	"github.com/BurgessTheGamer/Llamux/internal/sampler"
	"github.com/BurgessTheGamer/Llamux/internal/tensor"
)

// State holds everything one sequence of generation needs: the bound
// model, its KV cache, the running position, and the sampler parameters
// applied at each step.
type State struct {
	Model   *model.Model
	Cache   *kvcache.Cache
	Arena   *tensor.Arena
	Sampler sampler.Params
	rng     *rand.Rand

	logits []float32
}

// NewState builds a fresh generation state over m, with its own KV cache
// sized for cmax positions, allocated from arena. The cache's feature width
// is NumKVHeads*HeadDim, not EmbedDim: grouped-query attention stores fewer
// key/value heads than query heads whenever NumKVHeads < NumHeads, so
// W_k/W_v project down to a narrower width than the query projection does.
func NewState(m *model.Model, arena *tensor.Arena, cmax int64, rng *rand.Rand) (*State, error) {
	kvDim := m.NumKVHeads * m.HeadDim
	cache, err := kvcache.New(arena, kvDim, m.NumLayers, cmax)
	if err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &State{Model: m, Cache: cache, Arena: arena, rng: rng}, nil
}

// mulMatFeature runs mul_mat(w, x) and transposes the result back onto a
// feature-contiguous [feature, T] layout. mul_mat's normative contract
// (result shape is [B.shape[1], A.shape[1]]) puts the batch axis first
// whenever w is the first operand, which is perfect for attention's own use
// of mul_mat against the KV cache but wrong for chaining into
// rms_norm/silu/mul/rope, all of which reduce or broadcast along shape[0]
// expecting it to be the feature axis. Every weight projection in the block
// below goes through this helper for exactly that reason.
func mulMatFeature(a *tensor.Arena, w, x *tensor.Tensor) (*tensor.Tensor, error) {
	raw, err := graph.MulMat(a, w, x)
	if err != nil {
		return nil, err
	}
	return graph.Transpose(a, raw)
}

// Forward runs one step of the transformer over ids (length T): embedding
// gather, L transformer blocks, final norm, output projection. It builds
// and executes exactly one graph.Graph per call and leaves the result in
// s.logits, one row of VocabSize per input position, feature-contiguous
// (row t at logits[t*VocabSize:(t+1)*VocabSize]).
func (s *State) Forward(ctx context.Context, ids []int32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := s.Model
	a := s.Arena
	eps := m.RMSEps
	t := int64(len(ids))
	nPast := int64(s.Cache.NPast)

	idx, err := a.AllocTensor(tensor.I32, []int64{t}, nil)
	if err != nil {
		return nil, err
	}
	copy(idx.Int32Data(), ids)

	x, err := graph.GetRows(a, m.Embed, idx)
	if err != nil {
		return nil, err
	}

	for l := 0; l < int(m.NumLayers); l++ {
		x, err = s.block(a, l, m.Layers[l], x, nPast, t, eps)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", l, err)
		}
	}

	normed, err := graph.RMSNorm(a, x, eps)
	if err != nil {
		return nil, err
	}
	gOut, err := graph.Mul(a, normed, m.OutputNorm)
	if err != nil {
		return nil, err
	}
	z, err := mulMatFeature(a, m.Output, gOut)
	if err != nil {
		return nil, err
	}

	g := graph.Build(z)
	if err := g.Compute(a); err != nil {
		return nil, err
	}

	s.Cache.Advance(t)
	s.logits = append(s.logits[:0], z.Float32Data()...)
	return s.logits, nil
}

// block runs one transformer layer: attention sub-block then SwiGLU
// feed-forward sub-block, both with residual connections. x, y and every
// tensor added to or normalized against them stays in the
// feature-contiguous [d, T] layout throughout.
func (s *State) block(a *tensor.Arena, layerIdx int, layer model.Layer, x *tensor.Tensor, nPast, t int64, eps float32) (*tensor.Tensor, error) {
	h, err := graph.RMSNorm(a, x, eps)
	if err != nil {
		return nil, err
	}
	h, err = graph.Mul(a, h, layer.AttnNorm)
	if err != nil {
		return nil, err
	}

	q, err := mulMatFeature(a, layer.Wq, h)
	if err != nil {
		return nil, err
	}
	k, err := mulMatFeature(a, layer.Wk, h)
	if err != nil {
		return nil, err
	}
	v, err := mulMatFeature(a, layer.Wv, h)
	if err != nil {
		return nil, err
	}

	headDim := s.Model.HeadDim
	if headDim == 0 {
		headDim = 1
	}
	ropeDim := s.Model.RopeDim
	if ropeDim == 0 || ropeDim > headDim {
		ropeDim = headDim
	}
	// q tiles NumHeads copies of a headDim-wide chunk, k tiles NumKVHeads;
	// RopeWithPeriod repeats the same rotation inside every headDim-wide
	// chunk rather than once across the whole row, so every head gets an
	// identical position-dependent rotation independent of how many other
	// heads are concatenated alongside it.
	q, err = graph.RopeWithPeriod(a, q, nPast, ropeDim, headDim)
	if err != nil {
		return nil, err
	}
	k, err = graph.RopeWithPeriod(a, k, nPast, ropeDim, headDim)
	if err != nil {
		return nil, err
	}

	// Cache.Append and the per-head split below both read raw tensor bytes
	// directly rather than building further graph nodes, so q/k/v must be
	// materialized here instead of waiting for Forward's single end-of-pass
	// graph.Compute.
	if err := computeNow(a, q); err != nil {
		return nil, err
	}
	if err := computeNow(a, k); err != nil {
		return nil, err
	}
	if err := computeNow(a, v); err != nil {
		return nil, err
	}

	if err := s.Cache.Append(layerIdx, k, v); err != nil {
		return nil, err
	}

	kAll, err := s.Cache.SliceK(layerIdx, 0, nPast+t)
	if err != nil {
		return nil, err
	}
	vAll, err := s.Cache.SliceV(layerIdx, 0, nPast+t)
	if err != nil {
		return nil, err
	}

	ctxVec, err := s.attention(a, q, kAll, vAll, headDim)
	if err != nil {
		return nil, err
	}

	attnOut, err := mulMatFeature(a, layer.Wo, ctxVec)
	if err != nil {
		return nil, err
	}
	y, err := graph.Add(a, x, attnOut)
	if err != nil {
		return nil, err
	}

	hp, err := graph.RMSNorm(a, y, eps)
	if err != nil {
		return nil, err
	}
	hp, err = graph.Mul(a, hp, layer.FFNNorm)
	if err != nil {
		return nil, err
	}

	gate, err := mulMatFeature(a, layer.Wgate, hp)
	if err != nil {
		return nil, err
	}
	gate, err = graph.SiLU(a, gate)
	if err != nil {
		return nil, err
	}
	up, err := mulMatFeature(a, layer.Wup, hp)
	if err != nil {
		return nil, err
	}
	u, err := graph.Mul(a, gate, up)
	if err != nil {
		return nil, err
	}
	f, err := mulMatFeature(a, layer.Wdown, u)
	if err != nil {
		return nil, err
	}

	return graph.Add(a, y, f)
}

// attention runs grouped-query attention per query head: query head h
// attends against key/value head h/groupSize, where groupSize =
// NumHeads/NumKVHeads (1 for plain multi-head attention). q has shape
// [NumHeads*headDim, T]; kAll/vAll have shape [NumKVHeads*headDim,
// n_past+T]. The per-head score/softmax/weighted-sum math is identical to
// the single-head case, run once per head and written into its headDim-wide
// slot of a freshly allocated [NumHeads*headDim, T] context tensor.
func (s *State) attention(a *tensor.Arena, q, kAll, vAll *tensor.Tensor, headDim int64) (*tensor.Tensor, error) {
	numHeads := s.Model.NumHeads
	numKVHeads := s.Model.NumKVHeads
	if numHeads == 0 {
		numHeads = 1
	}
	if numKVHeads == 0 {
		numKVHeads = numHeads
	}
	groupSize := numHeads / numKVHeads
	if groupSize == 0 {
		groupSize = 1
	}

	d := numHeads * headDim
	ctx, err := a.AllocTensor(tensor.F32, []int64{d, q.Shape[1]}, nil)
	if err != nil {
		return nil, err
	}

	// nPast is the absolute position of query column 0: kAll already holds
	// every cached key plus this step's T new ones, so keyLen - T recovers
	// it without the caller threading it through separately.
	nPast := kAll.Shape[1] - q.Shape[1]

	for h := int64(0); h < numHeads; h++ {
		kvHead := h / groupSize

		qHead, err := headView(a, q, headDim, h)
		if err != nil {
			return nil, err
		}
		kHead, err := headView(a, kAll, headDim, kvHead)
		if err != nil {
			return nil, err
		}
		vHead, err := headView(a, vAll, headDim, kvHead)
		if err != nil {
			return nil, err
		}

		// scores[key, query] = mul_mat(qHead, kHead): both operands share
		// the headDim contracting axis, giving [n_past+T, T] — each of the
		// T query columns holds its n_past+T key scores contiguously,
		// exactly what soft_max's per-row reduction (over shape[0]) needs.
		scores, err := graph.MulMat(a, qHead, kHead)
		if err != nil {
			return nil, err
		}
		scaled, err := graph.Scale(a, scores, float32(1/math.Sqrt(float64(headDim))))
		if err != nil {
			return nil, err
		}
		masked, err := graph.CausalMask(a, scaled, nPast)
		if err != nil {
			return nil, err
		}
		probs, err := graph.SoftMax(a, masked)
		if err != nil {
			return nil, err
		}

		vHeadT, err := graph.Transpose(a, vHead)
		if err != nil {
			return nil, err
		}
		ctxRaw, err := graph.MulMat(a, vHeadT, probs)
		if err != nil {
			return nil, err
		}
		ctxHead, err := graph.Transpose(a, ctxRaw)
		if err != nil {
			return nil, err
		}

		if err := computeNow(a, ctxHead); err != nil {
			return nil, err
		}
		writeHead(ctx, ctxHead, headDim, h)
	}

	return ctx, nil
}

// computeNow builds the post-order graph ending at t and executes it
// immediately, materializing t.Data (and every ancestor still awaiting
// computation). Most of Forward defers computation to one graph.Build(z) +
// Compute at the very end of the pass; computeNow is the escape hatch for
// the few places — KV-cache writes, per-head tensor splitting — that read
// raw tensor bytes directly rather than composing further graph nodes, and
// so need their input materialized immediately rather than lazily.
func computeNow(a *tensor.Arena, t *tensor.Tensor) error {
	return graph.Build(t).Compute(a)
}

// headView copies head index h (headDim lanes wide) out of x (shape
// [heads*headDim, T]) into a fresh contiguous [headDim, T] arena tensor.
// x is feature-contiguous (dim 0 is the stride-1 axis), so a single head's
// lanes are not contiguous across T and must be gathered column by column.
func headView(a *tensor.Arena, x *tensor.Tensor, headDim, h int64) (*tensor.Tensor, error) {
	d := x.Shape[0]
	t := x.Shape[1]
	out, err := a.AllocTensor(tensor.F32, []int64{headDim, t}, nil)
	if err != nil {
		return nil, err
	}
	xf := x.Float32Data()
	of := out.Float32Data()
	off := h * headDim
	for col := int64(0); col < t; col++ {
		copy(of[col*headDim:(col+1)*headDim], xf[col*d+off:col*d+off+headDim])
	}
	return out, nil
}

// writeHead copies src (shape [headDim, T]) into head slot h of dst (shape
// [heads*headDim, T]), the inverse of headView.
func writeHead(dst, src *tensor.Tensor, headDim, h int64) {
	d := dst.Shape[0]
	t := dst.Shape[1]
	df := dst.Float32Data()
	sf := src.Float32Data()
	off := h * headDim
	for col := int64(0); col < t; col++ {
		copy(df[col*d+off:col*d+off+headDim], sf[col*headDim:(col+1)*headDim])
	}
}

// Sample draws the next token id from logits using s.Sampler.
func (s *State) Sample(logits []float32) int32 {
	return sampler.Sample(logits, s.Sampler, s.rng)
}

// Reset clears the KV cache, starting a fresh sequence.
func (s *State) Reset() {
	s.Cache.Reset()
}
