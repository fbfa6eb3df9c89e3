package graph

import (
	"fmt"
	"runtime"

	"github.com/BurgessTheGamer/Llamux/internal/llamuxerr"
	"github.com/BurgessTheGamer/Llamux/internal/tensor"
)

// Graph is a terminal output tensor plus the post-order traversal needed to
// evaluate it: leaves (Op == OpNone) first, then internal nodes in
// dependency order.
type Graph struct {
	Leafs []*tensor.Tensor
	Nodes []*tensor.Tensor
	out   *tensor.Tensor
}

// Build performs the post-order topological sort of this step 1,
// visiting Src[0] and Src[1] before their consumer and rejecting duplicates
// via identity (pointer) comparison.
func Build(out *tensor.Tensor) *Graph {
	g := &Graph{out: out}
	visited := make(map[*tensor.Tensor]bool)
	var visit func(t *tensor.Tensor)
	visit = func(t *tensor.Tensor) {
		if t == nil || visited[t] {
			return
		}
		visited[t] = true
		visit(t.Src[0])
		visit(t.Src[1])
		if t.Leaf() {
			g.Leafs = append(g.Leafs, t)
		} else {
			g.Nodes = append(g.Nodes, t)
		}
	}
	visit(out)
	return g
}

// Output returns the graph's terminal tensor.
func (g *Graph) Output() *tensor.Tensor { return g.out }

// yieldEvery bounds how many matmul rows run between cooperative
// runtime.Gosched calls, so a long forward pass never monopolizes a
// goroutine-scheduled host for more than a few rows at a time (this
// step 2, §5 "voluntarily yields every few rows").
const yieldEvery = 8

// Compute evaluates every node in order, dispatching each to its kernel
// from package graph's op table. A kernel-level failure (shape violation,
// unsupported dtype) is logged onto the node as Failed and the node's
// output is left zero-filled so the pass can still complete with degraded
// output, per this — except that running out of arena space is a
// hard abort, since there is no way to produce even a degraded tensor
// without memory for it.
func (g *Graph) Compute(arena *tensor.Arena) error {
	for _, n := range g.Nodes {
		if len(n.Data) == 0 {
			size := int(n.ByteSize())
			if size > 0 {
				t2, err := arena.AllocTensor(n.DType, n.Shape[:n.NDims], nil)
				if err != nil {
					return fmt.Errorf("compute %s: %w", n.Op, err)
				}
				n.Data = t2.Data
			}
		}

		if err := dispatch(n); err != nil {
			n.Failed = true
			zero(n.Data)
		}
	}
	return nil
}

func dispatch(n *tensor.Tensor) error {
	switch n.Op {
	case tensor.OpAdd:
		return kernelAdd(n)
	case tensor.OpMul:
		return kernelMul(n)
	case tensor.OpMulMat:
		return kernelMulMat(n)
	case tensor.OpGetRows:
		return kernelGetRows(n)
	case tensor.OpRMSNorm:
		return kernelRMSNorm(n)
	case tensor.OpScale:
		return kernelScale(n)
	case tensor.OpSiLU:
		return kernelSiLU(n)
	case tensor.OpSoftMax:
		return kernelSoftMax(n)
	case tensor.OpRope:
		return kernelRope(n)
	case tensor.OpTranspose:
		return kernelTranspose(n)
	case tensor.OpCausalMask:
		return kernelCausalMask(n)
	default:
		return fmt.Errorf("%w: op %s", llamuxerr.ErrUnsupported, n.Op)
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// maybeYield is called from inside the hottest loop (matmul row
// iteration) to cooperatively hand the goroutine scheduler
// a chance to run other work, matching the cooperative-yield
// requirement without assuming a real-time or single-threaded host.
func maybeYield(row int) {
	if row > 0 && row%yieldEvery == 0 {
		runtime.Gosched()
	}
}
