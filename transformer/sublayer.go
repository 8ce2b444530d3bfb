package transformer

import (
	"github.com/manningwu07/seq2seq/utils"
	"gonum.org/v1/gonum/mat"
)

// SublayerOp is one residual-wrapped operation with its operands already
// bound (mask, memory), so the wrapper needs no closures.
type SublayerOp interface {
	Apply(x []*mat.Dense) []*mat.Dense
}

// SelfAttentionOp binds an attention module to a mask; query, key and value
// are all the sublayer input.
type SelfAttentionOp struct {
	Attn Attention
	Mask Mask
}

func (op SelfAttentionOp) Apply(x []*mat.Dense) []*mat.Dense {
	return op.Attn.Apply(x, x, x, op.Mask)
}

// CrossAttentionOp binds an attention module to the encoder memory: queries
// come from the sublayer input, keys and values from the memory.
type CrossAttentionOp struct {
	Attn   Attention
	Memory []*mat.Dense
	Mask   Mask
}

func (op CrossAttentionOp) Apply(x []*mat.Dense) []*mat.Dense {
	return op.Attn.Apply(x, op.Memory, op.Memory, op.Mask)
}

type FeedForwardOp struct {
	FF FeedForward
}

func (op FeedForwardOp) Apply(x []*mat.Dense) []*mat.Dense {
	return op.FF.Apply(x)
}

// SublayerConnection computes x + dropout(op(norm(x))). The norm runs
// before the op, not after the residual add; this ordering changes the
// numerics and must stay as is.
type SublayerConnection struct {
	Norm *LayerNorm
	Drop *Dropout
}

func NewSublayerConnection(d int, drop *Dropout) *SublayerConnection {
	return &SublayerConnection{Norm: NewLayerNorm(d, 1e-6), Drop: drop}
}

func (sc *SublayerConnection) Apply(x []*mat.Dense, op SublayerOp) []*mat.Dense {
	normed := make([]*mat.Dense, len(x))
	for n := range x {
		normed[n] = sc.Norm.Forward(x[n])
	}
	applied := op.Apply(normed)
	outs := make([]*mat.Dense, len(x))
	for n := range x {
		outs[n] = utils.ToDense(utils.Add(x[n], sc.Drop.Apply(applied[n])))
	}
	return outs
}
