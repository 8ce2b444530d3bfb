package transformer

import (
	"github.com/manningwu07/seq2seq/params"
	"github.com/manningwu07/seq2seq/utils"
	"gonum.org/v1/gonum/mat"
)

// Generator projects hidden rows to log-probabilities over the target
// vocabulary.
type Generator struct {
	Proj *mat.Dense // (vocab x dModel)
	Bias *mat.Dense // (1 x vocab)
}

func NewGenerator(dModel, vocabSize int) *Generator {
	return &Generator{
		Proj: mat.NewDense(vocabSize, dModel, utils.RandomArray(vocabSize*dModel, float64(dModel))),
		Bias: mat.NewDense(1, vocabSize, nil),
	}
}

// Apply maps (k x dModel) hidden rows to (k x vocab) log-probabilities.
func (g *Generator) Apply(hidden *mat.Dense) *mat.Dense {
	logits := utils.ToDense(utils.Dot(hidden, g.Proj.T()))
	logits = utils.AddRowBias(logits, g.Bias)
	return utils.RowLogSoftmax(logits)
}

// EncoderLayer is self-attention followed by feed-forward, both residual
// wrapped and gated by the source padding mask.
type EncoderLayer struct {
	Size     int
	SelfAttn Attention
	FF       FeedForward
	Sub1     *SublayerConnection
	Sub2     *SublayerConnection
}

func (l *EncoderLayer) Forward(x []*mat.Dense, mask Mask) []*mat.Dense {
	x = l.Sub1.Apply(x, SelfAttentionOp{Attn: l.SelfAttn, Mask: mask})
	return l.Sub2.Apply(x, FeedForwardOp{FF: l.FF})
}

// DecoderLayer is masked self-attention, then cross-attention over the
// encoder memory, then feed-forward.
type DecoderLayer struct {
	Size      int
	SelfAttn  Attention
	CrossAttn Attention
	FF        FeedForward
	Sub1      *SublayerConnection
	Sub2      *SublayerConnection
	Sub3      *SublayerConnection
}

func (l *DecoderLayer) Forward(x, memory []*mat.Dense, srcMask, tgtMask Mask) []*mat.Dense {
	x = l.Sub1.Apply(x, SelfAttentionOp{Attn: l.SelfAttn, Mask: tgtMask})
	x = l.Sub2.Apply(x, CrossAttentionOp{Attn: l.CrossAttn, Memory: memory, Mask: srcMask})
	return l.Sub3.Apply(x, FeedForwardOp{FF: l.FF})
}

// Encoder stacks N identical layers and norms the final output.
type Encoder struct {
	Layers []*EncoderLayer
	Norm   *LayerNorm
}

func (e *Encoder) Forward(x []*mat.Dense, mask Mask) []*mat.Dense {
	for _, l := range e.Layers {
		x = l.Forward(x, mask)
	}
	outs := make([]*mat.Dense, len(x))
	for n := range x {
		outs[n] = e.Norm.Forward(x[n])
	}
	return outs
}

type Decoder struct {
	Layers []*DecoderLayer
	Norm   *LayerNorm
}

func (d *Decoder) Forward(x, memory []*mat.Dense, srcMask, tgtMask Mask) []*mat.Dense {
	for _, l := range d.Layers {
		x = l.Forward(x, memory, srcMask, tgtMask)
	}
	outs := make([]*mat.Dense, len(x))
	for n := range x {
		outs[n] = d.Norm.Forward(x[n])
	}
	return outs
}

// EncoderDecoder wires embeddings, positional encoding, the two stacks and
// the generator. Parameters are read-only during Encode/Decode/Generate.
type EncoderDecoder struct {
	SrcEmbed *Embeddings
	TgtEmbed *Embeddings
	SrcPos   *PositionalEncoding
	TgtPos   *PositionalEncoding
	Enc      *Encoder
	Dec      *Decoder
	Gen      *Generator

	drops []*Dropout
}

func (m *EncoderDecoder) Encode(src [][]int, srcMask Mask) []*mat.Dense {
	return m.Enc.Forward(m.SrcPos.Apply(m.SrcEmbed.Apply(src)), srcMask)
}

func (m *EncoderDecoder) Decode(memory []*mat.Dense, srcMask Mask, tgt [][]int, tgtMask Mask) []*mat.Dense {
	return m.Dec.Forward(m.TgtPos.Apply(m.TgtEmbed.Apply(tgt)), memory, srcMask, tgtMask)
}

func (m *EncoderDecoder) Generate(hidden *mat.Dense) *mat.Dense {
	return m.Gen.Apply(hidden)
}

// Forward runs the full encode/decode pass over a batch.
func (m *EncoderDecoder) Forward(src, tgt [][]int, srcMask, tgtMask Mask) []*mat.Dense {
	return m.Decode(m.Encode(src, srcMask), srcMask, tgt, tgtMask)
}

// SetTraining flips every dropout in the model. Inference is the default.
func (m *EncoderDecoder) SetTraining(training bool) {
	for _, d := range m.drops {
		d.Training = training
	}
}

// NewModel builds a fresh randomly initialized encoder-decoder. The
// positional table length comes from params.Config.MaxLen.
func NewModel(srcVocab, tgtVocab, n, dModel, hidden, nHeads int, dropout float64) *EncoderDecoder {
	if n < 1 {
		panic("model needs at least one layer per stack")
	}
	m := &EncoderDecoder{}
	newDrop := func() *Dropout {
		d := NewDropout(dropout)
		m.drops = append(m.drops, d)
		return d
	}

	encLayers := make([]*EncoderLayer, n)
	for i := 0; i < n; i++ {
		encLayers[i] = &EncoderLayer{
			Size:     dModel,
			SelfAttn: NewMultiHeadAttention(dModel, nHeads, newDrop()),
			FF:       NewPositionwiseFeedForward(dModel, hidden, newDrop()),
			Sub1:     NewSublayerConnection(dModel, newDrop()),
			Sub2:     NewSublayerConnection(dModel, newDrop()),
		}
	}
	decLayers := make([]*DecoderLayer, n)
	for i := 0; i < n; i++ {
		decLayers[i] = &DecoderLayer{
			Size:      dModel,
			SelfAttn:  NewMultiHeadAttention(dModel, nHeads, newDrop()),
			CrossAttn: NewMultiHeadAttention(dModel, nHeads, newDrop()),
			FF:        NewPositionwiseFeedForward(dModel, hidden, newDrop()),
			Sub1:      NewSublayerConnection(dModel, newDrop()),
			Sub2:      NewSublayerConnection(dModel, newDrop()),
			Sub3:      NewSublayerConnection(dModel, newDrop()),
		}
	}

	m.SrcEmbed = NewEmbeddings(srcVocab, dModel)
	m.TgtEmbed = NewEmbeddings(tgtVocab, dModel)
	m.SrcPos = NewPositionalEncoding(dModel, params.Config.MaxLen, newDrop())
	m.TgtPos = NewPositionalEncoding(dModel, params.Config.MaxLen, newDrop())
	m.Enc = &Encoder{Layers: encLayers, Norm: NewLayerNorm(dModel, 1e-6)}
	m.Dec = &Decoder{Layers: decLayers, Norm: NewLayerNorm(dModel, 1e-6)}
	m.Gen = NewGenerator(dModel, tgtVocab)
	return m
}
