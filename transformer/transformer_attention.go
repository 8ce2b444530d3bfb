package transformer

import (
	"math"

	"github.com/manningwu07/seq2seq/utils"
	"gonum.org/v1/gonum/mat"
)

// Attention is the contract encoder and decoder layers compose over.
type Attention interface {
	Apply(query, key, value []*mat.Dense, mask Mask) []*mat.Dense
}

// FeedForward is the per-position transform contract.
type FeedForward interface {
	Apply(x []*mat.Dense) []*mat.Dense
}

// Large negative sentinel rather than -Inf, so a fully masked row still
// softmaxes to a valid distribution instead of NaN.
const maskedScore = -1e9

// headAttention runs scaled dot-product attention for one batch element of
// one head. query is (Lq x dk), key (Lk x dk), value (Lk x dv). Returns the
// output (Lq x dv) and the normalized weights (Lq x Lk).
func headAttention(query, key, value, m *mat.Dense, drop *Dropout) (*mat.Dense, *mat.Dense) {
	Lq, dk := query.Dims()
	Lk, _ := key.Dims()
	scores := mat.NewDense(Lq, Lk, nil)
	scores.Mul(query, key.T())
	scores.Scale(1.0/math.Sqrt(float64(dk)), scores)
	if m != nil {
		maskFill(scores, m, maskedScore)
	}
	weights := utils.RowSoftmax(scores)
	weights = drop.Apply(weights)
	_, dv := value.Dims()
	out := mat.NewDense(Lq, dv, nil)
	out.Mul(weights, value)
	return out, weights
}

// ScaledDotProductAttention applies headAttention to every batch element.
// The mask broadcasts per the Mask rules; a nil-row Mask disables masking.
// The weights are returned alongside the outputs for diagnostics.
func ScaledDotProductAttention(query, key, value []*mat.Dense, mask Mask, drop *Dropout) ([]*mat.Dense, []*mat.Dense) {
	if len(key) != len(query) || len(value) != len(query) {
		panic("attention: query/key/value batch sizes differ")
	}
	outs := make([]*mat.Dense, len(query))
	weights := make([]*mat.Dense, len(query))
	for n := range query {
		var m *mat.Dense
		if !mask.Empty() {
			m = mask.At(n)
		}
		outs[n], weights[n] = headAttention(query[n], key[n], value[n], m, drop)
	}
	return outs, weights
}

type MultiHeadAttention struct {
	H       int
	DModel  int
	DHead   int
	Wquery  []*mat.Dense // per head: (dHead x dModel)
	Wkey    []*mat.Dense
	Wvalue  []*mat.Dense
	Woutput *mat.Dense // (dModel x dModel)
	Drop    *Dropout
}

func NewMultiHeadAttention(dModel, nHeads int, drop *Dropout) *MultiHeadAttention {
	if dModel%nHeads != 0 {
		panic("dModel must be divisible by nHeads")
	}
	dHead := dModel / nHeads
	attn := &MultiHeadAttention{
		H:      nHeads,
		DModel: dModel,
		DHead:  dHead,
		Drop:   drop,
		Wquery: make([]*mat.Dense, nHeads),
		Wkey:   make([]*mat.Dense, nHeads),
		Wvalue: make([]*mat.Dense, nHeads),
	}
	for h := 0; h < nHeads; h++ {
		attn.Wquery[h] = mat.NewDense(dHead, dModel, utils.RandomArray(dHead*dModel, float64(dModel)))
		attn.Wkey[h] = mat.NewDense(dHead, dModel, utils.RandomArray(dHead*dModel, float64(dModel)))
		attn.Wvalue[h] = mat.NewDense(dHead, dModel, utils.RandomArray(dHead*dModel, float64(dModel)))
	}
	attn.Woutput = mat.NewDense(dModel, dModel, utils.RandomArray(dModel*dModel, float64(dModel)))
	return attn
}

func (attn *MultiHeadAttention) Apply(query, key, value []*mat.Dense, mask Mask) []*mat.Dense {
	out, _ := attn.ApplyWithWeights(query, key, value, mask)
	return out
}

// ApplyWithWeights projects each batch element per head, attends, concats
// the heads back to (Lq x dModel), and applies the output projection. The
// same mask element serves every head of its batch element. The weights go
// back to the caller as a head -> batch element slice; nothing is kept on
// the module.
func (attn *MultiHeadAttention) ApplyWithWeights(query, key, value []*mat.Dense, mask Mask) ([]*mat.Dense, [][]*mat.Dense) {
	if len(key) != len(query) || len(value) != len(query) {
		panic("multiHeadAttention: query/key/value batch sizes differ")
	}
	outs := make([]*mat.Dense, len(query))
	weights := make([][]*mat.Dense, attn.H)
	for h := range weights {
		weights[h] = make([]*mat.Dense, len(query))
	}
	for n := range query {
		Lq, _ := query[n].Dims()
		Lk, _ := key[n].Dims()
		var m *mat.Dense
		if !mask.Empty() {
			m = mask.At(n)
		}
		headsCat := mat.NewDense(Lq, attn.DModel, nil)
		for h := 0; h < attn.H; h++ {
			q := mat.NewDense(Lq, attn.DHead, nil)
			k := mat.NewDense(Lk, attn.DHead, nil)
			v := mat.NewDense(Lk, attn.DHead, nil)
			q.Mul(query[n], attn.Wquery[h].T())
			k.Mul(key[n], attn.Wkey[h].T())
			v.Mul(value[n], attn.Wvalue[h].T())
			o, a := headAttention(q, k, v, m, attn.Drop)
			weights[h][n] = a
			// concat into headsCat columns
			base := h * attn.DHead
			dst := headsCat.Slice(0, Lq, base, base+attn.DHead).(*mat.Dense)
			dst.Copy(o)
		}
		outs[n] = utils.ToDense(utils.Dot(headsCat, attn.Woutput.T()))
	}
	return outs, weights
}
