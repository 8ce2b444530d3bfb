package transformer

import (
	"fmt"
	"math"

	"github.com/manningwu07/seq2seq/utils"
	"gonum.org/v1/gonum/mat"
)

// PositionalEncoding holds the fixed sinusoid table. The table is computed
// once at construction and never mutated; it carries no learned parameters.
type PositionalEncoding struct {
	PE   *mat.Dense // (maxLen x dModel)
	Drop *Dropout
}

func NewPositionalEncoding(dModel, maxLen int, drop *Dropout) *PositionalEncoding {
	pe := mat.NewDense(maxLen, dModel, nil)
	for pos := 0; pos < maxLen; pos++ {
		for j := 0; j < dModel; j += 2 {
			angle := float64(pos) / math.Pow(10000, float64(j)/float64(dModel))
			pe.Set(pos, j, math.Sin(angle))
			if j+1 < dModel {
				pe.Set(pos, j+1, math.Cos(angle))
			}
		}
	}
	return &PositionalEncoding{PE: pe, Drop: drop}
}

// Apply adds the first L table rows to each (L x dModel) batch element,
// then applies dropout.
func (p *PositionalEncoding) Apply(x []*mat.Dense) []*mat.Dense {
	maxLen, _ := p.PE.Dims()
	outs := make([]*mat.Dense, len(x))
	for n, X := range x {
		L, d := X.Dims()
		if L > maxLen {
			panic(fmt.Sprintf("positionalEncoding: sequence length %d exceeds table length %d", L, maxLen))
		}
		head := p.PE.Slice(0, L, 0, d).(*mat.Dense)
		outs[n] = p.Drop.Apply(utils.ToDense(utils.Add(X, head)))
	}
	return outs
}

// Embeddings maps token ids to rows of a learned lookup table, scaled by
// sqrt(dModel).
type Embeddings struct {
	LUT    *mat.Dense // (vocab x dModel)
	DModel int
}

func NewEmbeddings(vocabSize, dModel int) *Embeddings {
	return &Embeddings{
		LUT:    mat.NewDense(vocabSize, dModel, utils.RandomArray(vocabSize*dModel, float64(dModel))),
		DModel: dModel,
	}
}

func (e *Embeddings) Apply(ids [][]int) []*mat.Dense {
	vocab, d := e.LUT.Dims()
	scale := math.Sqrt(float64(e.DModel))
	outs := make([]*mat.Dense, len(ids))
	for n, row := range ids {
		X := mat.NewDense(len(row), d, nil)
		for t, id := range row {
			if id < 0 || id >= vocab {
				panic(fmt.Sprintf("embeddings: token id %d out of range for vocab %d", id, vocab))
			}
			for j := 0; j < d; j++ {
				X.Set(t, j, e.LUT.At(id, j)*scale)
			}
		}
		outs[n] = X
	}
	return outs
}
