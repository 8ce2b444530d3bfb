package transformer

import (
	"github.com/manningwu07/seq2seq/utils"
	"gonum.org/v1/gonum/mat"
)

// PositionwiseFeedForward applies the same two-layer MLP to every sequence
// position independently: w2 * dropout(relu(w1*x + b1)) + b2.
type PositionwiseFeedForward struct {
	Inputs, Hiddens           int
	HiddenWeights, HiddenBias *mat.Dense // (hidden x dModel), (1 x hidden)
	OutputWeights, OutputBias *mat.Dense // (dModel x hidden), (1 x dModel)
	Drop                      *Dropout
}

func NewPositionwiseFeedForward(dModel, hidden int, drop *Dropout) *PositionwiseFeedForward {
	return &PositionwiseFeedForward{
		Inputs:        dModel,
		Hiddens:       hidden,
		HiddenWeights: mat.NewDense(hidden, dModel, utils.RandomArray(dModel*hidden, float64(dModel))),
		HiddenBias:    mat.NewDense(1, hidden, nil),
		OutputWeights: mat.NewDense(dModel, hidden, utils.RandomArray(hidden*dModel, float64(hidden))),
		OutputBias:    mat.NewDense(1, dModel, nil),
		Drop:          drop,
	}
}

func (mlp *PositionwiseFeedForward) Apply(x []*mat.Dense) []*mat.Dense {
	outs := make([]*mat.Dense, len(x))
	for n, X := range x {
		hiddenLin := utils.ToDense(utils.Dot(X, mlp.HiddenWeights.T())) // (L x hidden)
		hiddenWithBias := utils.AddRowBias(hiddenLin, mlp.HiddenBias)
		hiddenOut := utils.ToDense(utils.Apply(utils.ReluApply, hiddenWithBias))
		hiddenOut = mlp.Drop.Apply(hiddenOut)
		finalLin := utils.ToDense(utils.Dot(hiddenOut, mlp.OutputWeights.T())) // (L x dModel)
		outs[n] = utils.AddRowBias(finalLin, mlp.OutputBias)
	}
	return outs
}
