package transformer

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Dropout zeroes entries with probability P and rescales the survivors by
// 1/(1-P) so expectations match between training and inference. Inference
// (Training == false) is a no-op.
type Dropout struct {
	P        float64
	Training bool
}

func NewDropout(p float64) *Dropout {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("dropout: rate %v must be in [0, 1)", p))
	}
	return &Dropout{P: p}
}

func (d *Dropout) Apply(m *mat.Dense) *mat.Dense {
	if d == nil || !d.Training || d.P == 0 {
		return m
	}
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	keep := 1.0 / (1.0 - d.P)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if rand.Float64() < d.P {
				out.Set(i, j, 0)
			} else {
				out.Set(i, j, m.At(i, j)*keep)
			}
		}
	}
	return out
}
