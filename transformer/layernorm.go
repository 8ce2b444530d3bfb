package transformer

import (
	"math"

	"github.com/manningwu07/seq2seq/utils"
	"gonum.org/v1/gonum/mat"
)

type LayerNorm struct {
	D     int
	Eps   float64
	Gamma *mat.Dense // (1 x d)
	Beta  *mat.Dense // (1 x d)
}

func NewLayerNorm(d int, eps float64) *LayerNorm {
	g := utils.OnesLike(mat.NewDense(1, d, nil))
	b := mat.NewDense(1, d, nil)
	return &LayerNorm{D: d, Eps: eps, Gamma: g, Beta: b}
}

// Forward normalizes each row over the feature dimension, then applies the
// learned per-feature scale and shift. The epsilon is added to the sample
// standard deviation itself, not to the variance under the root.
func (ln *LayerNorm) Forward(X *mat.Dense) *mat.Dense {
	T, d := X.Dims()
	if d != ln.D {
		panic("layerNorm: feature width mismatch")
	}
	out := mat.NewDense(T, d, nil)
	for t := 0; t < T; t++ {
		// mean over features
		mu := 0.0
		for j := 0; j < d; j++ {
			mu += X.At(t, j)
		}
		mu /= float64(d)
		// sample variance
		var v float64
		for j := 0; j < d; j++ {
			diff := X.At(t, j) - mu
			v += diff * diff
		}
		if d > 1 {
			v /= float64(d - 1)
		}
		std := math.Sqrt(v)
		// normalize and affine
		for j := 0; j < d; j++ {
			n := (X.At(t, j) - mu) / (std + ln.Eps)
			out.Set(t, j, ln.Gamma.At(0, j)*n+ln.Beta.At(0, j))
		}
	}
	return out
}
