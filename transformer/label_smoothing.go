package transformer

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LabelSmoothing spreads a fraction of each target's probability mass over
// the rest of the vocabulary, keeping the padding class at exactly zero.
type LabelSmoothing struct {
	Size       int
	PaddingIdx int
	Smoothing  float64
	Confidence float64
}

func NewLabelSmoothing(size, paddingIdx int, smoothing float64) *LabelSmoothing {
	if size <= 2 {
		panic("labelSmoothing: vocab size must exceed 2")
	}
	if smoothing < 0 || smoothing > 1 {
		panic("labelSmoothing: smoothing must be in [0, 1]")
	}
	if paddingIdx < 0 || paddingIdx >= size {
		panic("labelSmoothing: padding index out of range")
	}
	return &LabelSmoothing{
		Size:       size,
		PaddingIdx: paddingIdx,
		Smoothing:  smoothing,
		Confidence: 1 - smoothing,
	}
}

// Smooth builds the (len(targets) x size) smoothed distribution: confidence
// at the true class, smoothing/(size-2) at every other non-padding class,
// zero at the padding class. Rows whose target IS the padding class are
// zeroed entirely.
func (ls *LabelSmoothing) Smooth(targets []int) *mat.Dense {
	dist := mat.NewDense(len(targets), ls.Size, nil)
	fill := ls.Smoothing / float64(ls.Size-2)
	for i, t := range targets {
		if t == ls.PaddingIdx {
			continue
		}
		if t < 0 || t >= ls.Size {
			panic(fmt.Sprintf("labelSmoothing: target %d out of range for size %d", t, ls.Size))
		}
		for j := 0; j < ls.Size; j++ {
			dist.Set(i, j, fill)
		}
		dist.Set(i, t, ls.Confidence)
		dist.Set(i, ls.PaddingIdx, 0)
	}
	return dist
}

// Loss is the KL divergence, summed over every entry (not averaged),
// between predicted log-probabilities (n x size) and the smoothed
// distribution. Entries with zero target probability contribute nothing.
func (ls *LabelSmoothing) Loss(logProbs *mat.Dense, targets []int) float64 {
	r, c := logProbs.Dims()
	if r != len(targets) || c != ls.Size {
		panic("labelSmoothing: prediction shape mismatch")
	}
	dist := ls.Smooth(targets)
	loss := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			p := dist.At(i, j)
			if p > 0 {
				loss += p * (math.Log(p) - logProbs.At(i, j))
			}
		}
	}
	return loss
}
