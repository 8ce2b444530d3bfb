package transformer

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Mask holds one 0/1 matrix per batch element. Each element is either
// (Lq x Lk), applied row for row, or (1 x Lk), broadcast over every query
// row. A single-element Mask broadcasts over the whole batch. A zero-value
// Mask means no masking at all.
type Mask struct {
	Rows []*mat.Dense
}

func NewMask(rows ...*mat.Dense) Mask {
	return Mask{Rows: rows}
}

func (m Mask) Empty() bool {
	return len(m.Rows) == 0
}

// At returns the mask matrix for batch element i.
func (m Mask) At(i int) *mat.Dense {
	if len(m.Rows) == 1 {
		return m.Rows[0]
	}
	if i < 0 || i >= len(m.Rows) {
		panic(fmt.Sprintf("mask: batch index %d out of range for %d rows", i, len(m.Rows)))
	}
	return m.Rows[i]
}

// SubsequentMask returns (n x n) with 1 on and below the diagonal, so each
// position may attend to itself and earlier positions only.
func SubsequentMask(n int) *mat.Dense {
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			out.Set(i, j, 1)
		}
	}
	return out
}

// PaddingMask returns (1 x L) with 1 wherever the id is not padding.
func PaddingMask(ids []int, padID int) *mat.Dense {
	out := mat.NewDense(1, len(ids), nil)
	for j, id := range ids {
		if id != padID {
			out.Set(0, j, 1)
		}
	}
	return out
}

// StdMask combines the causal and padding constraints for decoder
// self-attention: position i may attend to position j only when j <= i and
// ids[j] is not padding.
func StdMask(ids []int, padID int) *mat.Dense {
	n := len(ids)
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			if ids[j] != padID {
				out.Set(i, j, 1)
			}
		}
	}
	return out
}

// maskFill writes v into scores wherever the mask is 0. A (1 x Lk) mask row
// is broadcast across every query row; a (Lq x Lk) mask is applied directly.
func maskFill(scores, m *mat.Dense, v float64) {
	r, c := scores.Dims()
	mr, mc := m.Dims()
	if mc != c || (mr != 1 && mr != r) {
		panic(fmt.Sprintf("maskFill: mask is (%d x %d), scores are (%d x %d)", mr, mc, r, c))
	}
	for i := 0; i < r; i++ {
		mi := i
		if mr == 1 {
			mi = 0
		}
		for j := 0; j < c; j++ {
			if m.At(mi, j) == 0 {
				scores.Set(i, j, v)
			}
		}
	}
}
