package utils

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Matrix functions used for the calculations in the program

// r = rows of matrix
// c = columns of matrix
// o = output
// m = matrix input number 1
// n = matrix input number 2

func Dot(m, n mat.Matrix) mat.Matrix {
	r, _ := m.Dims()
	_, c := n.Dims()
	o := mat.NewDense(r, c, nil)
	o.Product(m, n)
	return o
}

func Apply(fn func(i, j int, v float64) float64, m mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Apply(fn, m)
	return o
}

func Scale(s float64, m mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Scale(s, m)
	return o
}

func Add(m, n mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Add(m, n)
	return o
}

func ToDense(m mat.Matrix) *mat.Dense {
	if d, ok := m.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(m)
}

func OnesLike(a *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, 1)
		}
	}
	return out
}

func RandomArray(size int, v float64) []float64 {
	min := -1.0 / math.Sqrt(v+1e-12)
	max := 1.0 / math.Sqrt(v+1e-12)
	out := make([]float64, size)
	for i := 0; i < size; i++ {
		out[i] = min + (max-min)*rand.Float64()
	}
	return out
}

// AddRowBias adds a (1 x c) bias row to every row of m.
func AddRowBias(m, bias *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	rb, cb := bias.Dims()
	if rb != 1 || cb != c {
		panic("addRowBias: bias must be (1 x c)")
	}
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(i, j)+bias.At(0, j))
		}
	}
	return out
}

// ReluApply is shape-compatible with mat.Dense.Apply: (i,j,v) -> value.
func ReluApply(i, j int, x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// PrintMatrix prints a Gonum matrix in a compact form.
func PrintMatrix(m mat.Matrix, name string) {
	r, c := m.Dims()
	fmt.Printf("Matrix %s (%dx%d):\n", name, r, c)
	fa := mat.Formatted(m, mat.Prefix("  "), mat.Squeeze())
	fmt.Printf("%v\n", fa)
}

// RowSums returns per-row sums for a mat.Dense.
func RowSums(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		sum := 0.0
		for j := 0; j < c; j++ {
			sum += m.At(i, j)
		}
		out[i] = sum
	}
	return out
}

func MatrixNorm(m *mat.Dense) float64 {
	r, c := m.Dims()
	s := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			s += v * v
		}
	}
	return math.Sqrt(s)
}

// ---------- Softmax variants ----------

// RowSoftmax applies softmax independently to each row across columns.
// Used by attention (scores have shape [Lq x Lk]; row sums should be 1).
func RowSoftmax(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		// collect row
		row := make([]float64, c)
		for j := 0; j < c; j++ {
			row[j] = m.At(i, j)
		}
		// numerical stability
		mx := row[0]
		for _, v := range row {
			if v > mx {
				mx = v
			}
		}
		sum := 0.0
		for j := 0; j < c; j++ {
			row[j] = math.Exp(row[j] - mx)
			sum += row[j]
		}
		for j := 0; j < c; j++ {
			out.Set(i, j, row[j]/sum)
		}
	}
	return out
}

// RowLogSoftmax applies log-softmax independently to each row.
// Used by the generator (log-probabilities over the vocabulary).
func RowLogSoftmax(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		mx := m.At(i, 0)
		for j := 1; j < c; j++ {
			if v := m.At(i, j); v > mx {
				mx = v
			}
		}
		sum := 0.0
		for j := 0; j < c; j++ {
			sum += math.Exp(m.At(i, j) - mx)
		}
		lse := mx + math.Log(sum)
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(i, j)-lse)
		}
	}
	return out
}

// ---------- Selection ----------

// RowArgmax returns the column index of the largest value in row i.
func RowArgmax(m *mat.Dense, i int) int {
	_, c := m.Dims()
	best := 0
	bv := m.At(i, 0)
	for j := 1; j < c; j++ {
		if v := m.At(i, j); v > bv {
			bv = v
			best = j
		}
	}
	return best
}

// TopKFlat returns the flat (row-major) indices and values of the k largest
// entries of m, sorted descending by value.
func TopKFlat(m *mat.Dense, k int) ([]int, []float64) {
	r, c := m.Dims()
	if k <= 0 || k > r*c {
		panic(fmt.Sprintf("topKFlat: k=%d out of range for %dx%d", k, r, c))
	}
	type kv struct {
		idx int
		val float64
	}
	arr := make([]kv, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			arr = append(arr, kv{idx: i*c + j, val: m.At(i, j)})
		}
	}
	sort.Slice(arr, func(i, j int) bool { return arr[i].val > arr[j].val })
	idxs := make([]int, k)
	vals := make([]float64, k)
	for i := 0; i < k; i++ {
		idxs[i] = arr[i].idx
		vals[i] = arr[i].val
	}
	return idxs, vals
}
