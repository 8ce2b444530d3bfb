package transformer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/manningwu07/seq2seq/params"
	"github.com/manningwu07/seq2seq/utils"
	"gonum.org/v1/gonum/mat"
)

// ---- Positional encoding ----

func TestPositionalEncodingTable(t *testing.T) {
	pe := NewPositionalEncoding(4, 10, NewDropout(0))
	again := NewPositionalEncoding(4, 10, NewDropout(0))
	if !mat.Equal(pe.PE, again.PE) {
		t.Fatal("table differs across constructions")
	}
	if got := pe.PE.At(0, 0); got != 0 {
		t.Fatalf("pe[0,0] = %.6g, want 0", got)
	}
	if got := pe.PE.At(0, 1); got != 1 {
		t.Fatalf("pe[0,1] = %.6g, want 1", got)
	}
	if got, want := pe.PE.At(3, 0), math.Sin(3); !almostEq(got, want, 1e-12) {
		t.Fatalf("pe[3,0] = %.6g, want %.6g", got, want)
	}
	angle := 7.0 / math.Pow(10000, 2.0/4.0)
	if got, want := pe.PE.At(7, 2), math.Sin(angle); !almostEq(got, want, 1e-12) {
		t.Fatalf("pe[7,2] = %.6g, want %.6g", got, want)
	}
	if got, want := pe.PE.At(7, 3), math.Cos(angle); !almostEq(got, want, 1e-12) {
		t.Fatalf("pe[7,3] = %.6g, want %.6g", got, want)
	}
}

func TestPositionalEncodingAddsToInput(t *testing.T) {
	p := NewPositionalEncoding(6, 8, NewDropout(0))
	x := []*mat.Dense{mat.NewDense(3, 6, nil)}
	out := p.Apply(x)
	if !mat.Equal(out[0], p.PE.Slice(0, 3, 0, 6)) {
		t.Fatal("zero input should come back as the table prefix")
	}
}

func TestPositionalEncodingRejectsLongInput(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for a sequence longer than the table")
		}
	}()
	p := NewPositionalEncoding(4, 2, NewDropout(0))
	p.Apply([]*mat.Dense{mat.NewDense(3, 4, nil)})
}

// ---- Embeddings ----

func TestEmbeddingsScaleBySqrtD(t *testing.T) {
	e := NewEmbeddings(3, 4)
	for j, v := range []float64{0.5, -1, 2, 0} {
		e.LUT.Set(1, j, v)
	}
	out := e.Apply([][]int{{1}})
	// sqrt(4) = 2
	if got := out[0].At(0, 0); !almostEq(got, 1.0, 1e-12) {
		t.Fatalf("scaled embedding [0,0] = %.6g, want 1", got)
	}
	if got := out[0].At(0, 1); !almostEq(got, -2.0, 1e-12) {
		t.Fatalf("scaled embedding [0,1] = %.6g, want -2", got)
	}
}

func TestEmbeddingsRejectUnknownID(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for an id outside the vocabulary")
		}
	}()
	NewEmbeddings(3, 4).Apply([][]int{{3}})
}

// ---- Layer norm ----

func TestLayerNormRowStatistics(t *testing.T) {
	ln := NewLayerNorm(4, 1e-6)
	x := mat.NewDense(2, 4, []float64{
		1, 2, 3, 4,
		-3, 0, 3, 6,
	})
	out := ln.Forward(x)
	for i, s := range utils.RowSums(out) {
		if !almostEq(s/4, 0, 1e-9) {
			t.Fatalf("row %d mean = %.6g, want 0", i, s/4)
		}
	}
	// row 0 has mean 2.5 and sample std sqrt(5/3)
	want := (1.0 - 2.5) / (math.Sqrt(5.0/3.0) + 1e-6)
	if got := out.At(0, 0); !almostEq(got, want, 1e-12) {
		t.Fatalf("normalized [0,0] = %.6g, want %.6g", got, want)
	}
}

func TestLayerNormAppliesAffine(t *testing.T) {
	ln := NewLayerNorm(4, 1e-6)
	for j := 0; j < 4; j++ {
		ln.Gamma.Set(0, j, 2)
		ln.Beta.Set(0, j, 1)
	}
	x := mat.NewDense(1, 4, []float64{1, 2, 3, 4})
	out := ln.Forward(x)
	want := 2*(1.0-2.5)/(math.Sqrt(5.0/3.0)+1e-6) + 1
	if got := out.At(0, 0); !almostEq(got, want, 1e-12) {
		t.Fatalf("affine output [0,0] = %.6g, want %.6g", got, want)
	}
}

// ---- Sublayer connection ----

type recordingOp struct {
	saw []*mat.Dense
	out []*mat.Dense
}

func (op *recordingOp) Apply(x []*mat.Dense) []*mat.Dense {
	op.saw = x
	return op.out
}

func TestSublayerNormsBeforeOpAndAddsResidual(t *testing.T) {
	sc := NewSublayerConnection(3, NewDropout(0))
	x := []*mat.Dense{mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})}
	delta := mat.NewDense(2, 3, []float64{10, 20, 30, 40, 50, 60})
	op := &recordingOp{out: []*mat.Dense{delta}}

	out := sc.Apply(x, op)

	if !mat.Equal(op.saw[0], sc.Norm.Forward(x[0])) {
		t.Fatal("op should see the normalized input, not the raw input")
	}
	want := utils.ToDense(utils.Add(x[0], delta))
	if !mat.EqualApprox(out[0], want, 1e-12) {
		t.Fatal("output should be the raw input plus the op result")
	}
}

// ---- Label smoothing ----

func TestLabelSmoothingDistribution(t *testing.T) {
	ls := NewLabelSmoothing(5, 0, 0.1)
	dist := ls.Smooth([]int{2, 0})

	if got := dist.At(0, 2); !almostEq(got, 0.9, 1e-12) {
		t.Fatalf("true class mass = %.6g, want 0.9", got)
	}
	if got := dist.At(0, 0); got != 0 {
		t.Fatalf("padding class mass = %.6g, want 0", got)
	}
	for _, j := range []int{1, 3, 4} {
		if got := dist.At(0, j); !almostEq(got, 0.1/3, 1e-12) {
			t.Fatalf("off-class %d mass = %.6g, want %.6g", j, got, 0.1/3)
		}
	}
	if s := utils.RowSums(dist)[0]; !almostEq(s, ls.Confidence+ls.Smoothing, 1e-12) {
		t.Fatalf("row sum = %.6g, want %.6g", s, ls.Confidence+ls.Smoothing)
	}
	// a padding target zeroes its whole row
	if s := utils.RowSums(dist)[1]; s != 0 {
		t.Fatalf("padding-target row sums to %.6g, want 0", s)
	}
}

func TestLabelSmoothingLossOnUniformPrediction(t *testing.T) {
	ls := NewLabelSmoothing(5, 0, 0.1)
	logU := math.Log(1.0 / 5.0)
	pred := mat.NewDense(2, 5, nil)
	for i := 0; i < 2; i++ {
		for j := 0; j < 5; j++ {
			pred.Set(i, j, logU)
		}
	}
	// row 1 targets the padding class and must contribute nothing
	want := 0.9*(math.Log(0.9)-logU) + 3*(0.1/3)*(math.Log(0.1/3)-logU)
	got := ls.Loss(pred, []int{2, 0})
	if !almostEq(got, want, 1e-12) {
		t.Fatalf("loss = %.6g, want %.6g", got, want)
	}
}

func TestLabelSmoothingRejectsTinyVocab(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for size <= 2")
		}
	}()
	NewLabelSmoothing(2, 0, 0.1)
}

// ---- Generator ----

func TestGeneratorRowsAreLogProbs(t *testing.T) {
	rand.Seed(123)
	g := NewGenerator(6, 9)
	hidden := mat.NewDense(4, 6, utils.RandomArray(24, 6))
	lp := g.Apply(hidden)
	r, c := lp.Dims()
	if r != 4 || c != 9 {
		t.Fatalf("log-probs are (%d x %d), want (4 x 9)", r, c)
	}
	for i := 0; i < r; i++ {
		s := 0.0
		for j := 0; j < c; j++ {
			s += math.Exp(lp.At(i, j))
		}
		if !almostEq(s, 1.0, 1e-9) {
			t.Fatalf("row %d exp-sums to %.6g, want 1", i, s)
		}
	}
}

// ---- Masks ----

func TestSubsequentMaskIsLowerTriangular(t *testing.T) {
	m := SubsequentMask(4)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			want := 0.0
			if j <= i {
				want = 1.0
			}
			if m.At(i, j) != want {
				t.Fatalf("mask[%d,%d] = %v, want %v", i, j, m.At(i, j), want)
			}
		}
	}
}

func TestPaddingMaskMarksNonPad(t *testing.T) {
	m := PaddingMask([]int{0, 9, 1, 2, 2}, 2)
	want := mat.NewDense(1, 5, []float64{1, 1, 1, 0, 0})
	if !mat.Equal(m, want) {
		t.Fatalf("padding mask:\n%v", mat.Formatted(m))
	}
}

func TestStdMaskBlocksFutureAndPadding(t *testing.T) {
	m := StdMask([]int{5, 2, 7}, 2)
	want := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		1, 0, 0,
		1, 0, 1,
	})
	if !mat.Equal(m, want) {
		t.Fatalf("std mask:\n%v\nwant:\n%v", mat.Formatted(m), mat.Formatted(want))
	}
}

// ---- Full model ----

func TestModelForwardShapes(t *testing.T) {
	rand.Seed(123)
	old := params.Config.MaxLen
	params.Config.MaxLen = 64
	defer func() { params.Config.MaxLen = old }()

	model := NewModel(12, 12, 2, 8, 16, 2, 0)
	src := [][]int{{0, 4, 5, 1, 2, 2}}
	tgtIn := [][]int{{0, 6, 7, 8, 1}}

	srcMask := NewMask(PaddingMask(src[0], 2))
	tgtMask := NewMask(StdMask(tgtIn[0], 2))

	hidden := model.Forward(src, tgtIn, srcMask, tgtMask)
	if len(hidden) != 1 {
		t.Fatalf("got %d batch outputs, want 1", len(hidden))
	}
	r, c := hidden[0].Dims()
	if r != 5 || c != 8 {
		t.Fatalf("decoder output is (%d x %d), want (5 x 8)", r, c)
	}
	lp := model.Generate(hidden[0])
	r, c = lp.Dims()
	if r != 5 || c != 12 {
		t.Fatalf("log-probs are (%d x %d), want (5 x 12)", r, c)
	}
	// dropout defaults to inference mode, so a second pass must match
	again := model.Forward(src, tgtIn, srcMask, tgtMask)
	if !mat.EqualApprox(hidden[0], again[0], 1e-12) {
		t.Fatal("inference forward should be deterministic")
	}
}

func TestNewModelRejectsZeroLayers(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for an empty stack")
		}
	}()
	NewModel(10, 10, 0, 8, 16, 2, 0)
}
