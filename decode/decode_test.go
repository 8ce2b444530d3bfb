package decode

import (
	"math"
	"math/rand"
	"testing"

	"github.com/manningwu07/seq2seq/params"
	"github.com/manningwu07/seq2seq/transformer"
	"gonum.org/v1/gonum/mat"
)

// scriptedModel emits fixed next-token probabilities keyed by the last
// token of each prefix, so both searches are fully deterministic.
type scriptedModel struct {
	vocab int
	next  map[int][]float64
}

func (s *scriptedModel) Encode(src [][]int, srcMask transformer.Mask) []*mat.Dense {
	return []*mat.Dense{mat.NewDense(1, s.vocab, nil)}
}

func (s *scriptedModel) Decode(memory []*mat.Dense, srcMask transformer.Mask, tgt [][]int, tgtMask transformer.Mask) []*mat.Dense {
	outs := make([]*mat.Dense, len(tgt))
	for i, row := range tgt {
		h := mat.NewDense(len(row), s.vocab, nil)
		for j, p := range s.next[row[len(row)-1]] {
			h.Set(len(row)-1, j, math.Log(p))
		}
		outs[i] = h
	}
	return outs
}

func (s *scriptedModel) Generate(hidden *mat.Dense) *mat.Dense {
	return hidden
}

func equalIDs(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ---- Greedy ----

func TestGreedyEmitsExactlyMaxLen(t *testing.T) {
	m := &scriptedModel{
		vocab: 3,
		next: map[int][]float64{
			0: {0.1, 0.2, 0.7},
			1: {0.2, 0.7, 0.1},
			2: {0.7, 0.2, 0.1},
		},
	}
	got := Greedy(m, []int{0, 2, 1}, transformer.Mask{}, 6, 0)
	want := []int{0, 2, 0, 2, 0, 2}
	if !equalIDs(got, want) {
		t.Fatalf("greedy ids = %v, want %v", got, want)
	}
}

// ---- Beam ----

func TestBeamWidthOneMatchesGreedy(t *testing.T) {
	m := &scriptedModel{
		vocab: 3,
		next: map[int][]float64{
			0: {0.1, 0.2, 0.7},
			1: {0.2, 0.7, 0.1},
			2: {0.7, 0.2, 0.1},
		},
	}
	src := []int{0, 2, 1}
	g := Greedy(m, src, transformer.Mask{}, 6, 0)
	b := Beam(m, src, transformer.Mask{}, 6, 0, 1, 1)
	if !equalIDs(g, b) {
		t.Fatalf("beam k=1 ids = %v, greedy ids = %v", b, g)
	}
}

func TestBeamPrefersHigherJointScore(t *testing.T) {
	// the locally best first token (2) leads nowhere; 3 then the end
	// token carries more total mass
	m := &scriptedModel{
		vocab: 4,
		next: map[int][]float64{
			0: {0.01, 0.04, 0.55, 0.40},
			1: {0.25, 0.25, 0.25, 0.25},
			2: {0.01, 0.10, 0.445, 0.445},
			3: {0.01, 0.95, 0.02, 0.02},
		},
	}
	got := Beam(m, []int{0, 1}, transformer.Mask{}, 3, 0, 1, 2)
	want := []int{0, 3, 1}
	if !equalIDs(got, want) {
		t.Fatalf("beam ids = %v, want %v", got, want)
	}
	greedy := Greedy(m, []int{0, 1}, transformer.Mask{}, 3, 0)
	if equalIDs(greedy, got) {
		t.Fatalf("greedy %v should follow the locally best path instead", greedy)
	}
}

func TestBeamExitsEarlyWhenAllHypothesesEnd(t *testing.T) {
	m := &scriptedModel{
		vocab: 5,
		next: map[int][]float64{
			0: {0.01, 0.96, 0.01, 0.01, 0.01},
			1: {0.2, 0.2, 0.2, 0.2, 0.2},
			2: {0.01, 0.96, 0.01, 0.01, 0.01},
			3: {0.01, 0.96, 0.01, 0.01, 0.01},
			4: {0.01, 0.96, 0.01, 0.01, 0.01},
		},
	}
	got := Beam(m, []int{0, 1}, transformer.Mask{}, 10, 0, 1, 3)
	if len(got) >= 10 {
		t.Fatalf("beam used the full step budget: %v", got)
	}
	want := []int{0, 1, 1}
	if !equalIDs(got, want) {
		t.Fatalf("beam ids = %v, want %v", got, want)
	}
}

func TestBeamRejectsZeroWidth(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for beamSize < 1")
		}
	}()
	Beam(&scriptedModel{vocab: 3, next: map[int][]float64{}}, []int{0}, transformer.Mask{}, 4, 0, 1, 0)
}

// ---- Against the real model ----

func TestGreedyOnFreshModel(t *testing.T) {
	rand.Seed(123)
	old := params.Config.MaxLen
	params.Config.MaxLen = 32
	defer func() { params.Config.MaxLen = old }()

	model := transformer.NewModel(10, 10, 1, 8, 16, 2, 0)
	src := []int{0, 4, 5, 1}
	srcMask := transformer.NewMask(transformer.PaddingMask(src, 2))

	got := Greedy(model, src, srcMask, 6, 0)
	if len(got) != 6 {
		t.Fatalf("greedy emitted %d ids, want 6", len(got))
	}
	if got[0] != 0 {
		t.Fatalf("first id = %d, want the start id", got[0])
	}
	for _, id := range got {
		if id < 0 || id >= 10 {
			t.Fatalf("id %d outside the vocabulary", id)
		}
	}
}

func TestBeamOnFreshModel(t *testing.T) {
	rand.Seed(123)
	old := params.Config.MaxLen
	params.Config.MaxLen = 32
	defer func() { params.Config.MaxLen = old }()

	model := transformer.NewModel(10, 10, 1, 8, 16, 2, 0)
	src := []int{0, 4, 5, 1}
	srcMask := transformer.NewMask(transformer.PaddingMask(src, 2))

	got := Beam(model, src, srcMask, 6, 0, 1, 2)
	if len(got) < 1 || len(got) > 6 {
		t.Fatalf("beam emitted %d ids, want between 1 and 6", len(got))
	}
	if got[0] != 0 {
		t.Fatalf("first id = %d, want the start id", got[0])
	}
}
