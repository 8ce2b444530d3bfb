package decode

import (
	"github.com/manningwu07/seq2seq/transformer"
	"github.com/manningwu07/seq2seq/utils"
	"gonum.org/v1/gonum/mat"
)

// Model is the call contract both search strategies consume.
type Model interface {
	Encode(src [][]int, srcMask transformer.Mask) []*mat.Dense
	Decode(memory []*mat.Dense, srcMask transformer.Mask, tgt [][]int, tgtMask transformer.Mask) []*mat.Dense
	Generate(hidden *mat.Dense) *mat.Dense
}

// lastRow returns the final position's hidden state as a (1 x d) matrix.
func lastRow(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	return m.Slice(r-1, r, 0, c).(*mat.Dense)
}

// Greedy decodes one source sequence by always appending the single most
// probable next token. It never stops early on the end token: the result is
// always exactly maxLen ids, which keeps fixed-length batch evaluation
// simple.
func Greedy(m Model, src []int, srcMask transformer.Mask, maxLen, startID int) []int {
	memory := m.Encode([][]int{src}, srcMask)
	ys := []int{startID}
	for len(ys) < maxLen {
		tgtMask := transformer.NewMask(transformer.SubsequentMask(len(ys)))
		hidden := m.Decode(memory, srcMask, [][]int{ys}, tgtMask)
		probs := m.Generate(lastRow(hidden[0]))
		ys = append(ys, utils.RowArgmax(probs, 0))
	}
	return ys
}
