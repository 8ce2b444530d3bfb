package decode

import (
	"github.com/manningwu07/seq2seq/transformer"
	"github.com/manningwu07/seq2seq/utils"
	"gonum.org/v1/gonum/mat"
)

// Beam decodes one source sequence with beam search. Each step adds every
// live hypothesis's cumulative score to its next-token log-probabilities
// and takes a single joint top-beamSize over (hypothesis x vocabulary), so
// the beam may concentrate on a few strong parents and drop weak ones
// entirely. A hypothesis whose last token is endID contributes an all-zero
// distribution and only ever extends with endID again, staying in the beam
// without growing its score.
func Beam(m Model, src []int, srcMask transformer.Mask, maxLen, startID, endID, beamSize int) []int {
	if beamSize < 1 {
		panic("beam: beamSize must be >= 1")
	}
	memory := m.Encode([][]int{src}, srcMask)

	ys := [][]int{{startID}}
	scores := []float64{0}

	for step := 0; step < maxLen-1; step++ {
		ended := make([]bool, len(ys))
		done := true
		for i, seq := range ys {
			ended[i] = seq[len(seq)-1] == endID
			if !ended[i] {
				done = false
			}
		}
		if done {
			break
		}

		tgtMask := transformer.NewMask(transformer.SubsequentMask(len(ys[0])))
		hidden := m.Decode(memory, srcMask, ys, tgtMask)

		// next-token log-probs per hypothesis; ended rows go to all-zero
		var vocab int
		probs := make([]*mat.Dense, len(ys))
		for i := range ys {
			row := m.Generate(lastRow(hidden[i]))
			_, vocab = row.Dims()
			if ended[i] {
				row = mat.NewDense(1, vocab, nil)
			}
			probs[i] = row
		}

		combined := mat.NewDense(len(ys), vocab, nil)
		for i := range ys {
			for v := 0; v < vocab; v++ {
				combined.Set(i, v, scores[i]+probs[i].At(0, v))
			}
		}
		idxs, vals := utils.TopKFlat(combined, beamSize)

		newYs := make([][]int, beamSize)
		newScores := make([]float64, beamSize)
		for b, idx := range idxs {
			parent := idx / vocab
			tok := idx % vocab
			if ended[parent] {
				tok = endID
			}
			seq := append(append([]int(nil), ys[parent]...), tok)
			newYs[b] = seq
			newScores[b] = vals[b]
		}
		ys, scores = newYs, newScores

		// after the first step the single memory fans out to the whole beam;
		// the source mask broadcasts on its own
		if step == 0 {
			expanded := make([]*mat.Dense, beamSize)
			for b := range expanded {
				expanded[b] = memory[0]
			}
			memory = expanded
		}
	}

	// Highest cumulative score wins. Scores are not length-normalized, so
	// shorter sequences keep a log-probability edge.
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return ys[best]
}
