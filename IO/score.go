package IO

import (
	"fmt"
	"strings"

	"github.com/manningwu07/seq2seq/params"
)

// StripMarkers removes a leading <s> and a trailing </s> marker.
func StripMarkers(s string) string {
	s = strings.TrimPrefix(s, "<s>")
	s = strings.TrimSuffix(s, "</s>")
	return s
}

// Scorer computes corpus-level BLEU; the BLEU arithmetic itself lives
// outside this package.
type Scorer interface {
	CorpusScore(hyps, refs []string) (float64, error)
}

// CorpusBLEU strips sentence markers from both sides and delegates to the
// scorer, hypotheses paired index for index with references.
func CorpusBLEU(sc Scorer, hyps, refs []string) (float64, error) {
	if len(hyps) != len(refs) {
		return 0, fmt.Errorf("corpus bleu: %d hypotheses vs %d references", len(hyps), len(refs))
	}
	h := make([]string, len(hyps))
	r := make([]string, len(refs))
	for i := range hyps {
		h[i] = StripMarkers(hyps[i])
		r[i] = StripMarkers(refs[i])
	}
	return sc.CorpusScore(h, r)
}

// Detokenize renders ids through the vocabulary, skipping padding but
// keeping the sentinel markers visible for StripMarkers to handle.
func Detokenize(ids []int, vocab params.Vocabulary, padID int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == padID {
			continue
		}
		if id >= 0 && id < len(vocab.IDToToken) {
			parts = append(parts, vocab.IDToToken[id])
		}
	}
	return strings.Join(parts, " ")
}
