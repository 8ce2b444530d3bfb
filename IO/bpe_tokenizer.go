package IO

import (
	"fmt"
	"os"
	"path/filepath"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/models"
	"github.com/sugarme/tokenizer/normalizers"
	"github.com/sugarme/tokenizer/pretokenizers"
	"github.com/sugarme/tokenizer/trainers"

	"github.com/manningwu07/seq2seq/params"
)

// BPEPipeline adapts a byte-pair tokenizer to the collation Pipeline
// contract. Collation adds the sentinel brackets itself, so the tokenizer
// carries no post-processor.
type BPEPipeline struct {
	tok *tk.Tokenizer
}

// TrainOrLoadBPE trains a BPE tokenizer on corpusPath (if tokPath is not
// found yet) and loads it. It also fills params.Vocab with
// TokenToID/IDToToken. The special tokens are listed so that <s>, </s> and
// <blank> land on ids 0, 1 and 2, the sentinel ids the rest of the system
// assumes.
func TrainOrLoadBPE(corpusPath, tokPath string, vocabSize int) (*BPEPipeline, error) {
	if fileExists(tokPath) {
		t, err := tk.FromFile(tokPath)
		if err != nil {
			return nil, err
		}
		p := &BPEPipeline{tok: t}
		return p, p.fillParamsVocab()
	}

	bpe := models.NewBPE()
	t := tk.NewTokenizer(bpe)

	// Normalize to NFKC lower
	t.WithNormalizer(normalizers.NewSequence(
		normalizers.NewNFKC(),
		normalizers.NewLowercase(),
	))
	t.WithPreTokenizer(pretokenizers.NewWhitespaceSplit())

	tr := trainers.NewBpeTrainer()
	tr.VocabSize = vocabSize
	tr.SpecialTokens = []string{"<s>", "</s>", "<blank>", "<unk>"}

	if err := t.Train(tr, []string{corpusPath}); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(tokPath), 0o755); err != nil {
		return nil, err
	}
	if err := t.Save(tokPath); err != nil {
		return nil, err
	}
	p := &BPEPipeline{tok: t}
	return p, p.fillParamsVocab()
}

// Encode turns raw text into token ids (without sentinel brackets).
func (p *BPEPipeline) Encode(text string) ([]int, error) {
	if p == nil || p.tok == nil {
		return nil, fmt.Errorf("tokenizer not initialized")
	}
	enc, err := p.tok.EncodeSingle(text)
	if err != nil {
		return nil, err
	}
	ids := enc.Ids
	out := make([]int, len(ids))
	for i, v := range ids {
		out[i] = int(v)
	}
	return out, nil
}

func (p *BPEPipeline) fillParamsVocab() error {
	if p.tok == nil {
		return fmt.Errorf("tokenizer not initialized")
	}
	vocab := p.tok.GetVocab(true)
	maxID := 0
	for _, id := range vocab {
		if id > maxID {
			maxID = id
		}
	}
	id2tok := make([]string, maxID+1)
	tok2id := make(map[string]int, len(vocab))
	for tok, id := range vocab {
		tok2id[tok] = id
		id2tok[id] = tok
	}
	params.Vocab = params.Vocabulary{TokenToID: tok2id, IDToToken: id2tok}
	return nil
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
