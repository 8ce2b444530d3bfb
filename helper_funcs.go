package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/manningwu07/seq2seq/params"
)

// chooseValidHeads walks the requested head count down until it divides
// dModel. Multi-head attention panics on an indivisible split, so the
// CLI repairs bad flag combinations instead of crashing.
func chooseValidHeads(dModel, requested int) int {
	if requested < 1 {
		requested = 1
	}
	for h := requested; h > 1; h-- {
		if dModel%h == 0 {
			if h != requested {
				fmt.Printf("Warning: using %d heads instead of %d\n", h, requested)
			}
			return h
		}
	}
	if requested != 1 {
		fmt.Printf("Warning: using 1 head instead of %d\n", requested)
	}
	return 1
}

// wordPipeline is a toy whitespace tokenizer for the demo. It grows the
// shared vocab as it sees new words, so every demo sentence round-trips.
type wordPipeline struct{}

func newWordPipeline() *wordPipeline {
	if len(params.Vocab.IDToToken) == 0 {
		params.Vocab.TokenToID = make(map[string]int)
		for _, tok := range []string{"<s>", "</s>", "<blank>", "<unk>"} {
			params.Vocab.TokenToID[tok] = len(params.Vocab.IDToToken)
			params.Vocab.IDToToken = append(params.Vocab.IDToToken, tok)
		}
	}
	return &wordPipeline{}
}

func (p *wordPipeline) Encode(text string) ([]int, error) {
	words := strings.Fields(strings.ToLower(text))
	ids := make([]int, 0, len(words))
	for _, w := range words {
		id, ok := params.Vocab.TokenToID[w]
		if !ok {
			id = len(params.Vocab.IDToToken)
			params.Vocab.TokenToID[w] = id
			params.Vocab.IDToToken = append(params.Vocab.IDToToken, w)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
