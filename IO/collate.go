package IO

import (
	"fmt"

	"github.com/manningwu07/seq2seq/params"
	"github.com/manningwu07/seq2seq/transformer"
	"gonum.org/v1/gonum/mat"
)

// Pipeline turns raw text into token ids. Vocabulary construction lives in
// the tokenizer implementation, not here.
type Pipeline interface {
	Encode(text string) ([]int, error)
}

// Collate tokenizes each (source, target) pair, brackets the ids with the
// start and end sentinels, and right-pads every row with padID to exactly
// maxPadding width. A sequence that cannot fit together with its brackets
// is reported as an error, never emitted as a corrupted row.
func Collate(pairs [][2]string, srcPipe, tgtPipe Pipeline, maxPadding, padID int) (src, tgt [][]int, err error) {
	src = make([][]int, 0, len(pairs))
	tgt = make([][]int, 0, len(pairs))
	for i, pair := range pairs {
		srcRow, err := collateRow(pair[0], srcPipe, maxPadding, padID)
		if err != nil {
			return nil, nil, fmt.Errorf("pair %d source: %w", i, err)
		}
		tgtRow, err := collateRow(pair[1], tgtPipe, maxPadding, padID)
		if err != nil {
			return nil, nil, fmt.Errorf("pair %d target: %w", i, err)
		}
		src = append(src, srcRow)
		tgt = append(tgt, tgtRow)
	}
	return src, tgt, nil
}

func collateRow(text string, pipe Pipeline, maxPadding, padID int) ([]int, error) {
	ids, err := pipe.Encode(text)
	if err != nil {
		return nil, err
	}
	if len(ids)+2 > maxPadding {
		return nil, fmt.Errorf("sequence exceeds max padding: %d ids + 2 brackets > %d", len(ids), maxPadding)
	}
	row := make([]int, 0, maxPadding)
	row = append(row, params.Config.StartID)
	row = append(row, ids...)
	row = append(row, params.Config.EndID)
	for len(row) < maxPadding {
		row = append(row, padID)
	}
	return row, nil
}

// Batch bundles collated id rows with the masks the model consumes. Tgt
// holds the decoder input rows (gold shifted right by one), TgtY the
// positions the decoder must predict.
type Batch struct {
	Src     [][]int
	Tgt     [][]int
	TgtY    [][]int
	SrcMask transformer.Mask
	TgtMask transformer.Mask
	NTokens int // non-pad tokens in TgtY
}

func NewBatch(src, tgt [][]int, padID int) *Batch {
	b := &Batch{Src: src}
	srcRows := make([]*mat.Dense, len(src))
	for i, row := range src {
		srcRows[i] = transformer.PaddingMask(row, padID)
	}
	b.SrcMask = transformer.NewMask(srcRows...)
	if tgt != nil {
		b.Tgt = make([][]int, len(tgt))
		b.TgtY = make([][]int, len(tgt))
		tgtRows := make([]*mat.Dense, len(tgt))
		for i, row := range tgt {
			if len(row) < 2 {
				panic("batch: target rows need at least two tokens")
			}
			b.Tgt[i] = row[:len(row)-1]
			b.TgtY[i] = row[1:]
			tgtRows[i] = transformer.StdMask(b.Tgt[i], padID)
			for _, id := range b.TgtY[i] {
				if id != padID {
					b.NTokens++
				}
			}
		}
		b.TgtMask = transformer.NewMask(tgtRows...)
	}
	return b
}
