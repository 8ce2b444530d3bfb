package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/manningwu07/seq2seq/IO"
	"github.com/manningwu07/seq2seq/decode"
	"github.com/manningwu07/seq2seq/params"
	"github.com/manningwu07/seq2seq/transformer"
)

// TranslateCLI
func TranslateCLI(model *transformer.EncoderDecoder, pipe IO.Pipeline) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("Translation CLI. Type 'exit' to quit.")
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "exit" {
			break
		}
		if line == "" {
			continue
		}
		out, err := Translate(model, pipe, line)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		fmt.Println(out)
	}
}

// Translate runs one sentence end to end: tokenize, bracket with the
// sentence markers, beam decode, detokenize.
func Translate(model *transformer.EncoderDecoder, pipe IO.Pipeline, line string) (string, error) {
	ids, err := pipe.Encode(line)
	if err != nil {
		return "", err
	}
	src := make([]int, 0, len(ids)+2)
	src = append(src, params.Config.StartID)
	src = append(src, ids...)
	src = append(src, params.Config.EndID)

	srcMask := transformer.NewMask(transformer.PaddingMask(src, params.Config.PadID))
	out := decode.Beam(model, src, srcMask, params.Config.MaxDecodeLen,
		params.Config.StartID, params.Config.EndID, params.Config.BeamSize)
	if verboseFlag {
		fmt.Println("Source ids:", src)
		fmt.Println("Output ids:", out)
	}
	return IO.StripMarkers(IO.Detokenize(out, params.Vocab, params.Config.PadID)), nil
}
