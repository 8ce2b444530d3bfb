package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/manningwu07/seq2seq/IO"
	"github.com/manningwu07/seq2seq/decode"
	"github.com/manningwu07/seq2seq/params"
	"github.com/manningwu07/seq2seq/transformer"
	"github.com/manningwu07/seq2seq/utils"
	"gonum.org/v1/gonum/mat"
)

var (
	translateFlag bool
	verboseFlag   bool
	corpusPath    string
	tokPath       string

	layersFlag  int
	dModelFlag  int
	hiddenFlag  int
	headsFlag   int
	vocabFlag   int
	dropoutFlag float64
	beamFlag    int
	maxLenFlag  int
	maxPadFlag  int
)

func init() {
	flag.BoolVar(&translateFlag, "translate", false, "Run the translation REPL (needs -corpus or a saved tokenizer)")
	flag.BoolVar(&verboseFlag, "verbose", false, "Print attention weights after decoding")
	flag.StringVar(&corpusPath, "corpus", "", "Text corpus to train the BPE tokenizer on")
	flag.StringVar(&tokPath, "tok", "models/tokenizer.json", "Tokenizer save path")

	flag.IntVar(&layersFlag, "layers", 2, "Encoder/decoder layers per stack")
	flag.IntVar(&dModelFlag, "dmodel", 128, "Model width")
	flag.IntVar(&hiddenFlag, "hidden", 256, "Feed-forward hidden width")
	flag.IntVar(&headsFlag, "heads", 4, "Attention heads")
	flag.IntVar(&vocabFlag, "vocab", 8000, "BPE vocab size for -translate")
	flag.Float64Var(&dropoutFlag, "dropout", 0.1, "Dropout rate")
	flag.IntVar(&beamFlag, "beam", 4, "Beam size")
	flag.IntVar(&maxLenFlag, "maxlen", 12, "Decode step budget")
	flag.IntVar(&maxPadFlag, "maxpad", 16, "Collation width")
}

func main() {
	flag.Parse()

	params.Layers = layersFlag
	params.Config.DModel = dModelFlag
	params.Config.HiddenSize = hiddenFlag
	params.Config.NumHeads = chooseValidHeads(dModelFlag, headsFlag)
	params.Config.Dropout = dropoutFlag
	params.Config.BeamSize = beamFlag
	params.Config.MaxDecodeLen = maxLenFlag
	params.Config.MaxPadding = maxPadFlag

	if translateFlag {
		runTranslate()
		return
	}
	runDemo()
}

// runDemo collates a few built-in sentence pairs through a whitespace
// pipeline, runs a label-smoothed forward pass and both decoders on a
// freshly initialized model, and prints what comes out.
func runDemo() {
	pipe := newWordPipeline()
	pairs := [][2]string{
		{"the cat sat on the mat", "le chat est assis sur le tapis"},
		{"dogs chase the ball", "les chiens poursuivent la balle"},
		{"good morning", "bonjour"},
	}

	src, tgt, err := IO.Collate(pairs, pipe, pipe, params.Config.MaxPadding, params.Config.PadID)
	if err != nil {
		log.Fatal(err)
	}
	batch := IO.NewBatch(src, tgt, params.Config.PadID)
	vocabSize := len(params.Vocab.IDToToken)
	fmt.Printf("Collated %d pairs, vocab %d, width %d\n", len(pairs), vocabSize, params.Config.MaxPadding)

	t1 := time.Now()
	model := transformer.NewModel(
		vocabSize, vocabSize,
		params.Layers,
		params.Config.DModel,
		params.Config.HiddenSize,
		params.Config.NumHeads,
		params.Config.Dropout,
	)
	fmt.Printf("Built %d-layer model (dModel=%d, heads=%d) in %s\n",
		params.Layers, params.Config.DModel, params.Config.NumHeads, time.Since(t1))
	if enc0, ok := model.Enc.Layers[0].SelfAttn.(*transformer.MultiHeadAttention); ok {
		fmt.Printf("Attn.Wq[0] norm=%.6g\n", utils.MatrixNorm(enc0.Wquery[0]))
	}

	// Forward pass + label-smoothed loss over the batch
	crit := transformer.NewLabelSmoothing(vocabSize, params.Config.PadID, 0.1)
	hidden := model.Forward(batch.Src, batch.Tgt, batch.SrcMask, batch.TgtMask)
	total := 0.0
	for n := range hidden {
		logProbs := model.Generate(hidden[n])
		total += crit.Loss(logProbs, batch.TgtY[n])
	}
	fmt.Printf("Label-smoothed loss: %.4f over %d tokens (%.4f per token)\n",
		total, batch.NTokens, total/float64(batch.NTokens))

	// Decode the first pair with both strategies
	srcMask := transformer.NewMask(transformer.PaddingMask(src[0], params.Config.PadID))
	greedyIDs := decode.Greedy(model, src[0], srcMask, params.Config.MaxDecodeLen, params.Config.StartID)
	beamIDs := decode.Beam(model, src[0], srcMask, params.Config.MaxDecodeLen,
		params.Config.StartID, params.Config.EndID, params.Config.BeamSize)

	fmt.Println("Source:    ", pairs[0][0])
	fmt.Println("Greedy ids:", greedyIDs)
	fmt.Println("Greedy out:", IO.StripMarkers(IO.Detokenize(greedyIDs, params.Vocab, params.Config.PadID)))
	fmt.Printf("Beam ids (k=%d): %v\n", params.Config.BeamSize, beamIDs)
	fmt.Println("Beam out:  ", IO.StripMarkers(IO.Detokenize(beamIDs, params.Vocab, params.Config.PadID)))

	if verboseFlag {
		// recompute the first pair's layer-0 self-attention, weights included
		if mha, ok := model.Enc.Layers[0].SelfAttn.(*transformer.MultiHeadAttention); ok {
			emb := model.SrcPos.Apply(model.SrcEmbed.Apply([][]int{src[0]}))
			normed := []*mat.Dense{model.Enc.Layers[0].Sub1.Norm.Forward(emb[0])}
			_, w := mha.ApplyWithWeights(normed, normed, normed, srcMask)
			utils.PrintMatrix(w[0][0], "encoder self-attention head 0")
		}
	}
}

// runTranslate trains or loads the BPE tokenizer, builds a model over its
// vocab, and hands off to the REPL. Weights are freshly initialized here;
// training them is a separate concern.
func runTranslate() {
	if corpusPath == "" && !fileExists(tokPath) {
		log.Fatal("translate mode needs -corpus to train a tokenizer, or an existing -tok file")
	}
	pipe, err := IO.TrainOrLoadBPE(corpusPath, tokPath, vocabFlag)
	if err != nil {
		log.Fatal(err)
	}
	vocabSize := len(params.Vocab.IDToToken)
	fmt.Printf("Tokenizer ready, vocab %d\n", vocabSize)

	model := transformer.NewModel(
		vocabSize, vocabSize,
		params.Layers,
		params.Config.DModel,
		params.Config.HiddenSize,
		params.Config.NumHeads,
		params.Config.Dropout,
	)
	fmt.Println("Note: model weights are freshly initialized, not trained.")
	TranslateCLI(model, pipe)
}
