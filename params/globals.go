package params

// Shared vocab struct, filled by the IO package once a tokenizer is loaded.
type Vocabulary struct {
	TokenToID map[string]int
	IDToToken []string
}

var Vocab Vocabulary

type ModelConfig struct {
	// Core transformer parameters
	DModel     int // model width
	HiddenSize int // feed-forward hidden width
	NumHeads   int // attention heads, dHead = DModel/NumHeads
	Dropout    float64
	MaxLen     int // positional table length

	// Sentinel token ids shared by collation and decoding
	StartID int
	EndID   int
	PadID   int

	// Decoding parameters
	MaxPadding   int // collation width
	BeamSize     int
	MaxDecodeLen int // decode step budget
}

// How many times does attn --> cross-attn --> mlp stack per side
var Layers = 6

var Config = ModelConfig{
	DModel:     512,
	HiddenSize: 2048,
	NumHeads:   8, // dHead = DModel/NumHeads
	Dropout:    0.1,
	MaxLen:     5000,

	StartID: 0,
	EndID:   1,
	PadID:   2,

	MaxPadding:   128,
	BeamSize:     4,
	MaxDecodeLen: 72,
}
