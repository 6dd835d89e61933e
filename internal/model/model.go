package model

import "context"

// SamplingParams are the decoder's sampling knobs. They are configuration
// values, not architectural constraints.
type SamplingParams struct {
	TopP              float64
	Temperature       float64
	RepetitionPenalty float64
	LengthPenalty     float64
	MinLength         int
	NumBeams          int
}

func DefaultSamplingParams() SamplingParams {
	return SamplingParams{
		TopP:              0.9,
		Temperature:       1.2,
		RepetitionPenalty: 1.0,
		LengthPenalty:     1.0,
		MinLength:         1,
		NumBeams:          1,
	}
}

// LanguageModel is the capability set the generation controller depends on.
// It abstracts over a concrete decoder implementation: tokenization, the
// input-embedding table, a single autoregressive decode step, and detokenization.
type LanguageModel interface {
	// Tokenize converts text to token identifiers. addSpecial prepends the
	// beginning-of-sequence marker; only the first segment of a spliced
	// prompt should carry it.
	Tokenize(ctx context.Context, text string, addSpecial bool) ([]int32, error)

	// EmbedTokens maps token identifiers to input-embedding vectors, one row
	// per token.
	EmbedTokens(ctx context.Context, ids []int32) ([][]float32, error)

	// Step runs one decode step over the embedding sequence and samples the
	// next token.
	Step(ctx context.Context, embeds [][]float32, params SamplingParams) (int32, error)

	// DecodeTokens converts token identifiers back to text without emitting
	// decoder-internal special tokens.
	DecodeTokens(ctx context.Context, ids []int32) (string, error)

	// EOSTokenID is the decoder's native end-of-sequence token.
	EOSTokenID() int32
}

// ImageEncoding is the vision encoder's output for one image: the embedding
// block spliced into the prompt sequence, and a pooled feature vector used
// for nearest-neighbor retrieval.
type ImageEncoding struct {
	Block   [][]float32 `json:"block"`
	Feature []float32   `json:"feature"`
}

// VisionEncoder turns raw image bytes into decoder-space embeddings.
type VisionEncoder interface {
	EncodeImage(ctx context.Context, raw []byte) (*ImageEncoding, error)
}

// Captioner produces a textual description for raw image bytes. Optional;
// uploads store an empty description when no captioner is configured.
type Captioner interface {
	Describe(ctx context.Context, raw []byte) (string, error)
}
