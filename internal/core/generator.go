package core

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rjmacarthy/minigpt4/internal/model"
)

// GenerationOptions govern one decoder invocation. MaxLength is the hard
// context budget in sequence positions, prompt plus generated output.
type GenerationOptions struct {
	MaxNewTokens int
	MaxLength    int
	Sampling     model.SamplingParams
}

func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{
		MaxNewTokens: 300,
		MaxLength:    2000,
		Sampling:     model.DefaultSamplingParams(),
	}
}

// Generator drives the autoregressive decoder: it truncates the composed
// sequence to the context budget, runs the decode loop under the stopping
// criteria, and post-processes raw tokens into clean answer text.
//
// Decoder invocations are computationally exclusive, so a mutex serializes
// them; concurrent generation requests queue rather than run in parallel.
type Generator struct {
	lm       model.LanguageModel
	composer *Composer
	stops    model.StoppingCriteria
	opts     GenerationOptions

	mu sync.Mutex
}

func NewGenerator(lm model.LanguageModel, composer *Composer, stops model.StoppingCriteria, opts GenerationOptions) *Generator {
	return &Generator{lm: lm, composer: composer, stops: stops, opts: opts}
}

// Generate produces one answer per image block, each conditioned on the same
// user message. Answers are ordered like the blocks, which the session keeps
// in upload order. No blocks yields an empty list.
func (g *Generator) Generate(ctx context.Context, message string, blocks [][][]float32) ([]string, error) {
	answers := make([]string, 0, len(blocks))
	for _, block := range blocks {
		answer, err := g.Answer(ctx, message, block)
		if err != nil {
			return nil, err
		}
		answers = append(answers, answer)
	}
	return answers, nil
}

// Answer runs a single generation: compose, truncate, decode, post-process.
func (g *Generator) Answer(ctx context.Context, message string, imageBlock [][]float32) (string, error) {
	sequence, err := g.composer.Compose(ctx, message, imageBlock)
	if err != nil {
		return "", err
	}
	sequence = truncate(sequence, g.opts.MaxNewTokens, g.opts.MaxLength)

	g.mu.Lock()
	generated, err := g.decode(ctx, sequence)
	g.mu.Unlock()
	if err != nil {
		return "", err
	}

	return g.postProcess(ctx, generated)
}

// truncate drops the oldest positions so that the sequence plus the new-token
// budget fits the context limit. The most recent content is never dropped.
// Overflow is never an error: when the new-token budget alone exceeds the
// limit the whole prompt is dropped and the result is empty.
func truncate(sequence [][]float32, maxNewTokens, maxLength int) [][]float32 {
	begin := len(sequence) + maxNewTokens - maxLength
	if begin < 0 {
		begin = 0
	}
	if begin > len(sequence) {
		begin = len(sequence)
	}
	return sequence[begin:]
}

// decode is the autoregressive loop. It terminates on a stop-sequence match,
// the decoder's native end-of-sequence token, the max-new-tokens budget, or
// context cancellation, whichever comes first. The cancellation check runs
// once per generated token to bound worst-case latency.
func (g *Generator) decode(ctx context.Context, sequence [][]float32) ([]int32, error) {
	var generated []int32
	for len(generated) < g.opts.MaxNewTokens {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generation aborted: %w", err)
		}

		token, err := g.lm.Step(ctx, sequence, g.opts.Sampling)
		if err != nil {
			return nil, fmt.Errorf("decoder step failed: %w", err)
		}
		generated = append(generated, token)

		if g.stops.Match(generated) {
			break
		}
		if token == g.lm.EOSTokenID() && len(generated) >= g.opts.Sampling.MinLength {
			break
		}

		embeds, err := g.lm.EmbedTokens(ctx, []int32{token})
		if err != nil {
			return nil, fmt.Errorf("failed to embed generated token: %w", err)
		}
		sequence = append(sequence, embeds...)
	}
	return generated, nil
}

// postProcess turns raw output tokens into the user-facing answer: strip a
// leading pad token (0) then a leading BOS token (1), each at most once,
// decode without special tokens, cut at the first "###" role boundary, and
// keep the text after the last "Assistant:" marker.
func (g *Generator) postProcess(ctx context.Context, tokens []int32) (string, error) {
	for _, leading := range []int32{0, 1} {
		if len(tokens) > 0 && tokens[0] == leading {
			tokens = tokens[1:]
		}
	}

	text, err := g.lm.DecodeTokens(ctx, tokens)
	if err != nil {
		return "", fmt.Errorf("failed to decode output tokens: %w", err)
	}

	if idx := strings.Index(text, "###"); idx >= 0 {
		text = text[:idx]
	}
	if idx := strings.LastIndex(text, "Assistant:"); idx >= 0 {
		text = text[idx+len("Assistant:"):]
	}
	return strings.TrimSpace(text), nil
}
