package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/rjmacarthy/minigpt4/internal/model"
)

// PromptTemplate is the fixed conversation template. The user message is
// substituted into the text slot; ImagePlaceholder marks where the image
// embedding block is spliced in.
const PromptTemplate = "Given the following image: <Img>ImageContent</Img>. " +
	"You will be able to see the image once I provide it to you. " +
	"Please answer my question.###Human: <Img><ImageHere></Img> %s ###Assistant:"

// ImagePlaceholder is the marker the template is split on.
const ImagePlaceholder = "<ImageHere>"

// Composer builds one embedding sequence representing "system + image + user
// message" for a single decoder invocation.
type Composer struct {
	lm       model.LanguageModel
	template string
}

func NewComposer(lm model.LanguageModel) *Composer {
	return &Composer{lm: lm, template: PromptTemplate}
}

// Compose instantiates the template with the user message, splits it on the
// image placeholder, tokenizes and embeds each text segment, and splices the
// image blocks in between. Only the first segment carries the
// beginning-of-sequence marker. With N segments there are N-1 insertion
// points; the shipped template yields two segments and one point. A nil or
// missing block leaves its insertion point empty, so text-only composition is
// valid.
func (c *Composer) Compose(ctx context.Context, message string, blocks ...[][]float32) ([][]float32, error) {
	prompt := fmt.Sprintf(c.template, message)
	segments := strings.Split(prompt, ImagePlaceholder)

	var sequence [][]float32
	for i, segment := range segments {
		if i > 0 && i-1 < len(blocks) && blocks[i-1] != nil {
			sequence = append(sequence, blocks[i-1]...)
		}

		ids, err := c.lm.Tokenize(ctx, segment, i == 0)
		if err != nil {
			return nil, fmt.Errorf("failed to tokenize prompt segment %d: %w", i, err)
		}
		embeds, err := c.lm.EmbedTokens(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to embed prompt segment %d: %w", i, err)
		}
		sequence = append(sequence, embeds...)
	}
	return sequence, nil
}
