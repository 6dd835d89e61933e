package model

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

const (
	captionModelName   = "gemini-1.5-flash-latest"
	captionInstruction = "You write one-sentence descriptions of images. " +
		"Describe the main subject plainly. Just return the description itself, nothing else."
)

// GeminiCaptioner fills Image.Description at upload time using the Gemini
// API. It is optional; the service runs without it and stores empty
// descriptions.
type GeminiCaptioner struct {
	client *genai.Client
}

var _ Captioner = (*GeminiCaptioner)(nil)

func NewGeminiCaptioner(ctx context.Context, apiKey string) (*GeminiCaptioner, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiCaptioner{client: client}, nil
}

func (c *GeminiCaptioner) Close() {
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		}
	}
}

func (c *GeminiCaptioner) Describe(ctx context.Context, raw []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("unrecognized image format: %w", err)
	}

	gm := c.client.GenerativeModel(captionModelName)
	gm.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(captionInstruction)},
	}

	resp, err := gm.GenerateContent(ctx,
		genai.ImageData(format, raw),
		genai.Text("Describe this image."),
	)
	if err != nil {
		return "", fmt.Errorf("gemini caption request failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no caption")
	}

	var caption strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			caption.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(caption.String()), nil
}
