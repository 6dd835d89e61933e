package core

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"log"

	"github.com/rjmacarthy/minigpt4/internal/model"
	"github.com/rjmacarthy/minigpt4/internal/store"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// ImageStore is the slice of the persistence layer the chat service uses.
type ImageStore interface {
	CreateImage(ctx context.Context, raw []byte, description string, embedding []float32) (*store.Image, error)
	List(ctx context.Context) ([]store.Image, error)
	GetByIDs(ctx context.Context, ids []uint) ([]store.Image, error)
	DeleteByIDs(ctx context.Context, ids []uint) ([]store.Image, error)
	Search(ctx context.Context, query []float32) ([]store.Image, error)
}

// ChatService orchestrates uploads, session state and generation.
type ChatService struct {
	images    ImageStore
	sessions  *SessionRegistry
	vision    model.VisionEncoder
	captioner model.Captioner // nil disables captioning
	generator *Generator
}

func NewChatService(images ImageStore, sessions *SessionRegistry, vision model.VisionEncoder, captioner model.Captioner, generator *Generator) *ChatService {
	return &ChatService{
		images:    images,
		sessions:  sessions,
		vision:    vision,
		captioner: captioner,
		generator: generator,
	}
}

func (s *ChatService) Sessions() *SessionRegistry {
	return s.sessions
}

// UploadImages persists each payload and appends its embedding block to the
// session, in upload order. All payloads are validated before anything is
// persisted so a malformed image rejects the request without partial writes.
func (s *ChatService) UploadImages(ctx context.Context, sessionID string, payloads [][]byte) ([]store.Image, error) {
	for i, payload := range payloads {
		if _, _, err := image.DecodeConfig(bytes.NewReader(payload)); err != nil {
			return nil, fmt.Errorf("payload %d is not a decodable image: %w", i, err)
		}
	}

	sess := s.sessions.Get(sessionID)
	records := make([]store.Image, 0, len(payloads))
	for _, payload := range payloads {
		enc, err := s.vision.EncodeImage(ctx, payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}

		description := ""
		if s.captioner != nil {
			description, err = s.captioner.Describe(ctx, payload)
			if err != nil {
				// Captioning is best-effort; the upload proceeds with an
				// empty description.
				log.Printf("Captioning failed: %v", err)
				description = ""
			}
		}

		img, err := s.images.CreateImage(ctx, payload, description, enc.Feature)
		if err != nil {
			return nil, err
		}

		sess.Append(enc.Block)
		records = append(records, *img)
	}
	return records, nil
}

// GenerateAnswers produces one answer per target image for the given message.
// With explicit imageIDs the stored payloads are re-encoded and answered in
// request order, skipping identifiers that do not exist; otherwise the
// session's uploaded images are answered in upload order.
func (s *ChatService) GenerateAnswers(ctx context.Context, sessionID, message string, imageIDs []uint) ([]string, error) {
	if len(imageIDs) == 0 {
		blocks := s.sessions.Get(sessionID).Snapshot()
		return s.generator.Generate(ctx, message, blocks)
	}

	images, err := s.images.GetByIDs(ctx, imageIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*store.Image, len(images))
	for i := range images {
		byID[images[i].ID] = &images[i]
	}

	var blocks [][][]float32
	for _, id := range imageIDs {
		img, ok := byID[id]
		if !ok {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(img.EncodedBytes)
		if err != nil {
			return nil, fmt.Errorf("stored image %d is corrupt: %w", id, err)
		}
		enc, err := s.vision.EncodeImage(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to encode stored image %d: %w", id, err)
		}
		blocks = append(blocks, enc.Block)
	}
	return s.generator.Generate(ctx, message, blocks)
}

// ResetSession clears the session's embedding list. Persisted images are
// unaffected and accumulate across resets.
func (s *ChatService) ResetSession(sessionID string) {
	s.sessions.Get(sessionID).Reset()
}

func (s *ChatService) ListImages(ctx context.Context) ([]store.Image, error) {
	return s.images.List(ctx)
}

// DeleteImages removes the given images and returns the identifiers that
// actually existed and were removed.
func (s *ChatService) DeleteImages(ctx context.Context, ids []uint) ([]uint, error) {
	removed, err := s.images.DeleteByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	removedIDs := make([]uint, 0, len(removed))
	for _, img := range removed {
		removedIDs = append(removedIDs, img.ID)
	}
	return removedIDs, nil
}

// SearchImages returns the stored images nearest to the query embedding.
func (s *ChatService) SearchImages(ctx context.Context, query []float32) ([]store.Image, error) {
	return s.images.Search(ctx, query)
}
