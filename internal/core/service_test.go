package core

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/pgvector/pgvector-go"

	"github.com/rjmacarthy/minigpt4/internal/model"
	"github.com/rjmacarthy/minigpt4/internal/store"
)

type fakeImageStore struct {
	nextID uint
	images map[uint]store.Image
}

func newFakeImageStore() *fakeImageStore {
	return &fakeImageStore{images: make(map[uint]store.Image)}
}

func (f *fakeImageStore) CreateImage(_ context.Context, raw []byte, description string, embedding []float32) (*store.Image, error) {
	f.nextID++
	img := store.Image{
		ID:           f.nextID,
		Description:  description,
		EncodedBytes: base64.StdEncoding.EncodeToString(raw),
		Embedding:    pgvector.NewVector(embedding),
	}
	f.images[img.ID] = img
	return &img, nil
}

func (f *fakeImageStore) List(_ context.Context) ([]store.Image, error) {
	var out []store.Image
	for _, img := range f.images {
		out = append(out, img)
	}
	return out, nil
}

func (f *fakeImageStore) GetByIDs(_ context.Context, ids []uint) ([]store.Image, error) {
	var out []store.Image
	for _, id := range ids {
		if img, ok := f.images[id]; ok {
			out = append(out, img)
		}
	}
	return out, nil
}

func (f *fakeImageStore) DeleteByIDs(_ context.Context, ids []uint) ([]store.Image, error) {
	var removed []store.Image
	for _, id := range ids {
		if img, ok := f.images[id]; ok {
			removed = append(removed, img)
			delete(f.images, id)
		}
	}
	return removed, nil
}

func (f *fakeImageStore) Search(_ context.Context, _ []float32) ([]store.Image, error) {
	return f.List(context.Background())
}

type fakeVision struct {
	calls int
}

func (v *fakeVision) EncodeImage(_ context.Context, _ []byte) (*model.ImageEncoding, error) {
	v.calls++
	return &model.ImageEncoding{
		Block:   [][]float32{{float32(v.calls)}},
		Feature: []float32{float32(v.calls), 0, 0},
	}, nil
}

func pngPayload(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestService() (*ChatService, *fakeImageStore, *fakeVision) {
	images := newFakeImageStore()
	vision := &fakeVision{}
	lm := &fakeModel{}
	generator := testGenerator(lm, DefaultGenerationOptions())
	svc := NewChatService(images, NewSessionRegistry(), vision, nil, generator)
	return svc, images, vision
}

func TestUploadGenerateResetScenario(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	records, err := svc.UploadImages(ctx, "conv", [][]byte{pngPayload(t)})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(records))
	}
	if svc.Sessions().Get("conv").Len() != 1 {
		t.Fatalf("expected session embedding list length 1, got %d", svc.Sessions().Get("conv").Len())
	}

	answers, err := svc.GenerateAnswers(ctx, "conv", "describe this", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(answers) != 1 {
		t.Fatalf("expected 1 answer for 1 session image, got %d", len(answers))
	}

	svc.ResetSession("conv")
	if svc.Sessions().Get("conv").Len() != 0 {
		t.Fatal("expected the session embedding list to be empty after reset")
	}

	answers, err = svc.GenerateAnswers(ctx, "conv", "anything", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(answers) != 0 {
		t.Fatalf("expected an empty answer list after reset, got %v", answers)
	}
}

func TestUploadRoundTripsBytes(t *testing.T) {
	svc, images, _ := newTestService()
	payload := pngPayload(t)

	if _, err := svc.UploadImages(context.Background(), "conv", [][]byte{payload}); err != nil {
		t.Fatal(err)
	}

	stored := images.images[1]
	raw, err := base64.StdEncoding.DecodeString(stored.EncodedBytes)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(raw, payload) {
		t.Error("stored encoded bytes do not decode back to the uploaded payload")
	}
}

func TestUploadRejectsUndecodablePayloadWithoutPersisting(t *testing.T) {
	svc, images, _ := newTestService()

	payloads := [][]byte{pngPayload(t), []byte("not an image")}
	if _, err := svc.UploadImages(context.Background(), "conv", payloads); err == nil {
		t.Fatal("expected an error for an undecodable payload")
	}
	if len(images.images) != 0 {
		t.Error("a rejected upload must not persist any of its payloads")
	}
	if svc.Sessions().Get("conv").Len() != 0 {
		t.Error("a rejected upload must not grow the session")
	}
}

func TestGenerateWithExplicitImageIDs(t *testing.T) {
	svc, _, vision := newTestService()
	ctx := context.Background()

	if _, err := svc.UploadImages(ctx, "conv", [][]byte{pngPayload(t), pngPayload(t)}); err != nil {
		t.Fatal(err)
	}
	encodesAfterUpload := vision.calls

	// Ask for the second image, the first, and one that does not exist.
	answers, err := svc.GenerateAnswers(ctx, "conv", "describe", []uint{2, 1, 99})
	if err != nil {
		t.Fatal(err)
	}
	if len(answers) != 2 {
		t.Fatalf("expected answers only for existing images, got %d", len(answers))
	}
	if vision.calls != encodesAfterUpload+2 {
		t.Errorf("expected stored payloads to be re-encoded, got %d extra calls", vision.calls-encodesAfterUpload)
	}
}

func TestDeleteImagesReportsRemovedIDs(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.UploadImages(ctx, "conv", [][]byte{pngPayload(t), pngPayload(t)}); err != nil {
		t.Fatal(err)
	}

	removed, err := svc.DeleteImages(ctx, []uint{1, 2, 42})
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected exactly the existing ids back, got %v", removed)
	}
}
