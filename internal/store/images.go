package store

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// ImageStore specializes the generic repository for the Image entity. The
// embedding is persisted at upload time together with the encoded bytes, so
// every stored row can participate in nearest-neighbor search.
type ImageStore struct {
	*Repository[Image]
}

func NewImageStore(db *gorm.DB, dim int) *ImageStore {
	return &ImageStore{Repository: NewRepository[Image](db, dim)}
}

// CreateImage encodes the raw payload to base64 and persists it with its
// description and search embedding, returning the stored record.
func (s *ImageStore) CreateImage(ctx context.Context, raw []byte, description string, embedding []float32) (*Image, error) {
	if len(embedding) != s.dim {
		return nil, fmt.Errorf("%w: embedding has %d dimensions, column has %d",
			ErrDimensionMismatch, len(embedding), s.dim)
	}
	img := &Image{
		Description:  description,
		EncodedBytes: base64.StdEncoding.EncodeToString(raw),
		Embedding:    pgvector.NewVector(embedding),
	}
	if err := s.Create(ctx, img); err != nil {
		return nil, err
	}
	return img, nil
}

// RawBytes decodes an image record back to the originally uploaded binary.
func (s *ImageStore) RawBytes(img *Image) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(img.EncodedBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored image %d: %w", img.ID, err)
	}
	return raw, nil
}
