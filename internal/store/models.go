package store

import "github.com/pgvector/pgvector-go"

// Image is a persisted upload. EncodedBytes holds the original binary payload
// base64-encoded so it round-trips exactly; Embedding is the pooled feature
// vector from the vision encoder and is only used for nearest-neighbor search.
type Image struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Description  string          `gorm:"type:text" json:"description"`
	EncodedBytes string          `gorm:"type:text" json:"encoded_bytes"`
	Embedding    pgvector.Vector `gorm:"type:vector(512)" json:"-"`
}

func (Image) TableName() string {
	return "images"
}
