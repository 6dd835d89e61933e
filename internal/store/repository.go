package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SearchLimit caps nearest-neighbor results. Ties are broken by underlying
// storage order, which is stable but implementation-defined.
const SearchLimit = 4

var (
	// ErrNotFound is returned by mutating operations addressed to an
	// identifier that does not exist. Read paths return (nil, nil) instead.
	ErrNotFound = errors.New("entity not found")

	// ErrDimensionMismatch is returned when a query vector's dimensionality
	// differs from the embedding column's.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Repository is a generic persistence adapter for entities carrying an
// embedding column. It relies on the storage engine's transaction semantics
// for serialization and implements no locking of its own.
type Repository[T any] struct {
	db  *gorm.DB
	dim int
}

func NewRepository[T any](db *gorm.DB, dim int) *Repository[T] {
	return &Repository[T]{db: db, dim: dim}
}

// Create persists a new entity and fills in its generated identifier.
func (r *Repository[T]) Create(ctx context.Context, entity *T) error {
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("failed to create entity: %w", err)
	}
	return nil
}

// GetByID returns the entity or (nil, nil) when absent.
func (r *Repository[T]) GetByID(ctx context.Context, id uint) (*T, error) {
	var entity T
	err := r.db.WithContext(ctx).First(&entity, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query entity: %w", err)
	}
	return &entity, nil
}

// GetByIDs returns the subset of entities whose identifier is in ids.
// Result order relative to ids is unspecified.
func (r *Repository[T]) GetByIDs(ctx context.Context, ids []uint) ([]T, error) {
	var entities []T
	if len(ids) == 0 {
		return entities, nil
	}
	if err := r.db.WithContext(ctx).Find(&entities, ids).Error; err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	return entities, nil
}

// List returns all entities in storage order.
func (r *Repository[T]) List(ctx context.Context) ([]T, error) {
	var entities []T
	if err := r.db.WithContext(ctx).Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	return entities, nil
}

// GetFirst returns the first entity by primary key order, or (nil, nil) when
// the table is empty.
func (r *Repository[T]) GetFirst(ctx context.Context) (*T, error) {
	var entity T
	err := r.db.WithContext(ctx).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query first entity: %w", err)
	}
	return &entity, nil
}

// Search returns up to SearchLimit entities ordered by ascending L2 distance
// between their embedding column and the query vector.
func (r *Repository[T]) Search(ctx context.Context, query []float32) ([]T, error) {
	if len(query) != r.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, column has %d",
			ErrDimensionMismatch, len(query), r.dim)
	}

	var entities []T
	err := r.db.WithContext(ctx).
		Clauses(clause.OrderBy{
			Expression: clause.Expr{SQL: "embedding <-> ?", Vars: []interface{}{pgvector.NewVector(query)}},
		}).
		Limit(SearchLimit).
		Find(&entities).Error
	if err != nil {
		return nil, fmt.Errorf("nearest-neighbor search failed: %w", err)
	}
	return entities, nil
}

// Update patches the named fields on the entity with the given identifier.
// It never creates a new entity; a missing identifier yields ErrNotFound.
func (r *Repository[T]) Update(ctx context.Context, id uint, fields map[string]interface{}) (*T, error) {
	res := r.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update entity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes a single entity and returns its last-known snapshot so the
// caller can report what was deleted. Absent identifier yields ErrNotFound.
func (r *Repository[T]) Delete(ctx context.Context, id uint) (*T, error) {
	var entity T
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&entity, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return tx.Delete(&entity).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to delete entity: %w", err)
	}
	return &entity, nil
}

// DeleteByIDs removes all entities whose identifier is in ids and returns the
// subset that actually existed. Asking for missing identifiers is not an
// error; they are simply absent from the result.
func (r *Repository[T]) DeleteByIDs(ctx context.Context, ids []uint) ([]T, error) {
	var removed []T
	if len(ids) == 0 {
		return removed, nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Find(&removed, ids).Error; err != nil {
			return err
		}
		if len(removed) == 0 {
			return nil
		}
		return tx.Delete(new(T), ids).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete entities: %w", err)
	}
	return removed, nil
}

// DeleteAll removes every entity of this type.
func (r *Repository[T]) DeleteAll(ctx context.Context) error {
	err := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(new(T)).Error
	if err != nil {
		return fmt.Errorf("failed to delete all entities: %w", err)
	}
	return nil
}
