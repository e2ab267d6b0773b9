package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/kart-io/memoryx/internal/memory/model"
)

// Migrate brings the schema up to date: GORM's AutoMigrate handles the
// plain columns and btree/composite indices declared via struct tags, then
// raw SQL creates the pgvector extension and the HNSW index GORM has no
// native DDL for.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&model.Story{}, &model.Message{}, &model.Memory{}); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	if err := db.WithContext(ctx).Exec(`CREATE EXTENSION IF NOT EXISTS vector`).Error; err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	const hnsw = `
		CREATE INDEX IF NOT EXISTS idx_memory_embedding_hnsw
		ON memory USING hnsw (embedding vector_cosine_ops)
	`
	if err := db.WithContext(ctx).Exec(hnsw).Error; err != nil {
		return fmt.Errorf("create hnsw index: %w", err)
	}

	return nil
}
