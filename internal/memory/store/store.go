// Package store implements the memory store (C1): persistence and
// cosine-similarity search over per-user memory records.
package store

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kart-io/memoryx/internal/memory/model"
	"github.com/kart-io/memoryx/pkg/infra/tracing"
)

const tracerName = "memory-store"

// SearchResult pairs a memory with its similarity to the query embedding.
type SearchResult struct {
	Memory     model.Memory
	Similarity float64
}

// SearchOptions bounds a single search call.
type SearchOptions struct {
	UserID        string
	TopK          int
	MinSimilarity float64
}

// Store is the memory store contract (spec §4.1).
type Store interface {
	Insert(ctx context.Context, userID, content string, embedding []float32, category string, importance, confidence float64, action model.Action) (*model.Memory, error)
	Update(ctx context.Context, id int64, content string, prevContent *string, embedding []float32, action model.Action) (*model.Memory, error)
	Search(ctx context.Context, embedding []float32, opts SearchOptions) ([]SearchResult, error)
	BulkSearch(ctx context.Context, embeddings [][]float32, opts SearchOptions) ([][]SearchResult, error)

	// LoadPendingMessages returns every unextracted message for userID,
	// joined to its story's handler name, ordered by created_at ascending.
	LoadPendingMessages(ctx context.Context, userID string) ([]PendingMessage, error)

	// ApplyDecisions commits a DecisionPlan's mutations and flips the
	// extracted bit on messageIDs in a single transaction.
	ApplyDecisions(ctx context.Context, adds []AddDecision, updates []UpdateDecision, messageIDs []int64) (addedIDs []int64, err error)
}

// PendingMessage is a Stage 1 row: a message joined to its story's handler.
type PendingMessage struct {
	model.Message
	Handler string
}

// AddDecision is a Stage 6 new-memory insertion.
type AddDecision struct {
	UserID     string
	Content    string
	Embedding  []float32
	Category   string
	Importance float64
	Confidence float64
}

// UpdateDecision is a Stage 6 in-place memory revision.
type UpdateDecision struct {
	MemoryID  int64
	Content   string
	Embedding []float32
}

// gormStore implements Store against PostgreSQL + pgvector.
type gormStore struct {
	db *gorm.DB
}

// New wraps a *gorm.DB (obtained from component/postgres.Client.DB()) as
// a Store.
func New(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Insert(ctx context.Context, userID, content string, embedding []float32, category string, importance, confidence float64, action model.Action) (*model.Memory, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "store.Insert")
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.String(tracing.DBOperation, "insert"), tracing.String(tracing.UserID, userID))

	m := &model.Memory{
		UserID:     userID,
		Content:    content,
		Embedding:  toVector(embedding),
		Category:   category,
		Importance: importance,
		Confidence: confidence,
		Action:     action,
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		err = fmt.Errorf("insert memory: %w", err)
		tracing.RecordError(ctx, err)
		return nil, err
	}
	tracing.SetSpanOK(ctx)
	return m, nil
}

func (s *gormStore) Update(ctx context.Context, id int64, content string, prevContent *string, embedding []float32, action model.Action) (*model.Memory, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "store.Update")
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.String(tracing.DBOperation, "update"), tracing.Int64("memory.id", id))

	updates := map[string]any{
		"content":           content,
		"previous_content":  prevContent,
		"embedding":         toVector(embedding),
		"action":            action,
	}
	if err := s.db.WithContext(ctx).Model(&model.Memory{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		err = fmt.Errorf("update memory %d: %w", id, err)
		tracing.RecordError(ctx, err)
		return nil, err
	}
	var m model.Memory
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		err = fmt.Errorf("reload memory %d: %w", id, err)
		tracing.RecordError(ctx, err)
		return nil, err
	}
	tracing.SetSpanOK(ctx)
	return &m, nil
}

// Search returns up to opts.TopK memories owned by opts.UserID whose
// cosine similarity to embedding strictly exceeds opts.MinSimilarity,
// ordered by similarity descending. Similarity is computed as
// 1 - cosine_distance using pgvector's <=> operator.
func (s *gormStore) Search(ctx context.Context, embedding []float32, opts SearchOptions) ([]SearchResult, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "store.Search")
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.String(tracing.DBOperation, "search"), tracing.String(tracing.UserID, opts.UserID), tracing.Int("top_k", opts.TopK))

	if opts.TopK <= 0 {
		tracing.SetSpanOK(ctx)
		return []SearchResult{}, nil
	}

	vec := toVector(embedding)
	var rows []struct {
		model.Memory
		Similarity float64
	}

	err := s.db.WithContext(ctx).
		Table("memory").
		Select("*, 1 - (embedding <=> ?) AS similarity", vec).
		Where("user_id = ?", opts.UserID).
		Where("1 - (embedding <=> ?) > ?", vec, opts.MinSimilarity).
		Order(clause.OrderBy{Expression: clause.Expr{SQL: "embedding <=> ?", Vars: []any{vec}}}).
		Limit(opts.TopK).
		Scan(&rows).Error
	if err != nil {
		err = fmt.Errorf("search memories: %w", err)
		tracing.RecordError(ctx, err)
		return nil, err
	}

	results := make([]SearchResult, len(rows))
	for i, r := range rows {
		results[i] = SearchResult{Memory: r.Memory, Similarity: r.Similarity}
	}
	tracing.SetSpanOK(ctx)
	return results, nil
}

// BulkSearch fans queries out concurrently via errgroup, preserving the
// input order in the returned outer slice (spec §4.1: "ordering of the
// outer list MUST match input order").
func (s *gormStore) BulkSearch(ctx context.Context, embeddings [][]float32, opts SearchOptions) ([][]SearchResult, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "store.BulkSearch")
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.String(tracing.UserID, opts.UserID), tracing.Int("fact_count", len(embeddings)))

	results := make([][]SearchResult, len(embeddings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i, emb := range embeddings {
		i, emb := i, emb
		g.Go(func() error {
			r, err := s.Search(gctx, emb, opts)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		err = fmt.Errorf("bulk search: %w", err)
		tracing.RecordError(ctx, err)
		return nil, err
	}
	tracing.SetSpanOK(ctx)
	return results, nil
}

func (s *gormStore) LoadPendingMessages(ctx context.Context, userID string) ([]PendingMessage, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "store.LoadPendingMessages")
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.String(tracing.DBOperation, "select"), tracing.String(tracing.UserID, userID))

	var rows []struct {
		model.Message
		Handler string
	}

	err := s.db.WithContext(ctx).
		Table("message").
		Select("message.*, story.handler AS handler").
		Joins("JOIN story ON story.id = message.story_id").
		Where("story.user_id = ? AND message.extracted = ?", userID, false).
		Order("message.created_at ASC").
		Scan(&rows).Error
	if err != nil {
		err = fmt.Errorf("load pending messages: %w", err)
		tracing.RecordError(ctx, err)
		return nil, err
	}

	pending := make([]PendingMessage, len(rows))
	for i, r := range rows {
		pending[i] = PendingMessage{Message: r.Message, Handler: r.Handler}
	}
	tracing.SetSpanOK(ctx)
	return pending, nil
}

func (s *gormStore) ApplyDecisions(ctx context.Context, adds []AddDecision, updates []UpdateDecision, messageIDs []int64) ([]int64, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "store.ApplyDecisions")
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.Int("adds", len(adds)), tracing.Int("updates", len(updates)), tracing.Int("message_count", len(messageIDs)))

	var addedIDs []int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, a := range adds {
			m := &model.Memory{
				UserID:     a.UserID,
				Content:    a.Content,
				Embedding:  toVector(a.Embedding),
				Category:   a.Category,
				Importance: a.Importance,
				Confidence: a.Confidence,
				Action:     model.ActionAdd,
			}
			if err := tx.Create(m).Error; err != nil {
				return fmt.Errorf("apply add decision: %w", err)
			}
			addedIDs = append(addedIDs, m.ID)
		}

		for _, u := range updates {
			var existing model.Memory
			if err := tx.First(&existing, u.MemoryID).Error; err != nil {
				return fmt.Errorf("load update target %d: %w", u.MemoryID, err)
			}
			prev := existing.Content
			if err := tx.Model(&model.Memory{}).Where("id = ?", u.MemoryID).Updates(map[string]any{
				"content":          u.Content,
				"previous_content": prev,
				"embedding":        toVector(u.Embedding),
				"action":           model.ActionUpdate,
			}).Error; err != nil {
				return fmt.Errorf("apply update decision %d: %w", u.MemoryID, err)
			}
		}

		if len(messageIDs) > 0 {
			if err := tx.Model(&model.Message{}).Where("id IN ?", messageIDs).Update("extracted", true).Error; err != nil {
				return fmt.Errorf("mark messages extracted: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	tracing.SetSpanOK(ctx)
	return addedIDs, nil
}
