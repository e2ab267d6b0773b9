// Package recall formats a user's relevant memories into a single string a
// handler can splice into its prompt. It is the only path from a handler to
// the memory store: handlers never search memories directly.
package recall

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/memoryx/internal/memory/store"
	"github.com/kart-io/memoryx/pkg/infra/tracing"
	"github.com/kart-io/memoryx/pkg/llm"
)

const (
	noMemoriesFound = "(No relevant memories found)"
	unableToLoad    = "(Unable to load memories)"

	defaultTopK          = 5
	defaultMinSimilarity = 0.5

	tracerName = "memory-recall"
)

// Options tunes one Recall call. Zero values fall back to package defaults.
type Options struct {
	TopK          int
	MinSimilarity float64
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = defaultTopK
	}
	if o.MinSimilarity <= 0 {
		o.MinSimilarity = defaultMinSimilarity
	}
	return o
}

// Recall embeds a cue, searches a user's memories, and formats them for
// prompt injection. It absorbs every failure into a sentinel string and
// never returns an error to its caller.
type Recall struct {
	store    store.Store
	embedder llm.EmbeddingProvider
}

// New builds a Recall over the given store and embedding provider.
func New(s store.Store, embedder llm.EmbeddingProvider) *Recall {
	return &Recall{store: s, embedder: embedder}
}

// Format returns the formatted memory section for userID given cueText, or
// a stable sentinel string on any failure.
func (r *Recall) Format(ctx context.Context, userID, cueText string, opts Options) string {
	ctx, span := tracing.StartSpan(ctx, tracerName, "recall.Format")
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.String(tracing.UserID, userID))

	opts = opts.withDefaults()

	embedding, err := r.embedder.EmbedSingle(ctx, cueText)
	if err != nil {
		logger.Errorw("recall: embed cue failed", "user_id", userID, "error", err)
		tracing.RecordError(ctx, err)
		return unableToLoad
	}

	results, err := r.store.Search(ctx, embedding, store.SearchOptions{
		UserID:        userID,
		TopK:          opts.TopK,
		MinSimilarity: opts.MinSimilarity,
	})
	if err != nil {
		logger.Errorw("recall: search failed", "user_id", userID, "error", err)
		tracing.RecordError(ctx, err)
		return unableToLoad
	}

	if len(results) == 0 {
		tracing.SetSpanOK(ctx)
		return noMemoriesFound
	}

	lines := make([]string, 0, len(results))
	for _, res := range results {
		lines = append(lines, formatLine(res))
	}

	tracing.SetSpanOK(ctx)
	return strings.Join(lines, "\n")
}

func formatLine(res store.SearchResult) string {
	meta := make([]string, 0, 3)
	if res.Memory.Category != "" {
		meta = append(meta, res.Memory.Category)
	}
	meta = append(meta, fmt.Sprintf("importance=%.2f", res.Memory.Importance))
	meta = append(meta, fmt.Sprintf("confidence=%.2f", res.Memory.Confidence))

	return fmt.Sprintf("- %s [%s]", res.Memory.Content, strings.Join(meta, ", "))
}
