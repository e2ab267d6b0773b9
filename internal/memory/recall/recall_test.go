package recall

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/memoryx/internal/memory/model"
	"github.com/kart-io/memoryx/internal/memory/store"
)

type fakeStore struct {
	store.Store
	results []store.SearchResult
	err     error
}

func (f *fakeStore) Search(_ context.Context, _ []float32, _ store.SearchOptions) ([]store.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	return vecs, f.err
}

func (f *fakeEmbedder) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, 1536), nil
}

func (f *fakeEmbedder) Name() string { return "fake" }

func TestRecall_Format_NoMemories(t *testing.T) {
	r := New(&fakeStore{results: nil}, &fakeEmbedder{})

	got := r.Format(context.Background(), "user-1", "what do I like?", Options{})
	assert.Equal(t, noMemoriesFound, got)
}

func TestRecall_Format_FormatsResults(t *testing.T) {
	results := []store.SearchResult{
		{
			Memory: model.Memory{
				Content:    "likes espresso",
				Category:   "preference",
				Importance: 0.6,
				Confidence: 0.9,
			},
			Similarity: 0.81,
		},
	}
	r := New(&fakeStore{results: results}, &fakeEmbedder{})

	got := r.Format(context.Background(), "user-1", "what do I like?", Options{})
	require.Equal(t, "- likes espresso [preference, importance=0.60, confidence=0.90]", got)
}

func TestRecall_Format_EmbedFailureReturnsSentinel(t *testing.T) {
	r := New(&fakeStore{}, &fakeEmbedder{err: errors.New("provider down")})

	got := r.Format(context.Background(), "user-1", "cue", Options{})
	assert.Equal(t, unableToLoad, got)
}

func TestRecall_Format_SearchFailureReturnsSentinel(t *testing.T) {
	r := New(&fakeStore{err: errors.New("db down")}, &fakeEmbedder{})

	got := r.Format(context.Background(), "user-1", "cue", Options{})
	assert.Equal(t, unableToLoad, got)
}

func TestRecall_Format_DefaultsApplied(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, defaultTopK, o.TopK)
	assert.Equal(t, defaultMinSimilarity, o.MinSimilarity)
}
