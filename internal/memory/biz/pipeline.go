package biz

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/memoryx/internal/memory/handler"
	"github.com/kart-io/memoryx/internal/memory/model"
	"github.com/kart-io/memoryx/internal/memory/store"
	"github.com/kart-io/memoryx/pkg/errors"
	"github.com/kart-io/memoryx/pkg/llm"
	"github.com/kart-io/memoryx/pkg/infra/tracing"
)

const tracerName = "extraction-pipeline"

// Stats is extract's return value: the entry point's full accounting of a
// single run, independent of how many decisions were silently dropped.
type Stats struct {
	FactsExtracted    int
	MemoriesAdded     int
	MemoriesUpdated   int
	MessagesExtracted int
}

// Fact is one normalized declarative statement returned by Stage 2.
type Fact struct {
	Text       string  `json:"text"`
	Category   string  `json:"category"`
	Importance float64 `json:"importance"`
	Confidence float64 `json:"confidence"`
}

type factRetrievalResponse struct {
	Facts []Fact `json:"facts"`
}

// decision is one entry of the MemoryUpdate schema response.
type decision struct {
	ID    string `json:"id"`
	Event string `json:"event"`
	Text  string `json:"text"`
}

type memoryUpdateResponse struct {
	Memory []decision `json:"memory"`
}

const (
	resolutionTopK    = 3
	resolutionMinSim  = 0.7
	eventAdd          = "ADD"
	eventUpdate       = "UPDATE"
)

var factRetrievalSchema = &llm.ResponseSchema{
	Name: "FactRetrieval",
	Schema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"facts": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"text": {"type": "string"},
						"category": {"type": "string"},
						"importance": {"type": "number"},
						"confidence": {"type": "number"}
					},
					"required": ["text"]
				}
			}
		},
		"required": ["facts"]
	}`),
	Strict: true,
}

var memoryUpdateSchema = &llm.ResponseSchema{
	Name: "MemoryUpdate",
	Schema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"memory": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"id": {"type": "string"},
						"event": {"type": "string", "enum": ["ADD", "UPDATE"]},
						"text": {"type": "string"}
					},
					"required": ["id", "event", "text"]
				}
			}
		},
		"required": ["memory"]
	}`),
	Strict: true,
}

// Pipeline implements the extraction pipeline (C3): load pending messages,
// retrieve facts, resolve them against existing memories, decide ADD vs
// UPDATE, and apply the result transactionally.
type Pipeline struct {
	store    store.Store
	complete llm.CompleteProvider
	embedder llm.EmbeddingProvider
	metrics  *ExtractionMetrics
}

// New builds a Pipeline from its three collaborators.
func New(s store.Store, complete llm.CompleteProvider, embedder llm.EmbeddingProvider) *Pipeline {
	return &Pipeline{
		store:    s,
		complete: complete,
		embedder: embedder,
		metrics:  GetExtractionMetrics(),
	}
}

// unifiedEntry is one row in Stage 4's resolution context: either an
// existing memory or a newly extracted fact, addressed by a shared id
// namespace so the LLM can reference either kind uniformly.
type unifiedEntry struct {
	id       string
	memory   *model.Memory
	fact     *Fact
	factIdx  int
	factEmb  []float32
}

// Extract runs Stages 1-6 for a single user and returns the full
// accounting of the run. A failure in Stages 1-5 aborts with no side
// effects; a failure inside Stage 6's transaction rolls the whole batch
// back, so retrying re-loads and re-processes the same messages.
func (p *Pipeline) Extract(ctx context.Context, userID string) (stats Stats, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "pipeline.Extract")
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.String(tracing.UserID, userID))

	start := time.Now()
	defer func() {
		p.metrics.recordStageDuration(time.Since(start))
		p.metrics.recordRun(stats, err)
		if err != nil {
			tracing.RecordError(ctx, err)
		} else {
			tracing.SetSpanOK(ctx)
		}
	}()

	pending, err := p.store.LoadPendingMessages(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("stage 1 load pending: %w", errors.ErrTransport)
	}
	if len(pending) == 0 {
		return Stats{}, nil
	}

	conversation, err := p.renderConversation(pending)
	if err != nil {
		return Stats{}, err
	}

	messageIDs := make([]int64, len(pending))
	for i, m := range pending {
		messageIDs[i] = m.ID
	}

	if conversation == "" {
		// Every message failed handler validation; nothing to extract,
		// but the batch is still fully consumed per spec semantics.
		if _, applyErr := p.store.ApplyDecisions(ctx, nil, nil, messageIDs); applyErr != nil {
			return Stats{}, fmt.Errorf("stage 6 apply (empty conversation): %w", applyErr)
		}
		return Stats{MessagesExtracted: len(pending)}, nil
	}

	facts, err := p.retrieveFacts(ctx, conversation)
	if err != nil {
		return Stats{}, err
	}
	facts = dropEmptyFacts(facts)
	if len(facts) == 0 {
		if _, applyErr := p.store.ApplyDecisions(ctx, nil, nil, messageIDs); applyErr != nil {
			return Stats{}, fmt.Errorf("stage 6 apply (no facts): %w", applyErr)
		}
		return Stats{MessagesExtracted: len(pending)}, nil
	}

	factEmbeddings, err := p.embedder.Embed(ctx, factTexts(facts))
	if err != nil {
		return Stats{}, fmt.Errorf("stage 3 embed facts: %w", errors.ErrTransport)
	}

	entries, err := p.buildResolutionContext(ctx, userID, facts, factEmbeddings)
	if err != nil {
		return Stats{}, err
	}

	adds, updates, err := p.decide(ctx, userID, entries)
	if err != nil {
		return Stats{}, err
	}

	addedIDs, err := p.store.ApplyDecisions(ctx, adds, updates, messageIDs)
	if err != nil {
		return Stats{}, fmt.Errorf("stage 6 apply: %w", err)
	}

	return Stats{
		FactsExtracted:    len(facts),
		MemoriesAdded:     len(addedIDs),
		MemoriesUpdated:   len(updates),
		MessagesExtracted: len(pending),
	}, nil
}

// renderConversation is Stage 2's rendering half: each message is rendered
// through its story's handler; messages whose content fails validation are
// silently dropped from the text (they are still marked extracted later).
func (p *Pipeline) renderConversation(pending []store.PendingMessage) (string, error) {
	var lines []string

	for _, msg := range pending {
		h, ok := handler.Lookup(msg.Handler)
		if !ok {
			return "", fmt.Errorf("stage 2 unknown handler %q: %w", msg.Handler, errors.ErrUnknownHandler)
		}

		line, ok := h.MessageToString(msg.Message)
		if !ok {
			logger.Debugw("dropping message from rendering, schema mismatch", "message_id", msg.ID, "handler", msg.Handler)
			continue
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n\n"), nil
}

// retrieveFacts is Stage 2's completion half: prompt the LLM with the
// rendered conversation and today's date for the FactRetrieval schema.
func (p *Pipeline) retrieveFacts(ctx context.Context, conversation string) ([]Fact, error) {
	prompt := fmt.Sprintf(factRetrievalPrompt, time.Now().Format("2006-01-02"), conversation)

	raw, err := p.complete.Complete(ctx, prompt, factRetrievalSchema)
	if err != nil {
		return nil, fmt.Errorf("stage 2 fact retrieval: %w", errors.ErrInvalidResponse)
	}

	var resp factRetrievalResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("stage 2 parse facts: %w", errors.ErrInvalidResponse)
	}

	return resp.Facts, nil
}

// buildResolutionContext is Stage 4: bulk_search the fact embeddings,
// flatten and dedup the candidate memories by id preserving first-seen
// order, then assign the unified id namespace (memories first, facts
// starting at len(unique_memories)+1).
func (p *Pipeline) buildResolutionContext(ctx context.Context, userID string, facts []Fact, factEmbeddings [][]float32) ([]unifiedEntry, error) {
	results, err := p.store.BulkSearch(ctx, factEmbeddings, store.SearchOptions{
		UserID:        userID,
		TopK:          resolutionTopK,
		MinSimilarity: resolutionMinSim,
	})
	if err != nil {
		return nil, fmt.Errorf("stage 4 bulk search: %w", errors.ErrTransport)
	}

	var entries []unifiedEntry
	seen := make(map[int64]bool)

	for _, perFact := range results {
		for _, r := range perFact {
			if seen[r.Memory.ID] {
				continue
			}
			seen[r.Memory.ID] = true
			m := r.Memory
			entries = append(entries, unifiedEntry{memory: &m})
		}
	}

	for i := range facts {
		entries = append(entries, unifiedEntry{
			fact:    &facts[i],
			factIdx: i,
			factEmb: factEmbeddings[i],
		})
	}

	for i := range entries {
		entries[i].id = strconv.Itoa(i + 1)
	}

	return entries, nil
}

// decide is Stage 5: prompt the LLM to classify each fact as ADD or
// UPDATE against the unified id namespace, then build the DecisionPlan.
// Decisions referencing an unknown id, or carrying empty text, are
// dropped silently rather than failing the run.
func (p *Pipeline) decide(ctx context.Context, userID string, entries []unifiedEntry) ([]store.AddDecision, []store.UpdateDecision, error) {
	byID := make(map[string]*unifiedEntry, len(entries))
	for i := range entries {
		byID[entries[i].id] = &entries[i]
	}

	prompt := buildDecisionPrompt(entries)
	raw, err := p.complete.Complete(ctx, prompt, memoryUpdateSchema)
	if err != nil {
		return nil, nil, fmt.Errorf("stage 5 decide: %w", errors.ErrInvalidResponse)
	}

	var resp memoryUpdateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, nil, fmt.Errorf("stage 5 parse decisions: %w", errors.ErrInvalidResponse)
	}

	var adds []store.AddDecision
	var updates []store.UpdateDecision
	var toEmbed []string
	dropped := 0

	for _, d := range resp.Memory {
		entry, ok := byID[d.ID]
		if !ok || d.Text == "" {
			dropped++
			continue
		}

		switch d.Event {
		case eventAdd:
			if entry.fact == nil {
				dropped++
				continue
			}
			emb := entry.factEmb
			if d.Text != entry.fact.Text {
				toEmbed = append(toEmbed, d.Text)
				emb = nil // filled in after the batch embed below
			}
			adds = append(adds, store.AddDecision{
				UserID:     userID,
				Content:    d.Text,
				Embedding:  emb,
				Category:   entry.fact.Category,
				Importance: entry.fact.Importance,
				Confidence: entry.fact.Confidence,
			})
		case eventUpdate:
			if entry.memory == nil {
				dropped++
				continue
			}
			updates = append(updates, store.UpdateDecision{
				MemoryID: entry.memory.ID,
				Content:  d.Text,
			})
		default:
			dropped++
		}
	}

	p.metrics.recordDecisionsDropped(dropped)

	if len(toEmbed) > 0 {
		embeddings, err := p.embedder.Embed(ctx, toEmbed)
		if err != nil {
			return nil, nil, fmt.Errorf("stage 5 embed rewritten texts: %w", errors.ErrTransport)
		}
		byText := make(map[string][]float32, len(toEmbed))
		for i, t := range toEmbed {
			byText[t] = embeddings[i]
		}
		for i := range adds {
			if adds[i].Embedding == nil {
				adds[i].Embedding = byText[adds[i].Content]
			}
		}
	}

	// UPDATE decisions always need a fresh embedding of the (possibly
	// rewritten) text; batch them the same way.
	if len(updates) > 0 {
		texts := make([]string, len(updates))
		for i, u := range updates {
			texts[i] = u.Content
		}
		embeddings, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, nil, fmt.Errorf("stage 5 embed updates: %w", errors.ErrTransport)
		}
		for i := range updates {
			updates[i].Embedding = embeddings[i]
		}
	}

	return adds, updates, nil
}

// dropEmptyFacts trims each fact's text and drops any that are empty after
// trimming, so a completion like {"facts":[{"text":"   "}]} never reaches
// embedding or resolution.
func dropEmptyFacts(facts []Fact) []Fact {
	kept := facts[:0]
	for _, f := range facts {
		f.Text = strings.TrimSpace(f.Text)
		if f.Text == "" {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

func factTexts(facts []Fact) []string {
	texts := make([]string, len(facts))
	for i, f := range facts {
		texts[i] = f.Text
	}
	return texts
}

const factRetrievalPrompt = `Today's date is %s.

Extract durable, declarative facts about the user from the conversation below.
Suppress anything redundant, trivial, or not worth remembering long-term.

Conversation:
%s`

func buildDecisionPrompt(entries []unifiedEntry) string {
	var b strings.Builder
	b.WriteString("Existing memories and newly extracted facts share a single id namespace below.\n")
	b.WriteString("For each fact id, decide ADD (brand new memory) or UPDATE (refines an existing memory id).\n\n")

	for _, e := range entries {
		switch {
		case e.memory != nil:
			fmt.Fprintf(&b, "[%s] (existing memory) %s\n", e.id, e.memory.Content)
		case e.fact != nil:
			fmt.Fprintf(&b, "[%s] (new fact) %s\n", e.id, e.fact.Text)
		}
	}

	return b.String()
}
