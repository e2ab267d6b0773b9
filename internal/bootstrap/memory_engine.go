package bootstrap

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	postgrescomp "github.com/kart-io/memoryx/pkg/component/postgres"
	rediscomp "github.com/kart-io/memoryx/pkg/component/redis"

	"github.com/kart-io/memoryx/internal/memory/biz"
	"github.com/kart-io/memoryx/internal/memory/recall"
	"github.com/kart-io/memoryx/internal/memory/scheduler"
	"github.com/kart-io/memoryx/internal/memory/store"
	"github.com/kart-io/memoryx/pkg/infra/pool"
	"github.com/kart-io/memoryx/pkg/llm"
	"github.com/kart-io/memoryx/pkg/llm/resilience"

	// Registers every built-in LLM provider factory with pkg/llm's registry.
	_ "github.com/kart-io/memoryx/pkg/llm/deepseek"
	_ "github.com/kart-io/memoryx/pkg/llm/gemini"
	_ "github.com/kart-io/memoryx/pkg/llm/huggingface"
	_ "github.com/kart-io/memoryx/pkg/llm/ollama"
	_ "github.com/kart-io/memoryx/pkg/llm/openai"
	_ "github.com/kart-io/memoryx/pkg/llm/siliconflow"

	cacheopts "github.com/kart-io/memoryx/pkg/options/cache"
	llmopts "github.com/kart-io/memoryx/pkg/options/llm"
	schedopts "github.com/kart-io/memoryx/pkg/options/scheduler"
)

// MemoryEngineOptions carries the LLM and scheduler configuration the
// extraction pipeline needs once Postgres and Redis are already up.
type MemoryEngineOptions struct {
	EmbeddingOpts  *llmopts.ProviderOptions
	ChatOpts       *llmopts.ProviderOptions
	SchedulerOpts  *schedopts.Options
	EmbeddingCache *cacheopts.Options
}

// MemoryEngineInitializer wires the memory store, LLM providers, extraction
// pipeline, scheduler, and recall formatter together, then starts the
// scheduler's background dispatch loop. It depends on the datasource and
// pool initializers for its Postgres/Redis clients and worker pool.
type MemoryEngineInitializer struct {
	BaseInitializer
	opts       *MemoryEngineOptions
	datasource *DatasourceInitializer

	pipeline  *biz.Pipeline
	scheduler *scheduler.Scheduler
	recall    *recall.Recall
}

// NewMemoryEngineInitializer creates a new MemoryEngineInitializer.
func NewMemoryEngineInitializer(opts *MemoryEngineOptions, datasource *DatasourceInitializer) *MemoryEngineInitializer {
	return &MemoryEngineInitializer{
		BaseInitializer: NewBaseInitializer("memory-engine", "logging", "pool", "datasources"),
		opts:            opts,
		datasource:      datasource,
	}
}

// Initialize builds the store, LLM providers, pipeline, scheduler, and
// recall formatter, migrates the schema, and starts the scheduler loop.
func (mi *MemoryEngineInitializer) Initialize(ctx context.Context) error {
	pgClient, err := mi.postgresClient()
	if err != nil {
		return err
	}
	redisClient, err := mi.redisClient()
	if err != nil {
		return err
	}

	if err := store.Migrate(ctx, pgClient.DB()); err != nil {
		return fmt.Errorf("failed to migrate memory schema: %w", err)
	}
	memStore := store.New(pgClient.DB())
	logger.Info("memory store ready")

	embedder, err := mi.buildEmbedder(redisClient)
	if err != nil {
		return fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("embedding provider ready", "provider", mi.opts.EmbeddingOpts.Provider, "model", mi.opts.EmbeddingOpts.Model)

	complete, err := mi.buildCompleteProvider()
	if err != nil {
		return fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("chat provider ready", "provider", mi.opts.ChatOpts.Provider, "model", mi.opts.ChatOpts.Model)

	mi.pipeline = biz.New(memStore, complete, embedder)

	workerPool, err := pool.GetGlobal().GetByType(pool.ExtractionPool)
	if err != nil {
		return fmt.Errorf("extraction pool not registered: %w", err)
	}

	mi.scheduler = scheduler.New(redisClient, workerPool, mi.pipeline, mi.opts.SchedulerOpts.ToConfig())
	mi.scheduler.Start(ctx)
	logger.Infow("extraction scheduler started",
		"debounce_delay", mi.opts.SchedulerOpts.DebounceDelay,
		"max_wait", mi.opts.SchedulerOpts.MaxWait,
	)

	mi.recall = recall.New(memStore, embedder)

	return nil
}

// Shutdown stops the scheduler's dispatch loop, letting in-flight jobs
// finish before the datasource initializer closes the clients it used.
func (mi *MemoryEngineInitializer) Shutdown(_ context.Context) error {
	if mi.scheduler != nil {
		mi.scheduler.Stop()
	}
	return nil
}

// Pipeline returns the extraction pipeline, for handlers driving an
// out-of-band extraction or for tests.
func (mi *MemoryEngineInitializer) Pipeline() *biz.Pipeline {
	return mi.pipeline
}

// Scheduler returns the extraction scheduler, so a handler can call
// Schedule(ctx, userID) after persisting a turn's messages.
func (mi *MemoryEngineInitializer) Scheduler() *scheduler.Scheduler {
	return mi.scheduler
}

// Recall returns the recall formatter, so a handler can splice a user's
// memories into its next prompt.
func (mi *MemoryEngineInitializer) Recall() *recall.Recall {
	return mi.recall
}

func (mi *MemoryEngineInitializer) postgresClient() (*postgrescomp.Client, error) {
	raw, err := mi.datasource.Manager().Get("postgres")
	if err != nil {
		return nil, fmt.Errorf("postgres datasource not available: %w", err)
	}
	client, ok := raw.(*postgrescomp.Client)
	if !ok {
		return nil, fmt.Errorf("postgres datasource has unexpected type %T", raw)
	}
	return client, nil
}

func (mi *MemoryEngineInitializer) redisClient() (*goredis.Client, error) {
	raw, err := mi.datasource.Manager().Get("redis")
	if err != nil {
		return nil, fmt.Errorf("redis datasource not available: %w", err)
	}
	client, ok := raw.(*rediscomp.Client)
	if !ok {
		return nil, fmt.Errorf("redis datasource has unexpected type %T", raw)
	}
	return client.Client(), nil
}

// buildEmbedder wraps the configured embedding provider with retry,
// circuit-breaking, and a Redis-backed cache, in that order: a cache hit
// never touches the circuit breaker or counts against its failure budget.
func (mi *MemoryEngineInitializer) buildEmbedder(redisClient *goredis.Client) (llm.EmbeddingProvider, error) {
	base, err := llm.NewEmbeddingProvider(mi.opts.EmbeddingOpts.Provider, mi.opts.EmbeddingOpts.ToConfigMap())
	if err != nil {
		return nil, err
	}

	resilient := resilience.NewResilientEmbeddingProvider(base, resilience.DefaultRetryConfig(), resilience.DefaultCircuitBreakerConfig())

	cacheCfg := &llm.EmbeddingCacheConfig{
		Enabled:   mi.opts.EmbeddingCache.Enabled,
		TTL:       mi.opts.EmbeddingCache.TTL,
		KeyPrefix: mi.opts.EmbeddingCache.KeyPrefix,
	}

	return llm.NewCachedEmbeddingProvider(resilient, redisClient, cacheCfg), nil
}

// buildCompleteProvider obtains a full provider (rather than NewChatProvider's
// narrower ChatProvider) because the extraction pipeline's fact-extraction
// and decision stages need structured Complete output, which ChatProvider
// does not expose.
func (mi *MemoryEngineInitializer) buildCompleteProvider() (llm.CompleteProvider, error) {
	base, err := llm.NewProvider(mi.opts.ChatOpts.Provider, mi.opts.ChatOpts.ToConfigMap())
	if err != nil {
		return nil, err
	}
	return resilience.NewResilientProvider(base, resilience.DefaultRetryConfig(), resilience.DefaultCircuitBreakerConfig()), nil
}
