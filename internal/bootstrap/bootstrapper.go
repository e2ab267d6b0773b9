package bootstrap

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"
	pgopts "github.com/kart-io/memoryx/pkg/component/postgres"
	redisopts "github.com/kart-io/memoryx/pkg/component/redis"
	logopts "github.com/kart-io/memoryx/pkg/infra/logger"
	"github.com/kart-io/memoryx/pkg/infra/pool"
	tracingopts "github.com/kart-io/memoryx/pkg/infra/tracing"
)

// BootstrapOptions carries everything AppBootstrapper needs to wire the
// process together. There is no HTTP surface to stand up: the memory
// engine is driven by its handler registry and the extraction scheduler.
type BootstrapOptions struct {
	AppName    string
	AppVersion string
	ServerMode string

	LogOpts      *logopts.Options
	TracingOpts  *tracingopts.Options
	PostgresOpts *pgopts.Options
	RedisOpts    *redisopts.Options
	PoolConfig   *pool.GlobalConfig
	MemoryEngine *MemoryEngineOptions
}

// AppBootstrapper composes multiple initializers to bootstrap the entire
// process. It follows the single-responsibility principle by delegating
// specific initialization tasks to dedicated initializer components.
type AppBootstrapper struct {
	initializers []Initializer
	shutdowners  []Shutdowner

	loggingInit      *LoggingInitializer
	tracingInit      *TracingInitializer
	poolInit         *PoolInitializer
	datasourceInit   *DatasourceInitializer
	memoryEngineInit *MemoryEngineInitializer
}

// NewAppBootstrapper creates a new AppBootstrapper with all initializers configured.
func NewAppBootstrapper(opts *BootstrapOptions) *AppBootstrapper {
	b := &AppBootstrapper{}

	b.loggingInit = NewLoggingInitializer(opts.LogOpts, opts.AppName, opts.AppVersion, opts.ServerMode)
	b.poolInit = NewPoolInitializer(opts.PoolConfig)
	b.datasourceInit = NewDatasourceInitializer(opts.PostgresOpts, opts.RedisOpts)

	b.initializers = []Initializer{b.loggingInit, b.poolInit, b.datasourceInit}
	b.shutdowners = []Shutdowner{b.loggingInit, b.poolInit, b.datasourceInit}

	if opts.TracingOpts != nil {
		b.tracingInit = NewTracingInitializer(opts.TracingOpts)
		b.initializers = append(b.initializers, b.tracingInit)
		b.shutdowners = append(b.shutdowners, b.tracingInit)
	}

	if opts.MemoryEngine != nil {
		b.memoryEngineInit = NewMemoryEngineInitializer(opts.MemoryEngine, b.datasourceInit)
		b.initializers = append(b.initializers, b.memoryEngineInit)
		b.shutdowners = append(b.shutdowners, b.memoryEngineInit)
	}

	return b
}

// Initialize resolves the dependency graph and runs each initializer in order.
func (b *AppBootstrapper) Initialize(ctx context.Context) error {
	ordered, err := ResolveDependencies(b.initializers)
	if err != nil {
		return fmt.Errorf("failed to resolve initializer dependencies: %w", err)
	}

	for _, init := range ordered {
		if err := b.runInitializer(ctx, init); err != nil {
			return err
		}
	}

	return nil
}

// runInitializer runs a single initializer with logging.
func (b *AppBootstrapper) runInitializer(ctx context.Context, init Initializer) error {
	logger.Infow("initializing subsystem", "name", init.Name())
	if err := init.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize %s: %w", init.Name(), err)
	}
	return nil
}

// Shutdown gracefully shuts down all components in reverse order of
// initialization, collecting the first error encountered without
// short-circuiting the remaining shutdowners.
func (b *AppBootstrapper) Shutdown(ctx context.Context) error {
	var firstErr error

	for i := len(b.shutdowners) - 1; i >= 0; i-- {
		if err := b.shutdowners[i].Shutdown(ctx); err != nil {
			logger.Errorw("error during shutdown", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// Datasources returns the datasource initializer so the store, scheduler,
// and recall components can look up Postgres/Redis clients by name.
func (b *AppBootstrapper) Datasources() *DatasourceInitializer {
	return b.datasourceInit
}

// MemoryEngine returns the memory engine initializer, or nil if
// BootstrapOptions.MemoryEngine was not set. A host process embedding this
// module calls Scheduler()/Recall() on the result after Initialize.
func (b *AppBootstrapper) MemoryEngine() *MemoryEngineInitializer {
	return b.memoryEngineInit
}

// Tracing returns the tracing initializer, or nil if BootstrapOptions.TracingOpts
// was not set.
func (b *AppBootstrapper) Tracing() *TracingInitializer {
	return b.tracingInit
}
