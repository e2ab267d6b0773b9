package bootstrap

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"
	pgopts "github.com/kart-io/memoryx/pkg/component/postgres"
	redisopts "github.com/kart-io/memoryx/pkg/component/redis"
	"github.com/kart-io/memoryx/pkg/component/storage"
)

// DatasourceInitializer brings up the storage clients the memory engine
// depends on: Postgres (messages, stories, memory records with embeddings)
// and Redis (scheduler debounce state, rate limiting).
type DatasourceInitializer struct {
	BaseInitializer
	pgOpts    *pgopts.Options
	redisOpts *redisopts.Options
	manager   *storage.Manager
}

// NewDatasourceInitializer creates a new DatasourceInitializer.
func NewDatasourceInitializer(pgOpts *pgopts.Options, redisOpts *redisopts.Options) *DatasourceInitializer {
	return &DatasourceInitializer{
		BaseInitializer: NewBaseInitializer("datasources", "logging"),
		pgOpts:          pgOpts,
		redisOpts:       redisOpts,
	}
}

// Initialize connects to Postgres and Redis and registers both clients
// with the storage manager for centralized health checking and shutdown.
func (di *DatasourceInitializer) Initialize(ctx context.Context) error {
	di.manager = storage.NewManager()

	if di.pgOpts != nil && di.pgOpts.Host != "" {
		factory := pgopts.NewSimpleFactory(di.pgOpts)
		client, err := factory.Create(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := di.manager.Register("postgres", client); err != nil {
			return fmt.Errorf("failed to register postgres client: %w", err)
		}
		logger.Infow("postgres datasource ready", "host", di.pgOpts.Host, "database", di.pgOpts.Database)
	}

	if di.redisOpts != nil && di.redisOpts.Host != "" {
		factory := redisopts.NewFactory(di.redisOpts)
		client, err := factory.Create(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		if err := di.manager.Register("redis", client); err != nil {
			return fmt.Errorf("failed to register redis client: %w", err)
		}
		logger.Infow("redis datasource ready", "host", di.redisOpts.Host, "port", di.redisOpts.Port)
	}

	statuses := di.manager.HealthCheckAll(ctx)
	for name, status := range statuses {
		if !status.Healthy {
			return fmt.Errorf("datasource %q failed health check: %w", name, status.Error)
		}
	}

	return nil
}

// Shutdown closes all registered datasource clients.
func (di *DatasourceInitializer) Shutdown(ctx context.Context) error {
	if di.manager == nil {
		return nil
	}
	return di.manager.CloseAll()
}

// Manager returns the underlying storage manager so other initializers
// (the extraction scheduler, the store layer) can look up clients by name.
func (di *DatasourceInitializer) Manager() *storage.Manager {
	return di.manager
}
