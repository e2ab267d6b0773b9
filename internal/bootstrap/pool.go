package bootstrap

import (
	"context"

	"github.com/kart-io/logger"
	"github.com/kart-io/memoryx/pkg/infra/pool"
)

// PoolInitializer brings up the global goroutine pool manager. The
// extraction scheduler and storage health checks submit work through it
// instead of spawning bare goroutines.
type PoolInitializer struct {
	BaseInitializer
	config *pool.GlobalConfig
}

// NewPoolInitializer creates a new PoolInitializer. A nil config falls
// back to pool.DefaultGlobalConfig.
func NewPoolInitializer(config *pool.GlobalConfig) *PoolInitializer {
	return &PoolInitializer{
		BaseInitializer: NewBaseInitializer("pool", "logging"),
		config:          config,
	}
}

// Initialize starts the global pool manager.
func (pi *PoolInitializer) Initialize(ctx context.Context) error {
	if err := pool.InitGlobalWithConfig(pi.config); err != nil {
		return err
	}
	logger.Infow("goroutine pool manager ready", "pools", pool.StatsGlobal())
	return nil
}

// Shutdown releases all pools, waiting for in-flight tasks to finish.
func (pi *PoolInitializer) Shutdown(ctx context.Context) error {
	return pool.CloseGlobal()
}
