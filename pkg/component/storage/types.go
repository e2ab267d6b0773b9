package storage

import (
	"context"
	"time"
)

// Client is the base interface that all storage clients registered with
// Manager must implement.
type Client interface {
	// Name returns the storage type name for identification purposes,
	// e.g. "postgres", "redis".
	Name() string

	// Ping checks if the connection to the storage backend is alive.
	Ping(ctx context.Context) error

	// Close closes the connection gracefully. Close should be idempotent.
	Close() error

	// Health returns a HealthChecker bound to this client instance.
	Health() HealthChecker
}

// HealthChecker performs a health check and reports the outcome.
type HealthChecker func() error

// HealthStatus is the result of a single health check.
type HealthStatus struct {
	Name    string
	Healthy bool
	Latency time.Duration
	Error   error
}

// Factory creates storage clients. Implementations encapsulate
// connection configuration so callers only deal with Client.
type Factory interface {
	Create(ctx context.Context) (Client, error)
}
