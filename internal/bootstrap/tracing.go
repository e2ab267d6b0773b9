package bootstrap

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/memoryx/pkg/infra/tracing"
)

// TracingInitializer stands up the OpenTelemetry tracer provider that the
// extraction pipeline's stages and the recall path create spans against.
type TracingInitializer struct {
	BaseInitializer
	opts     *tracing.Options
	provider *tracing.Provider
}

// NewTracingInitializer creates a new TracingInitializer.
func NewTracingInitializer(opts *tracing.Options) *TracingInitializer {
	return &TracingInitializer{
		BaseInitializer: NewBaseInitializer("tracing", "logging"),
		opts:            opts,
	}
}

// Initialize starts the tracer provider. A disabled configuration still
// succeeds without installing a global provider, so span-producing code
// elsewhere gets OpenTelemetry's default no-op tracer and never has to
// branch on whether tracing is on.
func (ti *TracingInitializer) Initialize(ctx context.Context) error {
	provider, err := tracing.NewProvider(ti.opts)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer provider: %w", err)
	}
	ti.provider = provider

	logger.Infow("tracing initialized", "enabled", ti.opts.Enabled, "exporter", ti.opts.ExporterType)
	return nil
}

// Shutdown flushes and stops the tracer provider.
func (ti *TracingInitializer) Shutdown(ctx context.Context) error {
	if ti.provider == nil {
		return nil
	}
	return ti.provider.Shutdown(ctx)
}

// Provider returns the initialized tracer provider.
func (ti *TracingInitializer) Provider() *tracing.Provider {
	return ti.provider
}
