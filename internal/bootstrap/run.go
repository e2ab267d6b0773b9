package bootstrap

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/kart-io/logger"
)

// Run initializes every subsystem and blocks until the process receives
// an interrupt or termination signal, then shuts everything down in
// reverse order. There is no HTTP listener to run: the extraction
// scheduler and handler registry are driven entirely by background
// workers started during Initialize.
func Run(opts *BootstrapOptions) error {
	b := NewAppBootstrapper(opts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Initialize(ctx); err != nil {
		return err
	}

	defer func() {
		_ = logger.Flush()
		_ = b.Shutdown(context.Background())
	}()

	<-ctx.Done()
	logger.Infow("shutdown signal received")

	return nil
}
