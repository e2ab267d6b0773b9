// Package app provides the memory engine process application.
package app

import (
	"fmt"

	"github.com/kart-io/memoryx/internal/bootstrap"
	"github.com/kart-io/memoryx/pkg/infra/app"
)

const (
	// Name is the name of the application.
	Name = "memoryx"

	// commandDesc is the description of the command.
	commandDesc = `Memory Engine

A conversational memory engine for a multi-tenant chat service.

This process provides:
  - A debounced, per-user extraction scheduler that turns chat turns into
    durable memory records (Postgres + pgvector)
  - A handler registry through which chat domains render their own
    message schemas for the extraction pipeline without it knowing them
  - Recall formatting for splicing a user's relevant memories into a
    prompt

There is no HTTP or gRPC surface: a host chat service embeds this module
as a library and calls into its handler registry and scheduler directly.`
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := NewServerOptions()
	application := app.NewApp(
		app.WithName(Name),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)

	return application
}

// run contains the main logic for initializing and running the process.
func run(opts *ServerOptions) app.RunFunc {
	return func() error {
		bootstrapOpts := opts.BootstrapOptions(Name, app.GetVersion())

		if err := bootstrap.Run(bootstrapOpts); err != nil {
			return fmt.Errorf("memory engine stopped: %w", err)
		}
		return nil
	}
}
