// Package app defines the interface a server's top-level options struct
// must satisfy to be driven by pkg/infra/app.App.
package app

import (
	"github.com/kart-io/memoryx/pkg/app/cliflag"
)

// CliOptions is implemented by a server's top-level options struct so it can
// be wired into an App: grouped flags for --help, plus post-parse completion
// and validation.
type CliOptions interface {
	// Flags returns the options grouped into named sections for registration.
	Flags() cliflag.NamedFlagSets

	// Complete fills in defaults derived from other already-set fields.
	Complete() error

	// Validate checks that the options are internally consistent.
	Validate() error
}
