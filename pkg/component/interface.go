// Package component defines the component interfaces.
package component

import "github.com/spf13/pflag"

// ConfigOptions defines the standard interface for all component options
// (PostgreSQL, Redis, etc.): complete defaults, validate, and register
// command-line flags under a prefix.
type ConfigOptions interface {
	// Complete fills in any fields not set that are required to have valid data.
	Complete() error

	// Validate checks the options and returns an error if any are invalid.
	// Call after Complete() so defaults are already filled in.
	Validate() error

	// AddFlags registers flags for the options under the given prefix
	// (e.g. "postgres." results in flags like "--postgres.host").
	AddFlags(fs *pflag.FlagSet, prefix string)
}
