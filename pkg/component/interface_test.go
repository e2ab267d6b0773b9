package component_test

import (
	"testing"

	"github.com/kart-io/memoryx/pkg/component"
	"github.com/kart-io/memoryx/pkg/component/postgres"
	"github.com/kart-io/memoryx/pkg/component/redis"
	"github.com/spf13/pflag"
)

// TestConfigOptionsInterface verifies that all component options
// implement the component.ConfigOptions interface.
func TestConfigOptionsInterface(t *testing.T) {
	tests := []struct {
		name   string
		option component.ConfigOptions
	}{
		{
			name:   "Redis Options",
			option: redis.NewOptions(),
		},
		{
			name:   "PostgreSQL Options",
			option: postgres.NewOptions(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.option.Complete(); err != nil {
				t.Errorf("Complete() error = %v", err)
			}

			if err := tt.option.Validate(); err != nil {
				t.Errorf("Validate() error = %v", err)
			}

			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			tt.option.AddFlags(fs, "test.")

			flagCount := 0
			fs.VisitAll(func(_ *pflag.Flag) {
				flagCount++
			})
			if flagCount == 0 {
				t.Errorf("AddFlags() did not add any flags")
			}
		})
	}
}

// TestConfigOptionsComplete verifies that Complete() can be called
// multiple times without error.
func TestConfigOptionsComplete(t *testing.T) {
	opts := postgres.NewOptions()

	if err := opts.Complete(); err != nil {
		t.Fatalf("First Complete() failed: %v", err)
	}

	if err := opts.Complete(); err != nil {
		t.Fatalf("Second Complete() failed: %v", err)
	}
}

// TestConfigOptionsValidate verifies that Validate() can be called
// after Complete().
func TestConfigOptionsValidate(t *testing.T) {
	opts := redis.NewOptions()

	if err := opts.Complete(); err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}

	if err := opts.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
}

// TestConfigOptionsAddFlags verifies that AddFlags() properly
// populates a FlagSet.
func TestConfigOptionsAddFlags(t *testing.T) {
	tests := []struct {
		name       string
		option     component.ConfigOptions
		prefix     string
		expectFlag string
	}{
		{
			name:       "Redis with prefix",
			option:     redis.NewOptions(),
			prefix:     "redis.",
			expectFlag: "redis.host",
		},
		{
			name:       "PostgreSQL with prefix",
			option:     postgres.NewOptions(),
			prefix:     "postgres.",
			expectFlag: "postgres.host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			tt.option.AddFlags(fs, tt.prefix)

			flag := fs.Lookup(tt.expectFlag)
			if flag == nil {
				t.Errorf("Expected flag %q not found", tt.expectFlag)
			}
		})
	}
}
