package bootstrap

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"
	"github.com/spf13/viper"

	"github.com/kart-io/memoryx/pkg/infra/config"
	logopts "github.com/kart-io/memoryx/pkg/infra/logger"
)

// LoggingInitializer handles logging system initialization.
type LoggingInitializer struct {
	BaseInitializer
	opts       *logopts.Options
	appName    string
	appVersion string
	serverMode string

	reloadable *logopts.ReloadableLogger
	watcher    *config.Watcher
}

// NewLoggingInitializer creates a new LoggingInitializer.
func NewLoggingInitializer(opts *logopts.Options, appName, appVersion, serverMode string) *LoggingInitializer {
	return &LoggingInitializer{
		BaseInitializer: NewBaseInitializer("logging"),
		opts:            opts,
		appName:         appName,
		appVersion:      appVersion,
		serverMode:      serverMode,
	}
}

// Initialize initializes the logging system, then starts watching the
// process config file (already loaded into viper by pkg/infra/app) so a
// "log" section edit takes effect without a restart.
func (li *LoggingInitializer) Initialize(ctx context.Context) error {
	// Inject service metadata into logger options
	li.opts.AddInitialField("service.name", li.appName)
	li.opts.AddInitialField("service.version", li.appVersion)

	if err := li.opts.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Infow("starting service",
		"app", li.appName,
		"version", li.appVersion,
		"mode", li.serverMode,
	)

	li.reloadable = logopts.NewReloadableLogger(li.opts)
	li.watcher = config.NewWatcher(viper.GetViper())
	li.reloadable.RegisterWithWatcher(li.watcher, "logging", "log")
	li.watcher.Start()

	return nil
}

// Shutdown stops watching the config file for log-level changes.
func (li *LoggingInitializer) Shutdown(_ context.Context) error {
	if li.watcher != nil {
		li.watcher.Stop()
	}
	return nil
}
