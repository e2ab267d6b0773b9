// Package app contains flags and options for initializing the memory
// engine process.
package app

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/memoryx/internal/bootstrap"
	cliflag "github.com/kart-io/memoryx/pkg/app/cliflag"
	tracingopts "github.com/kart-io/memoryx/pkg/infra/tracing"
	cacheopts "github.com/kart-io/memoryx/pkg/options/cache"
	llmopts "github.com/kart-io/memoryx/pkg/options/llm"
	logopts "github.com/kart-io/memoryx/pkg/options/logger"
	pgopts "github.com/kart-io/memoryx/pkg/options/postgres"
	redisopts "github.com/kart-io/memoryx/pkg/options/redis"
	schedopts "github.com/kart-io/memoryx/pkg/options/scheduler"

	postgrescomp "github.com/kart-io/memoryx/pkg/component/postgres"
	"github.com/kart-io/memoryx/pkg/infra/pool"
)

// ServerOptions contains the configuration options for the memory engine
// process. There is no HTTP or gRPC surface: the process runs the
// extraction scheduler against Postgres and Redis until it receives a
// termination signal.
type ServerOptions struct {
	LogOptions       *logopts.Options         `json:"log" mapstructure:"log"`
	TracingOptions   *tracingopts.Options     `json:"tracing" mapstructure:"tracing"`
	PostgresOptions  *pgopts.Options          `json:"postgres" mapstructure:"postgres"`
	RedisOptions     *redisopts.Options       `json:"redis" mapstructure:"redis"`
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`
	ChatOptions      *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`
	SchedulerOptions *schedopts.Options       `json:"scheduler" mapstructure:"scheduler"`

	// EmbeddingCacheOptions configures the Redis-backed cache that sits in
	// front of the embedding provider.
	EmbeddingCacheOptions *cacheopts.Options `json:"embedding-cache" mapstructure:"embedding-cache"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		LogOptions:            logopts.NewOptions(),
		TracingOptions:        tracingopts.NewOptions(),
		PostgresOptions:       pgopts.NewOptions(),
		RedisOptions:          redisopts.NewOptions(),
		EmbeddingOptions:      llmopts.NewEmbeddingOptions(),
		ChatOptions:           llmopts.NewChatOptions(),
		SchedulerOptions:      schedopts.NewOptions(),
		EmbeddingCacheOptions: cacheopts.NewOptions(),
	}
}

// Flags returns flags for the process grouped by section name.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	o.PostgresOptions.AddFlags(fss.FlagSet("postgres"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding.")
	o.ChatOptions.AddFlags(fss.FlagSet("chat"), "chat.")
	o.SchedulerOptions.AddFlags(fss.FlagSet("scheduler"))
	o.EmbeddingCacheOptions.AddFlags(fss.FlagSet("cache"), "embedding.")

	return fss
}

// Complete fills in defaults derived from other options.
func (o *ServerOptions) Complete() error {
	if err := o.TracingOptions.Complete(); err != nil {
		return err
	}
	if err := o.PostgresOptions.Complete(); err != nil {
		return err
	}
	if err := o.RedisOptions.Complete(); err != nil {
		return err
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return err
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return err
	}
	if err := o.SchedulerOptions.Complete(); err != nil {
		return err
	}
	return o.EmbeddingCacheOptions.Complete()
}

// Validate checks whether ServerOptions is valid, aggregating every
// sub-option's errors into one.
func (o *ServerOptions) Validate() error {
	var errs []error
	if err := o.TracingOptions.Validate(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, o.PostgresOptions.Validate()...)
	errs = append(errs, o.RedisOptions.Validate()...)
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.SchedulerOptions.Validate()...)
	errs = append(errs, o.EmbeddingCacheOptions.Validate()...)
	return utilerrors.NewAggregate(errs)
}

// BootstrapOptions converts ServerOptions into the bootstrap package's
// process-wide configuration, bridging the CLI-facing options types to the
// component clients bootstrap wires up directly.
func (o *ServerOptions) BootstrapOptions(appName, appVersion string) *bootstrap.BootstrapOptions {
	return &bootstrap.BootstrapOptions{
		AppName:    appName,
		AppVersion: appVersion,
		ServerMode: "worker",

		LogOpts:      o.LogOptions,
		TracingOpts:  o.TracingOptions,
		PostgresOpts: toComponentPostgresOptions(o.PostgresOptions),
		RedisOpts:    o.RedisOptions,
		PoolConfig:   pool.DefaultGlobalConfig(),

		MemoryEngine: &bootstrap.MemoryEngineOptions{
			EmbeddingOpts:  o.EmbeddingOptions,
			ChatOpts:       o.ChatOptions,
			SchedulerOpts:  o.SchedulerOptions,
			EmbeddingCache: o.EmbeddingCacheOptions,
		},
	}
}

// toComponentPostgresOptions copies the CLI-facing postgres options into the
// component package's own Options type. The two types carry identical
// fields but are declared separately, so no conversion method exists on
// either side.
func toComponentPostgresOptions(o *pgopts.Options) *postgrescomp.Options {
	return &postgrescomp.Options{
		Host:                  o.Host,
		Port:                  o.Port,
		Username:              o.Username,
		Password:              o.Password,
		Database:              o.Database,
		SSLMode:               o.SSLMode,
		MaxIdleConnections:    o.MaxIdleConnections,
		MaxOpenConnections:    o.MaxOpenConnections,
		MaxConnectionLifeTime: o.MaxConnectionLifeTime,
		LogLevel:              o.LogLevel,
	}
}
