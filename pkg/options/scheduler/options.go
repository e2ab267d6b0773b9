// Package scheduler provides configuration options for the extraction
// scheduler's debounce/worker/rate-limit profile.
package scheduler

import (
	"fmt"
	"time"

	"github.com/kart-io/memoryx/internal/memory/scheduler"
	"github.com/kart-io/memoryx/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Options mirrors spec's two operational profiles (production / test) as a
// single flat set of tunables, since either can be reached by flags/env.
type Options struct {
	// DebounceDelay is D_debounce.
	DebounceDelay time.Duration `json:"debounce-delay" mapstructure:"debounce-delay"`

	// MaxWait is D_max_wait.
	MaxWait time.Duration `json:"max-wait" mapstructure:"max-wait"`

	// Workers bounds concurrent extraction runs (N_workers).
	Workers int `json:"workers" mapstructure:"workers"`

	// MaxAttempts is N_attempts before a job is marked failed.
	MaxAttempts int `json:"max-attempts" mapstructure:"max-attempts"`

	// BackoffBase is the base of the exponential retry backoff.
	BackoffBase time.Duration `json:"backoff-base" mapstructure:"backoff-base"`

	// RateLimit is R_max, extractions allowed per RateWindow.
	RateLimit int `json:"rate-limit" mapstructure:"rate-limit"`

	// RateWindow is R_window.
	RateWindow time.Duration `json:"rate-window" mapstructure:"rate-window"`

	// PollInterval is how often the dispatch loop checks for due jobs.
	PollInterval time.Duration `json:"poll-interval" mapstructure:"poll-interval"`

	// FailedTTL bounds how long a failed job's metadata is retained.
	FailedTTL time.Duration `json:"failed-ttl" mapstructure:"failed-ttl"`
}

// NewOptions returns the suggested production profile.
func NewOptions() *Options {
	return &Options{
		DebounceDelay: 30 * time.Second,
		MaxWait:       5 * time.Minute,
		Workers:       5,
		MaxAttempts:   3,
		BackoffBase:   2 * time.Second,
		RateLimit:     10,
		RateWindow:    time.Second,
		PollInterval:  time.Second,
		FailedTTL:     24 * time.Hour,
	}
}

// NewTestOptions returns the fast profile suited to automated tests.
func NewTestOptions() *Options {
	return &Options{
		DebounceDelay: 150 * time.Millisecond,
		MaxWait:       500 * time.Millisecond,
		Workers:       5,
		MaxAttempts:   3,
		BackoffBase:   20 * time.Millisecond,
		RateLimit:     50,
		RateWindow:    time.Second,
		PollInterval:  20 * time.Millisecond,
		FailedTTL:     time.Second,
	}
}

// ToConfig converts to the scheduler package's runtime Config.
func (o *Options) ToConfig() scheduler.Config {
	return scheduler.Config{
		DebounceDelay: o.DebounceDelay,
		MaxWait:       o.MaxWait,
		MaxAttempts:   o.MaxAttempts,
		BackoffBase:   o.BackoffBase,
		RateLimit:     rateLimitPerSecond(o.RateLimit, o.RateWindow),
		RateBurst:     o.RateLimit,
		PollInterval:  o.PollInterval,
		FailedTTL:     o.FailedTTL,
	}
}

func rateLimitPerSecond(limit int, window time.Duration) float64 {
	if window <= 0 {
		return float64(limit)
	}
	return float64(limit) / window.Seconds()
}

// AddFlags adds flags for scheduler options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	prefix := options.Join(prefixes...)
	fs.DurationVar(&o.DebounceDelay, prefix+"scheduler.debounce-delay", o.DebounceDelay, "Delay before a newly scheduled extraction job becomes eligible to run.")
	fs.DurationVar(&o.MaxWait, prefix+"scheduler.max-wait", o.MaxWait, "Maximum time a job may be continuously delayed before promotion.")
	fs.IntVar(&o.Workers, prefix+"scheduler.workers", o.Workers, "Number of concurrent extraction workers.")
	fs.IntVar(&o.MaxAttempts, prefix+"scheduler.max-attempts", o.MaxAttempts, "Maximum extraction attempts before a job is marked failed.")
	fs.DurationVar(&o.BackoffBase, prefix+"scheduler.backoff-base", o.BackoffBase, "Base duration for exponential retry backoff.")
	fs.IntVar(&o.RateLimit, prefix+"scheduler.rate-limit", o.RateLimit, "Maximum extractions allowed per rate window.")
	fs.DurationVar(&o.RateWindow, prefix+"scheduler.rate-window", o.RateWindow, "Rate limit window.")
	fs.DurationVar(&o.PollInterval, prefix+"scheduler.poll-interval", o.PollInterval, "Dispatch loop poll interval.")
	fs.DurationVar(&o.FailedTTL, prefix+"scheduler.failed-ttl", o.FailedTTL, "Retention for failed job metadata.")
}

// Validate validates the scheduler options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.DebounceDelay <= 0 {
		errs = append(errs, fmt.Errorf("debounce-delay must be positive"))
	}
	if o.MaxWait <= o.DebounceDelay {
		errs = append(errs, fmt.Errorf("max-wait must be greater than debounce-delay"))
	}
	if o.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive"))
	}
	if o.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("max-attempts must be positive"))
	}
	if o.RateLimit <= 0 {
		errs = append(errs, fmt.Errorf("rate-limit must be positive"))
	}
	return errs
}

// Complete completes the scheduler options with defaults.
func (o *Options) Complete() error {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.FailedTTL <= 0 {
		o.FailedTTL = 24 * time.Hour
	}
	return nil
}
