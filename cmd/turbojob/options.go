package main

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/gaohao-creator/turbojob/config"
	"github.com/gaohao-creator/turbojob/logging"
)

// Options are the command-line flags. Flags that are set explicitly override
// the config file.
type Options struct {
	ConfigFile   string
	Workers      int
	Distribution string
	LogVerbosity int
	Development  bool
	MetricsAddr  string
	Duration     time.Duration
	Behaviours   int

	fs *pflag.FlagSet
}

func NewOptions() *Options {
	return &Options{
		Distribution: "random",
		LogVerbosity: logging.DEFAULT,
		Behaviours:   64,
	}
}

// AddFlags binds the Options fields to command-line flags on the given FlagSet.
func (opts *Options) AddFlags(fs *pflag.FlagSet) {
	if fs == nil {
		fs = pflag.CommandLine
	}
	opts.fs = fs

	fs.StringVar(&opts.ConfigFile, "config", opts.ConfigFile,
		"Path to a YAML config file. Defaults are used when empty.")
	fs.IntVar(&opts.Workers, "workers", opts.Workers,
		"Number of scheduler workers. 0 uses GOMAXPROCS.")
	fs.StringVar(&opts.Distribution, "distribution", opts.Distribution,
		"How new jobs are spread over workers: random or round_robin.")
	fs.IntVarP(&opts.LogVerbosity, "v", "v", opts.LogVerbosity,
		"Number for the log level verbosity.")
	fs.BoolVar(&opts.Development, "development", opts.Development,
		"Use human readable development logging.")
	fs.StringVar(&opts.MetricsAddr, "metrics-addr", opts.MetricsAddr,
		"Address to serve Prometheus /metrics on, e.g. :9090. Disabled when empty.")
	fs.DurationVar(&opts.Duration, "duration", opts.Duration,
		"Stop after this long. 0 runs until interrupted.")
	fs.IntVar(&opts.Behaviours, "behaviours", opts.Behaviours,
		"Number of synthetic behaviours placed in the scene.")
}

// Config loads the config file, if any, and applies explicitly set flags.
func (opts *Options) Config() (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigFile); err != nil {
			return nil, err
		}
	}
	if opts.changed("workers") {
		cfg.Scheduler.Workers = opts.Workers
	}
	if opts.changed("distribution") {
		cfg.Scheduler.Distribution = opts.Distribution
	}
	if opts.changed("v") {
		cfg.Log.Verbosity = opts.LogVerbosity
	}
	if opts.changed("development") {
		cfg.Log.Development = opts.Development
	}
	if opts.changed("metrics-addr") {
		cfg.Metrics.Addr = opts.MetricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the flags that have no config file counterpart.
func (opts *Options) Validate() error {
	if opts.Duration < 0 {
		return fmt.Errorf("invalid value %s for flag %q: must not be negative", opts.Duration, "duration")
	}
	if opts.Behaviours < 0 {
		return fmt.Errorf("invalid value %d for flag %q: must not be negative", opts.Behaviours, "behaviours")
	}
	return nil
}

func (opts *Options) changed(name string) bool {
	if opts.fs == nil {
		return false
	}
	f := opts.fs.Lookup(name)
	return f != nil && f.Changed
}
