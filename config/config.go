// Package config loads the engine configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/gaohao-creator/turbojob/errors"
	"github.com/gaohao-creator/turbojob/logging"
)

// Config holds all configuration for an engine process.
type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Render    RenderConfig    `yaml:"render"`
	Physics   LoopConfig      `yaml:"physics"`
	Input     InputConfig     `yaml:"input"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type SchedulerConfig struct {
	// Workers is the worker count; 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`
	// Distribution is "random" or "round_robin".
	Distribution string        `yaml:"distribution"`
	IdleSpins    int           `yaml:"idleSpins"`
	ParkTimeout  time.Duration `yaml:"parkTimeout"`
	// StopTimeout bounds how long shutdown waits for running jobs; 0 waits forever.
	StopTimeout time.Duration `yaml:"stopTimeout"`
}

type RenderConfig struct {
	MaxFPS float64 `yaml:"maxFPS"`
	Capped bool    `yaml:"capped"`
}

// LoopConfig configures a fixed timestep loop.
type LoopConfig struct {
	// Rate is the tick rate in Hz.
	Rate    float64 `yaml:"rate"`
	CatchUp int     `yaml:"catchUp"`
}

type InputConfig struct {
	LoopConfig `yaml:",inline"`
	// Buffer is how many raw events may queue between ticks.
	Buffer int `yaml:"buffer"`
}

type LogConfig struct {
	Verbosity   int  `yaml:"verbosity"`
	Development bool `yaml:"development"`
}

type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. ":9090".
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			Distribution: "random",
			IdleSpins:    64,
			ParkTimeout:  time.Millisecond,
		},
		Render: RenderConfig{
			MaxFPS: 240,
		},
		Physics: LoopConfig{
			Rate:    50,
			CatchUp: 5,
		},
		Input: InputConfig{
			LoopConfig: LoopConfig{
				Rate:    1000,
				CatchUp: 5,
			},
			Buffer: 1024,
		},
		Log: LogConfig{
			Verbosity: logging.DEFAULT,
		},
	}
}

// Load reads a YAML config file from the given path over Default and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once. Each error wraps
// errors.ErrorInvalidConfig.
func (c *Config) Validate() error {
	var err error
	invalid := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]any{errors.ErrorInvalidConfig}, args...)...))
	}

	if c.Scheduler.Workers < 0 {
		invalid("scheduler.workers must not be negative, got %d", c.Scheduler.Workers)
	}
	switch c.Scheduler.Distribution {
	case "", "random", "round_robin":
	default:
		invalid("scheduler.distribution must be random or round_robin, got %q", c.Scheduler.Distribution)
	}
	if c.Scheduler.IdleSpins < 0 {
		invalid("scheduler.idleSpins must not be negative, got %d", c.Scheduler.IdleSpins)
	}
	if c.Scheduler.ParkTimeout < 0 {
		invalid("scheduler.parkTimeout must not be negative, got %s", c.Scheduler.ParkTimeout)
	}
	if c.Scheduler.StopTimeout < 0 {
		invalid("scheduler.stopTimeout must not be negative, got %s", c.Scheduler.StopTimeout)
	}
	if c.Render.MaxFPS <= 0 {
		invalid("render.maxFPS must be positive, got %g", c.Render.MaxFPS)
	}
	for _, l := range []struct {
		name string
		LoopConfig
	}{{"physics", c.Physics}, {"input", c.Input.LoopConfig}} {
		if l.Rate <= 0 {
			invalid("%s.rate must be positive, got %g", l.name, l.Rate)
		}
		if l.CatchUp < 1 {
			invalid("%s.catchUp must be at least 1, got %d", l.name, l.CatchUp)
		}
	}
	if c.Input.Buffer < 1 {
		invalid("input.buffer must be at least 1, got %d", c.Input.Buffer)
	}
	if c.Log.Verbosity < 0 {
		invalid("log.verbosity must not be negative, got %d", c.Log.Verbosity)
	}
	return err
}
