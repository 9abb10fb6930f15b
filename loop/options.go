package loop

import (
	"math"
	"time"

	"github.com/go-logr/logr"
	"github.com/joeycumines/go-catrate"

	"github.com/gaohao-creator/turbojob/metrics"
)

const (
	DefaultCatchUp = 5
	DefaultMaxFPS  = 240
	DefaultRate    = 60
)

// DefaultWarnRates allows one "running behind" warning per second per loop.
var DefaultWarnRates = map[time.Duration]int{
	time.Second: 1,
}

type Options struct {
	// Name labels logs and metrics.
	Name    string
	Clock   Clock
	Logger  logr.Logger
	Metrics *metrics.LoopMetrics
	// WarnRates throttles the dropped-steps warning. Nil disables throttling.
	WarnRates map[time.Duration]int
}

type Option func(opts *Options)

func WithName(name string) Option {
	return func(opts *Options) {
		opts.Name = name
	}
}

func WithClock(clock Clock) Option {
	return func(opts *Options) {
		opts.Clock = clock
	}
}

func WithLogger(logger logr.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

func WithMetrics(m *metrics.LoopMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

func WithWarnRates(rates map[time.Duration]int) Option {
	return func(opts *Options) {
		opts.WarnRates = rates
	}
}

func newOptions(name string, options ...Option) *Options {
	opts := &Options{
		Name:      name,
		Clock:     RealClock{},
		Logger:    logr.Discard(),
		WarnRates: DefaultWarnRates,
	}
	for _, option := range options {
		option(opts)
	}
	return opts
}

func (o *Options) limiter() *catrate.Limiter {
	if len(o.WarnRates) == 0 {
		return nil
	}
	return catrate.NewLimiter(o.WarnRates)
}

// Period converts a rate in Hz to a whole number of microseconds, truncating.
// It returns 0 for a non-positive or non-finite rate.
func Period(hz float64) time.Duration {
	if hz <= 0 || math.IsInf(hz, 0) || math.IsNaN(hz) {
		return 0
	}
	return time.Duration(float64(time.Second) / hz).Truncate(time.Microsecond)
}
