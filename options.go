package turbojob

import (
	"runtime"
	"time"

	"github.com/go-logr/logr"

	"github.com/gaohao-creator/turbojob/metrics"
	"github.com/gaohao-creator/turbojob/scheduler_steal"
)

const (
	STATE_CLOSED = int32(iota)
	STATE_OPENED
)

// Distribution decides which worker queue receives a new submission.
type Distribution int

const (
	DistributionRandom Distribution = iota
	DistributionRoundRobin
)

func (d Distribution) String() string {
	switch d {
	case DistributionRandom:
		return "random"
	case DistributionRoundRobin:
		return "round_robin"
	default:
		return "unknown"
	}
}

type Options struct {
	// Number of workers started by Start. Defaults to GOMAXPROCS.
	Workers int
	// How submissions are spread over worker queues.
	Distribution Distribution
	// Gosched rounds an idle worker spins before parking.
	IdleSpins int
	// Upper bound on how long an idle worker parks before probing peers again.
	ParkTimeout time.Duration
	// Recover panic handler.
	PanicHandler func(any)
	// Structured logger.
	Logger logr.Logger
	// Optional Prometheus collectors.
	Metrics *metrics.SchedulerMetrics
}

type Option func(opts *Options)

func WithWorkers(workers int) Option {
	return func(opts *Options) {
		opts.Workers = workers
	}
}

func WithDistribution(distribution Distribution) Option {
	return func(opts *Options) {
		opts.Distribution = distribution
	}
}

func WithIdleSpins(spins int) Option {
	return func(opts *Options) {
		opts.IdleSpins = spins
	}
}

func WithParkTimeout(parkTimeout time.Duration) Option {
	return func(opts *Options) {
		opts.ParkTimeout = parkTimeout
	}
}

func WithPanicHandler(panicHandler func(any)) Option {
	return func(opts *Options) {
		opts.PanicHandler = panicHandler
	}
}

func WithLogger(logger logr.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

func WithMetrics(m *metrics.SchedulerMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

func NewOptions(options ...Option) *Options {
	opts := &Options{
		Workers:      runtime.GOMAXPROCS(0),
		Distribution: DistributionRandom,
		IdleSpins:    scheduler_steal.DefaultIdleSpins,
		ParkTimeout:  scheduler_steal.DefaultParkTimeout,
		Logger:       logr.Discard(),
	}
	for _, option := range options {
		option(opts)
	}
	return opts
}
