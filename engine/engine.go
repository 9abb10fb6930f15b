// Package engine wires the scheduler, the scene and the render, physics and
// input loops into one explicitly constructed object with a start/stop
// bracket.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/gaohao-creator/turbojob"
	"github.com/gaohao-creator/turbojob/config"
	"github.com/gaohao-creator/turbojob/errors"
	"github.com/gaohao-creator/turbojob/input"
	"github.com/gaohao-creator/turbojob/logging"
	"github.com/gaohao-creator/turbojob/loop"
	"github.com/gaohao-creator/turbojob/metrics"
	"github.com/gaohao-creator/turbojob/physics"
	"github.com/gaohao-creator/turbojob/render"
	"github.com/gaohao-creator/turbojob/scene"
)

// Deps are the collaborators an Engine does not build itself. Every field is
// optional.
type Deps struct {
	Logger     logr.Logger
	Registerer prometheus.Registerer
	Presenter  render.Presenter
	Clock      loop.Clock
}

type Engine struct {
	cfg    *config.Config
	logger logr.Logger

	scheduler *turbojob.Scheduler
	scene     *scene.Scene
	render    *render.System
	physics   *physics.System
	input     *input.System
	runners   []*loop.Runner // start order

	mu      sync.Mutex
	started bool
}

// New builds an engine from cfg. Nothing runs until Start.
func New(cfg *config.Config, deps Deps) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	clock := deps.Clock
	if clock == nil {
		clock = loop.RealClock{}
	}

	var (
		schedulerMetrics *metrics.SchedulerMetrics
		loopMetrics      *metrics.LoopMetrics
	)
	if deps.Registerer != nil {
		var err error
		if schedulerMetrics, err = metrics.NewSchedulerMetrics(deps.Registerer); err != nil {
			return nil, fmt.Errorf("registering scheduler metrics: %w", err)
		}
		if loopMetrics, err = metrics.NewLoopMetrics(deps.Registerer); err != nil {
			return nil, fmt.Errorf("registering loop metrics: %w", err)
		}
	}

	options := []turbojob.Option{
		turbojob.WithLogger(logger.WithName("scheduler")),
		turbojob.WithMetrics(schedulerMetrics),
		turbojob.WithIdleSpins(cfg.Scheduler.IdleSpins),
		turbojob.WithParkTimeout(cfg.Scheduler.ParkTimeout),
	}
	if cfg.Scheduler.Workers > 0 {
		options = append(options, turbojob.WithWorkers(cfg.Scheduler.Workers))
	}
	if cfg.Scheduler.Distribution == "round_robin" {
		options = append(options, turbojob.WithDistribution(turbojob.DistributionRoundRobin))
	}

	e := &Engine{
		cfg:       cfg,
		logger:    logger,
		scheduler: turbojob.New(options...),
		scene:     scene.New(),
	}

	loopOptions := func(name string) []loop.Option {
		return []loop.Option{
			loop.WithName(name),
			loop.WithClock(clock),
			loop.WithLogger(logger.WithName(name)),
			loop.WithMetrics(loopMetrics),
		}
	}

	variable := loop.NewVariable(loopOptions(render.Name)...)
	if err := variable.SetMaxFPS(cfg.Render.MaxFPS); err != nil {
		return nil, fmt.Errorf("render.maxFPS: %w", err)
	}
	variable.SetCapped(cfg.Render.Capped)
	e.render = render.New(e.scheduler, e.scene, deps.Presenter, variable, logger)

	e.physics = physics.New(e.scheduler, e.scene,
		loop.NewFixed(loop.Period(cfg.Physics.Rate), cfg.Physics.CatchUp, loopOptions(physics.Name)...), logger)

	e.input = input.New(e.scheduler,
		loop.NewFixed(loop.Period(cfg.Input.Rate), cfg.Input.CatchUp, loopOptions(input.Name)...), cfg.Input.Buffer, logger)

	e.runners = []*loop.Runner{
		loop.NewRunner(render.Name, e.render.Driver(), e.render, logger),
		loop.NewRunner(physics.Name, e.physics.Driver(), e.physics, logger),
		loop.NewRunner(input.Name, e.input.Driver(), e.input, logger),
	}
	return e, nil
}

func (e *Engine) Scheduler() *turbojob.Scheduler { return e.scheduler }
func (e *Engine) Scene() *scene.Scene             { return e.scene }
func (e *Engine) Render() *render.System          { return e.render }
func (e *Engine) Physics() *physics.System        { return e.physics }
func (e *Engine) Input() *input.System            { return e.input }

// Start brings up the scheduler and then every loop. If a loop fails to
// start, everything already started is stopped again.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return errors.ErrorSchedulerOpened
	}
	if err := e.scheduler.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	for i, r := range e.runners {
		if err := r.Start(); err != nil {
			_ = e.stop(e.runners[:i])
			return fmt.Errorf("starting %s loop: %w", r.Name(), err)
		}
	}
	e.started = true
	e.logger.V(logging.VERBOSE).Info("engine started", "workers", len(e.scheduler.Workers()))
	return nil
}

// Stop shuts the loops down in reverse start order, then the scheduler. The
// errors of every step are combined.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return nil
	}
	e.started = false
	err := e.stop(e.runners)
	e.logger.V(logging.VERBOSE).Info("engine stopped", "err", err)
	return err
}

// Run starts the engine and blocks until ctx is done or a loop exits on its
// own, then stops everything.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(); err != nil {
		return err
	}
	exited := make(chan string, len(e.runners))
	for _, r := range e.runners {
		go func(r *loop.Runner) {
			<-r.Done()
			exited <- r.Name()
		}(r)
	}
	select {
	case <-ctx.Done():
	case name := <-exited:
		e.logger.Info("loop exited, stopping engine", "loop", name)
	}
	return e.Stop()
}

func (e *Engine) stop(runners []*loop.Runner) error {
	var err error
	for i := len(runners) - 1; i >= 0; i-- {
		if stopErr := runners[i].Stop(); stopErr != nil && stopErr != errors.ErrorLoopNotRunning {
			err = multierr.Append(err, fmt.Errorf("%s loop: %w", runners[i].Name(), stopErr))
		}
	}
	if stopErr := e.scheduler.StopWithTimeout(e.cfg.Scheduler.StopTimeout); stopErr != nil {
		err = multierr.Append(err, fmt.Errorf("scheduler: %w", stopErr))
	}
	return err
}
