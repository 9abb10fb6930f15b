// Package render drives per-frame behaviour updates on a variable timestep
// loop and hands each finished frame to a Presenter.
package render

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/gaohao-creator/turbojob"
	"github.com/gaohao-creator/turbojob/logging"
	"github.com/gaohao-creator/turbojob/loop"
	"github.com/gaohao-creator/turbojob/scene"
)

const Name = "render"

// Executor runs a batch of jobs and reports the first non-success outcome.
type Executor interface {
	ExecuteBatch(fns []func()) turbojob.Outcome
}

// Presenter is the output end of the frame: a window, a GPU swapchain, or
// nothing at all when headless.
type Presenter interface {
	Init() error
	Present() error
	Shutdown()
}

// NopPresenter presents nothing.
type NopPresenter struct{}

func (NopPresenter) Init() error    { return nil }
func (NopPresenter) Present() error { return nil }
func (NopPresenter) Shutdown()      {}

// System is a loop.Policy. Each frame it runs Update on every behaviour,
// then LateUpdate on every behaviour, then presents.
type System struct {
	executor  Executor
	scene     *scene.Scene
	presenter Presenter
	driver    *loop.Variable
	logger    logr.Logger

	frames   atomic.Uint64
	failures atomic.Uint64
}

func New(executor Executor, sc *scene.Scene, presenter Presenter, driver *loop.Variable, logger logr.Logger) *System {
	if presenter == nil {
		presenter = NopPresenter{}
	}
	return &System{
		executor:  executor,
		scene:     sc,
		presenter: presenter,
		driver:    driver,
		logger:    logger.WithValues("system", Name),
	}
}

func (s *System) Driver() *loop.Variable { return s.driver }

// Delta is the last frame's elapsed time.
func (s *System) Delta() time.Duration { return s.driver.Delta() }

// Frames counts presented frames.
func (s *System) Frames() uint64 { return s.frames.Load() }

// Failures counts phases in which at least one behaviour failed.
func (s *System) Failures() uint64 { return s.failures.Load() }

func (s *System) OnBegin() error {
	if err := s.presenter.Init(); err != nil {
		return fmt.Errorf("initialising presenter: %w", err)
	}
	behaviours := s.scene.Behaviours()
	s.batch("start", behaviours, func(b scene.Behaviour) func() { return b.Start })
	return nil
}

func (s *System) OnIteration(step loop.Step) error {
	dt := step.Delta
	behaviours := s.scene.Behaviours()
	s.batch("update", behaviours, func(b scene.Behaviour) func() {
		return func() { b.Update(dt) }
	})
	s.batch("late_update", behaviours, func(b scene.Behaviour) func() {
		return func() { b.LateUpdate(dt) }
	})
	if err := s.presenter.Present(); err != nil {
		return fmt.Errorf("presenting frame %d: %w", step.Index, err)
	}
	s.frames.Add(1)
	return nil
}

func (s *System) OnEnd() {
	s.presenter.Shutdown()
	s.logger.V(logging.VERBOSE).Info("render system stopped", "frames", s.frames.Load())
}

// batch runs one phase for every behaviour and waits for all of them. A
// failing behaviour is logged; the frame goes on.
func (s *System) batch(phase string, behaviours []scene.Behaviour, job func(scene.Behaviour) func()) {
	if len(behaviours) == 0 {
		return
	}
	fns := make([]func(), len(behaviours))
	for i, b := range behaviours {
		fns[i] = job(b)
	}
	if outcome := s.executor.ExecuteBatch(fns); outcome != turbojob.OutcomeSuccess {
		s.failures.Add(1)
		s.logger.Error(outcome.Err(), "behaviour batch did not succeed", "phase", phase, "outcome", outcome.String())
	}
}
