// Package physics runs every behaviour's FixedUpdate on a fixed timestep loop.
package physics

import (
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/gaohao-creator/turbojob"
	"github.com/gaohao-creator/turbojob/logging"
	"github.com/gaohao-creator/turbojob/loop"
	"github.com/gaohao-creator/turbojob/scene"
)

const (
	Name = "physics"

	DefaultTick    = 20 * time.Millisecond // 50 Hz
	DefaultCatchUp = 5
)

// Executor runs a batch of jobs and reports the first non-success outcome.
type Executor interface {
	ExecuteBatch(fns []func()) turbojob.Outcome
}

// System is a loop.Policy that fans FixedUpdate out across the scheduler once
// per tick and joins before the next tick.
type System struct {
	executor Executor
	scene    *scene.Scene
	driver   *loop.Fixed
	logger   logr.Logger

	ticks    atomic.Uint64
	failures atomic.Uint64
}

func New(executor Executor, sc *scene.Scene, driver *loop.Fixed, logger logr.Logger) *System {
	return &System{
		executor: executor,
		scene:    sc,
		driver:   driver,
		logger:   logger.WithValues("system", Name),
	}
}

func (s *System) Driver() *loop.Fixed { return s.driver }

func (s *System) Ticks() uint64 { return s.ticks.Load() }

func (s *System) Failures() uint64 { return s.failures.Load() }

func (s *System) OnBegin() error { return nil }

func (s *System) OnIteration(step loop.Step) error {
	behaviours := s.scene.Behaviours()
	s.ticks.Add(1)
	if len(behaviours) == 0 {
		return nil
	}
	dt := step.Delta
	fns := make([]func(), len(behaviours))
	for i, b := range behaviours {
		fns[i] = func() { b.FixedUpdate(dt) }
	}
	if outcome := s.executor.ExecuteBatch(fns); outcome != turbojob.OutcomeSuccess {
		s.failures.Add(1)
		s.logger.Error(outcome.Err(), "fixed update did not succeed", "tick", step.Index, "outcome", outcome.String())
	}
	return nil
}

func (s *System) OnEnd() {
	s.logger.V(logging.VERBOSE).Info("physics system stopped", "ticks", s.ticks.Load(), "dropped", s.driver.Dropped())
}
