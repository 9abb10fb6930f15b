// Package loop drives timestep loops. A Driver owns the timing (fixed ticks
// with catch-up, or one step per frame) and calls into a Policy for the work.
package loop

import (
	"context"
	"time"
)

// Step describes one iteration handed to a Policy.
type Step struct {
	// Index counts iterations since OnBegin, starting at 0.
	Index uint64
	// Delta is the simulated time this step covers: the tick duration for a
	// fixed loop, the frame-to-frame time for a variable loop.
	Delta time.Duration
}

// Policy supplies the work a loop runs.
type Policy interface {
	// OnBegin runs once on the loop goroutine before the first iteration. An
	// error aborts the loop; OnEnd still runs.
	OnBegin() error
	// OnIteration runs once per step. An error stops the loop and is returned
	// from Driver.Run.
	OnIteration(step Step) error
	// OnEnd runs once after the last iteration.
	OnEnd()
}

// Driver runs a Policy until ctx is cancelled or the policy fails.
type Driver interface {
	Run(ctx context.Context, policy Policy) error
}

// Hooks adapts plain funcs to a Policy. Nil fields are no-ops.
type Hooks struct {
	Begin     func() error
	Iteration func(step Step) error
	End       func()
}

func (h Hooks) OnBegin() error {
	if h.Begin == nil {
		return nil
	}
	return h.Begin()
}

func (h Hooks) OnIteration(step Step) error {
	if h.Iteration == nil {
		return nil
	}
	return h.Iteration(step)
}

func (h Hooks) OnEnd() {
	if h.End != nil {
		h.End()
	}
}
