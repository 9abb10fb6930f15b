package loop

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gaohao-creator/turbojob/errors"
)

// Variable runs exactly one iteration per pass and hands the policy the real
// frame-to-frame time. With the cap on, a pass that finishes early sleeps out
// the rest of the minimum frame duration.
type Variable struct {
	minFrame atomic.Int64 // time.Duration
	capped   atomic.Bool
	delta    atomic.Int64 // time.Duration

	options *Options
}

// NewVariable creates an uncapped variable-step driver limited to
// DefaultMaxFPS once capped.
func NewVariable(options ...Option) *Variable {
	v := &Variable{
		options: newOptions("variable", options...),
	}
	v.minFrame.Store(int64(Period(DefaultMaxFPS)))
	return v
}

// SetMaxFPS sets the minimum frame duration to 1/fps, truncated to whole
// microseconds.
func (v *Variable) SetMaxFPS(fps float64) error {
	return v.SetMinFrameDuration(Period(fps))
}

func (v *Variable) SetMinFrameDuration(d time.Duration) error {
	if d <= 0 {
		return errors.ErrorInvalidTick
	}
	v.minFrame.Store(int64(d))
	return nil
}

func (v *Variable) MinFrameDuration() time.Duration {
	return time.Duration(v.minFrame.Load())
}

func (v *Variable) SetCapped(capped bool) {
	v.capped.Store(capped)
}

func (v *Variable) Capped() bool {
	return v.capped.Load()
}

// Delta returns the elapsed time of the most recent frame.
func (v *Variable) Delta() time.Duration {
	return time.Duration(v.delta.Load())
}

func (v *Variable) Name() string {
	return v.options.Name
}

func (v *Variable) Run(ctx context.Context, policy Policy) (err error) {
	clock := v.options.Clock
	last := clock.Now()

	defer policy.OnEnd()
	if err = policy.OnBegin(); err != nil {
		return err
	}

	var index uint64
	for ctx.Err() == nil {
		start := clock.Now()
		elapsed := start.Sub(last)
		last = start
		v.delta.Store(int64(elapsed))
		v.options.Metrics.Frame(v.options.Name, elapsed)

		if err = policy.OnIteration(Step{Index: index, Delta: elapsed}); err != nil {
			return err
		}
		index++
		v.options.Metrics.Iteration(v.options.Name)

		if v.Capped() {
			clock.SleepUntil(ctx, start.Add(v.MinFrameDuration()))
		}
	}
	return nil
}
