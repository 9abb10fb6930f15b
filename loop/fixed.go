package loop

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/gaohao-creator/turbojob/errors"
)

// Fixed runs a Policy at a fixed tick. Elapsed wall time accumulates; every
// whole tick in the accumulator is one iteration. When the loop falls further
// behind than CatchUp ticks the excess is dropped, so a stall costs at most
// CatchUp iterations instead of a spiral of ever-growing backlogs.
//
// The tick may be retuned while running; the next pass picks it up.
type Fixed struct {
	tick    atomic.Int64 // time.Duration
	catchUp atomic.Int64
	dropped atomic.Int64

	options *Options
	limiter *catrate.Limiter
}

// NewFixed creates a fixed-step driver. A non-positive tick falls back to
// 60 Hz and a catchUp below 1 to DefaultCatchUp.
func NewFixed(tick time.Duration, catchUp int, options ...Option) *Fixed {
	if tick <= 0 {
		tick = Period(DefaultRate)
	}
	if catchUp < 1 {
		catchUp = DefaultCatchUp
	}
	opts := newOptions("fixed", options...)
	f := &Fixed{
		options: opts,
		limiter: opts.limiter(),
	}
	f.tick.Store(int64(tick))
	f.catchUp.Store(int64(catchUp))
	return f
}

func (f *Fixed) SetTickDuration(tick time.Duration) error {
	if tick <= 0 {
		return errors.ErrorInvalidTick
	}
	f.tick.Store(int64(tick))
	return nil
}

// SetRate sets the tick to 1/hz, truncated to whole microseconds.
func (f *Fixed) SetRate(hz float64) error {
	return f.SetTickDuration(Period(hz))
}

func (f *Fixed) TickDuration() time.Duration {
	return time.Duration(f.tick.Load())
}

func (f *Fixed) SetCatchUp(catchUp int) {
	if catchUp < 1 {
		catchUp = 1
	}
	f.catchUp.Store(int64(catchUp))
}

func (f *Fixed) CatchUp() int {
	return int(f.catchUp.Load())
}

// Dropped returns the total number of steps discarded since creation.
func (f *Fixed) Dropped() int64 {
	return f.dropped.Load()
}

func (f *Fixed) Name() string {
	return f.options.Name
}

func (f *Fixed) Run(ctx context.Context, policy Policy) (err error) {
	clock := f.options.Clock
	last := clock.Now()

	defer policy.OnEnd()
	if err = policy.OnBegin(); err != nil {
		return err
	}

	var (
		acc   time.Duration
		index uint64
	)
	for ctx.Err() == nil {
		now := clock.Now()
		tick := f.TickDuration()
		window := time.Duration(f.catchUp.Load()) * tick

		elapsed := now.Sub(last)
		acc += elapsed
		last = now
		f.options.Metrics.Frame(f.options.Name, elapsed)

		if acc > window {
			f.drop(int64((acc - window) / tick))
			acc = window
		}

		for acc >= tick {
			if err = policy.OnIteration(Step{Index: index, Delta: tick}); err != nil {
				return err
			}
			index++
			acc -= tick
			f.options.Metrics.Iteration(f.options.Name)
		}

		if end := last.Add(tick); clock.Now().Before(end) {
			clock.SleepUntil(ctx, end)
		}
	}
	return nil
}

func (f *Fixed) drop(steps int64) {
	if steps <= 0 {
		return
	}
	total := f.dropped.Add(steps)
	f.options.Metrics.Dropped(f.options.Name, steps)
	if _, ok := f.limiter.Allow(f.options.Name); ok {
		f.options.Logger.Info("loop running behind, dropping steps", "loop", f.options.Name, "dropped", steps, "totalDropped", total)
	}
}
