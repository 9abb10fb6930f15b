package loop

import (
	"context"
	"time"
)

// Clock is the time source a Driver paces itself against.
type Clock interface {
	Now() time.Time
	// SleepUntil blocks until t or until ctx is done, whichever comes first.
	SleepUntil(ctx context.Context, t time.Time)
}

// RealClock reads the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) SleepUntil(ctx context.Context, t time.Time) {
	d := time.Until(t)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
