package context

import (
	"context"
	"sync"
	"time"
)

// CtxCancel binds a cancelable context to at most one background goroutine,
// so the owner can cancel it and then wait for the goroutine to return.
type CtxCancel struct {
	Ctx    context.Context
	Cancel context.CancelFunc

	done    chan struct{} // 后台goroutine退出时关闭
	started bool
	mu      sync.Mutex
}

func NewContextWithCancel(parent context.Context) *CtxCancel {
	ctx, cancel := context.WithCancel(parent)
	return &CtxCancel{
		Ctx:    ctx,
		Cancel: cancel,
		done:   make(chan struct{}),
	}
}

func NewContextWithTimeout(parent context.Context, timeout time.Duration) *CtxCancel {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return &CtxCancel{
		Ctx:    ctx,
		Cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Go runs fn on a new goroutine with Ctx. Only the first call starts a
// goroutine; later calls report false.
func (c *CtxCancel) Go(fn func(ctx context.Context)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return false
	}
	c.started = true
	go func() {
		defer close(c.done)
		fn(c.Ctx)
	}()
	return true
}

// Done is closed once the goroutine started by Go has returned.
func (c *CtxCancel) Done() <-chan struct{} {
	return c.done
}

// Stop cancels Ctx and blocks until the goroutine started by Go returns.
func (c *CtxCancel) Stop() {
	c.Cancel()
	if c.isStarted() {
		<-c.done
	}
}

// StopWithTimeout is Stop bounded by timeout. It reports whether the goroutine
// returned in time.
func (c *CtxCancel) StopWithTimeout(timeout time.Duration) bool {
	c.Cancel()
	if !c.isStarted() {
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.done:
		return true
	case <-timer.C:
		return false
	}
}

func (c *CtxCancel) isStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}
