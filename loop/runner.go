package loop

import (
	stdctx "context"
	"sync"

	"github.com/go-logr/logr"

	"github.com/gaohao-creator/turbojob/context"
	"github.com/gaohao-creator/turbojob/errors"
	"github.com/gaohao-creator/turbojob/logging"
)

// Runner owns the goroutine a Driver runs on.
type Runner struct {
	name   string
	driver Driver
	policy Policy
	logger logr.Logger

	mu        sync.Mutex
	lifecycle *context.CtxCancel // nil while idle
	err       error              // 仅在lifecycle.Done关闭后可读
}

func NewRunner(name string, driver Driver, policy Policy, logger logr.Logger) *Runner {
	return &Runner{
		name:   name,
		driver: driver,
		policy: policy,
		logger: logger.WithValues("loop", name),
	}
}

func (r *Runner) Name() string { return r.name }

// Start launches the loop. A loop that already exited on its own may be
// started again; its previous error is discarded.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lifecycle != nil {
		select {
		case <-r.lifecycle.Done():
		default:
			return errors.ErrorLoopRunning
		}
	}

	lifecycle := context.NewContextWithCancel(stdctx.Background())
	r.err = nil
	r.lifecycle = lifecycle
	lifecycle.Go(func(ctx stdctx.Context) {
		r.logger.V(logging.VERBOSE).Info("loop started")
		err := r.driver.Run(ctx, r.policy)
		if err != nil {
			r.logger.Error(err, "loop exited")
		} else {
			r.logger.V(logging.VERBOSE).Info("loop stopped")
		}
		r.err = err
	})
	return nil
}

// Stop cancels the loop, waits for it to return, and reports the error it
// exited with.
func (r *Runner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lifecycle == nil {
		return errors.ErrorLoopNotRunning
	}
	r.lifecycle.Stop()
	r.lifecycle = nil
	return r.err
}

// Running reports whether the loop goroutine is alive.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lifecycle == nil {
		return false
	}
	select {
	case <-r.lifecycle.Done():
		return false
	default:
		return true
	}
}

// Done is closed when the current loop goroutine returns. While idle it
// returns an already closed channel.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lifecycle == nil {
		return closed
	}
	return r.lifecycle.Done()
}

// Err returns the error of a loop that has exited, or nil while it runs.
func (r *Runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lifecycle == nil {
		return r.err
	}
	select {
	case <-r.lifecycle.Done():
		return r.err
	default:
		return nil
	}
}

var closed = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()
