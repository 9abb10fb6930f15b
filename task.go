package turbojob

import (
	"context"

	"github.com/gaohao-creator/turbojob/errors"
	"github.com/gaohao-creator/turbojob/scheduler_steal"
)

// Submit queues fn and returns immediately with its handle.
func (s *Scheduler) Submit(fn func()) (Handle, error) {
	if fn == nil {
		return 0, errors.ErrorNilTask
	}
	return s.submit(wrap(fn), false, nil)
}

// SubmitErr is Submit for callables that report failure. A non-nil error
// settles the task as OutcomeFailed.
func (s *Scheduler) SubmitErr(fn func() error) (Handle, error) {
	return s.submit(fn, false, nil)
}

// Spawn queues fn without tracking it. Nobody can wait on or cancel a spawned
// job, but it still counts towards WaitAll.
func (s *Scheduler) Spawn(fn func()) error {
	if fn == nil {
		return errors.ErrorNilTask
	}
	_, err := s.submit(wrap(fn), true, nil)
	return err
}

// Cancel reports whether h was known. A queued callable will be skipped; one
// already running finishes, but its result is discarded. Either way waiters
// see OutcomeCanceled right away.
func (s *Scheduler) Cancel(h Handle) bool {
	j := s.tasks.get(uint64(h))
	if j == nil {
		return false
	}
	if j.Cancel() {
		s.settled(OutcomeCanceled)
	}
	return true
}

// Wait blocks until h settles and then forgets it. A second Wait on the same
// handle reports OutcomeNotFound.
func (s *Scheduler) Wait(h Handle) Outcome {
	j := s.tasks.get(uint64(h))
	if j == nil {
		return OutcomeNotFound
	}
	<-j.Done()
	s.tasks.remove(j.ID())
	outcome, _ := j.Outcome()
	return outcome
}

// WaitContext is Wait bounded by ctx. The error is the task's failure cause.
// If ctx ends first the wait is abandoned: the task is left in place, the
// outcome is OutcomeCanceled and the error is ctx.Err(). A task that was
// really cancelled reports errors.ErrorTaskCanceled instead, so callers tell
// the two apart by the error.
func (s *Scheduler) WaitContext(ctx context.Context, h Handle) (Outcome, error) {
	j := s.tasks.get(uint64(h))
	if j == nil {
		return OutcomeNotFound, errors.ErrorTaskNotFound
	}
	select {
	case <-j.Done():
	case <-ctx.Done():
		return OutcomeCanceled, ctx.Err()
	}
	s.tasks.remove(j.ID())
	outcome, _ := j.Outcome()
	return outcome, j.Err()
}

// IsCompleted polls h without blocking or reaping it.
func (s *Scheduler) IsCompleted(h Handle) (Outcome, bool) {
	j := s.tasks.get(uint64(h))
	if j == nil {
		return OutcomeNotFound, false
	}
	return j.Outcome()
}

// Execute submits fn and waits for it.
func (s *Scheduler) Execute(fn func()) Outcome {
	h, err := s.Submit(fn)
	if err != nil {
		return outcomeOf(err)
	}
	return s.Wait(h)
}

// ExecuteBatch submits every fn, waits for all of them, and returns the first
// non-success outcome in submission order.
func (s *Scheduler) ExecuteBatch(fns []func()) Outcome {
	if len(fns) == 0 {
		return OutcomeSuccess
	}
	handles := make([]Handle, len(fns))
	outcomes := make([]Outcome, len(fns))
	for i, fn := range fns {
		h, err := s.Submit(fn)
		if err != nil {
			outcomes[i] = outcomeOf(err)
			continue
		}
		handles[i] = h
	}
	for i, h := range handles {
		if h != 0 {
			outcomes[i] = s.Wait(h)
		}
	}
	for _, outcome := range outcomes {
		if outcome != OutcomeSuccess {
			return outcome
		}
	}
	return OutcomeSuccess
}

// WaitAll blocks until every submitted job, tracked or spawned, has been
// executed or discarded.
func (s *Scheduler) WaitAll() {
	s.pendingLock.Lock()
	defer s.pendingLock.Unlock()
	for s.pending.Load() > 0 {
		s.pendingCond.Wait()
	}
}

func (s *Scheduler) submit(fn func() error, detached bool, parents []Handle) (Handle, error) {
	if fn == nil {
		return 0, errors.ErrorNilTask
	}
	s.gate.RLock()
	defer s.gate.RUnlock()
	if !s.Opened() {
		return 0, errors.ErrorSchedulerClosed
	}

	deps, err := s.resolve(parents)
	if err != nil {
		return 0, err
	}

	j := scheduler_steal.NewJob(s.handles.Add(1), fn, detached)
	if !j.Detached() {
		s.tasks.put(j)
	}
	s.submitted()

	if len(deps) > 0 {
		s.link(j, deps)
		return Handle(j.ID()), nil
	}
	if err := s.enqueue(j); err != nil {
		s.tasks.remove(j.ID())
		s.finished()
		return 0, err
	}
	return Handle(j.ID()), nil
}

func wrap(fn func()) func() error {
	return func() error {
		fn()
		return nil
	}
}

func outcomeOf(err error) Outcome {
	switch err {
	case errors.ErrorSchedulerClosed:
		return OutcomeShutdown
	case errors.ErrorTaskNotFound:
		return OutcomeNotFound
	default:
		return OutcomeFailed
	}
}
