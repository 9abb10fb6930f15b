package turbojob

import (
	"github.com/gaohao-creator/turbojob/errors"
	"github.com/gaohao-creator/turbojob/scheduler_steal"
)

// SubmitAfter queues fn to run once every parent has finished executing. Only
// parents that settle with OutcomeSuccess satisfy the child; any other parent
// outcome cancels it, and the cancellation carries on to its own dependents.
func (s *Scheduler) SubmitAfter(fn func(), parents ...Handle) (Handle, error) {
	if fn == nil {
		return 0, errors.ErrorNilTask
	}
	return s.submit(wrap(fn), false, parents)
}

// SubmitErrAfter is SubmitAfter for callables that report failure.
func (s *Scheduler) SubmitErrAfter(fn func() error, parents ...Handle) (Handle, error) {
	return s.submit(fn, false, parents)
}

func (s *Scheduler) resolve(parents []Handle) ([]*scheduler_steal.Job, error) {
	if len(parents) == 0 {
		return nil, nil
	}
	deps := make([]*scheduler_steal.Job, 0, len(parents))
	for _, h := range parents {
		p := s.tasks.get(uint64(h))
		if p == nil {
			return nil, errors.ErrorTaskNotFound
		}
		deps = append(deps, p)
	}
	return deps, nil
}

// link registers j under each parent. One extra guard dependency keeps j
// blocked until all parents are attached, so a parent finishing mid-loop
// cannot release it early.
func (s *Scheduler) link(j *scheduler_steal.Job, parents []*scheduler_steal.Job) {
	j.AddDependency()
	s.tasks.block(j)
	for _, p := range parents {
		j.AddDependency()
		if attached, satisfied := p.AddChild(j.ID()); !attached {
			s.release(j, satisfied)
		}
	}
	s.release(j, true)
}

// propagate hands j's result to every dependent.
func (s *Scheduler) propagate(j *scheduler_steal.Job, satisfied bool) {
	for _, id := range j.TakeChildren(satisfied) {
		if child := s.tasks.waiting(id); child != nil {
			s.release(child, satisfied)
		}
	}
}

// release drops one dependency of child and queues it once none remain. A
// cancelled child is still queued so a worker can discard it and pass the
// cancellation on.
func (s *Scheduler) release(child *scheduler_steal.Job, satisfied bool) {
	if !satisfied && child.Cancel() {
		s.settled(OutcomeCanceled)
	}
	if !child.ReleaseDependency() {
		return
	}
	if s.tasks.unblock(child.ID()) == nil {
		return
	}
	if err := s.enqueue(child); err != nil {
		s.shutdown(child)
		s.finished()
	}
}
