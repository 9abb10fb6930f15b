package scheduler_steal

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/gaohao-creator/turbojob/errors"
)

// Job is one schedulable unit of work. The callable and id never change after
// NewJob; everything else is either atomic or guarded by mu.
//
// A job settles exactly once, through whichever of these happens first: the
// callable returns, the callable panics, Cancel, or a forced Settle during
// shutdown. Settling closes Done and fixes Outcome and Err.
type Job struct {
	id       uint64
	fn       func() error
	detached bool // 不进入任务表，无法等待

	claimed   atomic.Bool // worker已取走（执行或丢弃）
	completed atomic.Bool
	cancelled atomic.Bool
	failed    atomic.Bool

	deps atomic.Int32 // 尚未完成的父任务数

	mu         sync.Mutex
	children   []uint64 // 依赖本任务的子任务句柄
	propagated bool     // 已向子任务传播
	satisfied  bool     // 传播时本任务是否成功

	once    sync.Once
	done    chan struct{}
	outcome atomic.Int32
	err     error // 仅在once内写入，done关闭后可读
	stack   []byte
}

func NewJob(id uint64, fn func() error, detached bool) *Job {
	return &Job{
		id:       id,
		fn:       fn,
		detached: detached,
		done:     make(chan struct{}),
	}
}

func (j *Job) ID() uint64 { return j.id }

func (j *Job) Detached() bool { return j.detached }

func (j *Job) Completed() bool { return j.completed.Load() }

func (j *Job) Cancelled() bool { return j.cancelled.Load() }

func (j *Job) Failed() bool { return j.failed.Load() }

// Claim marks the job as taken by a worker. Only the first caller wins.
func (j *Job) Claim() bool {
	return j.claimed.CompareAndSwap(false, true)
}

// Claimed reports whether a worker has already taken the job.
func (j *Job) Claimed() bool {
	return j.claimed.Load()
}

// Execute invokes the callable unless the job was cancelled or already
// settled. ran reports whether the callable was invoked; recovered carries a
// panic value, if any.
func (j *Job) Execute() (ran bool, recovered any) {
	if j.cancelled.Load() || j.Settled() {
		return false, nil
	}
	recovered, err := j.call()
	switch {
	case recovered != nil:
		j.failed.Store(true)
		j.Settle(OutcomeFailed, fmt.Errorf("%w: panic: %v", errors.ErrorTaskFailed, recovered))
	case err != nil:
		j.failed.Store(true)
		j.Settle(OutcomeFailed, fmt.Errorf("%w: %w", errors.ErrorTaskFailed, err))
	default:
		j.completed.Store(true)
		j.Settle(OutcomeSuccess, nil)
	}
	return true, recovered
}

func (j *Job) call() (recovered any, err error) {
	defer func() {
		if recovered = recover(); recovered != nil {
			j.stack = debug.Stack()
		}
	}()
	return nil, j.fn()
}

// Stack is the goroutine stack captured when the callable panicked.
func (j *Job) Stack() []byte { return j.stack }

// Cancel sets the cancelled flag and settles the job as canceled. It reports
// whether this call settled the job.
func (j *Job) Cancel() bool {
	j.cancelled.Store(true)
	return j.Settle(OutcomeCanceled, errors.ErrorTaskCanceled)
}

// Settle fixes the terminal outcome. It reports whether this call was the one
// that settled the job.
func (j *Job) Settle(outcome Outcome, err error) bool {
	settled := false
	j.once.Do(func() {
		j.err = err
		j.outcome.Store(int32(outcome))
		close(j.done)
		settled = true
	})
	return settled
}

// Done is closed once the job has settled.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Settled reports whether the job has settled, without blocking.
func (j *Job) Settled() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Outcome returns the settled outcome. ok is false while the job is pending.
func (j *Job) Outcome() (outcome Outcome, ok bool) {
	if !j.Settled() {
		return 0, false
	}
	return Outcome(j.outcome.Load()), true
}

// Err returns the failure cause. Only meaningful after Done is closed.
func (j *Job) Err() error {
	if !j.Settled() {
		return nil
	}
	return j.err
}

// AddDependency records one more parent the job must wait for.
func (j *Job) AddDependency() {
	j.deps.Add(1)
}

// ReleaseDependency drops one parent and reports whether none remain.
func (j *Job) ReleaseDependency() bool {
	return j.deps.Add(-1) == 0
}

// Dependencies returns the number of parents still outstanding.
func (j *Job) Dependencies() int32 {
	return j.deps.Load()
}

// AddChild registers child as a dependent. If the job already propagated,
// attached is false and satisfied tells the caller whether the job succeeded.
func (j *Job) AddChild(child uint64) (attached, satisfied bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.propagated {
		return false, j.satisfied
	}
	j.children = append(j.children, child)
	return true, false
}

// TakeChildren closes the child list and hands it to the caller, who is then
// responsible for releasing every child exactly once.
func (j *Job) TakeChildren(satisfied bool) []uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.propagated = true
	j.satisfied = satisfied
	children := j.children
	j.children = nil
	return children
}
