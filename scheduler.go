package turbojob

import (
	stdctx "context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gaohao-creator/turbojob/context"
	"github.com/gaohao-creator/turbojob/errors"
	"github.com/gaohao-creator/turbojob/logging"
	"github.com/gaohao-creator/turbojob/scheduler_steal"
)

// Scheduler runs submitted jobs on a fixed set of work-stealing workers.
//
// Every worker owns a deque. New jobs land on one worker's queue (random or
// round-robin), the owner pops its newest job, and idle workers steal the
// oldest job from a peer. Submitted jobs are tracked by Handle until a waiter
// reaps them.
type Scheduler struct {
	// 整体状态
	state atomic.Int32 // 状态（开、关）
	lock  *sync.Mutex  // 串行化 Start / Stop / Resize
	gate  *sync.RWMutex

	// worker容器，写时复制
	workers  atomic.Pointer[[]*scheduler_steal.Worker]
	workerID int
	cursor   atomic.Uint64 // round-robin 游标

	// 任务表
	tasks   *jobTable
	handles atomic.Uint64

	// 批量等待
	pending     atomic.Int64
	pendingLock *sync.Mutex
	pendingCond *sync.Cond

	stats counters

	options *Options
}

type counters struct {
	submitted atomic.Uint64
	executed  atomic.Uint64
	stolen    atomic.Uint64
	canceled  atomic.Uint64
	failed    atomic.Uint64
	shutdown  atomic.Uint64
}

// New creates a stopped scheduler. Call Start before submitting.
func New(options ...Option) *Scheduler {
	s := &Scheduler{
		lock:        &sync.Mutex{},
		gate:        &sync.RWMutex{},
		tasks:       newJobTable(),
		pendingLock: &sync.Mutex{},
		options:     NewOptions(options...),
	}
	s.pendingCond = sync.NewCond(s.pendingLock)
	return s
}

// Start spawns the workers and opens the scheduler for submissions.
func (s *Scheduler) Start() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.Opened() {
		return errors.ErrorSchedulerOpened
	}
	n := s.options.Workers
	if n < 1 {
		return errors.ErrorInvalidWorkerCount
	}
	workers := make([]*scheduler_steal.Worker, 0, n)
	for i := 0; i < n; i++ {
		workers = append(workers, s.newWorker())
	}
	s.workers.Store(&workers)
	for _, w := range workers {
		w.Run()
	}

	s.gate.Lock()
	s.state.Store(STATE_OPENED)
	s.gate.Unlock()

	s.options.Metrics.SetWorkers(n)
	s.options.Logger.V(logging.VERBOSE).Info("scheduler started", "workers", n, "distribution", s.options.Distribution.String())
	return nil
}

// Stop closes the scheduler and blocks until every worker has exited.
func (s *Scheduler) Stop() {
	_ = s.StopWithTimeout(0)
}

// StopWithTimeout closes the scheduler. Every live task settles as
// OutcomeShutdown before workers are asked to exit, so waiters never depend on
// the join. A non-positive timeout waits for the join without bound; otherwise
// ErrorStopTimeout is returned if some worker is still inside a callable when
// the timeout fires.
func (s *Scheduler) StopWithTimeout(timeout time.Duration) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.gate.Lock()
	if !s.Opened() {
		s.gate.Unlock()
		return nil
	}
	s.state.Store(STATE_CLOSED)
	live := s.tasks.drain()
	s.gate.Unlock()

	for _, j := range live {
		s.shutdown(j)
	}

	workers := s.Workers()
	s.workers.Store(nil)
	for _, w := range workers {
		w.Finish()
	}
	discarded := 0
	for _, w := range workers {
		for _, j := range w.Retire() {
			s.shutdown(j)
			discarded++
		}
	}

	joiner := context.NewContextWithCancel(stdctx.Background())
	joiner.Go(func(stdctx.Context) {
		for _, w := range workers {
			w.Join()
		}
	})
	joined := true
	if timeout > 0 {
		joined = joiner.StopWithTimeout(timeout)
	} else {
		joiner.Stop()
	}

	s.resetPending()
	s.options.Metrics.SetWorkers(0)
	s.options.Logger.V(logging.VERBOSE).Info("scheduler stopped", "settled", len(live), "discarded", discarded, "joined", joined)
	if !joined {
		return errors.ErrorStopTimeout
	}
	return nil
}

// Resize changes the number of workers while running. Shrinking retires the
// highest-indexed workers, waits for their current job, and moves whatever
// they still had queued onto the survivors.
func (s *Scheduler) Resize(n int) error {
	if n < 1 {
		return errors.ErrorInvalidWorkerCount
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.Opened() {
		return errors.ErrorSchedulerClosed
	}

	current := s.Workers()
	if n == len(current) {
		return nil
	}

	if n > len(current) {
		grown := make([]*scheduler_steal.Worker, len(current), n)
		copy(grown, current)
		for i := len(current); i < n; i++ {
			w := s.newWorker()
			grown = append(grown, w)
			w.Run()
		}
		s.gate.Lock()
		s.workers.Store(&grown)
		s.gate.Unlock()
		s.options.Metrics.SetWorkers(n)
		s.options.Logger.V(logging.VERBOSE).Info("scheduler resized", "from", len(current), "to", n)
		return nil
	}

	kept := make([]*scheduler_steal.Worker, n)
	copy(kept, current[:n])
	retired := current[n:]

	s.gate.Lock()
	s.workers.Store(&kept)
	s.gate.Unlock()

	var orphans []*scheduler_steal.Job
	for _, w := range retired {
		w.Finish()
		orphans = append(orphans, w.Retire()...)
	}
	for _, w := range retired {
		w.Join()
	}
	for i, j := range orphans {
		if err := s.pushTo(kept[i%len(kept)], j); err != nil {
			s.shutdown(j)
			s.finished()
		}
	}

	s.options.Metrics.SetWorkers(n)
	s.options.Logger.V(logging.VERBOSE).Info("scheduler resized", "from", len(current), "to", n, "moved", len(orphans))
	return nil
}

/* ------------------------------------------------- */
/* scheduler_steal.Scheduler */
/* ------------------------------------------------- */

// Workers returns the current worker snapshot. Callers must not modify it.
func (s *Scheduler) Workers() []*scheduler_steal.Worker {
	p := s.workers.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Finish is called by a worker once a claimed job has been executed or
// discarded.
func (s *Scheduler) Finish(w *scheduler_steal.Worker, j *scheduler_steal.Job) {
	outcome, _ := j.Outcome()
	ran := j.Completed() || j.Failed()
	if ran {
		s.stats.executed.Add(1)
		// Cancel and shutdown are counted where they settle.
		if outcome == OutcomeSuccess || outcome == OutcomeFailed {
			s.settled(outcome)
		}
	}
	if outcome == OutcomeFailed && j.Stack() == nil {
		s.options.Logger.V(logging.DEBUG).Info("job failed", "job", j.ID(), "detached", j.Detached(), "worker", w.ID(), "err", j.Err())
	}
	if s.Closed() {
		return
	}
	s.propagate(j, outcome == OutcomeSuccess)
	s.finished()
}

// Recover handles a panic recovered from a job, preferring the configured
// panic handler over logging.
func (s *Scheduler) Recover(w *scheduler_steal.Worker, j *scheduler_steal.Job, p any) {
	if ph := s.options.PanicHandler; ph != nil {
		ph(p)
		return
	}
	s.options.Logger.Error(j.Err(), "job panicked", "job", j.ID(), "detached", j.Detached(), "worker", w.ID(), "panic", p, "stack", string(j.Stack()))
}

func (s *Scheduler) Stolen(thief, victim *scheduler_steal.Worker) {
	s.stats.stolen.Add(1)
	s.options.Metrics.Stolen()
}

/* ------------------------------------------------- */
/* 状态 */
/* ------------------------------------------------- */

// Opened reports whether the scheduler accepts submissions.
func (s *Scheduler) Opened() bool {
	return s.state.Load() == STATE_OPENED
}

// Closed reports whether the scheduler is stopped.
func (s *Scheduler) Closed() bool {
	return s.state.Load() == STATE_CLOSED
}

// Pending returns the number of jobs submitted but not yet executed or
// discarded by a worker.
func (s *Scheduler) Pending() int64 {
	return s.pending.Load()
}

/* ------------------------------------------------- */
/* 内部 */
/* ------------------------------------------------- */

func (s *Scheduler) newWorker() *scheduler_steal.Worker {
	w := scheduler_steal.NewWorker(s.workerID, s, s.options.IdleSpins, s.options.ParkTimeout)
	s.workerID++
	return w
}

// enqueue places j on a worker chosen by the distribution policy. It retries
// with a fresh snapshot if the chosen worker was retired in between.
func (s *Scheduler) enqueue(j *scheduler_steal.Job) error {
	for {
		if s.Closed() {
			return errors.ErrorSchedulerClosed
		}
		workers := s.Workers()
		if len(workers) == 0 {
			return errors.ErrorSchedulerClosed
		}
		err := s.pushTo(workers[s.pick(len(workers))], j)
		if err == nil {
			return nil
		}
		if err != errors.ErrorWorkerRetired {
			return err
		}
	}
}

func (s *Scheduler) pushTo(w *scheduler_steal.Worker, j *scheduler_steal.Job) error {
	if err := w.Push(j); err != nil {
		return err
	}
	// The target may be busy; nudge one parked peer so it can steal.
	if !w.Parked() {
		for _, peer := range s.Workers() {
			if peer != w && peer.Parked() {
				peer.Signal()
				break
			}
		}
	}
	return nil
}

func (s *Scheduler) pick(n int) int {
	if n == 1 {
		return 0
	}
	if s.options.Distribution == DistributionRoundRobin {
		return int(s.cursor.Add(1) % uint64(n))
	}
	return rand.IntN(n)
}

func (s *Scheduler) shutdown(j *scheduler_steal.Job) {
	if j.Settle(OutcomeShutdown, errors.ErrorTaskShutdown) {
		s.settled(OutcomeShutdown)
	}
}

func (s *Scheduler) settled(outcome Outcome) {
	switch outcome {
	case OutcomeCanceled:
		s.stats.canceled.Add(1)
	case OutcomeFailed:
		s.stats.failed.Add(1)
	case OutcomeShutdown:
		s.stats.shutdown.Add(1)
	}
	s.options.Metrics.Settled(outcome.String())
}

func (s *Scheduler) submitted() {
	s.stats.submitted.Add(1)
	s.pending.Add(1)
	s.options.Metrics.Submitted()
}

// finished releases one pending slot and wakes batch waiters when the count
// reaches zero.
func (s *Scheduler) finished() {
	for {
		n := s.pending.Load()
		if n <= 0 {
			return
		}
		if s.pending.CompareAndSwap(n, n-1) {
			s.options.Metrics.Finished()
			if n == 1 {
				s.pendingLock.Lock()
				s.pendingCond.Broadcast()
				s.pendingLock.Unlock()
			}
			return
		}
	}
}

func (s *Scheduler) resetPending() {
	s.pendingLock.Lock()
	s.pending.Store(0)
	s.pendingCond.Broadcast()
	s.pendingLock.Unlock()
	s.options.Metrics.SetPending(0)
}

// jobTable maps handles to live records. blocked holds jobs still waiting on
// parents; they are not on any worker queue yet.
type jobTable struct {
	lock    *sync.RWMutex
	jobs    map[uint64]*scheduler_steal.Job
	blocked map[uint64]*scheduler_steal.Job
}

func newJobTable() *jobTable {
	return &jobTable{
		lock:    &sync.RWMutex{},
		jobs:    make(map[uint64]*scheduler_steal.Job),
		blocked: make(map[uint64]*scheduler_steal.Job),
	}
}

func (t *jobTable) put(j *scheduler_steal.Job) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.jobs[j.ID()] = j
}

func (t *jobTable) get(id uint64) *scheduler_steal.Job {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.jobs[id]
}

func (t *jobTable) remove(id uint64) {
	t.lock.Lock()
	defer t.lock.Unlock()
	delete(t.jobs, id)
}

func (t *jobTable) block(j *scheduler_steal.Job) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.blocked[j.ID()] = j
}

func (t *jobTable) waiting(id uint64) *scheduler_steal.Job {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.blocked[id]
}

func (t *jobTable) unblock(id uint64) *scheduler_steal.Job {
	t.lock.Lock()
	defer t.lock.Unlock()
	j := t.blocked[id]
	delete(t.blocked, id)
	return j
}

func (t *jobTable) len() int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return len(t.jobs)
}

func (t *jobTable) blockedLen() int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return len(t.blocked)
}

// drain empties both maps and returns every record they held.
func (t *jobTable) drain() []*scheduler_steal.Job {
	t.lock.Lock()
	defer t.lock.Unlock()
	out := make([]*scheduler_steal.Job, 0, len(t.jobs)+len(t.blocked))
	for _, j := range t.jobs {
		out = append(out, j)
	}
	for id, j := range t.blocked {
		if _, ok := t.jobs[id]; !ok {
			out = append(out, j)
		}
	}
	t.jobs = make(map[uint64]*scheduler_steal.Job)
	t.blocked = make(map[uint64]*scheduler_steal.Job)
	return out
}
