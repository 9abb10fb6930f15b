package scheduler_steal

import (
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"
)

const (
	DefaultIdleSpins   = 64
	DefaultParkTimeout = time.Millisecond
)

// Worker owns one deque and one goroutine. Only the worker pops from the back
// of its own deque; peers steal from the front.
type Worker struct {
	id        int
	queue     *Deque[*Job]
	scheduler Scheduler // 这个worker受哪个scheduler控制

	_      cpu.CacheLinePad
	stop   atomic.Bool
	parked atomic.Bool
	_      cpu.CacheLinePad

	wake     chan struct{} // 有新任务时唤醒
	quit     chan struct{} // 停止信号
	exit     chan struct{} // run返回后关闭
	quitOnce sync.Once

	idleSpins   int
	parkTimeout time.Duration
}

func (w *Worker) ID() int { return w.id }

// Len returns the number of jobs queued on this worker.
func (w *Worker) Len() int { return w.queue.Len() }

// Push appends j to the back of the local deque. It fails once the worker has
// been retired.
func (w *Worker) Push(j *Job) error {
	if err := w.queue.PushBack(j); err != nil {
		return err
	}
	w.Signal()
	return nil
}

// PopLocal takes the most recently pushed job.
func (w *Worker) PopLocal() *Job {
	j, _ := w.queue.PopBack()
	return j
}

// Steal takes the oldest queued job.
func (w *Worker) Steal() *Job {
	j, _ := w.queue.PopFront()
	return j
}

// Signal wakes the worker if it is parked. It never blocks.
func (w *Worker) Signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Parked reports whether the worker is currently idle-waiting.
func (w *Worker) Parked() bool { return w.parked.Load() }

// Run starts the worker goroutine.
func (w *Worker) Run() {
	go w.run()
}

// Finish asks the worker to exit after its current job.
func (w *Worker) Finish() {
	w.stop.Store(true)
	w.quitOnce.Do(func() {
		close(w.quit)
	})
}

// Join blocks until the worker goroutine has returned.
func (w *Worker) Join() {
	<-w.exit
}

// Retire closes the local deque and returns the jobs nobody started.
func (w *Worker) Retire() []*Job {
	return w.queue.Retire()
}

func (w *Worker) run() {
	defer close(w.exit)

	timer := time.NewTimer(w.parkTimeout)
	timer.Stop()
	defer timer.Stop()

	idle := 0
	for !w.stop.Load() {
		j := w.PopLocal()
		if j == nil {
			j = w.steal()
		}
		if j == nil {
			idle++
			if idle <= w.idleSpins {
				runtime.Gosched()
				continue
			}
			w.park(timer)
			continue
		}
		idle = 0
		w.handle(j)
	}
}

// steal probes every peer once, in round-robin order starting just after
// self's position in the snapshot. IDs are not positions once the snapshot has
// been resized. A worker missing from the snapshot probes everyone.
func (w *Worker) steal() *Job {
	peers := w.scheduler.Workers()
	n := len(peers)
	self := slices.Index(peers, w)
	for i := 1; i <= n; i++ {
		victim := peers[(self+i)%n]
		if victim == w {
			continue
		}
		if j := victim.Steal(); j != nil {
			w.scheduler.Stolen(w, victim)
			return j
		}
	}
	return nil
}

func (w *Worker) park(timer *time.Timer) {
	w.parked.Store(true)
	defer w.parked.Store(false)

	// A push that raced with parked.Store may have missed us.
	if !w.queue.IsEmpty() {
		return
	}
	timer.Reset(w.parkTimeout)
	select {
	case <-w.wake:
	case <-w.quit:
	case <-timer.C:
	}
	timer.Stop()
}

func (w *Worker) handle(j *Job) {
	if !j.Claim() {
		return
	}
	if _, recovered := j.Execute(); recovered != nil {
		w.scheduler.Recover(w, j, recovered)
	}
	w.scheduler.Finish(w, j)
}

// Create a worker bound to a scheduler. It does not start until Run.
func NewWorker(id int, s Scheduler, idleSpins int, parkTimeout time.Duration) *Worker {
	if idleSpins < 0 {
		idleSpins = 0
	}
	if parkTimeout <= 0 {
		parkTimeout = DefaultParkTimeout
	}
	return &Worker{
		id:          id,
		queue:       NewDeque[*Job](64),
		scheduler:   s,
		wake:        make(chan struct{}, 1),
		quit:        make(chan struct{}),
		exit:        make(chan struct{}),
		idleSpins:   idleSpins,
		parkTimeout: parkTimeout,
	}
}
