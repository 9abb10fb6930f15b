// Package metrics defines the Prometheus collectors for the scheduler and the
// timestep loops. Every method is safe on a nil receiver, so components can
// hold an optional *SchedulerMetrics or *LoopMetrics without guarding calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "turbojob"

	SchedulerSubsystem = "scheduler"
	LoopSubsystem      = "loop"
)

var (
	// FrameBuckets covers 100us to 1s, enough for 1000 Hz input ticks up to
	// badly stalled render frames.
	FrameBuckets = []float64{
		0.0001, 0.0005, 0.001, 0.002, 0.004, 0.008, 0.0167, 0.025, 0.033, 0.05, 0.1, 0.25, 0.5, 1,
	}
)

// SchedulerMetrics tracks job flow through one scheduler.
type SchedulerMetrics struct {
	submitted prometheus.Counter
	settled   *prometheus.CounterVec
	stolen    prometheus.Counter
	pending   prometheus.Gauge
	workers   prometheus.Gauge
}

// NewSchedulerMetrics creates the scheduler collectors and registers them on
// reg. A nil reg leaves them unregistered.
func NewSchedulerMetrics(reg prometheus.Registerer) (*SchedulerMetrics, error) {
	m := &SchedulerMetrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: SchedulerSubsystem,
			Name:      "jobs_submitted_total",
			Help:      "Jobs accepted by the scheduler.",
		}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: SchedulerSubsystem,
			Name:      "jobs_settled_total",
			Help:      "Jobs that reached a terminal state, by outcome.",
		}, []string{"outcome"}),
		stolen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: SchedulerSubsystem,
			Name:      "jobs_stolen_total",
			Help:      "Jobs taken from a peer worker's queue.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: SchedulerSubsystem,
			Name:      "jobs_pending",
			Help:      "Jobs submitted but not yet executed or discarded.",
		}),
		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: SchedulerSubsystem,
			Name:      "workers",
			Help:      "Live worker goroutines.",
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.submitted, m.settled, m.stolen, m.pending, m.workers} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *SchedulerMetrics) Submitted() {
	if m == nil {
		return
	}
	m.submitted.Inc()
	m.pending.Inc()
}

func (m *SchedulerMetrics) Settled(outcome string) {
	if m == nil {
		return
	}
	m.settled.WithLabelValues(outcome).Inc()
}

func (m *SchedulerMetrics) Finished() {
	if m == nil {
		return
	}
	m.pending.Dec()
}

func (m *SchedulerMetrics) Stolen() {
	if m == nil {
		return
	}
	m.stolen.Inc()
}

func (m *SchedulerMetrics) SetPending(n int64) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

func (m *SchedulerMetrics) SetWorkers(n int) {
	if m == nil {
		return
	}
	m.workers.Set(float64(n))
}

// LoopMetrics tracks one kind of timestep loop, labelled by loop name.
type LoopMetrics struct {
	iterations *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	frame      *prometheus.HistogramVec
}

// NewLoopMetrics creates the loop collectors and registers them on reg. A nil
// reg leaves them unregistered.
func NewLoopMetrics(reg prometheus.Registerer) (*LoopMetrics, error) {
	m := &LoopMetrics{
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: LoopSubsystem,
			Name:      "iterations_total",
			Help:      "Ticks or frames simulated.",
		}, []string{"loop"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: LoopSubsystem,
			Name:      "dropped_steps_total",
			Help:      "Fixed steps discarded because the loop fell behind its catch-up window.",
		}, []string{"loop"}),
		frame: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: LoopSubsystem,
			Name:      "frame_duration_seconds",
			Help:      "Wall-clock time between consecutive loop passes.",
			Buckets:   FrameBuckets,
		}, []string{"loop"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.iterations, m.dropped, m.frame} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *LoopMetrics) Iteration(loop string) {
	if m == nil {
		return
	}
	m.iterations.WithLabelValues(loop).Inc()
}

func (m *LoopMetrics) Dropped(loop string, steps int64) {
	if m == nil || steps <= 0 {
		return
	}
	m.dropped.WithLabelValues(loop).Add(float64(steps))
}

func (m *LoopMetrics) Frame(loop string, d time.Duration) {
	if m == nil {
		return
	}
	m.frame.WithLabelValues(loop).Observe(d.Seconds())
}
