package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewSchedulerMetrics(reg)
	require.NoError(t, err)

	m.Submitted()
	m.Submitted()
	m.Submitted()
	m.Finished()
	m.Settled("success")
	m.Settled("failed")
	m.Settled("success")
	m.Stolen()
	m.SetWorkers(4)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.submitted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pending))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.settled.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stolen))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.workers))

	m.SetPending(0)
	assert.Zero(t, testutil.ToFloat64(m.pending))

	expected := `
# HELP turbojob_scheduler_jobs_settled_total Jobs that reached a terminal state, by outcome.
# TYPE turbojob_scheduler_jobs_settled_total counter
turbojob_scheduler_jobs_settled_total{outcome="failed"} 1
turbojob_scheduler_jobs_settled_total{outcome="success"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "turbojob_scheduler_jobs_settled_total"))
}

func TestSchedulerMetricsDoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewSchedulerMetrics(reg)
	require.NoError(t, err)
	_, err = NewSchedulerMetrics(reg)
	assert.Error(t, err)
}

func TestLoopMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewLoopMetrics(reg)
	require.NoError(t, err)

	m.Iteration("physics")
	m.Iteration("physics")
	m.Dropped("physics", 5)
	m.Dropped("physics", 0)
	m.Frame("render", 16*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.iterations.WithLabelValues("physics")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.dropped.WithLabelValues("physics")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.frame, "turbojob_loop_frame_duration_seconds"))
}

func TestNilSafe(t *testing.T) {
	var s *SchedulerMetrics
	var l *LoopMetrics
	assert.NotPanics(t, func() {
		s.Submitted()
		s.Settled("success")
		s.Finished()
		s.Stolen()
		s.SetPending(1)
		s.SetWorkers(1)
		l.Iteration("x")
		l.Dropped("x", 1)
		l.Frame("x", time.Second)
	})
}

func TestUnregistered(t *testing.T) {
	m, err := NewSchedulerMetrics(nil)
	require.NoError(t, err)
	m.Submitted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submitted))
}
