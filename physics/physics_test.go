package physics

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaohao-creator/turbojob"
	"github.com/gaohao-creator/turbojob/loop"
	"github.com/gaohao-creator/turbojob/scene"
)

func newScheduler(t *testing.T) *turbojob.Scheduler {
	t.Helper()
	s := turbojob.New(turbojob.WithWorkers(4), turbojob.WithLogger(testr.New(t)), turbojob.WithPanicHandler(func(any) {}))
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)
	return s
}

func TestFixedUpdateFansOut(t *testing.T) {
	sched := newScheduler(t)
	sc := scene.New()
	var (
		calls atomic.Int32
		dt    atomic.Int64
	)
	for i := 0; i < 50; i++ {
		sc.Add(string(rune('a'+i%26))+string(rune('0'+i/26)), scene.Funcs{
			OnFixedUpdate: func(d time.Duration) {
				dt.Store(int64(d))
				calls.Add(1)
			},
		})
	}
	sys := New(sched, sc, loop.NewFixed(DefaultTick, DefaultCatchUp), testr.New(t))

	require.NoError(t, sys.OnIteration(loop.Step{Delta: DefaultTick}))
	assert.Equal(t, int32(50), calls.Load(), "the tick joins every fixed update")
	assert.Equal(t, int64(DefaultTick), dt.Load())
	assert.Equal(t, uint64(1), sys.Ticks())
}

func TestFailureLoggedAndTickContinues(t *testing.T) {
	sched := newScheduler(t)
	sc := scene.New()
	sc.Add("bad", scene.Funcs{OnFixedUpdate: func(time.Duration) { panic("boom") }})
	var good atomic.Int32
	sc.Add("good", scene.Funcs{OnFixedUpdate: func(time.Duration) { good.Add(1) }})

	sys := New(sched, sc, loop.NewFixed(DefaultTick, DefaultCatchUp), testr.New(t))
	require.NoError(t, sys.OnIteration(loop.Step{Delta: DefaultTick}))
	require.NoError(t, sys.OnIteration(loop.Step{Index: 1, Delta: DefaultTick}))
	assert.Equal(t, int32(2), good.Load())
	assert.Equal(t, uint64(2), sys.Failures())
}

func TestRunsOnFixedLoop(t *testing.T) {
	sched := newScheduler(t)
	sc := scene.New()
	var calls atomic.Int32
	sc.Add("a", scene.Funcs{OnFixedUpdate: func(time.Duration) { calls.Add(1) }})

	driver := loop.NewFixed(time.Millisecond, DefaultCatchUp)
	sys := New(sched, sc, driver, testr.New(t))
	r := loop.NewRunner(Name, driver, sys, testr.New(t))
	require.NoError(t, r.Start())
	assert.Eventually(t, func() bool { return calls.Load() >= 10 }, 2*time.Second, time.Millisecond)
	require.NoError(t, r.Stop())
	assert.Equal(t, uint64(calls.Load()), sys.Ticks())
}
