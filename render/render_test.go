package render

import (
	"sync"
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

type recordingPresenter struct {
	initErr    error
	presentErr error
	presents   atomic.Int32
	shutdown   atomic.Bool
}

func (p *recordingPresenter) Init() error { return p.initErr }

func (p *recordingPresenter) Present() error {
	p.presents.Add(1)
	return p.presentErr
}

func (p *recordingPresenter) Shutdown() { p.shutdown.Store(true) }

func newScheduler(t *testing.T) *turbojob.Scheduler {
	t.Helper()
	s := turbojob.New(turbojob.WithWorkers(4), turbojob.WithLogger(testr.New(t)), turbojob.WithPanicHandler(func(any) {}))
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)
	return s
}

func TestFramePhases(t *testing.T) {
	sched := newScheduler(t)
	sc := scene.New()

	var (
		mu     sync.Mutex
		phases []string
	)
	record := func(p string) {
		mu.Lock()
		phases = append(phases, p)
		mu.Unlock()
	}
	for _, name := range []string{"a", "b", "c"} {
		sc.Add(name, scene.Funcs{
			OnStart:      func() { record("start") },
			OnUpdate:     func(time.Duration) { record("update") },
			OnLateUpdate: func(time.Duration) { record("late") },
		})
	}

	presenter := &recordingPresenter{}
	sys := New(sched, sc, presenter, loop.NewVariable(), testr.New(t))

	require.NoError(t, sys.OnBegin())
	require.NoError(t, sys.OnIteration(loop.Step{Index: 0, Delta: 16 * time.Millisecond}))
	sys.OnEnd()

	assert.Equal(t, []string{
		"start", "start", "start",
		"update", "update", "update",
		"late", "late", "late",
	}, phases, "every update finishes before any late update")
	assert.Equal(t, int32(1), presenter.presents.Load())
	assert.Equal(t, uint64(1), sys.Frames())
	assert.True(t, presenter.shutdown.Load())
}

func TestFailingBehaviourDoesNotStopFrame(t *testing.T) {
	sched := newScheduler(t)
	sc := scene.New()
	sc.Add("bad", scene.Funcs{OnUpdate: func(time.Duration) { panic("boom") }})
	var late atomic.Int32
	sc.Add("good", scene.Funcs{OnLateUpdate: func(time.Duration) { late.Add(1) }})

	presenter := &recordingPresenter{}
	sys := New(sched, sc, presenter, loop.NewVariable(), testr.New(t))
	require.NoError(t, sys.OnIteration(loop.Step{}))
	assert.Equal(t, int32(1), late.Load())
	assert.Equal(t, int32(1), presenter.presents.Load())
	assert.Equal(t, uint64(1), sys.Failures())
}

func TestPresenterFailureStopsLoop(t *testing.T) {
	sched := newScheduler(t)
	presenter := &recordingPresenter{presentErr: assert.AnError}
	driver := loop.NewVariable()
	sys := New(sched, scene.New(), presenter, driver, testr.New(t))

	r := loop.NewRunner(Name, driver, sys, testr.New(t))
	require.NoError(t, r.Start())
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("render loop kept running after a presenter failure")
	}
	assert.ErrorIs(t, r.Stop(), assert.AnError)
	assert.True(t, presenter.shutdown.Load())
	assert.Zero(t, sys.Frames())
}

func TestPresenterInitFailure(t *testing.T) {
	sched := newScheduler(t)
	var started atomic.Int32
	sc := scene.New()
	sc.Add("a", scene.Funcs{OnStart: func() { started.Add(1) }})
	presenter := &recordingPresenter{initErr: assert.AnError}
	sys := New(sched, sc, presenter, loop.NewVariable(), testr.New(t))

	assert.ErrorIs(t, sys.OnBegin(), assert.AnError)
	assert.Zero(t, started.Load())
}

func TestNilPresenter(t *testing.T) {
	sys := New(newScheduler(t), scene.New(), nil, loop.NewVariable(), testr.New(t))
	require.NoError(t, sys.OnBegin())
	require.NoError(t, sys.OnIteration(loop.Step{}))
	sys.OnEnd()
}
