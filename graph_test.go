package turbojob

import (
	"context"
	stderrors "errors"
	"math/rand/v2"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaohao-creator/turbojob/errors"
)

func TestDependencyOrderingRandomGraphs(t *testing.T) {
	s := newStarted(t, WithWorkers(4))
	for graph := 0; graph < 50; graph++ {
		rng := rand.New(rand.NewPCG(uint64(graph), 0x5eed))
		n := 3 + rng.IntN(20)

		var seq atomic.Int64
		start := make([]atomic.Int64, n)
		end := make([]atomic.Int64, n)
		parents := make([][]int, n)
		handles := make([]Handle, n)

		for i := 0; i < n; i++ {
			if i >= 2 {
				// Most nodes get exactly two parents.
				k := 2
				if rng.IntN(4) == 0 {
					k = rng.IntN(2)
				}
				for _, p := range rng.Perm(i)[:k] {
					parents[i] = append(parents[i], p)
				}
			}
			deps := make([]Handle, len(parents[i]))
			for j, p := range parents[i] {
				deps[j] = handles[p]
			}
			h, err := s.SubmitAfter(func() {
				start[i].Store(seq.Add(1))
				if i%3 == 0 {
					runtime.Gosched()
				}
				end[i].Store(seq.Add(1))
			}, deps...)
			require.NoError(t, err)
			handles[i] = h
		}

		for i, h := range handles {
			require.Equal(t, OutcomeSuccess, s.Wait(h), "graph %d node %d", graph, i)
		}
		for child, ps := range parents {
			for _, p := range ps {
				assert.Greater(t, start[child].Load(), end[p].Load(),
					"graph %d: node %d started before parent %d finished", graph, child, p)
			}
		}
	}
	s.WaitAll()
	assert.Zero(t, s.Stats().Blocked)
}

func TestFailedParentCancelsDescendants(t *testing.T) {
	s := newStarted(t, WithWorkers(2), WithPanicHandler(func(any) {}))

	parent, err := s.SubmitErr(func() error { return assert.AnError })
	require.NoError(t, err)

	var calls atomic.Int32
	child, err := s.SubmitAfter(func() { calls.Add(1) }, parent)
	require.NoError(t, err)
	grandchild, err := s.SubmitAfter(func() { calls.Add(1) }, child)
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, s.Wait(parent))
	assert.Equal(t, OutcomeCanceled, s.Wait(child))
	assert.Equal(t, OutcomeCanceled, s.Wait(grandchild))
	s.WaitAll()
	assert.Zero(t, calls.Load())
	assert.Zero(t, s.Pending(), "cancelled dependents still release their pending slots")
}

func TestCancelledParentWaitsForCallable(t *testing.T) {
	s := newStarted(t, WithWorkers(2))

	gate := make(chan struct{})
	started := make(chan struct{})
	parent, err := s.Submit(func() {
		close(started)
		<-gate
	})
	require.NoError(t, err)
	<-started

	var calls atomic.Int32
	child, err := s.SubmitAfter(func() { calls.Add(1) }, parent)
	require.NoError(t, err)

	require.True(t, s.Cancel(parent))
	assert.Equal(t, OutcomeCanceled, s.Wait(parent))

	_, done := s.IsCompleted(child)
	assert.False(t, done, "child stays blocked while the parent callable is still running")

	close(gate)
	assert.Equal(t, OutcomeCanceled, s.Wait(child))
	assert.Zero(t, calls.Load())
}

func TestChildOfFinishedParent(t *testing.T) {
	s := newStarted(t, WithWorkers(2))
	parent, err := s.Submit(func() {})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, done := s.IsCompleted(parent)
		return done
	}, time.Second, time.Millisecond)

	var calls atomic.Int32
	child, err := s.SubmitAfter(func() { calls.Add(1) }, parent)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, s.Wait(child))
	assert.Equal(t, int32(1), calls.Load())
}

func TestSubmitAfterUnknownParent(t *testing.T) {
	s := newStarted(t, WithWorkers(1))
	_, err := s.SubmitAfter(func() {}, Handle(999))
	assert.ErrorIs(t, err, errors.ErrorTaskNotFound)
	assert.Zero(t, s.Pending(), "a rejected submission holds no pending slot")
}

func TestStopSettlesBlockedChildren(t *testing.T) {
	s := New(WithWorkers(1), WithLogger(testr.New(t)))
	require.NoError(t, s.Start())

	gate := make(chan struct{})
	defer close(gate)
	started := make(chan struct{})
	parent, err := s.Submit(func() {
		close(started)
		<-gate
	})
	require.NoError(t, err)
	<-started

	child, err := s.SubmitAfter(func() {}, parent)
	require.NoError(t, err)
	blocked := s.tasks.get(uint64(child))
	require.NotNil(t, blocked)

	assert.ErrorIs(t, s.StopWithTimeout(20*time.Millisecond), errors.ErrorStopTimeout)
	outcome, done := blocked.Outcome()
	assert.True(t, done)
	assert.Equal(t, OutcomeShutdown, outcome)
}

func TestErroringParentCancelsErrChildren(t *testing.T) {
	s := newStarted(t, WithWorkers(2))
	boom := stderrors.New("boom")

	gate := make(chan struct{})
	parent, err := s.SubmitErr(func() error {
		<-gate
		return boom
	})
	require.NoError(t, err)

	var calls atomic.Int32
	child, err := s.SubmitErrAfter(func() error {
		calls.Add(1)
		return nil
	}, parent)
	require.NoError(t, err)
	grandchild, err := s.SubmitErrAfter(func() error {
		calls.Add(1)
		return nil
	}, child)
	require.NoError(t, err)

	close(gate)
	outcome, err := s.WaitContext(context.Background(), parent)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, OutcomeCanceled, s.Wait(child))
	assert.Equal(t, OutcomeCanceled, s.Wait(grandchild))
	s.WaitAll()
	assert.Zero(t, calls.Load())
	assert.Zero(t, s.Pending())
}

func TestErrChildAfterSuccessfulParent(t *testing.T) {
	s := newStarted(t, WithWorkers(2))
	bad := stderrors.New("bad state")

	var order []string
	parent, err := s.SubmitErr(func() error {
		order = append(order, "parent")
		return nil
	})
	require.NoError(t, err)
	child, err := s.SubmitErrAfter(func() error {
		order = append(order, "child")
		return bad
	}, parent)
	require.NoError(t, err)

	outcome, err := s.WaitContext(context.Background(), child)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, bad)
	assert.Equal(t, OutcomeSuccess, s.Wait(parent))
	assert.Equal(t, []string{"parent", "child"}, order)
}

func TestSubmitErrAfterNilTask(t *testing.T) {
	s := newStarted(t, WithWorkers(1))
	parent, err := s.Submit(func() {})
	require.NoError(t, err)
	_, err = s.SubmitErrAfter(nil, parent)
	assert.ErrorIs(t, err, errors.ErrorNilTask)
}
