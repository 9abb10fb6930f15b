package turbojob

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"
)

const (
	BatchSize  = 1e4
	BenchParam = 64
)

var benchSink uint64

// spin burns a little CPU so jobs are not pure dispatch overhead.
func spin(n int) uint64 {
	var x uint64 = 1
	for i := 0; i < n; i++ {
		x = x*6364136223846793005 + 1442695040888963407
	}
	return x
}

func BenchmarkDirectGoroutine(b *testing.B) {
	b.ReportAllocs()
	var counter uint64
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		var wg sync.WaitGroup
		wg.Add(BatchSize)
		for j := 0; j < BatchSize; j++ {
			go func() {
				atomic.AddUint64(&counter, spin(BenchParam)&1)
				wg.Done()
			}()
		}
		wg.Wait()
	}
	benchSink = atomic.LoadUint64(&counter)
}

func BenchmarkErrGroup(b *testing.B) {
	b.ReportAllocs()
	var counter uint64
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))
		for j := 0; j < BatchSize; j++ {
			g.Go(func() error {
				atomic.AddUint64(&counter, spin(BenchParam)&1)
				return nil
			})
		}
		_ = g.Wait()
	}
	benchSink = atomic.LoadUint64(&counter)
}

func benchmarkSpawn(b *testing.B, distribution Distribution) {
	s := New(WithDistribution(distribution))
	if err := s.Start(); err != nil {
		b.Fatal(err)
	}
	defer s.Stop()

	b.ReportAllocs()
	var counter uint64
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j := 0; j < BatchSize; j++ {
			_ = s.Spawn(func() {
				atomic.AddUint64(&counter, spin(BenchParam)&1)
			})
		}
		s.WaitAll()
	}
	b.StopTimer()
	benchSink = atomic.LoadUint64(&counter)
	b.ReportMetric(float64(s.Stats().Stolen)/float64(b.N), "steals/op")
}

func BenchmarkSchedulerSpawnRandom(b *testing.B) {
	benchmarkSpawn(b, DistributionRandom)
}

func BenchmarkSchedulerSpawnRoundRobin(b *testing.B) {
	benchmarkSpawn(b, DistributionRoundRobin)
}

func BenchmarkSchedulerExecuteBatch(b *testing.B) {
	s := New()
	if err := s.Start(); err != nil {
		b.Fatal(err)
	}
	defer s.Stop()

	var counter uint64
	fns := make([]func(), BatchSize)
	for j := range fns {
		fns[j] = func() {
			atomic.AddUint64(&counter, spin(BenchParam)&1)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if outcome := s.ExecuteBatch(fns); outcome != OutcomeSuccess {
			b.Fatalf("batch outcome %s", outcome)
		}
	}
	benchSink = atomic.LoadUint64(&counter)
}

// BenchmarkSchedulerFanIn submits wide layers where every job of a layer
// depends on one join job of the previous layer.
func BenchmarkSchedulerFanIn(b *testing.B) {
	s := New()
	if err := s.Start(); err != nil {
		b.Fatal(err)
	}
	defer s.Stop()

	const layers, width = 10, BatchSize / 10
	var counter uint64
	job := func() { atomic.AddUint64(&counter, spin(BenchParam)&1) }

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var join Handle
		all := make([]Handle, 0, layers*(width+1))
		for l := 0; l < layers; l++ {
			parents := make([]Handle, 0, width)
			for w := 0; w < width; w++ {
				var (
					h   Handle
					err error
				)
				if join == 0 {
					h, err = s.Submit(job)
				} else {
					h, err = s.SubmitAfter(job, join)
				}
				if err != nil {
					b.Fatal(err)
				}
				parents = append(parents, h)
			}
			next, err := s.SubmitAfter(job, parents...)
			if err != nil {
				b.Fatal(err)
			}
			all = append(all, parents...)
			all = append(all, next)
			join = next
		}
		for _, h := range all {
			if outcome := s.Wait(h); outcome != OutcomeSuccess {
				b.Fatalf("outcome %s", outcome)
			}
		}
	}
	benchSink = atomic.LoadUint64(&counter)
}
