package turbojob

// Stats is a point-in-time snapshot of scheduler activity. Counters are
// cumulative over the scheduler's lifetime, across restarts.
type Stats struct {
	Workers    int
	Pending    int64 // submitted but not yet executed or discarded
	Live       int   // handles still in the table
	Blocked    int   // tasks waiting on parents
	QueueDepth []int // per worker, in worker order

	Submitted uint64
	Executed  uint64
	Stolen    uint64
	Canceled  uint64
	Failed    uint64
	Shutdown  uint64
}

// Stats returns scheduler statistics.
func (s *Scheduler) Stats() Stats {
	workers := s.Workers()
	depth := make([]int, len(workers))
	for i, w := range workers {
		depth[i] = w.Len()
	}
	return Stats{
		Workers:    len(workers),
		Pending:    s.pending.Load(),
		Live:       s.tasks.len(),
		Blocked:    s.tasks.blockedLen(),
		QueueDepth: depth,
		Submitted:  s.stats.submitted.Load(),
		Executed:   s.stats.executed.Load(),
		Stolen:     s.stats.stolen.Load(),
		Canceled:   s.stats.canceled.Load(),
		Failed:     s.stats.failed.Load(),
		Shutdown:   s.stats.shutdown.Load(),
	}
}
