package turbojob

import "github.com/gaohao-creator/turbojob/scheduler_steal"

// Handle identifies a submitted task. Handles start at 1 and are never reused
// for the lifetime of a Scheduler.
type Handle uint64

// Outcome is the terminal state of a task as observed by a waiter.
type Outcome = scheduler_steal.Outcome

const (
	OutcomeSuccess  = scheduler_steal.OutcomeSuccess
	OutcomeCanceled = scheduler_steal.OutcomeCanceled
	OutcomeFailed   = scheduler_steal.OutcomeFailed
	OutcomeNotFound = scheduler_steal.OutcomeNotFound
	OutcomeShutdown = scheduler_steal.OutcomeShutdown
)
