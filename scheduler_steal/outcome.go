package scheduler_steal

import "github.com/gaohao-creator/turbojob/errors"

// Outcome is the terminal state a job settles into.
type Outcome int32

const (
	OutcomeSuccess  Outcome = iota // callable returned normally
	OutcomeCanceled                // cancelled before (or while) running
	OutcomeFailed                  // callable panicked or returned an error
	OutcomeNotFound                // handle unknown or already reaped
	OutcomeShutdown                // force-settled by scheduler shutdown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeCanceled:
		return "canceled"
	case OutcomeFailed:
		return "failed"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Err maps the outcome to its sentinel error, or nil for success.
func (o Outcome) Err() error {
	switch o {
	case OutcomeSuccess:
		return nil
	case OutcomeCanceled:
		return errors.ErrorTaskCanceled
	case OutcomeFailed:
		return errors.ErrorTaskFailed
	case OutcomeNotFound:
		return errors.ErrorTaskNotFound
	case OutcomeShutdown:
		return errors.ErrorTaskShutdown
	default:
		return errors.ErrorTaskNotFound
	}
}
