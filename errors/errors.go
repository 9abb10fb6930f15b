package errors

import "errors"

var (
	// Deque Errors
	ErrorWorkerRetired = errors.New("worker retired")

	// Scheduler Errors
	ErrorSchedulerClosed    = errors.New("scheduler is closed")
	ErrorSchedulerOpened    = errors.New("scheduler is opened")
	ErrorStopTimeout        = errors.New("stop scheduler timeout")
	ErrorInvalidWorkerCount = errors.New("worker count must be at least 1")
	ErrorNilTask            = errors.New("task is nil")

	// Task Errors
	ErrorTaskNotFound = errors.New("task not found")
	ErrorTaskCanceled = errors.New("task canceled")
	ErrorTaskFailed   = errors.New("task failed")
	ErrorTaskShutdown = errors.New("task canceled by scheduler shutdown")

	// Loop Errors
	ErrorLoopRunning    = errors.New("loop is running")
	ErrorLoopNotRunning = errors.New("loop is not running")
	ErrorInvalidTick    = errors.New("tick duration must be positive")

	// Config Errors
	ErrorInvalidConfig = errors.New("invalid config")
)
