package workerpool

import (
	"errors"
)

var (
	// ErrQueueFull is returned by non-blocking submission when the
	// buffer cannot accept more jobs.
	ErrQueueFull = errors.New("workerpool: queue is full")

	// ErrNilFunc is returned when a submitted Job has a nil Fn.
	ErrNilFunc = errors.New("workerpool: job func is nil")
)

// reportInternalError reports an internal pool error.
//
// Internal errors are non-job-related failures such as
// worker setup issues or unexpected runtime conditions.
// If no handler is registered, the error is silently ignored.
func (p *Pool[T]) reportInternalError(e error) {
	if p.onInternalError != nil {
		p.onInternalError(e)
	}
}

// reportJobError reports an error returned by a job's final attempt or
// produced by panic recovery.
//
// Job errors do not stop pool execution.
func (p *Pool[T]) reportJobError(err error) {
	if p.onJobError != nil {
		p.onJobError(err)
	}
}
