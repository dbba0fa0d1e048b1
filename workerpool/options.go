package workerpool

import (
	"runtime"
)

// Options configure a worker Pool.
//
// All zero values are replaced with sensible defaults in FillDefaults.
type Options struct {
	// Workers is the number of worker goroutines. Defaults to GOMAXPROCS.
	Workers int

	// QueueSize is the capacity of the submission buffer.
	// Defaults to twice the number of workers.
	QueueSize int

	// Retry is the default retry policy applied to jobs that do not carry
	// their own.
	Retry RetryPolicy

	// PinWorkers locks each worker to an OS thread restricted to one CPU.
	// Only honored on Linux.
	PinWorkers bool

	// Metrics receives job counters. Defaults to NoopMetrics.
	Metrics MetricsPolicy

	OnJobError      func(error)
	OnInternalError func(error)
}

func (o *Options) FillDefaults() {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.QueueSize <= 0 {
		o.QueueSize = o.Workers * 2
	}
	if o.Retry.Attempts <= 0 {
		o.Retry.Attempts = defaultAttempts
	}
	if o.Retry.Initial <= 0 {
		o.Retry.Initial = defaultInitialRetry
	}
	if o.Retry.Max <= 0 {
		o.Retry.Max = defaultMaxRetry
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
}
