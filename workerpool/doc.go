// Package workerpool provides the fixed-size goroutine pool that runs
// geometry generation off the render loop.
//
// # Architecture overview
//
// A Pool owns a buffered submission channel and a fixed number of workers.
// Workers pull jobs one at a time and run them to completion. There is no
// preemption: a job that is no longer wanted still finishes and its caller
// is expected to discard the result.
//
// # Job lifecycle
//
// Jobs carry their payload, execution function, optional context,
// optional cleanup logic and an optional retry policy. A job whose final
// attempt fails, or that panics, is reported through Options.OnJobError.
// Panics are recovered so a single bad job never takes a worker down.
//
// # Retries
//
// Failed attempts are retried with exponential backoff. The job context
// cancels a pending backoff. Execute submits closures with a single
// attempt, which is what callers that own their own failure policy want.
//
// # Shutdown
//
// Shutdown closes the pool to new work, lets workers drain everything that
// was already queued and waits for them, bounded by the caller's context.
//
// # CPU pinning
//
// On Linux, workers may optionally be pinned to specific CPUs.
// When enabled, workers are locked to OS threads and restricted
// to run on a single CPU core.
//
// # Alternative backend
//
// DynamicExecutor exposes the same Execute, TryExecute and Shutdown methods on top of the
// automation DynamicWorkerPool.
package workerpool
