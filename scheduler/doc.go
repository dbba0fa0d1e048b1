// Package scheduler decides which animation frames get their geometry built,
// and when.
//
// The frame loop calls Advance once per display frame with a non-decreasing
// frame timestamp. Advance never waits for geometry: it submits work to an
// Executor and returns a finished mesh when one is due, or nil.
//
// Two policies implement Generator. Scheduler (PolicyLookahead) keeps up to
// MaxWindow frames in flight ahead of the display. Latest (PolicyLatest)
// builds only the most recently requested frame, one at a time.
package scheduler
