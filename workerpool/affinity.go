//go:build linux

package workerpool

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// PinToCPU restricts the calling OS thread to one CPU. Callers hold the
// thread with runtime.LockOSThread first.
func PinToCPU(cpu int) error {
	var set unix.CPUSet
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("sched_setaffinity cpu %d: %w", cpu, err)
	}
	return nil
}
