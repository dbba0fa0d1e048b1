//go:build !linux

package workerpool

import "errors"

// PinToCPU is not supported outside Linux.
func PinToCPU(int) error {
	return errors.New("workerpool: cpu pinning is only supported on linux")
}
