//go:build !windows

package watchdog

import (
	"errors"

	"golang.org/x/sys/unix"
)

func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to someone else.
	return !errors.Is(err, unix.ESRCH)
}

func parentPID() int {
	return unix.Getppid()
}
