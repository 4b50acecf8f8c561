//go:build unix

// Package procsignal delivers termination signals to a process by pid,
// insulating the Execution Loop and Cancellation Service from the
// POSIX/Windows split in how that is done.
package procsignal

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// Supported reports whether graceful (SIGTERM) termination is available on
// this platform.
const Supported = true

// Terminate sends SIGTERM to pid.
func Terminate(pid int) error {
	return unix.Kill(pid, syscall.SIGTERM)
}

// Kill sends SIGKILL to pid.
func Kill(pid int) error {
	return unix.Kill(pid, syscall.SIGKILL)
}
