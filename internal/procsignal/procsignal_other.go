//go:build !unix

package procsignal

import (
	"fmt"
	"os"
)

// Supported reports whether graceful (SIGTERM) termination is available on
// this platform. Windows has no portable equivalent to SIGTERM; callers
// that require graceful termination (the Cancellation Service) must report
// this limitation rather than silently hard-killing.
const Supported = false

// Terminate is unsupported on this platform.
func Terminate(pid int) error {
	return fmt.Errorf("graceful termination is unsupported on this platform")
}

// Kill forcibly ends the process, used only by the hard-timeout path, which
// (unlike cancellation) is not excluded by the Non-goals.
func Kill(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return process.Kill()
}
