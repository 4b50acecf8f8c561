// Package cancel implements the Cancellation Service: delivering a
// termination signal to a running job's process. The actual transition to
// Canceled happens later, inside the Execution Loop's finalize path, once
// the reader channel closes and the child has been reaped — Cancel only
// ever requests that transition and signals the process.
package cancel

import (
	"fmt"

	"github.com/cairn-tools/enhancedterm/internal/jobs"
	"github.com/cairn-tools/enhancedterm/internal/procsignal"
)

// Cancel looks up id and, if it is Running, marks it for cancellation and
// sends SIGTERM to its pid. If the job is not Running, it reports
// canceled=false without an error — "already finished" is not a failure.
// On platforms without a portable termination signal (Windows), it always
// reports canceled=false with an explanatory reason and leaves the job
// running, per the documented platform limitation.
func Cancel(id string, registry *jobs.Registry) (canceled bool, reason string, err error) {
	meta, err := registry.Get(id)
	if err != nil {
		return false, "", err
	}
	if meta.Status != jobs.StatusRunning {
		return false, "job already finished", nil
	}
	if !procsignal.Supported {
		return false, "cancellation is unsupported on this platform", nil
	}

	pid, hasPID, alreadyFinished, err := registry.RequestCancel(id)
	if err != nil {
		return false, "", err
	}
	if alreadyFinished {
		return false, "job already finished", nil
	}
	if !hasPID {
		return false, "job has no associated process id yet", nil
	}
	if termErr := procsignal.Terminate(pid); termErr != nil {
		return false, fmt.Sprintf("failed to signal process: %v", termErr), nil
	}
	return true, "", nil
}
