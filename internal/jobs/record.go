// Package jobs implements the Job Registry: the process-wide, mutex-guarded
// store of JobRecords, the incremental/paginated output accessor, and the
// cancellation signal path. It is the only shared mutable state in the
// service; every mutation goes through a Registry method so that a raw
// *JobRecord never escapes the lock.
package jobs

import "time"

// Status is a JobRecord's lifecycle state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
	StatusCanceled  Status = "canceled"
	StatusDenied    Status = "denied"
)

// Terminal reports whether status is one of the absorbing states.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimedOut, StatusCanceled, StatusDenied:
		return true
	default:
		return false
	}
}

// JobRecord is one started command. The zero value is never valid outside
// the registry; callers only ever see copies produced by registry methods.
type JobRecord struct {
	ID           string
	Command      string
	Shell        string
	Cwd          string
	EnvOverrides map[string]string
	Tags         []string
	OutputLimit  int

	StartedAt  time.Time
	FinishedAt time.Time
	Status     Status
	ExitCode   *int
	PID        *int

	fullOutput      []byte
	readCursor      int
	cancelRequested bool
}

// Summary is the lightweight projection used by List — it structurally
// cannot carry full_output, which keeps listing cost bounded regardless of
// how much output a job has captured.
type Summary struct {
	ID            string
	Command       string
	CommandBrief  string
	Shell         string
	Cwd           string
	Tags          []string
	Status        Status
	ExitCode      *int
	PID           *int
	StartedAt     time.Time
	FinishedAt    time.Time
	DurationSecs  float64
	OutputPreview string
}

// Summarize trims command to its first 100 UTF-8 scalar values, appending an
// ellipsis when truncated, per the JobRecord.summary attribute contract.
func Summarize(command string) string {
	runes := []rune(command)
	if len(runes) <= 100 {
		return command
	}
	return string(runes[:100]) + "…"
}

func durationSecs(startedAt, finishedAt time.Time) float64 {
	if finishedAt.IsZero() {
		return time.Since(startedAt).Seconds()
	}
	return finishedAt.Sub(startedAt).Seconds()
}
