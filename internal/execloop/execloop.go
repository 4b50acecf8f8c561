// Package execloop implements the Execution Loop: the cooperative,
// single-threaded scheduler that drives one command from spawn to either
// synchronous completion or a handoff to a background continuation. The
// loop never performs a blocking PTY read itself — a dedicated goroutine
// does that and forwards chunks over a channel, and the loop races
// receiving from that channel against a fixed poll interval so that the
// async-threshold and hard-timeout checks are never starved by a quiet
// child process.
package execloop

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cairn-tools/enhancedterm/internal/diag"
	"github.com/cairn-tools/enhancedterm/internal/jobs"
	"github.com/cairn-tools/enhancedterm/internal/procsignal"
	"github.com/cairn-tools/enhancedterm/internal/ptyrun"
)

// DefaultPollInterval is the maximum interval between two consecutive
// evaluations of the async-threshold and hard-timeout checks.
const DefaultPollInterval = 100 * time.Millisecond

// instantThreshold is the "~instant" effective async threshold used for
// streaming calls, per §4.D step 1.
const instantThreshold = 50 * time.Millisecond

// hardTimeoutGrace is how long the loop waits after SIGTERM before
// escalating to SIGKILL on a hard-timeout kill.
const hardTimeoutGrace = 3 * time.Second

// Outcome mirrors the terminal (or handoff) shape of a Result.
type Outcome string

const (
	OutcomeCompleted Outcome = Outcome(jobs.StatusCompleted)
	OutcomeFailed    Outcome = Outcome(jobs.StatusFailed)
	OutcomeTimedOut  Outcome = Outcome(jobs.StatusTimedOut)
	OutcomeHandoff   Outcome = "switched_to_background"
)

// Options configures one Run call.
type Options struct {
	ForceSync      bool
	Stream         bool
	AsyncThreshold time.Duration
	HardTimeout    time.Duration // 0 disables the hard timeout
	PollInterval   time.Duration // 0 uses DefaultPollInterval
	OutputLimit    int

	// Notify, if non-nil, is invoked once per output chunk in the exact
	// order chunks were appended to the registry — the streaming
	// notification path.
	Notify func(chunk []byte)
	Logger *zap.Logger
}

// Result is the synchronous tool-call response.
type Result struct {
	Outcome       Outcome
	JobID         string
	ExitCode      *int
	DurationSecs  float64
	Output        []byte
	Truncated     bool
	PreviewOutput []byte
}

type readMsg struct {
	data []byte
	err  error
}

// Run spawns the command via the PTY Runner and drives it to completion or
// handoff. Preconditions (per §4.D): the Denylist Matcher has already
// approved the command and registry.Register has already created id with
// status Running.
func Run(id, shell, command, cwd string, envOverrides map[string]string, registry *jobs.Registry, opts Options) Result {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	if constructs := diag.Constructs(command); len(constructs) > 0 {
		logger.Debug("shell constructs detected", zap.String("job_id", id), zap.Strings("constructs", constructs))
	}

	session, err := ptyrun.Spawn(shell, command, cwd, envOverrides)
	if err != nil {
		return finalizeSpawnFailure(id, registry, err)
	}
	if setErr := registry.SetPID(id, session.PID); setErr != nil {
		logger.Warn("set pid failed", zap.String("job_id", id), zap.Error(setErr))
	}

	readerCh := make(chan readMsg, 16)
	go readLoop(session, readerCh)

	startedAt := time.Now()
	effectiveThreshold := opts.AsyncThreshold
	if opts.ForceSync || opts.Stream {
		effectiveThreshold = instantThreshold
	}

	state := &driveState{
		id:           id,
		registry:     registry,
		session:      session,
		readerCh:     readerCh,
		startedAt:    startedAt,
		pollInterval: pollInterval,
		hardTimeout:  opts.HardTimeout,
		notify:       opts.Notify,
		logger:       logger,
	}

	handedOff := state.drive(func(elapsed time.Duration) bool {
		return !opts.ForceSync && elapsed > effectiveThreshold
	})

	if handedOff {
		partial, _ := registry.FullOutput(id)
		// Streaming notifications belong to the synchronous phase only: the
		// background continuation keeps appending to the registry but
		// notifies no one once the handoff response has been returned.
		state.notify = nil
		go func() {
			state.drive(nil)
		}()
		return Result{
			Outcome:      OutcomeHandoff,
			JobID:        id,
			DurationSecs: time.Since(startedAt).Seconds(),
			Output:       partial,
		}
	}

	return state.syncResult(opts.OutputLimit)
}

// driveState carries everything one call to drive needs, so the foreground
// loop and the background continuation it hands off to can share the exact
// same stepping logic.
type driveState struct {
	id           string
	registry     *jobs.Registry
	session      *ptyrun.Session
	readerCh     chan readMsg
	startedAt    time.Time
	pollInterval time.Duration
	hardTimeout  time.Duration
	notify       func([]byte)
	logger       *zap.Logger

	finalStatus jobs.Status
	finalExit   *int
}

// drive runs the channel-or-poll-interval race until either shouldHandoff
// reports true (only consulted when non-nil — the background continuation
// passes nil so it can never hand off a second time) or the reader channel
// closes, at which point it reaps the child and finalizes the registry
// record. It returns true only in the handoff case.
func (s *driveState) drive(shouldHandoff func(time.Duration) bool) bool {
	var timedOut bool
	var termSentAt time.Time
	var killSent bool

	for {
		elapsed := time.Since(s.startedAt)

		if s.hardTimeout > 0 && !timedOut && elapsed > s.hardTimeout {
			timedOut = true
			termSentAt = time.Now()
			if s.session.PID > 0 {
				if err := procsignal.Terminate(s.session.PID); err != nil {
					s.logger.Debug("terminate failed", zap.String("job_id", s.id), zap.Error(err))
				}
			}
		}
		if timedOut && !killSent && time.Since(termSentAt) > hardTimeoutGrace {
			killSent = true
			if s.session.PID > 0 {
				if err := procsignal.Kill(s.session.PID); err != nil {
					s.logger.Debug("kill failed", zap.String("job_id", s.id), zap.Error(err))
				}
			}
		}

		if !timedOut && shouldHandoff != nil && shouldHandoff(elapsed) {
			return true
		}

		select {
		case msg, open := <-s.readerCh:
			if !open {
				s.finalize(timedOut)
				return false
			}
			if len(msg.data) > 0 {
				if err := s.registry.AppendOutput(s.id, msg.data); err != nil {
					s.logger.Warn("append output failed", zap.String("job_id", s.id), zap.Error(err))
				}
				if s.notify != nil {
					s.notify(msg.data)
				}
			}
			if msg.err != nil {
				s.finalize(timedOut)
				return false
			}
		case <-time.After(s.pollInterval):
		}
	}
}

func (s *driveState) finalize(timedOut bool) {
	waitErr := s.session.Cmd.Wait()
	_ = s.session.Close()

	var status jobs.Status
	var exitCode *int
	switch {
	case timedOut:
		// A TimedOut job was killed by SIGTERM/SIGKILL, not run to a normal
		// exit — per §3, exit_code is present only for Completed or Failed.
		status = jobs.StatusTimedOut
	case waitErr == nil:
		status = jobs.StatusCompleted
		code := extractExitCode(waitErr)
		exitCode = &code
	default:
		status = jobs.StatusFailed
		code := extractExitCode(waitErr)
		exitCode = &code
	}
	if err := s.registry.Finalize(s.id, status, exitCode); err != nil {
		s.logger.Warn("finalize failed", zap.String("job_id", s.id), zap.Error(err))
	}

	// Finalize may have forced status to Canceled (and cleared exitCode)
	// regardless of what was passed above — re-read the registry's record
	// rather than trust the locally computed values, so the synchronous
	// Result always matches what job_status would report for this job.
	if meta, err := s.registry.Get(s.id); err == nil {
		status = meta.Status
		exitCode = meta.ExitCode
	}
	s.finalStatus = status
	s.finalExit = exitCode
}

func (s *driveState) syncResult(outputLimit int) Result {
	full, _ := s.registry.FullOutput(s.id)
	preview, truncated := boundPreview(full, outputLimit)
	result := Result{
		Outcome:      Outcome(s.finalStatus),
		JobID:        s.id,
		ExitCode:     s.finalExit,
		DurationSecs: time.Since(s.startedAt).Seconds(),
		Output:       preview,
		Truncated:    truncated,
	}
	if truncated {
		result.PreviewOutput = preview
	}
	return result
}

func readLoop(session *ptyrun.Session, out chan<- readMsg) {
	buf := make([]byte, 4096)
	for {
		n, err := session.Master.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			out <- readMsg{data: chunk}
		}
		if err != nil {
			out <- readMsg{err: err}
			close(out)
			return
		}
	}
}

func finalizeSpawnFailure(id string, registry *jobs.Registry, spawnErr error) Result {
	message := fmt.Sprintf("spawn failed: %v\n", spawnErr)
	_ = registry.AppendOutput(id, []byte(message))
	exitCode := 1
	_ = registry.Finalize(id, jobs.StatusFailed, &exitCode)
	return Result{
		Outcome:  OutcomeFailed,
		JobID:    id,
		ExitCode: &exitCode,
		Output:   []byte(message),
	}
}

func extractExitCode(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	var exitError *exec.ExitError
	if errors.As(waitErr, &exitError) {
		if status, ok := exitError.Sys().(syscall.WaitStatus); ok {
			return status.ExitStatus()
		}
		segments := strings.Split(exitError.Error(), "exit status ")
		if len(segments) > 1 {
			if parsed, err := strconv.Atoi(strings.TrimSpace(segments[len(segments)-1])); err == nil {
				return parsed
			}
		}
		return 1
	}
	return 1
}

func boundPreview(full []byte, outputLimit int) (preview []byte, truncated bool) {
	if outputLimit <= 0 || outputLimit >= len(full) {
		return full, false
	}
	return full[:outputLimit], true
}
