package execloop

import (
	"strings"
	"testing"
	"time"

	"github.com/cairn-tools/enhancedterm/internal/jobs"
)

func TestRunCompletesSynchronouslyForFastCommand(t *testing.T) {
	registry := jobs.New()
	id := registry.Register("echo hello", "bash", ".", nil, nil, 16384)

	result := Run(id, "bash", "echo hello", ".", nil, registry, Options{
		AsyncThreshold: 5 * time.Second,
	})

	if result.Outcome != OutcomeCompleted {
		t.Fatalf("Outcome = %s, want %s", result.Outcome, OutcomeCompleted)
	}
	if result.ExitCode == nil || *result.ExitCode != 0 {
		t.Fatalf("ExitCode = %v, want 0", result.ExitCode)
	}
	if !strings.Contains(string(result.Output), "hello") {
		t.Errorf("Output = %q, want to contain %q", result.Output, "hello")
	}
}

func TestRunHandsOffPastAsyncThreshold(t *testing.T) {
	registry := jobs.New()
	id := registry.Register("sleep 2 && echo done", "bash", ".", nil, nil, 16384)

	result := Run(id, "bash", "sleep 2 && echo done", ".", nil, registry, Options{
		AsyncThreshold: 50 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
	})

	if result.Outcome != OutcomeHandoff {
		t.Fatalf("Outcome = %s, want %s", result.Outcome, OutcomeHandoff)
	}
	if result.JobID != id {
		t.Errorf("JobID = %s, want %s", result.JobID, id)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		meta, err := registry.Get(id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if meta.Status.Terminal() {
			if meta.Status != jobs.StatusCompleted {
				t.Errorf("final Status = %s, want %s", meta.Status, jobs.StatusCompleted)
			}
			full, err := registry.FullOutput(id)
			if err != nil {
				t.Fatalf("FullOutput: %v", err)
			}
			if !strings.Contains(string(full), "done") {
				t.Errorf("FullOutput = %q, want to contain %q", full, "done")
			}
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("job did not finalize within deadline")
}

func TestRunForceSyncWaitsPastThreshold(t *testing.T) {
	registry := jobs.New()
	id := registry.Register("sleep 1 && echo finished", "bash", ".", nil, nil, 16384)

	result := Run(id, "bash", "sleep 1 && echo finished", ".", nil, registry, Options{
		ForceSync:      true,
		AsyncThreshold: 50 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
	})

	if result.Outcome != OutcomeCompleted {
		t.Fatalf("Outcome = %s, want %s", result.Outcome, OutcomeCompleted)
	}
	if !strings.Contains(string(result.Output), "finished") {
		t.Errorf("Output = %q, want to contain %q", result.Output, "finished")
	}
}

func TestRunHardTimeoutKillsChild(t *testing.T) {
	registry := jobs.New()
	id := registry.Register("sleep 30", "bash", ".", nil, nil, 16384)

	result := Run(id, "bash", "sleep 30", ".", nil, registry, Options{
		ForceSync:    true,
		HardTimeout:  100 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	})

	if result.Outcome != OutcomeTimedOut {
		t.Fatalf("Outcome = %s, want %s", result.Outcome, OutcomeTimedOut)
	}
	if result.ExitCode != nil {
		t.Errorf("ExitCode = %v, want nil for a TimedOut job", *result.ExitCode)
	}

	meta, err := registry.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if meta.ExitCode != nil {
		t.Errorf("registry ExitCode = %v, want nil for a TimedOut job", *meta.ExitCode)
	}
}

func TestRunStreamNotifiesEachChunkInOrder(t *testing.T) {
	registry := jobs.New()
	id := registry.Register("printf 'a'; printf 'b'; printf 'c'", "bash", ".", nil, nil, 16384)

	var notified []byte
	result := Run(id, "bash", "printf 'a'; printf 'b'; printf 'c'", ".", nil, registry, Options{
		ForceSync: true,
		Notify: func(chunk []byte) {
			notified = append(notified, chunk...)
		},
	})

	if result.Outcome != OutcomeCompleted {
		t.Fatalf("Outcome = %s, want %s", result.Outcome, OutcomeCompleted)
	}
	if string(notified) != string(result.Output) {
		t.Errorf("notified = %q, result.Output = %q, want equal", notified, result.Output)
	}
}

func TestRunSpawnFailureFinalizesFailed(t *testing.T) {
	registry := jobs.New()
	id := registry.Register("echo hi", "this-shell-does-not-exist-anywhere", "/definitely/not/a/real/dir", nil, nil, 16384)

	result := Run(id, "this-shell-does-not-exist-anywhere", "echo hi", "/definitely/not/a/real/dir", nil, registry, Options{
		ForceSync: true,
	})

	if result.Outcome != OutcomeFailed {
		t.Fatalf("Outcome = %s, want %s", result.Outcome, OutcomeFailed)
	}
	meta, err := registry.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if meta.Status != jobs.StatusFailed {
		t.Errorf("Status = %s, want %s", meta.Status, jobs.StatusFailed)
	}
}
