package toolsurface

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cairn-tools/enhancedterm/internal/jobs"
	"github.com/cairn-tools/enhancedterm/internal/shellinfo"
)

func newTestServer() *Server {
	return New(jobs.New(), zap.NewNop(), nil, 5*time.Second, 0, "test-correlation")
}

func TestCallEnhancedTerminalRunsFastCommandSynchronously(t *testing.T) {
	s := newTestServer()
	result := s.Call("enhanced_terminal", map[string]interface{}{
		"command": "echo hello",
		"shell":   "bash",
	}, nil)

	if result.IsError {
		t.Fatalf("unexpected error result: %v", result.Payload)
	}
	if result.Payload["status"] != "completed" {
		t.Errorf("status = %v, want completed", result.Payload["status"])
	}
	output, _ := result.Payload["output"].(string)
	if output == "" {
		t.Error("expected non-empty output")
	}
}

func TestCallEnhancedTerminalDeniesDangerousCommand(t *testing.T) {
	s := newTestServer()
	result := s.Call("enhanced_terminal", map[string]interface{}{
		"command": "rm -rf /",
	}, nil)

	if result.Payload["status"] != "denied" {
		t.Fatalf("status = %v, want denied", result.Payload["status"])
	}
	if _, hasJobID := result.Payload["job_id"]; hasJobID {
		t.Error("denied response must not carry a job_id")
	}
}

func TestCallJobStatusUnknownJobIsError(t *testing.T) {
	s := newTestServer()
	result := s.Call("enhanced_terminal_job_status", map[string]interface{}{"job_id": "job-999"}, nil)
	if !result.IsError {
		t.Error("expected an error result for an unknown job id")
	}
}

func TestCallJobStatusFullModeBoundsToOutputLimit(t *testing.T) {
	s := newTestServer()
	run := s.Call("enhanced_terminal", map[string]interface{}{
		"command":      "head -c 10000 /dev/zero | tr '\\0' 'a'",
		"output_limit": 1000,
		"force_sync":   true,
	}, nil)
	jobID, _ := run.Payload["job_id"].(string)
	if jobID == "" {
		t.Fatalf("expected a job_id, got %v", run.Payload)
	}

	result := s.Call("enhanced_terminal_job_status", map[string]interface{}{
		"job_id":      jobID,
		"incremental": false,
	}, nil)
	output, _ := result.Payload["output"].(string)
	if len(output) > 1000 {
		t.Errorf("full-mode output length = %d, want bounded to output_limit 1000", len(output))
	}
}

func TestCallJobListReturnsCompletedJob(t *testing.T) {
	s := newTestServer()
	s.Call("enhanced_terminal", map[string]interface{}{"command": "echo hi"}, nil)

	result := s.Call("enhanced_terminal_job_list", map[string]interface{}{}, nil)
	jobsList, ok := result.Payload["jobs"].([]map[string]any)
	if !ok || len(jobsList) != 1 {
		t.Fatalf("jobs = %v, want exactly one entry", result.Payload["jobs"])
	}
}

func TestCallJobDeleteRefusesUnknownJob(t *testing.T) {
	s := newTestServer()
	result := s.Call("enhanced_terminal_job_delete", map[string]interface{}{"job_id": "job-42"}, nil)
	if !result.IsError {
		t.Error("expected an error deleting an unknown job")
	}
}

func TestCallUnknownToolNameIsError(t *testing.T) {
	s := newTestServer()
	result := s.Call("not_a_real_tool", map[string]interface{}{}, nil)
	if !result.IsError {
		t.Error("expected an error for an unknown tool name")
	}
}

func TestListToolsCoversEveryToolName(t *testing.T) {
	s := newTestServer()
	schemas := s.ListTools()
	if len(schemas) != len(ToolNames) {
		t.Fatalf("len(schemas) = %d, want %d", len(schemas), len(ToolNames))
	}
	for i, name := range ToolNames {
		if schemas[i]["name"] != name {
			t.Errorf("schemas[%d].name = %v, want %q", i, schemas[i]["name"], name)
		}
	}
}

func TestInitializeMentionsDiscoveredShells(t *testing.T) {
	registry := jobs.New()
	shells := []shellinfo.Shell{{Name: "bash", Path: "/bin/bash", Version: "5.2"}}
	s := New(registry, zap.NewNop(), shells, 5*time.Second, 0, "test")
	result := s.Initialize("")
	if result["protocolVersion"] != "2024-11-05" {
		t.Errorf("protocolVersion = %v, want default", result["protocolVersion"])
	}
	instructions, _ := result["instructions"].(string)
	if !strings.Contains(instructions, "bash (5.2)") {
		t.Errorf("instructions = %q, want it to mention the discovered shell %q", instructions, "bash (5.2)")
	}
}
