package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cairn-tools/enhancedterm/internal/jobs"
	"github.com/cairn-tools/enhancedterm/internal/toolsurface"
)

func newTestServer() *toolsurface.Server {
	return toolsurface.New(jobs.New(), zap.NewNop(), nil, 5*time.Second, 0, "test-correlation")
}

func TestServeHandlesInitializeAndToolsList(t *testing.T) {
	input := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"tools/list"}` + "\n",
	)
	var output bytes.Buffer
	if err := serve(newTestServer(), zap.NewNop(), input, &output); err != nil {
		t.Fatalf("serve: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d response lines, want 2: %q", len(lines), output.String())
	}

	var initResponse map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &initResponse); err != nil {
		t.Fatalf("unmarshal initialize response: %v", err)
	}
	result, ok := initResponse["result"].(map[string]any)
	if !ok || result["protocolVersion"] != "2024-11-05" {
		t.Errorf("initialize result = %v, want protocolVersion 2024-11-05", initResponse["result"])
	}

	var toolsResponse map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &toolsResponse); err != nil {
		t.Fatalf("unmarshal tools/list response: %v", err)
	}
	toolsResult, ok := toolsResponse["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected tools/list result map")
	}
	tools, ok := toolsResult["tools"].([]any)
	if !ok || len(tools) != len(toolsurface.ToolNames) {
		t.Fatalf("tools = %v, want %d entries", toolsResult["tools"], len(toolsurface.ToolNames))
	}
}

func TestServeHandlesToolsCallForEnhancedTerminal(t *testing.T) {
	input := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"enhanced_terminal","arguments":{"command":"echo hi"}}}` + "\n",
	)
	var output bytes.Buffer
	if err := serve(newTestServer(), zap.NewNop(), input, &output); err != nil {
		t.Fatalf("serve: %v", err)
	}

	// Streaming notifications for the command's output precede the
	// tools/call response, which is always the last line written.
	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	var response map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &response); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	result, ok := response["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected tools/call result map, got %v", response["result"])
	}
	if result["isError"] == true {
		t.Errorf("unexpected isError=true: %v", result)
	}
}

func TestServeRunsConcurrentToolsCallsRatherThanSerially(t *testing.T) {
	input := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"enhanced_terminal","arguments":{"command":"sleep 0.3"}}}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"enhanced_terminal","arguments":{"command":"sleep 0.3"}}}` + "\n",
	)
	var output bytes.Buffer
	started := time.Now()
	if err := serve(newTestServer(), zap.NewNop(), input, &output); err != nil {
		t.Fatalf("serve: %v", err)
	}
	elapsed := time.Since(started)
	if elapsed > 550*time.Millisecond {
		t.Errorf("serve took %v, want well under the serial sum (~600ms) since both sleeps should run concurrently", elapsed)
	}

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d response lines, want 2: %q", len(lines), output.String())
	}
}

func TestServeStopsOnExitMethod(t *testing.T) {
	input := strings.NewReader(`{"jsonrpc":"2.0","method":"exit"}` + "\n" + `{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n")
	var output bytes.Buffer
	if err := serve(newTestServer(), zap.NewNop(), input, &output); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if output.Len() != 0 {
		t.Errorf("expected no output after an immediate exit, got %q", output.String())
	}
}

func TestServeSkipsNotificationsInitialized(t *testing.T) {
	input := strings.NewReader(`{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n")
	var output bytes.Buffer
	if err := serve(newTestServer(), zap.NewNop(), input, &output); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if output.Len() != 0 {
		t.Errorf("expected no output for a notification, got %q", output.String())
	}
}
