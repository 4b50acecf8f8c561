package toolsurface

import "strings"

// Initialize builds the handshake response: server metadata plus an
// instructions string enumerating the shells Shell Discovery found at
// startup, per spec.md §6.A.
func (s *Server) Initialize(requestedProtocolVersion string) map[string]any {
	protocolVersion := requestedProtocolVersion
	if strings.TrimSpace(protocolVersion) == "" {
		protocolVersion = "2024-11-05"
	}
	return map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{"listChanged": false},
		},
		"serverInfo": map[string]any{
			"name":    "enhancedterm",
			"version": "1.0.0",
		},
		"instructions": s.instructions(),
	}
}

func (s *Server) instructions() string {
	var shellNames []string
	for _, shell := range s.Shells {
		if shell.Version != "" {
			shellNames = append(shellNames, shell.Name+" ("+shell.Version+")")
		} else {
			shellNames = append(shellNames, shell.Name)
		}
	}
	shellLine := "none discovered"
	if len(shellNames) > 0 {
		shellLine = strings.Join(shellNames, ", ")
	}
	return "Run shell commands in a pseudo-terminal via enhanced_terminal; poll long-running " +
		"jobs with enhanced_terminal_job_status; list, cancel, or delete jobs with the " +
		"enhanced_terminal_job_* tools; enumerate installed developer binaries with " +
		"detect_binaries. Shells discovered at startup: " + shellLine + "."
}

// ListTools returns the tool schemas, in ToolNames order.
func (s *Server) ListTools() []map[string]any {
	return []map[string]any{
		{
			"name":        "enhanced_terminal",
			"description": "Run a shell command in a pseudo-terminal and return its output, synchronously when it finishes quickly or as a background job handle otherwise.",
			"inputSchema": objectSchema(map[string]any{
				"command":              stringProp(),
				"cwd":                  stringProp(),
				"shell":                stringProp(),
				"output_limit":         intProp(),
				"async_threshold_secs": intProp(),
				"force_sync":           boolProp(),
				"stream":               boolProp(),
				"env_vars":             objectSchema(nil, ""),
				"tags":                 stringArrayProp(),
				"custom_denylist":      stringArrayProp(),
			}, "command"),
		},
		{
			"name":        "enhanced_terminal_job_status",
			"description": "Read a job's status and output, either the new bytes since the last incremental read, a byte range, or the first output_limit bytes of the buffer.",
			"inputSchema": objectSchema(map[string]any{
				"job_id":      stringProp(),
				"incremental": boolProp(),
				"offset":      intProp(),
				"limit":       intProp(),
			}, "job_id"),
		},
		{
			"name":        "enhanced_terminal_job_list",
			"description": "List known jobs with bounded-size previews of their output.",
			"inputSchema": objectSchema(map[string]any{
				"max_jobs":      intProp(),
				"status_filter": stringArrayProp(),
				"tag_filter":    stringProp(),
				"cwd_filter":    stringProp(),
				"sort_order":    stringProp(),
			}, ""),
		},
		{
			"name":        "enhanced_terminal_job_cancel",
			"description": "Send a termination signal to a running job.",
			"inputSchema": objectSchema(map[string]any{"job_id": stringProp()}, "job_id"),
		},
		{
			"name":        "enhanced_terminal_job_delete",
			"description": "Remove a finished job's record and free its captured output.",
			"inputSchema": objectSchema(map[string]any{"job_id": stringProp()}, "job_id"),
		},
		{
			"name":        "detect_binaries",
			"description": "Concurrently probe for installed developer binaries and their versions.",
			"inputSchema": objectSchema(map[string]any{
				"filter_categories":  stringArrayProp(),
				"max_concurrency":    intProp(),
				"version_timeout_ms": intProp(),
				"include_missing":    boolProp(),
			}, ""),
		},
	}
}

func objectSchema(properties map[string]any, required string) map[string]any {
	schema := map[string]any{"type": "object"}
	if properties != nil {
		schema["properties"] = properties
	}
	if required != "" {
		schema["required"] = []string{required}
	}
	return schema
}

func stringProp() map[string]any      { return map[string]any{"type": "string"} }
func intProp() map[string]any         { return map[string]any{"type": "integer"} }
func boolProp() map[string]any        { return map[string]any{"type": "boolean"} }
func stringArrayProp() map[string]any { return map[string]any{"type": "array", "items": stringProp()} }
