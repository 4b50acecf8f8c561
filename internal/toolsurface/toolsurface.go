// Package toolsurface implements the named tool operations exposed to the
// transport: enhanced_terminal, its job-management siblings, and
// detect_binaries. Each operation is an independent function over a typed
// argument map and a tagged-union result, wired to the Denylist Matcher,
// Job Registry, Execution Loop, Cancellation Service, Binary Probe Engine,
// and Shell Discovery.
package toolsurface

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cairn-tools/enhancedterm/internal/cancel"
	"github.com/cairn-tools/enhancedterm/internal/denylist"
	"github.com/cairn-tools/enhancedterm/internal/execloop"
	"github.com/cairn-tools/enhancedterm/internal/jobs"
	"github.com/cairn-tools/enhancedterm/internal/probe"
	"github.com/cairn-tools/enhancedterm/internal/rpc"
	"github.com/cairn-tools/enhancedterm/internal/shellinfo"
)

const defaultOutputLimit = 16384

// Server holds the shared handles every tool operation is wired against. It
// is constructed once by the Server Bootstrap and is safe for concurrent
// use: the Job Registry is the only shared mutable state, and it guards
// itself.
type Server struct {
	Registry              *jobs.Registry
	Logger                *zap.Logger
	Shells                []shellinfo.Shell
	DefaultAsyncThreshold time.Duration
	DefaultHardTimeout    time.Duration
	CorrelationID         string
}

// New constructs a Server with the given shared handles.
func New(registry *jobs.Registry, logger *zap.Logger, shells []shellinfo.Shell, asyncThreshold, hardTimeout time.Duration, correlationID string) *Server {
	return &Server{
		Registry:              registry,
		Logger:                logger,
		Shells:                shells,
		DefaultAsyncThreshold: asyncThreshold,
		DefaultHardTimeout:    hardTimeout,
		CorrelationID:         correlationID,
	}
}

// ToolNames are the stable wire identifiers, in the order they should
// appear in a tools/list response.
var ToolNames = []string{
	"enhanced_terminal",
	"enhanced_terminal_job_status",
	"enhanced_terminal_job_list",
	"enhanced_terminal_job_cancel",
	"enhanced_terminal_job_delete",
	"detect_binaries",
}

// CallResult is a tool invocation's outcome: either a structured payload or
// an error message, never both.
type CallResult struct {
	Payload map[string]any
	IsError bool
}

// Call dispatches name against arguments, invoking notify once per
// streaming-output chunk during synchronous execution of enhanced_terminal;
// chunks read after a handoff to the background are not notified.
// notify may be nil when the caller does not support notifications.
func (s *Server) Call(name string, arguments map[string]interface{}, notify func(payload map[string]any)) CallResult {
	switch name {
	case "enhanced_terminal":
		return s.callEnhancedTerminal(arguments, notify)
	case "enhanced_terminal_job_status":
		return s.callJobStatus(arguments)
	case "enhanced_terminal_job_list":
		return s.callJobList(arguments)
	case "enhanced_terminal_job_cancel":
		return s.callJobCancel(arguments)
	case "enhanced_terminal_job_delete":
		return s.callJobDelete(arguments)
	case "detect_binaries":
		return s.callDetectBinaries(arguments)
	default:
		return CallResult{Payload: map[string]any{"error": fmt.Sprintf("unknown tool %q", name)}, IsError: true}
	}
}

func (s *Server) callEnhancedTerminal(arguments map[string]interface{}, notify func(payload map[string]any)) CallResult {
	command := strings.TrimSpace(rpc.ToString(arguments["command"]))
	cwd := rpc.ToString(arguments["cwd"])
	if cwd == "" {
		cwd = "."
	}
	shell := rpc.ToString(arguments["shell"])
	if shell == "" {
		shell = "bash"
	}
	outputLimit := rpc.ToInt(arguments["output_limit"])
	if outputLimit <= 0 {
		outputLimit = defaultOutputLimit
	}
	forceSync := rpc.ToBool(arguments["force_sync"])
	stream := rpc.ToBool(arguments["stream"])
	envOverrides := rpc.ToStringMap(arguments["env_vars"])
	tags := rpc.ToStringSlice(arguments["tags"])
	customDenylist := rpc.ToStringSlice(arguments["custom_denylist"])

	asyncThreshold := s.DefaultAsyncThreshold
	if secs := rpc.ToInt(arguments["async_threshold_secs"]); secs > 0 {
		asyncThreshold = time.Duration(secs) * time.Second
	}

	verdict := denylist.Evaluate(command, customDenylist)
	if verdict.Denied {
		s.Logger.Info("command denied",
			zap.String("correlation_id", s.CorrelationID),
			zap.String("matched_pattern", verdict.MatchedPattern))
		return CallResult{Payload: map[string]any{
			"status":          "denied",
			"matched_pattern": verdict.MatchedPattern,
			"reason":          "command matched a denylist pattern",
		}}
	}

	id := s.Registry.Register(command, shell, cwd, envOverrides, tags, outputLimit)

	result := execloop.Run(id, shell, command, cwd, envOverrides, s.Registry, execloop.Options{
		ForceSync:      forceSync,
		Stream:         stream,
		AsyncThreshold: asyncThreshold,
		HardTimeout:    s.DefaultHardTimeout,
		OutputLimit:    outputLimit,
		Logger:         s.Logger,
		Notify: func(chunk []byte) {
			if notify == nil {
				return
			}
			notify(map[string]any{
				"job_id": id,
				"output": string(chunk),
				"type":   "stream",
			})
		},
	})

	if result.Outcome == execloop.OutcomeHandoff {
		return CallResult{Payload: map[string]any{
			"status":        "switched_to_background",
			"job_id":        id,
			"duration_secs": result.DurationSecs,
			"output":        string(result.Output),
		}}
	}

	payload := map[string]any{
		"status":        string(result.Outcome),
		"job_id":        id,
		"duration_secs": result.DurationSecs,
		"output":        string(result.Output),
	}
	if result.ExitCode != nil {
		payload["exit_code"] = *result.ExitCode
	}
	if result.Truncated {
		payload["truncated"] = true
		payload["preview_output"] = string(result.PreviewOutput)
	}
	return CallResult{Payload: payload, IsError: result.Outcome == execloop.OutcomeFailed}
}

func (s *Server) callJobStatus(arguments map[string]interface{}) CallResult {
	jobID := rpc.ToString(arguments["job_id"])
	if jobID == "" {
		return errorResult("job_id is required")
	}
	meta, err := s.Registry.Get(jobID)
	if err != nil {
		return errorResult(rpc.SanitizeError(err))
	}

	incremental := true
	if _, present := arguments["incremental"]; present {
		incremental = rpc.ToBool(arguments["incremental"])
	}
	offset := rpc.ToInt(arguments["offset"])
	limit := rpc.ToInt(arguments["limit"])

	var (
		output    []byte
		mode      string
		hasMore   bool
		total     int
		accessErr error
	)
	switch {
	case incremental && offset == 0 && limit == 0:
		mode = "incremental"
		output, _, accessErr = s.Registry.ReadIncremental(jobID)
	case offset != 0 || limit != 0:
		mode = "paginated"
		output, hasMore, total, accessErr = s.Registry.ReadRange(jobID, offset, limit)
	default:
		mode = "full"
		if resetErr := s.Registry.ResetCursor(jobID); resetErr != nil {
			accessErr = resetErr
			break
		}
		output, accessErr = s.Registry.PreviewOutput(jobID)
	}
	if accessErr != nil {
		return errorResult(rpc.SanitizeError(accessErr))
	}

	payload := map[string]any{
		"job_id":        meta.ID,
		"command":       meta.Command,
		"summary":       meta.CommandBrief,
		"shell":         meta.Shell,
		"cwd":           meta.Cwd,
		"tags":          meta.Tags,
		"status":        string(meta.Status),
		"started_at":    meta.StartedAt.Format(time.RFC3339),
		"duration_secs": meta.DurationSecs,
		"mode":          mode,
		"output":        string(output),
	}
	if meta.ExitCode != nil {
		payload["exit_code"] = *meta.ExitCode
	}
	if meta.PID != nil {
		payload["pid"] = *meta.PID
	}
	if !meta.FinishedAt.IsZero() {
		payload["finished_at"] = meta.FinishedAt.Format(time.RFC3339)
	}
	if mode == "paginated" {
		payload["has_more"] = hasMore
		payload["total_length"] = total
	}
	return CallResult{Payload: payload}
}

func (s *Server) callJobList(arguments map[string]interface{}) CallResult {
	maxJobs := rpc.ToInt(arguments["max_jobs"])
	if maxJobs <= 0 {
		maxJobs = 50
	}
	sortOrder := rpc.ToString(arguments["sort_order"])
	filters := jobs.ListFilters{
		MaxJobs:    maxJobs,
		SortNewest: sortOrder != "oldest",
		Tag:        rpc.ToString(arguments["tag_filter"]),
		Cwd:        rpc.ToString(arguments["cwd_filter"]),
	}
	if statusFilter := rpc.ToStringSlice(arguments["status_filter"]); len(statusFilter) > 0 {
		filters.Statuses = make(map[jobs.Status]bool, len(statusFilter))
		for _, s := range statusFilter {
			filters.Statuses[jobs.Status(strings.ToLower(s))] = true
		}
	}

	summaries := s.Registry.List(filters)
	list := make([]map[string]any, 0, len(summaries))
	for _, summary := range summaries {
		entry := map[string]any{
			"job_id":         summary.ID,
			"summary":        summary.CommandBrief,
			"shell":          summary.Shell,
			"cwd":            summary.Cwd,
			"tags":           summary.Tags,
			"status":         string(summary.Status),
			"duration_secs":  summary.DurationSecs,
			"output_preview": summary.OutputPreview,
		}
		if summary.ExitCode != nil {
			entry["exit_code"] = *summary.ExitCode
		}
		list = append(list, entry)
	}
	return CallResult{Payload: map[string]any{"jobs": list}}
}

func (s *Server) callJobCancel(arguments map[string]interface{}) CallResult {
	jobID := rpc.ToString(arguments["job_id"])
	if jobID == "" {
		return errorResult("job_id is required")
	}
	canceled, reason, err := cancel.Cancel(jobID, s.Registry)
	if err != nil {
		return errorResult(rpc.SanitizeError(err))
	}
	meta, metaErr := s.Registry.Get(jobID)
	payload := map[string]any{"job_id": jobID, "canceled": canceled}
	if metaErr == nil {
		payload["status"] = string(meta.Status)
	}
	if reason != "" {
		payload["reason"] = reason
	}
	return CallResult{Payload: payload}
}

func (s *Server) callJobDelete(arguments map[string]interface{}) CallResult {
	jobID := rpc.ToString(arguments["job_id"])
	if jobID == "" {
		return errorResult("job_id is required")
	}
	deleted, reason, err := s.Registry.Delete(jobID)
	if err != nil {
		return errorResult(rpc.SanitizeError(err))
	}
	payload := map[string]any{"job_id": jobID, "deleted": deleted}
	if reason != "" {
		payload["reason"] = reason
	}
	return CallResult{Payload: payload}
}

func (s *Server) callDetectBinaries(arguments map[string]interface{}) CallResult {
	maxConcurrency := rpc.ToInt(arguments["max_concurrency"])
	versionTimeoutMS := rpc.ToInt(arguments["version_timeout_ms"])
	var versionTimeout time.Duration
	if versionTimeoutMS > 0 {
		versionTimeout = time.Duration(versionTimeoutMS) * time.Millisecond
	}

	results := probe.Detect(probe.Options{
		FilterCategories: rpc.ToStringSlice(arguments["filter_categories"]),
		MaxConcurrency:   maxConcurrency,
		VersionTimeout:   versionTimeout,
		IncludeMissing:   rpc.ToBool(arguments["include_missing"]),
	})

	list := make([]map[string]any, 0, len(results))
	for _, r := range results {
		entry := map[string]any{"name": r.Name, "category": r.Category}
		if r.Found {
			entry["path"] = r.Path
		}
		if r.Version != "" {
			entry["version"] = r.Version
		}
		if r.Error != "" {
			entry["error"] = r.Error
		}
		list = append(list, entry)
	}
	return CallResult{Payload: map[string]any{"results": list}}
}

func errorResult(message string) CallResult {
	return CallResult{Payload: map[string]any{"error": message}, IsError: true}
}
