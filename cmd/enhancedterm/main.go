package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cairn-tools/enhancedterm/internal/config"
	"github.com/cairn-tools/enhancedterm/internal/jobs"
	"github.com/cairn-tools/enhancedterm/internal/obslog"
	"github.com/cairn-tools/enhancedterm/internal/rpc"
	"github.com/cairn-tools/enhancedterm/internal/shellinfo"
	"github.com/cairn-tools/enhancedterm/internal/toolsurface"
)

const (
	exitSuccess = 0
	exitFailure = 1

	defaultAsyncThresholdSecs = 50
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := obslog.New()
	defer logger.Sync()

	configValues := map[string]string{}
	if fileConfig, err := config.Load(os.Getenv("ENHANCED_TERMINAL_CONFIG_FILE")); err == nil {
		configValues = fileConfig.Values
	} else {
		logger.Warn("failed to load config file, continuing with defaults", zap.Error(err))
	}

	asyncThreshold := time.Duration(config.ResolveInt("ENHANCED_TERMINAL_ASYNC_THRESHOLD_SECS", configValues, defaultAsyncThresholdSecs)) * time.Second
	hardTimeoutSecs := config.ResolveInt("ENHANCED_TERMINAL_TIMEOUT_SECS", configValues, 0)
	var hardTimeout time.Duration
	if hardTimeoutSecs > 0 {
		hardTimeout = time.Duration(hardTimeoutSecs) * time.Second
	}

	shells := shellinfo.Discover()
	registry := jobs.New()
	correlationID := uuid.NewString()

	server := toolsurface.New(registry, logger, shells, asyncThreshold, hardTimeout, correlationID)
	logger.Info("enhancedterm starting",
		zap.String("correlation_id", correlationID),
		zap.Int("shells_discovered", len(shells)),
		zap.Duration("async_threshold", asyncThreshold),
		zap.Duration("hard_timeout", hardTimeout),
	)

	if err := serve(server, logger, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "enhancedterm failed: %v\n", err)
		return exitFailure
	}
	return exitSuccess
}

// serve drives the stdio transport loop until the client closes stdin or
// sends "exit". Running jobs are left to their fate on shutdown, per
// spec.md §4.J's explicit teardown policy.
//
// tools/call is dispatched onto its own goroutine rather than handled
// inline: a synchronous enhanced_terminal call can block for up to the
// async threshold, and during that window other tools/call requests (most
// importantly enhanced_terminal_job_cancel against some other job) must
// still be serviced. The transport's writeMutex and the registry's own
// locking make concurrent Respond/Notify calls safe. serve waits for every
// in-flight call to finish before returning, so shutdown never drops a
// response the client is still waiting on.
func serve(server *toolsurface.Server, logger *zap.Logger, stdin io.Reader, stdout io.Writer) error {
	transport := rpc.NewTransport(stdin, stdout)
	var inFlight sync.WaitGroup
	defer inFlight.Wait()

	for {
		request, err := transport.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if rpc.IsParseError(err) {
				_ = transport.Respond(rpc.Response{
					JSONRPC: "2.0",
					Error:   &rpc.Error{Code: rpc.CodeParseError, Message: "parse error"},
				}, rpc.ParseErrorFraming(err))
				continue
			}
			return err
		}

		if request.Method == "" {
			continue
		}
		if request.Method == "notifications/initialized" {
			continue
		}
		if request.Method == "exit" {
			return nil
		}

		if request.Method == "tools/call" {
			inFlight.Add(1)
			go func(req rpc.Request) {
				defer inFlight.Done()
				handleToolsCall(server, logger, req, transport)
			}(request)
			continue
		}

		response := handleRequest(server, request)
		if len(request.ID) == 0 {
			continue
		}
		if err := transport.Respond(response, request.LineJSON); err != nil {
			return err
		}
	}
}

func handleRequest(server *toolsurface.Server, request rpc.Request) rpc.Response {
	response := rpc.Response{JSONRPC: "2.0", ID: rpc.DecodeID(request.ID)}

	switch request.Method {
	case "initialize":
		var params struct {
			ProtocolVersion string `json:"protocolVersion"`
		}
		_ = json.Unmarshal(request.Params, &params)
		response.Result = server.Initialize(params.ProtocolVersion)
		return response

	case "ping":
		response.Result = map[string]any{}
		return response

	case "tools/list":
		response.Result = map[string]any{"tools": server.ListTools()}
		return response

	default:
		response.Error = &rpc.Error{Code: rpc.CodeMethodNotFound, Message: "method not found"}
		return response
	}
}

// handleToolsCall runs one tools/call request to completion and, unlike
// handleRequest, sends its own response directly through transport rather
// than returning one — it is always invoked from its own goroutine so that
// a long-running enhanced_terminal call never blocks the read loop.
func handleToolsCall(server *toolsurface.Server, logger *zap.Logger, request rpc.Request, transport *rpc.Transport) {
	response := rpc.Response{JSONRPC: "2.0", ID: rpc.DecodeID(request.ID)}

	var params struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	}
	if err := json.Unmarshal(request.Params, &params); err != nil {
		response.Error = &rpc.Error{Code: rpc.CodeInvalidParams, Message: "invalid tool call params"}
	} else {
		notify := func(payload map[string]any) {
			if err := transport.Notify("notifications/message", payload, request.LineJSON); err != nil {
				logger.Debug("streaming notification failed", zap.Error(err), zap.String("job_id", fmt.Sprint(payload["job_id"])))
			}
		}
		result := server.Call(params.Name, params.Arguments, notify)

		resultJSON, _ := json.Marshal(result.Payload)
		response.Result = map[string]any{
			"content": []map[string]string{
				{"type": "text", "text": string(resultJSON)},
			},
			"structuredContent": result.Payload,
			"isError":           result.IsError,
		}
	}

	if len(request.ID) == 0 {
		return
	}
	if err := transport.Respond(response, request.LineJSON); err != nil {
		logger.Warn("failed to respond to tools/call", zap.Error(err))
	}
}
