// Package rpc implements the stdio JSON-RPC-like transport the tool
// surface is served over: newline-delimited JSON or Content-Length/LSP
// framing, auto-detected per message, matching the two wire formats MCP
// clients are known to send.
package rpc

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Request is an incoming JSON-RPC-shaped message. ID is omitted for
// notifications, which never receive a Response.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`

	// LineJSON records which framing this request arrived in (true for
	// newline-delimited JSON, false for Content-Length framing), so its
	// response and any notifications sent while handling it go back out
	// the same way. Not part of the wire payload.
	LineJSON bool `json:"-"`
}

// Response is the outgoing counterpart. Exactly one of Result or Error
// should be set.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	CodeParseError     = -32700
	CodeInvalidParams  = -32602
	CodeMethodNotFound = -32601
)

// DecodeID best-effort decodes an id field as an integer, then a string,
// then any other JSON value, so the echoed id in a Response matches the
// caller's original type.
func DecodeID(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var integerID int64
	if err := json.Unmarshal(raw, &integerID); err == nil {
		return integerID
	}
	var stringID string
	if err := json.Unmarshal(raw, &stringID); err == nil {
		return stringID
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err == nil {
		return generic
	}
	return nil
}

// SanitizeError flattens an error's message onto a single line with no
// embedded quotes, so it is always safe to splice into a JSON text field.
func SanitizeError(err error) string {
	message := strings.ReplaceAll(err.Error(), `"`, `'`)
	message = strings.ReplaceAll(message, "\n", " ")
	if strings.TrimSpace(message) == "" {
		return "unknown error"
	}
	return message
}

// ToInt best-effort coerces a decoded JSON argument value to an int,
// defaulting to 0 for anything it cannot interpret.
func ToInt(value interface{}) int {
	switch typed := value.(type) {
	case float64:
		return int(typed)
	case float32:
		return int(typed)
	case int:
		return typed
	case int32:
		return int(typed)
	case int64:
		return int(typed)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(typed))
		if err == nil {
			return parsed
		}
	}
	return 0
}

// ToString best-effort coerces a decoded JSON argument value to a string.
func ToString(value interface{}) string {
	switch typed := value.(type) {
	case string:
		return typed
	case json.Number:
		return typed.String()
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 64)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return ""
	}
}

// ToBool best-effort coerces a decoded JSON argument value to a bool.
func ToBool(value interface{}) bool {
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		normalized := strings.ToLower(strings.TrimSpace(typed))
		return normalized == "true" || normalized == "1" || normalized == "yes"
	default:
		return false
	}
}

// ToStringSlice best-effort coerces a decoded JSON argument value (a JSON
// array) to a []string, skipping any element that isn't a string.
func ToStringSlice(value interface{}) []string {
	raw, ok := value.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ToStringMap best-effort coerces a decoded JSON argument value (a JSON
// object with string values) to a map[string]string.
func ToStringMap(value interface{}) map[string]string {
	raw, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
