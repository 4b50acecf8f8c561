package rpc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Transport reads framed or line-delimited JSON-RPC messages from a reader
// and writes Responses back to a writer, matching the framing of whichever
// request triggered the write. Next is called from a single read-loop
// goroutine; Respond and Notify are safe to call concurrently from the
// per-request goroutines serve spawns — writeMutex serializes the writes,
// and the framing choice is passed in by the caller rather than read from
// transport-level state, so two in-flight calls can never cross-frame each
// other's output.
type Transport struct {
	reader     *bufio.Reader
	writer     *bufio.Writer
	writeMutex sync.Mutex
}

// NewTransport wraps r and w for a single stdio session.
func NewTransport(r io.Reader, w io.Writer) *Transport {
	return &Transport{reader: bufio.NewReader(r), writer: bufio.NewWriter(w)}
}

// Next blocks for the next request. It returns io.EOF once the underlying
// reader is exhausted, signaling the session should end. The returned
// Request's LineJSON field records the framing it arrived in; pass it back
// to Respond and Notify when handling that request.
func (t *Transport) Next() (Request, error) {
	messageBytes, isLineJSON, err := readMessage(t.reader)
	if err != nil {
		return Request{}, err
	}
	var request Request
	if err := json.Unmarshal(messageBytes, &request); err != nil {
		return Request{}, &parseError{cause: err, lineJSON: isLineJSON}
	}
	request.LineJSON = isLineJSON
	return request, nil
}

type parseError struct {
	cause    error
	lineJSON bool
}

func (e *parseError) Error() string { return "parse error: " + e.cause.Error() }

// IsParseError reports whether err was returned by Next because a message
// failed to unmarshal as JSON, as opposed to a transport-level read error.
func IsParseError(err error) bool {
	_, ok := err.(*parseError)
	return ok
}

// ParseErrorFraming reports which framing the malformed message that
// produced err arrived in, defaulting to line-delimited JSON for any other
// error, so a parse-error Response can still be framed correctly.
func ParseErrorFraming(err error) bool {
	if pe, ok := err.(*parseError); ok {
		return pe.lineJSON
	}
	return true
}

// Respond writes response using lineJSON framing (the framing of the
// request response answers — see Request.LineJSON).
func (t *Transport) Respond(response Response, lineJSON bool) error {
	payload, err := json.Marshal(response)
	if err != nil {
		return err
	}
	return t.write(payload, lineJSON)
}

// notification is an outbound message with no id and no response expected,
// used for streaming-output updates during a long-running tool call.
type notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Notify emits an unsolicited message using lineJSON framing — callers pass
// the framing of the request whose handling triggered the notification.
// Per spec.md §7, streaming notification failures are best-effort and
// never abort the run — callers should log and continue rather than treat
// a Notify error as fatal.
func (t *Transport) Notify(method string, params any, lineJSON bool) error {
	payload, err := json.Marshal(notification{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return err
	}
	return t.write(payload, lineJSON)
}

func (t *Transport) write(payload []byte, lineJSON bool) error {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()
	if lineJSON {
		if _, err := t.writer.Write(payload); err != nil {
			return err
		}
		if err := t.writer.WriteByte('\n'); err != nil {
			return err
		}
		return t.writer.Flush()
	}
	if _, err := fmt.Fprintf(t.writer, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
		return err
	}
	if _, err := t.writer.Write(payload); err != nil {
		return err
	}
	return t.writer.Flush()
}

// readMessage reads one message, auto-detecting newline-delimited JSON
// (the first non-whitespace byte is '{' or '[') versus Content-Length
// framing (anything else, e.g. the 'C' of "Content-Length:").
func readMessage(reader *bufio.Reader) ([]byte, bool, error) {
	for {
		peeked, err := reader.Peek(1)
		if err != nil {
			return nil, false, err
		}
		if len(peeked) == 0 {
			return nil, false, io.EOF
		}
		switch peeked[0] {
		case ' ', '\t', '\r', '\n':
			if _, err := reader.ReadByte(); err != nil {
				return nil, false, err
			}
			continue
		case '{', '[':
			line, err := reader.ReadBytes('\n')
			if err != nil {
				if err == io.EOF {
					trimmed := bytes.TrimSpace(line)
					if len(trimmed) > 0 {
						return trimmed, true, nil
					}
				}
				return nil, false, err
			}
			trimmed := bytes.TrimSpace(line)
			if len(trimmed) == 0 {
				continue
			}
			return trimmed, true, nil
		default:
			payload, readErr := readFramedMessage(reader)
			return payload, false, readErr
		}
	}
}

func readFramedMessage(reader *bufio.Reader) ([]byte, error) {
	contentLength := -1
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break
		}
		lower := strings.ToLower(trimmed)
		if strings.HasPrefix(lower, "content-length:") {
			rawLength := strings.TrimSpace(trimmed[len("content-length:"):])
			parsedLength, parseErr := strconv.Atoi(rawLength)
			if parseErr != nil {
				return nil, parseErr
			}
			contentLength = parsedLength
		}
	}
	if contentLength < 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}
	payload := make([]byte, contentLength)
	if _, err := io.ReadFull(reader, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
