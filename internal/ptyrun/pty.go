// Package ptyrun is the PTY Runner: it allocates a pseudo-terminal pair and
// spawns "<shell> -c <command>" on the slave end, exposing a blocking
// byte-read handle on the master end and the child's process handle for
// signalling and exit-code retrieval.
package ptyrun

import (
	"fmt"
	"os"
	"os/exec"
	"sort"

	"github.com/creack/pty"
)

// DefaultRows and DefaultCols are the terminal window size of every spawned
// session; Spawn takes no window-size argument, so callers cannot choose
// another size.
const (
	DefaultRows = 24
	DefaultCols = 80
)

// Session is a spawned command's PTY handle.
type Session struct {
	Master *os.File
	Cmd    *exec.Cmd
	PID    int
}

// Spawn allocates a PTY, spawns shell -c command in cwd with the parent
// environment overlaid by envOverrides (overrides win on key collision),
// and returns the session. On any failure — PTY allocation, spawn, or
// window-size set — no child is left running and the returned error is
// terminal; callers must not leave a registry record in Running state.
func Spawn(shell, command, cwd string, envOverrides map[string]string) (*Session, error) {
	if shell == "" {
		shell = "bash"
	}
	cmd := exec.Command(shell, "-c", command)
	cmd.Dir = cwd
	cmd.Env = mergeEnv(os.Environ(), envOverrides)

	master, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: DefaultRows, Cols: DefaultCols})
	if err != nil {
		return nil, fmt.Errorf("pty spawn failed: %w", err)
	}

	pid := 0
	if cmd.Process != nil {
		pid = cmd.Process.Pid
	}
	return &Session{Master: master, Cmd: cmd, PID: pid}, nil
}

// Close releases the master end of the PTY. Safe to call once the reader
// goroutine has observed EOF or an error.
func (s *Session) Close() error {
	if s == nil || s.Master == nil {
		return nil
	}
	return s.Master.Close()
}

func mergeEnv(parentEnv []string, overrides map[string]string) []string {
	merged := make(map[string]string, len(parentEnv)+len(overrides))
	order := make([]string, 0, len(parentEnv)+len(overrides))
	for _, kv := range parentEnv {
		key, value := splitEnv(kv)
		if _, exists := merged[key]; !exists {
			order = append(order, key)
		}
		merged[key] = value
	}
	for key, value := range overrides {
		if _, exists := merged[key]; !exists {
			order = append(order, key)
		}
		merged[key] = value
	}
	sort.Strings(order)
	result := make([]string, 0, len(order))
	for _, key := range order {
		result = append(result, key+"="+merged[key])
	}
	return result
}

func splitEnv(kv string) (key, value string) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:]
		}
	}
	return kv, ""
}
