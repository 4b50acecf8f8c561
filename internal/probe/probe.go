// Package probe implements the Binary Probe Engine: a bounded-parallelism
// fan-out of version-query subprocesses over a static program catalog. It
// also exports Version, the single-program probe shared with Shell
// Discovery, since both pipelines use the same PTY/process primitives.
package probe

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Result is a BinaryProbeResult: a transient reply payload, never stored.
type Result struct {
	Name     string
	Category string
	Found    bool
	Path     string
	Version  string
	Error    string
}

// Options configures a Detect call.
type Options struct {
	FilterCategories []string
	MaxConcurrency   int
	VersionTimeout   time.Duration
	IncludeMissing   bool
}

const (
	DefaultMaxConcurrency = 16
	DefaultVersionTimeout = 1500 * time.Millisecond
)

// Detect resolves and version-probes every catalog program selected by
// opts.FilterCategories (all categories when empty), bounding in-flight
// probe subprocesses to opts.MaxConcurrency at every instant. The fan-out is
// read-only: no shared state is mutated beyond the returned slice.
func Detect(opts Options) []Result {
	maxConcurrency := opts.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	timeout := opts.VersionTimeout
	if timeout <= 0 {
		timeout = DefaultVersionTimeout
	}

	type task struct{ category, program string }
	var tasks []task
	filter := toFilterSet(opts.FilterCategories)
	for category, programs := range catalog {
		if filter != nil && !filter[strings.ToLower(category)] {
			continue
		}
		for _, program := range programs {
			tasks = append(tasks, task{category: category, program: program})
		}
	}

	results := make([]Result, len(tasks))
	semaphore := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup
	for i, t := range tasks {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(index int, category, program string) {
			defer wg.Done()
			defer func() { <-semaphore }()
			results[index] = probeOne(category, program, timeout)
		}(i, t.category, t.program)
	}
	wg.Wait()

	filtered := results
	if !opts.IncludeMissing {
		filtered = filtered[:0]
		for _, r := range results {
			if r.Found {
				filtered = append(filtered, r)
			}
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Category != filtered[j].Category {
			return filtered[i].Category < filtered[j].Category
		}
		return filtered[i].Name < filtered[j].Name
	})
	return filtered
}

func probeOne(category, program string, timeout time.Duration) Result {
	paths := whichAll(program)
	if len(paths) == 0 {
		return Result{Name: program, Category: category, Found: false}
	}
	path := paths[0]
	if len(paths) > 1 {
		path = strings.Join(paths, ";")
	}
	version, err := Version(paths[0], timeout)
	if err != nil {
		return Result{Name: program, Category: category, Found: true, Path: path, Error: err.Error()}
	}
	return Result{Name: program, Category: category, Found: true, Path: path, Version: version}
}

// versionAttempts are tried in order; the first one that produces a
// non-empty first line wins. A timeout on any attempt stops further tries.
var versionAttempts = [][]string{{"--version"}, {"version"}, {"-V"}}

// Version resolves path's version by trying --version, version, and -V in
// order, returning the first non-empty output line. It is shared by the
// Binary Probe Engine and Shell Discovery.
func Version(path string, timeout time.Duration) (string, error) {
	var lastErr error
	for _, args := range versionAttempts {
		line, err := probeVersionOnce(path, args, timeout)
		if err == nil {
			return line, nil
		}
		lastErr = err
		if isTimeoutErr(err) {
			break
		}
	}
	return "", lastErr
}

func probeVersionOnce(path string, args []string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, args...)
	output, runErr := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return "", &timeoutError{path: path, timeout: timeout}
	}
	firstLine := firstNonEmptyLine(output)
	if firstLine == "" {
		if runErr != nil {
			return "", runErr
		}
		return "", &emptyOutputError{path: path}
	}
	return firstLine, nil
}

type timeoutError struct {
	path    string
	timeout time.Duration
}

func (e *timeoutError) Error() string {
	return "version probe timeout after " + e.timeout.String() + " for " + e.path
}

func isTimeoutErr(err error) bool {
	_, ok := err.(*timeoutError)
	return ok
}

type emptyOutputError struct{ path string }

func (e *emptyOutputError) Error() string { return "empty version output for " + e.path }

func firstNonEmptyLine(output []byte) string {
	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			return line
		}
	}
	return ""
}

func whichAll(name string) []string {
	pathVar := os.Getenv("PATH")
	if pathVar == "" {
		return nil
	}
	var matches []string
	for _, dir := range filepath.SplitList(pathVar) {
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if isExecutable(info) {
			matches = append(matches, candidate)
		}
	}
	return matches
}

func isExecutable(info os.FileInfo) bool {
	return info.Mode()&0111 != 0
}

func toFilterSet(categories []string) map[string]bool {
	if len(categories) == 0 {
		return nil
	}
	set := make(map[string]bool, len(categories))
	for _, c := range categories {
		set[strings.ToLower(c)] = true
	}
	return set
}
