package jobs

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// ErrNotFound is returned by any registry operation addressing an unknown
// job id.
type ErrNotFound struct{ ID string }

func (e *ErrNotFound) Error() string { return fmt.Sprintf("job %q not found", e.ID) }

// Registry is the singleton, mutex-guarded store of JobRecords. Operations
// are kept short — buffer appends and header reads — so contention stays
// low even though a single lock serializes all of them.
type Registry struct {
	mu      sync.Mutex
	jobs    map[string]*JobRecord
	counter int64
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{jobs: make(map[string]*JobRecord)}
}

func (r *Registry) nextID() string {
	r.counter++
	return fmt.Sprintf("job-%d", r.counter)
}

// Register creates a Running record with an empty output buffer and a
// cursor at zero, returning its assigned id.
func (r *Registry) Register(command, shell, cwd string, envOverrides map[string]string, tags []string, outputLimit int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID()
	r.jobs[id] = &JobRecord{
		ID:           id,
		Command:      command,
		Shell:        shell,
		Cwd:          cwd,
		EnvOverrides: envOverrides,
		Tags:         dedupTags(nil, tags),
		OutputLimit:  outputLimit,
		StartedAt:    time.Now(),
		Status:       StatusRunning,
	}
	return id
}

// RegisterDenied creates a terminal Denied record directly, skipping Running
// entirely, for a command rejected by the Denylist Matcher before spawn.
// started_at and finished_at are equal, per §3's invariant for Denied jobs.
func (r *Registry) RegisterDenied(command, shell, cwd string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID()
	now := time.Now()
	r.jobs[id] = &JobRecord{
		ID:         id,
		Command:    command,
		Shell:      shell,
		Cwd:        cwd,
		StartedAt:  now,
		FinishedAt: now,
		Status:     StatusDenied,
	}
	return id
}

// SetPID records the spawned child's process id on the job.
func (r *Registry) SetPID(id string, pid int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return &ErrNotFound{ID: id}
	}
	job.PID = &pid
	return nil
}

// AppendOutput appends chunk to full_output, in the exact order callers
// invoke AppendOutput — the Execution Loop guarantees that order matches
// the order bytes left the child.
func (r *Registry) AppendOutput(id string, chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return &ErrNotFound{ID: id}
	}
	job.fullOutput = append(job.fullOutput, chunk...)
	return nil
}

// Finalize sets the terminal status, exit code, and finished_at. If the job
// had a cancellation requested via RequestCancel, the recorded status is
// forced to Canceled regardless of the status the caller passed — the
// background finalizer always wins the race against an exit-code-derived
// Completed/Failed classification. exitCode is recorded only when the
// final status is Completed or Failed — per §3, exit_code is absent for
// every other terminal status (TimedOut, Canceled, Denied) — so a caller
// passing a non-nil exitCode for e.g. TimedOut still ends up with it
// cleared here rather than leaking onto the wire.
func (r *Registry) Finalize(id string, status Status, exitCode *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return &ErrNotFound{ID: id}
	}
	if job.cancelRequested {
		status = StatusCanceled
	}
	if status != StatusCompleted && status != StatusFailed {
		exitCode = nil
	}
	job.Status = status
	job.ExitCode = exitCode
	job.FinishedAt = time.Now()
	return nil
}

// RequestCancel marks a Running job for cancellation and returns its pid so
// the caller can deliver a signal. It does not itself transition the status
// to Canceled — that happens in Finalize once the child has actually
// exited, so the record never claims Canceled while the process is still
// alive.
func (r *Registry) RequestCancel(id string) (pid int, hasPID bool, alreadyFinished bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return 0, false, false, &ErrNotFound{ID: id}
	}
	if job.Status != StatusRunning {
		return 0, false, true, nil
	}
	job.cancelRequested = true
	if job.PID == nil {
		return 0, false, false, nil
	}
	return *job.PID, true, false, nil
}

// ReadIncremental returns full_output[read_cursor:] and advances the cursor
// to the new length of full_output. The returned "running" flag reports
// whether the job has not yet reached a terminal status.
func (r *Registry) ReadIncremental(id string) (chunk []byte, running bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, false, &ErrNotFound{ID: id}
	}
	chunk = append([]byte(nil), job.fullOutput[job.readCursor:]...)
	job.readCursor = len(job.fullOutput)
	return chunk, job.Status == StatusRunning, nil
}

// ReadRange returns full_output[offset:offset+effectiveLimit] without
// touching the incremental cursor. limit == 0 means "to end".
func (r *Registry) ReadRange(id string, offset, limit int) (chunk []byte, hasMore bool, totalLength int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, false, 0, &ErrNotFound{ID: id}
	}
	totalLength = len(job.fullOutput)
	if offset < 0 {
		offset = 0
	}
	if offset >= totalLength {
		return nil, false, totalLength, nil
	}
	available := totalLength - offset
	effectiveLimit := available
	if limit > 0 && limit < available {
		effectiveLimit = limit
	}
	chunk = append([]byte(nil), job.fullOutput[offset:offset+effectiveLimit]...)
	hasMore = offset+effectiveLimit < totalLength
	return chunk, hasMore, totalLength, nil
}

// ResetCursor sets read_cursor back to zero, used when a caller requests a
// full-mode read.
func (r *Registry) ResetCursor(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return &ErrNotFound{ID: id}
	}
	job.readCursor = 0
	return nil
}

// FullOutput returns the complete captured output, used by the synchronous
// Execution Loop response and its handoff result.
func (r *Registry) FullOutput(id string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, &ErrNotFound{ID: id}
	}
	return append([]byte(nil), job.fullOutput...), nil
}

// Meta is the full per-job metadata, excluding full_output, used by the
// job_status tool operation to assemble its response alongside whichever
// output-access mode the caller selected.
type Meta struct {
	ID           string
	Command      string
	CommandBrief string
	Shell        string
	Cwd          string
	Tags         []string
	Status       Status
	ExitCode     *int
	PID          *int
	StartedAt    time.Time
	FinishedAt   time.Time
	DurationSecs float64
}

// Get returns a job's metadata without copying full_output.
func (r *Registry) Get(id string) (Meta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return Meta{}, &ErrNotFound{ID: id}
	}
	return metaOf(job), nil
}

func metaOf(job *JobRecord) Meta {
	return Meta{
		ID:           job.ID,
		Command:      job.Command,
		CommandBrief: Summarize(job.Command),
		Shell:        job.Shell,
		Cwd:          job.Cwd,
		Tags:         job.Tags,
		Status:       job.Status,
		ExitCode:     job.ExitCode,
		PID:          job.PID,
		StartedAt:    job.StartedAt,
		FinishedAt:   job.FinishedAt,
		DurationSecs: durationSecs(job.StartedAt, job.FinishedAt),
	}
}

// PreviewOutput returns full_output[0:min(len, output_limit)], the bounded
// prefix used by tools that summarize jobs cheaply.
func (r *Registry) PreviewOutput(id string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, &ErrNotFound{ID: id}
	}
	limit := job.OutputLimit
	if limit <= 0 || limit > len(job.fullOutput) {
		limit = len(job.fullOutput)
	}
	return append([]byte(nil), job.fullOutput[:limit]...), nil
}

// ListFilters narrows List's results; zero values mean "no filter".
type ListFilters struct {
	Statuses    map[Status]bool
	Tag         string
	Cwd         string
	SortNewest  bool
	MaxJobs     int
	PreviewRune int // defaults to 100 when zero
}

// List returns preview-bounded summaries only — never full_output — so the
// size of what it returns is O(max_jobs × (preview + metadata)) and no
// job's output is copied beyond its preview, regardless of how much output
// any job has captured.
func (r *Registry) List(filters ListFilters) []Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	previewRunes := filters.PreviewRune
	if previewRunes <= 0 {
		previewRunes = 100
	}

	summaries := make([]Summary, 0, len(r.jobs))
	for _, job := range r.jobs {
		if filters.Statuses != nil && len(filters.Statuses) > 0 && !filters.Statuses[job.Status] {
			continue
		}
		if filters.Tag != "" && !containsTag(job.Tags, filters.Tag) {
			continue
		}
		if filters.Cwd != "" && job.Cwd != filters.Cwd {
			continue
		}
		summaries = append(summaries, Summary{
			ID:            job.ID,
			Command:       job.Command,
			CommandBrief:  Summarize(job.Command),
			Shell:         job.Shell,
			Cwd:           job.Cwd,
			Tags:          job.Tags,
			Status:        job.Status,
			ExitCode:      job.ExitCode,
			PID:           job.PID,
			StartedAt:     job.StartedAt,
			FinishedAt:    job.FinishedAt,
			DurationSecs:  durationSecs(job.StartedAt, job.FinishedAt),
			OutputPreview: runePrefix(job.fullOutput, previewRunes),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if filters.SortNewest {
			return summaries[i].StartedAt.After(summaries[j].StartedAt)
		}
		return summaries[i].StartedAt.Before(summaries[j].StartedAt)
	})

	if filters.MaxJobs > 0 && len(summaries) > filters.MaxJobs {
		summaries = summaries[:filters.MaxJobs]
	}
	return summaries
}

// AddTags unions newTags with a job's existing tags, preserving the
// original order and deduplicating.
func (r *Registry) AddTags(id string, newTags []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return &ErrNotFound{ID: id}
	}
	job.Tags = dedupTags(job.Tags, newTags)
	return nil
}

// Delete removes a finished job's record entirely, freeing its output
// buffer. A Running job cannot be deleted.
func (r *Registry) Delete(id string) (deleted bool, reason string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return false, "", &ErrNotFound{ID: id}
	}
	if job.Status == StatusRunning {
		return false, "job still running", nil
	}
	delete(r.jobs, id)
	return true, "", nil
}

func dedupTags(existing []string, additional []string) []string {
	seen := make(map[string]bool, len(existing)+len(additional))
	result := make([]string, 0, len(existing)+len(additional))
	for _, tag := range existing {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		result = append(result, tag)
	}
	for _, tag := range additional {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		result = append(result, tag)
	}
	return result
}

func containsTag(tags []string, target string) bool {
	for _, tag := range tags {
		if tag == target {
			return true
		}
	}
	return false
}

func runePrefix(data []byte, maxRunes int) string {
	end := 0
	for count := 0; count < maxRunes && end < len(data); count++ {
		_, size := utf8.DecodeRune(data[end:])
		end += size
	}
	return strings.ToValidUTF8(string(data[:end]), "�")
}
