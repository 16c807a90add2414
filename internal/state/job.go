package state

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a document job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusExtracting Status = "extracting"
	StatusGenerating Status = "generating"
	StatusCombining  Status = "combining"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusExtracting,
	StatusGenerating,
	StatusCombining,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Job is the persisted checkpoint record for one input document. One record
// exists per fingerprint; it is created on first encounter and mutated only
// through Store.Save. Records are never deleted automatically; removing one
// (narrator state clear) is the documented way to force a clean restart.
type Job struct {
	Fingerprint    string     `json:"fingerprint"`
	InputPath      string     `json:"input_path"`
	OutputPath     string     `json:"output_path"`
	Status         Status     `json:"status"`
	ExtractionDone bool       `json:"extraction_done"`
	GenerationDone bool       `json:"generation_done"`
	RetryCount     int        `json:"retry_count"`
	LastError      string     `json:"last_error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewJob creates a fresh pending record for an input document.
func NewJob(fingerprint, inputPath, outputPath string) *Job {
	now := time.Now().UTC()
	return &Job{
		Fingerprint: fingerprint,
		InputPath:   inputPath,
		OutputPath:  outputPath,
		Status:      StatusPending,
		StartedAt:   now,
		UpdatedAt:   now,
	}
}

// MarkFailed records a terminal failure.
func (j *Job) MarkFailed(message string) {
	j.Status = StatusFailed
	j.LastError = message
}

// MarkCompleted records terminal success.
func (j *Job) MarkCompleted() {
	now := time.Now().UTC()
	j.Status = StatusCompleted
	j.CompletedAt = &now
	j.LastError = ""
}

// IsTerminal reports whether the job reached a terminal status.
func (j *Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Validate enforces the record invariants before persistence:
// generation_done implies extraction_done, completed implies both done
// flags, and the retry counter never goes negative.
func (j *Job) Validate() error {
	if strings.TrimSpace(j.Fingerprint) == "" {
		return fmt.Errorf("job %q: fingerprint required", j.InputPath)
	}
	if strings.TrimSpace(j.InputPath) == "" {
		return fmt.Errorf("job %s: input path required", j.Fingerprint)
	}
	if _, ok := statusSet[j.Status]; !ok {
		return fmt.Errorf("job %s: unknown status %q", j.Fingerprint, j.Status)
	}
	if j.GenerationDone && !j.ExtractionDone {
		return fmt.Errorf("job %s: generation_done without extraction_done", j.Fingerprint)
	}
	if j.Status == StatusCompleted && (!j.ExtractionDone || !j.GenerationDone) {
		return fmt.Errorf("job %s: completed with unfinished phases", j.Fingerprint)
	}
	if j.RetryCount < 0 {
		return fmt.Errorf("job %s: negative retry count", j.Fingerprint)
	}
	return nil
}
