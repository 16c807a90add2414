package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"narrator/internal/fileutil"
	"narrator/internal/logging"
	"narrator/internal/services"
)

// ErrNotFound is returned by Load when no record exists for a fingerprint.
var ErrNotFound = errors.New("job state not found")

// CorruptionError reports an unreadable or invalid on-disk record. It is
// never produced for a missing record. Callers that fall back to fresh state
// must surface the warning first; the store itself never discards a corrupt
// record silently.
type CorruptionError struct {
	Path string
	Err  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("corrupt job state %s: %v", e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// Is makes CorruptionError matchable against the shared marker.
func (e *CorruptionError) Is(target error) bool {
	return target == services.ErrStateCorruption
}

// Store persists job records as one JSON file per fingerprint inside a
// state directory. Saves are atomic (temp file + rename) so a crash never
// leaves a truncated record behind.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a store rooted at dir. The directory is created lazily on
// first save.
func NewStore(dir string, logger *slog.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logging.NewComponentLogger(logger, "state-store"),
	}
}

// Dir returns the state directory backing the store.
func (s *Store) Dir() string { return s.dir }

func (s *Store) recordPath(fingerprint string) string {
	return filepath.Join(s.dir, fingerprint+".json")
}

// Load reads the record for a fingerprint. A missing record yields
// ErrNotFound; an unreadable or invalid record yields a *CorruptionError.
func (s *Store) Load(fingerprint string) (*Job, error) {
	path := s.recordPath(fingerprint)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &CorruptionError{Path: path, Err: err}
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, &CorruptionError{Path: path, Err: err}
	}
	// Reject unknown statuses instead of defaulting; a record written by a
	// different tool version must not silently drive the state machine.
	if _, ok := ParseStatus(string(job.Status)); !ok {
		return nil, &CorruptionError{Path: path, Err: fmt.Errorf("unknown status %q", job.Status)}
	}
	if err := job.Validate(); err != nil {
		return nil, &CorruptionError{Path: path, Err: err}
	}
	return &job, nil
}

// Save durably persists the record, stamping UpdatedAt.
func (s *Store) Save(job *Job) error {
	if job == nil {
		return errors.New("job must not be nil")
	}
	if err := job.Validate(); err != nil {
		return err
	}
	job.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal job state: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.recordPath(job.Fingerprint), data, 0o644); err != nil {
		return fmt.Errorf("persist job state: %w", err)
	}

	s.logger.Debug("checkpoint written",
		logging.String(logging.FieldFingerprint, job.Fingerprint),
		logging.String("status", string(job.Status)),
		logging.Bool("extraction_done", job.ExtractionDone),
		logging.Bool("generation_done", job.GenerationDone),
		logging.Int(logging.FieldRetryCount, job.RetryCount))
	return nil
}

// Delete removes the record for a fingerprint. Deleting a missing record is
// not an error; this is the manual-reset path.
func (s *Store) Delete(fingerprint string) error {
	err := os.Remove(s.recordPath(fingerprint))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete job state: %w", err)
	}
	return nil
}

// List returns every readable record sorted by fingerprint. Corrupt records
// are skipped with a warning rather than aborting the listing.
func (s *Store) List() ([]*Job, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state directory: %w", err)
	}

	var jobs []*Job
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		fingerprint := strings.TrimSuffix(name, ".json")
		job, err := s.Load(fingerprint)
		if err != nil {
			s.logger.Warn("skipping unreadable job state",
				logging.String(logging.FieldFingerprint, fingerprint),
				logging.Error(err))
			continue
		}
		jobs = append(jobs, job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].Fingerprint < jobs[j].Fingerprint
	})
	return jobs, nil
}
