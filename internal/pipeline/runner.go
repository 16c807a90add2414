package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"narrator/internal/combine"
	"narrator/internal/fileutil"
	"narrator/internal/logging"
	"narrator/internal/state"
)

// ErrJobFailed marks a run whose job ended (or already was) failed.
// Clearing the state record is the only way to retry such a job.
var ErrJobFailed = errors.New("job failed")

// Extractor turns a source document into ordered text segments.
type Extractor interface {
	Extract(ctx context.Context, inputPath, outputDir string) error
}

// Synthesizer turns text segments into ordered audio segments.
type Synthesizer interface {
	Synthesize(ctx context.Context, textDir, audioDir, voiceOverride string) error
}

// AudioCombiner merges a directory of audio segments into one file.
type AudioCombiner interface {
	CombineDir(ctx context.Context, dir, outputPath string) error
}

// Options controls a runner's resume and retry behavior.
type Options struct {
	WorkDir   string
	OutputDir string

	// MaxRetries is the shared retry budget across all phases of one job.
	// The counter persists in the state record and is never reset by a
	// successful phase.
	MaxRetries int

	// Resume loads prior state when true; false starts from a fresh record
	// even when a checkpoint exists.
	Resume bool

	SkipExtraction bool
	SkipGeneration bool

	// Voice overrides the configured synthesis voice when non-empty.
	Voice string
}

// Result reports the outcome of one pipeline run.
type Result struct {
	Job   *state.Job
	RunID string

	// AlreadyDone is true when the run short-circuited on a completed job
	// whose output still exists; no phase ran.
	AlreadyDone bool

	Duration time.Duration
}

// Runner drives one document through extract, synthesize, and combine,
// checkpointing after every transition so an interrupted run resumes at the
// next unfinished phase.
type Runner struct {
	store       *state.Store
	extractor   Extractor
	synthesizer Synthesizer
	combiner    AudioCombiner
	opts        Options
	logger      *slog.Logger
}

// New constructs a runner.
func New(store *state.Store, extractor Extractor, synthesizer Synthesizer, combiner AudioCombiner, opts Options, logger *slog.Logger) *Runner {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	return &Runner{
		store:       store,
		extractor:   extractor,
		synthesizer: synthesizer,
		combiner:    combiner,
		opts:        opts,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
	}
}

var supportedExtensions = map[string]struct{}{
	".pdf":  {},
	".epub": {},
	".txt":  {},
}

// SupportedInput reports whether the file extension is one the extractor
// understands.
func SupportedInput(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Run executes the pipeline for one input document. The returned Result is
// non-nil whenever a job record exists, including on failure, so callers can
// record the outcome.
func (r *Runner) Run(ctx context.Context, inputPath string) (*Result, error) {
	started := time.Now()
	runID := uuid.NewString()

	absInput, err := filepath.Abs(inputPath)
	if err != nil {
		return nil, fmt.Errorf("resolve input path: %w", err)
	}
	if !SupportedInput(absInput) {
		return nil, fmt.Errorf("unsupported input type %q", filepath.Ext(absInput))
	}
	if !fileutil.NonEmptyFile(absInput) {
		return nil, fmt.Errorf("input file missing or empty: %s", absInput)
	}

	fingerprint, err := state.Fingerprint(absInput)
	if err != nil {
		return nil, fmt.Errorf("derive fingerprint: %w", err)
	}

	logger := r.logger.With(
		logging.String(logging.FieldRunID, runID),
		logging.String(logging.FieldFingerprint, fingerprint),
		logging.String(logging.FieldInput, absInput))

	job, err := r.loadOrCreate(logger, fingerprint, absInput)
	if err != nil {
		return nil, err
	}
	result := &Result{Job: job, RunID: runID}

	finish := func(runErr error) (*Result, error) {
		result.Duration = time.Since(started)
		return result, runErr
	}

	if job.Status == state.StatusFailed {
		logger.Error("job previously failed; clear its state to retry",
			logging.Int(logging.FieldRetryCount, job.RetryCount),
			logging.String("last_error", job.LastError))
		return finish(fmt.Errorf("%w: %s (clear state to retry)", ErrJobFailed, absInput))
	}

	if job.Status == state.StatusCompleted {
		if fileutil.NonEmptyFile(job.OutputPath) {
			logger.Info("already completed, output present", logging.String("output", job.OutputPath))
			result.AlreadyDone = true
			return finish(nil)
		}
		// Output went missing; both done-flags are still true, so the run
		// below falls straight through to combining.
		logger.Warn("completed job has no output, recombining", logging.String("output", job.OutputPath))
	}

	extractedDir := filepath.Join(r.opts.WorkDir, fingerprint, "extracted")
	audioDir := filepath.Join(r.opts.WorkDir, fingerprint, "audio")

	if r.opts.SkipExtraction && !job.ExtractionDone {
		logger.Info("extraction skipped by flag")
		job.ExtractionDone = true
	}
	if r.opts.SkipGeneration && !job.GenerationDone {
		logger.Info("generation skipped by flag")
		job.ExtractionDone = true
		job.GenerationDone = true
	}

	if !job.ExtractionDone {
		if err := r.transition(logger, job, state.StatusExtracting); err != nil {
			return finish(err)
		}
		if err := r.runPhase(ctx, logger, job, "extracting", func(ctx context.Context) error {
			return r.extractor.Extract(ctx, absInput, extractedDir)
		}); err != nil {
			return finish(err)
		}
		job.ExtractionDone = true
		if err := r.checkpoint(logger, job); err != nil {
			return finish(err)
		}
		logger.Info("extraction complete")
	} else {
		logger.Info("extraction already done, skipping")
	}

	if !job.GenerationDone {
		if err := r.transition(logger, job, state.StatusGenerating); err != nil {
			return finish(err)
		}
		if err := r.runPhase(ctx, logger, job, "generating", func(ctx context.Context) error {
			return r.synthesizer.Synthesize(ctx, extractedDir, audioDir, r.opts.Voice)
		}); err != nil {
			return finish(err)
		}
		job.GenerationDone = true
		if err := r.checkpoint(logger, job); err != nil {
			return finish(err)
		}
		logger.Info("generation complete")
	} else {
		logger.Info("generation already done, skipping")
	}

	if err := r.transition(logger, job, state.StatusCombining); err != nil {
		return finish(err)
	}
	if err := r.runPhase(ctx, logger, job, "combining", func(ctx context.Context) error {
		return r.combiner.CombineDir(ctx, audioDir, job.OutputPath)
	}); err != nil {
		return finish(err)
	}

	job.MarkCompleted()
	if err := r.checkpoint(logger, job); err != nil {
		return finish(err)
	}
	logger.Info("pipeline complete",
		logging.String("output", job.OutputPath),
		logging.Int(logging.FieldRetryCount, job.RetryCount),
		logging.Duration("elapsed", time.Since(started)))
	return finish(nil)
}

// OutputPath returns where the combined audio for inputPath will be written:
// next to the input, or inside OutputDir when configured.
func (r *Runner) OutputPath(inputPath string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	dir := filepath.Dir(inputPath)
	if strings.TrimSpace(r.opts.OutputDir) != "" {
		dir = r.opts.OutputDir
	}
	return filepath.Join(dir, stem+".wav")
}

// loadOrCreate resolves the job record for a fingerprint. Corrupt records
// are surfaced as a warning and then replaced with fresh state; they are
// never silently repaired.
func (r *Runner) loadOrCreate(logger *slog.Logger, fingerprint, absInput string) (*state.Job, error) {
	if !r.opts.Resume {
		logger.Info("resume disabled, starting fresh")
		return state.NewJob(fingerprint, absInput, r.OutputPath(absInput)), nil
	}

	job, err := r.store.Load(fingerprint)
	switch {
	case err == nil:
		logger.Info("resuming from checkpoint",
			logging.String("status", string(job.Status)),
			logging.Bool("extraction_done", job.ExtractionDone),
			logging.Bool("generation_done", job.GenerationDone),
			logging.Int(logging.FieldRetryCount, job.RetryCount))
		return job, nil
	case errors.Is(err, state.ErrNotFound):
		return state.NewJob(fingerprint, absInput, r.OutputPath(absInput)), nil
	case isCorruption(err):
		logger.Warn("checkpoint unreadable, starting fresh", logging.Error(err))
		return state.NewJob(fingerprint, absInput, r.OutputPath(absInput)), nil
	default:
		return nil, err
	}
}

func isCorruption(err error) bool {
	var corrupt *state.CorruptionError
	return errors.As(err, &corrupt)
}

func (r *Runner) transition(logger *slog.Logger, job *state.Job, to state.Status) error {
	job.Status = to
	if err := r.checkpoint(logger, job); err != nil {
		return err
	}
	logger.Info("phase started", logging.String(logging.FieldPhase, string(to)))
	return nil
}

func (r *Runner) checkpoint(logger *slog.Logger, job *state.Job) error {
	if err := r.store.Save(job); err != nil {
		logger.Error("checkpoint write failed", logging.Error(err))
		return fmt.Errorf("persist checkpoint: %w", err)
	}
	return nil
}

// runPhase executes one phase with the shared retry budget. Every failure
// increments retry_count and re-attempts the same phase, never earlier ones.
// Reaching the budget, or hitting a sample-rate mismatch, marks the job
// failed. Context cancellation aborts without touching the record; the last
// checkpoint stays intact and the phase is simply re-run next time.
func (r *Runner) runPhase(ctx context.Context, logger *slog.Logger, job *state.Job, phase string, fn func(context.Context) error) error {
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		job.RetryCount++
		job.LastError = err.Error()

		var mismatch *combine.SampleRateMismatchError
		permanent := errors.As(err, &mismatch)

		if permanent || job.RetryCount >= r.opts.MaxRetries {
			job.MarkFailed(err.Error())
			if saveErr := r.checkpoint(logger, job); saveErr != nil {
				return saveErr
			}
			logger.Error("job failed",
				logging.String(logging.FieldPhase, phase),
				logging.Int(logging.FieldRetryCount, job.RetryCount),
				logging.Bool("permanent", permanent),
				logging.Error(err))
			return fmt.Errorf("%w: %s: %w", ErrJobFailed, phase, err)
		}

		if saveErr := r.checkpoint(logger, job); saveErr != nil {
			return saveErr
		}
		logger.Warn("phase failed, retrying",
			logging.String(logging.FieldPhase, phase),
			logging.Int(logging.FieldRetryCount, job.RetryCount),
			logging.Int("max_retries", r.opts.MaxRetries),
			logging.Error(err))
	}
}
