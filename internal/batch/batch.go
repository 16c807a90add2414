// Package batch discovers documents in a directory and runs the pipeline
// over each one in sequence. Jobs never run in parallel; the state store
// assumes a single writer per record.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"narrator/internal/logging"
	"narrator/internal/pipeline"
)

// Stats summarizes one batch run.
type Stats struct {
	Total     int
	Completed int
	Failed    int
	Skipped   int
}

// SuccessRate returns the completed share in percent.
func (s Stats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total) * 100
}

// Outcome records the result of one document in the batch.
type Outcome struct {
	InputPath string
	Result    *pipeline.Result
	Err       error
}

// Discover returns every supported document directly inside dir, sorted by
// filename so batch order is deterministic.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read batch directory: %w", err)
	}

	var inputs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if pipeline.SupportedInput(path) {
			inputs = append(inputs, path)
		}
	}
	sort.Strings(inputs)
	return inputs, nil
}

// Runner executes the pipeline for each document of a batch.
type Runner struct {
	pipeline    *pipeline.Runner
	stopOnError bool
	logger      *slog.Logger
}

// NewRunner constructs a batch runner. stopOnError aborts the batch at the
// first failed job instead of continuing with the rest.
func NewRunner(p *pipeline.Runner, stopOnError bool, logger *slog.Logger) *Runner {
	return &Runner{
		pipeline:    p,
		stopOnError: stopOnError,
		logger:      logging.NewComponentLogger(logger, "batch"),
	}
}

// Run processes every input in order. It returns the per-document outcomes
// and aggregate stats; the error is non-nil only when the batch aborted
// early (stop-on-error or cancellation), not when individual jobs failed.
func (r *Runner) Run(ctx context.Context, inputs []string) ([]Outcome, Stats, error) {
	stats := Stats{Total: len(inputs)}
	outcomes := make([]Outcome, 0, len(inputs))

	for i, input := range inputs {
		if err := ctx.Err(); err != nil {
			return outcomes, stats, err
		}

		r.logger.Info("processing document",
			logging.String(logging.FieldInput, input),
			logging.Int("position", i+1),
			logging.Int("total", len(inputs)))

		result, err := r.pipeline.Run(ctx, input)
		outcomes = append(outcomes, Outcome{InputPath: input, Result: result, Err: err})

		switch {
		case err == nil:
			if result != nil && result.AlreadyDone {
				stats.Skipped++
			} else {
				stats.Completed++
			}
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return outcomes, stats, err
		default:
			stats.Failed++
			r.logger.Error("document failed",
				logging.String(logging.FieldInput, input),
				logging.Error(err))
			if r.stopOnError {
				return outcomes, stats, fmt.Errorf("batch aborted after failure of %s: %w", input, err)
			}
		}
	}

	r.logger.Info("batch finished",
		logging.Int("total", stats.Total),
		logging.Int("completed", stats.Completed),
		logging.Int("failed", stats.Failed),
		logging.Int("skipped", stats.Skipped))
	return outcomes, stats, nil
}
