package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"narrator/internal/batch"
	"narrator/internal/combine"
	"narrator/internal/config"
	"narrator/internal/extract"
	"narrator/internal/history"
	"narrator/internal/logging"
	"narrator/internal/pipeline"
	"narrator/internal/preflight"
	"narrator/internal/state"
	"narrator/internal/synth"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		voiceFlag          string
		batchFlag          bool
		noResumeFlag       bool
		stopOnErrorFlag    bool
		maxRetriesFlag     int
		skipExtractionFlag bool
		skipGenerationFlag bool
		logFileFlag        string
		stateDirFlag       string
	)

	cmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Convert a document (or a directory of documents) into audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if stateDirFlag != "" {
				expanded, err := config.ExpandPath(stateDirFlag)
				if err != nil {
					return err
				}
				cfg.Paths.StateDir = expanded
			}
			if cmd.Flags().Changed("max-retries") {
				if maxRetriesFlag <= 0 {
					return fmt.Errorf("--max-retries must be positive")
				}
				cfg.Workflow.MaxRetries = maxRetriesFlag
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			logger, err := ctx.newLogger(logFileFlag)
			if err != nil {
				return err
			}

			if err := runPreflight(cfg); err != nil {
				return err
			}

			// One runner per state directory. Interleaved checkpoints from a
			// second invocation would corrupt resume semantics.
			lock := flock.New(filepath.Join(cfg.Paths.StateDir, "narrator.lock"))
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire state lock: %w", err)
			}
			if !ok {
				return errors.New("another narrator instance is already running against this state directory")
			}
			defer lock.Unlock()

			runner := buildRunner(cfg, logger, pipeline.Options{
				WorkDir:        cfg.Paths.WorkDir,
				OutputDir:      cfg.Paths.OutputDir,
				MaxRetries:     cfg.Workflow.MaxRetries,
				Resume:         !noResumeFlag,
				SkipExtraction: skipExtractionFlag,
				SkipGeneration: skipGenerationFlag,
				Voice:          voiceFlag,
			})

			recorder, err := openHistory(cfg, logger)
			if err != nil {
				return err
			}
			defer recorder.Close()

			input := args[0]
			info, err := os.Stat(input)
			if err != nil {
				return fmt.Errorf("stat input: %w", err)
			}

			if batchFlag || info.IsDir() {
				if !info.IsDir() {
					return fmt.Errorf("--batch requires a directory, got file %s", input)
				}
				return runBatch(cmd.Context(), runner, recorder, input, stopOnErrorFlag, logger)
			}
			return runSingle(cmd.Context(), runner, recorder, input)
		},
	}

	cmd.Flags().StringVar(&voiceFlag, "voice", "", "Override the configured synthesis voice")
	cmd.Flags().BoolVar(&batchFlag, "batch", false, "Treat the input as a directory of documents")
	cmd.Flags().BoolVar(&noResumeFlag, "no-resume", false, "Ignore prior checkpoints and start fresh")
	cmd.Flags().BoolVar(&stopOnErrorFlag, "stop-on-error", false, "Abort the batch at the first failed document")
	cmd.Flags().IntVar(&maxRetriesFlag, "max-retries", 0, "Override the configured retry budget")
	cmd.Flags().BoolVar(&skipExtractionFlag, "skip-extraction", false, "Mark extraction done without running it")
	cmd.Flags().BoolVar(&skipGenerationFlag, "skip-generation", false, "Mark extraction and generation done without running them")
	cmd.Flags().StringVar(&logFileFlag, "log-file", "", "Also append logs to this file")
	cmd.Flags().StringVar(&stateDirFlag, "state-dir", "", "Override the configured state directory")

	return cmd
}

func buildRunner(cfg *config.Config, logger *slog.Logger, opts pipeline.Options) *pipeline.Runner {
	store := state.NewStore(cfg.Paths.StateDir, logger)
	extractor := extract.NewClient(cfg.Extraction, logger)
	synthesizer := synth.NewClient(cfg.Synthesis, logger)
	combiner := combine.New(cfg.Combine.ChunkSize, logger)
	return pipeline.New(store, extractor, synthesizer, combiner, opts, logger)
}

func runPreflight(cfg *config.Config) error {
	results := preflight.Run(cfg)
	if preflight.AllPassed(results) {
		return nil
	}
	var failures []string
	for _, result := range results {
		if !result.Passed {
			failures = append(failures, fmt.Sprintf("%s: %s", result.Name, result.Detail))
		}
	}
	return fmt.Errorf("preflight failed: %s", strings.Join(failures, "; "))
}

// historyRecorder is a nil-safe wrapper so run paths stay identical whether
// the ledger is enabled or not.
type historyRecorder struct {
	store  *history.Store
	logger *slog.Logger
}

func openHistory(cfg *config.Config, logger *slog.Logger) (*historyRecorder, error) {
	recorder := &historyRecorder{logger: logging.NewComponentLogger(logger, "history")}
	if !cfg.History.Enabled {
		return recorder, nil
	}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return nil, err
	}
	recorder.store = store
	return recorder, nil
}

func (h *historyRecorder) Close() {
	if h.store != nil {
		h.store.Close()
	}
}

func (h *historyRecorder) record(ctx context.Context, result *pipeline.Result) {
	if h.store == nil || result == nil || result.Job == nil {
		return
	}
	job := result.Job
	err := h.store.Append(ctx, history.Record{
		RunID:       result.RunID,
		Fingerprint: job.Fingerprint,
		InputPath:   job.InputPath,
		OutputPath:  job.OutputPath,
		Status:      string(job.Status),
		RetryCount:  job.RetryCount,
		ErrorText:   job.LastError,
		Duration:    result.Duration,
	})
	if err != nil {
		// The ledger is informational, so the run proceeds, but a broken
		// history DB should not be silently empty.
		h.logger.Warn("history append failed",
			logging.String(logging.FieldRunID, result.RunID),
			logging.Error(err))
	}
}

func runSingle(ctx context.Context, runner *pipeline.Runner, recorder *historyRecorder, input string) error {
	result, err := runner.Run(ctx, input)
	recorder.record(ctx, result)
	if err != nil {
		return err
	}
	fmt.Printf("Completed: %s\n", result.Job.OutputPath)
	return nil
}

func runBatch(ctx context.Context, runner *pipeline.Runner, recorder *historyRecorder, dir string, stopOnError bool, logger *slog.Logger) error {
	inputs, err := batch.Discover(dir)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no supported documents (.pdf, .epub, .txt) in %s", dir)
	}

	batchRunner := batch.NewRunner(runner, stopOnError, logger)
	outcomes, stats, batchErr := batchRunner.Run(ctx, inputs)
	for _, outcome := range outcomes {
		recorder.record(ctx, outcome.Result)
	}

	printBatchSummary(outcomes, stats)
	if batchErr != nil {
		return batchErr
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", stats.Failed, stats.Total)
	}
	return nil
}

func printBatchSummary(outcomes []batch.Outcome, stats batch.Stats) {
	rows := make([][]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		status := "completed"
		detail := ""
		switch {
		case outcome.Err != nil:
			status = "failed"
			detail = outcome.Err.Error()
		case outcome.Result != nil && outcome.Result.AlreadyDone:
			status = "skipped"
			detail = "output already present"
		case outcome.Result != nil:
			detail = outcome.Result.Job.OutputPath
		}
		retries := ""
		if outcome.Result != nil && outcome.Result.Job != nil {
			retries = fmt.Sprintf("%d", outcome.Result.Job.RetryCount)
		}
		rows = append(rows, []string{filepath.Base(outcome.InputPath), status, retries, detail})
	}

	fmt.Println(renderTable(
		[]string{"Document", "Status", "Retries", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	))
	fmt.Printf("Total %d, completed %d, failed %d, skipped %d (%.0f%% success)\n",
		stats.Total, stats.Completed, stats.Failed, stats.Skipped, stats.SuccessRate())
}
