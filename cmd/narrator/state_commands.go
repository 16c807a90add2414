package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"narrator/internal/logging"
	"narrator/internal/state"
)

func newStateCommand(ctx *commandContext) *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and reset pipeline checkpoints",
	}

	stateCmd.AddCommand(newStateListCommand(ctx))
	stateCmd.AddCommand(newStateShowCommand(ctx))
	stateCmd.AddCommand(newStateClearCommand(ctx))

	return stateCmd
}

func (c *commandContext) openStateStore() (*state.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return state.NewStore(cfg.Paths.StateDir, logging.NewNop()), nil
}

// resolveFingerprint accepts either a fingerprint or a document path.
func resolveFingerprint(arg string) (string, error) {
	if info, err := os.Stat(arg); err == nil && info.Mode().IsRegular() {
		return state.Fingerprint(arg)
	}
	return arg, nil
}

func newStateListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all job records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStateStore()
			if err != nil {
				return err
			}
			jobs, err := store.List()
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Println("No job records.")
				return nil
			}

			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				done := ""
				if job.ExtractionDone {
					done = "extract"
				}
				if job.GenerationDone {
					done += "+generate"
				}
				rows = append(rows, []string{
					job.Fingerprint,
					string(job.Status),
					done,
					fmt.Sprintf("%d", job.RetryCount),
					job.UpdatedAt.Local().Format(time.RFC3339),
					job.InputPath,
				})
			}
			fmt.Println(renderTable(
				[]string{"Fingerprint", "Status", "Done", "Retries", "Updated", "Input"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newStateShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <input-or-fingerprint>",
		Short: "Print one job record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStateStore()
			if err != nil {
				return err
			}
			fingerprint, err := resolveFingerprint(args[0])
			if err != nil {
				return err
			}
			job, err := store.Load(fingerprint)
			if err != nil {
				if errors.Is(err, state.ErrNotFound) {
					return fmt.Errorf("no record for %s", fingerprint)
				}
				return err
			}
			data, err := json.MarshalIndent(job, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
}

func newStateClearCommand(ctx *commandContext) *cobra.Command {
	var allFlag bool

	cmd := &cobra.Command{
		Use:   "clear [input-or-fingerprint]",
		Short: "Delete job records so documents run fresh",
		Long:  "Deleting a record is the manual reset path: a job that exhausted its retries will only run again after its record is cleared.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStateStore()
			if err != nil {
				return err
			}

			if allFlag {
				jobs, err := store.List()
				if err != nil {
					return err
				}
				for _, job := range jobs {
					if err := store.Delete(job.Fingerprint); err != nil {
						return err
					}
				}
				fmt.Printf("Cleared %d record(s).\n", len(jobs))
				return nil
			}

			if len(args) == 0 {
				return errors.New("provide an input path or fingerprint, or use --all")
			}
			fingerprint, err := resolveFingerprint(args[0])
			if err != nil {
				return err
			}
			if err := store.Delete(fingerprint); err != nil {
				return err
			}
			fmt.Printf("Cleared %s.\n", fingerprint)
			return nil
		},
	}

	cmd.Flags().BoolVar(&allFlag, "all", false, "Clear every job record")
	return cmd
}
