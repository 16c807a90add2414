package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"narrator/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pipeline runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				fmt.Println("Run history is disabled in the configuration.")
				return nil
			}

			store, err := history.Open(cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(cmd.Context(), limitFlag)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No runs recorded yet.")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				detail := rec.OutputPath
				if rec.ErrorText != "" {
					detail = rec.ErrorText
				}
				rows = append(rows, []string{
					rec.FinishedAt.Local().Format(time.RFC3339),
					rec.Status,
					fmt.Sprintf("%d", rec.RetryCount),
					rec.Duration.Round(time.Second).String(),
					rec.InputPath,
					detail,
				})
			}
			fmt.Println(renderTable(
				[]string{"Finished", "Status", "Retries", "Duration", "Input", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limitFlag, "limit", 20, "Maximum number of runs to show")
	return cmd
}
