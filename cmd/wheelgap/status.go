package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	statusRuns   int
	statusFailed bool
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Display wheelhouse contents and fetch run history",
		Long: `Display the current state of the wheelhouse: recorded artifact counts and
sizes, recent fetch runs, and any requirements that failed with their
suggested alternatives.

Use --failed to show only the failed-requirement dead letter queue.`,
		Example: `  wheelgap status
  wheelgap status --runs 20
  wheelgap status --failed`,
		RunE: statusRun,
	}

	cmd.Flags().IntVar(&statusRuns, "runs", 5, "number of recent fetch runs to show")
	cmd.Flags().BoolVar(&statusFailed, "failed", false, "show only failed requirements")

	return cmd
}

func statusRun(cmd *cobra.Command, args []string) error {
	if globalStore == nil {
		return fmt.Errorf("store not initialized")
	}

	if !statusFailed {
		count, err := globalStore.CountArtifactRecords()
		if err != nil {
			return fmt.Errorf("counting artifacts: %w", err)
		}
		total, err := globalStore.SumArtifactSize()
		if err != nil {
			return fmt.Errorf("summing artifact size: %w", err)
		}

		fmt.Println("=== WHEELHOUSE ===")
		fmt.Printf("Artifacts:  %d\n", count)
		fmt.Printf("Total size: %d bytes\n", total)

		runs, err := globalStore.ListFetchRuns(statusRuns)
		if err != nil {
			return fmt.Errorf("listing fetch runs: %w", err)
		}

		fmt.Println("\n=== RECENT RUNS ===")
		if len(runs) == 0 {
			fmt.Println("(none)")
		}
		for _, run := range runs {
			fmt.Printf("%s  %-8s req=%d fetched=%d skipped=%d failed=%d",
				run.StartTime.Format("2006-01-02 15:04:05"),
				run.Status, run.Requirements, run.Fetched, run.Skipped, run.Failed,
			)
			if run.ErrorMessage != "" {
				fmt.Printf("  %s", run.ErrorMessage)
			}
			fmt.Println()
		}
	}

	failed, err := globalStore.ListFailedRequirements()
	if err != nil {
		return fmt.Errorf("listing failed requirements: %w", err)
	}

	if statusFailed || len(failed) > 0 {
		fmt.Println("\n=== FAILED REQUIREMENTS ===")
		if len(failed) == 0 {
			fmt.Println("(none)")
		}
		for _, rec := range failed {
			fmt.Printf("%s  [%s]", rec.Specifier, rec.Kind)
			if rec.Platform != "" {
				fmt.Printf(" platform=%s", rec.Platform)
			}
			fmt.Printf("  failed at %s\n", rec.FailedAt.Format("2006-01-02 15:04:05"))

			var suggestions []string
			if rec.SuggestionsJSON != "" {
				if err := json.Unmarshal([]byte(rec.SuggestionsJSON), &suggestions); err == nil {
					for _, sg := range suggestions {
						fmt.Printf("  suggestion: %s\n", sg)
					}
				}
			}
		}
	}

	return nil
}
