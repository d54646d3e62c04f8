package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spacedown/spacedown/internal/config"
	"github.com/spacedown/spacedown/internal/database"
)

// NewHistoryCmd creates the history command.
// This command lists export runs recorded in the history database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded export runs",
		Long: `History lists export runs recorded in the local history database.

Every export stores one run record with its totals and any skipped items,
unless --no-history was given. This command shows when each space was last
exported, where the tree was written, and whether anything was skipped.

Examples:
  # List all recorded runs
  spacedown history

  # List runs for one space
  spacedown history --space DOCS

  # List every space with at least one recorded run
  spacedown history --list-spaces

  # Show the skipped items of a specific run
  spacedown history --failures 5

  # Output run history as JSON
  spacedown history --json`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("space", "s", "",
		"Only list runs for the specified space key")
	cmd.Flags().BoolP("list-spaces", "L", false,
		"List all spaces with recorded runs")
	cmd.Flags().Int64P("failures", "f", 0,
		"Show the skipped items of the run with this ID (use the ID column of the run listing)")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	spaceKey, err := cmd.Flags().GetString("space")
	if err != nil {
		return err
	}

	listSpaces, err := cmd.Flags().GetBool("list-spaces")
	if err != nil {
		return err
	}

	failuresRunID, err := cmd.Flags().GetInt64("failures")
	if err != nil {
		return err
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	// The database must already exist: history is read-only and creating an
	// empty database here would only mask the real situation.
	dbDir := config.XDGDataDir()
	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	if listSpaces {
		return listExportedSpaces(ctx, db, jsonOutput)
	}

	if failuresRunID > 0 {
		return listRunFailures(ctx, db, failuresRunID, jsonOutput)
	}

	return listExportRuns(ctx, db, spaceKey, jsonOutput)
}

// listExportedSpaces lists every space that has at least one recorded run.
func listExportedSpaces(ctx context.Context, db *database.HistoryDB, jsonOutput bool) error {
	spaces, err := db.ListSpaces(ctx)
	if err != nil {
		return fmt.Errorf("failed to list spaces: %w", err)
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(spaces)
	}

	if len(spaces) == 0 {
		fmt.Println("No exported spaces found in the history database.")
		fmt.Println("\nUse 'spacedown export' to export a space.")
		return nil
	}

	fmt.Printf("Exported spaces (%d):\n\n", len(spaces))
	for _, space := range spaces {
		fmt.Printf("  • %s\n", space)
	}
	fmt.Println("\nUse 'spacedown history --space <key>' to see runs for a space.")

	return nil
}

// listExportRuns lists recorded runs, optionally filtered by space key.
func listExportRuns(ctx context.Context, db *database.HistoryDB, spaceKey string, jsonOutput bool) error {
	runs, err := db.ListRuns(ctx, spaceKey)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(runs)
	}

	if len(runs) == 0 {
		if spaceKey != "" {
			fmt.Printf("No export runs found for %s\n", spaceKey)
		} else {
			fmt.Println("No export runs found in the history database.")
		}
		fmt.Println("\nUse 'spacedown export' to export a space.")
		return nil
	}

	if spaceKey != "" {
		fmt.Printf("Export runs for %s (%d runs):\n\n", spaceKey, len(runs))
	} else {
		fmt.Printf("Export runs (%d):\n\n", len(runs))
	}

	fmt.Printf("  %-6s  %-10s  %-20s  %-10s  %7s  %12s  %8s\n",
		"ID", "Space", "Date", "Status", "Pages", "Attachments", "Skipped")
	fmt.Println("  " + strings.Repeat("-", 84))

	for _, run := range runs {
		fmt.Printf("  %-6d  %-10s  %-20s  %-10s  %7d  %12d  %8d\n",
			run.ID,
			run.SpaceKey,
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.Status,
			run.PagesExported,
			run.AttachmentsDownloaded,
			run.FailureCount,
		)
	}

	fmt.Println("\nUse 'spacedown history --failures <id>' to see the skipped items of a run.")

	return nil
}

// listRunFailures shows the skipped items of one recorded run.
func listRunFailures(ctx context.Context, db *database.HistoryDB, runID int64, jsonOutput bool) error {
	failures, err := db.ListRunFailures(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to list run failures: %w", err)
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(failures)
	}

	if len(failures) == 0 {
		fmt.Printf("No skipped items recorded for run %d.\n", runID)
		return nil
	}

	fmt.Printf("Skipped items of run %d (%d):\n\n", runID, len(failures))
	for _, f := range failures {
		fmt.Printf("  [%s] %s", f.Kind, f.Item)
		if f.PageTitle != "" {
			fmt.Printf(" (page: %s)", f.PageTitle)
		}
		if f.Reason != "" {
			fmt.Printf(": %s", f.Reason)
		}
		fmt.Println()
	}

	return nil
}
