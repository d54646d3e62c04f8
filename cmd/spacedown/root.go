// Package main provides the entry point for the spacedown CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for spacedown.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spacedown",
		Short: "Export a Confluence space to a Markdown directory tree",
		Long: `spacedown exports every page of a Confluence space into a directory tree
of Markdown files that mirrors the page hierarchy.

Each page becomes a directory holding index.md (YAML frontmatter plus the
converted body) and an attachments/ directory with the page's files. An
INDEX.md at the export root links every exported page.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewVerifyCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
